package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
	"github.com/rs/zerolog"
)

const (
	batchSize   = 200
	bufferSize  = 1000
	sendTimeout = 15 * time.Second
)

// sink is the part of the Axiom client the batcher uses.
type sink interface {
	IngestEvents(ctx context.Context, dataset string, events []axiom.Event, options ...ingest.Option) (*ingest.Status, error)
}

func newAxiomSink(token, orgID string) (sink, error) {
	opts := []axiom.Option{axiom.SetToken(token)}
	if orgID != "" {
		opts = append(opts, axiom.SetOrganizationID(orgID))
	}
	return axiom.NewClient(opts...)
}

// forwarder turns zerolog JSON lines into Axiom events at or above min.
type forwarder struct {
	b   *batcher
	min zerolog.Level
}

func (f *forwarder) Write(p []byte) (int, error) {
	return f.WriteLevel(zerolog.NoLevel, p)
}

func (f *forwarder) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l != zerolog.NoLevel && l < f.min {
		return len(p), nil
	}
	ev := axiom.Event{}
	if err := json.Unmarshal(p, &ev); err != nil {
		ev = axiom.Event{"message": string(p), "level": l.String()}
	}
	if _, ok := ev[ingest.TimestampField]; !ok {
		ev[ingest.TimestampField] = time.Now()
	}
	f.b.Send(ev)
	return len(p), nil
}

// batcher ships events in batches of batchSize or every flush interval,
// whichever comes first. Events are dropped when the buffer is full.
type batcher struct {
	sink    sink
	dataset string
	events  chan axiom.Event
	wg      sync.WaitGroup
	mu      sync.RWMutex // guards closed against Send racing Close
	closed  bool
	dropped atomic.Int64
}

func newBatcher(s sink, dataset string, every time.Duration) *batcher {
	if every <= 0 {
		every = 10 * time.Second
	}
	b := &batcher{sink: s, dataset: dataset, events: make(chan axiom.Event, bufferSize)}
	b.wg.Add(1)
	go b.run(every)
	return b
}

func (b *batcher) Send(ev axiom.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.events <- ev:
	default:
		b.dropped.Add(1)
	}
}

func (b *batcher) run(every time.Duration) {
	defer b.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	batch := make([]axiom.Event, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		if _, err := b.sink.IngestEvents(ctx, b.dataset, batch); err != nil {
			fmt.Fprintf(os.Stderr, "axiom ingest of %d events failed: %v\n", len(batch), err)
		}
		cancel()
		batch = make([]axiom.Event, 0, batchSize)
	}

	for {
		select {
		case ev, ok := <-b.events:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Close stops accepting events and waits for the final flush.
func (b *batcher) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.events)
	b.mu.Unlock()

	b.wg.Wait()
	if n := b.dropped.Load(); n > 0 {
		fmt.Fprintf(os.Stderr, "axiom dropped %d log events\n", n)
	}
}
