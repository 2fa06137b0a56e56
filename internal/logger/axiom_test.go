package logger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
	"github.com/rs/zerolog"
)

type fakeSink struct {
	mu      sync.Mutex
	batches [][]axiom.Event
}

func (f *fakeSink) IngestEvents(_ context.Context, _ string, events []axiom.Event, _ ...ingest.Option) (*ingest.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, events)
	return &ingest.Status{}, nil
}

func (f *fakeSink) events() []axiom.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []axiom.Event
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

func TestForwarderShipsInfoAndAbove(t *testing.T) {
	s := &fakeSink{}
	b := newBatcher(s, "test", time.Hour)
	l := zerolog.New(zerolog.MultiLevelWriter(&forwarder{b: b, min: zerolog.InfoLevel})).
		Level(zerolog.DebugLevel).With().Str("service", serviceName).Logger()

	l.Debug().Msg("noise")
	l.Info().Uint("job_id", 7).Msg("job created")
	l.Error().Msg("job failed")
	b.Close()

	got := s.events()
	if len(got) != 2 {
		t.Fatalf("shipped %d events, want 2: %v", len(got), got)
	}
	if got[0]["message"] != "job created" || got[0]["job_id"] != float64(7) || got[0]["service"] != serviceName {
		t.Errorf("first event = %v", got[0])
	}
	if _, ok := got[1][ingest.TimestampField]; !ok {
		t.Errorf("event missing %s: %v", ingest.TimestampField, got[1])
	}
}

func TestBatcherFlushesFullBatches(t *testing.T) {
	s := &fakeSink{}
	b := newBatcher(s, "test", time.Hour)
	for i := 0; i < batchSize+5; i++ {
		b.Send(axiom.Event{"n": i})
	}
	b.Close()

	if n := len(s.events()); n != batchSize+5 {
		t.Errorf("shipped %d events, want %d", n, batchSize+5)
	}
	if len(s.batches) != 2 || len(s.batches[0]) != batchSize {
		t.Errorf("batches = %d (first %d)", len(s.batches), len(s.batches[0]))
	}
}

func TestBatcherSendAfterClose(t *testing.T) {
	b := newBatcher(&fakeSink{}, "test", time.Hour)
	b.Close()
	b.Send(axiom.Event{"late": true})
	b.Close()
}
