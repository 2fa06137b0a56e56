package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/local/marginalia/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open("sqlite://" + filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type memMirror struct {
	mu   sync.Mutex
	data map[uint]Snapshot
}

func (m *memMirror) Set(_ context.Context, id uint, st Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[uint]Snapshot{}
	}
	m.data[id] = st
	return nil
}

func (m *memMirror) Get(_ context.Context, id uint) (Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.data[id]
	return st, ok, nil
}

func (m *memMirror) Delete(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

// failingMirror accepts the first okWrites writes and rejects the rest.
type failingMirror struct {
	memMirror
	okWrites int
	writes   int
}

func (m *failingMirror) Set(ctx context.Context, id uint, st Snapshot) error {
	m.writes++
	if m.writes > m.okWrites {
		return errors.New("connection reset")
	}
	return m.memMirror.Set(ctx, id, st)
}

func TestJobLifecycleCompleted(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	job, err := db.CreateJob(ctx, "book.pdf", "uploads/x_book.pdf", 3)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if job.Status != models.StatusPending || job.Progress != 0 {
		t.Fatalf("new job = %s/%d, want pending/0", job.Status, job.Progress)
	}

	if err := db.Complete(ctx, job.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("complete from pending: err = %v, want ErrInvalidTransition", err)
	}
	if err := db.StartProcessing(ctx, job.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := db.UpdateProgress(ctx, job.ID, 55); err != nil {
		t.Fatalf("progress: %v", err)
	}
	if err := db.Complete(ctx, job.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, err := db.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.StatusCompleted || got.Progress != 100 || got.CompletedAt == nil {
		t.Errorf("job = %+v, want completed/100 with completed_at", got)
	}
	if err := db.Fail(ctx, job.ID, "late"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("fail after completion: err = %v, want ErrInvalidTransition", err)
	}
	if err := db.UpdateProgress(ctx, job.ID, 10); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("progress after completion: err = %v, want ErrInvalidTransition", err)
	}
}

func TestJobLifecycleFailed(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	job, _ := db.CreateJob(ctx, "a.pdf", "uploads/a.pdf", 1)
	if err := db.StartProcessing(ctx, job.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := db.Fail(ctx, job.ID, "extract: broken xref"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	st, err := db.Status(ctx, job.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Status != models.StatusFailed || st.ErrorMessage != "extract: broken xref" {
		t.Errorf("status = %+v", st)
	}
	if err := db.StartProcessing(ctx, job.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("restart failed job: err = %v, want ErrInvalidTransition", err)
	}
}

func TestFailStale(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	running, _ := db.CreateJob(ctx, "a.pdf", "uploads/a.pdf", 1)
	pending, _ := db.CreateJob(ctx, "b.pdf", "uploads/b.pdf", 1)
	if err := db.StartProcessing(ctx, running.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	if n, err := db.FailStale(ctx, time.Hour, "interrupted"); err != nil || n != 0 {
		t.Fatalf("fresh job reported stale: n=%d err=%v", n, err)
	}
	if n, err := db.FailStale(ctx, -time.Minute, "interrupted"); err != nil || n != 1 {
		t.Fatalf("FailStale = %d, %v, want 1", n, err)
	}

	got, _ := db.GetJob(ctx, running.ID)
	if got.Status != models.StatusFailed || got.ErrorMessage != "interrupted" {
		t.Errorf("running job = %s %q", got.Status, got.ErrorMessage)
	}
	got, _ = db.GetJob(ctx, pending.ID)
	if got.Status != models.StatusPending {
		t.Errorf("pending job = %s", got.Status)
	}
}

func TestFailStaleUpdatesMirror(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t).WithMirror(&memMirror{})

	job, _ := db.CreateJob(ctx, "a.pdf", "uploads/a.pdf", 1)
	if err := db.StartProcessing(ctx, job.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if n, err := db.FailStale(ctx, -time.Minute, "interrupted"); err != nil || n != 1 {
		t.Fatalf("FailStale = %d, %v, want 1", n, err)
	}

	st, err := db.Status(ctx, job.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Status != models.StatusFailed || st.ErrorMessage != "interrupted" {
		t.Errorf("polled = %s %q, want failed \"interrupted\"", st.Status, st.ErrorMessage)
	}
}

func TestMirrorWriteFailureFallsBackToDB(t *testing.T) {
	ctx := context.Background()
	mirror := &failingMirror{okWrites: 2}
	db := openTestDB(t).WithMirror(mirror)

	job, _ := db.CreateJob(ctx, "a.pdf", "uploads/a.pdf", 1)
	if err := db.StartProcessing(ctx, job.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := db.Complete(ctx, job.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if _, ok, _ := mirror.Get(ctx, job.ID); ok {
		t.Error("stale snapshot left in mirror after failed write")
	}
	st, err := db.Status(ctx, job.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Status != models.StatusCompleted || st.Progress != 100 {
		t.Errorf("polled = %s/%d, want completed/100", st.Status, st.Progress)
	}
}

func TestUnknownJob(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if _, err := db.GetJob(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("get: err = %v, want ErrNotFound", err)
	}
	if err := db.StartProcessing(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("start: err = %v, want ErrNotFound", err)
	}
	if _, err := db.Status(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("status: err = %v, want ErrNotFound", err)
	}
}

func TestStatusMirror(t *testing.T) {
	ctx := context.Background()
	mirror := &memMirror{}
	db := openTestDB(t).WithMirror(mirror)

	job, _ := db.CreateJob(ctx, "a.pdf", "uploads/a.pdf", 1)
	_ = db.StartProcessing(ctx, job.ID)
	_ = db.UpdateProgress(ctx, job.ID, 42)

	st, ok, _ := mirror.Get(ctx, job.ID)
	if !ok || st.Status != models.StatusProcessing || st.Progress != 42 {
		t.Fatalf("mirror = %+v (ok=%v), want processing/42", st, ok)
	}

	// Status is served from the mirror when present.
	mirror.Set(ctx, job.ID, Snapshot{Status: models.StatusProcessing, Progress: 77})
	got, err := db.Status(ctx, job.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if got.Progress != 77 {
		t.Errorf("progress = %d, want mirrored 77", got.Progress)
	}
}

func TestSaveAndLoadBook(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	job, _ := db.CreateJob(ctx, "a.pdf", "uploads/a.pdf", 2)

	analysis := &models.BookAnalysis{Genre: "Fantasy", Themes: []string{"magic", "quest"}, OverallMood: "tense", TotalPages: 2, Title: "A Fantasy Story"}
	pages := []models.BookPage{
		{
			PageNumber:     2,
			TextContent:    "second",
			Mood:           "peaceful",
			DominantThemes: []string{"power"},
		},
		{
			PageNumber:     1,
			TextContent:    "first",
			TextBlocks:     []models.TextBlock{{Text: "first", BBox: [4]float64{72, 72, 300, 90}, RelativePosition: models.Rect{X: 11.7, Y: 9.1, Width: 37, Height: 2.3}}},
			Mood:           "tense",
			DominantThemes: []string{"magic"},
			Marginalia: []models.Marginalia{
				{ImageURL: "data:image/png;base64,AAA", PositionX: 85, PositionY: 15, Width: 80, Height: 80, Theme: "magic", Side: "right"},
				{ImageURL: "data:image/png;base64,BBB", PositionX: 5, PositionY: 35, Width: 80, Height: 80, Theme: "quest", Side: "left"},
			},
		},
	}
	if err := db.SaveBook(ctx, job.ID, analysis, pages); err != nil {
		t.Fatalf("save: %v", err)
	}

	a, got, err := db.LoadBook(ctx, job.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if a == nil || a.Genre != "Fantasy" || !reflect.DeepEqual(a.Themes, []string{"magic", "quest"}) {
		t.Fatalf("analysis = %+v", a)
	}
	if len(got) != 2 || got[0].PageNumber != 1 || got[1].PageNumber != 2 {
		t.Fatalf("pages not ordered: %+v", got)
	}
	if len(got[0].Marginalia) != 2 || got[0].Marginalia[0].Theme != "magic" || got[0].Marginalia[1].Side != "left" {
		t.Errorf("marginalia = %+v", got[0].Marginalia)
	}
	if len(got[0].TextBlocks) != 1 || got[0].TextBlocks[0].RelativePosition.X != 11.7 {
		t.Errorf("text blocks = %+v", got[0].TextBlocks)
	}

	// Reads do not mutate.
	_, again, _ := db.LoadBook(ctx, job.ID)
	if !reflect.DeepEqual(got, again) {
		t.Error("second load differs from first")
	}

	// One analysis per job.
	if err := db.SaveBook(ctx, job.ID, &models.BookAnalysis{Genre: "Other"}, nil); err == nil {
		t.Error("expected unique violation saving a second analysis")
	}
}

func TestLoadBookWithoutAnalysis(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	job, _ := db.CreateJob(ctx, "a.pdf", "uploads/a.pdf", 0)

	a, pages, err := db.LoadBook(ctx, job.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if a != nil || len(pages) != 0 {
		t.Errorf("expected empty book, got %v / %v", a, pages)
	}
}

func TestDecodeSnapshot(t *testing.T) {
	st, ok, err := decodeSnapshot(map[string]string{"status": "processing", "progress": "30", "error_message": ""})
	if err != nil || !ok {
		t.Fatalf("decode: ok=%v err=%v", ok, err)
	}
	if st.Status != models.StatusProcessing || st.Progress != 30 {
		t.Errorf("snapshot = %+v", st)
	}
	if _, ok, _ := decodeSnapshot(map[string]string{}); ok {
		t.Error("empty hash should be a miss")
	}
	st, ok, _ = decodeSnapshot(map[string]string{"status": "failed", "progress": "n/a"})
	if !ok || st.Progress != 0 {
		t.Errorf("unparsable progress = %d (ok=%v), want 0", st.Progress, ok)
	}
	if _, _, err := decodeSnapshot(map[string]string{"status": "queued"}); err == nil {
		t.Error("unknown status should error")
	}
}

func TestDialectorFor(t *testing.T) {
	if _, err := dialectorFor(""); err == nil {
		t.Error("expected error for empty url")
	}
	d, err := dialectorFor("postgres://u:p@localhost:5432/db")
	if err != nil || d.Name() != "postgres" {
		t.Errorf("postgres dialector = %v, %v", d, err)
	}
	d, err = dialectorFor("sqlite://" + filepath.Join(t.TempDir(), "x", "y.db"))
	if err != nil || d.Name() != "sqlite" {
		t.Errorf("sqlite dialector = %v, %v", d, err)
	}
}
