package statuscheck

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestSummary(t *testing.T) {
	c := New(Options{
		DB:    pinger{},
		Redis: pinger{err: errors.New("dial tcp: connection refused")},
	})
	s := c.Summary(context.Background())

	if !s.Database.OK || s.Database.Message != "Connected" {
		t.Errorf("database = %+v", s.Database)
	}
	if s.Redis.OK || !strings.Contains(s.Redis.Message, "connection refused") {
		t.Errorf("redis = %+v", s.Redis)
	}
	if s.S3.OK || s.S3.Message != "Bucket not configured" {
		t.Errorf("s3 = %+v", s.S3)
	}
	if !s.AIText.OK || s.AIText.Message != "Mock responses" {
		t.Errorf("ai_text = %+v", s.AIText)
	}
	if !s.MuPDF.OK {
		t.Errorf("mupdf = %+v", s.MuPDF)
	}
	if !s.Ready {
		t.Error("summary should be ready with a healthy database")
	}
}

func TestProviderProbe(t *testing.T) {
	tests := []struct {
		engine string
		header string
		path   string
	}{
		{"openai", "Authorization", "/models"},
		{"anthropic", "x-api-key", "/models"},
		{"gemini", "x-goog-api-key", "/models"},
	}
	for _, tt := range tests {
		t.Run(tt.engine, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != tt.path || r.Header.Get(tt.header) == "" {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				_, _ = w.Write([]byte(`{}`))
			}))
			defer srv.Close()

			c := New(Options{Provider: Provider{Engine: tt.engine, APIKey: "k", BaseURL: srv.URL}})
			if st := c.checkProvider(context.Background()); !st.OK {
				t.Errorf("status = %+v", st)
			}
		})
	}
}

func TestProviderFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(Options{Provider: Provider{Engine: "openai", APIKey: "bad", BaseURL: srv.URL}})
	if st := c.checkProvider(context.Background()); st.OK || st.Message != "HTTP 403" {
		t.Errorf("status = %+v", st)
	}

	c = New(Options{Provider: Provider{Engine: "anthropic"}})
	if st := c.checkProvider(context.Background()); st.OK || !strings.Contains(st.Message, "API key missing") {
		t.Errorf("status = %+v", st)
	}
}

func TestHandlerNotReady(t *testing.T) {
	c := New(Options{DB: pinger{err: errors.New("database is locked")}})
	rr := httptest.NewRecorder()
	c.Handler()(rr, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
	var s Summary
	if err := json.Unmarshal(rr.Body.Bytes(), &s); err != nil {
		t.Fatal(err)
	}
	if s.Ready || s.Database.Message != "database is locked" {
		t.Errorf("summary = %+v", s)
	}
}

func TestTrimError(t *testing.T) {
	long := errors.New(strings.Repeat("x", 200))
	if got := trimError(long); len(got) != 120 {
		t.Errorf("len = %d, want 120", len(got))
	}
	if got := trimError(nil); got != "" {
		t.Errorf("nil = %q", got)
	}
}
