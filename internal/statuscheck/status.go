package statuscheck

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	fitz "github.com/gen2brain/go-fitz"
	"github.com/jung-kurt/gofpdf"
)

// Pinger models the minimal capability we need from a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Provider describes the text analysis engine in use.
type Provider struct {
	Engine  string // "gemini"|"openai"|"anthropic"|"mock"
	APIKey  string
	BaseURL string // overrides the public endpoint, for tests
}

// Checker aggregates readiness checks for the services the reader depends on.
type Checker struct {
	db         Pinger
	redis      Pinger
	s3         Pinger
	provider   Provider
	imageMode  string
	httpClient *http.Client

	mupdfOnce sync.Once
	mupdf     Status
}

// Options configures the Checker. Nil Redis or S3 means not configured.
type Options struct {
	DB         Pinger
	Redis      Pinger
	S3         Pinger
	Provider   Provider
	ImageMode  string
	HTTPClient *http.Client
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Summary bundles all subsystem statuses. Ready only depends on the
// database and MuPDF; everything else degrades gracefully.
type Summary struct {
	Ready    bool   `json:"ready"`
	Database Status `json:"database"`
	Redis    Status `json:"redis"`
	S3       Status `json:"s3"`
	AIText   Status `json:"ai_text"`
	AIImages Status `json:"ai_images"`
	MuPDF    Status `json:"mupdf"`
}

func New(opts Options) *Checker {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	p := opts.Provider
	p.Engine = strings.ToLower(strings.TrimSpace(p.Engine))
	p.APIKey = strings.TrimSpace(p.APIKey)
	return &Checker{
		db:         opts.DB,
		redis:      opts.Redis,
		s3:         opts.S3,
		provider:   p,
		imageMode:  opts.ImageMode,
		httpClient: client,
	}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	s := Summary{
		Database: c.ping(ctx, c.db, "database not configured"),
		Redis:    c.ping(ctx, c.redis, "Not configured"),
		S3:       c.ping(ctx, c.s3, "Bucket not configured"),
		AIText:   c.checkProvider(ctx),
		AIImages: c.checkImages(),
		MuPDF:    c.checkMuPDF(),
	}
	s.Ready = s.Database.OK && s.MuPDF.OK
	return s
}

// Handler serves the summary as JSON, 503 when not ready.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := c.Summary(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if !s.Ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(s)
	}
}

func (c *Checker) ping(ctx context.Context, p Pinger, missing string) Status {
	if p == nil {
		return Status{OK: false, Message: missing}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkProvider(ctx context.Context) Status {
	p := c.provider
	if p.Engine == "" || p.Engine == "mock" {
		return Status{OK: true, Message: "Mock responses"}
	}
	if p.APIKey == "" {
		return Status{OK: false, Message: "API key missing, using mock responses"}
	}

	var req *http.Request
	switch p.Engine {
	case "openai":
		req, _ = http.NewRequestWithContext(ctx, http.MethodGet, baseOr(p.BaseURL, "https://api.openai.com/v1")+"/models?limit=1", nil)
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	case "anthropic":
		req, _ = http.NewRequestWithContext(ctx, http.MethodGet, baseOr(p.BaseURL, "https://api.anthropic.com/v1")+"/models", nil)
		req.Header.Set("x-api-key", p.APIKey)
		req.Header.Set("anthropic-version", "2023-06-01")
	default:
		req, _ = http.NewRequestWithContext(ctx, http.MethodGet, baseOr(p.BaseURL, "https://generativelanguage.googleapis.com/v1beta")+"/models?pageSize=1", nil)
		req.Header.Set("x-goog-api-key", p.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return Status{OK: false, Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
	return Status{OK: true, Message: "Available"}
}

func (c *Checker) checkImages() Status {
	if c.imageMode == "" || c.imageMode == "mock" {
		return Status{OK: true, Message: "Placeholder images"}
	}
	return Status{OK: true, Message: c.imageMode}
}

// checkMuPDF renders a one-page document and opens it with MuPDF. The
// result cannot change while the process runs, so it is computed once.
func (c *Checker) checkMuPDF() Status {
	c.mupdfOnce.Do(func() {
		pdf := gofpdf.New("P", "pt", "A4", "")
		pdf.AddPage()
		pdf.SetFont("Helvetica", "", 12)
		pdf.Cell(100, 20, "status")
		var buf bytes.Buffer
		if err := pdf.Output(&buf); err != nil {
			c.mupdf = Status{OK: false, Message: trimError(err)}
			return
		}
		doc, err := fitz.NewFromMemory(buf.Bytes())
		if err != nil {
			c.mupdf = Status{OK: false, Message: trimError(err)}
			return
		}
		defer doc.Close()
		if doc.NumPage() != 1 {
			c.mupdf = Status{OK: false, Message: fmt.Sprintf("opened %d pages, want 1", doc.NumPage())}
			return
		}
		c.mupdf = Status{OK: true, Message: "Available"}
	})
	return c.mupdf
}

func baseOr(base, def string) string {
	if base == "" {
		return def
	}
	return strings.TrimRight(base, "/")
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
