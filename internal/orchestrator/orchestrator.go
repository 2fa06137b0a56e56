// Package orchestrator owns a job from upload to a terminal status.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/local/marginalia/internal/ai"
	"github.com/local/marginalia/internal/filetype"
	"github.com/local/marginalia/internal/mupdf"
	"github.com/local/marginalia/internal/storage"
	"github.com/local/marginalia/internal/store"
)

// Extractor reads per-page text and layout from a stored PDF.
type Extractor interface {
	Extract(ctx context.Context, path string) (*mupdf.Document, error)
}

// Analyzer labels text and produces marginalia. Implementations never fail;
// they degrade to offline results instead.
type Analyzer interface {
	AnalyzeDocument(ctx context.Context, text string) ai.DocumentAnalysis
	AnalyzePage(ctx context.Context, text, genre string) ai.PageAnalysis
	GenerateMarginalia(ctx context.Context, text, genre, mood string, themes []string) []ai.MarginaliaImage
}

// Mirror archives a stored upload somewhere durable.
type Mirror interface {
	Mirror(ctx context.Context, localPath, name, originalName string) (string, error)
}

type Dependencies struct {
	DB        *store.DB
	Files     *storage.Local
	Mirror    Mirror // optional
	Detector  *filetype.Detector
	Extractor Extractor
	Analyzer  Analyzer
	// PageCounter defaults to mupdf.PageCount.
	PageCounter    func(path string) (int, error)
	MaxUploadBytes int64
}

type Orchestrator struct {
	deps Dependencies
}

func New(deps Dependencies) *Orchestrator {
	if deps.Detector == nil {
		deps.Detector = filetype.New("pdf")
	}
	if deps.PageCounter == nil {
		deps.PageCounter = mupdf.PageCount
	}
	return &Orchestrator{deps: deps}
}

func (o *Orchestrator) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /api/upload", o.handleAPIUpload)
	mux.HandleFunc("GET /job_status/{id}", o.handleJobStatus)
	mux.HandleFunc("GET /book_data/{id}", o.handleBookData)
}

type uploadResp struct {
	JobID        uint    `json:"job_id"`
	Status       string  `json:"status"`
	Progress     int     `json:"progress"`
	ErrorMessage *string `json:"error_message"`
}

func (o *Orchestrator) handleAPIUpload(w http.ResponseWriter, r *http.Request) {
	up, err := o.Accept(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	job, err := o.Submit(r.Context(), up)
	if job == nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, uploadResp{
		JobID:        job.ID,
		Status:       job.Status.String(),
		Progress:     job.Progress,
		ErrorMessage: nullable(job.ErrorMessage),
	})
}

type statusResp struct {
	Status       string  `json:"status"`
	Progress     int     `json:"progress"`
	ErrorMessage *string `json:"error_message"`
}

func (o *Orchestrator) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("Job not found"))
		return
	}
	st, err := o.deps.DB.Status(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResp{
		Status:       st.Status.String(),
		Progress:     st.Progress,
		ErrorMessage: nullable(st.ErrorMessage),
	})
}

func (o *Orchestrator) handleBookData(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("Job not found"))
		return
	}
	_, book, err := o.Book(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func parseID(r *http.Request) (uint, bool) {
	n, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func errorBody(msg string) map[string]string { return map[string]string{"error": msg} }

// writeError maps domain errors to HTTP responses.
func writeError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, verr.Status, errorBody(verr.Message))
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("Job not found"))
	case errors.Is(err, ErrNotCompleted):
		writeJSON(w, http.StatusBadRequest, errorBody("Job not completed"))
	default:
		log.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
