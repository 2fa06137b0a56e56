// Package web serves the upload form and the book reader.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/local/marginalia/internal/models"
	"github.com/local/marginalia/internal/orchestrator"
	"github.com/local/marginalia/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Library is the part of the orchestrator the pages need.
type Library interface {
	Accept(w http.ResponseWriter, r *http.Request) (*orchestrator.Upload, error)
	Submit(ctx context.Context, up *orchestrator.Upload) (*models.ProcessingJob, error)
	Book(ctx context.Context, id uint) (*models.ProcessingJob, *orchestrator.BookData, error)
}

type Web struct {
	tpl   *template.Template
	lib   Library
	flash *Flasher
	maxMB int64
}

func New(lib Library, flash *Flasher, maxUploadBytes int64) (*Web, error) {
	tpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Web{tpl: tpl, lib: lib, flash: flash, maxMB: maxUploadBytes >> 20}, nil
}

func (w *Web) RegisterRoutes(mux *http.ServeMux) {
	static, _ := fs.Sub(staticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	mux.HandleFunc("GET /{$}", w.handleIndex)
	mux.HandleFunc("POST /upload", w.handleUpload)
	mux.HandleFunc("GET /book/{id}", w.handleBook)
}

// render buffers the template so a failure can still become a 500.
func (w *Web) render(wr http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := w.tpl.ExecuteTemplate(&buf, name, data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("render failed")
		http.Error(wr, "internal error", http.StatusInternalServerError)
		return
	}
	wr.Header().Set("Content-Type", "text/html; charset=utf-8")
	wr.WriteHeader(status)
	_, _ = buf.WriteTo(wr)
}

type indexPage struct {
	Flash string
	MaxMB int64
}

func (w *Web) handleIndex(wr http.ResponseWriter, r *http.Request) {
	msg, _ := w.flash.Pop(wr, r)
	w.render(wr, http.StatusOK, "index.html", indexPage{Flash: msg, MaxMB: w.maxMB})
}

func (w *Web) handleUpload(wr http.ResponseWriter, r *http.Request) {
	up, err := w.lib.Accept(wr, r)
	if err != nil {
		var verr *orchestrator.ValidationError
		if errors.As(err, &verr) {
			w.back(wr, r, verr.Message)
		} else {
			log.Error().Err(err).Msg("upload failed")
			w.back(wr, r, "Error uploading file: "+err.Error())
		}
		return
	}

	job, err := w.lib.Submit(r.Context(), up)
	switch {
	case job == nil:
		log.Error().Err(err).Msg("job creation failed")
		w.back(wr, r, "Error uploading file: "+err.Error())
	case err != nil:
		w.back(wr, r, "Error processing PDF: "+job.ErrorMessage)
	default:
		http.Redirect(wr, r, fmt.Sprintf("/book/%d", job.ID), http.StatusFound)
	}
}

func (w *Web) back(wr http.ResponseWriter, r *http.Request, msg string) {
	w.flash.Set(wr, msg)
	http.Redirect(wr, r, "/", http.StatusFound)
}

type bookPage struct {
	Job  *models.ProcessingJob
	Book *orchestrator.BookData
}

func (w *Web) handleBook(wr http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		http.NotFound(wr, r)
		return
	}
	job, book, err := w.lib.Book(r.Context(), uint(id))
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.NotFound(wr, r)
	case errors.Is(err, orchestrator.ErrNotCompleted):
		w.render(wr, http.StatusOK, "book_reader.html", bookPage{Job: job})
	case err != nil:
		log.Error().Err(err).Uint64("job_id", id).Msg("load book failed")
		http.Error(wr, "internal error", http.StatusInternalServerError)
	default:
		w.render(wr, http.StatusOK, "book_reader.html", bookPage{Job: job, Book: book})
	}
}
