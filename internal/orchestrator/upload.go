package orchestrator

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/local/marginalia/internal/metrics"
	"github.com/local/marginalia/internal/storage"
)

const (
	// multipartOverhead allows for boundaries and other fields around the file.
	multipartOverhead = 1 << 20
	maxFormMemory     = 8 << 20
)

// ValidationError rejects an upload before any job exists.
type ValidationError struct {
	Status  int
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func reject(status int, reason, msg string) error {
	metrics.IncUploadRejected(reason)
	return &ValidationError{Status: status, Message: msg}
}

// Upload is a validated file stored on disk, ready for a job.
type Upload struct {
	Filename  string // sanitized original name
	Stored    storage.Stored
	PageCount int
}

// Accept validates the multipart upload in r and stores it. Name, size and
// content checks all run before anything is written under its final name;
// on error nothing is left on disk.
func (o *Orchestrator) Accept(w http.ResponseWriter, r *http.Request) (*Upload, error) {
	limit := o.deps.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, o.tooLarge()
		}
		return nil, reject(http.StatusBadRequest, "form", "No file selected")
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, hdr, err := formFile(r, "pdf_file", "file")
	if err != nil {
		return nil, reject(http.StatusBadRequest, "missing", "No file selected")
	}
	defer file.Close()

	if hdr.Filename == "" {
		return nil, reject(http.StatusBadRequest, "missing", "No file selected")
	}
	if !o.deps.Detector.AllowedName(hdr.Filename) {
		return nil, reject(http.StatusBadRequest, "type", "Invalid file type. Please upload a PDF file.")
	}
	if hdr.Size > limit {
		return nil, o.tooLarge()
	}

	info, err := o.deps.Detector.Detect(file)
	if err != nil || !info.Supported {
		return nil, reject(http.StatusBadRequest, "content", "Invalid file type. File content is not a PDF.")
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind upload: %w", err)
	}

	stored, err := o.deps.Files.Save(file, hdr.Filename, limit)
	if errors.Is(err, storage.ErrTooLarge) {
		return nil, o.tooLarge()
	}
	if err != nil {
		return nil, err
	}

	pages, err := o.deps.PageCounter(stored.Path)
	if err != nil {
		_ = o.deps.Files.Remove(stored.Path)
		log.Warn().Err(err).Str("file", hdr.Filename).Msg("uploaded PDF could not be read")
		return nil, reject(http.StatusBadRequest, "unreadable", "Could not read PDF file.")
	}

	if o.deps.Mirror != nil {
		if ref, err := o.deps.Mirror.Mirror(r.Context(), stored.Path, stored.Name, hdr.Filename); err != nil {
			log.Warn().Err(err).Str("file", stored.Name).Msg("upload mirror failed")
		} else {
			log.Debug().Str("ref", ref).Msg("upload mirrored")
		}
	}

	return &Upload{Filename: storage.SanitizeFilename(hdr.Filename), Stored: stored, PageCount: pages}, nil
}

func (o *Orchestrator) tooLarge() error {
	return reject(http.StatusRequestEntityTooLarge, "size",
		fmt.Sprintf("File too large. Maximum size is %d MB.", o.deps.MaxUploadBytes>>20))
}

func formFile(r *http.Request, fields ...string) (multipart.File, *multipart.FileHeader, error) {
	var err error
	for _, f := range fields {
		var file multipart.File
		var hdr *multipart.FileHeader
		if file, hdr, err = r.FormFile(f); err == nil {
			return file, hdr, nil
		}
	}
	return nil, nil, err
}
