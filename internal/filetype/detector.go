package filetype

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

const pdfMIME = "application/pdf"

// FileTypeInfo contains detected file type information
type FileTypeInfo struct {
	MIMEType    string
	Extension   string
	Supported   bool
	Description string
}

// Detector checks uploads against the accepted document types.
type Detector struct {
	allowed map[string]bool // lower-case extensions without dot
}

// New creates a detector accepting the given extensions (default: pdf).
func New(extensions ...string) *Detector {
	if len(extensions) == 0 {
		extensions = []string{"pdf"}
	}
	d := &Detector{allowed: make(map[string]bool, len(extensions))}
	for _, e := range extensions {
		d.allowed[strings.TrimPrefix(strings.ToLower(e), ".")] = true
	}
	return d
}

// AllowedName reports whether filename carries an accepted extension.
func (d *Detector) AllowedName(filename string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	return ext != "" && d.allowed[ext]
}

// Detect sniffs the content type from magic bytes, not the filename.
func (d *Detector) Detect(r io.Reader) (*FileTypeInfo, error) {
	mtype, err := mimetype.DetectReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}
	info := &FileTypeInfo{
		MIMEType:  mtype.String(),
		Extension: mtype.Extension(),
	}
	d.classify(info, mtype)
	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).Bool("supported", info.Supported).Msg("detected file type")
	return info, nil
}

// DetectFile is Detect for a path on disk.
func (d *Detector) DetectFile(path string) (*FileTypeInfo, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}
	info := &FileTypeInfo{MIMEType: mtype.String(), Extension: mtype.Extension()}
	d.classify(info, mtype)
	return info, nil
}

func (d *Detector) classify(info *FileTypeInfo, mtype *mimetype.MIME) {
	switch {
	case mtype.Is(pdfMIME):
		info.Supported = d.allowed["pdf"]
		info.Description = "PDF document"
	default:
		info.Supported = false
		info.Description = fmt.Sprintf("Unsupported file type: %s", info.MIMEType)
	}
}
