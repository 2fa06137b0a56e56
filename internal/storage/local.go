// Package storage keeps uploaded PDFs on local disk and optionally mirrors them to S3.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// ErrTooLarge is returned when an upload exceeds the configured limit.
var ErrTooLarge = errors.New("file exceeds upload limit")

const partSuffix = ".part"

// Stored describes a file written by Local.Save.
type Stored struct {
	Name string // generated file name
	Path string
	Size int64
}

// Local writes uploads under a single directory.
type Local struct {
	dir string
	now func() time.Time
}

func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: dir, now: time.Now}, nil
}

func (l *Local) Dir() string { return l.dir }

// GenerateName returns <YYYYmmdd_HHMMSS>_<uuid8>_<sanitized original>.
func (l *Local) GenerateName(original string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%s_%s", l.now().Format("20060102_150405"), id, SanitizeFilename(original))
}

// Save streams r to a new file. At most limit bytes are accepted; a larger
// body leaves nothing on disk and returns ErrTooLarge. The file only
// appears under its final name once fully written.
func (l *Local) Save(r io.Reader, original string, limit int64) (Stored, error) {
	name := l.GenerateName(original)
	final := filepath.Join(l.dir, name)
	part := final + partSuffix

	f, err := os.OpenFile(part, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Stored{}, fmt.Errorf("create upload file: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(r, limit+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > limit {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(part)
		if errors.Is(err, ErrTooLarge) {
			return Stored{}, err
		}
		return Stored{}, fmt.Errorf("write upload file: %w", err)
	}
	if err := os.Rename(part, final); err != nil {
		_ = os.Remove(part)
		return Stored{}, fmt.Errorf("finalize upload file: %w", err)
	}
	return Stored{Name: name, Path: final, Size: n}, nil
}

// Remove deletes a stored upload; a missing file is not an error.
func (l *Local) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// SanitizeFilename keeps the base name with only ASCII letters, digits,
// dot, dash and underscore. Whitespace becomes an underscore.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "upload.pdf"
	}
	return out
}
