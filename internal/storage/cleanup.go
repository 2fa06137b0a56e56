package storage

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CleanupPartial removes *.part files left behind by interrupted uploads
// older than maxAge and returns how many were removed.
func (l *Local) CleanupPartial(maxAge time.Duration) int {
	now := l.now()
	removed := 0
	_ = filepath.Walk(l.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(info.Name(), partSuffix) {
			return nil
		}
		if now.Sub(info.ModTime()) >= maxAge && os.Remove(path) == nil {
			removed++
		}
		return nil
	})
	return removed
}
