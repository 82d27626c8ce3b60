// Package outpath allocates collision-free output file names.
package outpath

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const maxAttempts = 10000

var (
	illegalChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// Sanitize makes s safe to use as a file name component.
func Sanitize(s string) string {
	s = illegalChars.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = whitespace.ReplaceAllString(s, "_")
	if s == "" {
		return "Unknown"
	}
	return s
}

// Candidate returns the n-th name tried for desired: the name itself for
// n == 0, then "base(n).ext".
func Candidate(desired string, n int) string {
	if n == 0 {
		return desired
	}
	ext := filepath.Ext(desired)
	return fmt.Sprintf("%s(%d)%s", strings.TrimSuffix(desired, ext), n, ext)
}

// EnsureUniquePath returns a path inside dir that does not exist yet. The
// directory is created when missing; no file is created.
func EnsureUniquePath(dir, desired string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	for n := 0; n < maxAttempts; n++ {
		p := filepath.Join(dir, Candidate(desired, n))
		_, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			return p, nil
		}
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", p, err)
		}
	}
	return "", fmt.Errorf("no free name for %s in %s", desired, dir)
}

// CreateExclusive writes data to a new file in dir named after desired,
// counting up on collision like EnsureUniquePath. The file is created with
// O_EXCL so concurrent writers never share a path.
func CreateExclusive(dir, desired string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	for n := 0; n < maxAttempts; n++ {
		p := filepath.Join(dir, Candidate(desired, n))
		f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", p, err)
		}
		_, werr := f.Write(data)
		cerr := f.Close()
		if werr == nil {
			werr = cerr
		}
		if werr != nil {
			_ = os.Remove(p)
			return "", fmt.Errorf("write %s: %w", p, werr)
		}
		return p, nil
	}
	return "", fmt.Errorf("no free name for %s in %s", desired, dir)
}
