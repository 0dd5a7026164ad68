// Package source implements the §4.1 Source Reader: it maps a logical file
// reference to bytes, trying an ordered list of search directories. The
// resolve-then-read shape is repurposed from the teacher's internal/crawler,
// which walks a directory tree with an ignore list; WireState's reader does
// not walk -- imports name an exact logical path -- but keeps the same
// "project root is the only thing that varies" collaborator shape, reading
// through the OS filesystem via plain os.ReadFile the way the teacher does.
package source

import (
	"os"
	"path/filepath"
	"strings"

	"wirestate/internal/errs"
)

// Reader resolves and reads WireState source files.
type Reader struct{}

func NewReader() *Reader { return &Reader{} }

// Resolve implements §4.1's contract. logical is the raw text of an
// `@include`; the root file is not resolved here (the analyzer reads it
// directly from its absolute path). fromFile is the absolute path of the importing Scope's file, used to
// anchor `./`- and `.\`-relative imports; it is ignored for project-relative
// imports. searchDirs is tried in order for project-relative imports; the
// first entry that yields a regular file wins.
func (r *Reader) Resolve(logical, fromFile string, searchDirs []string) (string, []string, error) {
	if isDotRelative(logical) {
		candidate := filepath.Join(filepath.Dir(fromFile), logical)
		if isRegularFile(candidate) {
			return candidate, []string{candidate}, nil
		}
		return "", []string{candidate}, nil
	}

	tried := make([]string, 0, len(searchDirs))
	for _, dir := range searchDirs {
		candidate := filepath.Join(dir, logical)
		tried = append(tried, candidate)
		if isRegularFile(candidate) {
			return candidate, tried, nil
		}
	}
	return "", tried, nil
}

func isDotRelative(p string) bool {
	return strings.HasPrefix(p, "./") || strings.HasPrefix(p, ".\\") ||
		strings.HasPrefix(p, "../") || strings.HasPrefix(p, "..\\")
}

func isRegularFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// Read reads absPath, wrapping any failure (a missing file included) as an IoError
// attributed to pos (the @include directive's location, or the zero Pos for
// the root file read from the CLI).
func (r *Reader) Read(absPath string, pos errs.Pos) ([]byte, error) {
	b, err := os.ReadFile(absPath)
	if err != nil {
		return nil, &errs.IoError{Pos: pos, Err: err}
	}
	return b, nil
}
