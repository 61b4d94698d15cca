// Package archive keeps the original bytes of every uploaded CSV on
// disk so a dataset can be re-downloaded byte-identically later.
//
// Files are stored under a single directory as
// <YYYYMMDD_HHMMSS>_<sanitized original name>. Writes go to a temporary
// file first and are renamed into place, so a crash mid-write never
// leaves a half-written archive behind; a background janitor sweeps up
// abandoned temporaries.
package archive

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// ErrNotFound is returned by Open when no file exists at the given path.
var ErrNotFound = errors.New("archived file not found")

// unsafeChars are characters replaced during filename sanitization:
// path separators plus the set Windows forbids in filenames.
var unsafeChars = regexp.MustCompile(`[\\/*?:"<>|]+`)

const tmpSuffix = ".tmp"

// Archive stores original upload files under a single directory.
type Archive struct {
	dir string
}

// New creates the archive directory if needed and returns an Archive
// rooted there.
func New(dir string) (*Archive, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve archive dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	return &Archive{dir: abs}, nil
}

// Dir returns the absolute archive directory.
func (a *Archive) Dir() string {
	return a.dir
}

// Save stores data under a timestamped, sanitized version of name and
// returns the file's path and xxhash64 checksum.
//
// The data is first written to a uuid-suffixed temporary file and then
// renamed, which is atomic on the same filesystem.
func (a *Archive) Save(name string, data []byte) (string, string, error) {
	saveName := fmt.Sprintf("%s_%s", time.Now().Format("20060102_150405"), SanitizeFilename(name))
	path := filepath.Join(a.dir, saveName)

	tmp := path + "." + uuid.NewString() + tmpSuffix
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", "", fmt.Errorf("write archive temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", "", fmt.Errorf("rename archive file: %w", err)
	}

	return path, Checksum(data), nil
}

// Open returns a reader over a previously archived file. The path must
// resolve inside the archive directory; anything else is treated as not
// found rather than followed.
func (a *Archive) Open(path string) (io.ReadCloser, error) {
	if !a.contains(path) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("open archive file: %w", err)
	}
	return f, nil
}

// Remove deletes an archived file. Removing a file that is already gone
// is not an error.
func (a *Archive) Remove(path string) error {
	if !a.contains(path) {
		return fmt.Errorf("path %s is outside archive dir", path)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove archive file: %w", err)
	}
	return nil
}

// contains reports whether path resolves to a file directly inside the
// archive directory.
func (a *Archive) contains(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return filepath.Dir(abs) == a.dir
}

// SanitizeFilename strips any directory part from name and replaces
// characters that are unsafe in filenames with underscores.
func SanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	safe := unsafeChars.ReplaceAllString(base, "_")
	if safe == "" || safe == "." || safe == ".." {
		return "uploaded.csv"
	}
	return safe
}

// Checksum returns the xxhash64 hex digest of data.
func Checksum(data []byte) string {
	digest := xxhash.New()
	_, _ = digest.Write(data)
	return hex.EncodeToString(digest.Sum(nil))
}
