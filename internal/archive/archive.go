// Package archive opens mod files as zip containers and extracts single
// entries from them. Archives are never modified.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MaxEntrySize caps the uncompressed size of a single extracted entry.
// Manifests are a few KiB; anything larger is treated as hostile.
const MaxEntrySize = 16 << 20

var (
	// ErrUnreadableArchive is returned when a file is missing, unreadable,
	// truncated or not a zip container.
	ErrUnreadableArchive = errors.New("unreadable archive")

	// ErrEntryNotFound is returned by ReadFile when no entry matches.
	ErrEntryNotFound = errors.New("entry not found")
)

// modExtensions lists the archive extensions recognised as mods.
var modExtensions = []string{".jar", ".zip", ".litemod"}

// disabledSuffixes are appended by launchers and users to switch a mod off
// without deleting it.
var disabledSuffixes = []string{".disabled", ".old"}

// Archive is an opened mod file held in memory.
type Archive struct {
	path  string
	data  []byte
	zr    *zip.Reader
	exact map[string]*zip.File
	fold  map[string]*zip.File
	names []string
}

// Open reads the file at path and validates it as a zip container.
func Open(path string) (*Archive, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the scanned mods directory
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreadableArchive, filepath.Base(path), err)
	}
	return FromBytes(path, data)
}

// FromBytes wraps data already in memory. The path is used for naming only.
func FromBytes(path string, data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreadableArchive, filepath.Base(path), err)
	}

	a := &Archive{
		path:  path,
		data:  data,
		zr:    zr,
		exact: make(map[string]*zip.File, len(zr.File)),
		fold:  make(map[string]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		a.exact[f.Name] = f
		key := normalize(f.Name)
		if _, dup := a.fold[key]; !dup {
			a.fold[key] = f
		}
		a.names = append(a.names, f.Name)
	}
	sort.Strings(a.names)
	return a, nil
}

// Path returns the path the archive was opened from.
func (a *Archive) Path() string { return a.path }

// Name returns the base file name.
func (a *Archive) Name() string { return filepath.Base(a.path) }

// Bytes returns the raw archive bytes. Callers must not modify the slice.
func (a *Archive) Bytes() []byte { return a.data }

// Size returns the raw byte length.
func (a *Archive) Size() int64 { return int64(len(a.data)) }

// Entries returns the sorted file entry names.
func (a *Archive) Entries() []string {
	out := make([]string, len(a.names))
	copy(out, a.names)
	return out
}

// Has reports whether an entry matching name exists.
func (a *Archive) Has(name string) bool {
	return a.lookup(name) != nil
}

// ReadFile extracts a single entry. The exact name is tried first, then a
// case-insensitive match with backslashes turned into slashes and any
// leading "./" or "/" removed.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	f := a.lookup(name)
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}
	if f.UncompressedSize64 > MaxEntrySize {
		return nil, fmt.Errorf("%w: entry %s is %d bytes", ErrUnreadableArchive, f.Name, f.UncompressedSize64)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrUnreadableArchive, f.Name, err)
	}
	defer rc.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(rc, MaxEntrySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrUnreadableArchive, f.Name, err)
	}
	if len(data) > MaxEntrySize {
		return nil, fmt.Errorf("%w: entry %s exceeds %d bytes", ErrUnreadableArchive, f.Name, MaxEntrySize)
	}
	return data, nil
}

func (a *Archive) lookup(name string) *zip.File {
	if f, ok := a.exact[name]; ok {
		return f
	}
	return a.fold[normalize(name)]
}

func normalize(name string) string {
	n := strings.ReplaceAll(name, "\\", "/")
	n = strings.TrimPrefix(n, "./")
	n = strings.TrimLeft(n, "/")
	return strings.ToLower(n)
}

// IsModFile reports whether name looks like a mod archive, including
// disabled variants such as "sodium.jar.disabled".
func IsModFile(name string) bool {
	lower := strings.ToLower(filepath.Base(name))
	for _, s := range disabledSuffixes {
		lower = strings.TrimSuffix(lower, s)
	}
	for _, ext := range modExtensions {
		if strings.HasSuffix(lower, ext) && len(lower) > len(ext) {
			return true
		}
	}
	return false
}

// IsDisabled reports whether name carries a disabled suffix.
func IsDisabled(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range disabledSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}
