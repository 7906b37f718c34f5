package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Dir is a flat directory of files named "{id}.{ext}". Both the canonical
// asset store and the variant cache are Dirs. Files are written atomically
// (temp file + rename) so concurrent writers of the same name cannot leave
// a torn file behind.
type Dir struct {
	base string
}

// NewDir creates a Dir rooted at base, creating the directory if needed.
func NewDir(base string) (*Dir, error) {
	if err := os.MkdirAll(base, 0755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", base, err)
	}
	return &Dir{base: base}, nil
}

// Path returns the full path of a stored file.
func (d *Dir) Path(name string) string {
	return filepath.Join(d.base, name)
}

// Exists checks whether a file with the given name exists.
func (d *Dir) Exists(name string) (bool, error) {
	info, err := os.Stat(d.Path(name))
	if err == nil {
		return info.Mode().IsRegular(), nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("checking file %s: %w", name, err)
}

// ExistsPrefix checks whether any file in the directory starts with prefix.
// Used by the short-name allocator's collision pre-check.
func (d *Dir) ExistsPrefix(prefix string) (bool, error) {
	matches, err := filepath.Glob(filepath.Join(d.base, prefix+"*"))
	if err != nil {
		return false, fmt.Errorf("globbing prefix %s: %w", prefix, err)
	}
	return len(matches) > 0, nil
}

// Write stores data under name using atomic write (temp file + rename).
// It returns the number of bytes written.
func (d *Dir) Write(name string, data io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(d.base, ".write-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	n, err := io.Copy(tmp, data)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("writing data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("closing temp file: %w", err)
	}

	dst := d.Path(name)
	if err := os.Rename(tmpPath, dst); err != nil {
		return 0, fmt.Errorf("renaming temp file to %s: %w", dst, err)
	}
	tmpPath = ""

	return n, nil
}

// Move takes ownership of an existing file (typically a scratch file) and
// places it under name. Falls back to copy+remove when src lives on a
// different filesystem than the store.
func (d *Dir) Move(src, name string) error {
	dst := d.Path(name)
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer f.Close()
	if _, err := d.Write(name, f); err != nil {
		return err
	}
	os.Remove(src)
	return nil
}

// Open returns a reader for the stored file. The error wraps fs.ErrNotExist
// when the file is absent.
func (d *Dir) Open(name string) (io.ReadCloser, error) {
	f, err := os.Open(d.Path(name))
	if err != nil {
		return nil, fmt.Errorf("opening file %s: %w", name, err)
	}
	return f, nil
}

// Delete removes a stored file. It is idempotent: deleting a non-existent
// file returns no error.
func (d *Dir) Delete(name string) error {
	err := os.Remove(d.Path(name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing file %s: %w", name, err)
	}
	return nil
}
