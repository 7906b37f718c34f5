package scratch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// filePrefix marks files in the scratch directory as ours. The janitor
// only ever touches files carrying it.
const filePrefix = "imgdrop-"

// Dir is the scratch space for in-flight ingestion sources and transform
// intermediates. Nothing in it is tracked: files are identified purely by
// naming convention and reclaimed by age.
type Dir struct {
	path   string
	maxAge time.Duration
	log    zerolog.Logger
}

func New(path string, maxAge time.Duration, log zerolog.Logger) (*Dir, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("creating scratch directory %s: %w", path, err)
	}
	return &Dir{path: path, maxAge: maxAge, log: log}, nil
}

// Write stores an in-flight upload under the allocated id and returns the
// scratch path and the number of bytes written.
func (d *Dir) Write(id string, data io.Reader) (string, int64, error) {
	path := filepath.Join(d.path, filePrefix+id)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", 0, fmt.Errorf("creating scratch file: %w", err)
	}
	n, err := io.Copy(f, data)
	if err != nil {
		f.Close()
		os.Remove(path)
		return "", 0, fmt.Errorf("writing scratch file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("closing scratch file: %w", err)
	}
	return path, n, nil
}

// Remove deletes a scratch file. Best-effort: a file already gone is fine.
func (d *Dir) Remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		d.log.Warn().Err(err).Str("path", path).Msg("failed to remove scratch file")
	}
}

// Sweep deletes scratch files older than the configured max age. Invoked
// opportunistically before ingestion and variant materialization rather
// than on a timer. All failures are swallowed: this is best-effort hygiene,
// never a correctness requirement.
func (d *Dir) Sweep() {
	matches, err := filepath.Glob(filepath.Join(d.path, filePrefix+"*"))
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-d.maxAge)
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err == nil {
				d.log.Debug().Str("path", path).Msg("reclaimed stale scratch file")
			}
		}
	}
}
