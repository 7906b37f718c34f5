package variant

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/leca/imgdrop/internal/imageproc"
	"github.com/leca/imgdrop/internal/scratch"
	"github.com/leca/imgdrop/internal/storage"
)

// Key returns the deterministic cache filename for an asset and a size
// request: "{id}_{w}x{h}.{ext}", where an unspecified axis renders as the
// empty string. The key is a total function of its inputs; it never
// contains a timestamp or random component.
func Key(assetName string, width, height int) string {
	base := assetName
	ext := ""
	if i := strings.LastIndex(assetName, "."); i >= 0 {
		base = assetName[:i]
		ext = assetName[i:]
	}
	return fmt.Sprintf("%s_%sx%s%s", base, dim(width), dim(height), ext)
}

func dim(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// Cache lazily materializes resized copies of canonical assets. Variants
// never expire and are never invalidated once written. There is no lock
// between the existence check and the write: two concurrent first-accesses
// may both compute the variant and both write the same key. The transform
// is deterministic and the store's writes are atomic, so the race costs
// duplicate work, never corruption.
type Cache struct {
	assets  *storage.Dir
	cache   *storage.Dir
	scratch *scratch.Dir
	engine  *imageproc.Engine
	log     zerolog.Logger
}

func NewCache(assets, cache *storage.Dir, sc *scratch.Dir, engine *imageproc.Engine, log zerolog.Logger) *Cache {
	return &Cache{assets: assets, cache: cache, scratch: sc, engine: engine, log: log}
}

// GetOrCreate returns the on-disk path of the variant for (assetName,
// width, height), computing and persisting it on first access. At least
// one of width/height must be non-zero (enforced upstream).
func (c *Cache) GetOrCreate(assetName string, width, height int) (string, error) {
	key := Key(assetName, width, height)

	exists, err := c.cache.Exists(key)
	if err != nil {
		return "", err
	}
	if exists {
		return c.cache.Path(key), nil
	}

	c.scratch.Sweep()

	data, err := c.engine.RenderVariant(c.assets.Path(assetName), width, height)
	if err != nil {
		return "", err
	}
	if _, err := c.cache.Write(key, bytes.NewReader(data)); err != nil {
		return "", err
	}

	c.log.Debug().Str("variant", key).Msg("variant materialized")
	return c.cache.Path(key), nil
}
