package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries all runtime settings, loaded from IMGDROP_* environment
// variables. Defaults match a standalone container deployment.
type Config struct {
	ListenAddr string

	// ImagesDir holds canonical assets, CacheDir the resized variants,
	// TmpDir the ingestion scratch space. All three are flat directories.
	ImagesDir string
	CacheDir  string
	TmpDir    string

	// DBPath is the sqlite upload ledger. Empty disables the ledger
	// (and with it the accounting behind /metrics and /stats).
	DBPath string

	// OutputType forces every raster upload to this extension.
	// Empty keeps the detected type.
	OutputType string

	// NameStrategy is "randomstr" (5-char id, collision-checked) or
	// "uuidv4" (no existence check needed).
	NameStrategy string

	MaxTmpFileAge time.Duration
	ResizeTimeout time.Duration

	AllowedTypes []string
	AllowVideo   bool

	// ValidSizes restricts the w/h query values; empty allows any.
	ValidSizes []int

	MaxSizeMB int64

	// NudeFilterMaxThreshold vetoes uploads scoring at or above it.
	// Zero disables the safety gate.
	NudeFilterMaxThreshold float64

	AuthToken      string
	AllowedOrigins []string

	MaxUploadsPerMinute int
}

// DefaultAllowedTypes is the media-type allow-list used when
// IMGDROP_ALLOWED_TYPES is unset. video/mp4 is additionally gated
// behind AllowVideo.
var DefaultAllowedTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"image/bmp",
	"image/tiff",
	"image/svg+xml",
	"video/mp4",
}

func Load() *Config {
	return &Config{
		ListenAddr:             getEnv("IMGDROP_LISTEN_ADDR", ":5000"),
		ImagesDir:              getEnv("IMGDROP_IMAGES_DIR", "/images"),
		CacheDir:               getEnv("IMGDROP_CACHE_DIR", "/cache"),
		TmpDir:                 getEnv("IMGDROP_TMP_DIR", os.TempDir()),
		DBPath:                 getEnv("IMGDROP_DB_PATH", ""),
		OutputType:             getEnv("IMGDROP_OUTPUT_TYPE", ""),
		NameStrategy:           getEnv("IMGDROP_NAME_STRATEGY", "randomstr"),
		MaxTmpFileAge:          getEnvDuration("IMGDROP_MAX_TMP_FILE_AGE", 5*time.Minute),
		ResizeTimeout:          getEnvDuration("IMGDROP_RESIZE_TIMEOUT", 5*time.Second),
		AllowedTypes:           getEnvList("IMGDROP_ALLOWED_TYPES", DefaultAllowedTypes),
		AllowVideo:             getEnv("IMGDROP_ALLOW_VIDEO", "") == "true",
		ValidSizes:             getEnvInts("IMGDROP_VALID_SIZES", nil),
		MaxSizeMB:              int64(getEnvInt("IMGDROP_MAX_SIZE_MB", 16)),
		NudeFilterMaxThreshold: getEnvFloat("IMGDROP_NUDE_FILTER_MAX_THRESHOLD", 0),
		AuthToken:              getEnv("IMGDROP_AUTH_TOKEN", ""),
		AllowedOrigins:         getEnvList("IMGDROP_ALLOWED_ORIGINS", []string{"*"}),
		MaxUploadsPerMinute:    getEnvInt("IMGDROP_MAX_UPLOADS_PER_MINUTE", 20),
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

// getEnvDuration accepts either a Go duration string ("5m") or a bare
// number of seconds ("300"), matching older deployments.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvInts(key string, defaultValue []int) []int {
	var out []int
	for _, s := range getEnvList(key, nil) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return defaultValue
		}
		out = append(out, n)
	}
	if out == nil {
		return defaultValue
	}
	return out
}
