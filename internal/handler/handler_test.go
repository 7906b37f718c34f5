package handler_test

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leca/imgdrop/internal/config"
	"github.com/leca/imgdrop/internal/database"
	"github.com/leca/imgdrop/internal/handler"
	"github.com/leca/imgdrop/internal/imageproc"
	"github.com/leca/imgdrop/internal/ingest"
	"github.com/leca/imgdrop/internal/naming"
	"github.com/leca/imgdrop/internal/router"
	"github.com/leca/imgdrop/internal/safety"
	"github.com/leca/imgdrop/internal/scratch"
	"github.com/leca/imgdrop/internal/storage"
	"github.com/leca/imgdrop/internal/variant"
)

type testServer struct {
	handler http.Handler
	cfg     *config.Config
	assets  *storage.Dir
	cache   *storage.Dir
}

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) *testServer {
	t.Helper()

	cfg := &config.Config{
		ImagesDir:           t.TempDir(),
		CacheDir:            t.TempDir(),
		TmpDir:              t.TempDir(),
		DBPath:              filepath.Join(t.TempDir(), "ledger.db"),
		NameStrategy:        naming.StrategyRandomStr,
		MaxTmpFileAge:       5 * time.Minute,
		ResizeTimeout:       5 * time.Second,
		AllowedTypes:        config.DefaultAllowedTypes,
		MaxSizeMB:           16,
		AllowedOrigins:      []string{"*"},
		MaxUploadsPerMinute: 1000,
	}
	if mutate != nil {
		mutate(cfg)
	}

	log := zerolog.Nop()

	assets, err := storage.NewDir(cfg.ImagesDir)
	require.NoError(t, err)
	cache, err := storage.NewDir(cfg.CacheDir)
	require.NoError(t, err)
	sc, err := scratch.New(cfg.TmpDir, cfg.MaxTmpFileAge, log)
	require.NoError(t, err)

	var ledger database.Ledger
	if cfg.DBPath != "" {
		sq, err := database.NewSQLiteLedger(cfg.DBPath)
		require.NoError(t, err)
		t.Cleanup(func() { sq.Close() })
		ledger = sq
	}

	engine := imageproc.NewEngine(cfg.ResizeTimeout)
	alloc := naming.New(cfg.NameStrategy, assets)
	gate := safety.NewGate(nil, cfg.NudeFilterMaxThreshold, log)

	pipeline := ingest.New(assets, sc, alloc, engine, gate, ledger, ingest.Options{
		OutputType:   cfg.OutputType,
		AllowedTypes: cfg.AllowedTypes,
		AllowVideo:   cfg.AllowVideo,
	}, log)

	h := &handler.Handler{
		Pipeline: pipeline,
		Variants: variant.NewCache(assets, cache, sc, engine, log),
		Assets:   assets,
		Ledger:   ledger,
		Config:   cfg,
		Log:      log,
	}

	return &testServer{
		handler: router.New(h, cfg, log),
		cfg:     cfg,
		assets:  assets,
		cache:   cache,
	}
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func (ts *testServer) upload(t *testing.T, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, "file", filename, data)
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) uploadOK(t *testing.T, filename string, data []byte) string {
	t.Helper()
	rec := ts.upload(t, filename, data)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	var result struct {
		Filename string `json:"filename"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotEmpty(t, result.Filename)
	return result.Filename
}

func (ts *testServer) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img.Bounds().Dx(), img.Bounds().Dy()
}

// ---------------------------------------------------------------------------
// Upload + fetch
// ---------------------------------------------------------------------------

func TestUploadAndFetch(t *testing.T) {
	ts := newTestServer(t, nil)

	filename := ts.uploadOK(t, "photo.jpg", jpegBytes(t, 400, 200))
	assert.Regexp(t, `^[A-Za-z0-9]{5}\.jpeg$`, filename)

	rec := ts.get(t, "/"+filename)
	require.Equal(t, http.StatusOK, rec.Code)
	w, h := decodeSize(t, rec.Body.Bytes())
	assert.Equal(t, 400, w)
	assert.Equal(t, 200, h)
}

func TestUploadUnrecognizedType(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.upload(t, "file.bin", []byte("definitely not an image"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "File type could not be determined!")
}

func TestUploadMissingFile(t *testing.T) {
	ts := newTestServer(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "File is missing!")
}

func TestUploadFromURL(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBytes(t, 30, 30))
	}))
	defer origin.Close()

	ts := newTestServer(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("url", origin.URL+"/remote.png"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	assert.Contains(t, rec.Body.String(), ".png")
}

func TestFetchNotFound(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.get(t, "/zzzzz.jpeg")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "File not found!")
}

func TestReferrerPolicyHeader(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.get(t, "/liveness")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-referrer-when-downgrade", rec.Header().Get("Referrer-Policy"))
}

// ---------------------------------------------------------------------------
// Variants
// ---------------------------------------------------------------------------

func TestFetchResizedVariant(t *testing.T) {
	ts := newTestServer(t, nil)
	filename := ts.uploadOK(t, "photo.jpg", jpegBytes(t, 400, 200))

	rec := ts.get(t, "/"+filename+"?w=100&h=100")
	require.Equal(t, http.StatusOK, rec.Code)
	w, h := decodeSize(t, rec.Body.Bytes())
	assert.Equal(t, 100, w)
	assert.Equal(t, 100, h)

	// The variant must be cached under its deterministic key.
	key := variant.Key(filename, 100, 100)
	exists, err := ts.cache.Exists(key)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFetchVariantDerivedHeight(t *testing.T) {
	ts := newTestServer(t, nil)
	filename := ts.uploadOK(t, "photo.jpg", jpegBytes(t, 400, 200))

	rec := ts.get(t, "/"+filename+"?w=300")
	require.Equal(t, http.StatusOK, rec.Code)
	w, h := decodeSize(t, rec.Body.Bytes())
	assert.Equal(t, 300, w)
	assert.Equal(t, 150, h)
}

func TestFetchInvalidSize(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.ValidSizes = []int{100, 200}
	})
	filename := ts.uploadOK(t, "photo.jpg", jpegBytes(t, 400, 200))

	rec := ts.get(t, "/"+filename+"?w=150")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "size value must be one of")
}

func TestFetchSVGIgnoresSize(t *testing.T) {
	ts := newTestServer(t, nil)
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"/>`)
	filename := ts.uploadOK(t, "logo.svg", svg)

	rec := ts.get(t, "/"+filename+"?w=100&h=100")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, svg, rec.Body.Bytes(), "non-resizable types serve the original")
}

// ---------------------------------------------------------------------------
// Delete
// ---------------------------------------------------------------------------

func TestDeleteAsset(t *testing.T) {
	ts := newTestServer(t, nil)
	filename := ts.uploadOK(t, "photo.jpg", jpegBytes(t, 50, 50))

	req := httptest.NewRequest(http.MethodDelete, "/"+filename, nil)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.get(t, "/"+filename)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteDoesNotCascadeToVariants(t *testing.T) {
	ts := newTestServer(t, nil)
	filename := ts.uploadOK(t, "photo.jpg", jpegBytes(t, 400, 200))

	// Materialize a variant, then delete the asset.
	rec := ts.get(t, "/"+filename+"?w=100&h=100")
	require.Equal(t, http.StatusOK, rec.Code)
	firstBody := append([]byte(nil), rec.Body.Bytes()...)

	req := httptest.NewRequest(http.MethodDelete, "/"+filename, nil)
	del := httptest.NewRecorder()
	ts.handler.ServeHTTP(del, req)
	require.Equal(t, http.StatusOK, del.Code)

	rec = ts.get(t, "/"+filename)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// The orphaned variant file survives in the cache store.
	key := variant.Key(filename, 100, 100)
	exists, err := ts.cache.Exists(key)
	require.NoError(t, err)
	assert.True(t, exists, "deletion must not cascade to cached variants")

	rc, err := ts.cache.Open(key)
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, firstBody, got)
}

func TestDeleteIsIdempotent(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodDelete, "/zzzzz.jpeg", nil)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteRejectsOddNames(t *testing.T) {
	ts := newTestServer(t, nil)
	filename := ts.uploadOK(t, "photo.jpg", jpegBytes(t, 20, 20))

	// A name that fails the strict pattern is ignored, not deleted.
	req := httptest.NewRequest(http.MethodDelete, "/bad..name", nil)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	exists, err := ts.assets.Exists(filename)
	require.NoError(t, err)
	assert.True(t, exists)
}

// ---------------------------------------------------------------------------
// Auth, metrics, stats
// ---------------------------------------------------------------------------

func TestUploadRequiresAuthWhenConfigured(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.AuthToken = "sekrit"
	})

	rec := ts.upload(t, "photo.jpg", jpegBytes(t, 10, 10))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body, contentType := multipartBody(t, "file", "photo.jpg", jpegBytes(t, 10, 10))
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer sekrit")
	ok := httptest.NewRecorder()
	ts.handler.ServeHTTP(ok, req)
	assert.Equal(t, http.StatusOK, ok.Code)

	// Retrieval stays open.
	rec = ts.get(t, "/liveness")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.uploadOK(t, "a.jpg", jpegBytes(t, 10, 10))
	ts.uploadOK(t, "b.jpg", jpegBytes(t, 10, 10))

	rec := ts.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `directory_count{service="imgdrop", extension="jpeg", mime_type="image/jpeg"} 2`)
	assert.Contains(t, body, "directory_size")
}

func TestStats(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.uploadOK(t, "a.jpg", jpegBytes(t, 10, 10))

	rec := ts.get(t, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Count)
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.MaxUploadsPerMinute = 2
	})

	data := jpegBytes(t, 10, 10)
	assert.Equal(t, http.StatusOK, ts.upload(t, "a.jpg", data).Code)
	assert.Equal(t, http.StatusOK, ts.upload(t, "b.jpg", data).Code)
	assert.Equal(t, http.StatusTooManyRequests, ts.upload(t, "c.jpg", data).Code)
}
