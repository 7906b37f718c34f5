package ingest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/leca/imgdrop/internal/database"
	"github.com/leca/imgdrop/internal/imageproc"
	"github.com/leca/imgdrop/internal/mediatype"
	"github.com/leca/imgdrop/internal/model"
	"github.com/leca/imgdrop/internal/naming"
	"github.com/leca/imgdrop/internal/safety"
	"github.com/leca/imgdrop/internal/scratch"
	"github.com/leca/imgdrop/internal/storage"
)

var (
	// ErrUnrecognizedType means no known content signature matched.
	ErrUnrecognizedType = errors.New("ingest: file type could not be determined")

	// ErrDisallowedType means the type was recognized but is not on the
	// configured allow-list.
	ErrDisallowedType = errors.New("ingest: file type not allowed")

	// ErrCollision means the destination filename already exists. Never
	// retried, never overwritten.
	ErrCollision = errors.New("ingest: destination filename already exists")

	// ErrPolicyRejected means the safety classifier vetoed the upload.
	ErrPolicyRejected = errors.New("ingest: upload rejected by safety policy")
)

// Options are the ingestion policy knobs.
type Options struct {
	// OutputType forces raster uploads to this extension; empty keeps the
	// detected type. Passthrough types (svg, mp4, webp) ignore it.
	OutputType string

	AllowedTypes []string
	AllowVideo   bool
}

// Pipeline validates, converts and stores uploads as canonical assets.
type Pipeline struct {
	store   *storage.Dir
	scratch *scratch.Dir
	alloc   *naming.Allocator
	engine  *imageproc.Engine
	gate    *safety.Gate
	ledger  database.Ledger // may be nil
	opts    Options
	log     zerolog.Logger
}

func New(store *storage.Dir, sc *scratch.Dir, alloc *naming.Allocator,
	engine *imageproc.Engine, gate *safety.Gate, ledger database.Ledger,
	opts Options, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:   store,
		scratch: sc,
		alloc:   alloc,
		engine:  engine,
		gate:    gate,
		ledger:  ledger,
		opts:    opts,
		log:     log,
	}
}

// Ingest reads an upload, classifies it by content, converts it to the
// canonical output type and stores it under a freshly allocated name.
// The scratch copy of the source is deleted on every exit path. No partial
// canonical asset is ever left behind on failure.
func (p *Pipeline) Ingest(src io.Reader, filenameHint string) (model.Asset, error) {
	p.scratch.Sweep()

	id, err := p.alloc.Allocate()
	if err != nil {
		return model.Asset{}, err
	}

	tmpPath, size, err := p.scratch.Write(id, src)
	if err != nil {
		return model.Asset{}, err
	}
	defer p.scratch.Remove(tmpPath)

	mt, err := p.classify(tmpPath)
	if err != nil {
		return model.Asset{}, err
	}

	outputExt, passthrough, err := p.resolveOutput(mt, filenameHint)
	if err != nil {
		return model.Asset{}, err
	}

	destName := id + "." + outputExt
	exists, err := p.store.Exists(destName)
	if err != nil {
		return model.Asset{}, err
	}
	if exists {
		return model.Asset{}, fmt.Errorf("%w: %s", ErrCollision, destName)
	}

	if p.gate.Veto(tmpPath) {
		return model.Asset{}, ErrPolicyRejected
	}

	if passthrough {
		err = p.store.Move(tmpPath, destName)
	} else {
		err = p.engine.Convert(tmpPath, p.store.Path(destName), outputExt)
	}
	if err != nil {
		return model.Asset{}, err
	}

	asset := model.Asset{
		ID:        id,
		Ext:       outputExt,
		MediaType: mt.MIME,
		Size:      size,
		Uploaded:  time.Now().UTC(),
	}

	if p.ledger != nil {
		if err := p.ledger.RecordAsset(&asset); err != nil {
			p.log.Warn().Err(err).Str("asset", asset.Filename()).Msg("failed to record asset in ledger")
		}
	}

	p.log.Info().
		Str("asset", asset.Filename()).
		Str("media_type", asset.MediaType).
		Int64("size", asset.Size).
		Msg("asset ingested")

	return asset, nil
}

func (p *Pipeline) classify(path string) (mediatype.MediaType, error) {
	f, err := os.Open(path)
	if err != nil {
		return mediatype.MediaType{}, fmt.Errorf("opening scratch file: %w", err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return mediatype.MediaType{}, fmt.Errorf("reading scratch file: %w", err)
	}

	mt, ok := mediatype.Detect(head[:n])
	if !ok {
		return mediatype.MediaType{}, ErrUnrecognizedType
	}
	if !mt.Allowed(p.opts.AllowedTypes) {
		return mediatype.MediaType{}, fmt.Errorf("%w: %s", ErrDisallowedType, mt.MIME)
	}
	if mt == mediatype.MP4 && !p.opts.AllowVideo {
		return mediatype.MediaType{}, fmt.Errorf("%w: %s", ErrDisallowedType, mt.MIME)
	}
	return mt, nil
}

// resolveOutput picks the stored extension and whether the file bypasses
// raster conversion. Vector content is preserved verbatim whenever either
// the sniffer or the upload's filename hint says svg; video and webp are
// stored verbatim too (webp has no pure-Go encoder). The configured output
// override applies only to the raster path.
func (p *Pipeline) resolveOutput(mt mediatype.MediaType, filenameHint string) (string, bool, error) {
	hintExt := strings.ToLower(strings.TrimPrefix(filepath.Ext(filenameHint), "."))

	switch {
	case mt == mediatype.SVG || hintExt == "svg":
		return "svg", true, nil
	case mt == mediatype.MP4:
		return "mp4", true, nil
	case mt == mediatype.WebP:
		return "webp", true, nil
	}

	out := mt.Ext
	if p.opts.OutputType != "" {
		out = p.opts.OutputType
	}
	if out == "webp" {
		return "", false, fmt.Errorf("%w: no webp encoder", imageproc.ErrUnsupportedFormat)
	}
	return out, false, nil
}
