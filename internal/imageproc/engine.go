package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"math"
	"os"
	"time"

	"github.com/disintegration/imaging"
	"github.com/leca/imgdrop/internal/mediatype"
)

// ErrUnsupportedFormat is returned when the codec cannot perform the
// requested conversion. It is the only conversion-time error surfaced to
// clients; anything else is treated as unexpected.
var ErrUnsupportedFormat = errors.New("imageproc: unsupported format")

const jpegQuality = 85

// Engine performs format conversion, animation flattening and the
// aspect-fit crop+resample. Re-encoding through Go's image codecs is
// itself the metadata strip: none of them emit EXIF, ICC profiles or
// comment chunks.
type Engine struct {
	resizeTimeout time.Duration
}

func NewEngine(resizeTimeout time.Duration) *Engine {
	return &Engine{resizeTimeout: resizeTimeout}
}

// Convert transcodes the file at srcPath into outputExt at dstPath.
// Animated sources keep all frames only when the target format supports
// animation (gif); otherwise the first frame is retained. The destination
// is created exclusively and never overwritten.
func (e *Engine) Convert(srcPath, dstPath, outputExt string) error {
	format, err := imaging.FormatFromExtension(outputExt)
	if err != nil {
		return fmt.Errorf("%w: no encoder for %q", ErrUnsupportedFormat, outputExt)
	}

	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}

	var out []byte
	if mt, ok := mediatype.Detect(data); ok && mt == mediatype.GIF && format == imaging.GIF {
		// gif-to-gif keeps the full frame sequence.
		g, err := gif.DecodeAll(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("%w: decoding gif: %v", ErrUnsupportedFormat, err)
		}
		var buf bytes.Buffer
		if err := gif.EncodeAll(&buf, g); err != nil {
			return fmt.Errorf("encoding gif: %w", err)
		}
		out = buf.Bytes()
	} else {
		// image.Decode reads only the first frame, which is exactly the
		// flattening wanted for non-animated targets.
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("%w: decoding source: %v", ErrUnsupportedFormat, err)
		}
		out, err = encode(img, format)
		if err != nil {
			return err
		}
	}

	return writeExclusive(dstPath, out)
}

// ResizeCropFit crops img to the requested aspect ratio, centered on the
// original, then resamples to exactly width x height. Either dimension may
// be zero, in which case it is derived from the source aspect ratio; at
// least one must be set (enforced upstream). The resample step is bounded
// by the engine's wall-clock timeout: on expiry the cropped-but-unscaled
// image is returned as-is. Callers always receive an image, possibly not
// at the exact target size.
func (e *Engine) ResizeCropFit(img image.Image, width, height int) image.Image {
	srcW := img.Bounds().Dx()
	srcH := img.Bounds().Dy()

	width, height, cropRect := cropPlan(srcW, srcH, width, height)
	cropped := imaging.Crop(img, cropRect)

	done := make(chan *image.NRGBA, 1)
	go func() {
		done <- imaging.Resize(cropped, width, height, imaging.NearestNeighbor)
	}()
	select {
	case resized := <-done:
		return resized
	case <-time.After(e.resizeTimeout):
		return cropped
	}
}

// RenderVariant reads the asset at srcPath, applies the crop-to-fill
// resize, and returns the encoded bytes in the asset's own format.
// Animated gifs are resized frame by frame.
func (e *Engine) RenderVariant(srcPath string, width, height int) ([]byte, error) {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, fmt.Errorf("reading asset: %w", err)
	}

	mt, ok := mediatype.Detect(data)
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized asset content", ErrUnsupportedFormat)
	}

	if mt == mediatype.GIF {
		g, err := gif.DecodeAll(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: decoding gif: %v", ErrUnsupportedFormat, err)
		}
		var buf bytes.Buffer
		if err := gif.EncodeAll(&buf, e.resizeGIF(g, width, height)); err != nil {
			return nil, fmt.Errorf("encoding gif: %w", err)
		}
		return buf.Bytes(), nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding asset: %v", ErrUnsupportedFormat, err)
	}

	format, err := imaging.FormatFromExtension(mt.Ext)
	if err != nil {
		return nil, fmt.Errorf("%w: no encoder for %q", ErrUnsupportedFormat, mt.Ext)
	}

	return encode(e.ResizeCropFit(img, width, height), format)
}

// resizeGIF applies the crop-to-fill resize to every frame of an animated
// gif. Frames are composited onto a running canvas first so that partial
// (delta) frames crop correctly. The resample loop shares the engine's
// timeout: on expiry the cropped-but-unscaled frames are kept.
func (e *Engine) resizeGIF(g *gif.GIF, width, height int) *gif.GIF {
	srcW := g.Config.Width
	srcH := g.Config.Height
	if srcW == 0 || srcH == 0 {
		b := g.Image[0].Bounds()
		srcW, srcH = b.Dx(), b.Dy()
	}

	width, height, cropRect := cropPlan(srcW, srcH, width, height)

	canvas := image.NewNRGBA(image.Rect(0, 0, srcW, srcH))
	cropped := make([]*image.NRGBA, 0, len(g.Image))
	for _, frame := range g.Image {
		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
		cropped = append(cropped, imaging.Crop(canvas, cropRect))
	}

	frames := cropped
	done := make(chan []*image.NRGBA, 1)
	go func() {
		resized := make([]*image.NRGBA, len(cropped))
		for i, f := range cropped {
			resized[i] = imaging.Resize(f, width, height, imaging.NearestNeighbor)
		}
		done <- resized
	}()
	select {
	case frames = <-done:
	case <-time.After(e.resizeTimeout):
	}

	outW := frames[0].Bounds().Dx()
	outH := frames[0].Bounds().Dy()

	out := &gif.GIF{
		Image:     make([]*image.Paletted, len(frames)),
		Delay:     g.Delay,
		LoopCount: g.LoopCount,
		Config:    image.Config{Width: outW, Height: outH},
	}
	for i, frame := range frames {
		p := image.NewPaletted(image.Rect(0, 0, outW, outH), palette.Plan9)
		draw.FloydSteinberg.Draw(p, p.Bounds(), frame, frame.Bounds().Min)
		out.Image[i] = p
	}
	return out
}

// cropPlan derives missing target dimensions from the source aspect ratio
// and computes the centered crop window that matches the target ratio
// exactly. Cropping never letterboxes: the window always fills one source
// axis completely.
func cropPlan(srcW, srcH, width, height int) (int, int, image.Rectangle) {
	ar := float64(srcW) / float64(srcH)

	if width == 0 {
		width = round(ar * float64(height))
	}
	if height == 0 {
		height = round(float64(width) / ar)
	}

	desired := float64(width) / float64(height)

	var rect image.Rectangle
	if desired > ar {
		// Target is wider than the source: trim height, keep full width.
		newH := round(float64(srcW) / desired)
		top := round(float64(srcH)/2 - float64(newH)/2)
		rect = image.Rect(0, top, srcW, top+newH)
	} else {
		newW := round(float64(srcH) * desired)
		left := round(float64(srcW)/2 - float64(newW)/2)
		rect = image.Rect(left, 0, left+newW, srcH)
	}
	return width, height, rect
}

func round(f float64) int {
	return int(math.Round(f))
}

func encode(img image.Image, format imaging.Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, fmt.Errorf("encoding image: %w", err)
	}
	return buf.Bytes(), nil
}

// writeExclusive creates path with O_EXCL so an existing file is never
// overwritten, backing the store's collision invariant.
func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
