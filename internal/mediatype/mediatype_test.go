package mediatype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want MediaType
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, JPEG},
		{"png", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00}, PNG},
		{"gif87a", []byte("GIF87a......"), GIF},
		{"gif89a", []byte("GIF89a......"), GIF},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), WebP},
		{"bmp", []byte("BM\x00\x00\x00\x00"), BMP},
		{"tiff little endian", []byte{'I', 'I', 0x2A, 0x00, 0x01}, TIFF},
		{"tiff big endian", []byte{'M', 'M', 0x00, 0x2A, 0x01}, TIFF},
		{"mp4", []byte("\x00\x00\x00\x18ftypmp42\x00\x00"), MP4},
		{"svg", []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`), SVG},
		{"svg with xml prolog", []byte(`<?xml version="1.0"?><svg></svg>`), SVG},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mt, ok := Detect(tt.data)
			require.True(t, ok)
			assert.Equal(t, tt.want, mt)
		})
	}
}

func TestDetectUnknown(t *testing.T) {
	for _, data := range [][]byte{nil, {}, []byte("hello world"), []byte{0x00, 0x01, 0x02}} {
		_, ok := Detect(data)
		assert.False(t, ok)
	}
}

func TestDetectIgnoresExtensionClaims(t *testing.T) {
	// Content wins: png bytes are png no matter what a client called them.
	data := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00}
	mt, ok := Detect(data)
	require.True(t, ok)
	assert.Equal(t, "image/png", mt.MIME)
}

func TestResizable(t *testing.T) {
	assert.True(t, JPEG.Resizable())
	assert.True(t, PNG.Resizable())
	assert.True(t, GIF.Resizable())
	assert.True(t, BMP.Resizable())
	assert.True(t, TIFF.Resizable())
	assert.False(t, WebP.Resizable())
	assert.False(t, SVG.Resizable())
	assert.False(t, MP4.Resizable())
}

func TestAllowed(t *testing.T) {
	allowed := []string{"image/jpeg", "image/png"}
	assert.True(t, JPEG.Allowed(allowed))
	assert.False(t, GIF.Allowed(allowed))
	assert.False(t, JPEG.Allowed(nil))
}
