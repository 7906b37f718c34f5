package mediatype

import "bytes"

// MediaType describes a sniffed file format.
type MediaType struct {
	MIME string
	Ext  string
}

var (
	JPEG = MediaType{MIME: "image/jpeg", Ext: "jpeg"}
	PNG  = MediaType{MIME: "image/png", Ext: "png"}
	GIF  = MediaType{MIME: "image/gif", Ext: "gif"}
	WebP = MediaType{MIME: "image/webp", Ext: "webp"}
	BMP  = MediaType{MIME: "image/bmp", Ext: "bmp"}
	TIFF = MediaType{MIME: "image/tiff", Ext: "tiff"}
	MP4  = MediaType{MIME: "video/mp4", Ext: "mp4"}
	SVG  = MediaType{MIME: "image/svg+xml", Ext: "svg"}
)

// Detect sniffs the leading bytes of a file and returns its true media
// type, independent of any claimed filename or Content-Type. A false
// second return means no known signature matched.
func Detect(data []byte) (MediaType, bool) {
	// JPEG: FF D8 FF
	if len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return JPEG, true
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if len(data) >= 8 && data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 &&
		data[4] == 0x0D && data[5] == 0x0A && data[6] == 0x1A && data[7] == 0x0A {
		return PNG, true
	}
	// GIF: GIF87a or GIF89a
	if len(data) >= 6 && data[0] == 'G' && data[1] == 'I' && data[2] == 'F' {
		return GIF, true
	}
	// WebP: RIFF....WEBP
	if len(data) >= 12 && data[0] == 'R' && data[1] == 'I' && data[2] == 'F' && data[3] == 'F' &&
		data[8] == 'W' && data[9] == 'E' && data[10] == 'B' && data[11] == 'P' {
		return WebP, true
	}
	// BMP: BM
	if len(data) >= 2 && data[0] == 'B' && data[1] == 'M' {
		return BMP, true
	}
	// TIFF: II*\0 (little endian) or MM\0* (big endian)
	if len(data) >= 4 && ((data[0] == 'I' && data[1] == 'I' && data[2] == 0x2A && data[3] == 0x00) ||
		(data[0] == 'M' && data[1] == 'M' && data[2] == 0x00 && data[3] == 0x2A)) {
		return TIFF, true
	}
	// MP4: a box header with an "ftyp" brand at offset 4.
	if len(data) >= 8 && data[4] == 'f' && data[5] == 't' && data[6] == 'y' && data[7] == 'p' {
		return MP4, true
	}
	if isSVG(data) {
		return SVG, true
	}
	return MediaType{}, false
}

// isSVG looks for XML/SVG markers near the beginning of the file.
func isSVG(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	limit := 512
	if len(data) < limit {
		limit = len(data)
	}
	header := data[:limit]
	return bytes.Contains(header, []byte("<svg")) ||
		(bytes.Contains(header, []byte("<?xml")) && bytes.Contains(header, []byte("svg")))
}

// Resizable reports whether assets of this type can go through the raster
// transform path. Everything else is stored and served verbatim.
func (m MediaType) Resizable() bool {
	switch m.Ext {
	case "jpeg", "png", "gif", "bmp", "tiff":
		return true
	}
	return false
}

// Allowed reports whether the type is on the configured allow-list.
func (m MediaType) Allowed(allowed []string) bool {
	for _, a := range allowed {
		if a == m.MIME {
			return true
		}
	}
	return false
}
