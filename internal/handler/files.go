package handler

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/leca/imgdrop/internal/api"
	"github.com/leca/imgdrop/internal/mediatype"
	"github.com/leca/imgdrop/internal/variant"
)

// deleteNamePattern is the strict "name.ext" shape accepted for deletion.
// Anything else (path separators, dots-only names) is refused outright.
var deleteNamePattern = regexp.MustCompile(`^[\w-]+\.\w+$`)

// GetFile handles GET /{filename} -- serves the canonical asset, or a
// lazily cached resized variant when w/h query parameters are present and
// the stored type is resizable.
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	mt, ok, err := h.sniffStored(filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			api.Error(w, http.StatusNotFound, "File not found!")
			return
		}
		h.Log.Error().Err(err).Str("asset", filename).Msg("failed to read asset")
		api.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !ok {
		api.Error(w, http.StatusBadRequest, "File type could not be determined!")
		return
	}

	width, werr := variant.ParseSize(r.URL.Query().Get("w"), h.Config.ValidSizes)
	height, herr := variant.ParseSize(r.URL.Query().Get("h"), h.Config.ValidSizes)
	if werr != nil || herr != nil {
		if len(h.Config.ValidSizes) > 0 {
			api.Error(w, http.StatusBadRequest,
				fmt.Sprintf("size value must be one of %v", h.Config.ValidSizes))
			return
		}
		api.Error(w, http.StatusBadRequest, "Invalid size!")
		return
	}

	// Non-resizable types ignore the size request entirely.
	if (width != 0 || height != 0) && mt.Resizable() {
		h.serveVariant(w, r, filename, width, height)
		return
	}
	http.ServeFile(w, r, h.Assets.Path(filename))
}

func (h *Handler) serveVariant(w http.ResponseWriter, r *http.Request, filename string, width, height int) {
	path, err := h.Variants.GetOrCreate(filename, width, height)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			api.Error(w, http.StatusNotFound, "File not found!")
			return
		}
		h.Log.Error().Err(err).Str("asset", filename).Msg("failed to materialize variant")
		api.Error(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	http.ServeFile(w, r, path)
}

// DeleteFile handles DELETE /{filename}. Deletion is idempotent and never
// cascades to cached variants; existing variants of a deleted asset stay
// servable until something outside the core reclaims them.
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	if deleteNamePattern.MatchString(filename) {
		if err := h.Assets.Delete(filename); err != nil {
			h.Log.Warn().Err(err).Str("asset", filename).Msg("failed to delete asset")
		} else if h.Ledger != nil {
			if err := h.Ledger.RemoveAsset(filename); err != nil {
				h.Log.Warn().Err(err).Str("asset", filename).Msg("failed to remove asset from ledger")
			}
		}
	}
	w.WriteHeader(http.StatusOK)
}

// Liveness handles GET /liveness.
func (h *Handler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// sniffStored re-classifies the stored bytes; extensions are never trusted,
// even on files this service wrote itself.
func (h *Handler) sniffStored(filename string) (mediatype.MediaType, bool, error) {
	f, err := h.Assets.Open(filename)
	if err != nil {
		return mediatype.MediaType{}, false, err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return mediatype.MediaType{}, false, err
	}

	mt, ok := mediatype.Detect(head[:n])
	return mt, ok, nil
}
