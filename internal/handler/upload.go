package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/leca/imgdrop/internal/api"
	"github.com/leca/imgdrop/internal/imageproc"
	"github.com/leca/imgdrop/internal/ingest"
	"github.com/leca/imgdrop/internal/naming"
)

// Upload handles POST / -- multipart file upload or remote URL fetch.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.Config.MaxSizeMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Error(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("File exceeds the %dMB limit!", h.Config.MaxSizeMB))
			return
		}
		api.Error(w, http.StatusBadRequest, "Invalid multipart form!")
		return
	}

	var (
		src  io.Reader
		hint string
	)

	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		src = file
		hint = header.Filename
	} else {
		urlStr := r.FormValue("url")
		if urlStr == "" {
			api.Error(w, http.StatusBadRequest, "File is missing!")
			return
		}
		resp, err := http.Get(urlStr)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "Could not fetch URL!")
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			api.Error(w, http.StatusBadRequest, "Could not fetch URL!")
			return
		}
		src = http.MaxBytesReader(w, resp.Body, maxBytes)

		parts := strings.Split(strings.TrimRight(urlStr, "/"), "/")
		hint = parts[len(parts)-1]
	}

	asset, err := h.Pipeline.Ingest(src, hint)
	if err != nil {
		h.writeIngestError(w, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, api.UploadResult{Filename: asset.Filename()})
}

// writeIngestError maps the ingestion error taxonomy onto stable client
// responses. Anything unmapped is an unexpected failure for this request
// only.
func (h *Handler) writeIngestError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ingest.ErrUnrecognizedType):
		api.Error(w, http.StatusBadRequest, "File type could not be determined!")
	case errors.Is(err, ingest.ErrDisallowedType),
		errors.Is(err, imageproc.ErrUnsupportedFormat):
		api.Error(w, http.StatusBadRequest, "Invalid Filetype")
	case errors.Is(err, ingest.ErrCollision):
		api.Error(w, http.StatusConflict, "File already exists!")
	case errors.Is(err, ingest.ErrPolicyRejected):
		api.Error(w, http.StatusBadRequest, "Image did not pass the safety check!")
	case errors.Is(err, naming.ErrAllocationExhausted):
		h.Log.Error().Err(err).Msg("filename allocation exhausted")
		api.Error(w, http.StatusInternalServerError, "Could not allocate a filename!")
	default:
		h.Log.Error().Err(err).Msg("ingestion failed")
		api.Error(w, http.StatusInternalServerError, "Internal server error")
	}
}
