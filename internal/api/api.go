package api

import (
	"encoding/json"
	"log"
	"net/http"
)

// ErrorBody is the error response shape: {"error": "..."}.
type ErrorBody struct {
	Error string `json:"error"`
}

// UploadResult is the success response for an upload: the stored filename,
// from which the caller derives the retrieval URL.
type UploadResult struct {
	Filename string `json:"filename"`
}

// WriteJSON serialises v as JSON and writes it to w with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("WriteJSON: failed to encode response: %v", err)
	}
}

// Error writes a JSON error response with a stable message.
func Error(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorBody{Error: msg})
}
