package handler

import (
	"github.com/rs/zerolog"

	"github.com/leca/imgdrop/internal/config"
	"github.com/leca/imgdrop/internal/database"
	"github.com/leca/imgdrop/internal/ingest"
	"github.com/leca/imgdrop/internal/storage"
	"github.com/leca/imgdrop/internal/variant"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Pipeline *ingest.Pipeline
	Variants *variant.Cache
	Assets   *storage.Dir
	Ledger   database.Ledger // may be nil
	Config   *config.Config
	Log      zerolog.Logger
}
