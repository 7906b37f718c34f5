package main

import (
	"net/http"
	"os"

	"github.com/rs/zerolog"

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

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg := config.Load()

	assets, err := storage.NewDir(cfg.ImagesDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open images directory")
	}
	cache, err := storage.NewDir(cfg.CacheDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open cache directory")
	}
	sc, err := scratch.New(cfg.TmpDir, cfg.MaxTmpFileAge, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open scratch directory")
	}

	var ledger database.Ledger
	if cfg.DBPath != "" {
		sq, err := database.NewSQLiteLedger(cfg.DBPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open upload ledger")
		}
		defer sq.Close()
		ledger = sq
	}

	engine := imageproc.NewEngine(cfg.ResizeTimeout)
	alloc := naming.New(cfg.NameStrategy, assets)

	// The safety classifier is an external capability; nothing ships with
	// the server, so the gate stays disabled unless one is wired in here.
	gate := safety.NewGate(nil, cfg.NudeFilterMaxThreshold, log)

	pipeline := ingest.New(assets, sc, alloc, engine, gate, ledger, ingest.Options{
		OutputType:   cfg.OutputType,
		AllowedTypes: cfg.AllowedTypes,
		AllowVideo:   cfg.AllowVideo,
	}, log)

	variants := variant.NewCache(assets, cache, sc, engine, log)

	h := &handler.Handler{
		Pipeline: pipeline,
		Variants: variants,
		Assets:   assets,
		Ledger:   ledger,
		Config:   cfg,
		Log:      log,
	}

	log.Info().Str("addr", cfg.ListenAddr).Msg("starting server")
	if err := http.ListenAndServe(cfg.ListenAddr, router.New(h, cfg, log)); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}
