package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kalambet/reelkit/internal/config"
	"github.com/kalambet/reelkit/internal/decompose"
	"github.com/kalambet/reelkit/internal/dispatch"
	"github.com/kalambet/reelkit/internal/llm"
	"github.com/kalambet/reelkit/internal/resolver"
	"github.com/kalambet/reelkit/internal/script"
	"github.com/kalambet/reelkit/internal/storage"
	"github.com/kalambet/reelkit/internal/store"
	"github.com/kalambet/reelkit/internal/transcribe"
)

// app is the wired pipeline shared by the CLI commands and the server.
type app struct {
	cfg        config.Config
	store      *store.Store
	ledger     *storage.Store
	catalog    *script.Catalog
	dispatcher *dispatch.Dispatcher
}

// loadApp loads configuration and wires the pipeline.
var loadApp = func() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Log.Level)
	return newApp(cfg)
}

func newApp(cfg config.Config) (*app, error) {
	st, err := store.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening video store: %w", err)
	}

	ledger, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening run ledger: %w", err)
	}

	catalog, err := script.LoadCatalog(cfg.Product.Catalog)
	if err != nil {
		ledger.Close()
		return nil, err
	}
	product, err := catalog.Lookup(cfg.Product.Name)
	if err != nil {
		ledger.Close()
		return nil, err
	}

	chat := llm.NewClientWithBaseURL(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model)
	chat.SetTimeout(cfg.LLM.Timeout())

	res := resolver.NewClientWithBaseURL(cfg.Resolver.Token, cfg.Resolver.BaseURL)
	workDir := filepath.Join(cfg.Storage.DataDir, "tmp")
	source := transcribe.NewSource(
		res,
		transcribe.NewClientWithBaseURL(cfg.Transcriber.APIKey, cfg.Transcriber.BaseURL, cfg.Transcriber.Model),
		transcribe.NewVideoAnalyzer(chat),
		workDir,
	)

	var transcripts decompose.TranscriptSource
	if cfg.TranscriptsEnabled() {
		transcripts = source
	} else {
		slog.Debug("transcripts disabled, decompositions use metadata only")
	}

	d := dispatch.New(dispatch.Deps{
		Store:       st,
		Engine:      decompose.NewEngine(chat, st, transcripts),
		Scripts:     script.NewGenerator(chat, script.DefaultSampleSize),
		Ledger:      ledger,
		Resolver:    source,
		Product:     product,
		ArtifactDir: cfg.ArtifactDir(),
	})

	return &app{
		cfg:        cfg,
		store:      st,
		ledger:     ledger,
		catalog:    catalog,
		dispatcher: d,
	}, nil
}

func (a *app) Close() error {
	return a.ledger.Close()
}

// dispatcherFor applies the --product flag, if the command has one.
func (a *app) dispatcherFor(cmd *cobra.Command) (*dispatch.Dispatcher, error) {
	f := cmd.Flags().Lookup("product")
	if f == nil || f.Value.String() == "" {
		return a.dispatcher, nil
	}
	p, err := a.catalog.Lookup(f.Value.String())
	if err != nil {
		return nil, err
	}
	return a.dispatcher.WithProduct(p), nil
}
