// Command eflengine runs the rate-disclosure engine: the HTTP API over the
// plan store, the background revalidation worker, and operator tooling for
// migrations, users, and tokens.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/watthive/eflengine/internal/config"
	"github.com/watthive/eflengine/internal/efltext"
	"github.com/watthive/eflengine/internal/storage"
)

func main() {
	root := &cobra.Command{
		Use:           "eflengine",
		Short:         "Electricity Facts Label ingest, validation, and bill computation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		serveCmd(),
		workerCmd(),
		migrateCmd(),
		parseCmd(),
		costCmd(),
		userCmd(),
		tokenCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// runtime is the shared startup bundle: parsed environment, logger, and an
// open store. Commands that only need a subset wire their own pieces.
type runtime struct {
	cfg   *config.Config
	log   *zap.Logger
	store storage.Storage
}

func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, storage.Config{
		Driver:      cfg.DB.Driver,
		DSN:         cfg.DB.DSN,
		AutoMigrate: cfg.DB.AutoMigrate,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage (%s): %w", cfg.DB.Driver, err)
	}
	return &runtime{cfg: cfg, log: log, store: store}, nil
}

func (rt *runtime) Close() {
	if err := rt.store.Close(); err != nil {
		rt.log.Warn("storage close failed", zap.Error(err))
	}
	_ = rt.log.Sync()
}

// buildLogger maps the configured level onto a zap production logger.
// "debug" switches to the development encoder for readable local output.
func buildLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	cfg.Level = lvl
	return cfg.Build()
}

// buildExtractor prefers the remote pdftotext service when one is
// configured, falling back to local extraction when it cannot produce text.
func buildExtractor(cfg *config.Config) efltext.Extractor {
	if cfg.PDFText.URL != "" {
		return efltext.NewChain(
			efltext.NewRemote(cfg.PDFText.URL, cfg.PDFText.Token, nil),
			efltext.PDF{},
		)
	}
	return efltext.PDF{}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
