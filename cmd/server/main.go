package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/agenthands/certverify/internal/config"
	"github.com/agenthands/certverify/internal/core"
	"github.com/agenthands/certverify/internal/identifier"
	"github.com/agenthands/certverify/internal/ocr"
	"github.com/agenthands/certverify/internal/raster"
	"github.com/agenthands/certverify/internal/records"
	"github.com/agenthands/certverify/internal/server"
	"github.com/agenthands/certverify/internal/signature"
	"github.com/agenthands/certverify/internal/validate"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Debug("No .env file found, using environment")
	}

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.toml"
	}
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("Config file not found, using defaults", "path", path)
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := records.Load(ctx, cfg, logger)
	if err != nil {
		return err
	}

	text, err := ocr.NewClient(ctx, cfg.OCR)
	if err != nil {
		return err
	}
	defer text.Close()

	var codes identifier.CodeDecoder
	if cfg.Identifier.QREnabled {
		codes = identifier.QRDecoder{}
	}
	ids, err := identifier.NewExtractor(cfg.Identifier.Pattern, cfg.Identifier.QRPattern, codes)
	if err != nil {
		return err
	}

	embedder, err := signature.NewEmbedder(cfg.Signature)
	if err != nil {
		return err
	}
	sig := signature.NewVerifier(embedder, signature.Options{
		Enabled:   cfg.Signature.Enabled,
		Threshold: cfg.Signature.Threshold,
		Timeout:   seconds(cfg.Signature.TimeoutSeconds),
		Region:    cfg.Signature.Region,
		TempDir:   cfg.Signature.TempDir,
	}, logger)

	rasterizer := raster.New(raster.Options{
		DPI:          cfg.Raster.DPI,
		MaxDimension: cfg.Raster.MaxDimension,
		MaxPixels:    cfg.Raster.MaxPixels,
		PDFRenderer:  cfg.Raster.PDFRenderer,
		TempDir:      cfg.Raster.TempDir,
	})

	pipeline := core.NewPipeline(rasterizer, text, ids, store,
		validate.New(cfg.Validation.Fields, logger), sig, seconds(cfg.OCR.TimeoutSeconds), logger)

	srv := server.NewServer(pipeline, store, cfg.Server, logger)
	r := srv.SetupRouter()

	logger.Info("Starting server", "port", cfg.Server.Port, "ocr", cfg.OCR.Provider, "records", store.Len())
	return r.Run(":" + cfg.Server.Port)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
