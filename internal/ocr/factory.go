package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agenthands/certverify/internal/config"
)

// NewClient builds the configured text extraction engine. The engine is
// created once at startup and shared by all requests.
func NewClient(ctx context.Context, cfg config.OCRConfig) (TextExtractor, error) {
	provider := strings.ToLower(cfg.Provider)

	switch provider {
	case "", "tesseract":
		return NewTesseractExtractor(cfg.Languages, cfg.PageSegMode, cfg.DPI), nil

	case "openai":
		return NewOpenAIExtractor(cfg.APIKey, cfg.Model, cfg.BaseURL), nil

	case "gemini":
		return NewGeminiExtractor(ctx, cfg.APIKey, cfg.Model)

	case "claude":
		return NewClaudeExtractor(cfg.APIKey, cfg.Model, cfg.BaseURL), nil

	case "ollama":
		// Ollama serves vision models through its OpenAI-compatible API.
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		if !strings.HasSuffix(baseURL, "/v1") {
			baseURL = fmt.Sprintf("%s/v1", strings.TrimRight(baseURL, "/"))
		}
		slog.Info("Initializing Ollama OCR via OpenAI-compatible API", "baseURL", baseURL, "model", cfg.Model)

		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = "ollama" // ignored by Ollama, required by the client
		}
		return NewOpenAIExtractor(apiKey, cfg.Model, baseURL), nil

	default:
		return nil, fmt.Errorf("unsupported ocr provider: %s", provider)
	}
}
