package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/agenthands/certverify/internal/model"
)

type ServerConfig struct {
	Port          string `toml:"port"`
	MaxUploadMB   int    `toml:"max_upload_mb"`
	AllowedOrigin string `toml:"allowed_origin"`
}

type StoreConfig struct {
	// Source is a JSON file path, gs://bucket/object, firestore://project/collection or "memgraph".
	Source string `toml:"source"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type RasterConfig struct {
	DPI          int    `toml:"pdf_dpi"`
	MaxDimension int    `toml:"max_dimension"`
	MaxPixels    int    `toml:"max_pixels"`
	PDFRenderer  string `toml:"pdf_renderer"`
	TempDir      string `toml:"temp_dir"`
}

type OCRConfig struct {
	Provider       string   `toml:"provider"`
	Model          string   `toml:"model"`
	APIKey         string   `toml:"api_key"`
	BaseURL        string   `toml:"base_url"`
	Languages      []string `toml:"languages"`
	PageSegMode    int      `toml:"page_seg_mode"`
	DPI            int      `toml:"dpi"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

type IdentifierConfig struct {
	Pattern   string `toml:"pattern"`
	QRPattern string `toml:"qr_pattern"`
	QREnabled bool   `toml:"qr_enabled"`
}

type ValidationConfig struct {
	Fields []string `toml:"fields"`
}

// Region is a rectangle in fractions of the document width and height.
type Region struct {
	X      float64 `toml:"x"`
	Y      float64 `toml:"y"`
	Width  float64 `toml:"width"`
	Height float64 `toml:"height"`
}

type SignatureConfig struct {
	Enabled        bool    `toml:"enabled"`
	Embedder       string  `toml:"embedder"`
	Endpoint       string  `toml:"endpoint"`
	Threshold      float64 `toml:"threshold"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	Region         Region  `toml:"region"`
	TempDir        string  `toml:"temp_dir"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type Config struct {
	Server     ServerConfig     `toml:"server"`
	Store      StoreConfig      `toml:"store"`
	Memgraph   MemgraphConfig   `toml:"memgraph"`
	Raster     RasterConfig     `toml:"raster"`
	OCR        OCRConfig        `toml:"ocr"`
	Identifier IdentifierConfig `toml:"identifier"`
	Validation ValidationConfig `toml:"validation"`
	Signature  SignatureConfig  `toml:"signature"`
	Log        LogConfig        `toml:"log"`
}

// Default identifier patterns: "CER ID: <11 digits>" with O/I tolerated in
// place of 0/1, and a bare ID as a QR payload.
const (
	DefaultPattern   = `(?i)CER\s*ID\s*:\s*([0-9OI]{11})`
	DefaultQRPattern = `^\s*([0-9OI]{11})\s*$`
)

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          "5001",
			MaxUploadMB:   16,
			AllowedOrigin: "*",
		},
		Store: StoreConfig{Source: "database.json"},
		Memgraph: MemgraphConfig{
			URI: "bolt://localhost:7687",
		},
		Raster: RasterConfig{
			DPI:          100,
			MaxDimension: 1024,
			MaxPixels:    40_000_000,
			PDFRenderer:  "auto",
		},
		OCR: OCRConfig{
			Provider:       "tesseract",
			Languages:      []string{"eng"},
			TimeoutSeconds: 60,
		},
		Identifier: IdentifierConfig{
			Pattern:   DefaultPattern,
			QRPattern: DefaultQRPattern,
			QREnabled: true,
		},
		Validation: ValidationConfig{
			Fields: append([]string(nil), model.DefaultFields...),
		},
		Signature: SignatureConfig{
			Enabled:        true,
			Embedder:       "pixel",
			Threshold:      60.0,
			TimeoutSeconds: 30,
			Region:         Region{X: 0, Y: 0, Width: 1, Height: 1},
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads a TOML file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides file values with environment variables when present.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("RECORDS_SOURCE"); v != "" {
		c.Store.Source = v
	}
	if v := os.Getenv("MEMGRAPH_URI"); v != "" {
		c.Memgraph.URI = v
	}
	if v := os.Getenv("MEMGRAPH_USER"); v != "" {
		c.Memgraph.User = v
	}
	if v := os.Getenv("MEMGRAPH_PASSWORD"); v != "" {
		c.Memgraph.Password = v
	}
	if v := os.Getenv("OCR_PROVIDER"); v != "" {
		c.OCR.Provider = v
	}
	if v := os.Getenv("OCR_MODEL"); v != "" {
		c.OCR.Model = v
	}
	if v := os.Getenv("OCR_API_KEY"); v != "" {
		c.OCR.APIKey = v
	}
	if v := os.Getenv("OCR_BASE_URL"); v != "" {
		c.OCR.BaseURL = v
	}
	if v := os.Getenv("SIGNATURE_EMBEDDER"); v != "" {
		c.Signature.Embedder = v
	}
	if v := os.Getenv("SIGNATURE_ENDPOINT"); v != "" {
		c.Signature.Endpoint = v
	}
	if v := os.Getenv("SIGNATURE_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid SIGNATURE_THRESHOLD %q: %w", v, err)
		}
		c.Signature.Threshold = f
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Raster.DPI <= 0 {
		return fmt.Errorf("raster.pdf_dpi must be positive, got %d", c.Raster.DPI)
	}
	if c.Raster.MaxDimension < 0 {
		return fmt.Errorf("raster.max_dimension must not be negative, got %d", c.Raster.MaxDimension)
	}
	if c.Raster.MaxPixels < 0 {
		return fmt.Errorf("raster.max_pixels must not be negative, got %d", c.Raster.MaxPixels)
	}
	switch c.Raster.PDFRenderer {
	case "auto", "pdftoppm", "embedded":
	default:
		return fmt.Errorf("unknown raster.pdf_renderer %q", c.Raster.PDFRenderer)
	}

	switch strings.ToLower(c.OCR.Provider) {
	case "", "tesseract", "openai", "ollama", "gemini", "claude":
	default:
		return fmt.Errorf("unsupported ocr provider: %s", c.OCR.Provider)
	}
	if c.OCR.TimeoutSeconds < 0 {
		return fmt.Errorf("ocr.timeout_seconds must not be negative")
	}

	if err := checkPattern("identifier.pattern", c.Identifier.Pattern); err != nil {
		return err
	}
	if c.Identifier.QRPattern != "" {
		if err := checkPattern("identifier.qr_pattern", c.Identifier.QRPattern); err != nil {
			return err
		}
	}

	if len(c.Validation.Fields) == 0 {
		return fmt.Errorf("validation.fields must not be empty")
	}
	for _, f := range c.Validation.Fields {
		if !model.KnownField(f) {
			return fmt.Errorf("unknown validation field %q", f)
		}
	}

	if c.Signature.Threshold < 0 {
		return fmt.Errorf("signature.threshold must not be negative, got %v", c.Signature.Threshold)
	}
	switch c.Signature.Embedder {
	case "pixel":
	case "remote":
		if c.Signature.Enabled && c.Signature.Endpoint == "" {
			return fmt.Errorf("signature.endpoint is required for the remote embedder")
		}
	default:
		return fmt.Errorf("unknown signature.embedder %q", c.Signature.Embedder)
	}
	r := c.Signature.Region
	if r.X < 0 || r.Y < 0 || r.Width <= 0 || r.Height <= 0 || r.X+r.Width > 1+1e-9 || r.Y+r.Height > 1+1e-9 {
		return fmt.Errorf("signature.region %+v must lie inside the unit square", r)
	}
	return nil
}

func checkPattern(name, pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if re.NumSubexp() != 1 {
		return fmt.Errorf("%s must have exactly one capture group, has %d", name, re.NumSubexp())
	}
	return nil
}
