package signature

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"time"

	"golang.org/x/image/draw"

	"github.com/agenthands/certverify/internal/config"
	"github.com/agenthands/certverify/internal/model"
)

// Result is the outcome of one signature comparison. Distance is nil unless
// both embeddings were computed.
type Result struct {
	Status   model.SignatureStatus
	Distance *float64
}

type Options struct {
	Enabled   bool
	Threshold float64
	Timeout   time.Duration
	Region    config.Region
	TempDir   string
}

type Verifier struct {
	embedder Embedder
	opts     Options
	logger   *slog.Logger
}

func NewVerifier(embedder Embedder, opts Options, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Region.Width <= 0 || opts.Region.Height <= 0 {
		opts.Region = config.Region{Width: 1, Height: 1}
	}
	return &Verifier{embedder: embedder, opts: opts, logger: logger}
}

// NewEmbedder returns the embedder named in cfg.
func NewEmbedder(cfg config.SignatureConfig) (Embedder, error) {
	switch cfg.Embedder {
	case "", "pixel":
		return PixelEmbedder{}, nil
	case "remote":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("signature endpoint is required for the remote embedder")
		}
		return NewRemoteEmbedder(cfg.Endpoint), nil
	}
	return nil, fmt.Errorf("unknown signature embedder: %s", cfg.Embedder)
}

// Verify compares the signature region of doc with the image at referencePath.
// A missing reference is reported as a status, not an error. Errors are
// embedding failures.
func (v *Verifier) Verify(ctx context.Context, doc image.Image, referencePath string) (Result, error) {
	if !v.opts.Enabled {
		return Result{Status: model.SignatureNotApplicable}, nil
	}
	if referencePath == "" {
		return Result{Status: model.SignatureReferenceMissing}, nil
	}
	if _, err := os.Stat(referencePath); err != nil {
		v.logger.Warn("reference signature not available", "path", referencePath, "error", err)
		return Result{Status: model.SignatureReferenceMissing}, nil
	}

	crop, err := v.writeCrop(doc)
	if err != nil {
		return Result{}, err
	}
	defer os.Remove(crop)

	if v.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.opts.Timeout)
		defer cancel()
	}

	got, err := v.embedder.Embed(ctx, crop)
	if err != nil {
		return Result{}, fmt.Errorf("embed document signature: %w", err)
	}
	ref, err := v.embedder.Embed(ctx, referencePath)
	if err != nil {
		return Result{}, fmt.Errorf("embed reference signature: %w", err)
	}
	d, err := Distance(got, ref)
	if err != nil {
		return Result{}, err
	}

	status := model.SignatureForged
	if d < v.opts.Threshold {
		status = model.SignatureGenuine
	}
	return Result{Status: status, Distance: &d}, nil
}

// RegionRect converts the fractional region to pixel bounds inside b. The
// result is never empty for a non-empty b.
func RegionRect(b image.Rectangle, r config.Region) image.Rectangle {
	w, h := float64(b.Dx()), float64(b.Dy())
	raw := image.Rect(
		b.Min.X+int(r.X*w),
		b.Min.Y+int(r.Y*h),
		b.Min.X+int((r.X+r.Width)*w),
		b.Min.Y+int((r.Y+r.Height)*h),
	)
	rect := raw.Intersect(b)
	if rect.Empty() && !b.Empty() {
		x := min(max(raw.Min.X, b.Min.X), b.Max.X-1)
		y := min(max(raw.Min.Y, b.Min.Y), b.Max.Y-1)
		rect = image.Rect(x, y, x+1, y+1)
	}
	return rect
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// cropRegion uses the image's own SubImage when it has one and copies the
// pixels otherwise.
func cropRegion(doc image.Image, rect image.Rectangle) image.Image {
	if s, ok := doc.(subImager); ok {
		return s.SubImage(rect)
	}
	crop := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(crop, crop.Bounds(), doc, rect.Min, draw.Src)
	return crop
}

func (v *Verifier) writeCrop(doc image.Image) (string, error) {
	crop := cropRegion(doc, RegionRect(doc.Bounds(), v.opts.Region))

	f, err := os.CreateTemp(v.opts.TempDir, "signature-*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if err := png.Encode(f, crop); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write signature crop: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
