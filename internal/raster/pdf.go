package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

func init() {
	// pdfcpu otherwise creates a config directory under the user's home.
	api.DisableConfigDir()
}

func selectRenderer(opts Options) pageRenderer {
	poppler := &pdftoppmRenderer{
		dpi:       opts.DPI,
		maxDim:    opts.MaxDimension,
		maxPixels: opts.MaxPixels,
		tempDir:   opts.TempDir,
	}
	switch opts.PDFRenderer {
	case RendererPdftoppm:
		return poppler
	case RendererEmbedded:
		return embeddedRenderer{maxPixels: opts.MaxPixels}
	}
	if _, err := exec.LookPath("pdftoppm"); err == nil {
		return poppler
	}
	slog.Warn("pdftoppm not found on PATH, PDFs will be rasterized from their embedded page images")
	return embeddedRenderer{maxPixels: opts.MaxPixels}
}

func pdfConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// firstPageDims returns the media box of page 1 in points.
func firstPageDims(data []byte, conf *model.Configuration) (types.Dim, error) {
	dims, err := api.PageDims(bytes.NewReader(data), conf)
	if err != nil {
		return types.Dim{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(dims) == 0 {
		return types.Dim{}, fmt.Errorf("%w: document has no pages", ErrDecode)
	}
	return dims[0], nil
}

// embeddedRenderer takes the largest image drawn on page 1. Scanned
// certificates are a single full-page image, so this matches the rendered page
// without needing a PDF rendering engine.
type embeddedRenderer struct {
	maxPixels int
}

func (r embeddedRenderer) RenderFirstPage(ctx context.Context, data []byte) (image.Image, error) {
	conf := pdfConfig()
	if _, err := firstPageDims(data, conf); err != nil {
		return nil, err
	}

	var (
		best     image.Image
		bestArea int
		lastErr  error
	)
	digest := func(img model.Image, _ bool, _ int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, err := io.ReadAll(img)
		if err != nil {
			lastErr = fmt.Errorf("read %s image %s: %w", img.FileType, img.Name, err)
			return nil
		}
		decoded, err := decodeBounded(raw, r.maxPixels)
		if err != nil {
			lastErr = fmt.Errorf("%s image %s: %w", img.FileType, img.Name, err)
			return nil
		}
		b := decoded.Bounds()
		if area := b.Dx() * b.Dy(); area > bestArea {
			best, bestArea = decoded, area
		}
		return nil
	}
	if err := api.ExtractImages(bytes.NewReader(data), []string{"1"}, digest, conf); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: extract page images: %v", ErrDecode, err)
	}
	if best == nil {
		if lastErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, lastErr)
		}
		return nil, fmt.Errorf("%w: first page has no raster content", ErrDecode)
	}
	return best, nil
}

// pdftoppmRenderer renders the first page with poppler's pdftoppm. Pages that
// would come out larger than maxDim at the configured DPI are rendered
// straight to that size with -scale-to.
type pdftoppmRenderer struct {
	dpi       int
	maxDim    int
	maxPixels int
	tempDir   string
}

// outputSize is the pixel size pdftoppm produces for a page of d points.
func (r *pdftoppmRenderer) outputSize(d types.Dim) (w, h int, scaled bool) {
	w = int(math.Ceil(d.Width * float64(r.dpi) / 72))
	h = int(math.Ceil(d.Height * float64(r.dpi) / 72))
	if r.maxDim > 0 && max(w, h) > r.maxDim {
		w, h = scaleFor(w, h, r.maxDim)
		return w, h, true
	}
	return w, h, false
}

func (r *pdftoppmRenderer) RenderFirstPage(ctx context.Context, data []byte) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dim, err := firstPageDims(data, pdfConfig())
	if err != nil {
		return nil, err
	}
	w, h, scaled := r.outputSize(dim)
	if err := checkPixels(w, h, r.maxPixels); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(r.tempDir, "raster-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "source.pdf")
	if err := os.WriteFile(src, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write temp pdf: %w", err)
	}
	prefix := filepath.Join(dir, "page")
	args := []string{"-f", "1", "-l", "1", "-r", strconv.Itoa(r.dpi)}
	if scaled {
		args = append(args, "-scale-to", strconv.Itoa(r.maxDim))
	}
	args = append(args, "-png", "-singlefile", src, prefix)
	cmd := exec.CommandContext(ctx, "pdftoppm", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: pdftoppm: %v: %s", ErrDecode, err, bytes.TrimSpace(stderr.Bytes()))
	}

	out, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("%w: pdftoppm produced no page: %v", ErrDecode, err)
	}
	return decodeBounded(out, r.maxPixels)
}
