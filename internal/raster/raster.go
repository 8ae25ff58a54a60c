// Package raster turns an uploaded document into a single RGB image: the first
// page of a PDF or the first frame of a photo, bounded in size for OCR.
package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file type")
	ErrDecode            = errors.New("could not decode document")
)

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// FormatFromFilename maps a file extension to a Format.
func FormatFromFilename(name string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".pdf":
		return FormatPDF, nil
	case ".jpg", ".jpeg":
		return FormatJPEG, nil
	case ".png":
		return FormatPNG, nil
	}
	if ext == "" {
		ext = "(none)"
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
}

// PDF renderer names.
const (
	RendererAuto     = "auto"
	RendererPdftoppm = "pdftoppm"
	RendererEmbedded = "embedded"
)

type Options struct {
	// DPI used when rendering PDF pages.
	DPI int
	// MaxDimension caps the longer side of the output; 0 disables downscaling.
	MaxDimension int
	// MaxPixels rejects sources whose decoded size would exceed this many
	// pixels; 0 disables the check.
	MaxPixels int
	// PDFRenderer is one of RendererAuto, RendererPdftoppm, RendererEmbedded.
	PDFRenderer string
	// TempDir holds intermediate files for external renderers.
	TempDir string
}

type Rasterizer struct {
	opts Options
	pdf  pageRenderer
}

// pageRenderer produces the first page of a PDF as a decoded image.
type pageRenderer interface {
	RenderFirstPage(ctx context.Context, data []byte) (image.Image, error)
}

func New(opts Options) *Rasterizer {
	if opts.DPI <= 0 {
		opts.DPI = 100
	}
	return &Rasterizer{opts: opts, pdf: selectRenderer(opts)}
}

// Rasterize decodes data according to format and returns a normalised RGB image.
func (r *Rasterizer) Rasterize(ctx context.Context, data []byte, format Format) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrDecode)
	}

	var (
		src image.Image
		err error
	)
	switch format {
	case FormatPDF:
		src, err = r.pdf.RenderFirstPage(ctx, data)
	case FormatJPEG, FormatPNG:
		src, err = decodeBounded(data, r.opts.MaxPixels)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		if errors.Is(err, ErrDecode) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if b := src.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("%w: image has no pixels", ErrDecode)
	}

	return r.downscale(src), nil
}

// decodeBounded reads the image header first so that an oversized source is
// rejected before its pixels are allocated.
func decodeBounded(data []byte, maxPixels int) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := checkPixels(cfg.Width, cfg.Height, maxPixels); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return img, nil
}

func checkPixels(w, h, maxPixels int) error {
	if maxPixels > 0 && int64(w)*int64(h) > int64(maxPixels) {
		return fmt.Errorf("%w: %dx%d pixels exceeds the limit of %d", ErrDecode, w, h, maxPixels)
	}
	return nil
}

// ScaleFor returns the output size for an input of w x h. It depends only on
// the input size and MaxDimension.
func (r *Rasterizer) ScaleFor(w, h int) (int, int) {
	return scaleFor(w, h, r.opts.MaxDimension)
}

func scaleFor(w, h, maxDim int) (int, int) {
	longer := max(w, h)
	if maxDim <= 0 || longer <= maxDim {
		return w, h
	}
	scale := float64(maxDim) / float64(longer)
	if w >= h {
		return maxDim, max(int(float64(h)*scale), 1)
	}
	return max(int(float64(w)*scale), 1), maxDim
}

func (r *Rasterizer) downscale(src image.Image) *Image {
	b := src.Bounds()
	w, h := r.ScaleFor(b.Dx(), b.Dy())
	if w == b.Dx() && h == b.Dy() {
		return toRGB(src)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return toRGB(dst)
}
