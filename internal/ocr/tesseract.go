package ocr

import (
	"context"
	"fmt"
	"image"
	"strconv"

	"github.com/otiai10/gosseract/v2"
)

// TesseractExtractor runs Tesseract through gosseract. Each call uses its own
// client, so one extractor can serve concurrent requests.
type TesseractExtractor struct {
	languages     []string
	pageSegMode   int
	dpi           int
	clientFactory func() *gosseract.Client
}

func NewTesseractExtractor(languages []string, pageSegMode, dpi int) *TesseractExtractor {
	return &TesseractExtractor{
		languages:     append([]string(nil), languages...),
		pageSegMode:   pageSegMode,
		dpi:           dpi,
		clientFactory: gosseract.NewClient,
	}
}

// ExtractText returns as soon as ctx is done. The cgo call cannot be
// interrupted and finishes in the background.
func (e *TesseractExtractor) ExtractText(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	data, err := encodePNG(img)
	if err != nil {
		return "", err
	}

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := e.recognize(data)
		done <- result{text, err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("tesseract: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return "", r.err
		}
		return Collapse(r.text), nil
	}
}

func (e *TesseractExtractor) recognize(data []byte) (string, error) {
	c := e.clientFactory()
	defer c.Close()

	if len(e.languages) > 0 {
		if err := c.SetLanguage(e.languages...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}
	if e.pageSegMode > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(e.pageSegMode)); err != nil {
			return "", fmt.Errorf("set page segmentation mode: %w", err)
		}
	}
	if e.dpi > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), strconv.Itoa(e.dpi)); err != nil {
			return "", fmt.Errorf("set dpi: %w", err)
		}
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}

func (e *TesseractExtractor) Close() error { return nil }
