package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
)

// TextExtractor reads all visible text from a document image. Fragments are
// joined with single spaces in detection order.
type TextExtractor interface {
	ExtractText(ctx context.Context, img image.Image) (string, error)
	Close() error
}

const transcribePrompt = `Transcribe every piece of text visible in this certificate image exactly as printed, in natural reading order.
Keep identifiers, numbers and punctuation unchanged. Output only the transcribed text, with no commentary and no formatting.`

// Collapse joins whitespace-separated fragments with single spaces.
func Collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// stripFences removes a surrounding markdown code fence that chat models like to add.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
