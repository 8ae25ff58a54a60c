// Package identifier finds the certificate identifier in a document, first in
// a QR code and then in the OCR text.
package identifier

import (
	"fmt"
	"image"
	"regexp"

	"github.com/agenthands/certverify/internal/model"
)

// Result is the outcome of identifier extraction. Value is empty when Source is none.
type Result struct {
	Value  string
	Raw    string
	Source model.IdentifierSource
}

func (r Result) Found() bool { return r.Value != "" }

// CodeDecoder reads machine-readable codes from an image.
type CodeDecoder interface {
	Decode(img image.Image) (string, bool)
}

type Extractor struct {
	pattern   *regexp.Regexp
	qrPattern *regexp.Regexp
	codes     CodeDecoder
}

// NewExtractor compiles the text pattern (one capture group) and the optional
// bare-payload pattern for QR codes. codes may be nil to disable the QR path.
func NewExtractor(pattern, qrPattern string, codes CodeDecoder) (*Extractor, error) {
	re, err := compile(pattern)
	if err != nil {
		return nil, err
	}
	e := &Extractor{pattern: re, codes: codes}
	if qrPattern != "" {
		if e.qrPattern, err = compile(qrPattern); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func compile(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile identifier pattern: %w", err)
	}
	if re.NumSubexp() != 1 {
		return nil, fmt.Errorf("identifier pattern %q must have exactly one capture group", pattern)
	}
	return re, nil
}

// Extract tries the QR path first because it is not subject to OCR noise, then
// the first regex match in text. No identifier is a valid, empty result.
func (e *Extractor) Extract(text string, img image.Image) Result {
	if e.codes != nil && img != nil {
		if payload, ok := e.codes.Decode(img); ok {
			if raw, ok := e.fromPayload(payload); ok {
				return Result{Value: Normalize(raw), Raw: raw, Source: model.SourceQR}
			}
		}
	}
	if raw, ok := firstGroup(e.pattern, text); ok {
		return Result{Value: Normalize(raw), Raw: raw, Source: model.SourceRegex}
	}
	return Result{Source: model.SourceNone}
}

func (e *Extractor) fromPayload(payload string) (string, bool) {
	if raw, ok := firstGroup(e.pattern, payload); ok {
		return raw, true
	}
	if e.qrPattern != nil {
		return firstGroup(e.qrPattern, payload)
	}
	return "", false
}

// firstGroup returns the first capture that still has characters left after
// normalization. Matches whose capture normalizes to nothing are skipped.
func firstGroup(re *regexp.Regexp, s string) (string, bool) {
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		if Normalize(m[1]) != "" {
			return m[1], true
		}
	}
	return "", false
}
