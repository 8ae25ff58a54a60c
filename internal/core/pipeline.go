// Package core runs the verification pipeline for one uploaded document.
package core

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/agenthands/certverify/internal/identifier"
	"github.com/agenthands/certverify/internal/model"
	"github.com/agenthands/certverify/internal/ocr"
	"github.com/agenthands/certverify/internal/raster"
	"github.com/agenthands/certverify/internal/signature"
	"github.com/agenthands/certverify/internal/validate"
)

// Error reasons reported on the verdict.
const (
	ReasonIdentifierNotFound = "Certificate ID not found."
	ReasonRecordNotFound     = "Certificate ID not in database."
)

type Rasterizer interface {
	Rasterize(ctx context.Context, data []byte, format raster.Format) (*raster.Image, error)
}

type IdentifierExtractor interface {
	Extract(text string, img image.Image) identifier.Result
}

type RecordFinder interface {
	Find(raw string) (*model.TrustedRecord, bool)
}

type SignatureVerifier interface {
	Verify(ctx context.Context, doc image.Image, referencePath string) (signature.Result, error)
}

type Pipeline struct {
	Rasterizer Rasterizer
	OCR        ocr.TextExtractor
	Identifier IdentifierExtractor
	Records    RecordFinder
	Fields     *validate.CrossValidator
	Signature  SignatureVerifier
	OCRTimeout time.Duration
	Logger     *slog.Logger
	// NewID generates request IDs.
	NewID func() string
}

func NewPipeline(r Rasterizer, text ocr.TextExtractor, ids IdentifierExtractor, records RecordFinder,
	fields *validate.CrossValidator, sig SignatureVerifier, ocrTimeout time.Duration, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		Rasterizer: r,
		OCR:        text,
		Identifier: ids,
		Records:    records,
		Fields:     fields,
		Signature:  sig,
		OCRTimeout: ocrTimeout,
		Logger:     logger,
		NewID:      uuid.NewString,
	}
}

// Verify always returns a well-formed verdict. Collaborator errors and panics
// become an "Unexpected error" reason with IsVerified false.
func (p *Pipeline) Verify(ctx context.Context, filename string, data []byte) (v *model.Verdict) {
	v = &model.Verdict{
		RequestID:        p.NewID(),
		Filename:         filepath.Base(filename),
		IdentifierSource: model.SourceNone,
	}
	log := p.Logger.With("request_id", v.RequestID, "filename", v.Filename)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("verification panicked", "panic", r)
			unexpected(v, fmt.Errorf("%v", r))
		}
		log.Info("verification finished",
			"verified", v.IsVerified,
			"error", v.ErrorReason,
			"duration", time.Since(start))
	}()

	format, err := raster.FormatFromFilename(filename)
	if err != nil {
		v.Failure = model.FailureUnsupportedFormat
		ext := filepath.Ext(filename)
		if ext == "" {
			ext = "(none)"
		}
		v.ErrorReason = fmt.Sprintf("Unsupported file type: %s", ext)
		return v
	}

	img, err := p.Rasterizer.Rasterize(ctx, data, format)
	if err != nil {
		if errors.Is(err, raster.ErrDecode) {
			v.Failure = model.FailureDecode
			v.ErrorReason = fmt.Sprintf("Could not convert document to image: %v", err)
			return v
		}
		unexpected(v, err)
		return v
	}
	log.Debug("rasterized", "width", img.Width(), "height", img.Height())

	text, err := p.extractText(ctx, img)
	if err != nil {
		log.Error("text extraction failed", "error", err)
		unexpected(v, err)
		return v
	}
	log.Debug("ocr text", "text", text)
	doc := &model.ExtractedDocument{Raster: img, RawText: text}

	id := p.Identifier.Extract(doc.RawText, doc.Raster)
	if !id.Found() {
		v.Failure = model.FailureIdentifierNotFound
		v.ErrorReason = ReasonIdentifierNotFound
		v.RawText = &doc.RawText
		return v
	}
	doc.IdentifierCandidate = id.Value
	if id.Source == model.SourceQR {
		doc.QRCandidate = id.Raw
	}
	v.IdentifierFound = &doc.IdentifierCandidate
	v.IdentifierSource = id.Source

	rec, ok := p.Records.Find(id.Value)
	if !ok {
		v.Failure = model.FailureRecordNotFound
		v.ErrorReason = ReasonRecordNotFound
		return v
	}
	v.MatchedRecord = rec
	v.RawText = &doc.RawText

	report := p.Fields.Check(rec, doc.RawText)
	v.MismatchedFields = report.Mismatched
	if len(report.Mismatched) > 0 {
		log.Info("field mismatch", "fields", report.Mismatched)
	}

	sig, err := p.Signature.Verify(ctx, doc.Raster, rec.SignatureImagePath)
	if err != nil {
		log.Error("signature check failed", "error", err)
		unexpected(v, err)
		return v
	}
	v.SignatureStatus = sig.Status
	v.SignatureDistance = sig.Distance

	v.IsVerified = len(v.MismatchedFields) == 0 && v.SignatureStatus != model.SignatureForged
	return v
}

func (p *Pipeline) extractText(ctx context.Context, img image.Image) (string, error) {
	if p.OCRTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.OCRTimeout)
		defer cancel()
	}
	text, err := p.OCR.ExtractText(ctx, img)
	if err != nil {
		return "", err
	}
	return ocr.Collapse(text), nil
}

func unexpected(v *model.Verdict, err error) {
	v.Failure = model.FailureUnexpected
	v.ErrorReason = fmt.Sprintf("Unexpected error: %v", err)
	v.IsVerified = false
}
