// Package validate cross-checks trusted record fields against OCR text.
package validate

import (
	"log/slog"
	"strings"

	"github.com/agenthands/certverify/internal/model"
)

var stripper = strings.NewReplacer(",", "", ".", "")

// Normalize lower-cases s and removes whitespace, commas and periods. The same
// function is applied to stored values and to the document text.
func Normalize(s string) string {
	return stripper.Replace(strings.Join(strings.Fields(strings.ToLower(s)), ""))
}

// Report lists the fields that failed and the fields that could not be checked.
type Report struct {
	Mismatched []string
	Skipped    []string
}

type CrossValidator struct {
	Fields []string
	Logger *slog.Logger
}

func New(fields []string, logger *slog.Logger) *CrossValidator {
	if len(fields) == 0 {
		fields = model.DefaultFields
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CrossValidator{Fields: dedupe(fields), Logger: logger}
}

// Check reports every configured field whose normalized stored value is not a
// substring of the normalized text. Empty stored values are skipped.
func (v *CrossValidator) Check(rec *model.TrustedRecord, text string) Report {
	var r Report
	haystack := Normalize(text)
	for _, field := range v.Fields {
		want := Normalize(rec.Field(field))
		if want == "" {
			r.Skipped = append(r.Skipped, field)
			v.Logger.Debug("skipping empty stored field", "field", field, "certificate_id", rec.CertificateID)
			continue
		}
		if !strings.Contains(haystack, want) {
			r.Mismatched = append(r.Mismatched, field)
		}
	}
	return r
}

func dedupe(fields []string) []string {
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}
