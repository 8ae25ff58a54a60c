package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/certverify/internal/config"
	"github.com/agenthands/certverify/internal/identifier"
	"github.com/agenthands/certverify/internal/model"
	"github.com/agenthands/certverify/internal/raster"
	"github.com/agenthands/certverify/internal/records"
	"github.com/agenthands/certverify/internal/signature"
	"github.com/agenthands/certverify/internal/validate"
)

const aliceText = "CERTIFICATE OF COMPLETION CER ID: 12345678901 This is to certify that Alice Smith " +
	"of ABC Institute has completed Computer Science with CGPA 9.0"

type fixture struct {
	raster *MockRasterizer
	ocr    *MockOCR
	codes  *MockCodes
	sig    *MockSignature
	p      *Pipeline
}

func newFixture(t *testing.T, text string) *fixture {
	t.Helper()
	store, err := records.NewStore([]model.TrustedRecord{
		{
			CertificateID:      "12345678901",
			Name:               "Alice Smith",
			CGPA:               "9.0",
			Branch:             "Computer Science",
			College:            "ABC Institute",
			SignatureImagePath: "sigs/alice.png",
		},
		{CertificateID: "10987654321", Name: "Bob", CGPA: "8.1", Branch: "Civil", College: "XYZ"},
	}, nil)
	require.NoError(t, err)

	f := &fixture{
		raster: &MockRasterizer{},
		ocr:    &MockOCR{Text: text},
		codes:  &MockCodes{},
		sig:    &MockSignature{Result: signature.Result{Status: model.SignatureReferenceMissing}},
	}
	ids, err := identifier.NewExtractor(config.DefaultPattern, config.DefaultQRPattern, f.codes)
	require.NoError(t, err)

	f.p = NewPipeline(f.raster, f.ocr, ids, store, validate.New(nil, nil), f.sig, time.Second, nil)
	n := 0
	f.p.NewID = func() string {
		n++
		return fmt.Sprintf("req-%d", n)
	}
	return f
}

func distance(d float64) *float64 { return &d }

func TestVerifyScenarioA(t *testing.T) {
	f := newFixture(t, aliceText)
	f.sig.Result = signature.Result{Status: model.SignatureGenuine, Distance: distance(12.5)}

	v := f.p.Verify(context.Background(), "alice.pdf", []byte("%PDF"))
	assert.True(t, v.IsVerified)
	assert.Empty(t, v.MismatchedFields)
	assert.Empty(t, v.ErrorReason)
	require.NotNil(t, v.IdentifierFound)
	assert.Equal(t, "12345678901", *v.IdentifierFound)
	assert.Equal(t, model.SourceRegex, v.IdentifierSource)
	assert.Equal(t, model.Text("Alice Smith"), v.MatchedRecord.Name)
	assert.Equal(t, model.SignatureGenuine, v.SignatureStatus)
	assert.Equal(t, "sigs/alice.png", f.sig.ReferencePath)
	assert.Equal(t, raster.FormatPDF, f.raster.Format)
	assert.Equal(t, "req-1", v.RequestID)
}

func TestVerifyScenarioBUnknownID(t *testing.T) {
	f := newFixture(t, "CER ID: 55555555555 Alice Smith")
	v := f.p.Verify(context.Background(), "cert.png", []byte{1})

	assert.False(t, v.IsVerified)
	assert.Equal(t, ReasonRecordNotFound, v.ErrorReason)
	assert.Equal(t, model.FailureRecordNotFound, v.Failure)
	require.NotNil(t, v.IdentifierFound)
	assert.Equal(t, "55555555555", *v.IdentifierFound)
	assert.Nil(t, v.MatchedRecord)
	assert.Zero(t, f.sig.Called)
}

func TestVerifyScenarioCNoID(t *testing.T) {
	f := newFixture(t, "A certificate without any identifier")
	v := f.p.Verify(context.Background(), "cert.jpg", []byte{1})

	assert.False(t, v.IsVerified)
	assert.Equal(t, ReasonIdentifierNotFound, v.ErrorReason)
	assert.Equal(t, model.FailureIdentifierNotFound, v.Failure)
	assert.Nil(t, v.IdentifierFound)
	require.NotNil(t, v.RawText)
	assert.Equal(t, "A certificate without any identifier", *v.RawText)
}

func TestVerifyScenarioDBranchMismatch(t *testing.T) {
	f := newFixture(t, "CER ID: 12345678901 Alice Smith ABC Institute CGPA 9.0 Mechanical Engineering")
	v := f.p.Verify(context.Background(), "cert.pdf", []byte{1})

	assert.False(t, v.IsVerified)
	assert.Equal(t, []string{"branch"}, v.MismatchedFields)
	assert.Empty(t, v.ErrorReason)
	assert.Equal(t, 1, f.sig.Called, "signature check still runs")
}

func TestVerifyScenarioEReferenceMissing(t *testing.T) {
	f := newFixture(t, aliceText)
	v := f.p.Verify(context.Background(), "cert.pdf", []byte{1})

	assert.True(t, v.IsVerified)
	assert.Equal(t, model.SignatureReferenceMissing, v.SignatureStatus)
	assert.Nil(t, v.SignatureDistance)
}

func TestVerifyScenarioFForged(t *testing.T) {
	f := newFixture(t, aliceText)
	f.sig.Result = signature.Result{Status: model.SignatureForged, Distance: distance(71.2)}
	v := f.p.Verify(context.Background(), "cert.pdf", []byte{1})

	assert.False(t, v.IsVerified)
	assert.Empty(t, v.MismatchedFields)
	assert.Equal(t, model.SignatureForged, v.SignatureStatus)
	assert.InDelta(t, 71.2, *v.SignatureDistance, 1e-9)
	assert.Empty(t, v.ErrorReason)
}

func TestVerifyOCRConfusionResolvesSameRecord(t *testing.T) {
	f := newFixture(t, "CER ID: I098765432I Bob 8.1 Civil XYZ")
	v := f.p.Verify(context.Background(), "bob.png", []byte{1})

	assert.True(t, v.IsVerified)
	assert.Equal(t, model.Text("Bob"), v.MatchedRecord.Name)
	assert.Equal(t, "10987654321", *v.IdentifierFound)
}

func TestVerifyPrefersQRCode(t *testing.T) {
	f := newFixture(t, "CER ID: 55555555555 Bob 8.1 Civil XYZ")
	f.codes.Payload = "10987654321"
	v := f.p.Verify(context.Background(), "bob.png", []byte{1})

	assert.True(t, v.IsVerified)
	assert.Equal(t, model.SourceQR, v.IdentifierSource)
	assert.Equal(t, "10987654321", *v.IdentifierFound)
}

func TestVerifyUnsupportedFormat(t *testing.T) {
	f := newFixture(t, aliceText)
	v := f.p.Verify(context.Background(), "cert.gif", []byte{1})

	assert.False(t, v.IsVerified)
	assert.Equal(t, model.FailureUnsupportedFormat, v.Failure)
	assert.Equal(t, "Unsupported file type: .gif", v.ErrorReason)
	assert.Zero(t, f.ocr.Called)
}

func TestVerifyDecodeError(t *testing.T) {
	f := newFixture(t, aliceText)
	f.raster.Err = fmt.Errorf("%w: document has no pages", raster.ErrDecode)
	v := f.p.Verify(context.Background(), "cert.pdf", []byte{1})

	assert.False(t, v.IsVerified)
	assert.Equal(t, model.FailureDecode, v.Failure)
	assert.Contains(t, v.ErrorReason, "Could not convert document to image: ")
	assert.Contains(t, v.ErrorReason, "document has no pages")
	assert.Zero(t, f.ocr.Called)
}

func TestVerifyOCRFailureIsUnexpected(t *testing.T) {
	f := newFixture(t, "")
	f.ocr.Err = errors.New("tesseract: failed to load language")
	v := f.p.Verify(context.Background(), "cert.pdf", []byte{1})

	assert.False(t, v.IsVerified)
	assert.Equal(t, model.FailureUnexpected, v.Failure)
	assert.Equal(t, "Unexpected error: tesseract: failed to load language", v.ErrorReason)
}

func TestVerifyRecoversFromPanic(t *testing.T) {
	f := newFixture(t, "")
	f.ocr.Panic = "index out of range"
	var v *model.Verdict
	require.NotPanics(t, func() {
		v = f.p.Verify(context.Background(), "cert.pdf", []byte{1})
	})
	assert.False(t, v.IsVerified)
	assert.Equal(t, "Unexpected error: index out of range", v.ErrorReason)
	assert.Equal(t, "cert.pdf", v.Filename)
}

func TestVerifyOCRTimeout(t *testing.T) {
	f := newFixture(t, "")
	f.ocr.Block = true
	f.p.OCRTimeout = 10 * time.Millisecond
	v := f.p.Verify(context.Background(), "cert.pdf", []byte{1})

	assert.Equal(t, model.FailureUnexpected, v.Failure)
	assert.Contains(t, v.ErrorReason, context.DeadlineExceeded.Error())
}

func TestVerifySignatureFailureKeepsMatchDetails(t *testing.T) {
	f := newFixture(t, aliceText)
	f.sig.Err = errors.New("embed document signature: connection refused")
	v := f.p.Verify(context.Background(), "cert.pdf", []byte{1})

	assert.False(t, v.IsVerified)
	assert.Equal(t, model.FailureUnexpected, v.Failure)
	assert.NotNil(t, v.MatchedRecord)
	assert.Empty(t, v.MismatchedFields)
	assert.Equal(t, "Unexpected error: embed document signature: connection refused", v.ErrorReason)
}

func TestVerdictCombinationLaw(t *testing.T) {
	texts := map[string]string{
		"all fields": aliceText,
		"one miss":   "CER ID: 12345678901 Alice Smith ABC Institute 9.0",
		"all miss":   "CER ID: 12345678901",
	}
	statuses := []model.SignatureStatus{
		model.SignatureGenuine,
		model.SignatureForged,
		model.SignatureReferenceMissing,
		model.SignatureNotApplicable,
	}
	for name, text := range texts {
		for _, status := range statuses {
			f := newFixture(t, text)
			f.sig.Result = signature.Result{Status: status}
			v := f.p.Verify(context.Background(), "cert.pdf", []byte{1})

			want := len(v.MismatchedFields) == 0 && status != model.SignatureForged
			assert.Equal(t, want, v.IsVerified, "%s / %s", name, status)
		}
	}
}

func TestVerdictJSON(t *testing.T) {
	f := newFixture(t, aliceText)
	data, err := json.Marshal(f.p.Verify(context.Background(), "cert.pdf", []byte{1}))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, true, got["is_verified"])
	assert.Equal(t, "12345678901", got["certificate_id_found"])
	assert.Equal(t, "regex", got["identifier_source"])
	assert.Equal(t, []any{}, got["mismatched_fields"])
	assert.Nil(t, got["signature_distance"])
	assert.Equal(t, "Reference missing", got["signature_status"])
	assert.Equal(t, aliceText, got["full_text_from_pdf"])
	assert.NotContains(t, got, "error")
}
