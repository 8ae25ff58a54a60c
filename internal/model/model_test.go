package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, v *Verdict) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestVerdictJSONIdentifierNotFound(t *testing.T) {
	text := "no id here"
	got := decode(t, &Verdict{
		Filename:         "cert.pdf",
		IdentifierSource: SourceNone,
		RawText:          &text,
		Failure:          FailureIdentifierNotFound,
		ErrorReason:      "Certificate ID not found.",
	})

	assert.Contains(t, got, "certificate_id_found")
	assert.Nil(t, got["certificate_id_found"])
	assert.Equal(t, false, got["is_verified"])
	assert.Equal(t, "Certificate ID not found.", got["error"])
	assert.Equal(t, text, got["full_text_from_pdf"])
	for _, key := range []string{"database_record", "mismatched_fields", "signature_status", "signature_distance", "identifier_source"} {
		assert.NotContains(t, got, key)
	}
}

func TestVerdictJSONMatched(t *testing.T) {
	id := "12345678901"
	d := 42.5
	got := decode(t, &Verdict{
		RequestID:         "req-1",
		Filename:          "cert.pdf",
		IdentifierFound:   &id,
		IdentifierSource:  SourceQR,
		MatchedRecord:     &TrustedRecord{CertificateID: "12345678901", Name: "Alice", CGPA: "9.0"},
		MismatchedFields:  []string{"branch"},
		SignatureDistance: &d,
		SignatureStatus:   SignatureGenuine,
	})

	assert.Equal(t, "req-1", got["request_id"])
	assert.Equal(t, "qr", got["identifier_source"])
	assert.Equal(t, []any{"branch"}, got["mismatched_fields"])
	assert.Equal(t, 42.5, got["signature_distance"])
	assert.Equal(t, "Genuine", got["signature_status"])
	rec := got["database_record"].(map[string]any)
	assert.Equal(t, "9.0", rec["cgpa"])
	assert.NotContains(t, rec, "signature_image_path")
}

func TestSignatureStatusStrings(t *testing.T) {
	assert.Equal(t, "Genuine", SignatureGenuine.String())
	assert.Equal(t, "Forged", SignatureForged.String())
	assert.Equal(t, "Reference missing", SignatureReferenceMissing.String())
	assert.Equal(t, "Not applicable", SignatureNotApplicable.String())
}

func TestTextAcceptsStringsAndNumbers(t *testing.T) {
	var rec TrustedRecord
	require.NoError(t, json.Unmarshal([]byte(`{"certificate_id": 12345678901, "cgpa": 9.0, "name": "Alice", "branch": null}`), &rec))
	assert.Equal(t, Text("12345678901"), rec.CertificateID)
	assert.Equal(t, Text("9.0"), rec.CGPA)
	assert.Equal(t, Text("Alice"), rec.Name)
	assert.Equal(t, Text(""), rec.Branch)

	assert.Error(t, json.Unmarshal([]byte(`{"name": {"first": "Alice"}}`), &rec))
}

func TestRecordFromMap(t *testing.T) {
	rec := RecordFromMap(map[string]any{
		"certificate_id":       int64(12345678901),
		"name":                 "Alice",
		"cgpa":                 9.25,
		"signature_image_path": "sigs/a.png",
		"unknown":              true,
	})
	assert.Equal(t, Text("12345678901"), rec.CertificateID)
	assert.Equal(t, Text("9.25"), rec.CGPA)
	assert.Equal(t, "sigs/a.png", rec.SignatureImagePath)
	assert.Equal(t, "", rec.Field(FieldBranch))
	assert.Equal(t, "Alice", rec.Field(FieldName))
	assert.Equal(t, "", rec.Field("email"))
}
