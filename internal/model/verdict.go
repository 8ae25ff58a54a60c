package model

import (
	"encoding/json"
	"image"
)

// SignatureStatus is the outcome of the signature comparison.
type SignatureStatus int

const (
	SignatureNotApplicable SignatureStatus = iota
	SignatureGenuine
	SignatureForged
	SignatureReferenceMissing
)

func (s SignatureStatus) String() string {
	switch s {
	case SignatureGenuine:
		return "Genuine"
	case SignatureForged:
		return "Forged"
	case SignatureReferenceMissing:
		return "Reference missing"
	default:
		return "Not applicable"
	}
}

func (s SignatureStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Failure names the early-exit state a verdict ended in.
type Failure int

const (
	FailureNone Failure = iota
	FailureUnsupportedFormat
	FailureDecode
	FailureIdentifierNotFound
	FailureRecordNotFound
	FailureUnexpected
)

// IdentifierSource tells which extraction path produced the identifier.
type IdentifierSource string

const (
	SourceNone  IdentifierSource = "none"
	SourceQR    IdentifierSource = "qr"
	SourceRegex IdentifierSource = "regex"
)

// ExtractedDocument is the per-request intermediate state. It is never persisted.
type ExtractedDocument struct {
	Raster              image.Image
	RawText             string
	IdentifierCandidate string
	QRCandidate         string
}

// Verdict is the outcome of one verification request.
type Verdict struct {
	RequestID         string
	Filename          string
	IdentifierFound   *string
	IdentifierSource  IdentifierSource
	IsVerified        bool
	MatchedRecord     *TrustedRecord
	MismatchedFields  []string
	RawText           *string
	SignatureDistance *float64
	SignatureStatus   SignatureStatus
	Failure           Failure
	ErrorReason       string
}

type verdictJSON struct {
	RequestID         string           `json:"request_id,omitempty"`
	Filename          string           `json:"filename"`
	IdentifierFound   *string          `json:"certificate_id_found"`
	IdentifierSource  IdentifierSource `json:"identifier_source,omitempty"`
	IsVerified        bool             `json:"is_verified"`
	DatabaseRecord    *TrustedRecord   `json:"database_record,omitempty"`
	MismatchedFields  []string         `json:"mismatched_fields,omitempty"`
	FullText          *string          `json:"full_text_from_pdf,omitempty"`
	SignatureDistance *float64         `json:"signature_distance,omitempty"`
	SignatureStatus   *SignatureStatus `json:"signature_status,omitempty"`
	Error             string           `json:"error,omitempty"`
}

// MarshalJSON renders the wire shape. Record-dependent keys appear only once a
// record was matched; mismatched_fields and signature_distance are then always
// present (an empty list and null respectively when there is nothing to report).
func (v *Verdict) MarshalJSON() ([]byte, error) {
	out := verdictJSON{
		RequestID:        v.RequestID,
		Filename:         v.Filename,
		IdentifierFound:  v.IdentifierFound,
		IdentifierSource: v.IdentifierSource,
		IsVerified:       v.IsVerified,
		DatabaseRecord:   v.MatchedRecord,
		FullText:         v.RawText,
		Error:            v.ErrorReason,
	}
	if v.IdentifierSource == SourceNone {
		out.IdentifierSource = ""
	}
	if v.MatchedRecord == nil {
		return json.Marshal(out)
	}

	status := v.SignatureStatus
	out.SignatureStatus = &status
	mismatched := v.MismatchedFields
	if mismatched == nil {
		mismatched = []string{}
	}
	return json.Marshal(struct {
		verdictJSON
		MismatchedFields  []string `json:"mismatched_fields"`
		SignatureDistance *float64 `json:"signature_distance"`
	}{out, mismatched, v.SignatureDistance})
}
