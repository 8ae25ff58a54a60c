package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Text holds a record value that may arrive as a JSON string or number.
// Numbers keep their literal spelling so "9.0" is not shortened to "9".
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*t = Text(n.String())
	return nil
}

// TextOf renders a loosely typed value (from Firestore or a graph row) as Text.
func TextOf(v any) Text {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return Text(x)
	case Text:
		return x
	case int64:
		return Text(strconv.FormatInt(x, 10))
	case int:
		return Text(strconv.Itoa(x))
	case float64:
		return Text(strconv.FormatFloat(x, 'f', -1, 64))
	case json.Number:
		return Text(x.String())
	default:
		return Text(fmt.Sprint(x))
	}
}

// TrustedRecord is one authoritative certificate entry. Unknown keys in the
// source document are ignored; missing keys are empty.
type TrustedRecord struct {
	CertificateID      Text   `json:"certificate_id"`
	Name               Text   `json:"name"`
	CGPA               Text   `json:"cgpa"`
	Branch             Text   `json:"branch"`
	College            Text   `json:"college"`
	SignatureImagePath string `json:"signature_image_path,omitempty"`
}

// Field names understood by the cross-validator.
const (
	FieldName    = "name"
	FieldCGPA    = "cgpa"
	FieldBranch  = "branch"
	FieldCollege = "college"
)

// DefaultFields is the validation field list used when none is configured.
var DefaultFields = []string{FieldName, FieldCGPA, FieldBranch, FieldCollege}

// KnownField reports whether name can be read with Field.
func KnownField(name string) bool {
	switch name {
	case FieldName, FieldCGPA, FieldBranch, FieldCollege:
		return true
	}
	return false
}

// Field returns the stored value of a validation field, or "" for unknown names.
func (r *TrustedRecord) Field(name string) string {
	switch name {
	case FieldName:
		return string(r.Name)
	case FieldCGPA:
		return string(r.CGPA)
	case FieldBranch:
		return string(r.Branch)
	case FieldCollege:
		return string(r.College)
	}
	return ""
}

// RecordFromMap builds a record from a loosely typed document such as a
// Firestore snapshot or a graph node property map.
func RecordFromMap(m map[string]any) TrustedRecord {
	rec := TrustedRecord{
		CertificateID: TextOf(m["certificate_id"]),
		Name:          TextOf(m[FieldName]),
		CGPA:          TextOf(m[FieldCGPA]),
		Branch:        TextOf(m[FieldBranch]),
		College:       TextOf(m[FieldCollege]),
	}
	if p, ok := m["signature_image_path"].(string); ok {
		rec.SignatureImagePath = p
	}
	return rec
}
