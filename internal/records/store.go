// Package records holds the trusted certificate records, loaded once at
// startup and read concurrently by every request.
package records

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/agenthands/certverify/internal/identifier"
	"github.com/agenthands/certverify/internal/model"
)

var ErrDuplicateIdentifier = errors.New("duplicate certificate identifier")

// Store is an immutable index of trusted records keyed by normalized identifier.
type Store struct {
	byID    map[string]int
	records []model.TrustedRecord
}

// NewStore indexes records. Records without an identifier are skipped; two
// records whose identifiers normalize to the same key are rejected.
func NewStore(records []model.TrustedRecord, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		byID:    make(map[string]int, len(records)),
		records: make([]model.TrustedRecord, 0, len(records)),
	}
	for i, rec := range records {
		key := identifier.Normalize(string(rec.CertificateID))
		if key == "" {
			logger.Warn("skipping record without certificate_id", "index", i)
			continue
		}
		if prev, ok := s.byID[key]; ok {
			return nil, fmt.Errorf("%w: %q and %q both normalize to %s",
				ErrDuplicateIdentifier, s.records[prev].CertificateID, rec.CertificateID, key)
		}
		s.byID[key] = len(s.records)
		s.records = append(s.records, rec)
	}
	return s, nil
}

// Find returns a copy of the record whose identifier equals raw after normalization.
func (s *Store) Find(raw string) (*model.TrustedRecord, bool) {
	if s == nil {
		return nil, false
	}
	i, ok := s.byID[identifier.Normalize(raw)]
	if !ok {
		return nil, false
	}
	rec := s.records[i]
	return &rec, true
}

// All returns a copy of the indexed records in load order.
func (s *Store) All() []model.TrustedRecord {
	if s == nil {
		return nil
	}
	return append([]model.TrustedRecord(nil), s.records...)
}

func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}
