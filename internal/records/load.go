package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/agenthands/certverify/internal/config"
	"github.com/agenthands/certverify/internal/driver"
	"github.com/agenthands/certverify/internal/model"
)

// Source kinds accepted in store.source.
const (
	SourceFile      = "file"
	SourceGCS       = "gcs"
	SourceFirestore = "firestore"
	SourceMemgraph  = "memgraph"
)

// Location is a parsed store.source value.
type Location struct {
	Kind string
	// Path is the file path, or the bucket / project for cloud sources.
	Path string
	// Name is the object name or collection.
	Name string
}

func ParseSource(source string) (Location, error) {
	switch {
	case source == SourceMemgraph:
		return Location{Kind: SourceMemgraph}, nil
	case strings.HasPrefix(source, "gs://"):
		bucket, object, ok := strings.Cut(strings.TrimPrefix(source, "gs://"), "/")
		if !ok || bucket == "" || object == "" {
			return Location{}, fmt.Errorf("invalid GCS source %q, want gs://bucket/object", source)
		}
		return Location{Kind: SourceGCS, Path: bucket, Name: object}, nil
	case strings.HasPrefix(source, "firestore://"):
		project, collection, ok := strings.Cut(strings.TrimPrefix(source, "firestore://"), "/")
		if !ok || project == "" || collection == "" {
			return Location{}, fmt.Errorf("invalid Firestore source %q, want firestore://project/collection", source)
		}
		return Location{Kind: SourceFirestore, Path: project, Name: collection}, nil
	case source == "":
		return Location{}, errors.New("store.source is empty")
	}
	return Location{Kind: SourceFile, Path: source}, nil
}

// Load reads the trusted records named by cfg.Store.Source. A missing file or
// GCS object yields an empty store and a warning.
func Load(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	loc, err := ParseSource(cfg.Store.Source)
	if err != nil {
		return nil, err
	}

	var recs []model.TrustedRecord
	switch loc.Kind {
	case SourceMemgraph:
		d, err := driver.NewMemgraphDriver(ctx, cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password)
		if err != nil {
			return nil, err
		}
		defer d.Close(ctx)
		recs, err = FromGraph(ctx, d)
		if err != nil {
			return nil, err
		}
	case SourceGCS:
		recs, err = fromGCS(ctx, loc.Path, loc.Name)
		if errors.Is(err, storage.ErrObjectNotExist) {
			logger.Warn("record store object not found, starting with an empty store", "source", cfg.Store.Source)
			return NewStore(nil, logger)
		}
		if err != nil {
			return nil, err
		}
	case SourceFirestore:
		recs, err = fromFirestore(ctx, loc.Path, loc.Name)
		if err != nil {
			return nil, err
		}
	default:
		recs, err = FromFile(loc.Path)
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("record store file not found, starting with an empty store", "path", loc.Path)
			return NewStore(nil, logger)
		}
		if err != nil {
			return nil, err
		}
	}

	store, err := NewStore(recs, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded trusted records", "source", cfg.Store.Source, "count", store.Len())
	return store, nil
}

// Decode reads a JSON array of records.
func Decode(r io.Reader) ([]model.TrustedRecord, error) {
	var recs []model.TrustedRecord
	if err := json.NewDecoder(r).Decode(&recs); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}
	return recs, nil
}

func FromFile(path string) ([]model.TrustedRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// FromGraph reads every Certificate node.
func FromGraph(ctx context.Context, d driver.GraphDriver) ([]model.TrustedRecord, error) {
	res, err := d.ExecuteQuery(ctx, driver.ListCertificatesQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	recs := make([]model.TrustedRecord, 0, len(res.Records))
	for _, row := range res.Records {
		v, ok := row.Get("record")
		if !ok {
			continue
		}
		props, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unexpected certificate row type %T", v)
		}
		recs = append(recs, model.RecordFromMap(props))
	}
	return recs, nil
}

// SaveToGraph merges records into the graph, keyed by certificate_id.
func SaveToGraph(ctx context.Context, d driver.GraphDriver, recs []model.TrustedRecord) error {
	for _, rec := range recs {
		params := map[string]interface{}{
			"certificate_id":       string(rec.CertificateID),
			"name":                 string(rec.Name),
			"cgpa":                 string(rec.CGPA),
			"branch":               string(rec.Branch),
			"college":              string(rec.College),
			"signature_image_path": rec.SignatureImagePath,
		}
		if _, err := d.ExecuteQuery(ctx, driver.SaveCertificateQuery, params); err != nil {
			return fmt.Errorf("failed to save certificate %s: %w", rec.CertificateID, err)
		}
	}
	return nil
}

func fromGCS(ctx context.Context, bucket, object string) ([]model.TrustedRecord, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	defer client.Close()

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", bucket, object, err)
	}
	defer r.Close()
	return Decode(r)
}

func fromFirestore(ctx context.Context, project, collection string) ([]model.TrustedRecord, error) {
	client, err := firestore.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	defer client.Close()

	return FromDocuments(client.Collection(collection).Documents(ctx))
}

// DocumentIterator is satisfied by *firestore.DocumentIterator.
type DocumentIterator interface {
	Next() (*firestore.DocumentSnapshot, error)
	Stop()
}

// FromDocuments drains a Firestore query. A document without a
// certificate_id field uses its document ID.
func FromDocuments(it DocumentIterator) ([]model.TrustedRecord, error) {
	defer it.Stop()
	var recs []model.TrustedRecord
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			return recs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read records: %w", err)
		}
		rec := model.RecordFromMap(doc.Data())
		if rec.CertificateID == "" && doc.Ref != nil {
			rec.CertificateID = model.Text(doc.Ref.ID)
		}
		recs = append(recs, rec)
	}
}
