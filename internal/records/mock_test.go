package records

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"google.golang.org/api/iterator"
)

type MockDriver struct {
	Queries    []string
	Params     []map[string]interface{}
	MockResult neo4j.EagerResult
	Err        error
}

func (m *MockDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	m.Queries = append(m.Queries, query)
	m.Params = append(m.Params, params)
	if m.Err != nil {
		return neo4j.EagerResult{}, m.Err
	}
	return m.MockResult, nil
}

func (m *MockDriver) BuildIndices(ctx context.Context) error { return nil }

func (m *MockDriver) Close(ctx context.Context) error { return nil }

type mockDocs struct {
	docs    []*firestore.DocumentSnapshot
	err     error
	stopped bool
}

func (m *mockDocs) Next() (*firestore.DocumentSnapshot, error) {
	if len(m.docs) == 0 {
		if m.err != nil {
			return nil, m.err
		}
		return nil, iterator.Done
	}
	d := m.docs[0]
	m.docs = m.docs[1:]
	return d, nil
}

func (m *mockDocs) Stop() { m.stopped = true }
