package signature

import (
	"context"
	"os"
	"sync"
)

// MockEmbedder returns canned vectors keyed by call order and records whether
// each path existed when it was embedded.
type MockEmbedder struct {
	mu      sync.Mutex
	Vectors [][]float32
	Err     error
	ErrOn   int
	Block   bool
	Paths   []string
	Existed []bool
}

func (m *MockEmbedder) Embed(ctx context.Context, imagePath string) ([]float32, error) {
	m.mu.Lock()
	call := len(m.Paths)
	m.Paths = append(m.Paths, imagePath)
	_, err := os.Stat(imagePath)
	m.Existed = append(m.Existed, err == nil)
	m.mu.Unlock()

	if m.Block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.Err != nil && call == m.ErrOn {
		return nil, m.Err
	}
	if call < len(m.Vectors) {
		return m.Vectors[call], nil
	}
	return []float32{0}, nil
}
