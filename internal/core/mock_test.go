package core

import (
	"context"
	"image"

	"github.com/agenthands/certverify/internal/raster"
	"github.com/agenthands/certverify/internal/signature"
)

type MockRasterizer struct {
	Image  *raster.Image
	Err    error
	Format raster.Format
}

func (m *MockRasterizer) Rasterize(ctx context.Context, data []byte, format raster.Format) (*raster.Image, error) {
	m.Format = format
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Image != nil {
		return m.Image, nil
	}
	return raster.NewImage(64, 32), nil
}

type MockOCR struct {
	Text   string
	Err    error
	Panic  string
	Block  bool
	Called int
}

func (m *MockOCR) ExtractText(ctx context.Context, img image.Image) (string, error) {
	m.Called++
	if m.Panic != "" {
		panic(m.Panic)
	}
	if m.Block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Text, nil
}

func (m *MockOCR) Close() error { return nil }

type MockSignature struct {
	Result        signature.Result
	Err           error
	ReferencePath string
	Called        int
}

func (m *MockSignature) Verify(ctx context.Context, doc image.Image, referencePath string) (signature.Result, error) {
	m.Called++
	m.ReferencePath = referencePath
	if m.Err != nil {
		return signature.Result{}, m.Err
	}
	return m.Result, nil
}

type MockCodes struct {
	Payload string
}

func (m *MockCodes) Decode(img image.Image) (string, bool) {
	return m.Payload, m.Payload != ""
}
