package raster

import (
	"context"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ensurePdftoppmAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		t.Skip("pdftoppm not installed in PATH")
	}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPdftoppmRendersFirstPageAtDPI(t *testing.T) {
	ensurePdftoppmAvailable(t)

	// page 1 is 72x36pt with its left half black; page 2 is a larger blank page
	pdf := buildPDF(t, pdfPage{w: 72, h: 36}, pdfPage{w: 216, h: 216})

	for _, tc := range []struct {
		dpi           int
		width, height int
	}{
		{100, 100, 50},
		{150, 150, 75},
	} {
		tmp := t.TempDir()
		r := New(Options{DPI: tc.dpi, MaxDimension: 1024, PDFRenderer: RendererPdftoppm, TempDir: tmp})

		img, err := r.Rasterize(context.Background(), pdf, FormatPDF)
		require.NoError(t, err)
		assert.Equal(t, tc.width, img.Width())
		assert.Equal(t, tc.height, img.Height())
		assert.Equal(t, 3, img.Channels())

		dark := img.Pix[img.offset(tc.width/4, tc.height/2)]
		light := img.Pix[img.offset(tc.width*3/4, tc.height/2)]
		assert.Less(t, dark, uint8(0x40))
		assert.Greater(t, light, uint8(0xc0))

		assertEmptyDir(t, tmp)
	}
}

func TestPdftoppmScalesLargePagesWhileRendering(t *testing.T) {
	ensurePdftoppmAvailable(t)

	tmp := t.TempDir()
	// 1440x720pt at 100 DPI would be 2000x1000 pixels
	r := New(Options{DPI: 100, MaxDimension: 250, PDFRenderer: RendererPdftoppm, TempDir: tmp})
	img, err := r.Rasterize(context.Background(), buildPDF(t, pdfPage{w: 1440, h: 720}), FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, 250, img.Width())
	assert.InDelta(t, 125, img.Height(), 1)
	assertEmptyDir(t, tmp)
}

func TestPdftoppmHonoursCancelledContext(t *testing.T) {
	ensurePdftoppmAvailable(t)

	tmp := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(Options{DPI: 100, PDFRenderer: RendererPdftoppm, TempDir: tmp})
	_, err := r.Rasterize(ctx, buildPDF(t, pdfPage{w: 72, h: 36}), FormatPDF)
	assert.ErrorIs(t, err, context.Canceled)
	assertEmptyDir(t, tmp)
}
