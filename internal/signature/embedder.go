// Package signature compares the signature region of a document against a
// stored reference image using embedding distance.
package signature

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
)

// InputSize is the side of the square grayscale input fed to every embedder.
const InputSize = 128

var ErrDimensionMismatch = errors.New("embedding dimensions differ")

// Embedder maps an image file to a feature vector. Both the document crop and
// the reference go through the same Embedder.
type Embedder interface {
	Embed(ctx context.Context, imagePath string) ([]float32, error)
}

// Distance is the Euclidean distance between two embeddings.
func Distance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Preprocess converts img to an InputSize x InputSize grayscale image.
// Transparent areas come out white, like paper.
func Preprocess(img image.Image) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, InputSize, InputSize))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// PixelEmbedder uses the normalized preprocessed pixels themselves as the
// embedding. Values lie in [-1, 1].
type PixelEmbedder struct{}

func (PixelEmbedder) Embed(ctx context.Context, imagePath string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := loadImage(imagePath)
	if err != nil {
		return nil, err
	}
	g := Preprocess(img)
	out := make([]float32, 0, InputSize*InputSize)
	for y := 0; y < InputSize; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+InputSize]
		for _, v := range row {
			out = append(out, (float32(v)/255-0.5)/0.5)
		}
	}
	return out, nil
}
