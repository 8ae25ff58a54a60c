package raster

import (
	"image"
	"image/color"
	"image/draw"
)

// Image is a packed 8-bit RGB buffer: three bytes per pixel, no alpha.
type Image struct {
	Pix    []uint8
	Stride int
	Rect   image.Rectangle
}

// NewImage allocates a white RGB image of the given size.
func NewImage(w, h int) *Image {
	pix := make([]uint8, w*h*3)
	for i := range pix {
		pix[i] = 0xff
	}
	return &Image{Pix: pix, Stride: w * 3, Rect: image.Rect(0, 0, w, h)}
}

func (p *Image) ColorModel() color.Model { return color.RGBAModel }

func (p *Image) Bounds() image.Rectangle { return p.Rect }

func (p *Image) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(p.Rect)) {
		return color.RGBA{}
	}
	i := p.offset(x, y)
	return color.RGBA{R: p.Pix[i], G: p.Pix[i+1], B: p.Pix[i+2], A: 0xff}
}

// Channels is always 3.
func (p *Image) Channels() int { return 3 }

func (p *Image) Width() int { return p.Rect.Dx() }

func (p *Image) Height() int { return p.Rect.Dy() }

func (p *Image) offset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*3
}

// SubImage returns a copy of the pixels inside r.
func (p *Image) SubImage(r image.Rectangle) image.Image {
	r = r.Intersect(p.Rect)
	out := NewImage(r.Dx(), r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		src := p.offset(r.Min.X, y)
		dst := (y - r.Min.Y) * out.Stride
		copy(out.Pix[dst:dst+out.Stride], p.Pix[src:src+r.Dx()*3])
	}
	return out
}

// toRGB flattens any decoded image onto a white background and drops alpha,
// so grayscale, paletted, CMYK and transparent sources all end up identical
// in shape.
func toRGB(src image.Image) *Image {
	b := src.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(canvas, canvas.Bounds(), src, b.Min, draw.Over)

	out := &Image{
		Pix:    make([]uint8, b.Dx()*b.Dy()*3),
		Stride: b.Dx() * 3,
		Rect:   image.Rect(0, 0, b.Dx(), b.Dy()),
	}
	for y := 0; y < b.Dy(); y++ {
		row := canvas.Pix[y*canvas.Stride : y*canvas.Stride+b.Dx()*4]
		dst := out.Pix[y*out.Stride : (y+1)*out.Stride]
		for x := 0; x < b.Dx(); x++ {
			dst[x*3] = row[x*4]
			dst[x*3+1] = row[x*4+1]
			dst[x*3+2] = row[x*4+2]
		}
	}
	return out
}
