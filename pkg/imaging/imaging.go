// Package imaging converts between encoded image files and the normalized
// frame buffers the nodes exchange.
//
// Frames hold straight (non-premultiplied) RGB samples in [0, 1], row-major,
// three values per pixel. Masks hold one value per pixel where 1 marks a
// fully transparent source pixel.
package imaging

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
)

// EmptyMaskSize is the edge length of the placeholder mask returned for
// images without an alpha channel.
const EmptyMaskSize = 64

// Errors returned by decoding and encoding.
var (
	ErrUnsupported = errors.New("unsupported image format")
	ErrNoFrames    = errors.New("image contains no frames")
	ErrFrameSize   = errors.New("frame buffer does not match its dimensions")
)

// Frame is an RGB image with samples in [0, 1].
type Frame struct {
	Width  int
	Height int
	Pix    []float32
}

// Mask is a single-channel image with samples in [0, 1].
type Mask struct {
	Width  int
	Height int
	Pix    []float32
}

// Batch holds the frames of one loaded file and their masks, index-aligned.
type Batch struct {
	Frames []Frame
	Masks  []Mask
}

// Size returns the dimensions of the first frame.
func (b *Batch) Size() (width, height int) {
	if b == nil || len(b.Frames) == 0 {
		return 0, 0
	}
	return b.Frames[0].Width, b.Frames[0].Height
}

// add appends a frame unless its size differs from the first frame.
func (b *Batch) add(f Frame, m Mask) bool {
	if len(b.Frames) > 0 {
		w, h := b.Size()
		if f.Width != w || f.Height != h {
			return false
		}
	}
	b.Frames = append(b.Frames, f)
	b.Masks = append(b.Masks, m)
	return true
}

// NewFrame allocates a black frame.
func NewFrame(width, height int) Frame {
	return Frame{Width: width, Height: height, Pix: make([]float32, width*height*3)}
}

// EmptyMask returns the all-zero placeholder mask.
func EmptyMask() Mask {
	return Mask{
		Width:  EmptyMaskSize,
		Height: EmptyMaskSize,
		Pix:    make([]float32, EmptyMaskSize*EmptyMaskSize),
	}
}

// Valid reports whether Pix matches the frame dimensions.
func (f Frame) Valid() bool {
	return f.Width > 0 && f.Height > 0 && len(f.Pix) == f.Width*f.Height*3
}

// FromImage converts img to a frame, dropping any alpha.
func FromImage(img image.Image) Frame {
	src := toNRGBA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	f := NewFrame(w, h)

	for y := range h {
		row := src.Pix[y*src.Stride:]
		for x := range w {
			i := x * 4
			o := (y*w + x) * 3
			f.Pix[o] = float32(row[i]) / 255
			f.Pix[o+1] = float32(row[i+1]) / 255
			f.Pix[o+2] = float32(row[i+2]) / 255
		}
	}
	return f
}

// MaskFromImage returns 1 - alpha for images that carry transparency, or
// the placeholder mask and false for opaque image types.
func MaskFromImage(img image.Image) (Mask, bool) {
	if !hasAlpha(img) {
		return EmptyMask(), false
	}

	src := toNRGBA(img)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	m := Mask{Width: w, Height: h, Pix: make([]float32, w*h)}

	for y := range h {
		row := src.Pix[y*src.Stride:]
		for x := range w {
			m.Pix[y*w+x] = 1 - float32(row[x*4+3])/255
		}
	}
	return m, true
}

// Image converts the frame to an opaque 8-bit image, clipping samples to
// the valid range.
func (f Frame) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	for p := range f.Width * f.Height {
		o := p * 4
		i := p * 3
		img.Pix[o] = clip(f.Pix[i])
		img.Pix[o+1] = clip(f.Pix[i+1])
		img.Pix[o+2] = clip(f.Pix[i+2])
		img.Pix[o+3] = 255
	}
	return img
}

func clip(v float32) uint8 {
	s := float64(v) * 255
	if math.IsNaN(s) || s <= 0 {
		return 0
	}
	if s >= 255 {
		return 255
	}
	return uint8(s)
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	return dst
}

func hasAlpha(img image.Image) bool {
	switch m := img.(type) {
	case *image.Paletted:
		return transparentPalette(m.Palette)
	case *image.NRGBA, *image.NRGBA64, *image.Alpha, *image.Alpha16:
		return true
	// Decoders use the premultiplied types for sources without an alpha
	// channel, so only actual transparency counts.
	case *image.RGBA:
		return !m.Opaque()
	case *image.RGBA64:
		return !m.Opaque()
	case *image.Gray, *image.Gray16, *image.YCbCr, *image.CMYK:
		return false
	case interface{ Opaque() bool }:
		return !m.Opaque()
	default:
		return false
	}
}

func transparentPalette(p color.Palette) bool {
	for _, c := range p {
		if _, _, _, a := c.RGBA(); a != 0xffff {
			return true
		}
	}
	return false
}
