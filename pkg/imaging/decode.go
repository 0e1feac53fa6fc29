package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Load decodes every frame of the image file at path.
func Load(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return DecodeBytes(data)
}

// LoadFirst decodes only the first frame of the file at path.
func LoadFirst(path string) (Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return Frame{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return Frame{}, decodeError(err)
	}
	return FromImage(img), nil
}

// Decode reads an encoded image from r. Animated GIFs yield one frame per
// image, composited in display order; other formats yield a single frame.
// Frames whose size differs from the first are dropped.
func Decode(r io.Reader) (*Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return DecodeBytes(data)
}

// DecodeBytes is Decode over an in-memory file.
func DecodeBytes(data []byte) (*Batch, error) {
	if bytes.HasPrefix(data, []byte("GIF8")) {
		return decodeGIF(data)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, decodeError(err)
	}

	b := &Batch{}
	mask, _ := MaskFromImage(img)
	b.add(FromImage(img), mask)
	return b, nil
}

// Format returns the registered format name of the encoded image.
func Format(data []byte) (string, error) {
	_, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", decodeError(err)
	}
	return name, nil
}

func decodeGIF(data []byte) (*Batch, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode gif: %w", err)
	}
	if len(g.Image) == 0 {
		return nil, ErrNoFrames
	}

	transparent := false
	for _, frame := range g.Image {
		if transparentPalette(frame.Palette) {
			transparent = true
			break
		}
	}

	w, h := g.Config.Width, g.Config.Height
	if w == 0 || h == 0 {
		bounds := g.Image[0].Bounds()
		w, h = bounds.Max.X, bounds.Max.Y
	}
	canvas := image.NewNRGBA(image.Rect(0, 0, w, h))

	b := &Batch{}
	for i, frame := range g.Image {
		var previous *image.NRGBA
		disposal := byte(0)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		if disposal == gif.DisposalPrevious {
			previous = image.NewNRGBA(canvas.Rect)
			copy(previous.Pix, canvas.Pix)
		}

		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)

		mask := EmptyMask()
		if transparent {
			mask, _ = MaskFromImage(canvas)
		}
		b.add(FromImage(canvas), mask)

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, frame.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = previous
		}
	}

	return b, nil
}

func decodeError(err error) error {
	if errors.Is(err, image.ErrFormat) {
		return fmt.Errorf("%w: %w", ErrUnsupported, err)
	}
	return fmt.Errorf("decode image: %w", err)
}
