package imaging

import (
	"bytes"
	"fmt"
	"image/png"
	"io"
)

// DefaultCompressLevel is the zlib-style level used when saving outputs.
const DefaultCompressLevel = 4

// CompressionLevel maps a 0-9 zlib-style level onto the PNG encoder's
// levels. Values outside the range are clamped.
func CompressionLevel(level int) png.CompressionLevel {
	switch {
	case level <= 0:
		return png.NoCompression
	case level <= 3:
		return png.BestSpeed
	case level <= 6:
		return png.DefaultCompression
	default:
		return png.BestCompression
	}
}

// Encode writes f as an opaque RGB PNG.
func Encode(w io.Writer, f Frame, level int) error {
	if !f.Valid() {
		return fmt.Errorf("%w: %dx%d with %d samples", ErrFrameSize, f.Width, f.Height, len(f.Pix))
	}
	enc := png.Encoder{CompressionLevel: CompressionLevel(level)}
	if err := enc.Encode(w, f.Image()); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// EncodeBytes is Encode into a new buffer.
func EncodeBytes(f Frame, level int) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, f, level); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
