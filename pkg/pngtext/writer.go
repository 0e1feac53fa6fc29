package pngtext

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"unicode/utf8"
)

// Embed writes png to w with chunks inserted directly after IHDR. Values
// representable in Latin-1 are stored as tEXt; anything else as an
// uncompressed iTXt.
func Embed(w io.Writer, png []byte, chunks []Chunk) error {
	if !bytes.HasPrefix(png, []byte(signature)) {
		return ErrNotPNG
	}
	for _, ch := range chunks {
		if !ValidKeyword(ch.Keyword) {
			return fmt.Errorf("%w: %q", ErrInvalidKeyword, ch.Keyword)
		}
		if !utf8.ValidString(ch.Text) {
			return fmt.Errorf("%w: %s value is not valid UTF-8", ErrInvalidText, ch.Keyword)
		}
	}

	body := png[len(signature):]
	if len(body) < 8 || string(body[4:8]) != typeIHDR {
		return ErrMissingIHDR
	}
	ihdrEnd := 12 + int(binary.BigEndian.Uint32(body[:4]))
	if ihdrEnd > len(body) {
		return fmt.Errorf("%w: truncated IHDR", ErrCorrupt)
	}

	if _, err := w.Write(png[:len(signature)+ihdrEnd]); err != nil {
		return err
	}
	for _, ch := range chunks {
		typ, data := encodeText(ch)
		if err := writeChunk(w, typ, data); err != nil {
			return err
		}
	}
	_, err := w.Write(body[ihdrEnd:])
	return err
}

// EmbedBytes is Embed into a new buffer.
func EmbedBytes(png []byte, chunks []Chunk) ([]byte, error) {
	if len(chunks) == 0 {
		return png, nil
	}
	var buf bytes.Buffer
	buf.Grow(len(png) + 256)
	if err := Embed(&buf, png, chunks); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeText(ch Chunk) (string, []byte) {
	if text, ok := toLatin1(ch.Text); ok {
		key, _ := toLatin1(ch.Keyword)
		data := make([]byte, 0, len(key)+1+len(text))
		data = append(data, key...)
		data = append(data, 0)
		data = append(data, text...)
		return typeTEXT, data
	}

	// keyword, flag 0, method 0, empty language tag, empty translated keyword
	key, _ := toLatin1(ch.Keyword)
	data := make([]byte, 0, len(key)+5+len(ch.Text))
	data = append(data, key...)
	data = append(data, 0, 0, 0, 0, 0)
	data = append(data, ch.Text...)
	return typeITXT, data
}

func toLatin1(s string) ([]byte, bool) {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			return nil, false
		}
		out = append(out, byte(r))
	}
	return out, true
}

func writeChunk(w io.Writer, typ string, data []byte) error {
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[:4], uint32(len(data)))
	copy(hdr[4:], typ)

	crc := crc32.NewIEEE()
	crc.Write(hdr[4:])
	crc.Write(data)

	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())

	for _, b := range [][]byte{hdr[:], data, sum[:]} {
		if _, err := w.Write(b); err != nil {
			return fmt.Errorf("write %s chunk: %w", typ, err)
		}
	}
	return nil
}
