package pngtext

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"strings"
)

// maxTextChunk bounds the size of a text chunk held in memory.
const maxTextChunk = 64 << 20

// Read scans a PNG stream and returns its text chunks in file order.
// Reading stops at IEND. Every chunk CRC is verified.
func Read(r io.Reader) (Chunks, error) {
	if err := readSignature(r); err != nil {
		return nil, err
	}

	var chunks Chunks
	hdr := make([]byte, 8)
	for {
		if _, err := io.ReadFull(r, hdr); err != nil {
			return nil, fmt.Errorf("%w: chunk header: %w", ErrCorrupt, err)
		}
		length := binary.BigEndian.Uint32(hdr[:4])
		typ := string(hdr[4:8])

		crc := crc32.NewIEEE()
		crc.Write(hdr[4:8])

		if isText(typ) {
			if length > maxTextChunk {
				return nil, fmt.Errorf("%w: %s chunk of %d bytes", ErrCorrupt, typ, length)
			}
			data := make([]byte, length)
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, fmt.Errorf("%w: %s data: %w", ErrCorrupt, typ, err)
			}
			crc.Write(data)
			if err := checkCRC(r, crc.Sum32(), typ); err != nil {
				return nil, err
			}
			ch, err := decodeText(typ, data)
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, ch)
			continue
		}

		if _, err := io.CopyN(crc, r, int64(length)); err != nil {
			return nil, fmt.Errorf("%w: %s data: %w", ErrCorrupt, typ, err)
		}
		if err := checkCRC(r, crc.Sum32(), typ); err != nil {
			return nil, err
		}
		if typ == typeIEND {
			return chunks, nil
		}
	}
}

// ReadBytes is Read over an in-memory file.
func ReadBytes(data []byte) (Chunks, error) {
	return Read(bytes.NewReader(data))
}

func readSignature(r io.Reader) error {
	sig := make([]byte, len(signature))
	if _, err := io.ReadFull(r, sig); err != nil {
		return ErrNotPNG
	}
	if string(sig) != signature {
		return ErrNotPNG
	}
	return nil
}

func checkCRC(r io.Reader, sum uint32, typ string) error {
	var stored [4]byte
	if _, err := io.ReadFull(r, stored[:]); err != nil {
		return fmt.Errorf("%w: %s crc: %w", ErrCorrupt, typ, err)
	}
	if binary.BigEndian.Uint32(stored[:]) != sum {
		return fmt.Errorf("%w: %s crc mismatch", ErrCorrupt, typ)
	}
	return nil
}

func isText(typ string) bool {
	return typ == typeTEXT || typ == typeZTXT || typ == typeITXT
}

func decodeText(typ string, data []byte) (Chunk, error) {
	keyword, rest, ok := bytes.Cut(data, []byte{0})
	if !ok {
		return Chunk{}, fmt.Errorf("%w: %s without keyword separator", ErrCorrupt, typ)
	}
	key := latin1(keyword)

	switch typ {
	case typeTEXT:
		return Chunk{Keyword: key, Text: latin1(rest)}, nil

	case typeZTXT:
		if len(rest) < 1 {
			return Chunk{}, fmt.Errorf("%w: zTXt without compression method", ErrCorrupt)
		}
		if rest[0] != 0 {
			return Chunk{}, fmt.Errorf("%w: zTXt method %d", ErrUnsupportedText, rest[0])
		}
		text, err := inflate(rest[1:])
		if err != nil {
			return Chunk{}, err
		}
		return Chunk{Keyword: key, Text: latin1(text)}, nil

	default:
		return decodeITXt(key, rest)
	}
}

// decodeITXt parses the body after the keyword: compression flag, method,
// language tag, translated keyword, then UTF-8 text.
func decodeITXt(key string, rest []byte) (Chunk, error) {
	if len(rest) < 2 {
		return Chunk{}, fmt.Errorf("%w: truncated iTXt", ErrCorrupt)
	}
	compressed, method := rest[0], rest[1]
	rest = rest[2:]

	_, rest, ok := bytes.Cut(rest, []byte{0})
	if !ok {
		return Chunk{}, fmt.Errorf("%w: iTXt language tag", ErrCorrupt)
	}
	_, text, ok := bytes.Cut(rest, []byte{0})
	if !ok {
		return Chunk{}, fmt.Errorf("%w: iTXt translated keyword", ErrCorrupt)
	}

	if compressed != 0 {
		if method != 0 {
			return Chunk{}, fmt.Errorf("%w: iTXt method %d", ErrUnsupportedText, method)
		}
		var err error
		if text, err = inflate(text); err != nil {
			return Chunk{}, err
		}
	}
	return Chunk{Keyword: key, Text: string(text)}, nil
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: inflate text: %w", ErrCorrupt, err)
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, maxTextChunk+1))
	if err != nil {
		return nil, fmt.Errorf("%w: inflate text: %w", ErrCorrupt, err)
	}
	if len(out) > maxTextChunk {
		return nil, fmt.Errorf("%w: inflated text exceeds %d bytes", ErrCorrupt, maxTextChunk)
	}
	return out, nil
}

func latin1(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		sb.WriteRune(rune(c))
	}
	return sb.String()
}
