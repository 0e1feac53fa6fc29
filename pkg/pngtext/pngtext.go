// Package pngtext reads and embeds PNG textual metadata chunks (tEXt, zTXt
// and iTXt). Pixel data is never decoded; chunks are copied through as
// stored.
package pngtext

import (
	"errors"
)

const signature = "\x89PNG\r\n\x1a\n"

const (
	typeIHDR = "IHDR"
	typeIEND = "IEND"
	typeTEXT = "tEXt"
	typeZTXT = "zTXt"
	typeITXT = "iTXt"
)

// maxKeyword is the longest keyword the PNG format allows.
const maxKeyword = 79

// Errors returned by Read and Embed.
var (
	ErrNotPNG          = errors.New("not a PNG file")
	ErrCorrupt         = errors.New("corrupt PNG stream")
	ErrInvalidKeyword  = errors.New("invalid text chunk keyword")
	ErrInvalidText     = errors.New("invalid text chunk value")
	ErrMissingIHDR     = errors.New("PNG stream does not start with IHDR")
	ErrUnsupportedText = errors.New("unsupported text chunk compression")
)

// Chunk is a keyword/value text pair.
type Chunk struct {
	Keyword string `json:"keyword"`
	Text    string `json:"text"`
}

// Chunks holds text chunks in file order.
type Chunks []Chunk

// Get returns the first value stored under keyword.
func (c Chunks) Get(keyword string) (string, bool) {
	for _, ch := range c {
		if ch.Keyword == keyword {
			return ch.Text, true
		}
	}
	return "", false
}

// Map returns the chunks keyed by keyword. Later duplicates are ignored.
func (c Chunks) Map() map[string]string {
	m := make(map[string]string, len(c))
	for _, ch := range c {
		if _, ok := m[ch.Keyword]; !ok {
			m[ch.Keyword] = ch.Text
		}
	}
	return m
}

// ValidKeyword reports whether k can name a PNG text chunk: 1 to 79 Latin-1
// printable characters without leading or trailing spaces.
func ValidKeyword(k string) bool {
	if len(k) == 0 || len(k) > maxKeyword {
		return false
	}
	if k[0] == ' ' || k[len(k)-1] == ' ' {
		return false
	}
	for _, r := range k {
		if r < 0x20 || r > 0xFF || (r > 0x7E && r < 0xA1) {
			return false
		}
	}
	return true
}
