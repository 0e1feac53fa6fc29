package sidecar

import (
	"strings"

	"github.com/tidwall/gjson"
)

// TimestampLayout is the ISO-8601 local timestamp written with each record.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// Record holds the generation parameters stored for a single output image.
// Zero-valued fields are omitted on write and read back as their zero value.
type Record struct {
	ClipSkip  int     `json:"clip_skip,omitempty"`
	Positive  string  `json:"positive,omitempty"`
	Negative  string  `json:"negative,omitempty"`
	Seed      int64   `json:"seed,omitempty"`
	Width     int     `json:"width,omitempty"`
	Height    int     `json:"height,omitempty"`
	Steps     int     `json:"steps,omitempty"`
	CFG       float64 `json:"cfg,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// IsZero reports whether no parameter is set.
func (r Record) IsZero() bool {
	return r == Record{}
}

// recordFrom extracts each field independently so a mistyped field does not
// discard the rest of the entry.
func recordFrom(v gjson.Result) Record {
	return Record{
		ClipSkip:  int(integer(v.Get("clip_skip"))),
		Positive:  text(v.Get("positive")),
		Negative:  text(v.Get("negative")),
		Seed:      integer(v.Get("seed")),
		Width:     int(integer(v.Get("width"))),
		Height:    int(integer(v.Get("height"))),
		Steps:     int(integer(v.Get("steps"))),
		CFG:       number(v.Get("cfg")),
		Timestamp: text(v.Get("timestamp")),
	}
}

func text(v gjson.Result) string {
	if v.Type != gjson.String {
		return ""
	}
	return v.Str
}

// integer reads a JSON integer. Strings, booleans and fractional numbers
// read as 0.
func integer(v gjson.Result) int64 {
	if v.Type != gjson.Number || strings.ContainsAny(v.Raw, ".eE") {
		return 0
	}
	return v.Int()
}

func number(v gjson.Result) float64 {
	if v.Type != gjson.Number {
		return 0
	}
	return v.Num
}
