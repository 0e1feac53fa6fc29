package node

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/JaimeStill/metainfo/pkg/imaging"
)

// Args holds the inputs of one execution keyed by field name. IMAGE inputs
// hold []imaging.Frame and MASK inputs []imaging.Mask.
type Args map[string]any

// Value returns the raw input.
func (a Args) Value(name string) (any, bool) {
	v, ok := a[name]
	return v, ok
}

// Int returns an integer input, or 0 when absent or not numeric.
func (a Args) Int(name string) int64 {
	n, _ := toInt(a[name])
	return n
}

// Float returns a numeric input, or 0 when absent or not numeric.
func (a Args) Float(name string) float64 {
	f, _ := toFloat(a[name])
	return f
}

// String returns a string input, or "" when absent or not a string.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Images returns an IMAGE input.
func (a Args) Images(name string) []imaging.Frame {
	switch v := a[name].(type) {
	case []imaging.Frame:
		return v
	case imaging.Frame:
		return []imaging.Frame{v}
	case *imaging.Batch:
		if v != nil {
			return v.Frames
		}
	}
	return nil
}

// Masks returns a MASK input.
func (a Args) Masks(name string) []imaging.Mask {
	switch v := a[name].(type) {
	case []imaging.Mask:
		return v
	case *imaging.Batch:
		if v != nil {
			return v.Masks
		}
	}
	return nil
}

// With returns a copy of a with defaults filled in for absent names.
func (a Args) With(defaults Args) Args {
	out := make(Args, len(a)+len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range a {
		out[k] = v
	}
	return out
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case float32:
		return wholeFloat(float64(n))
	case float64:
		return wholeFloat(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return wholeFloat(f)
		}
	}
	return 0, false
}

func wholeFloat(f float64) (int64, bool) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return int64(f), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// ParseValue converts the text form of a scalar input to the type its
// field declares. PROMPT and EXTRA_PNGINFO text is decoded as JSON.
func ParseValue(f Field, raw string) (any, error) {
	switch f.Kind {
	case KindInt:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s is not an integer", ErrInvalidInput, f.Name)
		}
		return n, nil
	case KindFloat:
		n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s is not a number", ErrInvalidInput, f.Name)
		}
		return n, nil
	case KindString:
		return raw, nil
	case KindPrompt, KindExtraPNGInfo:
		var v map[string]any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("%w: %s is not a JSON object", ErrInvalidInput, f.Name)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %s cannot be given as text", ErrInvalidInput, f.Name)
	}
}
