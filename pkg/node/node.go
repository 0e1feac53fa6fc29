// Package node defines the contract for units of work exposed to a
// pipeline orchestrator: a declared input/output signature, an execute
// operation, and an explicit registry the nodes are added to at startup.
package node

import (
	"context"
	"slices"
)

// Kind names the type of an input or output socket.
type Kind string

const (
	KindImage        Kind = "IMAGE"
	KindMask         Kind = "MASK"
	KindInt          Kind = "INT"
	KindFloat        Kind = "FLOAT"
	KindString       Kind = "STRING"
	KindPrompt       Kind = "PROMPT"
	KindExtraPNGInfo Kind = "EXTRA_PNGINFO"
)

// Field declares one input or output. Options lists suggested values for
// a STRING input; nodes that restrict their values do so in Validate.
type Field struct {
	Name    string   `json:"name"`
	Kind    Kind     `json:"kind"`
	Default any      `json:"default,omitempty"`
	Tooltip string   `json:"tooltip,omitempty"`
	Options []string `json:"options,omitempty"`
}

// Spec is the signature a node advertises.
type Spec struct {
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Category    string  `json:"category"`
	Description string  `json:"description,omitempty"`
	Required    []Field `json:"required"`
	Optional    []Field `json:"optional,omitempty"`
	Hidden      []Field `json:"hidden,omitempty"`
	Outputs     []Field `json:"outputs"`
	OutputNode  bool    `json:"output_node"`
}

// Inputs returns every declared input: required, optional, then hidden.
func (s Spec) Inputs() []Field {
	return slices.Concat(s.Required, s.Optional, s.Hidden)
}

// Field returns the declared input with the given name.
func (s Spec) Field(name string) (Field, bool) {
	for _, f := range s.Inputs() {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Defaults returns the declared default of every input that has one.
func (s Spec) Defaults() Args {
	args := make(Args)
	for _, f := range s.Inputs() {
		if f.Default != nil {
			args[f.Name] = f.Default
		}
	}
	return args
}

// Node is a unit of work.
type Node interface {
	Spec() Spec
	Execute(ctx context.Context, args Args) (*Result, error)
}

// Validator is implemented by nodes that check their inputs before
// execution.
type Validator interface {
	Validate(args Args) error
}

// Fingerprinter is implemented by nodes whose output depends on state
// outside their inputs. A changed fingerprint means a cached result is
// stale.
type Fingerprinter interface {
	Fingerprint(args Args) (string, error)
}

// Result carries the ordered output values and optional UI payload.
type Result struct {
	Values []any `json:"-"`
	UI     *UI   `json:"ui,omitempty"`
}

// UI is the display payload of an output node.
type UI struct {
	Images []Output `json:"images"`
}

// Output identifies a file written by a node.
type Output struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}
