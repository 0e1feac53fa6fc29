// Package workflow models the node graph a pipeline host serializes into
// the "prompt" metadata of a saved image, and recovers the prompt text that
// fed its sampler.
package workflow

import (
	"errors"
	"strconv"

	"github.com/tidwall/gjson"
)

// ErrInvalidGraph reports a document that is not a JSON object.
var ErrInvalidGraph = errors.New("invalid workflow graph")

// Kind tags the shape of a node input value.
type Kind int

const (
	// KindLiteral is a scalar value: string, number, boolean, or null.
	KindLiteral Kind = iota
	// KindReference is a [node-id, output-slot] link to another node.
	KindReference
	// KindOther is any array or object that is not a reference.
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindReference:
		return "reference"
	default:
		return "other"
	}
}

// Ref is the target of a reference input.
type Ref struct {
	Node string
	Slot int
}

// Input is a single named input of a node.
type Input struct {
	Kind  Kind
	value gjson.Result
	ref   Ref
}

// String returns the literal string value. ok is false for references,
// non-string literals, and composite values.
func (in Input) String() (string, bool) {
	if in.Kind != KindLiteral || in.value.Type != gjson.String {
		return "", false
	}
	return in.value.Str, true
}

// Reference returns the link target when the input is a reference.
func (in Input) Reference() (Ref, bool) {
	if in.Kind != KindReference {
		return Ref{}, false
	}
	return in.ref, true
}

// Raw returns the input value as it appeared in the document.
func (in Input) Raw() string {
	return in.value.Raw
}

// Node is one record of the graph.
type Node struct {
	ID        string
	ClassType string
	Inputs    map[string]Input
}

// Input returns the named input.
func (n Node) Input(name string) (Input, bool) {
	in, ok := n.Inputs[name]
	return in, ok
}

// Graph holds the nodes of a workflow in document order.
type Graph struct {
	Nodes []Node
	index map[string]int
}

// Node returns the first node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	if g == nil {
		return Node{}, false
	}
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.Nodes[i], true
}

// Parse decodes a serialized graph. Node records that are not objects are
// skipped; a missing class_type reads as "" and missing inputs as none.
func Parse(data []byte) (*Graph, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidGraph
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, ErrInvalidGraph
	}

	g := &Graph{index: make(map[string]int)}
	doc.ForEach(func(key, value gjson.Result) bool {
		if !value.IsObject() {
			return true
		}
		n := Node{
			ID:        key.String(),
			ClassType: text(value.Get("class_type")),
			Inputs:    parseInputs(value.Get("inputs")),
		}
		if _, seen := g.index[n.ID]; !seen {
			g.index[n.ID] = len(g.Nodes)
		}
		g.Nodes = append(g.Nodes, n)
		return true
	})

	return g, nil
}

func parseInputs(v gjson.Result) map[string]Input {
	inputs := make(map[string]Input)
	if !v.IsObject() {
		return inputs
	}
	v.ForEach(func(key, value gjson.Result) bool {
		inputs[key.String()] = parseInput(value)
		return true
	})
	return inputs
}

func parseInput(v gjson.Result) Input {
	if ref, ok := parseRef(v); ok {
		return Input{Kind: KindReference, value: v, ref: ref}
	}
	if v.IsArray() || v.IsObject() {
		return Input{Kind: KindOther, value: v}
	}
	return Input{Kind: KindLiteral, value: v}
}

// parseRef accepts [id, slot] where id is a string or an integral number
// and slot is an integral number.
func parseRef(v gjson.Result) (Ref, bool) {
	if !v.IsArray() {
		return Ref{}, false
	}
	parts := v.Array()
	if len(parts) != 2 {
		return Ref{}, false
	}

	var id string
	switch parts[0].Type {
	case gjson.String:
		id = parts[0].Str
	case gjson.Number:
		n, ok := integral(parts[0])
		if !ok {
			return Ref{}, false
		}
		id = strconv.FormatInt(n, 10)
	default:
		return Ref{}, false
	}

	if parts[1].Type != gjson.Number {
		return Ref{}, false
	}
	slot, ok := integral(parts[1])
	if !ok {
		return Ref{}, false
	}

	return Ref{Node: id, Slot: int(slot)}, true
}

func integral(v gjson.Result) (int64, bool) {
	n := v.Int()
	if float64(n) != v.Num {
		return 0, false
	}
	return n, true
}

func text(v gjson.Result) string {
	if v.Type != gjson.String {
		return ""
	}
	return v.Str
}
