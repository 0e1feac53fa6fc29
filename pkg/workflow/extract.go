package workflow

import "strings"

const (
	samplerMarker = "KSampler"
	textInput     = "text"
	// textDisplayInput is the output field of the companion text display
	// node, the only indirection shape followed.
	textDisplayInput = "text_0"
)

// Prompts holds the prompt text recovered from a graph. A side that cannot
// be resolved is empty.
type Prompts struct {
	Positive string `json:"positive"`
	Negative string `json:"negative"`
}

// Resolved reports whether both sides were recovered.
func (p Prompts) Resolved() bool {
	return p.Positive != "" && p.Negative != ""
}

// ExtractJSON parses data and extracts its prompts. Unparseable data yields
// empty prompts.
func ExtractJSON(data []byte) Prompts {
	g, err := Parse(data)
	if err != nil {
		return Prompts{}
	}
	return Extract(g)
}

// Extract recovers the positive and negative prompt text feeding the first
// sampler node of g.
//
// The sampler's positive and negative references name the encoder nodes.
// An encoder whose text input is a literal string resolves its side
// directly. An encoder whose text input is itself a reference is followed
// one level, and only to a node exposing a literal text_0. When both sampler
// inputs name the same node, only the positive side resolves from it.
func Extract(g *Graph) Prompts {
	var p Prompts
	if g == nil {
		return p
	}

	posNode, negNode := samplerTargets(g)

	var posNext, negNext string
	for _, n := range g.Nodes {
		switch {
		case matches(n.ID, posNode):
			p.Positive, posNext = resolveText(n, p.Positive, posNext)
		case matches(n.ID, negNode):
			p.Negative, negNext = resolveText(n, p.Negative, negNext)
		}
	}

	if p.Resolved() {
		return p
	}

	for _, n := range g.Nodes {
		s, ok := literal(n, textDisplayInput)
		switch {
		case matches(n.ID, posNext) && p.Positive == "":
			if ok {
				p.Positive = s
			}
		case matches(n.ID, negNext) && p.Negative == "":
			if ok {
				p.Negative = s
			}
		}
	}

	return p
}

// samplerTargets returns the node ids referenced by the positive and
// negative inputs of the first sampler in document order.
func samplerTargets(g *Graph) (pos, neg string) {
	for _, n := range g.Nodes {
		if !strings.Contains(n.ClassType, samplerMarker) {
			continue
		}
		return refNode(n, "positive"), refNode(n, "negative")
	}
	return "", ""
}

func resolveText(n Node, text, next string) (string, string) {
	in, ok := n.Input(textInput)
	if !ok {
		return text, next
	}
	if s, ok := in.String(); ok {
		return s, next
	}
	if ref, ok := in.Reference(); ok {
		return text, ref.Node
	}
	return text, next
}

func refNode(n Node, name string) string {
	in, ok := n.Input(name)
	if !ok {
		return ""
	}
	ref, ok := in.Reference()
	if !ok {
		return ""
	}
	return ref.Node
}

func literal(n Node, name string) (string, bool) {
	in, ok := n.Input(name)
	if !ok {
		return "", false
	}
	return in.String()
}

func matches(id, target string) bool {
	return target != "" && id == target
}
