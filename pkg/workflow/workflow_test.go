package workflow_test

import (
	"errors"
	"testing"

	"github.com/JaimeStill/metainfo/pkg/workflow"
)

const directGraph = `{
  "3": {"class_type": "KSampler", "inputs": {"seed": 42, "positive": ["6", 0], "negative": ["7", 0], "model": ["4", 0]}},
  "4": {"class_type": "CheckpointLoaderSimple", "inputs": {"ckpt_name": "model.safetensors"}},
  "6": {"class_type": "CLIPTextEncode", "inputs": {"text": "a cat", "clip": ["4", 1]}},
  "7": {"class_type": "CLIPTextEncode", "inputs": {"text": "blurry", "clip": ["4", 1]}}
}`

const indirectGraph = `{
  "10": {"class_type": "KSamplerAdvanced", "inputs": {"positive": [11, 0], "negative": ["12", 0]}},
  "11": {"class_type": "CLIPTextEncode", "inputs": {"text": ["20", 0]}},
  "12": {"class_type": "CLIPTextEncode", "inputs": {"text": "lowres"}},
  "20": {"class_type": "ShowText|pysssss", "inputs": {"text": ["30", 0], "text_0": "a dog"}},
  "30": {"class_type": "StringConcat", "inputs": {"a": "a", "b": "dog"}}
}`

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want workflow.Prompts
	}{
		{
			name: "direct literals",
			doc:  directGraph,
			want: workflow.Prompts{Positive: "a cat", Negative: "blurry"},
		},
		{
			name: "one indirection through text_0",
			doc:  indirectGraph,
			want: workflow.Prompts{Positive: "a dog", Negative: "lowres"},
		},
		{
			name: "no sampler",
			doc:  `{"1": {"class_type": "CLIPTextEncode", "inputs": {"text": "orphan"}}}`,
			want: workflow.Prompts{},
		},
		{
			name: "empty graph",
			doc:  `{}`,
			want: workflow.Prompts{},
		},
		{
			name: "first sampler wins",
			doc: `{
			  "1": {"class_type": "KSampler", "inputs": {"positive": ["2", 0], "negative": ["3", 0]}},
			  "2": {"class_type": "CLIPTextEncode", "inputs": {"text": "first"}},
			  "3": {"class_type": "CLIPTextEncode", "inputs": {"text": "first neg"}},
			  "4": {"class_type": "KSampler", "inputs": {"positive": ["5", 0], "negative": ["5", 0]}},
			  "5": {"class_type": "CLIPTextEncode", "inputs": {"text": "second"}}
			}`,
			want: workflow.Prompts{Positive: "first", Negative: "first neg"},
		},
		{
			name: "broken reference",
			doc: `{
			  "1": {"class_type": "KSampler", "inputs": {"positive": ["99", 0], "negative": ["3", 0]}},
			  "3": {"class_type": "CLIPTextEncode", "inputs": {"text": "neg only"}}
			}`,
			want: workflow.Prompts{Negative: "neg only"},
		},
		{
			name: "non-string text",
			doc: `{
			  "1": {"class_type": "KSampler", "inputs": {"positive": ["2", 0], "negative": ["3", 0]}},
			  "2": {"class_type": "CLIPTextEncode", "inputs": {"text": 12}},
			  "3": {"class_type": "CLIPTextEncode", "inputs": {"text": {"nested": true}}}
			}`,
			want: workflow.Prompts{},
		},
		{
			name: "indirection without text_0 stays empty",
			doc: `{
			  "1": {"class_type": "KSampler", "inputs": {"positive": ["2", 0], "negative": ["3", 0]}},
			  "2": {"class_type": "CLIPTextEncode", "inputs": {"text": ["4", 0]}},
			  "3": {"class_type": "CLIPTextEncode", "inputs": {"text": "neg"}},
			  "4": {"class_type": "PrimitiveString", "inputs": {"value": "hidden"}}
			}`,
			want: workflow.Prompts{Negative: "neg"},
		},
		{
			name: "shared encoder resolves positive only",
			doc: `{
			  "1": {"class_type": "KSampler", "inputs": {"positive": ["2", 0], "negative": ["2", 0]}},
			  "2": {"class_type": "CLIPTextEncode", "inputs": {"text": "shared"}}
			}`,
			want: workflow.Prompts{Positive: "shared"},
		},
		{
			name: "sampler missing inputs",
			doc: `{
			  "1": {"class_type": "KSampler", "inputs": {}},
			  "2": {"class_type": "CLIPTextEncode", "inputs": {"text": "x"}}
			}`,
			want: workflow.Prompts{},
		},
		{
			name: "malformed records skipped",
			doc: `{
			  "0": "garbage",
			  "1": {"class_type": "KSampler", "inputs": {"positive": ["2", 0], "negative": ["3", 0]}},
			  "2": {"inputs": {"text": "no class"}},
			  "3": {"class_type": "CLIPTextEncode"}
			}`,
			want: workflow.Prompts{Positive: "no class"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := workflow.ExtractJSON([]byte(tt.doc))
			if got != tt.want {
				t.Errorf("ExtractJSON = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestExtractNilGraph(t *testing.T) {
	if got := workflow.Extract(nil); got != (workflow.Prompts{}) {
		t.Errorf("Extract(nil) = %+v, want empty", got)
	}
}

func TestExtractJSONInvalid(t *testing.T) {
	for _, doc := range []string{"", "not json", "[1, 2]", `"text"`} {
		if got := workflow.ExtractJSON([]byte(doc)); got != (workflow.Prompts{}) {
			t.Errorf("ExtractJSON(%q) = %+v, want empty", doc, got)
		}
	}
}

func TestParse(t *testing.T) {
	g, err := workflow.Parse([]byte(indirectGraph))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var ids []string
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
	}
	want := []string{"10", "11", "12", "20", "30"}
	if len(ids) != len(want) {
		t.Fatalf("node ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("node ids = %v, want document order %v", ids, want)
		}
	}

	sampler, ok := g.Node("10")
	if !ok {
		t.Fatal("sampler node not found")
	}
	if sampler.ClassType != "KSamplerAdvanced" {
		t.Errorf("class type = %q", sampler.ClassType)
	}

	pos, ok := sampler.Input("positive")
	if !ok {
		t.Fatal("positive input missing")
	}
	ref, ok := pos.Reference()
	if !ok {
		t.Fatalf("positive input kind = %v, want reference", pos.Kind)
	}
	if ref.Node != "11" || ref.Slot != 0 {
		t.Errorf("numeric node id not normalized: %+v", ref)
	}

	if _, ok := g.Node("missing"); ok {
		t.Error("unexpected node for unknown id")
	}
}

func TestParseInputKinds(t *testing.T) {
	g, err := workflow.Parse([]byte(`{
	  "1": {"class_type": "Mixed", "inputs": {
	    "text": "hello",
	    "seed": 7,
	    "link": ["2", 1],
	    "triple": ["2", 1, 3],
	    "badslot": ["2", "x"],
	    "fractional": [2.5, 0],
	    "obj": {"a": 1}
	  }}
	}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	n, _ := g.Node("1")
	tests := []struct {
		input string
		kind  workflow.Kind
	}{
		{"text", workflow.KindLiteral},
		{"seed", workflow.KindLiteral},
		{"link", workflow.KindReference},
		{"triple", workflow.KindOther},
		{"badslot", workflow.KindOther},
		{"fractional", workflow.KindOther},
		{"obj", workflow.KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			in, ok := n.Input(tt.input)
			if !ok {
				t.Fatalf("input %q missing", tt.input)
			}
			if in.Kind != tt.kind {
				t.Errorf("kind = %v, want %v", in.Kind, tt.kind)
			}
		})
	}

	seed, _ := n.Input("seed")
	if _, ok := seed.String(); ok {
		t.Error("numeric literal should not read as a string")
	}
	if seed.Raw() != "7" {
		t.Errorf("raw = %q, want 7", seed.Raw())
	}
}

func TestParseInvalid(t *testing.T) {
	for _, doc := range []string{"", "{", "[]", "null", "42"} {
		if _, err := workflow.Parse([]byte(doc)); !errors.Is(err, workflow.ErrInvalidGraph) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalidGraph", doc, err)
		}
	}
}
