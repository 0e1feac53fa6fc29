package nodes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/JaimeStill/metainfo/pkg/imaging"
	"github.com/JaimeStill/metainfo/pkg/node"
	"github.com/JaimeStill/metainfo/pkg/pngtext"
	"github.com/JaimeStill/metainfo/pkg/workflow"
)

// PromptKeyword is the PNG text chunk holding the workflow graph.
const PromptKeyword = "prompt"

// Extractor recovers the positive and negative prompts of an image from the
// workflow graph embedded in it.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates the MetainfoExtractor node.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger.With("node", "MetainfoExtractor")}
}

func (e *Extractor) Spec() node.Spec {
	return node.Spec{
		Name:        "MetainfoExtractor",
		DisplayName: "PNG Info Loader (DIY)",
		Category:    Category,
		Description: "Loads an image and extracts its prompts from the embedded workflow.",
		Required: []node.Field{
			{Name: "path", Kind: node.KindString, Default: ""},
		},
		Outputs: []node.Field{
			{Name: "image", Kind: node.KindImage},
			{Name: "positive", Kind: node.KindString},
			{Name: "negative", Kind: node.KindString},
		},
	}
}

func (e *Extractor) Execute(_ context.Context, args node.Args) (*node.Result, error) {
	path := args.String("path")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	frame, err := firstFrame(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	prompts := e.prompts(path, data)
	return &node.Result{Values: []any{[]imaging.Frame{frame}, prompts.Positive, prompts.Negative}}, nil
}

// prompts returns empty prompts when the image carries no readable graph.
func (e *Extractor) prompts(path string, data []byte) workflow.Prompts {
	chunks, err := pngtext.ReadBytes(data)
	if err != nil {
		if !errors.Is(err, pngtext.ErrNotPNG) {
			e.logger.Warn("text chunks unreadable", "path", path, "error", err)
		}
		return workflow.Prompts{}
	}

	graph, ok := chunks.Get(PromptKeyword)
	if !ok {
		e.logger.Debug("no workflow embedded", "path", path)
		return workflow.Prompts{}
	}

	return workflow.ExtractJSON([]byte(graph))
}

func firstFrame(data []byte) (imaging.Frame, error) {
	batch, err := imaging.DecodeBytes(data)
	if err != nil {
		return imaging.Frame{}, err
	}
	if len(batch.Frames) == 0 {
		return imaging.Frame{}, imaging.ErrNoFrames
	}
	return batch.Frames[0], nil
}
