package nodes

import (
	"context"
	"fmt"

	"github.com/JaimeStill/metainfo/pkg/imaging"
	"github.com/JaimeStill/metainfo/pkg/node"
)

// Unlimit loads the first frame of an image from any path.
type Unlimit struct{}

// NewUnlimit creates the UnlimitLoadImage node.
func NewUnlimit() *Unlimit {
	return &Unlimit{}
}

func (Unlimit) Spec() node.Spec {
	return node.Spec{
		Name:        "UnlimitLoadImage",
		DisplayName: "UnlimitLoadImage",
		Category:    Category,
		Description: "Loads an image from an arbitrary path.",
		Required: []node.Field{
			{Name: "path", Kind: node.KindString, Default: ""},
		},
		Outputs: []node.Field{
			{Name: "image", Kind: node.KindImage},
		},
	}
}

func (Unlimit) Execute(_ context.Context, args node.Args) (*node.Result, error) {
	path := args.String("path")

	frame, err := imaging.LoadFirst(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return &node.Result{Values: []any{[]imaging.Frame{frame}}}, nil
}
