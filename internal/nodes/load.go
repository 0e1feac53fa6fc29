package nodes

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/JaimeStill/metainfo/pkg/folders"
	"github.com/JaimeStill/metainfo/pkg/imaging"
	"github.com/JaimeStill/metainfo/pkg/node"
	"github.com/JaimeStill/metainfo/pkg/sidecar"
)

// Load reads an image from the input root together with the generation
// parameters recorded for it in the output tree.
type Load struct {
	folders *folders.Resolver
	sidecar *sidecar.Store
	logger  *slog.Logger
}

// NewLoad creates the AdvancedLoadImage node.
func NewLoad(deps Deps) *Load {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Load{
		folders: deps.Folders,
		sidecar: deps.Sidecar,
		logger:  logger.With("node", "AdvancedLoadImage"),
	}
}

func (l *Load) Spec() node.Spec {
	options, err := l.folders.InputFiles()
	if err != nil {
		l.logger.Warn("input files not listed", "error", err)
	}

	return node.Spec{
		Name:        "AdvancedLoadImage",
		DisplayName: "AdvancedLoadImage",
		Category:    Category,
		Description: "Loads an image and the generation parameters saved alongside it.",
		Required: []node.Field{
			{Name: "image", Kind: node.KindString, Options: options, Tooltip: "Input file, optionally annotated with [input], [output] or [temp]."},
		},
		Outputs: []node.Field{
			{Name: "IMAGE", Kind: node.KindImage},
			{Name: "MASK", Kind: node.KindMask},
			{Name: "clip_skip", Kind: node.KindInt},
			{Name: "positive", Kind: node.KindString},
			{Name: "negative", Kind: node.KindString},
			{Name: "seed", Kind: node.KindInt},
			{Name: "width", Kind: node.KindInt},
			{Name: "height", Kind: node.KindInt},
			{Name: "steps", Kind: node.KindInt},
			{Name: "cfg", Kind: node.KindFloat},
		},
	}
}

// Validate rejects names that do not resolve to an existing file.
func (l *Load) Validate(args node.Args) error {
	name := args.String("image")
	if !l.folders.Exists(name) {
		return fmt.Errorf("%w: %s", ErrInvalidImage, name)
	}
	return nil
}

// Fingerprint hashes the image together with the input root's meta.json.
func (l *Load) Fingerprint(args node.Args) (string, error) {
	h := sha256.New()

	if err := hashFile(h, l.folders.Annotated(args.String("image"))); err != nil {
		return "", err
	}

	err := hashFile(h, sidecar.Path(l.folders.InputDir()))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func (l *Load) Execute(_ context.Context, args node.Args) (*node.Result, error) {
	name := args.String("image")

	batch, err := imaging.Load(l.folders.Annotated(name))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}

	rec := l.lookup(name)

	return &node.Result{Values: []any{
		batch.Frames,
		batch.Masks,
		int64(rec.ClipSkip),
		rec.Positive,
		rec.Negative,
		rec.Seed,
		int64(rec.Width),
		int64(rec.Height),
		int64(rec.Steps),
		rec.CFG,
	}}, nil
}

// lookup finds the sidecar record for the image's base name anywhere under
// the output root.
func (l *Load) lookup(name string) sidecar.Record {
	base, _ := folders.SplitAnnotation(name)
	filename := filepath.Base(filepath.FromSlash(base))

	dir, ok := l.folders.Holder(filename)
	if !ok {
		return sidecar.Record{}
	}
	return l.sidecar.Read(dir, filename)
}

func hashFile(h io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("hash %s: %w", path, err)
	}
	return nil
}
