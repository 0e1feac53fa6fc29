// Package nodes implements the image load, save and metadata extraction
// nodes and registers them with a node.Registry.
package nodes

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/JaimeStill/metainfo/internal/history"
	"github.com/JaimeStill/metainfo/pkg/folders"
	"github.com/JaimeStill/metainfo/pkg/imaging"
	"github.com/JaimeStill/metainfo/pkg/node"
	"github.com/JaimeStill/metainfo/pkg/sidecar"
	"github.com/JaimeStill/metainfo/pkg/storage"
)

// Category groups every node in this package.
const Category = "My Nodes"

// Node errors.
var (
	ErrInvalidImage   = errors.New("invalid image file")
	ErrNoImages       = errors.New("no images to save")
	ErrInvalidPrefix  = errors.New("invalid filename prefix")
	ErrUploadTooLarge = errors.New("upload exceeds the size limit")
)

// Recorder stores saved outputs in the history.
type Recorder interface {
	Record(ctx context.Context, cmds []history.CreateCommand) error
}

// Deps are the collaborators shared by the nodes. Archive and History are
// optional; a nil value disables them.
type Deps struct {
	Folders         *folders.Resolver
	Sidecar         *sidecar.Store
	Archive         storage.System
	History         Recorder
	CompressLevel   int
	DisableMetadata bool
	// Prefix and DateFormat override the save node's advertised defaults.
	Prefix     string
	DateFormat string
	Logger     *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Register adds every node in this package to reg.
func Register(reg *node.Registry, deps Deps) error {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	all := []node.Node{
		NewSave(deps),
		NewLoad(deps),
		NewExtractor(deps.Logger),
		NewUnlimit(),
	}

	for _, n := range all {
		if err := reg.Register(n); err != nil {
			return fmt.Errorf("register nodes: %w", err)
		}
	}
	return nil
}

// MapHTTPStatus maps node and registry errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidImage),
		errors.Is(err, ErrNoImages),
		errors.Is(err, ErrInvalidPrefix),
		errors.Is(err, imaging.ErrUnsupported),
		errors.Is(err, imaging.ErrNoFrames):
		return http.StatusBadRequest
	case errors.Is(err, ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, folders.ErrOutsideOutput):
		return folders.MapHTTPStatus(err)
	default:
		return node.MapHTTPStatus(err)
	}
}
