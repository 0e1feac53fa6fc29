package api

import (
	"fmt"

	"github.com/JaimeStill/metainfo/internal/history"
	"github.com/JaimeStill/metainfo/internal/nodes"
	"github.com/JaimeStill/metainfo/pkg/node"
)

// Domain holds the systems the API exposes. History is nil when no
// database is configured.
type Domain struct {
	Nodes   *node.Registry
	History history.System
}

// NewDomain creates the node registry and, when a database is configured,
// the output history the save node records into.
func NewDomain(runtime *Runtime) (*Domain, error) {
	d := &Domain{Nodes: node.NewRegistry(runtime.Logger)}

	deps := nodes.Deps{
		Folders:         runtime.Folders,
		Sidecar:         runtime.Sidecar,
		CompressLevel:   runtime.Save.Level(),
		DisableMetadata: runtime.Save.DisableMetadata,
		Prefix:          runtime.Save.Prefix,
		DateFormat:      runtime.Save.DateFormat,
		Archive:         runtime.Storage,
		Logger:          runtime.Logger,
	}

	if runtime.Database != nil {
		d.History = history.New(runtime.Database, runtime.Logger, runtime.Pagination)
		deps.History = d.History
	}

	if err := nodes.Register(d.Nodes, deps); err != nil {
		return nil, fmt.Errorf("domain init failed: %w", err)
	}

	return d, nil
}
