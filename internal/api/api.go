// Package api assembles the API module: the node registry, file and
// metadata endpoints, and the output history when a database is
// configured.
package api

import (
	"net/http"

	"github.com/JaimeStill/metainfo/internal/config"
	"github.com/JaimeStill/metainfo/internal/infrastructure"
	"github.com/JaimeStill/metainfo/pkg/middleware"
	"github.com/JaimeStill/metainfo/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)

	domain, err := NewDomain(runtime)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	patterns := registerRoutes(mux, domain, runtime)
	runtime.Logger.Debug("routes registered", "count", len(patterns))

	m, err := module.New(cfg.API.BasePath, mux)
	if err != nil {
		return nil, err
	}
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))
	m.Use(middleware.Recover(runtime.Logger))

	return m, nil
}
