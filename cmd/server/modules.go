package main

import (
	"net/http"

	"github.com/JaimeStill/metainfo/internal/api"
	"github.com/JaimeStill/metainfo/internal/config"
	"github.com/JaimeStill/metainfo/internal/infrastructure"
	"github.com/JaimeStill/metainfo/pkg/handlers"
	"github.com/JaimeStill/metainfo/pkg/module"
)

// Modules holds the mounted HTTP modules.
type Modules struct {
	API *module.Module
}

// ReadyResponse is the body of /readyz.
type ReadyResponse struct {
	Status  string          `json:"status"`
	Systems map[string]bool `json:"systems"`
}

func NewModules(infra *infrastructure.Infrastructure, cfg *config.Config) (*Modules, error) {
	apiModule, err := api.NewModule(cfg, infra)
	if err != nil {
		return nil, err
	}
	return &Modules{API: apiModule}, nil
}

func (m *Modules) Mount(router *module.Router) {
	router.Mount(m.API)
}

// buildRouter registers /healthz and /readyz. Readiness requires startup
// to have completed; optional systems that are down report degraded with
// a 200.
func buildRouter(infra *infrastructure.Infrastructure) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		systems := infra.Lifecycle.Status()

		if !infra.Lifecycle.Ready() {
			handlers.RespondJSON(w, http.StatusServiceUnavailable, ReadyResponse{Status: "not ready", Systems: systems})
			return
		}

		status := "ready"
		for _, ok := range systems {
			if !ok {
				status = "degraded"
			}
		}
		handlers.RespondJSON(w, http.StatusOK, ReadyResponse{Status: status, Systems: systems})
	})

	return router
}
