package api

import (
	"net/http"

	"github.com/JaimeStill/metainfo/internal/nodes"
	"github.com/JaimeStill/metainfo/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	runtime *Runtime,
) []string {
	groups := []routes.Group{
		nodes.NewHandler(domain.Nodes, runtime.Logger, runtime.MaxUploadSize).Routes(),
		newFilesHandler(runtime.Folders, runtime.Sidecar, runtime.Storage, runtime.Logger).routes(),
	}

	if domain.History != nil {
		groups = append(groups, domain.History.Handler().Routes())
	}

	return routes.Register(mux, groups...)
}
