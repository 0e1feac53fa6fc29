package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/JaimeStill/metainfo/pkg/folders"
	"github.com/JaimeStill/metainfo/pkg/handlers"
	"github.com/JaimeStill/metainfo/pkg/routes"
	"github.com/JaimeStill/metainfo/pkg/sidecar"
	"github.com/JaimeStill/metainfo/pkg/storage"
)

// File errors.
var (
	ErrFileNotFound = errors.New("file not found")
	ErrNoMetadata   = errors.New("no metadata recorded for file")
)

// MetadataResponse is the sidecar record of one output image.
type MetadataResponse struct {
	Filename  string         `json:"filename"`
	Subfolder string         `json:"subfolder"`
	Record    sidecar.Record `json:"record"`
}

type filesHandler struct {
	folders *folders.Resolver
	sidecar *sidecar.Store
	archive storage.System
	logger  *slog.Logger
}

func newFilesHandler(
	res *folders.Resolver,
	store *sidecar.Store,
	archive storage.System,
	logger *slog.Logger,
) *filesHandler {
	return &filesHandler{
		folders: res,
		sidecar: store,
		archive: archive,
		logger:  logger.With("handler", "files"),
	}
}

func (h *filesHandler) routes() routes.Group {
	return routes.Group{
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/view", Handler: h.view},
			{Method: "GET", Pattern: "/metadata/{filename}", Handler: h.metadata},
		},
	}
}

// view serves a file from the output, input or temp root. Output files
// missing on disk are served from the archive when one is configured.
func (h *filesHandler) view(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	typ := q.Get("type")
	subfolder := q.Get("subfolder")
	filename := q.Get("filename")

	p, err := h.folders.Resolve(typ, subfolder, filename)
	if err != nil {
		handlers.RespondError(w, h.logger, folders.MapHTTPStatus(err), err)
		return
	}

	f, err := os.Open(p)
	if err == nil {
		defer f.Close()
		info, err := f.Stat()
		if err != nil || info.IsDir() {
			handlers.RespondError(w, h.logger, http.StatusNotFound, fmt.Errorf("%w: %s", ErrFileNotFound, filename))
			return
		}
		http.ServeContent(w, r, filename, info.ModTime(), f)
		return
	}

	if !errors.Is(err, os.ErrNotExist) {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	if h.archive == nil || (typ != "" && typ != folders.TypeOutput) {
		handlers.RespondError(w, h.logger, http.StatusNotFound, fmt.Errorf("%w: %s", ErrFileNotFound, filename))
		return
	}

	h.fromArchive(w, r, subfolder, filename)
}

func (h *filesHandler) fromArchive(w http.ResponseWriter, r *http.Request, subfolder, filename string) {
	key := h.archive.Key(subfolder, filename)

	body, err := h.archive.Download(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			err = fmt.Errorf("%w: %s", ErrFileNotFound, filename)
		}
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}
	defer body.Close()

	ctype := mime.TypeByExtension(path.Ext(filename))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("archive stream interrupted", "key", key, "error", err)
	}
}

// metadata returns the sidecar record of an output image. Without a
// subfolder query parameter the whole output tree is searched.
func (h *filesHandler) metadata(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")

	var dir string
	if r.URL.Query().Has("subfolder") {
		p, err := h.folders.Resolve(folders.TypeOutput, r.URL.Query().Get("subfolder"), filename)
		if err != nil {
			handlers.RespondError(w, h.logger, folders.MapHTTPStatus(err), err)
			return
		}
		dir = filepath.Dir(p)
	} else {
		holder, ok := h.folders.Holder(filename)
		if !ok {
			handlers.RespondError(w, h.logger, http.StatusNotFound, fmt.Errorf("%w: %s", ErrNoMetadata, filename))
			return
		}
		dir = holder
	}

	rec := h.sidecar.Read(dir, filename)
	if rec.IsZero() {
		handlers.RespondError(w, h.logger, http.StatusNotFound, fmt.Errorf("%w: %s", ErrNoMetadata, filename))
		return
	}

	subfolder, err := filepath.Rel(h.folders.OutputDir(), dir)
	if err != nil || subfolder == "." {
		subfolder = ""
	}

	handlers.RespondJSON(w, http.StatusOK, MetadataResponse{
		Filename:  filename,
		Subfolder: filepath.ToSlash(subfolder),
		Record:    rec,
	})
}
