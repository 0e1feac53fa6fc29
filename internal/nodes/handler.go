package nodes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/JaimeStill/metainfo/pkg/formatting"
	"github.com/JaimeStill/metainfo/pkg/handlers"
	"github.com/JaimeStill/metainfo/pkg/imaging"
	"github.com/JaimeStill/metainfo/pkg/node"
	"github.com/JaimeStill/metainfo/pkg/routes"
)

// Handler exposes the node registry over HTTP.
type Handler struct {
	reg           *node.Registry
	logger        *slog.Logger
	maxUploadSize int64
}

// ImageSummary describes an IMAGE or MASK output without its pixels.
type ImageSummary struct {
	Frames int `json:"frames"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ExecuteResponse is the result of one node execution.
type ExecuteResponse struct {
	Outputs []any    `json:"outputs"`
	UI      *node.UI `json:"ui,omitempty"`
}

// FingerprintResponse carries a node's change fingerprint.
type FingerprintResponse struct {
	Fingerprint string `json:"fingerprint"`
}

// NewHandler creates a Handler over reg. Multipart requests larger than
// maxUploadSize are rejected.
func NewHandler(reg *node.Registry, logger *slog.Logger, maxUploadSize int64) *Handler {
	return &Handler{
		reg:           reg,
		logger:        logger.With("handler", "nodes"),
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the node route group.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/nodes",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "GET", Pattern: "/{name}", Handler: h.Find},
			{Method: "POST", Pattern: "/{name}/execute", Handler: h.Execute},
			{Method: "POST", Pattern: "/{name}/fingerprint", Handler: h.Fingerprint},
		},
	}
}

// List returns the spec of every registered node.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	handlers.RespondJSON(w, http.StatusOK, h.reg.Specs())
}

// Find returns the spec of one node.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	n, err := h.reg.Lookup(r.PathValue("name"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, n.Spec())
}

// Execute runs a node with inputs from a multipart form or a JSON object.
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	args, err := h.args(w, r, name)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	res, err := h.reg.Run(r.Context(), name, args)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, ExecuteResponse{
		Outputs: summarize(res.Values),
		UI:      res.UI,
	})
}

// Fingerprint reports the change fingerprint of a node for the given
// inputs. Nodes without one respond 204.
func (h *Handler) Fingerprint(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	args, err := h.args(w, r, name)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	fp, ok, err := h.reg.Fingerprint(name, args)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, FingerprintResponse{Fingerprint: fp})
}

func (h *Handler) args(w http.ResponseWriter, r *http.Request, name string) (node.Args, error) {
	n, err := h.reg.Lookup(name)
	if err != nil {
		return nil, err
	}
	spec := n.Spec()

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return h.formArgs(w, r, spec)
	}
	return jsonArgs(r.Body, spec)
}

func (h *Handler) formArgs(w http.ResponseWriter, r *http.Request, spec node.Spec) (node.Args, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: limit %s", ErrUploadTooLarge, formatting.FormatBytes(h.maxUploadSize, 1))
		}
		return nil, fmt.Errorf("%w: %w", node.ErrInvalidInput, err)
	}

	args := make(node.Args)

	for _, f := range spec.Inputs() {
		if f.Kind == node.KindImage {
			frames, err := formImages(r, f.Name)
			if err != nil {
				return nil, err
			}
			if frames != nil {
				args[f.Name] = frames
			}
			continue
		}

		raw, ok := r.MultipartForm.Value[f.Name]
		if !ok || len(raw) == 0 {
			continue
		}
		v, err := node.ParseValue(f, raw[0])
		if err != nil {
			return nil, err
		}
		args[f.Name] = v
	}

	return args, nil
}

// formImages decodes every file uploaded under name into one frame batch.
func formImages(r *http.Request, name string) ([]imaging.Frame, error) {
	var frames []imaging.Frame

	for _, fh := range r.MultipartForm.File[name] {
		file, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
		}
		batch, err := imaging.Decode(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", node.ErrInvalidInput, fh.Filename, err)
		}
		frames = append(frames, batch.Frames...)
	}

	return frames, nil
}

// jsonArgs reads inputs from a JSON object. IMAGE and MASK inputs cannot
// be given this way.
func jsonArgs(body io.Reader, spec node.Spec) (node.Args, error) {
	var raw map[string]any

	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: body is not a JSON object", node.ErrInvalidInput)
	}

	args := make(node.Args, len(raw))
	for k, v := range raw {
		f, ok := spec.Field(k)
		if !ok {
			return nil, fmt.Errorf("%w: unknown input %s", node.ErrInvalidInput, k)
		}
		if f.Kind == node.KindImage || f.Kind == node.KindMask {
			return nil, fmt.Errorf("%w: %s must be uploaded as multipart form data", node.ErrInvalidInput, k)
		}
		args[k] = v
	}
	return args, nil
}

func summarize(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		switch t := v.(type) {
		case []imaging.Frame:
			s := ImageSummary{Frames: len(t)}
			if len(t) > 0 {
				s.Width, s.Height = t[0].Width, t[0].Height
			}
			out[i] = s
		case []imaging.Mask:
			s := ImageSummary{Frames: len(t)}
			if len(t) > 0 {
				s.Width, s.Height = t[0].Width, t[0].Height
			}
			out[i] = s
		default:
			out[i] = v
		}
	}
	return out
}
