// Package folders resolves the output, input and temp roots the nodes read
// from and write to, and allocates non-colliding output filenames.
package folders

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/JaimeStill/metainfo/pkg/sidecar"
)

// Root types accepted by annotations and the view endpoint.
const (
	TypeOutput = "output"
	TypeInput  = "input"
	TypeTemp   = "temp"
)

// Errors returned by path resolution.
var (
	ErrOutsideOutput = errors.New("path escapes the output directory")
	ErrUnknownType   = errors.New("unknown folder type")
	ErrInvalidName   = errors.New("invalid file name")
)

// MapHTTPStatus maps folder errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrOutsideOutput) || errors.Is(err, ErrUnknownType) || errors.Is(err, ErrInvalidName) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

var imageExts = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// Resolver maps logical roots to directories on disk.
type Resolver struct {
	output string
	input  string
	temp   string
}

// New creates a Resolver over absolute forms of the given roots.
func New(output, input, temp string) *Resolver {
	return &Resolver{
		output: absolute(output),
		input:  absolute(input),
		temp:   absolute(temp),
	}
}

func (r *Resolver) OutputDir() string { return r.output }
func (r *Resolver) InputDir() string  { return r.input }
func (r *Resolver) TempDir() string   { return r.temp }

// Root returns the directory for a root type. An empty type selects output.
func (r *Resolver) Root(typ string) (string, error) {
	switch typ {
	case TypeOutput, "":
		return r.output, nil
	case TypeInput:
		return r.input, nil
	case TypeTemp:
		return r.temp, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
}

// Ensure creates every root directory.
func (r *Resolver) Ensure() error {
	for _, dir := range []string{r.output, r.input, r.temp} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// SplitAnnotation strips a trailing " [output]", " [input]" or " [temp]"
// from name and returns the bare name and its root type. Names without an
// annotation belong to the input root.
func SplitAnnotation(name string) (string, string) {
	for _, typ := range []string{TypeOutput, TypeInput, TypeTemp} {
		suffix := " [" + typ + "]"
		if base, ok := strings.CutSuffix(name, suffix); ok {
			return base, typ
		}
	}
	return name, TypeInput
}

// Annotated resolves an annotated file name to a path under its root.
func (r *Resolver) Annotated(name string) string {
	base, typ := SplitAnnotation(name)
	root, _ := r.Root(typ)
	return filepath.Join(root, filepath.FromSlash(base))
}

// Exists reports whether an annotated name resolves to an existing file
// inside its root.
func (r *Resolver) Exists(name string) bool {
	base, typ := SplitAnnotation(name)
	root, _ := r.Root(typ)
	path := filepath.Join(root, filepath.FromSlash(base))
	if base == "" || !Within(root, path) {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// Holder returns the directory under the output root that contains
// filename.
func (r *Resolver) Holder(filename string) (string, bool) {
	return sidecar.Locate(r.output, filename)
}

// Resolve joins a subfolder and filename under the root of typ, rejecting
// paths that leave that root.
func (r *Resolver) Resolve(typ, subfolder, filename string) (string, error) {
	root, err := r.Root(typ)
	if err != nil {
		return "", err
	}
	if filename == "" || strings.ContainsAny(filename, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, filename)
	}
	path := filepath.Join(root, filepath.FromSlash(subfolder), filename)
	if !Within(root, path) {
		return "", fmt.Errorf("%w: %s", ErrOutsideOutput, path)
	}
	return path, nil
}

// InputFiles lists the image files directly inside the input root, sorted.
func (r *Resolver) InputFiles() ([]string, error) {
	entries, err := os.ReadDir(r.input)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list input directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if slices.Contains(imageExts, strings.ToLower(filepath.Ext(e.Name()))) {
			files = append(files, e.Name())
		}
	}
	slices.Sort(files)
	return files, nil
}

// Within reports whether path is root or lies beneath it.
func Within(root, path string) bool {
	rel, err := filepath.Rel(absolute(root), absolute(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func absolute(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	return abs
}
