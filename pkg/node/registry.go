package node

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/JaimeStill/metainfo/pkg/imaging"
)

// Registry is the table of nodes available for execution.
type Registry struct {
	mu     sync.RWMutex
	nodes  map[string]Node
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		nodes:  make(map[string]Node),
		logger: logger.With("system", "nodes"),
	}
}

// Register adds n under its spec name.
func (r *Registry) Register(n Node) error {
	name := n.Spec().Name
	if name == "" {
		return fmt.Errorf("%w: node without a name", ErrInvalidInput)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	r.nodes[name] = n
	r.logger.Debug("node registered", "node", name)
	return nil
}

// Lookup returns the node registered under name.
func (r *Registry) Lookup(name string) (Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.nodes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, name)
	}
	return n, nil
}

// Specs returns the spec of every node sorted by name.
func (r *Registry) Specs() []Spec {
	r.mu.RLock()
	specs := make([]Spec, 0, len(r.nodes))
	for _, n := range r.nodes {
		specs = append(specs, n.Spec())
	}
	r.mu.RUnlock()

	slices.SortFunc(specs, func(a, b Spec) int {
		return strings.Compare(a.Name, b.Name)
	})
	return specs
}

// Run fills declared defaults into args, checks them against the node's
// spec and its Validator, then executes the node.
func (r *Registry) Run(ctx context.Context, name string, args Args) (*Result, error) {
	n, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}

	args, err = prepare(n, args)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := n.Execute(ctx, args)
	if err != nil {
		r.logger.Error("node failed", "node", name, "error", err)
		return nil, fmt.Errorf("execute %s: %w", name, err)
	}

	r.logger.Info("node executed", "node", name, "duration", time.Since(start))
	return res, nil
}

// Fingerprint returns the change fingerprint of a node for args. ok is
// false for nodes that do not report one. Args pass the same checks as
// Run before the node sees them.
func (r *Registry) Fingerprint(name string, args Args) (fp string, ok bool, err error) {
	n, err := r.Lookup(name)
	if err != nil {
		return "", false, err
	}
	f, isFP := n.(Fingerprinter)
	if !isFP {
		return "", false, nil
	}

	args, err = prepare(n, args)
	if err != nil {
		return "", false, err
	}

	fp, err = f.Fingerprint(args)
	if err != nil {
		return "", false, fmt.Errorf("fingerprint %s: %w", name, err)
	}
	return fp, true, nil
}

// prepare fills declared defaults into args and checks them against the
// node's spec and its Validator.
func prepare(n Node, args Args) (Args, error) {
	spec := n.Spec()
	args = args.With(spec.Defaults())

	if err := check(spec, args); err != nil {
		return nil, err
	}

	if v, ok := n.(Validator); ok {
		if err := v.Validate(args); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}
	return args, nil
}

func check(spec Spec, args Args) error {
	for _, f := range spec.Required {
		if _, ok := args[f.Name]; !ok {
			return fmt.Errorf("%w: missing required input %s", ErrInvalidInput, f.Name)
		}
	}

	for _, f := range spec.Inputs() {
		v, ok := args[f.Name]
		if !ok || v == nil {
			continue
		}
		if !accepts(f.Kind, v) {
			return fmt.Errorf("%w: %s expects %s, got %T", ErrInvalidInput, f.Name, f.Kind, v)
		}
	}
	return nil
}

func accepts(k Kind, v any) bool {
	switch k {
	case KindImage:
		switch v.(type) {
		case []imaging.Frame, imaging.Frame, *imaging.Batch:
			return true
		}
		return false
	case KindMask:
		switch v.(type) {
		case []imaging.Mask, *imaging.Batch:
			return true
		}
		return false
	case KindInt:
		_, ok := toInt(v)
		return ok
	case KindFloat:
		_, ok := toFloat(v)
		return ok
	case KindString:
		_, ok := v.(string)
		return ok
	default:
		return true
	}
}
