// Package roles holds the module behaviors that can be named in a pipeline file:
// a camera that publishes frames on Tick, a face detector that turns frames into
// face coordinates, and a display that narrates what it receives.
package roles

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/snowmerak/pubsub.go/lib/module"
)

// Config binds a role to its topics. Empty fields fall back to the role's defaults.
type Config struct {
	Input  string
	Output string
}

// Role creates handlers for one kind of module.
type Role interface {
	// Name returns the identifier used in pipeline files.
	Name() string
	// Description returns a short human-readable description.
	Description() string
	// Defaults returns the topics used when Config leaves them empty.
	Defaults() Config
	// New creates a handler for one module instance.
	New(name string, cfg Config, logger *zap.Logger) (module.Handler, error)
}

// Registry stores available roles by name.
type Registry struct {
	roles map[string]Role
}

func NewRegistry() *Registry {
	return &Registry{roles: make(map[string]Role)}
}

// DefaultRegistry returns a registry with every built-in role.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Camera{})
	r.Register(FaceDetector{})
	r.Register(Display{})
	return r
}

func (r *Registry) Register(role Role) {
	r.roles[role.Name()] = role
}

func (r *Registry) Get(name string) (Role, bool) {
	role, ok := r.roles[name]
	return role, ok
}

// All returns the registered roles sorted by name.
func (r *Registry) All() []Role {
	out := make([]Role, 0, len(r.roles))
	for _, role := range r.roles {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Build creates a handler for a module named name playing role.
func (r *Registry) Build(role, name string, cfg Config, logger *zap.Logger) (module.Handler, error) {
	rl, ok := r.Get(role)
	if !ok {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	def := rl.Defaults()
	if cfg.Input == "" {
		cfg.Input = def.Input
	}
	if cfg.Output == "" {
		cfg.Output = def.Output
	}

	h, err := rl.New(name, cfg, logger.Named(rl.Name()).With(zap.String("module", name)))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s module %q: %w", role, name, err)
	}
	return h, nil
}
