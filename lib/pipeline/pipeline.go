// Package pipeline loads a module wiring from YAML and builds a broker from it.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/snowmerak/pubsub.go/lib/broker"
	"github.com/snowmerak/pubsub.go/lib/message"
	"github.com/snowmerak/pubsub.go/lib/module"
	"github.com/snowmerak/pubsub.go/lib/roles"
)

// Pipeline describes the modules to spawn and how the broker routes between them.
type Pipeline struct {
	Name              string   `yaml:"name"`
	Description       string   `yaml:"description,omitempty"`
	Strategy          string   `yaml:"strategy,omitempty"`            // push, pull
	IdleInterval      string   `yaml:"idle_interval,omitempty"`       // pull strategy only
	Acks              *bool    `yaml:"acks,omitempty"`                // default true
	OnDeliveryFailure string   `yaml:"on_delivery_failure,omitempty"` // isolate, abort
	Tick              Tick     `yaml:"tick,omitempty"`
	Modules           []Module `yaml:"modules"`
}

// Tick configures the external tick source.
type Tick struct {
	Interval string `yaml:"interval,omitempty"` // empty or 0 disables ticking
	Target   string `yaml:"target,omitempty"`   // module name, empty broadcasts
}

// Module is one module instance.
type Module struct {
	Name   string `yaml:"name"`
	Role   string `yaml:"role"`
	Input  string `yaml:"input,omitempty"`
	Output string `yaml:"output,omitempty"`
}

// Default returns the camera, detector and two displays wiring.
func Default() *Pipeline {
	return &Pipeline{
		Name:        "faces",
		Description: "camera frames through a face detector to two displays",
		Strategy:    broker.StrategyPush.String(),
		Tick:        Tick{Interval: "500ms", Target: "Camera"},
		Modules: []Module{
			{Name: "Camera", Role: "camera", Output: "/frames"},
			{Name: "FaceDetector", Role: "face_detector", Input: "/frames", Output: "/faces"},
			{Name: "Display", Role: "display", Input: "/faces"},
			{Name: "OtherDisplay", Role: "display", Input: "/faces"},
		},
	}
}

// Load reads a pipeline from a YAML file.
func Load(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a pipeline from YAML.
func Parse(data []byte) (*Pipeline, error) {
	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline: %w", err)
	}
	return &p, nil
}

// Save writes a pipeline to a YAML file, creating parent directories.
func Save(p *Pipeline, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode pipeline: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks the pipeline against the roles in reg and reports every problem found.
// A nil reg means the built-in roles.
func (p *Pipeline) Validate(reg *roles.Registry) error {
	if reg == nil {
		reg = roles.DefaultRegistry()
	}
	var errs []error

	if len(p.Modules) == 0 {
		errs = append(errs, errors.New("pipeline has no modules"))
	}

	names := make(map[string]struct{}, len(p.Modules))
	for i, m := range p.Modules {
		if m.Name == "" {
			errs = append(errs, fmt.Errorf("module %d: name is empty", i+1))
		} else if _, dup := names[m.Name]; dup {
			errs = append(errs, fmt.Errorf("module %q: duplicate name", m.Name))
		}
		names[m.Name] = struct{}{}

		if _, ok := reg.Get(m.Role); !ok {
			errs = append(errs, fmt.Errorf("module %q: unknown role %q", m.Name, m.Role))
		}
	}

	if _, err := broker.ParseStrategy(p.Strategy); err != nil {
		errs = append(errs, err)
	}
	if _, err := broker.ParseFailurePolicy(p.OnDeliveryFailure); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseDuration("idle_interval", p.IdleInterval); err != nil {
		errs = append(errs, err)
	}
	if _, err := parseDuration("tick.interval", p.Tick.Interval); err != nil {
		errs = append(errs, err)
	}
	if p.Tick.Target != "" {
		if _, ok := names[p.Tick.Target]; !ok {
			errs = append(errs, fmt.Errorf("tick target %q is not a module", p.Tick.Target))
		}
	}

	return errors.Join(errs...)
}

// TickInterval returns the parsed tick interval, zero when ticking is disabled.
func (p *Pipeline) TickInterval() time.Duration {
	d, _ := parseDuration("tick.interval", p.Tick.Interval)
	return d
}

// BrokerOptions converts the pipeline settings into broker options.
func (p *Pipeline) BrokerOptions(logger *zap.Logger) ([]broker.Option, error) {
	strategy, err := broker.ParseStrategy(p.Strategy)
	if err != nil {
		return nil, err
	}
	policy, err := broker.ParseFailurePolicy(p.OnDeliveryFailure)
	if err != nil {
		return nil, err
	}
	idle, err := parseDuration("idle_interval", p.IdleInterval)
	if err != nil {
		return nil, err
	}

	acks := true
	if p.Acks != nil {
		acks = *p.Acks
	}

	return []broker.Option{
		broker.WithStrategy(strategy),
		broker.WithIdleInterval(idle),
		broker.WithAcks(acks),
		broker.WithFailurePolicy(policy),
		broker.WithLogger(logger),
	}, nil
}

// Runtime is a built pipeline ready to run.
type Runtime struct {
	Broker       *broker.Broker
	Handlers     map[string]module.Handler
	TickInterval time.Duration
	TickTarget   message.ModuleID // External broadcasts
}

// Build validates the pipeline, creates every handler and spawns it on a new broker
// in file order. Extra options are applied after the pipeline's own. A nil reg means
// the built-in roles.
func (p *Pipeline) Build(reg *roles.Registry, logger *zap.Logger, extra ...broker.Option) (*Runtime, error) {
	if reg == nil {
		reg = roles.DefaultRegistry()
	}
	if err := p.Validate(reg); err != nil {
		return nil, fmt.Errorf("invalid pipeline %q: %w", p.Name, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts, err := p.BrokerOptions(logger)
	if err != nil {
		return nil, err
	}
	b := broker.New(append(opts, extra...)...)

	rt := &Runtime{
		Broker:       b,
		Handlers:     make(map[string]module.Handler, len(p.Modules)),
		TickInterval: p.TickInterval(),
		TickTarget:   message.External,
	}

	for _, m := range p.Modules {
		h, err := reg.Build(m.Role, m.Name, roles.Config{Input: m.Input, Output: m.Output}, logger)
		if err != nil {
			return nil, err
		}
		id, err := b.Spawn(m.Name, h)
		if err != nil {
			return nil, fmt.Errorf("failed to spawn module %q: %w", m.Name, err)
		}
		rt.Handlers[m.Name] = h
		if m.Name == p.Tick.Target {
			rt.TickTarget = id
		}
	}

	logger.Info("pipeline built", zap.String("name", p.Name), zap.Int("modules", len(p.Modules)))
	return rt, nil
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative", field)
	}
	return d, nil
}
