package router

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ServiceTarget is one generation backend the gateway can route to.
type ServiceTarget struct {
	Name         string   `yaml:"name" json:"name"`
	BaseURL      string   `yaml:"url" json:"url"`
	RateLimit    int      `yaml:"rate_limit" json:"rate_limit,omitempty"`
	StylePresets []string `yaml:"style_presets" json:"style_presets,omitempty"`
}

type registryFile struct {
	DefaultService string          `yaml:"default_service"`
	Services       []ServiceTarget `yaml:"services"`
}

// Registry holds the enumerated backend set. Routing is a pure function of
// request attributes; adding a backend is a data change in the services
// file, not a code change.
type Registry struct {
	targets       []ServiceTarget
	byName        map[string]*ServiceTarget
	byPreset      map[string]*ServiceTarget
	defaultTarget *ServiceTarget
}

// Load reads the registry from a YAML services file.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read services file: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse services file: %w", err)
	}

	return NewRegistry(file.Services, file.DefaultService)
}

// NewRegistry builds a registry from an explicit target list.
func NewRegistry(targets []ServiceTarget, defaultName string) (*Registry, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("no services configured")
	}

	r := &Registry{
		targets:  targets,
		byName:   make(map[string]*ServiceTarget, len(targets)),
		byPreset: make(map[string]*ServiceTarget),
	}

	for i := range targets {
		t := &r.targets[i]
		if t.Name == "" {
			return nil, fmt.Errorf("service at index %d has no name", i)
		}
		if t.BaseURL == "" {
			return nil, fmt.Errorf("service %s has no url", t.Name)
		}
		if _, dup := r.byName[t.Name]; dup {
			return nil, fmt.Errorf("duplicate service name: %s", t.Name)
		}
		r.byName[t.Name] = t

		for _, preset := range t.StylePresets {
			if prev, dup := r.byPreset[preset]; dup {
				return nil, fmt.Errorf("style preset %q claimed by both %s and %s", preset, prev.Name, t.Name)
			}
			r.byPreset[preset] = t
		}
	}

	def, ok := r.byName[defaultName]
	if !ok {
		return nil, fmt.Errorf("default service %q not in service list", defaultName)
	}
	r.defaultTarget = def

	return r, nil
}

// RouteFor resolves a style preset to exactly one target. Unknown or empty
// presets fall back to the default service.
func (r *Registry) RouteFor(stylePreset string) *ServiceTarget {
	if t, ok := r.byPreset[stylePreset]; ok {
		return t
	}
	return r.defaultTarget
}

// Lookup returns a target by service name.
func (r *Registry) Lookup(name string) (*ServiceTarget, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Default returns the designated fallback target.
func (r *Registry) Default() *ServiceTarget { return r.defaultTarget }

// Targets returns all registered targets in file order.
func (r *Registry) Targets() []ServiceTarget { return r.targets }

// ServiceLimits returns the per-service rate budgets for targets that
// declare one.
func (r *Registry) ServiceLimits() map[string]int {
	limits := make(map[string]int, len(r.targets))
	for _, t := range r.targets {
		if t.RateLimit > 0 {
			limits[t.Name] = t.RateLimit
		}
	}
	return limits
}
