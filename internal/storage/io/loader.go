package io

import (
	"context"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/sandpad/sandpad/internal/conventions"
	"github.com/sandpad/sandpad/internal/model"
)

// RuntimeYAMLRepository loads runtime configuration from YAML files.
type RuntimeYAMLRepository struct {
	fs fs.FS
}

// NewRuntimeYAMLRepository creates a new YAML runtime config repository.
func NewRuntimeYAMLRepository(filesystem fs.FS) *RuntimeYAMLRepository {
	return &RuntimeYAMLRepository{fs: filesystem}
}

// GetRuntimeConfig loads a runtime configuration from a YAML file and returns
// a validated domain model. Missing fields fall back to the defaults.
func (r *RuntimeYAMLRepository) GetRuntimeConfig(ctx context.Context, path string) (model.RuntimeConfig, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return model.RuntimeConfig{}, fmt.Errorf("reading config file: %w", err)
	}

	if ctx.Err() != nil {
		return model.RuntimeConfig{}, ctx.Err()
	}

	var cfg RuntimeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.RuntimeConfig{}, fmt.Errorf("parsing YAML: %w", err)
	}

	mcfg := cfg.toModel()
	if err := mcfg.Validate(); err != nil {
		return model.RuntimeConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return mcfg, nil
}

// DefaultRuntimeConfig returns the runtime configuration with every field
// resolved from the conventions.
func DefaultRuntimeConfig() model.RuntimeConfig {
	return RuntimeConfig{}.toModel()
}

// RuntimeConfig represents the YAML structure for runtime configuration.
type RuntimeConfig struct {
	Image        string            `yaml:"image"`
	Workdir      string            `yaml:"workdir"`
	Env          map[string]string `yaml:"env"`
	PreviewPorts []int             `yaml:"preview_ports"`
	Resources    ResourcesConfig   `yaml:"resources"`
}

// ResourcesConfig represents the YAML structure for resource configuration.
type ResourcesConfig struct {
	VCPUs    float64 `yaml:"vcpus"`
	MemoryMB int     `yaml:"memory_mb"`
}

func (c RuntimeConfig) toModel() model.RuntimeConfig {
	cfg := model.RuntimeConfig{
		Image:        c.Image,
		Workdir:      c.Workdir,
		Env:          c.Env,
		PreviewPorts: c.PreviewPorts,
		Resources: model.Resources{
			VCPUs:    c.Resources.VCPUs,
			MemoryMB: c.Resources.MemoryMB,
		},
	}

	if cfg.Image == "" {
		cfg.Image = conventions.DefaultImage
	}
	if cfg.Workdir == "" {
		cfg.Workdir = conventions.Workdir
	}
	if len(cfg.PreviewPorts) == 0 {
		cfg.PreviewPorts = conventions.DefaultPreviewPorts
	}

	return cfg
}
