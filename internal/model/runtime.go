package model

import (
	"fmt"
)

// RuntimeConfig is the static configuration for booting a sandbox runtime.
// These settings are immutable after boot.
type RuntimeConfig struct {
	// Image is the container image the sandbox boots from.
	Image string
	// Workdir is the directory inside the sandbox the project mounts at.
	Workdir string
	// Env contains environment variables for every process in the sandbox.
	Env map[string]string
	// PreviewPorts are the candidate ports probed for the network-ready
	// signal, in priority order.
	PreviewPorts []int
	// Resources are the compute resources for the sandbox.
	Resources Resources
}

// Resources defines the compute resources for a sandbox.
type Resources struct {
	VCPUs    float64
	MemoryMB int
}

// Validate validates the runtime configuration.
func (c *RuntimeConfig) Validate() error {
	if c.Image == "" {
		return fmt.Errorf("image is required: %w", ErrNotValid)
	}
	if c.Workdir == "" {
		return fmt.Errorf("workdir is required: %w", ErrNotValid)
	}
	for _, p := range c.PreviewPorts {
		if p < 1 || p > 65535 {
			return fmt.Errorf("preview port %d out of range (1-65535): %w", p, ErrNotValid)
		}
	}
	if c.Resources.VCPUs < 0 {
		return fmt.Errorf("vcpus cannot be negative: %w", ErrNotValid)
	}
	if c.Resources.MemoryMB < 0 {
		return fmt.Errorf("memory_mb cannot be negative: %w", ErrNotValid)
	}
	return nil
}
