// Package pprof records runtime profiles of a single reachscan invocation.
//
// Usage:
//
//	collector, err := pprof.NewCollector(&pprof.Config{OutputDir: "./pprof"})
//	if err != nil {
//	    return err
//	}
//	if err := collector.Start(); err != nil {
//	    return err
//	}
//	defer collector.Stop()
//
// The CPU profile covers Start to Stop; the other profiles are snapshots
// taken at Stop.
package pprof

import (
	"fmt"
	"strings"
)

// ProfileType defines the type of profile to collect.
type ProfileType string

const (
	ProfileCPU       ProfileType = "cpu"
	ProfileHeap      ProfileType = "heap"
	ProfileGoroutine ProfileType = "goroutine"
	ProfileBlock     ProfileType = "block"
	ProfileMutex     ProfileType = "mutex"
	ProfileAllocs    ProfileType = "allocs"
)

// AllProfileTypes returns all supported profile types.
func AllProfileTypes() []ProfileType {
	return []ProfileType{
		ProfileCPU,
		ProfileHeap,
		ProfileGoroutine,
		ProfileBlock,
		ProfileMutex,
		ProfileAllocs,
	}
}

// DefaultProfileTypes returns the default profile types to collect.
func DefaultProfileTypes() []ProfileType {
	return []ProfileType{ProfileCPU, ProfileHeap}
}

// ParseProfileTypes parses a comma-separated string into profile types.
func ParseProfileTypes(s string) ([]ProfileType, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultProfileTypes(), nil
	}

	valid := make(map[ProfileType]bool)
	for _, pt := range AllProfileTypes() {
		valid[pt] = true
	}

	parts := strings.Split(s, ",")
	types := make([]ProfileType, 0, len(parts))
	seen := make(map[ProfileType]bool)
	for _, p := range parts {
		pt := ProfileType(strings.TrimSpace(strings.ToLower(p)))
		if !valid[pt] {
			return nil, fmt.Errorf("unknown profile type: %q", p)
		}
		if !seen[pt] {
			seen[pt] = true
			types = append(types, pt)
		}
	}
	return types, nil
}

// Config holds the pprof configuration.
type Config struct {
	// OutputDir receives one <type>.pprof file per profile.
	OutputDir string

	// Profiles specifies which profile types to collect.
	Profiles []ProfileType

	// CPURate is the CPU profiling rate in Hz. Zero keeps the runtime default.
	CPURate int
}

// HasProfile reports whether pt is enabled.
func (c *Config) HasProfile(pt ProfileType) bool {
	for _, p := range c.Profiles {
		if p == pt {
			return true
		}
	}
	return false
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("pprof output directory is required")
	}
	if c.CPURate < 0 {
		return fmt.Errorf("CPU rate must not be negative")
	}
	return nil
}
