package pprof

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"sync"
)

// Collector writes runtime profiles for the span between Start and Stop.
type Collector struct {
	config *Config

	mu      sync.Mutex
	running bool
	cpuFile *os.File
	written []string
}

// NewCollector creates a Collector. Empty Profiles selects the defaults.
func NewCollector(cfg *Config) (*Collector, error) {
	if cfg == nil {
		return nil, fmt.Errorf("pprof config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := *cfg
	if len(c.Profiles) == 0 {
		c.Profiles = DefaultProfileTypes()
	}
	return &Collector{config: &c}, nil
}

func (c *Collector) path(pt ProfileType) string {
	return filepath.Join(c.config.OutputDir, string(pt)+".pprof")
}

// Start begins CPU profiling and enables block and mutex sampling when
// those profiles are requested.
func (c *Collector) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("pprof collector already started")
	}
	if err := os.MkdirAll(c.config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create pprof directory: %w", err)
	}

	if c.config.HasProfile(ProfileBlock) {
		runtime.SetBlockProfileRate(1)
	}
	if c.config.HasProfile(ProfileMutex) {
		runtime.SetMutexProfileFraction(1)
	}

	if c.config.HasProfile(ProfileCPU) {
		f, err := os.Create(c.path(ProfileCPU))
		if err != nil {
			return fmt.Errorf("failed to create CPU profile: %w", err)
		}
		if c.config.CPURate > 0 {
			runtime.SetCPUProfileRate(c.config.CPURate)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
		c.cpuFile = f
	}
	c.running = true
	return nil
}

// Stop ends CPU profiling and writes the snapshot profiles. It is a no-op
// when the collector is not running.
func (c *Collector) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return nil
	}
	c.running = false

	var errs []error
	if c.cpuFile != nil {
		pprof.StopCPUProfile()
		if err := c.cpuFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close CPU profile: %w", err))
		} else {
			c.written = append(c.written, c.cpuFile.Name())
		}
		c.cpuFile = nil
	}

	for _, pt := range c.config.Profiles {
		if pt == ProfileCPU {
			continue
		}
		if err := c.writeSnapshot(pt); err != nil {
			errs = append(errs, err)
		}
	}

	runtime.SetBlockProfileRate(0)
	runtime.SetMutexProfileFraction(0)
	return errors.Join(errs...)
}

func (c *Collector) writeSnapshot(pt ProfileType) error {
	p := pprof.Lookup(string(pt))
	if p == nil {
		return fmt.Errorf("unknown profile: %s", pt)
	}
	if pt == ProfileHeap || pt == ProfileAllocs {
		runtime.GC()
	}
	f, err := os.Create(c.path(pt))
	if err != nil {
		return fmt.Errorf("failed to create %s profile: %w", pt, err)
	}
	if err := p.WriteTo(f, 0); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s profile: %w", pt, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s profile: %w", pt, err)
	}
	c.written = append(c.written, f.Name())
	return nil
}

// Files returns the profile files written so far.
func (c *Collector) Files() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.written...)
}

// OutputDir returns the profile directory.
func (c *Collector) OutputDir() string {
	return c.config.OutputDir
}
