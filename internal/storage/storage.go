// Package storage locates heap dumps on the local filesystem or in Tencent
// Cloud COS.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/reachscan/pkg/config"
)

// ErrNotFound is wrapped by every backend when a key does not exist.
var ErrNotFound = errors.New("object not found")

// COSScheme prefixes dump references that live in COS.
const COSScheme = "cos://"

// Storage is a read side view of an object store holding heap dumps.
type Storage interface {
	// Open streams the object at key. The caller closes the reader.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Fetch copies the object at key to localPath.
	Fetch(ctx context.Context, key, localPath string) error

	// Exists reports whether an object exists at key.
	Exists(ctx context.Context, key string) (bool, error)

	// URL returns a human readable location for key.
	URL(key string) string
}

// StorageType represents the type of storage backend.
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeCOS   StorageType = "cos"
)

// NewStorage creates the backend named by cfg.Type.
func NewStorage(cfg *config.StorageConfig) (Storage, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if StorageType(cfg.Type) == StorageTypeCOS {
		return NewCOSStorage(cosConfigFrom(cfg))
	}
	return NewLocalStorage(cfg.LocalPath), nil
}

// ValidateConfig validates the storage configuration. An empty type means
// local.
func ValidateConfig(cfg *config.StorageConfig) error {
	if cfg == nil {
		return fmt.Errorf("storage config is nil")
	}

	switch StorageType(cfg.Type) {
	case "", StorageTypeLocal:
		if cfg.LocalPath == "" {
			return fmt.Errorf("local storage path is required")
		}
	case StorageTypeCOS:
		return validateCOS(cfg)
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
	return nil
}

func validateCOS(cfg *config.StorageConfig) error {
	if cfg.Bucket == "" {
		return fmt.Errorf("COS bucket is required")
	}
	if cfg.Region == "" {
		return fmt.Errorf("COS region is required")
	}
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return fmt.Errorf("COS credentials are required")
	}
	return nil
}

func cosConfigFrom(cfg *config.StorageConfig) *COSConfig {
	return &COSConfig{
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		SecretID:  cfg.SecretID,
		SecretKey: cfg.SecretKey,
		Domain:    cfg.Domain,
		Scheme:    cfg.Scheme,
	}
}

// Resolve maps a dump reference to a backend and key. "cos://path/x.hprof"
// selects COS with key "path/x.hprof" regardless of cfg.Type; anything else
// is a path on the local filesystem relative to cfg.LocalPath.
func Resolve(cfg *config.StorageConfig, ref string) (Storage, string, error) {
	if ref == "" {
		return nil, "", fmt.Errorf("empty dump reference")
	}
	if key, ok := strings.CutPrefix(ref, COSScheme); ok {
		if key == "" {
			return nil, "", fmt.Errorf("missing object key in %q", ref)
		}
		if cfg == nil {
			return nil, "", fmt.Errorf("storage config is nil")
		}
		if err := validateCOS(cfg); err != nil {
			return nil, "", err
		}
		s, err := NewCOSStorage(cosConfigFrom(cfg))
		if err != nil {
			return nil, "", err
		}
		return s, key, nil
	}

	base := "."
	if cfg != nil && cfg.LocalPath != "" {
		base = cfg.LocalPath
	}
	return NewLocalStorage(base), ref, nil
}
