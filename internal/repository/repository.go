// Package repository persists check reports so past runs can be listed and
// compared.
package repository

import (
	"context"
	"errors"

	"github.com/reachscan/pkg/model"
)

// ErrNotFound is returned when a check ID has no record.
var ErrNotFound = errors.New("check not found")

// CheckRepository stores check reports.
type CheckRepository interface {
	// Save stores report. Saving a check ID twice is an error.
	Save(ctx context.Context, report *model.Report) error

	// Get returns the report for checkID, or ErrNotFound.
	Get(ctx context.Context, checkID string) (*model.Report, error)

	// List returns up to limit reports, newest first.
	List(ctx context.Context, limit int) ([]*model.Report, error)
}
