// Package formatter renders check reports as text, JSON or YAML.
package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/reachscan/pkg/model"
)

// Formatter writes reports to w.
type Formatter interface {
	// FormatReport writes a single check report.
	FormatReport(w io.Writer, report *model.Report) error

	// FormatHistory writes a list of recorded checks.
	FormatHistory(w io.Writer, reports []*model.Report) error
}

// Format names an output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatText, FormatJSON, FormatYAML}
}

// Options configures New.
type Options struct {
	// Color enables ANSI colors in text output.
	Color bool

	// Verbose adds per-root statistics and phase timings to text output.
	Verbose bool
}

// New returns the formatter for name.
func New(name string, opts Options) (Formatter, error) {
	switch Format(strings.ToLower(name)) {
	case FormatText, "":
		return NewTextFormatter(opts), nil
	case FormatJSON:
		return &JSONFormatter{Indent: "  "}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q (want text, json or yaml)", name)
	}
}
