package formatter

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/reachscan/pkg/model"
)

// JSONFormatter writes reports as JSON.
type JSONFormatter struct {
	// Indent is the per-level indentation. Empty means compact output.
	Indent string
}

func (f *JSONFormatter) encode(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	if f.Indent != "" {
		enc.SetIndent("", f.Indent)
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// FormatReport implements Formatter.
func (f *JSONFormatter) FormatReport(w io.Writer, r *model.Report) error {
	return f.encode(w, r)
}

// FormatHistory implements Formatter. An empty history is "[]".
func (f *JSONFormatter) FormatHistory(w io.Writer, reports []*model.Report) error {
	if reports == nil {
		reports = []*model.Report{}
	}
	return f.encode(w, reports)
}

// YAMLFormatter writes reports as YAML.
type YAMLFormatter struct{}

func (f *YAMLFormatter) encode(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return enc.Close()
}

// FormatReport implements Formatter.
func (f *YAMLFormatter) FormatReport(w io.Writer, r *model.Report) error {
	return f.encode(w, r)
}

// FormatHistory implements Formatter.
func (f *YAMLFormatter) FormatHistory(w io.Writer, reports []*model.Report) error {
	if reports == nil {
		reports = []*model.Report{}
	}
	return f.encode(w, reports)
}
