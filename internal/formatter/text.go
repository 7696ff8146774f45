package formatter

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/reachscan/pkg/model"
)

// TextFormatter renders reports for terminals.
type TextFormatter struct {
	verbose bool

	green  *color.Color
	red    *color.Color
	yellow *color.Color
	cyan   *color.Color
	bold   *color.Color
}

// NewTextFormatter creates a TextFormatter.
func NewTextFormatter(opts Options) *TextFormatter {
	f := &TextFormatter{
		verbose: opts.Verbose,
		green:   color.New(color.FgGreen, color.Bold),
		red:     color.New(color.FgRed, color.Bold),
		yellow:  color.New(color.FgYellow),
		cyan:    color.New(color.FgCyan),
		bold:    color.New(color.Bold),
	}
	for _, c := range []*color.Color{f.green, f.red, f.yellow, f.cyan, f.bold} {
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return f
}

func (f *TextFormatter) verdict(v model.Verdict) string {
	switch v {
	case model.VerdictPass:
		return f.green.Sprint(string(v))
	case model.VerdictFail:
		return f.red.Sprint(string(v))
	default:
		return f.yellow.Sprint(string(v))
	}
}

func reachability(reachable bool) string {
	if reachable {
		return "reachable"
	}
	return "not reachable"
}

// FormatReport writes a report.
func (f *TextFormatter) FormatReport(w io.Writer, r *model.Report) error {
	ew := &errWriter{w: w}

	ew.printf("%s %s\n", f.verdict(r.Verdict), f.bold.Sprint(r.TargetClass))
	ew.printf("  Check:    %s\n", r.CheckID)
	format := r.Dump.Format
	if c := r.Dump.Compression; c != "" && c != "none" {
		format += ", " + c
	}
	ew.printf("  Dump:     %s (%s, %d-byte IDs, %d classes, %d objects)\n",
		r.Dump.Location, format, r.Dump.IDSize, r.Dump.Classes, r.Dump.Objects)
	if r.Expect != model.ExpectNone {
		ew.printf("  Expected: %s\n", r.Expect)
	}
	ew.printf("  Result:   %s from %d root(s)\n", reachability(r.Reachable), len(r.Roots))

	if reaching := r.ReachingRoots(); len(reaching) > 0 {
		ew.printf("  Retained by: %s\n", strings.Join(reaching, ", "))
	}

	if f.verbose {
		ew.printf("\n  %-20s %-40s %-14s %8s %8s %8s\n", "ROOT", "CLASS", "RESULT", "VISITED", "TESTED", "REFUSED")
		for _, rr := range r.Roots {
			result := reachability(rr.Reachable)
			if rr.Reachable {
				result = f.red.Sprint(result)
			}
			ew.printf("  %-20s %-40s %-14s %8d %8d %8d\n", rr.Root, truncate(rr.RootClass, 40), result, rr.Visited, rr.Tested, rr.Refused)
		}
		if len(r.Phases) > 0 {
			ew.printf("\n")
			for _, p := range r.Phases {
				ew.printf("  %-14s %s\n", p.Name, f.cyan.Sprintf("%.1fms", p.DurationMs))
			}
		}
	}
	ew.printf("  Duration: %s\n", f.cyan.Sprintf("%.1fms", r.DurationMs))
	return ew.err
}

// FormatHistory writes one line per report.
func (f *TextFormatter) FormatHistory(w io.Writer, reports []*model.Report) error {
	ew := &errWriter{w: w}
	if len(reports) == 0 {
		ew.printf("No recorded checks\n")
		return ew.err
	}
	for _, r := range reports {
		ew.printf("%s  %s  %-4s  %-13s  %s  %s\n",
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.CheckID,
			f.verdict(r.Verdict),
			reachability(r.Reachable),
			f.bold.Sprint(r.TargetClass),
			r.Dump.Location)
	}
	return ew.err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// errWriter keeps the first write error.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...interface{}) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
