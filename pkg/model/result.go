package model

import "time"

// Verdict summarizes a check.
type Verdict string

const (
	// VerdictPass means the expectation held.
	VerdictPass Verdict = "PASS"
	// VerdictFail means the expectation was violated.
	VerdictFail Verdict = "FAIL"
	// VerdictInfo means no expectation was given.
	VerdictInfo Verdict = "INFO"
)

// RootResult is the outcome of scanning from a single root.
type RootResult struct {
	Root      string `json:"root" yaml:"root"`
	RootClass string `json:"root_class" yaml:"root_class"`
	Reachable bool   `json:"reachable" yaml:"reachable"`
	Visited   int    `json:"visited" yaml:"visited"`
	Tested    int    `json:"tested" yaml:"tested"`
	Refused   int    `json:"refused,omitempty" yaml:"refused,omitempty"`
}

// PhaseTiming is the duration of one service phase.
type PhaseTiming struct {
	Name       string  `json:"name" yaml:"name"`
	DurationMs float64 `json:"duration_ms" yaml:"duration_ms"`
}

// DumpInfo describes the loaded heap dump.
type DumpInfo struct {
	Location    string    `json:"location" yaml:"location"`
	Compression string    `json:"compression,omitempty" yaml:"compression,omitempty"`
	Format      string    `json:"format" yaml:"format"`
	IDSize      int       `json:"id_size" yaml:"id_size"`
	Created     time.Time `json:"created" yaml:"created"`
	Classes     int       `json:"classes" yaml:"classes"`
	Objects     int       `json:"objects" yaml:"objects"`
}

// Report is the result of a check run.
type Report struct {
	CheckID     string        `json:"check_id" yaml:"check_id"`
	TargetClass string        `json:"target_class" yaml:"target_class"`
	Expect      Expectation   `json:"expect,omitempty" yaml:"expect,omitempty"`
	Reachable   bool          `json:"reachable" yaml:"reachable"`
	Verdict     Verdict       `json:"verdict" yaml:"verdict"`
	Dump        DumpInfo      `json:"dump" yaml:"dump"`
	Roots       []RootResult  `json:"roots" yaml:"roots"`
	Phases      []PhaseTiming `json:"phases,omitempty" yaml:"phases,omitempty"`
	StartedAt   time.Time     `json:"started_at" yaml:"started_at"`
	DurationMs  float64       `json:"duration_ms" yaml:"duration_ms"`
}

// NewReport creates an empty report for req.
func NewReport(checkID string, req *CheckRequest, startedAt time.Time) *Report {
	return &Report{
		CheckID:     checkID,
		TargetClass: req.TargetClass,
		Expect:      req.Expect,
		Dump:        DumpInfo{Location: req.Dump},
		Roots:       []RootResult{},
		StartedAt:   startedAt,
	}
}

// AddRoot appends a per-root outcome. The report is reachable as soon as any
// root reaches the target.
func (r *Report) AddRoot(rr RootResult) {
	r.Roots = append(r.Roots, rr)
	r.Reachable = r.Reachable || rr.Reachable
}

// Finalize computes the verdict from the expectation.
func (r *Report) Finalize() {
	switch {
	case r.Expect == ExpectNone:
		r.Verdict = VerdictInfo
	case r.Expect.Satisfied(r.Reachable):
		r.Verdict = VerdictPass
	default:
		r.Verdict = VerdictFail
	}
}

// Passed reports whether the check did not violate its expectation.
func (r *Report) Passed() bool {
	return r.Verdict != VerdictFail
}

// ReachingRoots returns the roots from which the target was found.
func (r *Report) ReachingRoots() []string {
	var out []string
	for _, rr := range r.Roots {
		if rr.Reachable {
			out = append(out, rr.Root)
		}
	}
	return out
}
