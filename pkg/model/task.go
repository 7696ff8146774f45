// Package model defines the check request and report types shared by the
// service, repository, formatter and CLI.
package model

import (
	"fmt"
	"strings"
)

// Expectation is what the caller asserts about reachability.
type Expectation string

const (
	ExpectNone        Expectation = ""
	ExpectReachable   Expectation = "reachable"
	ExpectUnreachable Expectation = "unreachable"
)

// ParseExpectation parses a --expect value. The empty string means no
// expectation.
func ParseExpectation(s string) (Expectation, error) {
	switch e := Expectation(strings.ToLower(strings.TrimSpace(s))); e {
	case ExpectNone, ExpectReachable, ExpectUnreachable:
		return e, nil
	default:
		return ExpectNone, fmt.Errorf("invalid expectation %q (want reachable or unreachable)", s)
	}
}

// Satisfied reports whether the observed result meets the expectation.
// ExpectNone is always satisfied.
func (e Expectation) Satisfied(reachable bool) bool {
	switch e {
	case ExpectReachable:
		return reachable
	case ExpectUnreachable:
		return !reachable
	default:
		return true
	}
}

// CheckRequest asks whether any instance of TargetClass is strongly
// reachable from a set of roots in a heap dump.
type CheckRequest struct {
	// Dump is a local path or a cos:// reference.
	Dump        string
	TargetClass string

	// Roots are explicit object IDs. RootClass selects every instance of a
	// class instead. At least one of the two is required.
	Roots     []uint64
	RootClass string

	// MaxRoots caps the instances taken from RootClass. Zero means no cap.
	MaxRoots int

	Expect Expectation

	// Record persists the report through the check repository.
	Record bool
}

// Validate checks that the request is complete.
func (r *CheckRequest) Validate() error {
	if strings.TrimSpace(r.Dump) == "" {
		return fmt.Errorf("dump is required")
	}
	if strings.TrimSpace(r.TargetClass) == "" {
		return fmt.Errorf("target class is required")
	}
	if len(r.Roots) == 0 && r.RootClass == "" {
		return fmt.Errorf("either a root object or a root class is required")
	}
	if r.MaxRoots < 0 {
		return fmt.Errorf("max roots must not be negative")
	}
	if _, err := ParseExpectation(string(r.Expect)); err != nil {
		return err
	}
	return nil
}
