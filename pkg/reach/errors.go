package reach

import (
	"errors"
	"fmt"
)

// ErrAccessRefused is returned (possibly wrapped) by an Introspector when the
// runtime will not expose a slot. The Scanner drops that slot and continues.
var ErrAccessRefused = errors.New("slot access refused")

// ScanFailure reports a scan that could not be completed.
// It is returned when a slot read fails for a reason other than
// ErrAccessRefused, when container elements cannot be enumerated, or when
// the predicate panics.
type ScanFailure struct {
	// Object describes the object being expanded when the failure occurred.
	Object string
	// Slot names the slot or element through which the failing object was
	// reached.
	Slot string
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *ScanFailure) Error() string {
	if e.Slot != "" {
		return fmt.Sprintf("error when scanning the heap at %s.%s: %v", e.Object, e.Slot, e.Err)
	}
	return fmt.Sprintf("error when scanning the heap at %s: %v", e.Object, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ScanFailure) Unwrap() error {
	return e.Err
}

// IsScanFailure reports whether err is, or wraps, a *ScanFailure.
func IsScanFailure(err error) bool {
	var sf *ScanFailure
	return errors.As(err, &sf)
}
