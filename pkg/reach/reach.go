package reach

import "reflect"

// NewValueScanner returns a Scanner over live Go values that never follows
// the referent of a weak.Pointer.
func NewValueScanner(opts *ScanOptions) *Scanner[reflect.Value, ValueKey] {
	return NewScanner[reflect.Value, ValueKey](NewValueIntrospector(), WeakPointerReferent, opts)
}

// RootOf returns the scan handle for a root object. A non-nil pointer root is
// dereferenced once so that the object it points at is the root and is not
// itself tested.
func RootOf(x any) reflect.Value {
	v := ValueOf(x)
	if v.Kind() == reflect.Pointer && !v.IsNil() {
		return v.Elem()
	}
	return v
}

// IsReachable reports whether a value satisfying pred is strongly reachable
// from root. See Scanner.IsReachable.
func IsReachable(pred Predicate[reflect.Value], root any) (bool, error) {
	if root == nil {
		return false, nil
	}
	return NewValueScanner(nil).IsReachable(pred, RootOf(root))
}
