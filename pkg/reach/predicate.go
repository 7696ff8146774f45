package reach

import "reflect"

// InstanceOf matches values of type T, or pointers to them. When T is an
// interface type it matches every value whose dynamic type implements T.
func InstanceOf[T any]() Predicate[reflect.Value] {
	return TypeIs(reflect.TypeFor[T]())
}

// TypeIs is InstanceOf for a type known only at run time.
func TypeIs(t reflect.Type) Predicate[reflect.Value] {
	if t.Kind() == reflect.Interface {
		return func(v reflect.Value) bool {
			return v.Type().Implements(t)
		}
	}
	return func(v reflect.Value) bool {
		vt := v.Type()
		return vt == t || (vt.Kind() == reflect.Pointer && vt.Elem() == t)
	}
}

// Not inverts a predicate.
func Not[O any](pred Predicate[O]) Predicate[O] {
	return func(o O) bool {
		return !pred(o)
	}
}

// Any matches when at least one of preds matches.
func Any[O any](preds ...Predicate[O]) Predicate[O] {
	return func(o O) bool {
		for _, p := range preds {
			if p(o) {
				return true
			}
		}
		return false
	}
}
