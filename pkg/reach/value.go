package reach

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"
)

// ValueKey is the identity of a Go value during a scan.
//
// Values that live in memory are keyed by address and type, so a struct and
// its first field never collide. Slices also carry their length. Values with
// no stable address get a serial number and are therefore never merged.
type ValueKey struct {
	addr   uintptr
	typ    reflect.Type
	len    int
	serial uint64
}

// ValueIntrospector exposes live Go values to the Scanner.
//
// Pointers are composites with a single "*" slot, structs are composites with
// one slot per field, and arrays, slices and maps are indexed containers. Map
// entries are enumerated as alternating keys and values. Interfaces are
// unwrapped to their dynamic value. Channels and functions are opaque.
//
// Unexported fields are read through an unsafe override when the holding
// struct is addressable. Otherwise the read is refused with ErrAccessRefused.
type ValueIntrospector struct {
	serial atomic.Uint64
	slots  sync.Map // reflect.Type -> []Slot
}

var syncMapType = reflect.TypeFor[sync.Map]()

// NewValueIntrospector creates a ValueIntrospector.
func NewValueIntrospector() *ValueIntrospector {
	return &ValueIntrospector{}
}

// ValueOf returns the scan handle for x.
func ValueOf(x any) reflect.Value {
	return normalize(reflect.ValueOf(x))
}

// normalize unwraps interfaces and moves non-addressable aggregates into
// fresh addressable storage so their unexported fields can be read.
func normalize(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Struct, reflect.Array:
		if !v.CanAddr() && v.CanInterface() {
			tmp := reflect.New(v.Type()).Elem()
			tmp.Set(v)
			return tmp
		}
	}
	return v
}

// IsNil implements Introspector.
func (vi *ValueIntrospector) IsNil(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface,
		reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return v.IsNil()
	}
	return false
}

// Identity implements Introspector.
func (vi *ValueIntrospector) Identity(v reflect.Value) ValueKey {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return ValueKey{addr: v.Pointer(), typ: v.Type()}
	case reflect.Slice:
		return ValueKey{addr: v.Pointer(), typ: v.Type(), len: v.Len()}
	}
	if v.CanAddr() {
		return ValueKey{addr: v.UnsafeAddr(), typ: v.Type()}
	}
	return ValueKey{typ: v.Type(), serial: vi.serial.Add(1)}
}

// Shape implements Introspector.
func (vi *ValueIntrospector) Shape(v reflect.Value) Shape {
	if v.Type() == syncMapType {
		return ShapeIndexed
	}
	switch v.Kind() {
	case reflect.Array, reflect.Slice, reflect.Map:
		return ShapeIndexed
	case reflect.Struct, reflect.Pointer:
		return ShapeComposite
	default:
		return ShapeOpaque
	}
}

// ScalarElements implements Introspector.
func (vi *ValueIntrospector) ScalarElements(v reflect.Value) bool {
	t := v.Type()
	switch t.Kind() {
	case reflect.Array, reflect.Slice:
		return isScalar(t.Elem())
	case reflect.Map:
		return isScalar(t.Key()) && isScalar(t.Elem())
	}
	return false
}

// Elements implements Introspector.
func (vi *ValueIntrospector) Elements(v reflect.Value) (elems []reflect.Value, err error) {
	defer recoverReflect(&err)

	if v.Type() == syncMapType {
		return syncMapEntries(v)
	}

	switch v.Kind() {
	case reflect.Array, reflect.Slice:
		elems = make([]reflect.Value, v.Len())
		for i := range elems {
			elems[i] = normalize(v.Index(i))
		}
	case reflect.Map:
		keys, values := !isScalar(v.Type().Key()), !isScalar(v.Type().Elem())
		elems = make([]reflect.Value, 0, 2*v.Len())
		iter := v.MapRange()
		for iter.Next() {
			if keys {
				elems = append(elems, normalize(iter.Key()))
			}
			if values {
				elems = append(elems, normalize(iter.Value()))
			}
		}
	default:
		return nil, fmt.Errorf("%s is not an indexed container", v.Type())
	}
	return elems, nil
}

// Slots implements Introspector.
func (vi *ValueIntrospector) Slots(v reflect.Value) []Slot {
	t := v.Type()
	if cached, ok := vi.slots.Load(t); ok {
		return cached.([]Slot)
	}

	var slots []Slot
	switch t.Kind() {
	case reflect.Pointer:
		slots = []Slot{{Name: "*", DeclaringType: t.String(), Scalar: isScalar(t.Elem()), Index: -1}}
	case reflect.Struct:
		slots = make([]Slot, t.NumField())
		for i := range slots {
			f := t.Field(i)
			slots[i] = Slot{Name: f.Name, DeclaringType: t.String(), Scalar: isScalar(f.Type), Index: i}
		}
	}
	vi.slots.Store(t, slots)
	return slots
}

// Read implements Introspector.
func (vi *ValueIntrospector) Read(v reflect.Value, s Slot) (out reflect.Value, err error) {
	defer recoverReflect(&err)

	switch v.Kind() {
	case reflect.Pointer:
		return normalize(v.Elem()), nil
	case reflect.Struct:
		f := v.Field(s.Index)
		if f.Kind() == reflect.UnsafePointer {
			return vi.readUnsafePointer(v, f, s)
		}
		if f.CanInterface() {
			return normalize(f), nil
		}
		if !v.CanAddr() {
			return reflect.Value{}, fmt.Errorf("%s.%s: %w", s.DeclaringType, s.Name, ErrAccessRefused)
		}
		f = reflect.NewAt(f.Type(), unsafe.Pointer(f.UnsafeAddr())).Elem()
		return normalize(f), nil
	default:
		return reflect.Value{}, fmt.Errorf("%s has no slot %s", v.Type(), s.Name)
	}
}

// readUnsafePointer reads an unsafe.Pointer field of struct v as a typed
// pointer when the struct declares its pointee.
func (vi *ValueIntrospector) readUnsafePointer(v, f reflect.Value, s Slot) (reflect.Value, error) {
	if isWeakPointer(v.Type()) {
		if !v.CanInterface() {
			return reflect.Value{}, fmt.Errorf("%s.%s: %w", s.DeclaringType, s.Name, ErrAccessRefused)
		}
		value := v.MethodByName("Value")
		if !value.IsValid() {
			return reflect.Value{}, fmt.Errorf("%s.%s: %w", s.DeclaringType, s.Name, ErrAccessRefused)
		}
		return value.Call(nil)[0], nil
	}
	if !v.CanAddr() {
		if f.CanInterface() {
			return f, nil
		}
		return reflect.Value{}, fmt.Errorf("%s.%s: %w", s.DeclaringType, s.Name, ErrAccessRefused)
	}
	typ := f.Type()
	if pointee := markedPointee(v.Type()); pointee != nil {
		typ = pointee
	}
	return reflect.NewAt(typ, unsafe.Pointer(f.UnsafeAddr())).Elem(), nil
}

// markedPointee returns *T for a struct with a "_ [0]*T" field, or nil.
func markedPointee(t reflect.Type) reflect.Type {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Name == "_" && f.Type.Kind() == reflect.Array && f.Type.Len() == 0 &&
			f.Type.Elem().Kind() == reflect.Pointer {
			return f.Type.Elem()
		}
	}
	return nil
}

func isWeakPointer(t reflect.Type) bool {
	return t.PkgPath() == "weak" && strings.HasPrefix(t.Name(), "Pointer[")
}

// syncMapEntries lists the keys and values of an addressable sync.Map.
func syncMapEntries(v reflect.Value) ([]reflect.Value, error) {
	if !v.CanAddr() {
		return nil, fmt.Errorf("%s: %w", v.Type(), ErrAccessRefused)
	}
	m := (*sync.Map)(unsafe.Pointer(v.UnsafeAddr()))
	var elems []reflect.Value
	m.Range(func(key, value any) bool {
		elems = append(elems, ValueOf(key), ValueOf(value))
		return true
	})
	return elems, nil
}

// Describe implements Introspector.
func (vi *ValueIntrospector) Describe(v reflect.Value) string {
	if !v.IsValid() {
		return "<nil>"
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return fmt.Sprintf("%s@%#x", v.Type(), v.Pointer())
	}
	if v.CanAddr() {
		return fmt.Sprintf("%s@%#x", v.Type(), v.UnsafeAddr())
	}
	return v.Type().String()
}

// isScalar reports whether values of t carry no identity and no references.
// Values of scalar static type are never handed to the predicate; a scalar
// boxed in an interface is.
func isScalar(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	}
	return false
}

func recoverReflect(err *error) {
	if r := recover(); r != nil {
		if e, ok := r.(error); ok {
			*err = fmt.Errorf("reflect: %w", e)
			return
		}
		*err = fmt.Errorf("reflect: %v", r)
	}
}
