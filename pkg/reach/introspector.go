package reach

// Shape classifies how the Scanner expands an object.
type Shape int

const (
	// ShapeOpaque objects have no outgoing edges the scanner can follow.
	ShapeOpaque Shape = iota
	// ShapeIndexed objects are contiguous containers whose elements are
	// enumerated with Introspector.Elements.
	ShapeIndexed
	// ShapeComposite objects are records whose slots are enumerated with
	// Introspector.Slots and read with Introspector.Read.
	ShapeComposite
)

// String returns the string representation of Shape.
func (s Shape) String() string {
	switch s {
	case ShapeOpaque:
		return "opaque"
	case ShapeIndexed:
		return "indexed"
	case ShapeComposite:
		return "composite"
	default:
		return "unknown"
	}
}

// Slot describes one structural slot of a composite object.
type Slot struct {
	// Name is the slot (field) name.
	Name string
	// DeclaringType is the name of the type that declares the slot.
	DeclaringType string
	// Scalar is true when the declared type of the slot carries no identity
	// and no outgoing references. Scalar slots are never read.
	Scalar bool
	// Index is an accessor private to the Introspector that produced the slot.
	Index int
}

// Introspector exposes the structure of a graph to the Scanner.
//
// O is the handle type of an object in the graph and K the identity key the
// visited set is built on. Identity must never be derived from equality
// methods of the scanned objects.
type Introspector[O any, K comparable] interface {
	// IsNil reports whether o is the absent object.
	IsNil(o O) bool

	// Identity returns the identity key of o.
	Identity(o O) K

	// Shape reports how o is expanded.
	Shape(o O) Shape

	// ScalarElements reports whether an indexed container holds only scalar
	// elements, in which case it is skipped without being enumerated.
	ScalarElements(o O) bool

	// Elements returns the elements of an indexed container, nils included.
	// A refused enumeration returns an error wrapping ErrAccessRefused.
	Elements(o O) ([]O, error)

	// Slots returns every slot declared anywhere in the type hierarchy of a
	// composite object, including non-public ones.
	Slots(o O) []Slot

	// Read returns the current value of slot s in o. A refused read returns
	// an error wrapping ErrAccessRefused.
	Read(o O, s Slot) (O, error)

	// Describe returns a short human readable description of o.
	Describe(o O) string
}
