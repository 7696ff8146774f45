package heapdump

import (
	"fmt"
	"sync"

	"github.com/reachscan/pkg/reach"
)

// layout is the flattened slot list of a class, with the values of the
// static slots it exposes.
type layout struct {
	slots   []reach.Slot
	statics []ObjectID
}

// HeapIntrospector exposes a Snapshot to reach.Scanner.
//
// Instances are composites whose slots are the instance fields of their class
// and every superclass, followed by the static fields of the same classes.
// Object arrays are indexed containers; primitive arrays are indexed
// containers of scalars. Class objects are composites over their own statics.
type HeapIntrospector struct {
	snap *Snapshot

	mu        sync.Mutex
	instances map[ObjectID]*layout
	classObjs map[ObjectID]*layout
}

// NewHeapIntrospector creates a HeapIntrospector.
func NewHeapIntrospector(snap *Snapshot) *HeapIntrospector {
	return &HeapIntrospector{
		snap:      snap,
		instances: make(map[ObjectID]*layout),
		classObjs: make(map[ObjectID]*layout),
	}
}

// NewScanner returns a scanner over snap that never follows
// java.lang.ref.Reference.referent.
func NewScanner(snap *Snapshot, opts *reach.ScanOptions) *reach.Scanner[ObjectID, ObjectID] {
	return reach.NewScanner[ObjectID, ObjectID](NewHeapIntrospector(snap), reach.JavaReferenceReferent, opts)
}

// IsNil implements reach.Introspector.
func (h *HeapIntrospector) IsNil(id ObjectID) bool {
	return id == 0
}

// Identity implements reach.Introspector.
func (h *HeapIntrospector) Identity(id ObjectID) ObjectID {
	return id
}

// Shape implements reach.Introspector.
func (h *HeapIntrospector) Shape(id ObjectID) reach.Shape {
	switch h.snap.kind(id) {
	case kindInstance, kindClass:
		return reach.ShapeComposite
	case kindObjectArray, kindPrimitiveArray:
		return reach.ShapeIndexed
	default:
		return reach.ShapeOpaque
	}
}

// ScalarElements implements reach.Introspector.
func (h *HeapIntrospector) ScalarElements(id ObjectID) bool {
	return h.snap.kind(id) == kindPrimitiveArray
}

// Elements implements reach.Introspector.
func (h *HeapIntrospector) Elements(id ObjectID) ([]ObjectID, error) {
	arr, ok := h.snap.objectArrays[id]
	if !ok {
		return nil, fmt.Errorf("%s is not an object array", h.snap.Describe(id))
	}
	return arr.Elements, nil
}

// Slots implements reach.Introspector.
func (h *HeapIntrospector) Slots(id ObjectID) []reach.Slot {
	if l := h.layoutOf(id); l != nil {
		return l.slots
	}
	return nil
}

// Read implements reach.Introspector.
func (h *HeapIntrospector) Read(id ObjectID, s reach.Slot) (ObjectID, error) {
	if s.Index < 0 {
		l := h.layoutOf(id)
		k := -s.Index - 1
		if l == nil || k >= len(l.statics) {
			return 0, fmt.Errorf("%s has no static slot %s.%s", h.snap.Describe(id), s.DeclaringType, s.Name)
		}
		return l.statics[k], nil
	}

	inst, ok := h.snap.instances[id]
	if !ok {
		return 0, fmt.Errorf("%s has no instance data", h.snap.Describe(id))
	}
	idSize := h.snap.IDSize()
	if s.Index+idSize > len(inst.Data) {
		return 0, fmt.Errorf("field %s.%s at offset %d exceeds %d bytes of instance data",
			s.DeclaringType, s.Name, s.Index, len(inst.Data))
	}
	return decodeID(inst.Data[s.Index:], idSize), nil
}

// Describe implements reach.Introspector.
func (h *HeapIntrospector) Describe(id ObjectID) string {
	return h.snap.Describe(id)
}

func (h *HeapIntrospector) layoutOf(id ObjectID) *layout {
	switch h.snap.kind(id) {
	case kindInstance:
		return h.instanceLayout(h.snap.instances[id].ClassID)
	case kindClass:
		return h.classObjectLayout(id)
	}
	return nil
}

// instanceLayout returns the slots of instances of classID. Instance slot
// indexes are byte offsets into Instance.Data; static slot indexes are
// negative positions in layout.statics.
func (h *HeapIntrospector) instanceLayout(classID ObjectID) *layout {
	h.mu.Lock()
	defer h.mu.Unlock()
	if l, ok := h.instances[classID]; ok {
		return l
	}

	l := &layout{}
	cls, ok := h.snap.classes[classID]
	if ok {
		idSize := h.snap.IDSize()
		hierarchy := h.snap.Hierarchy(cls)
		offset := 0
		for _, c := range hierarchy {
			for _, f := range c.Fields {
				l.slots = append(l.slots, reach.Slot{
					Name:          f.Name,
					DeclaringType: c.Name,
					Scalar:        f.Type != TypeObject,
					Index:         offset,
				})
				offset += f.Type.Size(idSize)
			}
		}
		for _, c := range hierarchy {
			l.addStatics(c)
		}
	}
	h.instances[classID] = l
	return l
}

func (h *HeapIntrospector) classObjectLayout(classID ObjectID) *layout {
	h.mu.Lock()
	defer h.mu.Unlock()
	if l, ok := h.classObjs[classID]; ok {
		return l
	}
	l := &layout{}
	l.addStatics(h.snap.classes[classID])
	h.classObjs[classID] = l
	return l
}

func (l *layout) addStatics(c *Class) {
	for _, f := range c.Statics {
		var ref ObjectID
		if f.Type == TypeObject {
			ref = ObjectID(f.Value)
		}
		l.statics = append(l.statics, ref)
		l.slots = append(l.slots, reach.Slot{
			Name:          f.Name,
			DeclaringType: c.Name,
			Scalar:        f.Type != TypeObject,
			Index:         -len(l.statics),
		})
	}
}
