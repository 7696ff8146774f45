package heapdump

import (
	"fmt"
	"sort"
)

// ClassClassName is the class every class object is an instance of.
const ClassClassName = "java.lang.Class"

type objectKind int

const (
	kindUnknown objectKind = iota
	kindInstance
	kindObjectArray
	kindPrimitiveArray
	kindClass
)

// Snapshot is an immutable, fully indexed heap dump.
type Snapshot struct {
	Header *Header

	classes          map[ObjectID]*Class
	byName           map[string][]*Class
	instances        map[ObjectID]*Instance
	objectArrays     map[ObjectID]*ObjectArray
	primitiveArrays  map[ObjectID]*PrimitiveArray
	primitiveClasses map[BasicType]*Class
	roots            []GCRoot
}

func newSnapshot() *Snapshot {
	return &Snapshot{
		classes:          make(map[ObjectID]*Class),
		byName:           make(map[string][]*Class),
		instances:        make(map[ObjectID]*Instance),
		objectArrays:     make(map[ObjectID]*ObjectArray),
		primitiveArrays:  make(map[ObjectID]*PrimitiveArray),
		primitiveClasses: make(map[BasicType]*Class),
	}
}

// IDSize returns the identifier size of the dump.
func (s *Snapshot) IDSize() int {
	return s.Header.IDSize
}

// NumClasses returns the number of loaded classes.
func (s *Snapshot) NumClasses() int {
	return len(s.classes)
}

// NumObjects returns the number of instances and arrays.
func (s *Snapshot) NumObjects() int {
	return len(s.instances) + len(s.objectArrays) + len(s.primitiveArrays)
}

// Class returns the class with the given class object ID.
func (s *Snapshot) Class(id ObjectID) (*Class, bool) {
	c, ok := s.classes[id]
	return c, ok
}

// ClassByName returns the first class loaded under name.
func (s *Snapshot) ClassByName(name string) (*Class, bool) {
	cs := s.byName[name]
	if len(cs) == 0 {
		return nil, false
	}
	return cs[0], true
}

// Instance returns the instance dump for id.
func (s *Snapshot) Instance(id ObjectID) (*Instance, bool) {
	inst, ok := s.instances[id]
	return inst, ok
}

// ObjectArray returns the object array dump for id.
func (s *Snapshot) ObjectArray(id ObjectID) (*ObjectArray, bool) {
	arr, ok := s.objectArrays[id]
	return arr, ok
}

// Roots returns the GC roots in dump order.
func (s *Snapshot) Roots() []GCRoot {
	return s.roots
}

func (s *Snapshot) kind(id ObjectID) objectKind {
	if _, ok := s.instances[id]; ok {
		return kindInstance
	}
	if _, ok := s.objectArrays[id]; ok {
		return kindObjectArray
	}
	if _, ok := s.primitiveArrays[id]; ok {
		return kindPrimitiveArray
	}
	if _, ok := s.classes[id]; ok {
		return kindClass
	}
	return kindUnknown
}

// Contains reports whether id names an object or class in the dump.
func (s *Snapshot) Contains(id ObjectID) bool {
	return s.kind(id) != kindUnknown
}

// ClassOf returns the class of the object id.
func (s *Snapshot) ClassOf(id ObjectID) (*Class, bool) {
	switch s.kind(id) {
	case kindInstance:
		return s.Class(s.instances[id].ClassID)
	case kindObjectArray:
		return s.Class(s.objectArrays[id].ClassID)
	case kindPrimitiveArray:
		c, ok := s.primitiveClasses[s.primitiveArrays[id].ElemType]
		return c, ok
	case kindClass:
		return s.ClassByName(ClassClassName)
	}
	return nil, false
}

// ClassName returns the class name of the object id, or "" if unknown.
func (s *Snapshot) ClassName(id ObjectID) string {
	switch s.kind(id) {
	case kindClass:
		return ClassClassName
	case kindPrimitiveArray:
		return s.primitiveArrays[id].ElemType.String() + "[]"
	}
	if c, ok := s.ClassOf(id); ok {
		return c.Name
	}
	return ""
}

// Hierarchy returns c followed by its superclasses, nearest first.
func (s *Snapshot) Hierarchy(c *Class) []*Class {
	var chain []*Class
	seen := make(map[ObjectID]bool)
	for c != nil && !seen[c.ID] {
		seen[c.ID] = true
		chain = append(chain, c)
		c = s.classes[c.SuperID]
	}
	return chain
}

// IsSubclassOf reports whether c is the class called name or extends it.
func (s *Snapshot) IsSubclassOf(c *Class, name string) bool {
	for _, k := range s.Hierarchy(c) {
		if k.Name == name {
			return true
		}
	}
	return false
}

// InstancesOf returns the IDs of every instance or array whose class is
// name, or a subclass of it when includeSubclasses is set. IDs are sorted.
func (s *Snapshot) InstancesOf(name string, includeSubclasses bool) []ObjectID {
	matches := func(classID ObjectID) bool {
		c, ok := s.classes[classID]
		if !ok {
			return false
		}
		if includeSubclasses {
			return s.IsSubclassOf(c, name)
		}
		return c.Name == name
	}

	var ids []ObjectID
	for id, inst := range s.instances {
		if matches(inst.ClassID) {
			ids = append(ids, id)
		}
	}
	for id, arr := range s.objectArrays {
		if matches(arr.ClassID) {
			ids = append(ids, id)
		}
	}
	for id, arr := range s.primitiveArrays {
		if c := s.primitiveClasses[arr.ElemType]; c != nil && c.Name == name {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Describe returns a short description such as "com.example.Cache@0x7f0012a8".
func (s *Snapshot) Describe(id ObjectID) string {
	switch s.kind(id) {
	case kindClass:
		return fmt.Sprintf("class %s@%#x", s.classes[id].Name, uint64(id))
	case kindUnknown:
		return fmt.Sprintf("object@%#x", uint64(id))
	}
	name := s.ClassName(id)
	if name == "" {
		name = "unknown"
	}
	return fmt.Sprintf("%s@%#x", name, uint64(id))
}
