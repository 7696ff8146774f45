package heapdump

import "github.com/reachscan/pkg/reach"

// InstanceOfClass matches objects whose class is name or a subclass of it.
// Array classes use source form, e.g. "java.lang.Object[]".
func InstanceOfClass(snap *Snapshot, name string) reach.Predicate[ObjectID] {
	return func(id ObjectID) bool {
		c, ok := snap.ClassOf(id)
		if !ok {
			return false
		}
		return snap.IsSubclassOf(c, name)
	}
}

// ExactClass matches objects whose class is exactly name.
func ExactClass(snap *Snapshot, name string) reach.Predicate[ObjectID] {
	return func(id ObjectID) bool {
		return snap.ClassName(id) == name
	}
}
