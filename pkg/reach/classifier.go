package reach

import "strings"

// ReferenceClassifier decides whether a slot is the non-owning referent slot
// of a reference wrapper. Such slots are never traversed.
type ReferenceClassifier interface {
	NonOwning(s Slot) bool
}

// ClassifierFunc adapts a function to ReferenceClassifier.
type ClassifierFunc func(s Slot) bool

// NonOwning implements ReferenceClassifier.
func (f ClassifierFunc) NonOwning(s Slot) bool {
	return f(s)
}

// StrongOnly treats every slot as owning.
var StrongOnly ReferenceClassifier = ClassifierFunc(func(Slot) bool { return false })

// ReferentSlot matches the referent slot of one reference wrapper type.
type ReferentSlot struct {
	// DeclaringType is the name of the wrapper type declaring the slot.
	DeclaringType string
	// Generic matches every instantiation of a generic DeclaringType,
	// e.g. "weak.Pointer" matches "weak.Pointer[main.Session]".
	Generic bool
	// Name is the referent slot name.
	Name string
}

// NonOwning implements ReferenceClassifier.
func (r ReferentSlot) NonOwning(s Slot) bool {
	if s.Name != r.Name {
		return false
	}
	if s.DeclaringType == r.DeclaringType {
		return true
	}
	return r.Generic && strings.HasPrefix(s.DeclaringType, r.DeclaringType+"[")
}

var (
	// WeakPointerReferent is the slot weak.Pointer keeps its target in.
	WeakPointerReferent = ReferentSlot{DeclaringType: "weak.Pointer", Generic: true, Name: "u"}

	// JavaReferenceReferent is java.lang.ref.Reference.referent, shared by
	// weak, soft, phantom and final references.
	JavaReferenceReferent = ReferentSlot{DeclaringType: "java.lang.ref.Reference", Name: "referent"}
)
