package heapdump

import "time"

// ObjectID identifies an object in a heap dump. Zero is the null reference.
type ObjectID uint64

// RecordTag is the tag of a top-level HPROF record.
type RecordTag uint8

const (
	TagString          RecordTag = 0x01
	TagLoadClass       RecordTag = 0x02
	TagHeapSummary     RecordTag = 0x07
	TagHeapDump        RecordTag = 0x0C
	TagHeapDumpSegment RecordTag = 0x1C
	TagHeapDumpEnd     RecordTag = 0x2C
)

// HeapDumpTag is the tag of a sub-record inside a heap dump segment.
type HeapDumpTag uint8

const (
	HeapTagRootUnknown        HeapDumpTag = 0xFF
	HeapTagRootJNIGlobal      HeapDumpTag = 0x01
	HeapTagRootJNILocal       HeapDumpTag = 0x02
	HeapTagRootJavaFrame      HeapDumpTag = 0x03
	HeapTagRootNativeStack    HeapDumpTag = 0x04
	HeapTagRootStickyClass    HeapDumpTag = 0x05
	HeapTagRootThreadBlock    HeapDumpTag = 0x06
	HeapTagRootMonitorUsed    HeapDumpTag = 0x07
	HeapTagRootThreadObject   HeapDumpTag = 0x08
	HeapTagRootInternedString HeapDumpTag = 0x89
	HeapTagRootFinalizing     HeapDumpTag = 0x8A
	HeapTagRootDebugger       HeapDumpTag = 0x8B
	HeapTagRootRefCleanup     HeapDumpTag = 0x8C
	HeapTagRootVMInternal     HeapDumpTag = 0x8D
	HeapTagRootJNIMonitor     HeapDumpTag = 0x8E
	HeapTagHeapDumpInfo       HeapDumpTag = 0xC3
	HeapTagRootUnreachable    HeapDumpTag = 0xFE
	HeapTagClassDump          HeapDumpTag = 0x20
	HeapTagInstanceDump       HeapDumpTag = 0x21
	HeapTagObjectArrayDump    HeapDumpTag = 0x22
	HeapTagPrimitiveArrayDump HeapDumpTag = 0x23
)

// BasicType is the HPROF encoding of a Java field or array element type.
type BasicType uint8

const (
	TypeObject  BasicType = 2
	TypeBoolean BasicType = 4
	TypeChar    BasicType = 5
	TypeFloat   BasicType = 6
	TypeDouble  BasicType = 7
	TypeByte    BasicType = 8
	TypeShort   BasicType = 9
	TypeInt     BasicType = 10
	TypeLong    BasicType = 11
)

// Size returns the encoded size of a value of type t.
func (t BasicType) Size(idSize int) int {
	switch t {
	case TypeObject:
		return idSize
	case TypeBoolean, TypeByte:
		return 1
	case TypeChar, TypeShort:
		return 2
	case TypeFloat, TypeInt:
		return 4
	case TypeDouble, TypeLong:
		return 8
	default:
		return 0
	}
}

// String returns the Java name of the type.
func (t BasicType) String() string {
	switch t {
	case TypeObject:
		return "Object"
	case TypeBoolean:
		return "boolean"
	case TypeChar:
		return "char"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeByte:
		return "byte"
	case TypeShort:
		return "short"
	case TypeInt:
		return "int"
	case TypeLong:
		return "long"
	default:
		return "unknown"
	}
}

// Header is the HPROF file header.
type Header struct {
	Format    string    `json:"format"`
	IDSize    int       `json:"id_size"`
	Timestamp time.Time `json:"timestamp"`
}

// GCRootType is the kind of a GC root.
type GCRootType string

const (
	GCRootUnknown        GCRootType = "UNKNOWN"
	GCRootJNIGlobal      GCRootType = "JNI_GLOBAL"
	GCRootJNILocal       GCRootType = "JNI_LOCAL"
	GCRootJavaFrame      GCRootType = "JAVA_FRAME"
	GCRootNativeStack    GCRootType = "NATIVE_STACK"
	GCRootStickyClass    GCRootType = "STICKY_CLASS"
	GCRootThreadBlock    GCRootType = "THREAD_BLOCK"
	GCRootMonitorUsed    GCRootType = "MONITOR_USED"
	GCRootThreadObject   GCRootType = "THREAD_OBJECT"
	GCRootInternedString GCRootType = "INTERNED_STRING"
	GCRootFinalizing     GCRootType = "FINALIZING"
	GCRootDebugger       GCRootType = "DEBUGGER"
	GCRootRefCleanup     GCRootType = "REFERENCE_CLEANUP"
	GCRootVMInternal     GCRootType = "VM_INTERNAL"
	GCRootJNIMonitor     GCRootType = "JNI_MONITOR"
	GCRootUnreachable    GCRootType = "UNREACHABLE"
)

// GCRoot is a root record from the dump.
type GCRoot struct {
	ObjectID ObjectID   `json:"object_id"`
	Type     GCRootType `json:"type"`
}

// Field is a declared instance field.
type Field struct {
	Name string
	Type BasicType
}

// StaticField is a declared static field with its value. Value holds the
// referenced ObjectID for object fields and the raw bits otherwise.
type StaticField struct {
	Name  string
	Type  BasicType
	Value uint64
}

// Class is a loaded class.
type Class struct {
	ID           ObjectID
	Name         string
	SuperID      ObjectID
	InstanceSize int
	Fields       []Field
	Statics      []StaticField
}

// Instance is an INSTANCE_DUMP record. Data holds the raw field values,
// the declaring class first and then each superclass in turn.
type Instance struct {
	ID      ObjectID
	ClassID ObjectID
	Data    []byte
}

// ObjectArray is an OBJECT_ARRAY_DUMP record.
type ObjectArray struct {
	ID       ObjectID
	ClassID  ObjectID
	Elements []ObjectID
}

// PrimitiveArray is a PRIMITIVE_ARRAY_DUMP record. Element values are not
// retained since they carry no references.
type PrimitiveArray struct {
	ID       ObjectID
	ElemType BasicType
	Length   int
}
