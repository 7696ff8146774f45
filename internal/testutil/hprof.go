package testutil

import (
	"bytes"
	"encoding/binary"
	"io"
)

// HPROF basic type codes, mirrored here so fixtures can be built without
// importing the package under test.
const (
	HprofObject  byte = 2
	HprofBoolean byte = 4
	HprofChar    byte = 5
	HprofFloat   byte = 6
	HprofDouble  byte = 7
	HprofByte    byte = 8
	HprofShort   byte = 9
	HprofInt     byte = 10
	HprofLong    byte = 11
)

// HprofField is a declared field of a fixture class.
type HprofField struct {
	Name string
	Type byte
}

// HprofStatic is a static field of a fixture class with its value.
type HprofStatic struct {
	Name  string
	Type  byte
	Value uint64
}

// HprofClass describes a CLASS_DUMP sub-record.
type HprofClass struct {
	ID      uint64
	Name    string // JVM internal form, e.g. "java/lang/Object"
	SuperID uint64
	Fields  []HprofField
	Statics []HprofStatic
}

// HprofValue is one instance field value.
type HprofValue struct {
	Type  byte
	Value uint64
}

// Ref is an object field value.
func Ref(id uint64) HprofValue { return HprofValue{Type: HprofObject, Value: id} }

// Int is an int field value.
func Int(v int32) HprofValue { return HprofValue{Type: HprofInt, Value: uint64(uint32(v))} }

// HprofBuilder assembles a synthetic HPROF heap dump.
type HprofBuilder struct {
	idSize  int
	records bytes.Buffer
	heap    bytes.Buffer
	strings map[string]uint64
	nextStr uint64
}

// NewHprofBuilder creates a builder for dumps with the given ID size.
func NewHprofBuilder(idSize int) *HprofBuilder {
	return &HprofBuilder{
		idSize:  idSize,
		strings: make(map[string]uint64),
		nextStr: 0xF0000000,
	}
}

func (b *HprofBuilder) putID(w *bytes.Buffer, id uint64) {
	if b.idSize == 4 {
		_ = binary.Write(w, binary.BigEndian, uint32(id))
		return
	}
	_ = binary.Write(w, binary.BigEndian, id)
}

func (b *HprofBuilder) putValue(w *bytes.Buffer, t byte, v uint64) {
	switch t {
	case HprofObject:
		b.putID(w, v)
	case HprofBoolean, HprofByte:
		w.WriteByte(byte(v))
	case HprofChar, HprofShort:
		_ = binary.Write(w, binary.BigEndian, uint16(v))
	case HprofFloat, HprofInt:
		_ = binary.Write(w, binary.BigEndian, uint32(v))
	default:
		_ = binary.Write(w, binary.BigEndian, v)
	}
}

func (b *HprofBuilder) record(tag byte, body []byte) {
	b.records.WriteByte(tag)
	_ = binary.Write(&b.records, binary.BigEndian, uint32(0))
	_ = binary.Write(&b.records, binary.BigEndian, uint32(len(body)))
	b.records.Write(body)
}

// String interns s in the string table and returns its ID.
func (b *HprofBuilder) String(s string) uint64 {
	if id, ok := b.strings[s]; ok {
		return id
	}
	b.nextStr++
	id := b.nextStr
	b.strings[s] = id

	var body bytes.Buffer
	b.putID(&body, id)
	body.WriteString(s)
	b.record(0x01, body.Bytes())
	return id
}

// LoadClass emits a LOAD_CLASS record naming classID.
func (b *HprofBuilder) LoadClass(classID uint64, name string) *HprofBuilder {
	nameID := b.String(name)
	var body bytes.Buffer
	_ = binary.Write(&body, binary.BigEndian, uint32(0))
	b.putID(&body, classID)
	_ = binary.Write(&body, binary.BigEndian, uint32(0))
	b.putID(&body, nameID)
	b.record(0x02, body.Bytes())
	return b
}

// Class emits LOAD_CLASS and CLASS_DUMP records for c.
func (b *HprofBuilder) Class(c HprofClass) *HprofBuilder {
	b.LoadClass(c.ID, c.Name)

	h := &b.heap
	h.WriteByte(0x20)
	b.putID(h, c.ID)
	_ = binary.Write(h, binary.BigEndian, uint32(0))
	b.putID(h, c.SuperID)
	for i := 0; i < 5; i++ {
		b.putID(h, 0)
	}
	size := 0
	for _, f := range c.Fields {
		size += b.size(f.Type)
	}
	_ = binary.Write(h, binary.BigEndian, uint32(size))
	_ = binary.Write(h, binary.BigEndian, uint16(0))

	_ = binary.Write(h, binary.BigEndian, uint16(len(c.Statics)))
	for _, s := range c.Statics {
		b.putID(h, b.String(s.Name))
		h.WriteByte(s.Type)
		b.putValue(h, s.Type, s.Value)
	}
	_ = binary.Write(h, binary.BigEndian, uint16(len(c.Fields)))
	for _, f := range c.Fields {
		b.putID(h, b.String(f.Name))
		h.WriteByte(f.Type)
	}
	return b
}

func (b *HprofBuilder) size(t byte) int {
	switch t {
	case HprofObject:
		return b.idSize
	case HprofBoolean, HprofByte:
		return 1
	case HprofChar, HprofShort:
		return 2
	case HprofFloat, HprofInt:
		return 4
	default:
		return 8
	}
}

// Instance emits an INSTANCE_DUMP. Values are given in dump order: the
// fields of the object's class first, then those of each superclass.
func (b *HprofBuilder) Instance(id, classID uint64, values ...HprofValue) *HprofBuilder {
	var data bytes.Buffer
	for _, v := range values {
		b.putValue(&data, v.Type, v.Value)
	}
	return b.RawInstance(id, classID, data.Bytes())
}

// RawInstance emits an INSTANCE_DUMP with the given field bytes.
func (b *HprofBuilder) RawInstance(id, classID uint64, data []byte) *HprofBuilder {
	h := &b.heap
	h.WriteByte(0x21)
	b.putID(h, id)
	_ = binary.Write(h, binary.BigEndian, uint32(0))
	b.putID(h, classID)
	_ = binary.Write(h, binary.BigEndian, uint32(len(data)))
	h.Write(data)
	return b
}

// ObjectArray emits an OBJECT_ARRAY_DUMP.
func (b *HprofBuilder) ObjectArray(id, classID uint64, elems ...uint64) *HprofBuilder {
	h := &b.heap
	h.WriteByte(0x22)
	b.putID(h, id)
	_ = binary.Write(h, binary.BigEndian, uint32(0))
	_ = binary.Write(h, binary.BigEndian, uint32(len(elems)))
	b.putID(h, classID)
	for _, e := range elems {
		b.putID(h, e)
	}
	return b
}

// PrimitiveArray emits a PRIMITIVE_ARRAY_DUMP of n zero elements.
func (b *HprofBuilder) PrimitiveArray(id uint64, elemType byte, n int) *HprofBuilder {
	h := &b.heap
	h.WriteByte(0x23)
	b.putID(h, id)
	_ = binary.Write(h, binary.BigEndian, uint32(0))
	_ = binary.Write(h, binary.BigEndian, uint32(n))
	h.WriteByte(elemType)
	h.Write(make([]byte, n*b.size(elemType)))
	return b
}

// StickyClassRoot emits a ROOT_STICKY_CLASS.
func (b *HprofBuilder) StickyClassRoot(id uint64) *HprofBuilder {
	b.heap.WriteByte(0x05)
	b.putID(&b.heap, id)
	return b
}

// JavaFrameRoot emits a ROOT_JAVA_FRAME.
func (b *HprofBuilder) JavaFrameRoot(id uint64) *HprofBuilder {
	b.heap.WriteByte(0x03)
	b.putID(&b.heap, id)
	_ = binary.Write(&b.heap, binary.BigEndian, uint32(1))
	_ = binary.Write(&b.heap, binary.BigEndian, uint32(0))
	return b
}

// JNIGlobalRoot emits a ROOT_JNI_GLOBAL.
func (b *HprofBuilder) JNIGlobalRoot(id uint64) *HprofBuilder {
	b.heap.WriteByte(0x01)
	b.putID(&b.heap, id)
	b.putID(&b.heap, 0)
	return b
}

// Bytes returns the complete dump: header, string and class records, then a
// single HEAP_DUMP_SEGMENT and a HEAP_DUMP_END.
func (b *HprofBuilder) Bytes() []byte {
	var out bytes.Buffer
	out.WriteString("JAVA PROFILE 1.0.2")
	out.WriteByte(0)
	_ = binary.Write(&out, binary.BigEndian, uint32(b.idSize))
	_ = binary.Write(&out, binary.BigEndian, uint64(1700000000000))
	out.Write(b.records.Bytes())

	out.WriteByte(0x1C)
	_ = binary.Write(&out, binary.BigEndian, uint32(0))
	_ = binary.Write(&out, binary.BigEndian, uint32(b.heap.Len()))
	out.Write(b.heap.Bytes())

	out.WriteByte(0x2C)
	_ = binary.Write(&out, binary.BigEndian, uint32(0))
	_ = binary.Write(&out, binary.BigEndian, uint32(0))
	return out.Bytes()
}

// Reader returns the dump as an io.Reader.
func (b *HprofBuilder) Reader() io.Reader {
	return bytes.NewReader(b.Bytes())
}

// WeakReferenceDump builds a dump with the classic layout:
//
//	X{a: Y, b: WeakReference(Z)}, Y{c: Z}
//
// When strongPath is false Y.c is null, so Z is held only weakly.
// Object IDs: X=0x1000, Y=0x2000, Z=0x3000, WeakReference=0x4000.
func WeakReferenceDump(idSize int, strongPath bool) *HprofBuilder {
	const (
		objectClass    = 0x100
		referenceClass = 0x101
		weakRefClass   = 0x102
		xClass         = 0x110
		yClass         = 0x111
		zClass         = 0x112
	)
	b := NewHprofBuilder(idSize)
	b.Class(HprofClass{ID: objectClass, Name: "java/lang/Object"})
	b.Class(HprofClass{ID: referenceClass, Name: "java/lang/ref/Reference", SuperID: objectClass,
		Fields: []HprofField{{Name: "referent", Type: HprofObject}, {Name: "queue", Type: HprofObject}}})
	b.Class(HprofClass{ID: weakRefClass, Name: "java/lang/ref/WeakReference", SuperID: referenceClass})
	b.Class(HprofClass{ID: xClass, Name: "com/example/X", SuperID: objectClass,
		Fields: []HprofField{{Name: "a", Type: HprofObject}, {Name: "b", Type: HprofObject}}})
	b.Class(HprofClass{ID: yClass, Name: "com/example/Y", SuperID: objectClass,
		Fields: []HprofField{{Name: "c", Type: HprofObject}}})
	b.Class(HprofClass{ID: zClass, Name: "com/example/Z", SuperID: objectClass,
		Fields: []HprofField{{Name: "size", Type: HprofInt}}})

	c := uint64(0)
	if strongPath {
		c = 0x3000
	}
	b.Instance(0x1000, xClass, Ref(0x2000), Ref(0x4000))
	b.Instance(0x2000, yClass, Ref(c))
	b.Instance(0x3000, zClass, Int(42))
	b.Instance(0x4000, weakRefClass, Ref(0x3000), Ref(0))
	b.JavaFrameRoot(0x1000)
	return b
}
