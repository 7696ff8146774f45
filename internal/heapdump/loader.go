package heapdump

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/reachscan/pkg/utils"
)

// LoadOptions configures Load.
type LoadOptions struct {
	Logger utils.Logger
}

// rootLayout describes the payload that follows the object ID of a root
// sub-record.
type rootLayout struct {
	typ    GCRootType
	ids    int
	uint32 int
}

var rootLayouts = map[HeapDumpTag]rootLayout{
	HeapTagRootUnknown:        {typ: GCRootUnknown},
	HeapTagRootJNIGlobal:      {typ: GCRootJNIGlobal, ids: 1},
	HeapTagRootJNILocal:       {typ: GCRootJNILocal, uint32: 2},
	HeapTagRootJavaFrame:      {typ: GCRootJavaFrame, uint32: 2},
	HeapTagRootNativeStack:    {typ: GCRootNativeStack, uint32: 1},
	HeapTagRootStickyClass:    {typ: GCRootStickyClass},
	HeapTagRootThreadBlock:    {typ: GCRootThreadBlock, uint32: 1},
	HeapTagRootMonitorUsed:    {typ: GCRootMonitorUsed},
	HeapTagRootThreadObject:   {typ: GCRootThreadObject, uint32: 2},
	HeapTagRootInternedString: {typ: GCRootInternedString},
	HeapTagRootFinalizing:     {typ: GCRootFinalizing},
	HeapTagRootDebugger:       {typ: GCRootDebugger},
	HeapTagRootRefCleanup:     {typ: GCRootRefCleanup},
	HeapTagRootVMInternal:     {typ: GCRootVMInternal},
	HeapTagRootJNIMonitor:     {typ: GCRootJNIMonitor, uint32: 2},
	HeapTagRootUnreachable:    {typ: GCRootUnreachable},
}

// classNames holds the string IDs of a class dump until the string table is
// complete.
type classNames struct {
	fields  []ObjectID
	statics []ObjectID
}

type loader struct {
	r      *Reader
	snap   *Snapshot
	logger utils.Logger

	strings        map[ObjectID]string
	loadedClasses  map[ObjectID]ObjectID
	pendingNames   map[ObjectID]*classNames
	unknownHeapTag int
}

// Load parses an HPROF heap dump into a Snapshot.
func Load(ctx context.Context, r io.Reader, opts *LoadOptions) (*Snapshot, error) {
	var logger utils.Logger = &utils.NullLogger{}
	if opts != nil && opts.Logger != nil {
		logger = opts.Logger
	}
	timer := utils.NewTimer("HPROF load", utils.WithLogger(logger), utils.WithEnabled(opts != nil && opts.Logger != nil))

	l := &loader{
		r:             NewReader(r),
		snap:          newSnapshot(),
		logger:        logger,
		strings:       make(map[ObjectID]string),
		loadedClasses: make(map[ObjectID]ObjectID),
		pendingNames:  make(map[ObjectID]*classNames),
	}

	header, err := l.r.ReadHeader()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if !strings.HasPrefix(header.Format, "JAVA PROFILE") {
		return nil, fmt.Errorf("not an HPROF file: format %q", header.Format)
	}
	l.snap.Header = header

	pt := timer.Start("Parse records")
	if err := l.parseRecords(ctx); err != nil {
		return nil, fmt.Errorf("failed to parse records at offset %d: %w", l.r.Offset(), err)
	}
	pt.Stop()

	pt = timer.Start("Index classes")
	l.finish()
	pt.Stop()

	logger.Debug("Loaded heap dump: %d classes, %d objects, %d roots, %d unknown sub-records",
		l.snap.NumClasses(), l.snap.NumObjects(), len(l.snap.roots), l.unknownHeapTag)
	timer.PrintSummary()

	return l.snap, nil
}

func (l *loader) parseRecords(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		tag, length, err := l.r.ReadRecordHeader()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch tag {
		case TagString:
			err = l.parseString(length)
		case TagLoadClass:
			err = l.parseLoadClass()
		case TagHeapDump, TagHeapDumpSegment:
			err = l.parseHeapDump(ctx, int64(length))
		default:
			err = l.r.Skip(int64(length))
		}
		if err != nil {
			return err
		}
	}
}

func (l *loader) parseString(length uint32) error {
	id, err := l.r.ReadID()
	if err != nil {
		return err
	}
	n := int(length) - l.r.IDSize()
	if n < 0 {
		return fmt.Errorf("invalid string length: %d", n)
	}
	b, err := l.r.ReadBytes(n)
	if err != nil {
		return err
	}
	l.strings[id] = string(b)
	return nil
}

func (l *loader) parseLoadClass() error {
	if _, err := l.r.ReadUint32(); err != nil {
		return err
	}
	classID, err := l.r.ReadID()
	if err != nil {
		return err
	}
	if _, err := l.r.ReadUint32(); err != nil {
		return err
	}
	nameID, err := l.r.ReadID()
	if err != nil {
		return err
	}
	l.loadedClasses[classID] = nameID
	return nil
}

func (l *loader) parseHeapDump(ctx context.Context, length int64) error {
	end := l.r.Offset() + length
	for l.r.Offset() < end {
		if err := ctx.Err(); err != nil {
			return err
		}

		b, err := l.r.ReadByte()
		if err != nil {
			return noEOF(err)
		}
		tag := HeapDumpTag(b)

		if layout, ok := rootLayouts[tag]; ok {
			err = l.parseRoot(layout)
		} else {
			switch tag {
			case 0x00:
				// padding
			case HeapTagHeapDumpInfo:
				_, err = l.r.ReadUint32()
				if err == nil {
					_, err = l.r.ReadID()
				}
			case HeapTagClassDump:
				err = l.parseClassDump()
			case HeapTagInstanceDump:
				err = l.parseInstanceDump(end)
			case HeapTagObjectArrayDump:
				err = l.parseObjectArrayDump(end)
			case HeapTagPrimitiveArrayDump:
				err = l.parsePrimitiveArrayDump(end)
			default:
				l.unknownHeapTag++
				l.logger.Warn("Unknown heap dump tag 0x%02x at offset %d, skipping rest of segment", b, l.r.Offset()-1)
				return l.r.Skip(end - l.r.Offset())
			}
		}
		if err != nil {
			return err
		}
	}
	if l.r.Offset() != end {
		return fmt.Errorf("heap dump segment overran its length by %d bytes", l.r.Offset()-end)
	}
	return nil
}

func (l *loader) parseRoot(layout rootLayout) error {
	id, err := l.r.ReadID()
	if err != nil {
		return err
	}
	if err := l.r.Skip(int64(layout.ids*l.r.IDSize() + layout.uint32*4)); err != nil {
		return err
	}
	l.snap.roots = append(l.snap.roots, GCRoot{ObjectID: id, Type: layout.typ})
	return nil
}

// parseClassDump reads a CLASS_DUMP sub-record. Names are resolved in finish.
func (l *loader) parseClassDump() error {
	r := l.r
	classID, err := r.ReadID()
	if err != nil {
		return err
	}
	if _, err := r.ReadUint32(); err != nil {
		return err
	}
	superID, err := r.ReadID()
	if err != nil {
		return err
	}
	// class loader, signers, protection domain, two reserved IDs
	if err := r.Skip(int64(5 * r.IDSize())); err != nil {
		return err
	}
	instanceSize, err := r.ReadUint32()
	if err != nil {
		return err
	}

	cpCount, err := r.ReadUint16()
	if err != nil {
		return err
	}
	for i := 0; i < int(cpCount); i++ {
		if _, err := r.ReadUint16(); err != nil {
			return err
		}
		if err := l.skipTypedValue(); err != nil {
			return err
		}
	}

	cls := &Class{ID: classID, SuperID: superID, InstanceSize: int(instanceSize)}
	names := &classNames{}

	staticCount, err := r.ReadUint16()
	if err != nil {
		return err
	}
	for i := 0; i < int(staticCount); i++ {
		nameID, err := r.ReadID()
		if err != nil {
			return err
		}
		t, err := r.ReadByte()
		if err != nil {
			return noEOF(err)
		}
		v, err := r.ReadValue(BasicType(t))
		if err != nil {
			return err
		}
		cls.Statics = append(cls.Statics, StaticField{Type: BasicType(t), Value: v})
		names.statics = append(names.statics, nameID)
	}

	fieldCount, err := r.ReadUint16()
	if err != nil {
		return err
	}
	for i := 0; i < int(fieldCount); i++ {
		nameID, err := r.ReadID()
		if err != nil {
			return err
		}
		t, err := r.ReadByte()
		if err != nil {
			return noEOF(err)
		}
		if BasicType(t).Size(r.IDSize()) == 0 {
			return fmt.Errorf("class %#x declares field with unknown type %d", uint64(classID), t)
		}
		cls.Fields = append(cls.Fields, Field{Type: BasicType(t)})
		names.fields = append(names.fields, nameID)
	}

	l.snap.classes[classID] = cls
	l.pendingNames[classID] = names
	return nil
}

// fits checks that a sub-record body of n bytes ends inside its segment.
func (l *loader) fits(what string, id ObjectID, n, end int64) error {
	if remaining := end - l.r.Offset(); n > remaining {
		return fmt.Errorf("%s %#x needs %d bytes but only %d remain in the heap dump segment",
			what, uint64(id), n, remaining)
	}
	return nil
}

func (l *loader) skipTypedValue() error {
	t, err := l.r.ReadByte()
	if err != nil {
		return noEOF(err)
	}
	_, err = l.r.ReadValue(BasicType(t))
	return err
}

func (l *loader) parseInstanceDump(end int64) error {
	r := l.r
	id, err := r.ReadID()
	if err != nil {
		return err
	}
	if _, err := r.ReadUint32(); err != nil {
		return err
	}
	classID, err := r.ReadID()
	if err != nil {
		return err
	}
	n, err := r.ReadUint32()
	if err != nil {
		return err
	}
	if err := l.fits("instance", id, int64(n), end); err != nil {
		return err
	}
	data, err := r.ReadBytes(int(n))
	if err != nil {
		return err
	}
	l.snap.instances[id] = &Instance{ID: id, ClassID: classID, Data: data}
	return nil
}

func (l *loader) parseObjectArrayDump(end int64) error {
	r := l.r
	id, err := r.ReadID()
	if err != nil {
		return err
	}
	if _, err := r.ReadUint32(); err != nil {
		return err
	}
	n, err := r.ReadUint32()
	if err != nil {
		return err
	}
	classID, err := r.ReadID()
	if err != nil {
		return err
	}
	if err := l.fits("object array", id, int64(n)*int64(r.IDSize()), end); err != nil {
		return err
	}
	elems := make([]ObjectID, n)
	for i := range elems {
		if elems[i], err = r.ReadID(); err != nil {
			return err
		}
	}
	l.snap.objectArrays[id] = &ObjectArray{ID: id, ClassID: classID, Elements: elems}
	return nil
}

func (l *loader) parsePrimitiveArrayDump(end int64) error {
	r := l.r
	id, err := r.ReadID()
	if err != nil {
		return err
	}
	if _, err := r.ReadUint32(); err != nil {
		return err
	}
	n, err := r.ReadUint32()
	if err != nil {
		return err
	}
	t, err := r.ReadByte()
	if err != nil {
		return noEOF(err)
	}
	size := BasicType(t).Size(r.IDSize())
	if size == 0 || BasicType(t) == TypeObject {
		return fmt.Errorf("primitive array %#x has invalid element type %d", uint64(id), t)
	}
	if err := l.fits("primitive array", id, int64(n)*int64(size), end); err != nil {
		return err
	}
	if err := r.Skip(int64(n) * int64(size)); err != nil {
		return err
	}
	l.snap.primitiveArrays[id] = &PrimitiveArray{ID: id, ElemType: BasicType(t), Length: int(n)}
	return nil
}

// finish resolves names and builds the class indexes.
func (l *loader) finish() {
	s := l.snap
	for classID, nameID := range l.loadedClasses {
		cls, ok := s.classes[classID]
		if !ok {
			cls = &Class{ID: classID}
			s.classes[classID] = cls
		}
		cls.Name = normalizeClassName(l.strings[nameID])
	}

	for classID, names := range l.pendingNames {
		cls := s.classes[classID]
		for i, id := range names.fields {
			cls.Fields[i].Name = l.strings[id]
		}
		for i, id := range names.statics {
			cls.Statics[i].Name = l.strings[id]
		}
	}

	for _, cls := range s.classes {
		if cls.Name == "" {
			cls.Name = fmt.Sprintf("unknown.Class%#x", uint64(cls.ID))
		}
		s.byName[cls.Name] = append(s.byName[cls.Name], cls)
	}
	for _, cs := range s.byName {
		sort.Slice(cs, func(i, j int) bool { return cs[i].ID < cs[j].ID })
	}

	for _, arr := range s.primitiveArrays {
		if _, ok := s.primitiveClasses[arr.ElemType]; ok {
			continue
		}
		name := arr.ElemType.String() + "[]"
		if cls, ok := s.ClassByName(name); ok {
			s.primitiveClasses[arr.ElemType] = cls
		} else {
			s.primitiveClasses[arr.ElemType] = &Class{Name: name}
		}
	}
}

// normalizeClassName converts a JVM internal name to its source form.
func normalizeClassName(name string) string {
	if !strings.HasPrefix(name, "[") {
		return strings.ReplaceAll(name, "/", ".")
	}

	dims := 0
	for strings.HasPrefix(name, "[") {
		dims++
		name = name[1:]
	}

	var base string
	switch {
	case strings.HasPrefix(name, "L") && strings.HasSuffix(name, ";"):
		base = strings.ReplaceAll(name[1:len(name)-1], "/", ".")
	case name == "Z":
		base = "boolean"
	case name == "B":
		base = "byte"
	case name == "C":
		base = "char"
	case name == "S":
		base = "short"
	case name == "I":
		base = "int"
	case name == "J":
		base = "long"
	case name == "F":
		base = "float"
	case name == "D":
		base = "double"
	default:
		base = name
	}
	return base + strings.Repeat("[]", dims)
}
