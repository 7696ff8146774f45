package heapdump

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reachscan/internal/testutil"
	"github.com/reachscan/pkg/reach"
)

func load(t *testing.T, b *testutil.HprofBuilder) *Snapshot {
	t.Helper()
	snap, err := Load(context.Background(), b.Reader(), nil)
	require.NoError(t, err)
	return snap
}

func TestScan_WeakReferenceScenario(t *testing.T) {
	for _, idSize := range []int{4, 8} {
		t.Run("strong path", func(t *testing.T) {
			snap := load(t, testutil.WeakReferenceDump(idSize, true))
			found, err := NewScanner(snap, nil).IsReachable(InstanceOfClass(snap, "com.example.Z"), 0x1000)
			require.NoError(t, err)
			assert.True(t, found)
		})

		t.Run("weak only", func(t *testing.T) {
			snap := load(t, testutil.WeakReferenceDump(idSize, false))
			found, err := NewScanner(snap, nil).IsReachable(InstanceOfClass(snap, "com.example.Z"), 0x1000)
			require.NoError(t, err)
			assert.False(t, found)

			found, err = reach.NewScanner[ObjectID, ObjectID](NewHeapIntrospector(snap), reach.StrongOnly, nil).
				IsReachable(InstanceOfClass(snap, "com.example.Z"), 0x1000)
			require.NoError(t, err)
			assert.True(t, found, "referent is followed when reference strength is ignored")
		})
	}
}

func TestScan_RootIsNotTested(t *testing.T) {
	snap := load(t, testutil.WeakReferenceDump(8, true))
	found, err := NewScanner(snap, nil).IsReachable(InstanceOfClass(snap, "com.example.Z"), 0x3000)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestScan_SubclassMatches(t *testing.T) {
	b := testutil.NewHprofBuilder(8)
	b.Class(testutil.HprofClass{ID: 0x100, Name: "java/lang/Object"})
	b.Class(testutil.HprofClass{ID: 0x101, Name: "com/example/Base", SuperID: 0x100})
	b.Class(testutil.HprofClass{ID: 0x102, Name: "com/example/Impl", SuperID: 0x101})
	b.Class(testutil.HprofClass{ID: 0x103, Name: "com/example/Holder", SuperID: 0x100,
		Fields: []testutil.HprofField{{Name: "impl", Type: testutil.HprofObject}}})
	b.Instance(0x1000, 0x103, testutil.Ref(0x2000))
	b.Instance(0x2000, 0x102)
	snap := load(t, b)

	found, err := NewScanner(snap, nil).IsReachable(InstanceOfClass(snap, "com.example.Base"), 0x1000)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = NewScanner(snap, nil).IsReachable(ExactClass(snap, "com.example.Base"), 0x1000)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestScan_InheritedFieldsAndStatics(t *testing.T) {
	b := testutil.NewHprofBuilder(4)
	b.Class(testutil.HprofClass{ID: 0x100, Name: "java/lang/Object"})
	b.Class(testutil.HprofClass{ID: 0x101, Name: "com/example/Parent", SuperID: 0x100,
		Fields: []testutil.HprofField{{Name: "count", Type: testutil.HprofInt}, {Name: "inherited", Type: testutil.HprofObject}}})
	b.Class(testutil.HprofClass{ID: 0x102, Name: "com/example/Child", SuperID: 0x101,
		Fields:  []testutil.HprofField{{Name: "flag", Type: testutil.HprofBoolean}},
		Statics: []testutil.HprofStatic{{Name: "CACHE", Type: testutil.HprofObject, Value: 0x3000}}})
	b.Class(testutil.HprofClass{ID: 0x103, Name: "com/example/Target", SuperID: 0x100})
	b.Class(testutil.HprofClass{ID: 0x104, Name: "com/example/Other", SuperID: 0x100})

	b.Instance(0x1000, 0x102,
		testutil.HprofValue{Type: testutil.HprofBoolean, Value: 1},
		testutil.Int(7), testutil.Ref(0x2000))
	b.Instance(0x2000, 0x103)
	b.Instance(0x3000, 0x104)
	snap := load(t, b)

	in := NewHeapIntrospector(snap)
	slots := in.Slots(0x1000)
	require.Len(t, slots, 4)
	assert.Equal(t, reach.Slot{Name: "flag", DeclaringType: "com.example.Child", Scalar: true, Index: 0}, slots[0])
	assert.Equal(t, reach.Slot{Name: "count", DeclaringType: "com.example.Parent", Scalar: true, Index: 1}, slots[1])
	assert.Equal(t, reach.Slot{Name: "inherited", DeclaringType: "com.example.Parent", Scalar: false, Index: 5}, slots[2])
	assert.Equal(t, reach.Slot{Name: "CACHE", DeclaringType: "com.example.Child", Scalar: false, Index: -1}, slots[3])

	v, err := in.Read(0x1000, slots[2])
	require.NoError(t, err)
	assert.Equal(t, ObjectID(0x2000), v)

	v, err = in.Read(0x1000, slots[3])
	require.NoError(t, err)
	assert.Equal(t, ObjectID(0x3000), v)

	found, err := NewScanner(snap, nil).IsReachable(InstanceOfClass(snap, "com.example.Target"), 0x1000)
	require.NoError(t, err)
	assert.True(t, found, "found through an inherited field")

	found, err = NewScanner(snap, nil).IsReachable(InstanceOfClass(snap, "com.example.Other"), 0x1000)
	require.NoError(t, err)
	assert.True(t, found, "found through a static field")

	found, err = NewScanner(snap, nil).IsReachable(InstanceOfClass(snap, "com.example.Other"), 0x102)
	require.NoError(t, err)
	assert.True(t, found, "class objects expose their statics")
}

func TestScan_Arrays(t *testing.T) {
	b := testutil.NewHprofBuilder(8)
	b.Class(testutil.HprofClass{ID: 0x100, Name: "java/lang/Object"})
	b.Class(testutil.HprofClass{ID: 0x101, Name: "[Ljava/lang/Object;", SuperID: 0x100})
	b.Class(testutil.HprofClass{ID: 0x102, Name: "com/example/Holder", SuperID: 0x100,
		Fields: []testutil.HprofField{{Name: "items", Type: testutil.HprofObject}, {Name: "bytes", Type: testutil.HprofObject}}})
	b.Class(testutil.HprofClass{ID: 0x103, Name: "com/example/Target", SuperID: 0x100})

	b.Instance(0x1000, 0x102, testutil.Ref(0x2000), testutil.Ref(0x2100))
	b.ObjectArray(0x2000, 0x101, 0, 0x2001, 0)
	b.ObjectArray(0x2001, 0x101, 0x3000)
	b.PrimitiveArray(0x2100, testutil.HprofByte, 32)
	b.Instance(0x3000, 0x103)
	snap := load(t, b)

	in := NewHeapIntrospector(snap)
	assert.Equal(t, reach.ShapeIndexed, in.Shape(0x2000))
	assert.Equal(t, reach.ShapeIndexed, in.Shape(0x2100))
	assert.True(t, in.ScalarElements(0x2100))
	assert.Equal(t, reach.ShapeComposite, in.Shape(0x1000))
	assert.Equal(t, reach.ShapeOpaque, in.Shape(0x9999))

	found, err := NewScanner(snap, nil).IsReachable(InstanceOfClass(snap, "com.example.Target"), 0x1000)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = NewScanner(snap, nil).IsReachable(InstanceOfClass(snap, "byte[]"), 0x1000)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestScan_Cycle(t *testing.T) {
	b := testutil.NewHprofBuilder(8)
	b.Class(testutil.HprofClass{ID: 0x100, Name: "java/lang/Object"})
	b.Class(testutil.HprofClass{ID: 0x101, Name: "com/example/Node", SuperID: 0x100,
		Fields: []testutil.HprofField{{Name: "next", Type: testutil.HprofObject}}})
	b.Class(testutil.HprofClass{ID: 0x102, Name: "com/example/Target", SuperID: 0x100})
	b.Instance(0x1000, 0x101, testutil.Ref(0x2000))
	b.Instance(0x2000, 0x101, testutil.Ref(0x1000))
	snap := load(t, b)

	found, stats, err := NewScanner(snap, nil).Scan(InstanceOfClass(snap, "com.example.Target"), 0x1000)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 2, stats.Visited)
}

func TestScan_MalformedInstanceData(t *testing.T) {
	b := testutil.NewHprofBuilder(8)
	b.Class(testutil.HprofClass{ID: 0x100, Name: "java/lang/Object"})
	b.Class(testutil.HprofClass{ID: 0x101, Name: "com/example/Broken", SuperID: 0x100,
		Fields: []testutil.HprofField{{Name: "ref", Type: testutil.HprofObject}}})
	b.RawInstance(0x1000, 0x101, []byte{0, 0, 0})
	snap := load(t, b)

	_, err := NewScanner(snap, nil).IsReachable(InstanceOfClass(snap, "java.lang.Object"), 0x1000)
	require.Error(t, err)

	var sf *reach.ScanFailure
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, "com.example.Broken@0x1000", sf.Object)
	assert.Equal(t, "ref", sf.Slot)
}

func TestHeapIntrospector_NilAndIdentity(t *testing.T) {
	in := NewHeapIntrospector(load(t, testutil.WeakReferenceDump(8, true)))
	assert.True(t, in.IsNil(0))
	assert.False(t, in.IsNil(0x1000))
	assert.Equal(t, ObjectID(0x1000), in.Identity(0x1000))
	assert.Nil(t, in.Slots(0x9999))

	_, err := in.Elements(0x1000)
	assert.Error(t, err)
}
