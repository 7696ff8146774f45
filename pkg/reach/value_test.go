package reach

import (
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"
	"weak"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type zNode struct {
	name string
}

type yNode struct {
	c *zNode
}

type xNode struct {
	a *yNode
	b weak.Pointer[zNode]
}

type target struct {
	id int
}

type chainNode struct {
	next   *chainNode
	leaf   *target
	weight float64
}

type withContainers struct {
	items  []any
	raw    []byte
	grid   [3]int
	arr    [2]*target
	byName map[string]*target
	iface  any
	fn     func()
	ch     chan *target
}

type cycleNode struct {
	next  *cycleNode
	label int
}

type exported struct {
	Public  *target
	private *target
}

type atomicHolder struct {
	p atomic.Pointer[target]
}

type syncMapHolder struct {
	m sync.Map
}

type rawPointerHolder struct {
	p unsafe.Pointer
}

type labelled struct {
	name  string
	tags  map[string]*target
	boxed any
}

type identified interface {
	ID() int
}

func (t *target) ID() int { return t.id }

func TestIsReachable_WeakReferenceScenario(t *testing.T) {
	z := &zNode{name: "z"}

	t.Run("found via strong chain", func(t *testing.T) {
		x := &xNode{a: &yNode{c: z}, b: weak.Make(z)}
		found, err := IsReachable(InstanceOf[zNode](), x)
		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("weak referent alone is not reachable", func(t *testing.T) {
		x := &xNode{a: &yNode{}, b: weak.Make(z)}
		found, err := IsReachable(InstanceOf[zNode](), x)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("referent is followed when strength is ignored", func(t *testing.T) {
		x := &xNode{a: &yNode{}, b: weak.Make(z)}
		scanner := NewScanner[reflect.Value, ValueKey](NewValueIntrospector(), StrongOnly, nil)
		found, err := scanner.IsReachable(InstanceOf[zNode](), RootOf(x))
		require.NoError(t, err)
		assert.True(t, found)
	})

	runtime.KeepAlive(z)
}

func TestIsReachable_AtomicPointer(t *testing.T) {
	h := &atomicHolder{}
	found, err := IsReachable(InstanceOf[target](), h)
	require.NoError(t, err)
	assert.False(t, found)

	h.p.Store(&target{id: 1})
	found, err = IsReachable(InstanceOf[target](), h)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestIsReachable_SyncMap(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		found, err := IsReachable(InstanceOf[target](), &syncMapHolder{})
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("value", func(t *testing.T) {
		h := &syncMapHolder{}
		h.m.Store("k", &target{id: 1})
		found, err := IsReachable(InstanceOf[target](), h)
		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("key", func(t *testing.T) {
		h := &syncMapHolder{}
		h.m.Store(&target{id: 2}, 1)
		found, err := IsReachable(InstanceOf[target](), h)
		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("map is the root", func(t *testing.T) {
		m := &sync.Map{}
		m.Store(1, &chainNode{leaf: &target{}})
		found, err := IsReachable(InstanceOf[target](), m)
		require.NoError(t, err)
		assert.True(t, found)
	})
}

func TestIsReachable_UntypedUnsafePointerIsLeaf(t *testing.T) {
	tg := &target{id: 1}
	h := &rawPointerHolder{p: unsafe.Pointer(tg)}

	var got []reflect.Type
	pred := func(v reflect.Value) bool {
		got = append(got, v.Type())
		return false
	}
	found, err := NewValueScanner(nil).IsReachable(pred, RootOf(h))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, []reflect.Type{reflect.TypeFor[unsafe.Pointer]()}, got)
	runtime.KeepAlive(tg)
}

func TestIsReachable_ScalarsAreTestedOnlyWhenBoxed(t *testing.T) {
	root := &labelled{name: "a", tags: map[string]*target{"k": nil}}
	found, err := IsReachable(InstanceOf[string](), root)
	require.NoError(t, err)
	assert.False(t, found, "string fields and string map keys are not tested")

	root.boxed = "b"
	found, err = IsReachable(InstanceOf[string](), root)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestIsReachable_DirectContainment(t *testing.T) {
	root := &chainNode{leaf: &target{id: 1}}
	found, err := IsReachable(InstanceOf[target](), root)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestIsReachable_Transitive(t *testing.T) {
	c := &chainNode{leaf: &target{id: 3}}
	b := &chainNode{next: c}
	a := &chainNode{next: b}
	root := &chainNode{next: a}

	found, err := IsReachable(InstanceOf[target](), root)
	require.NoError(t, err)
	assert.True(t, found)

	c.leaf = nil
	found, err = IsReachable(InstanceOf[target](), root)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIsReachable_Cycles(t *testing.T) {
	t.Run("two node cycle without target terminates", func(t *testing.T) {
		r := &cycleNode{label: 1}
		a := &cycleNode{next: r, label: 2}
		r.next = a

		found, err := IsReachable(InstanceOf[target](), r)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("self reference terminates", func(t *testing.T) {
		r := &cycleNode{}
		r.next = r

		found, err := IsReachable(InstanceOf[target](), r)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("root reached back through a cycle matches", func(t *testing.T) {
		r := &chainNode{}
		r.next = r

		found, err := IsReachable(InstanceOf[chainNode](), r)
		require.NoError(t, err)
		assert.True(t, found)
	})
}

func TestIsReachable_RootIsNotTested(t *testing.T) {
	found, err := IsReachable(InstanceOf[target](), &target{id: 7})
	require.NoError(t, err)
	assert.False(t, found)

	found, err = IsReachable(InstanceOf[chainNode](), &chainNode{leaf: &target{}})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIsReachable_Containers(t *testing.T) {
	tests := []struct {
		name string
		root *withContainers
		want bool
	}{
		{name: "empty", root: &withContainers{}, want: false},
		{name: "scalar containers only", root: &withContainers{raw: []byte("abc"), grid: [3]int{1, 2, 3}}, want: false},
		{name: "slice of interfaces", root: &withContainers{items: []any{1, "two", &target{}}}, want: true},
		{name: "slice with nil elements", root: &withContainers{items: []any{nil, nil}}, want: false},
		{name: "array of pointers", root: &withContainers{arr: [2]*target{nil, {id: 2}}}, want: true},
		{name: "map values", root: &withContainers{byName: map[string]*target{"a": {id: 1}}}, want: true},
		{name: "map with nil value", root: &withContainers{byName: map[string]*target{"a": nil}}, want: false},
		{name: "interface holding struct value", root: &withContainers{iface: target{id: 4}}, want: true},
		{name: "opaque func and chan", root: &withContainers{fn: func() {}, ch: make(chan *target, 1)}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := IsReachable(InstanceOf[target](), tt.root)
			require.NoError(t, err)
			assert.Equal(t, tt.want, found)
		})
	}
}

func TestIsReachable_MapKeys(t *testing.T) {
	root := map[*target]int{{id: 1}: 1}
	found, err := IsReachable(InstanceOf[target](), root)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestIsReachable_UnexportedFieldsAreRead(t *testing.T) {
	found, err := IsReachable(InstanceOf[target](), &exported{private: &target{}})
	require.NoError(t, err)
	assert.True(t, found)

	found, err = IsReachable(InstanceOf[target](), exported{private: &target{}})
	require.NoError(t, err)
	assert.True(t, found, "struct roots passed by value are copied into addressable storage")
}

func TestIsReachable_InterfacePredicate(t *testing.T) {
	found, err := IsReachable(InstanceOf[identified](), &chainNode{leaf: &target{id: 9}})
	require.NoError(t, err)
	assert.True(t, found)
}

func TestIsReachable_NilRoot(t *testing.T) {
	found, err := IsReachable(InstanceOf[target](), nil)
	require.NoError(t, err)
	assert.False(t, found)

	var p *chainNode
	found, err = IsReachable(InstanceOf[target](), p)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIsReachable_IdentityNotEquality(t *testing.T) {
	type leaf struct {
		v int
	}
	type pair struct {
		left, right *leaf
	}
	root := &pair{left: &leaf{v: 1}, right: &leaf{v: 1}}

	seen := map[uintptr]bool{}
	pred := func(v reflect.Value) bool {
		if v.Type() == reflect.TypeFor[*leaf]() {
			seen[v.Pointer()] = true
		}
		return false
	}

	found, err := NewValueScanner(nil).IsReachable(pred, RootOf(root))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Len(t, seen, 2, "structurally equal objects are distinct nodes")
}

func TestIsReachable_SharedObjectTestedOnce(t *testing.T) {
	shared := &target{id: 1}
	root := &withContainers{items: []any{shared, shared, shared}}

	calls := 0
	pred := func(v reflect.Value) bool {
		if v.Type() == reflect.TypeFor[*target]() {
			calls++
		}
		return false
	}

	found, stats, err := NewValueScanner(nil).Scan(pred, RootOf(root))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 3, calls, "every edge is tested")
	assert.Positive(t, stats.Visited)
}

func TestIsReachable_PredicatePanic(t *testing.T) {
	pred := func(v reflect.Value) bool {
		panic("boom")
	}

	found, err := IsReachable(pred, &chainNode{leaf: &target{}})
	require.Error(t, err)
	assert.False(t, found)

	var sf *ScanFailure
	require.ErrorAs(t, err, &sf)
	assert.Contains(t, sf.Err.Error(), "boom")
	assert.True(t, IsScanFailure(err))
}

func TestValueIntrospector_Slots(t *testing.T) {
	vi := NewValueIntrospector()
	x := &xNode{}

	ptrSlots := vi.Slots(ValueOf(x))
	require.Len(t, ptrSlots, 1)
	assert.Equal(t, "*", ptrSlots[0].Name)
	assert.False(t, ptrSlots[0].Scalar)

	elem, err := vi.Read(ValueOf(x), ptrSlots[0])
	require.NoError(t, err)

	slots := vi.Slots(elem)
	require.Len(t, slots, 2)
	assert.Equal(t, "a", slots[0].Name)
	assert.Equal(t, "b", slots[1].Name)

	weakValue, err := vi.Read(elem, slots[1])
	require.NoError(t, err)

	var referent *Slot
	for _, s := range vi.Slots(weakValue) {
		if WeakPointerReferent.NonOwning(s) {
			referent = &s
		}
	}
	require.NotNil(t, referent, "weak.Pointer exposes its referent slot")
	assert.Equal(t, "u", referent.Name)
	assert.False(t, referent.Scalar)

	z := &zNode{}
	x.b = weak.Make(z)
	weakValue, err = vi.Read(elem, slots[1])
	require.NoError(t, err)
	got, err := vi.Read(weakValue, *referent)
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeFor[*zNode](), got.Type())
	assert.Equal(t, uintptr(unsafe.Pointer(z)), got.Pointer())
	runtime.KeepAlive(z)

	chainSlots := vi.Slots(ValueOf(chainNode{}))
	require.Len(t, chainSlots, 3)
	assert.True(t, chainSlots[2].Scalar)
}

func TestValueIntrospector_ReadRefusedWithoutAddress(t *testing.T) {
	vi := NewValueIntrospector()
	v := reflect.ValueOf(exported{private: &target{}})
	require.False(t, v.CanAddr())

	_, err := vi.Read(v, vi.Slots(v)[1])
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAccessRefused)

	got, err := vi.Read(v, vi.Slots(v)[0])
	require.NoError(t, err)
	assert.True(t, vi.IsNil(got))
}

func TestValueIntrospector_Identity(t *testing.T) {
	vi := NewValueIntrospector()
	p := &target{id: 1}

	assert.Equal(t, vi.Identity(reflect.ValueOf(p)), vi.Identity(reflect.ValueOf(p)))
	assert.NotEqual(t, vi.Identity(reflect.ValueOf(p)), vi.Identity(reflect.ValueOf(&target{id: 1})))

	s := []int{1, 2, 3}
	assert.NotEqual(t, vi.Identity(reflect.ValueOf(s)), vi.Identity(reflect.ValueOf(s[:2])))

	unaddressable := reflect.ValueOf(target{})
	assert.NotEqual(t, vi.Identity(unaddressable), vi.Identity(unaddressable))
}

func TestValueIntrospector_Shape(t *testing.T) {
	vi := NewValueIntrospector()
	tests := []struct {
		value any
		want  Shape
	}{
		{value: 1, want: ShapeOpaque},
		{value: "s", want: ShapeOpaque},
		{value: func() {}, want: ShapeOpaque},
		{value: []int{}, want: ShapeIndexed},
		{value: [1]int{}, want: ShapeIndexed},
		{value: map[int]int{}, want: ShapeIndexed},
		{value: target{}, want: ShapeComposite},
		{value: &target{}, want: ShapeComposite},
	}
	for _, tt := range tests {
		v := ValueOf(tt.value)
		assert.Equal(t, tt.want, vi.Shape(v), "shape of %s", v.Type())
	}

	assert.True(t, vi.ScalarElements(ValueOf([]string{"a"})))
	assert.True(t, vi.ScalarElements(ValueOf(map[string]int{})))
	assert.False(t, vi.ScalarElements(ValueOf(map[string]*target{})))
	assert.False(t, vi.ScalarElements(ValueOf([]any{})))
	assert.Equal(t, ShapeIndexed, vi.Shape(ValueOf(&sync.Map{}).Elem()))
}

func TestValueIntrospector_MapElementsSkipScalarComponents(t *testing.T) {
	vi := NewValueIntrospector()
	tg := &target{}

	elems, err := vi.Elements(ValueOf(map[string]*target{"a": tg}))
	require.NoError(t, err)
	require.Len(t, elems, 1)
	assert.Equal(t, uintptr(unsafe.Pointer(tg)), elems[0].Pointer())

	elems, err = vi.Elements(ValueOf(map[*target]any{tg: "x"}))
	require.NoError(t, err)
	assert.Len(t, elems, 2)
}
