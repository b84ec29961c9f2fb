package evmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapInsertInvisibleBeforeRefresh(t *testing.T) {
	m := New[string, int]()
	r := m.Factory().Handle()
	assert.True(t, r.IsEmpty())

	m.Insert("a", 1)
	assert.True(t, r.IsEmpty(), "reader minted before Insert must not see it")
	assert.Equal(t, 1, m.Len(), "writer's working copy sees its own pending insert")

	m.Refresh()
	assert.True(t, r.IsEmpty(), "reader minted before Refresh keeps its old snapshot")

	fresh := m.Factory().Handle()
	v, ok := fresh.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestMapResyncObservesLatestRefresh(t *testing.T) {
	m := New[string, int]()
	m.Insert("a", 1)
	m.Refresh()

	r := m.Factory().Handle()
	v, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	m.Insert("a", 2)
	m.Insert("b", 3)
	m.Refresh()

	// The old handle is unaffected until it resyncs.
	v, ok = r.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	next := r.Resync()
	v, ok = next.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	v, ok = next.Get("b")
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestMapUpdateAndRemove(t *testing.T) {
	m := New[string, int]()
	m.Insert("a", 1)
	m.Update("a", func(v int) int { return v + 10 })
	m.Update("missing", func(v int) int { return v + 1 }) // no-op, key absent
	m.Refresh()

	r := m.Factory().Handle()
	v, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, 11, v)
	_, ok = r.Get("missing")
	assert.False(t, ok)

	m.Remove("a")
	m.Refresh()
	r = m.Factory().Handle()
	_, ok = r.Get("a")
	assert.False(t, ok)
}

func TestMapAllAndKeys(t *testing.T) {
	m := New[string, int]()
	want := map[string]int{"a": 1, "b": 2, "c": 3}
	for k, v := range want {
		m.Insert(k, v)
	}
	m.Refresh()
	r := m.Factory().Handle()

	got := make(map[string]int)
	for k, v := range r.All() {
		got[k] = v
	}
	assert.Equal(t, want, got)

	keys := make(map[string]struct{})
	for k := range r.Keys() {
		keys[k] = struct{}{}
	}
	assert.Len(t, keys, 3)
}

func TestGetAndMapsWithoutCopyingOut(t *testing.T) {
	m := New[string, []int]()
	m.Insert("a", []int{1, 2, 3})
	m.Refresh()
	r := m.Factory().Handle()

	sum, ok := GetAnd(r, "a", func(v []int) int {
		total := 0
		for _, x := range v {
			total += x
		}
		return total
	})
	require.True(t, ok)
	assert.Equal(t, 6, sum)

	_, ok = GetAnd(r, "missing", func(v []int) int { return 0 })
	assert.False(t, ok)
}

func TestFactorySharedAcrossHandles(t *testing.T) {
	m := New[int, int]()
	m.Insert(1, 100)
	m.Refresh()

	f := m.Factory()
	h1 := f.Handle()
	h2 := f.Handle()

	v1, _ := h1.Get(1)
	v2, _ := h2.Get(1)
	assert.Equal(t, v1, v2)

	m.Insert(1, 200)
	m.Refresh()

	h3 := f.Handle()
	v3, _ := h3.Get(1)
	assert.Equal(t, 200, v3)
}
