// Package evmap implements a lock-free, eventually-consistent map with one
// writer and arbitrarily many concurrent readers. It is the layer map
// underlying covertree.CoverLayer: the writer accumulates pending
// insertions/updates/removals against a private working copy, and Refresh
// atomically publishes an immutable snapshot that future reader handles
// observe. A Reader obtained before a Refresh keeps seeing the snapshot it
// was handed until it re-syncs through a Factory — readers never block the
// writer and the writer never waits on readers.
package evmap

import (
	"iter"
	"sync/atomic"
)

// Map is the writer side of an evmap. It is owned by exactly one goroutine;
// none of its methods are safe for concurrent use by multiple writers.
type Map[K comparable, V any] struct {
	working map[K]V
	visible atomic.Pointer[map[K]V]
}

// New creates an empty Map. The first Refresh must be called before readers
// observe anything other than the empty snapshot.
func New[K comparable, V any]() *Map[K, V] {
	m := &Map[K, V]{working: make(map[K]V)}
	empty := map[K]V{}
	m.visible.Store(&empty)
	return m
}

// Insert stages a key/value pair in the working copy. Invisible to readers
// until the next Refresh.
func (m *Map[K, V]) Insert(key K, val V) {
	m.working[key] = val
}

// Update applies fn to the current value at key, if any, replacing it with
// fn's result in the working copy. A no-op if key is absent.
func (m *Map[K, V]) Update(key K, fn func(V) V) {
	if v, ok := m.working[key]; ok {
		m.working[key] = fn(v)
	}
}

// Remove stages a deletion in the working copy.
func (m *Map[K, V]) Remove(key K) {
	delete(m.working, key)
}

// Refresh publishes the working copy: it allocates a fresh snapshot map,
// shallow-copies every entry into it, and atomically swaps the pointer that
// new Reader handles observe. Existing readers are unaffected.
func (m *Map[K, V]) Refresh() {
	snap := make(map[K]V, len(m.working))
	for k, v := range m.working {
		snap[k] = v
	}
	m.visible.Store(&snap)
}

// Len returns the size of the writer's working copy (which may include
// pending changes not yet visible to readers).
func (m *Map[K, V]) Len() int { return len(m.working) }

// IsEmpty reports whether the writer's working copy is empty.
func (m *Map[K, V]) IsEmpty() bool { return len(m.working) == 0 }

// Factory mints Reader handles synced to the writer's most recent Refresh.
// A Factory may be shared and cloned freely across goroutines.
type Factory[K comparable, V any] struct {
	m *Map[K, V]
}

// Factory returns a handle mint tied to this Map's writer.
func (m *Map[K, V]) Factory() Factory[K, V] { return Factory[K, V]{m: m} }

// Handle mints a fresh Reader synced to the latest published snapshot.
func (f Factory[K, V]) Handle() Reader[K, V] {
	return Reader[K, V]{factory: f, snapshot: f.m.visible.Load()}
}

// Reader is a lock-free, point-in-time read-only view over a Map. Multiple
// Readers may be used concurrently, from any number of goroutines, without
// coordination, and without blocking the writer.
type Reader[K comparable, V any] struct {
	factory  Factory[K, V]
	snapshot *map[K]V
}

// Get returns the value at key in this Reader's snapshot.
func (r Reader[K, V]) Get(key K) (V, bool) {
	v, ok := (*r.snapshot)[key]
	return v, ok
}

// Len returns the number of entries in this Reader's snapshot.
func (r Reader[K, V]) Len() int { return len(*r.snapshot) }

// IsEmpty reports whether this Reader's snapshot is empty.
func (r Reader[K, V]) IsEmpty() bool { return len(*r.snapshot) == 0 }

// All returns a range-over-func iterator over this Reader's snapshot.
func (r Reader[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for k, v := range *r.snapshot {
			if !yield(k, v) {
				return
			}
		}
	}
}

// Keys returns a range-over-func iterator over this Reader's snapshot keys.
func (r Reader[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range *r.snapshot {
			if !yield(k) {
				return
			}
		}
	}
}

// Resync returns a fresh Reader synced to the writer's latest Refresh,
// equivalent to f.Factory().Handle() where f is this Reader's factory.
func (r Reader[K, V]) Resync() Reader[K, V] {
	return r.factory.Handle()
}

// GetAnd reads the value at key in r's snapshot and maps it with fn, without
// copying the value out. The second return is false if key is absent.
func GetAnd[K comparable, V any, T any](r Reader[K, V], key K, fn func(V) T) (T, bool) {
	v, ok := (*r.snapshot)[key]
	if !ok {
		var zero T
		return zero, false
	}
	return fn(v), true
}
