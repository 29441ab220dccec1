package core

// TrackedResources maintains the active set for one resource kind along with
// the subset modified since the last Reset. Active iteration order is
// insertion order, which every compile stage shares: the material packer and
// the texture resolver must walk materials in the same order or the indices
// written into material headers would not match the descriptor heap.
type TrackedResources[T comparable] struct {
	active   []T
	modified map[T]struct{}
	changed  bool
}

func NewTrackedResources[T comparable]() *TrackedResources[T] {
	return &TrackedResources[T]{
		modified: make(map[T]struct{}),
	}
}

// Activate adds a resource to the active set. Newly activated resources count
// as modified.
func (t *TrackedResources[T]) Activate(res T) {
	for _, r := range t.active {
		if r == res {
			return
		}
	}
	t.active = append(t.active, res)
	t.modified[res] = struct{}{}
	t.changed = true
}

// Deactivate removes a resource from the active set, preserving the order of
// the remaining entries.
func (t *TrackedResources[T]) Deactivate(res T) {
	for i, r := range t.active {
		if r == res {
			t.active = append(t.active[:i], t.active[i+1:]...)
			delete(t.modified, res)
			t.changed = true
			return
		}
	}
}

// SetModified flags an active resource as changed this frame.
func (t *TrackedResources[T]) SetModified(res T) {
	for _, r := range t.active {
		if r == res {
			t.modified[res] = struct{}{}
			t.changed = true
			return
		}
	}
}

func (t *TrackedResources[T]) Active() []T {
	return t.active
}

// Modified returns the modified subset in active order.
func (t *TrackedResources[T]) Modified() []T {
	out := make([]T, 0, len(t.modified))
	for _, r := range t.active {
		if _, ok := t.modified[r]; ok {
			out = append(out, r)
		}
	}
	return out
}

func (t *TrackedResources[T]) Count() int {
	return len(t.active)
}

// ChangedThisFrame reports whether any member was added, removed, or mutated
// since the last Reset.
func (t *TrackedResources[T]) ChangedThisFrame() bool {
	return t.changed
}

// Reset clears the change signal. Called once per compile cycle, after every
// dependent stage has consumed it.
func (t *TrackedResources[T]) Reset() {
	t.modified = make(map[T]struct{})
	t.changed = false
}
