package fusion

import (
	"sync"

	"github.com/voxelcore/voxelcore/octree"
)

// TouchedSet is the caller-supplied out-parameter from §4.4's integrate
// contract: a stable set of octant handles touched by propagation this
// frame, kept consistent with subtree pruning (SPEC_FULL's "touched
// octants as stable handles" supplement — §5 requires pruning deletions
// to be serialised against these writes, which the shared mutex here
// provides).
type TouchedSet struct {
	mu sync.Mutex
	m  map[octree.Handle]struct{}
}

// NewTouchedSet returns an empty set.
func NewTouchedSet() *TouchedSet {
	return &TouchedSet{m: make(map[octree.Handle]struct{})}
}

// Add records a handle as touched.
func (s *TouchedSet) Add(h octree.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[h] = struct{}{}
}

// Remove drops a handle, used when the octant it names is pruned so
// callers never resolve a dangling reference.
func (s *TouchedSet) Remove(h octree.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, h)
}

// RemoveAll drops every handle in hs.
func (s *TouchedSet) RemoveAll(hs []octree.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range hs {
		delete(s.m, h)
	}
}

// Handles returns a snapshot of every touched handle.
func (s *TouchedSet) Handles() []octree.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]octree.Handle, 0, len(s.m))
	for h := range s.m {
		out = append(out, h)
	}
	return out
}

// Len reports the number of touched handles.
func (s *TouchedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}
