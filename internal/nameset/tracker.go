// Package nameset tracks the set of names seen while combining blobs,
// detecting duplicates cheaply via an xxHash64 digest before falling back to
// an exact string comparison on collision.
//
// This generalizes the teacher's internal/collision.Tracker, which tracked
// metric-name hash collisions during encoding; here the same shape tracks
// combine.FileRef names instead of metric names.
package nameset

import (
	"github.com/arloliu/msglc/errs"
	"github.com/arloliu/msglc/internal/hash"
)

// Tracker detects duplicate names across a set of combine inputs.
type Tracker struct {
	byHash map[uint64]string
	names  []string
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{byHash: make(map[uint64]string)}
}

// Track records name, returning errs.ErrDuplicateName if it was already
// tracked. A hash collision between two distinct names is resolved by the
// exact string comparison, so it never misreports a duplicate.
func (t *Tracker) Track(name string) error {
	h := hash.ID(name)

	if existing, ok := t.byHash[h]; ok && existing == name {
		return errs.ErrDuplicateName
	}

	t.byHash[h] = name
	t.names = append(t.names, name)

	return nil
}

// Names returns the tracked names in the order they were added.
func (t *Tracker) Names() []string {
	return t.names
}

// Count returns the number of tracked names.
func (t *Tracker) Count() int {
	return len(t.names)
}
