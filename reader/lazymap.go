package reader

import (
	"fmt"
	"iter"

	"github.com/arloliu/msglc/errs"
	"github.com/arloliu/msglc/toc"
	"github.com/arloliu/msglc/value"
)

// LazyMap is a cursor over a map-shaped value: a node-backed one resolves
// each key on demand from the TOC's keyed child table, a materialized one
// (an opaque small container that had to be decoded whole) resolves
// in-memory instead, behind the same API (spec §4.5).
type LazyMap struct {
	sess *Session

	node         *toc.Node // non-nil: VariantKeyed, resolved on demand
	materialized *value.Map // non-nil: fully decoded, resolved in-memory

	index map[string]int // lazily built node.Keyed key -> position index
	cache map[string]any
}

func (m *LazyMap) keyIndex() map[string]int {
	if m.index != nil {
		return m.index
	}

	idx := make(map[string]int, len(m.node.Keyed))
	for i, kc := range m.node.Keyed {
		idx[kc.Key] = i
	}
	m.index = idx

	return idx
}

// Get resolves the value for key.
func (m *LazyMap) Get(key string) (any, error) {
	if err := m.sess.checkOpen(); err != nil {
		return nil, err
	}

	if m.sess.cache {
		if v, ok := m.cache[key]; ok {
			return v, nil
		}
	}

	var resolved any
	var err error

	if m.materialized != nil {
		v, ok := m.materialized.Get(key)
		if !ok {
			return nil, fmt.Errorf("%w: %q", errs.ErrKeyNotFound, key)
		}
		resolved = m.sess.wrapValue(v)
	} else {
		idx, ok := m.keyIndex()[key]
		if !ok {
			return nil, fmt.Errorf("%w: %q", errs.ErrKeyNotFound, key)
		}
		resolved, err = m.sess.wrapNode(m.node.Keyed[idx].Child)
		if err != nil {
			return nil, err
		}
	}

	if m.sess.cache {
		if m.cache == nil {
			m.cache = make(map[string]any)
		}
		m.cache[key] = resolved
	}

	return resolved, nil
}

// Has reports whether key is present.
func (m *LazyMap) Has(key string) bool {
	if m.materialized != nil {
		return m.materialized.Has(key)
	}
	_, ok := m.keyIndex()[key]

	return ok
}

// Len returns the number of entries.
func (m *LazyMap) Len() int {
	if m.materialized != nil {
		return m.materialized.Len()
	}

	return len(m.node.Keyed)
}

// Keys iterates the map's keys in their on-disk order.
func (m *LazyMap) Keys() iter.Seq[string] {
	return func(yield func(string) bool) {
		if m.materialized != nil {
			for _, e := range m.materialized.Entries() {
				if !yield(e.Key) {
					return
				}
			}

			return
		}

		for _, kc := range m.node.Keyed {
			if !yield(kc.Key) {
				return
			}
		}
	}
}

// All iterates the map's (key, resolved value) pairs in their on-disk order.
func (m *LazyMap) All() iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for key := range m.Keys() {
			v, err := m.Get(key)
			if err != nil {
				return
			}
			if !yield(key, v) {
				return
			}
		}
	}
}

// Equal reports whether m, once fully materialized, is structurally equal to
// plain (spec §4.5.3/P7: "LazyMap == plain_map iff plain_map ==
// to_plain(LazyMap)"), regardless of key order.
func (m *LazyMap) Equal(plain value.Value) bool {
	a, err := ToPlain(m)
	if err != nil {
		return false
	}

	return value.Equal(a, plain)
}
