package reader

import (
	"fmt"
	"iter"

	"github.com/arloliu/msglc/errs"
	"github.com/arloliu/msglc/toc"
	"github.com/arloliu/msglc/value"
)

// LazySeq is a cursor over a sequence-shaped value, addressed either
// per-index (VariantPositional), in blocks of trivially small elements
// (VariantGrouped), or fully materialized in-memory for an opaque small
// container (spec §4.5).
type LazySeq struct {
	sess *Session

	node         *toc.Node
	materialized []value.Value

	cache       map[int]any
	groupPrefix []int // cumulative element count ending at each group block, built lazily
}

// Len returns the number of elements.
func (s *LazySeq) Len() int {
	if s.materialized != nil {
		return len(s.materialized)
	}

	switch s.node.Variant {
	case toc.VariantPositional:
		return len(s.node.Positional)
	case toc.VariantGrouped:
		total := 0
		for _, g := range s.node.Grouped {
			total += g.Count
		}

		return total
	default:
		return 0
	}
}

// At resolves the element at index i.
func (s *LazySeq) At(i int) (any, error) {
	if err := s.sess.checkOpen(); err != nil {
		return nil, err
	}
	if i < 0 || i >= s.Len() {
		return nil, fmt.Errorf("%w: index %d, length %d", errs.ErrIndexOutOfRange, i, s.Len())
	}

	if s.sess.cache {
		if v, ok := s.cache[i]; ok {
			return v, nil
		}
	}

	resolved, err := s.resolveAt(i)
	if err != nil {
		return nil, err
	}

	if s.sess.cache {
		if s.cache == nil {
			s.cache = make(map[int]any)
		}
		s.cache[i] = resolved
	}

	return resolved, nil
}

func (s *LazySeq) resolveAt(i int) (any, error) {
	if s.materialized != nil {
		return s.sess.wrapValue(s.materialized[i]), nil
	}

	switch s.node.Variant {
	case toc.VariantPositional:
		return s.sess.wrapNode(s.node.Positional[i])
	case toc.VariantGrouped:
		return s.resolveGrouped(i)
	default:
		return nil, fmt.Errorf("%w: sequence node has no addressable children", errs.ErrTypeMismatch)
	}
}

func (s *LazySeq) prefixSums() []int {
	if s.groupPrefix != nil {
		return s.groupPrefix
	}

	sums := make([]int, len(s.node.Grouped))
	total := 0
	for i, g := range s.node.Grouped {
		total += g.Count
		sums[i] = total
	}
	s.groupPrefix = sums

	return sums
}

// resolveGrouped locates the GroupBlock containing global index i, then
// decodes forward through that block's byte range until it reaches the
// i-th element. Elements within a block have no individual TOC entries, so
// this walk is the cost of addressing a trivially small element: cheap
// because the block itself is small (spec §4.3.1).
func (s *LazySeq) resolveGrouped(i int) (any, error) {
	sums := s.prefixSums()

	blockIdx := 0
	for blockIdx < len(sums) && sums[blockIdx] <= i {
		blockIdx++
	}

	block := s.node.Grouped[blockIdx]
	localIdx := i
	if blockIdx > 0 {
		localIdx = i - sums[blockIdx-1]
	}

	data, err := s.sess.fetch(block.Start, block.End)
	if err != nil {
		return nil, err
	}

	dec := s.sess.codec.NewDecoder(data)
	var v value.Value
	for n := 0; n <= localIdx; n++ {
		v, err = dec.Decode()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errs.ErrDecode, err)
		}
	}

	return s.sess.wrapValue(v), nil
}

// Slice resolves elements [i,j) eagerly, each through the same resolution
// path At would use.
func (s *LazySeq) Slice(i, j int) ([]any, error) {
	if i < 0 || j > s.Len() || i > j {
		return nil, fmt.Errorf("%w: slice [%d:%d), length %d", errs.ErrIndexOutOfRange, i, j, s.Len())
	}

	out := make([]any, 0, j-i)
	for k := i; k < j; k++ {
		v, err := s.At(k)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}

	return out, nil
}

// All iterates (index, resolved value) pairs in order.
func (s *LazySeq) All() iter.Seq2[int, any] {
	return func(yield func(int, any) bool) {
		for i := 0; i < s.Len(); i++ {
			v, err := s.At(i)
			if err != nil {
				return
			}
			if !yield(i, v) {
				return
			}
		}
	}
}

// Equal reports whether s, once fully materialized, is structurally equal to
// plain (spec §4.5.3/P7: "LazySeq == plain_seq iff plain_seq ==
// to_plain(LazySeq)"), element by element in order.
func (s *LazySeq) Equal(plain value.Value) bool {
	a, err := ToPlain(s)
	if err != nil {
		return false
	}

	return value.Equal(a, plain)
}
