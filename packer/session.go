// Package packer writes msglc blobs: it depth-first encodes a value tree (or
// a streamed map) into the MessagePack payload while building the table of
// contents alongside it, then writes the TOC trailer and patches the fixed
// header with its location (spec §4.3, §4.4).
package packer

import (
	"github.com/arloliu/msglc/codec"
	"github.com/arloliu/msglc/config"
	"github.com/arloliu/msglc/internal/options"
	"github.com/arloliu/msglc/toc"
	"github.com/arloliu/msglc/value"
)

// groupMinCount is the minimum run length of trivially small sequence
// elements before the packer prefers a VariantGrouped child table over
// addressing every element individually.
const groupMinCount = 8

// session holds one Pack/PackStream call's configuration and running state.
type session struct {
	cfg   *config.Config
	codec codec.Codec
	gc    bool

	enc codec.StreamEncoder
}

// Option configures a Pack or PackStream call.
type Option = options.Option[*session]

// WithConfig overrides the config.Config this session uses, instead of
// config.Current().
func WithConfig(cfg *config.Config) Option {
	return options.NoError(func(s *session) { s.cfg = cfg })
}

// WithCodec overrides the codec.Codec backend this session uses, instead of
// codec.Default().
func WithCodec(c codec.Codec) Option {
	return options.NoError(func(s *session) { s.codec = c })
}

// WithGCGuard disables the garbage collector for the duration of the pack
// call (spec §5's disable_gc), restoring it on return. Useful for large,
// latency-sensitive packs where a GC pause mid-traversal is unwelcome.
func WithGCGuard(enabled bool) Option {
	return options.NoError(func(s *session) { s.gc = enabled })
}

func newSession(opts ...Option) (*session, error) {
	s := &session{cfg: config.Current(), codec: codec.Default()}
	if err := options.Apply(s, opts...); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *session) packValue(v value.Value) (*toc.Node, error) {
	start := uint64(s.enc.Written())

	switch v.Kind {
	case value.KindSeq:
		return s.packSeq(v, start)
	case value.KindMap:
		return s.packMap(v, start)
	default:
		if err := codec.Encode(v, s.enc); err != nil {
			return nil, err
		}

		return toc.Leaf(start, uint64(s.enc.Written())), nil
	}
}

func (s *session) packMap(v value.Value, start uint64) (*toc.Node, error) {
	entries := v.Map.Entries()
	if err := s.enc.EncodeMapLen(len(entries)); err != nil {
		return nil, err
	}

	keyed := make([]toc.KeyedChild, len(entries))
	for i, e := range entries {
		if err := s.enc.EncodeString(e.Key); err != nil {
			return nil, err
		}

		child, err := s.packValue(e.Value)
		if err != nil {
			return nil, err
		}
		keyed[i] = toc.KeyedChild{Key: e.Key, Child: child}
	}

	end := uint64(s.enc.Written())
	if end-start < uint64(s.cfg.SmallObjThreshold) {
		return toc.Leaf(start, end), nil
	}

	return &toc.Node{Start: start, End: end, Variant: toc.VariantKeyed, Keyed: keyed}, nil
}

func (s *session) packSeq(v value.Value, start uint64) (*toc.Node, error) {
	if err := s.enc.EncodeArrayLen(len(v.Seq)); err != nil {
		return nil, err
	}

	children := make([]*toc.Node, len(v.Seq))
	for i, e := range v.Seq {
		child, err := s.packValue(e)
		if err != nil {
			return nil, err
		}
		children[i] = child
	}

	end := uint64(s.enc.Written())
	if end-start < uint64(s.cfg.SmallObjThreshold) {
		return toc.Leaf(start, end), nil
	}

	if eligibleForGrouping(children, s.cfg.TrivialSize) {
		return &toc.Node{Start: start, End: end, Variant: toc.VariantGrouped, Grouped: buildGroups(children, s.cfg.SmallObjThreshold)}, nil
	}

	return &toc.Node{Start: start, End: end, Variant: toc.VariantPositional, Positional: children}, nil
}

func eligibleForGrouping(children []*toc.Node, trivialSize int) bool {
	if len(children) < groupMinCount {
		return false
	}

	for _, c := range children {
		if c.End-c.Start >= uint64(trivialSize) {
			return false
		}
	}

	return true
}

// buildGroups partitions children into blocks whose cumulative encoded size
// just meets or exceeds threshold, ties broken by overshoot rather than
// undershoot; the last block absorbs whatever remains (spec §4.3.1).
func buildGroups(children []*toc.Node, threshold int) []toc.GroupBlock {
	var blocks []toc.GroupBlock

	for i := 0; i < len(children); {
		j := i
		var size uint64
		for j < len(children) && size < uint64(threshold) {
			size += children[j].End - children[j].Start
			j++
		}

		blocks = append(blocks, toc.GroupBlock{
			Count: j - i,
			Start: children[i].Start,
			End:   children[j-1].End,
		})

		i = j
	}

	return blocks
}
