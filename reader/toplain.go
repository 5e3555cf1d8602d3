package reader

import (
	"fmt"

	"github.com/arloliu/msglc/errs"
	"github.com/arloliu/msglc/value"
)

// ToPlain fully materializes a cursor returned by Session.Read/Get into an
// ordinary value.Value tree with no further lazy resolution (spec §4.5.4).
//
// A node-backed cursor with fast-load enabled, whose fraction of children
// already held in its value cache is below FastLoadThreshold, is decoded in
// one call over its whole byte range, since the payload bytes of a subtree
// are valid MessagePack on their own regardless of how the TOC addresses its
// children; otherwise ToPlain walks the cursor's own Get/At, recursing and
// reusing cache hits. With the value cache disabled no children count as
// accessed.
func ToPlain(v any) (value.Value, error) {
	switch c := v.(type) {
	case nil:
		return value.Null(), nil
	case bool:
		return value.Bool(c), nil
	case int64:
		return value.Int(c), nil
	case float64:
		return value.Float(c), nil
	case string:
		return value.String(c), nil
	case []byte:
		return value.Bytes(c), nil
	case *value.Ext:
		return value.Value{Kind: value.KindExt, Ext: c}, nil
	case *LazyMap:
		return c.toPlain()
	case *LazySeq:
		return c.toPlain()
	default:
		return value.Value{}, fmt.Errorf("%w: cannot materialize %T", errs.ErrTypeMismatch, v)
	}
}

func (m *LazyMap) toPlain() (value.Value, error) {
	if m.materialized != nil {
		return value.Value{Kind: value.KindMap, Map: m.materialized}, nil
	}

	if m.sess.cfg.FastLoad && float64(len(m.cache)) < m.sess.cfg.FastLoadThreshold*float64(m.Len()) {
		data, err := m.sess.fetch(m.node.Start, m.node.End)
		if err != nil {
			return value.Value{}, err
		}

		v, err := m.sess.codec.NewDecoder(data).Decode()
		if err != nil {
			return value.Value{}, fmt.Errorf("%w: %w", errs.ErrDecode, err)
		}

		return v, nil
	}

	out := value.NewOrderedMap()
	for key := range m.Keys() {
		child, err := m.Get(key)
		if err != nil {
			return value.Value{}, err
		}

		pv, err := ToPlain(child)
		if err != nil {
			return value.Value{}, err
		}

		out.Set(key, pv)
	}

	return value.Value{Kind: value.KindMap, Map: out}, nil
}

func (s *LazySeq) toPlain() (value.Value, error) {
	if s.materialized != nil {
		return value.NewSeq(s.materialized...), nil
	}

	if s.sess.cfg.FastLoad && float64(len(s.cache)) < s.sess.cfg.FastLoadThreshold*float64(s.Len()) {
		data, err := s.sess.fetch(s.node.Start, s.node.End)
		if err != nil {
			return value.Value{}, err
		}

		v, err := s.sess.codec.NewDecoder(data).Decode()
		if err != nil {
			return value.Value{}, fmt.Errorf("%w: %w", errs.ErrDecode, err)
		}

		return v, nil
	}

	out := make([]value.Value, s.Len())
	for i := range out {
		child, err := s.At(i)
		if err != nil {
			return value.Value{}, err
		}

		pv, err := ToPlain(child)
		if err != nil {
			return value.Value{}, err
		}

		out[i] = pv
	}

	return value.NewSeq(out...), nil
}
