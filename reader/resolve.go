package reader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/msglc/errs"
	"github.com/arloliu/msglc/toc"
	"github.com/arloliu/msglc/value"
)

// wrapNode turns a TOC node into the lazy cursor appropriate for its shape:
// a *LazyMap or *LazySeq addressing the node's children individually, or a
// fully decoded scalar/opaque value for a VariantNone leaf.
func (s *Session) wrapNode(n *toc.Node) (any, error) {
	switch n.Variant {
	case toc.VariantKeyed:
		return &LazyMap{sess: s, node: n}, nil
	case toc.VariantPositional, toc.VariantGrouped:
		return &LazySeq{sess: s, node: n}, nil
	default:
		data, err := s.fetch(n.Start, n.End)
		if err != nil {
			return nil, err
		}

		v, err := s.codec.NewDecoder(data).Decode()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errs.ErrDecode, err)
		}

		return s.wrapValue(v), nil
	}
}

// wrapValue turns an already-decoded value.Value into the same cursor shape
// wrapNode produces, so a materialized opaque container supports the same
// Get/At/Keys/All API as a node-backed one.
func (s *Session) wrapValue(v value.Value) any {
	switch v.Kind {
	case value.KindNull:
		return nil
	case value.KindBool:
		return v.Bool
	case value.KindInt:
		return v.Int
	case value.KindFloat:
		return v.Float
	case value.KindString:
		return v.Str
	case value.KindBytes:
		return v.Bytes
	case value.KindExt:
		return v.Ext
	case value.KindMap:
		return &LazyMap{sess: s, materialized: v.Map}
	case value.KindSeq:
		return &LazySeq{sess: s, materialized: v.Seq}
	default:
		return nil
	}
}

func descend(cur any, seg any) (any, error) {
	switch c := cur.(type) {
	case *LazyMap:
		key, ok := seg.(string)
		if !ok {
			return nil, fmt.Errorf("%w: map requires a string key segment, got %T", errs.ErrTypeMismatch, seg)
		}

		return c.Get(key)
	case *LazySeq:
		idx, ok := toInt(seg)
		if !ok {
			return nil, fmt.Errorf("%w: sequence requires an integer index segment, got %T", errs.ErrTypeMismatch, seg)
		}

		return c.At(idx)
	default:
		return nil, fmt.Errorf("%w: cannot descend into a %T", errs.ErrTypeMismatch, cur)
	}
}

func toInt(seg any) (int, bool) {
	switch v := seg.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}

		return n, true
	default:
		return 0, false
	}
}

// expandPath flattens a Read/Get path argument list, splitting a single
// "/"-separated string into its components (spec §6.3).
func expandPath(path []any) []any {
	if len(path) == 1 {
		if str, ok := path[0].(string); ok && strings.Contains(str, "/") {
			parts := strings.Split(strings.Trim(str, "/"), "/")
			segs := make([]any, 0, len(parts))
			for _, p := range parts {
				if p == "" {
					continue
				}
				segs = append(segs, p)
			}

			return segs
		}
	}

	return path
}
