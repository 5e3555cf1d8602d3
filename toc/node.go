// Package toc implements the table-of-contents tree described in spec §3.2:
// a parallel index over the MessagePack payload giving the byte range of
// every container worth addressing without decoding its siblings.
//
// A Node is encoded as an ordinary value.Value tree and written through the
// codec package, the same way the teacher turns its in-memory index entries
// into bytes via section.NumericIndexEntry — except here the "index" is
// itself tree-shaped, so it rides the general value codec instead of a
// fixed-width binary record.
package toc

import (
	"fmt"
	"io"

	"github.com/arloliu/msglc/codec"
	"github.com/arloliu/msglc/errs"
	"github.com/arloliu/msglc/value"
)

// Variant identifies which shape of child table a Node carries, per spec §3.2.
type Variant uint8

const (
	// VariantNone marks a leaf: the node's [Start,End) range is opaque and
	// must be decoded whole, with no addressable children.
	VariantNone Variant = iota
	// VariantKeyed marks a map-shaped node with a named child per key.
	VariantKeyed
	// VariantPositional marks a sequence-shaped node with a child per index.
	VariantPositional
	// VariantGrouped marks a sequence-shaped node whose children are
	// runs of trivially small elements addressed in blocks, not individually.
	VariantGrouped
)

func (v Variant) String() string {
	switch v {
	case VariantNone:
		return "none"
	case VariantKeyed:
		return "keyed"
	case VariantPositional:
		return "positional"
	case VariantGrouped:
		return "grouped"
	default:
		return "unknown"
	}
}

// KeyedChild is one entry of a VariantKeyed node's child table.
type KeyedChild struct {
	Key   string
	Child *Node
}

// GroupBlock is one run of GroupBlock.Count trivially small elements packed
// contiguously in [Start,End), addressed as a block rather than individually
// (spec §4.3.1 grouped TOC).
type GroupBlock struct {
	Count int
	Start uint64
	End   uint64
}

// Node is one entry of the table of contents: the byte range of a value in
// the payload, plus however its children (if any) are addressed.
type Node struct {
	Start uint64
	End   uint64

	Variant Variant

	Keyed      []KeyedChild
	Positional []*Node
	Grouped    []GroupBlock
}

// Leaf returns a childless Node spanning [start,end).
func Leaf(start, end uint64) *Node {
	return &Node{Start: start, End: end, Variant: VariantNone}
}

// wire keys for the encoded form, normatively fixed by spec §3.3/§6.1: "p"
// for the [start,end] position pair, "t" for the child table. A node's
// variant is not itself encoded; it is inferred on decode from whether "t"
// is present and, if so, whether it is a map (keyed) or an array (positional
// or grouped, disambiguated by each element's own shape).
const (
	keyPos   = "p"
	keyTable = "t"
)

// Encode serializes n as a value.Value tree through enc.
func Encode(n *Node, enc codec.StreamEncoder) error {
	v := n.toValue()

	return codec.Encode(v, enc)
}

func (n *Node) toValue() value.Value {
	m := value.NewOrderedMap()
	m.Set(keyPos, value.NewSeq(value.Int(int64(n.Start)), value.Int(int64(n.End))))

	switch n.Variant {
	case VariantKeyed:
		table := value.NewOrderedMap()
		for _, kc := range n.Keyed {
			table.Set(kc.Key, kc.Child.toValue())
		}
		m.Set(keyTable, value.Value{Kind: value.KindMap, Map: table})
	case VariantPositional:
		children := make([]value.Value, len(n.Positional))
		for i, c := range n.Positional {
			children[i] = c.toValue()
		}
		m.Set(keyTable, value.NewSeq(children...))
	case VariantGrouped:
		blocks := make([]value.Value, len(n.Grouped))
		for i, g := range n.Grouped {
			blocks[i] = value.NewSeq(
				value.Int(int64(g.Count)),
				value.Int(int64(g.Start)),
				value.Int(int64(g.End)),
			)
		}
		m.Set(keyTable, value.NewSeq(blocks...))
	case VariantNone:
		// no "t": the absence of a child table is the leaf marker.
	}

	return value.Value{Kind: value.KindMap, Map: m}
}

// Decode reads one Node tree from dec.
func Decode(dec codec.Decoder) (*Node, error) {
	v, err := dec.Decode()
	if err != nil {
		return nil, fmt.Errorf("%w: toc: %w", errs.ErrInvalidTOC, err)
	}

	return fromValue(v)
}

func fromValue(v value.Value) (*Node, error) {
	if v.Kind != value.KindMap {
		return nil, fmt.Errorf("%w: toc node must be a map, got %s", errs.ErrInvalidTOC, v.Kind)
	}

	pv, ok := v.Map.Get(keyPos)
	if !ok || len(pv.Seq) != 2 {
		return nil, fmt.Errorf("%w: toc node missing or malformed %q", errs.ErrInvalidTOC, keyPos)
	}

	n := &Node{Start: uint64(pv.Seq[0].Int), End: uint64(pv.Seq[1].Int)}

	tv, ok := v.Map.Get(keyTable)
	if !ok {
		n.Variant = VariantNone
		return n, nil
	}

	switch tv.Kind {
	case value.KindMap:
		n.Variant = VariantKeyed
		for _, e := range tv.Map.Entries() {
			child, err := fromValue(e.Value)
			if err != nil {
				return nil, err
			}
			n.Keyed = append(n.Keyed, KeyedChild{Key: e.Key, Child: child})
		}
	case value.KindSeq:
		if isGroupedTable(tv.Seq) {
			n.Variant = VariantGrouped
			n.Grouped = make([]GroupBlock, len(tv.Seq))
			for i, bv := range tv.Seq {
				if len(bv.Seq) != 3 {
					return nil, fmt.Errorf("%w: grouped block must have 3 fields", errs.ErrInvalidTOC)
				}
				n.Grouped[i] = GroupBlock{
					Count: int(bv.Seq[0].Int),
					Start: uint64(bv.Seq[1].Int),
					End:   uint64(bv.Seq[2].Int),
				}
			}
		} else {
			n.Variant = VariantPositional
			n.Positional = make([]*Node, len(tv.Seq))
			for i, cv := range tv.Seq {
				child, err := fromValue(cv)
				if err != nil {
					return nil, err
				}
				n.Positional[i] = child
			}
		}
	default:
		return nil, fmt.Errorf("%w: %q must be a map or array", errs.ErrInvalidTOC, keyTable)
	}

	return n, nil
}

// isGroupedTable reports whether a "t" array holds grouped 3-tuples
// ([count,start,end], themselves arrays) rather than positional child nodes
// (maps containing "p"), per spec §3.3's disambiguation rule. An empty
// table is reported as positional; the packer never emits an empty grouped
// table, since it only creates one for runs of at least its groupMinCount
// elements.
func isGroupedTable(seq []value.Value) bool {
	if len(seq) == 0 {
		return false
	}

	return seq[0].Kind == value.KindSeq
}

// EncodeToBytes encodes n standalone, for writing as the blob's TOC trailer.
func EncodeToBytes(n *Node, c codec.Codec, w io.Writer) (int64, error) {
	enc := c.NewStreamEncoder(w)
	if err := Encode(n, enc); err != nil {
		return 0, err
	}

	return enc.Written(), nil
}

// DecodeFromBytes decodes a Node from a standalone encoded byte range, e.g.
// the blob's TOC trailer.
func DecodeFromBytes(data []byte, c codec.Codec) (*Node, error) {
	return Decode(c.NewDecoder(data))
}

// Shift adds delta to every offset in n's subtree, recursively. Used by the
// combiner to rebase a trailing blob's TOC onto its new payload position
// (spec §4.6).
func Shift(n *Node, delta uint64) {
	if n == nil {
		return
	}

	n.Start += delta
	n.End += delta

	switch n.Variant {
	case VariantKeyed:
		for _, kc := range n.Keyed {
			Shift(kc.Child, delta)
		}
	case VariantPositional:
		for _, c := range n.Positional {
			Shift(c, delta)
		}
	case VariantGrouped:
		for i := range n.Grouped {
			n.Grouped[i].Start += delta
			n.Grouped[i].End += delta
		}
	case VariantNone:
	}
}
