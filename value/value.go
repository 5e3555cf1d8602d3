// Package value defines the logical data model msglc packs and unpacks: a
// closed tree of null, bool, int, float, string, bytes, sequences, maps, and
// opaque MessagePack ext values.
//
// Value is a tagged union rather than an interface hierarchy, the same
// enum-with-payload shape the rest of this module's stack uses for closed
// sets of variants (see toc.Variant).
package value

import "fmt"

// Kind identifies which field of a Value is meaningful.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindSeq
	KindMap
	KindExt
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindSeq:
		return "seq"
	case KindMap:
		return "map"
	case KindExt:
		return "ext"
	default:
		return "unknown"
	}
}

// Ext is an opaque MessagePack extension value, passed through byte-for-byte.
type Ext struct {
	Type int8
	Data []byte
}

// Value is a single node in the logical data tree described by spec §3.1.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Bytes []byte
	Seq   []Value
	Map   *Map
	Ext   *Ext
}

// Null returns the null value.
func Null() Value { return Value{Kind: KindNull} }

// Bool returns a bool value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Int returns a signed integer value.
func Int(n int64) Value { return Value{Kind: KindInt, Int: n} }

// Float returns a float64 value.
func Float(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// String returns a UTF-8 string value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Bytes returns an opaque byte-string value.
func Bytes(b []byte) Value { return Value{Kind: KindBytes, Bytes: b} }

// NewSeq returns a sequence value wrapping elems.
func NewSeq(elems ...Value) Value {
	if elems == nil {
		elems = []Value{}
	}

	return Value{Kind: KindSeq, Seq: elems}
}

// NewMap returns a map value wrapping an empty, ordered Map.
func NewMap() Value {
	return Value{Kind: KindMap, Map: NewOrderedMap()}
}

// NewExt returns an ext value, passed through opaquely.
func NewExt(typ int8, data []byte) Value {
	return Value{Kind: KindExt, Ext: &Ext{Type: typ, Data: data}}
}

// IsContainer reports whether v is a seq or a map.
func (v Value) IsContainer() bool {
	return v.Kind == KindSeq || v.Kind == KindMap
}

// MapEntry is a single (key, value) pair of an ordered Map, preserving
// insertion order on the wire per spec §3.1.
type MapEntry struct {
	Key   string
	Value Value
}

// Map is an ordered association of unique string keys to Values (spec §3.1).
// It pairs an insertion-ordered slice with an index map for O(1) lookup, the
// same parallel-slice-plus-index-map shape the teacher uses for its
// ID/name lookup tables.
type Map struct {
	entries []MapEntry
	index   map[string]int
}

// NewOrderedMap returns an empty, ordered Map.
func NewOrderedMap() *Map {
	return &Map{index: make(map[string]int)}
}

// Set inserts or updates the value for key, preserving first-insertion order.
func (m *Map) Set(key string, v Value) {
	if i, ok := m.index[key]; ok {
		m.entries[i].Value = v
		return
	}

	m.index[key] = len(m.entries)
	m.entries = append(m.entries, MapEntry{Key: key, Value: v})
}

// Get returns the value for key and whether it was present.
func (m *Map) Get(key string) (Value, bool) {
	i, ok := m.index[key]
	if !ok {
		return Value{}, false
	}

	return m.entries[i].Value, true
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.index[key]
	return ok
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.entries)
}

// Entries returns the entries in insertion order. The returned slice must
// not be mutated by the caller.
func (m *Map) Entries() []MapEntry {
	return m.entries
}

// Equal reports whether two Values are deeply, structurally equal.
// Map key order is not significant for equality per spec §3.1.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		// int/float cross-kind equality is intentionally not supported:
		// the wire format distinguishes them and so does this comparison.
		return false
	}

	switch a.Kind {
	case KindNull:
		return true
	case KindBool:
		return a.Bool == b.Bool
	case KindInt:
		return a.Int == b.Int
	case KindFloat:
		return a.Float == b.Float
	case KindString:
		return a.Str == b.Str
	case KindBytes:
		return bytesEqual(a.Bytes, b.Bytes)
	case KindSeq:
		return seqEqual(a.Seq, b.Seq)
	case KindMap:
		return mapEqual(a.Map, b.Map)
	case KindExt:
		return a.Ext.Type == b.Ext.Type && bytesEqual(a.Ext.Data, b.Ext.Data)
	default:
		return false
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func seqEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}

	return true
}

func mapEqual(a, b *Map) bool {
	if a == nil || b == nil {
		return a == b
	}

	if a.Len() != b.Len() {
		return false
	}

	for _, e := range a.entries {
		bv, ok := b.Get(e.Key)
		if !ok || !Equal(e.Value, bv) {
			return false
		}
	}

	return true
}

// String implements fmt.Stringer for debugging; it is not the wire format.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindString:
		return fmt.Sprintf("%q", v.Str)
	case KindBytes:
		return fmt.Sprintf("bytes(%d)", len(v.Bytes))
	case KindSeq:
		return fmt.Sprintf("seq(%d)", len(v.Seq))
	case KindMap:
		return fmt.Sprintf("map(%d)", v.Map.Len())
	case KindExt:
		return fmt.Sprintf("ext(%d,%d)", v.Ext.Type, len(v.Ext.Data))
	default:
		return "invalid"
	}
}
