package toc

import "fmt"

// Check walks n and reports the first violation of the structural
// invariants from spec §3.2:
//
//	I1 containment:  every child's [Start,End) lies inside its parent's.
//	I2 ordering:     siblings are strictly ordered and non-overlapping.
//	I4 key uniqueness: a Keyed node's keys are unique.
//	I7 grouped monotonicity: grouped blocks are ordered and non-overlapping.
//
// I3 (faithful decode), I5 (root coverage), and I6 (idempotence) are
// properties of the packer/reader pair as a whole and are exercised by
// round-trip tests rather than by walking a single Node in isolation.
func Check(n *Node) error {
	return check(n, nil)
}

func check(n, parent *Node) error {
	if n == nil {
		return fmt.Errorf("toc: nil node")
	}

	if n.End < n.Start {
		return fmt.Errorf("toc: node [%d,%d) has end before start", n.Start, n.End)
	}

	if parent != nil && (n.Start < parent.Start || n.End > parent.End) {
		return fmt.Errorf("toc: node [%d,%d) is not contained in parent [%d,%d)",
			n.Start, n.End, parent.Start, parent.End)
	}

	switch n.Variant {
	case VariantKeyed:
		seen := make(map[string]struct{}, len(n.Keyed))
		var prevEnd uint64
		for i, kc := range n.Keyed {
			if _, dup := seen[kc.Key]; dup {
				return fmt.Errorf("toc: duplicate key %q in keyed node", kc.Key)
			}
			seen[kc.Key] = struct{}{}

			if i > 0 && kc.Child.Start < prevEnd {
				return fmt.Errorf("toc: keyed children overlap or are out of order at %q", kc.Key)
			}
			prevEnd = kc.Child.End

			if err := check(kc.Child, n); err != nil {
				return err
			}
		}
	case VariantPositional:
		var prevEnd uint64
		for i, c := range n.Positional {
			if i > 0 && c.Start < prevEnd {
				return fmt.Errorf("toc: positional children overlap or are out of order at index %d", i)
			}
			prevEnd = c.End

			if err := check(c, n); err != nil {
				return err
			}
		}
	case VariantGrouped:
		var prevEnd uint64
		for i, g := range n.Grouped {
			if g.End < g.Start {
				return fmt.Errorf("toc: grouped block %d has end before start", i)
			}
			if g.Start < parentStart(n) || g.End > n.End {
				return fmt.Errorf("toc: grouped block %d escapes its node's range", i)
			}
			if i > 0 && g.Start < prevEnd {
				return fmt.Errorf("toc: grouped blocks overlap or are out of order at block %d", i)
			}
			prevEnd = g.End
		}
	case VariantNone:
	}

	return nil
}

func parentStart(n *Node) uint64 { return n.Start }
