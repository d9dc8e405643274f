// Package huffman builds a frequency-driven prefix-code tree over a
// 257-symbol alphabet (the 256 byte values plus a synthetic end-of-stream
// symbol), derives a code table from it by tree walk, and uses both to
// encode and decode a byte stream through the bitio layer.
package huffman

// eofSymbol is the synthetic symbol whose emission terminates decoding
// without relying on the underlying stream's physical EOF.
const eofSymbol = 256

// numLeaves is the alphabet size: one leaf per byte value (256) plus the
// end-of-stream leaf. 256+1 = 257, matching both the ranges array size used
// by the arithmetic coder and NUM_CHARS in the originating C headers; read
// it as the authoritative count over the "258" figure that appears once in
// the tree-construction prose.
const numLeaves = eofSymbol + 1

// compositeValue marks a tree node created by merging two lower-priority
// nodes rather than standing for a real symbol.
const compositeValue = -1

// node is a Huffman tree node: a leaf carries a real symbol value, a
// composite node carries compositeValue and has both children set.
type node struct {
	value  int
	count  uint32
	ignore bool
	level  int

	left, right, parent *node
}

func (n *node) isLeaf() bool {
	return n.value != compositeValue
}

// buildTree constructs the Huffman tree for the given per-byte-value
// frequencies. counts[v] is the number of occurrences of byte value v; the
// end-of-stream leaf is always seeded with count 1 so it always has exactly
// one code, regardless of how many bytes were actually read.
func buildTree(counts [256]uint32) *node {
	leaves := make([]*node, numLeaves)

	for v := 0; v < 256; v++ {
		leaves[v] = &node{value: v, count: counts[v], ignore: counts[v] == 0}
	}

	leaves[eofSymbol] = &node{value: eofSymbol, count: 1, ignore: false}

	return mergeTree(leaves)
}

// mergeTree repeatedly extracts the two lowest-priority un-ignored nodes
// and merges them into a composite node, until a single root remains. The
// priority order is count ascending, tied broken by level ascending
// (shallower subtree wins) — this tie-break is what makes two encoders
// presented with identical histograms build identical trees.
func mergeTree(live []*node) *node {
	nodes := append([]*node(nil), live...)
	var root *node

	for {
		i1 := findMinimum(nodes)
		if i1 == -1 {
			break
		}

		nodes[i1].ignore = true
		root = nodes[i1]

		i2 := findMinimum(nodes)
		if i2 == -1 {
			break
		}

		nodes[i2].ignore = true

		merged := &node{
			value: compositeValue,
			count: nodes[i1].count + nodes[i2].count,
			level: max(nodes[i1].level, nodes[i2].level) + 1,
			left:  nodes[i1],
			right: nodes[i2],
		}

		nodes[i1].parent = merged
		nodes[i2].parent = merged

		nodes[i1] = merged
		nodes[i2] = nil
		root = merged
	}

	return root
}

// findMinimum scans nodes for the lowest-count, then lowest-level, live
// (non-nil, non-ignored) entry, mirroring huflocal.cpp's FindMinimumCount.
func findMinimum(nodes []*node) int {
	best := -1

	for i, n := range nodes {
		if n == nil || n.ignore {
			continue
		}

		if best == -1 {
			best = i
			continue
		}

		if n.count < nodes[best].count {
			best = i
			continue
		}

		if n.count == nodes[best].count && n.level < nodes[best].level {
			best = i
		}
	}

	return best
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
