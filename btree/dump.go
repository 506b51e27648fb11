package btree

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes the tree as an indented outline, two spaces per level:
//
//	- internal (size 1)
//	  - leaf (size 7)
//	    - 1
//	    ...
//	  - key 7
//	  - leaf (size 7)
//	    ...
func (tree *Tree) Dump(w io.Writer) error {
	return tree.dump(w, tree.root, 0)
}

func (tree *Tree) dump(w io.Writer, page PageNo, level int) (err error) {
	if level >= maxHeight {
		return fmt.Errorf("tree deeper than %d: %w", maxHeight, ErrCorrupt)
	}
	node, err := tree.node(page)
	if err != nil {
		return
	}
	indent := strings.Repeat("  ", level)

	if node.IsLeaf() {
		n := node.LeafNumCells()
		if _, err = fmt.Fprintf(w, "%s- leaf (size %d)\n", indent, n); err != nil {
			return
		}
		for i := range n {
			if _, err = fmt.Fprintf(w, "%s  - %d\n", indent, node.LeafKey(i)); err != nil {
				return
			}
		}
		return
	}

	n := node.InternalNumKeys()
	if _, err = fmt.Fprintf(w, "%s- internal (size %d)\n", indent, n); err != nil {
		return
	}
	for i := range n {
		if err = tree.dump(w, node.InternalChild(i), level+1); err != nil {
			return
		}
		if _, err = fmt.Fprintf(w, "%s  - key %d\n", indent, node.InternalKey(i)); err != nil {
			return
		}
	}
	return tree.dump(w, node.RightChild(), level+1)
}

// Height returns the number of levels; a lone root leaf has height 1.
func (tree *Tree) Height() (height int, err error) {
	page := tree.root
	for height = 1; height <= maxHeight; height++ {
		node, err := tree.node(page)
		if err != nil {
			return 0, err
		}
		if node.IsLeaf() {
			return height, nil
		}
		page = node.InternalChild(0)
	}
	return 0, fmt.Errorf("tree deeper than %d: %w", maxHeight, ErrCorrupt)
}

// Check verifies the tree structure and returns the number of keys:
// keys ascend within and across leaves, every key lies within the bounds
// set by its ancestors' separators, all leaves share one depth, only the
// root carries the root flag, and the sibling chain visits the leaves in
// order and ends at zero.
func (tree *Tree) Check() (count int, err error) {
	c := checker{tree: tree, depth: -1}
	if err = c.walk(tree.root, 0, 0, false, 0, false); err != nil {
		return
	}
	for i, page := range c.leaves {
		node, _ := tree.node(page)
		want := PageNo(0)
		if i+1 < len(c.leaves) {
			want = c.leaves[i+1]
		}
		if node.NextLeaf() != want {
			return 0, fmt.Errorf("leaf %d links to %d, want %d: %w", page, node.NextLeaf(), want, ErrCorrupt)
		}
	}
	return c.count, nil
}

type checker struct {
	tree   *Tree
	leaves []PageNo
	seen   map[PageNo]bool
	depth  int
	count  int
	last   uint32
}

// walk checks the subtree at page holding keys in (lo, hi].
func (c *checker) walk(page PageNo, level int, lo uint32, hasLo bool, hi uint32, hasHi bool) (err error) {
	if c.seen == nil {
		c.seen = make(map[PageNo]bool)
	}
	if c.seen[page] {
		return fmt.Errorf("page %d reached twice: %w", page, ErrCorrupt)
	}
	c.seen[page] = true

	node, err := c.tree.node(page)
	if err != nil {
		return
	}
	if node.IsRoot() != (level == 0) {
		return fmt.Errorf("page %d at level %d has root flag %v: %w", page, level, node.IsRoot(), ErrCorrupt)
	}

	inBounds := func(key uint32) bool {
		return (!hasLo || key > lo) && (!hasHi || key <= hi)
	}

	if node.IsLeaf() {
		if c.depth < 0 {
			c.depth = level
		} else if c.depth != level {
			return fmt.Errorf("leaf %d at depth %d, want %d: %w", page, level, c.depth, ErrCorrupt)
		}
		if level > 0 && node.LeafNumCells() == 0 {
			return fmt.Errorf("empty leaf %d: %w", page, ErrCorrupt)
		}
		for i := range node.LeafNumCells() {
			key := node.LeafKey(i)
			if c.count > 0 && key <= c.last {
				return fmt.Errorf("leaf %d key %d after %d: %w", page, key, c.last, ErrCorrupt)
			}
			if !inBounds(key) {
				return fmt.Errorf("leaf %d key %d outside separators: %w", page, key, ErrCorrupt)
			}
			c.last = key
			c.count++
		}
		c.leaves = append(c.leaves, page)
		return
	}

	n := node.InternalNumKeys()
	for i := range n {
		key := node.InternalKey(i)
		if !inBounds(key) || (i > 0 && key <= node.InternalKey(i-1)) {
			return fmt.Errorf("internal %d separator %d out of order: %w", page, key, ErrCorrupt)
		}
	}
	for i := 0; i <= n; i++ {
		childLo, childHasLo := lo, hasLo
		if i > 0 {
			childLo, childHasLo = node.InternalKey(i-1), true
		}
		childHi, childHasHi := hi, hasHi
		if i < n {
			childHi, childHasHi = node.InternalKey(i), true
		}
		if err = c.walk(node.InternalChild(i), level+1, childLo, childHasLo, childHi, childHasHi); err != nil {
			return
		}
	}
	return
}
