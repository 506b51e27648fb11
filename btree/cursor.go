package btree

import (
	"fmt"
	"iter"

	"github.com/dacapoday/sqlet/iterator"
)

// Cursor walks leaf cells in key order, following sibling links.
// It is not synchronized with inserts: reposition it after modifying the tree.
type Cursor struct {
	tree  *Tree
	leaf  Node
	page  PageNo
	index int
	err   error
}

var _ iterator.Iterator[uint32, []byte] = (*Cursor)(nil)

// Cursor returns an unpositioned cursor. Call SeekFirst or Seek before use.
func (tree *Tree) Cursor() *Cursor {
	return &Cursor{tree: tree}
}

func (c *Cursor) Valid() bool {
	return c.leaf != nil
}

func (c *Cursor) Error() error {
	return c.err
}

func (c *Cursor) Key() uint32 {
	return c.leaf.LeafKey(c.index)
}

// Val returns the encoded row at the cursor. The slice aliases the page.
func (c *Cursor) Val() []byte {
	return c.leaf.LeafValue(c.index)
}

// SeekFirst positions the cursor at the smallest key.
func (c *Cursor) SeekFirst() bool {
	c.reset()
	page := c.tree.root
	for range maxHeight {
		node, err := c.tree.node(page)
		if err != nil {
			return c.fail(err)
		}
		if node.IsLeaf() {
			c.leaf, c.page, c.index = node, page, 0
			return c.settle()
		}
		page = node.InternalChild(0)
	}
	return c.fail(fmt.Errorf("tree deeper than %d: %w", maxHeight, ErrCorrupt))
}

// Seek positions the cursor at the first key greater than or equal to key.
func (c *Cursor) Seek(key uint32) bool {
	c.reset()
	_, page, node, err := c.tree.descend(key)
	if err != nil {
		return c.fail(err)
	}
	c.index, _ = node.leafSearch(key)
	c.leaf, c.page = node, page
	return c.settle()
}

// Next advances to the following key.
func (c *Cursor) Next() bool {
	if c.leaf == nil {
		return false
	}
	c.index++
	return c.settle()
}

// settle moves past the end of exhausted leaves.
func (c *Cursor) settle() bool {
	for c.index >= c.leaf.LeafNumCells() {
		next := c.leaf.NextLeaf()
		if next == 0 {
			c.leaf = nil
			return false
		}
		node, err := c.tree.node(next)
		if err != nil {
			return c.fail(err)
		}
		if !node.IsLeaf() {
			return c.fail(fmt.Errorf("sibling %d of leaf %d is not a leaf: %w", next, c.page, ErrCorrupt))
		}
		c.leaf, c.page, c.index = node, next, 0
	}
	return true
}

func (c *Cursor) reset() {
	c.leaf, c.page, c.index, c.err = nil, 0, 0, nil
}

func (c *Cursor) fail(err error) bool {
	c.leaf = nil
	c.err = err
	return false
}

// Rows returns a restartable sequence over all keys and encoded rows in
// ascending order. Each iteration starts again from the leftmost leaf.
// A read failure ends the sequence early; use a Cursor to observe it.
func (tree *Tree) Rows() iter.Seq2[uint32, []byte] {
	return iterator.All[uint32, []byte](tree.Cursor())
}
