// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package btree stores fixed-size rows in a B+ tree of pager pages, keyed by
// uint32 and ordered ascending.
//
// Pages carry no parent pointers. Insert keeps the descent path and splits
// bottom-up along it. Every page an insert touches is loaded, and every page a
// split chain needs is reserved, before the first byte changes, so a failed
// insert leaves the tree as it was.
package btree

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dacapoday/sqlet"
)

type PageNo = sqlet.PageNo

var (
	ErrCorrupt      = sqlet.ErrCorrupt
	ErrDuplicateKey = sqlet.ErrDuplicateKey
)

// maxHeight bounds descent on corrupt files with cyclic child pointers.
const maxHeight = 64

// Pager is the page store the tree runs on.
// *pager.Pager satisfies it.
type Pager interface {
	Page(n PageNo) ([]byte, error)
	Allocate() (PageNo, error)
	Reserve(k int) error
	MarkDirty(n PageNo)
	PageSize() int
}

// Tree is a B+ tree rooted at a pager page.
type Tree struct {
	pager       Pager
	log         *zap.Logger
	root        PageNo
	leafMax     int
	internalMax int
}

// Init formats a fresh empty root leaf and returns its page number.
func Init(pager Pager) (root PageNo, err error) {
	if root, err = pager.Allocate(); err != nil {
		return
	}
	page, err := pager.Page(root)
	if err != nil {
		return
	}
	node := Node(page)
	node.initLeaf()
	node.setRoot(true)
	pager.MarkDirty(root)
	return
}

// Load opens the tree rooted at root.
func (tree *Tree) Load(pager Pager, root PageNo, log *zap.Logger) (err error) {
	if log == nil {
		log = zap.NewNop()
	}
	pageSize := pager.PageSize()
	tree.pager = pager
	tree.log = log
	tree.root = root
	tree.leafMax = LeafMaxCells(pageSize)
	tree.internalMax = InternalMaxKeys(pageSize)
	if tree.leafMax < 2 {
		return fmt.Errorf("page size %d holds %d cells: %w", pageSize, tree.leafMax, sqlet.ErrInvalidPageSize)
	}

	node, err := tree.node(root)
	if err != nil {
		return
	}
	if !node.IsRoot() {
		return fmt.Errorf("page %d is not a root: %w", root, ErrCorrupt)
	}
	return
}

// Root returns the page number of the root. It changes when the root splits.
func (tree *Tree) Root() PageNo {
	return tree.root
}

func (tree *Tree) LeafMaxCells() int {
	return tree.leafMax
}

func (tree *Tree) InternalMaxKeys() int {
	return tree.internalMax
}

// node loads page n and checks its header.
func (tree *Tree) node(n PageNo) (node Node, err error) {
	if n == 0 {
		return nil, fmt.Errorf("child pointer to header page: %w", ErrCorrupt)
	}
	page, err := tree.pager.Page(n)
	if err != nil {
		return
	}
	node = Node(page)
	switch node.Type() {
	case TypeLeaf:
		if node.LeafNumCells() > tree.leafMax {
			return nil, fmt.Errorf("leaf %d holds %d cells: %w", n, node.LeafNumCells(), ErrCorrupt)
		}
	case TypeInternal:
		if node.InternalNumKeys() == 0 || node.InternalNumKeys() > tree.internalMax {
			return nil, fmt.Errorf("internal %d holds %d keys: %w", n, node.InternalNumKeys(), ErrCorrupt)
		}
	default:
		return nil, fmt.Errorf("page %d has node type %d: %w", n, node.Type(), ErrCorrupt)
	}
	return
}

// step is one internal page on a descent path and the child taken from it.
type step struct {
	page  PageNo
	node  Node
	index int
}

// descend walks from the root to the leaf that covers key.
func (tree *Tree) descend(key uint32) (path []step, leaf PageNo, node Node, err error) {
	leaf = tree.root
	for range maxHeight {
		if node, err = tree.node(leaf); err != nil {
			return
		}
		if node.IsLeaf() {
			return
		}
		i := node.internalSearch(key)
		path = append(path, step{page: leaf, node: node, index: i})
		leaf = node.InternalChild(i)
	}
	err = fmt.Errorf("tree deeper than %d: %w", maxHeight, ErrCorrupt)
	return
}

// Find returns the encoded row stored under key.
// The slice aliases the page and is valid until the next insert.
func (tree *Tree) Find(key uint32) (value []byte, found bool, err error) {
	_, _, node, err := tree.descend(key)
	if err != nil {
		return
	}
	i, found := node.leafSearch(key)
	if found {
		value = node.LeafValue(i)
	}
	return
}

// Insert adds value under key. value must be LeafValueSize bytes.
// An existing key fails with ErrDuplicateKey and leaves the tree unchanged.
func (tree *Tree) Insert(key uint32, value []byte) (err error) {
	if len(value) != LeafValueSize {
		return fmt.Errorf("value of %d bytes, want %d", len(value), LeafValueSize)
	}

	path, leafNo, leaf, err := tree.descend(key)
	if err != nil {
		return
	}
	i, found := leaf.leafSearch(key)
	if found {
		return fmt.Errorf("key %d: %w", key, ErrDuplicateKey)
	}

	if leaf.LeafNumCells() < tree.leafMax {
		leaf.leafInsert(i, key, value)
		tree.pager.MarkDirty(leafNo)
		return
	}

	// one page for the leaf, one per full ancestor, one more if the root splits
	need := 1
	depth := len(path) - 1
	for ; depth >= 0 && path[depth].node.InternalNumKeys() >= tree.internalMax; depth-- {
		need++
	}
	if depth < 0 {
		need++
	}
	fresh, err := tree.allocate(need)
	if err != nil {
		return
	}

	tree.splitLeaf(path, leafNo, leaf, i, key, value, fresh)
	return
}

// allocate reserves and appends k pages. New pages are resident and zeroed.
func (tree *Tree) allocate(k int) (pages []PageNo, err error) {
	if err = tree.pager.Reserve(k); err != nil {
		return
	}
	pages = make([]PageNo, k)
	for i := range pages {
		if pages[i], err = tree.pager.Allocate(); err != nil {
			return nil, err
		}
	}
	return
}

// resident returns the buffer of a page already in the pager cache.
// Pages on the descent path and pages from allocate qualify.
func (tree *Tree) resident(n PageNo) Node {
	page, err := tree.pager.Page(n)
	if err != nil {
		panic(fmt.Errorf("page %d not resident: %w", n, err))
	}
	return Node(page)
}
