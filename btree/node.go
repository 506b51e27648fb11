// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

package btree

import (
	"encoding/binary"

	"github.com/dacapoday/sqlet/row"
)

// Node is a tree page.
// Use IsLeaf to distinguish internal and leaf pages, then call the respective
// methods (Leaf or Internal prefix). Incorrect calls are undefined behavior.
type Node []byte

// Node use LittleEndian encoding
// CommonHeader is {byte[0]:Type, byte[1]:IsRoot, byte[2:4]:reserved}
// LeafNode is {CommonHeader, byte[4:8]:NumCells, byte[8:12]:NextLeaf, LeafCell...}
// LeafCell is {byte[0:4]:Key, byte[4:295]:Row}
// InternalNode is {CommonHeader, byte[4:8]:NumKeys, byte[8:12]:RightChild, InternalCell...}
// InternalCell is {byte[0:4]:Child, byte[4:8]:Key}

const (
	TypeInternal byte = 0
	TypeLeaf     byte = 1
)

const (
	NodeTypeOffset       = 0
	IsRootOffset         = 1
	CommonNodeHeaderSize = 4

	LeafNumCellsOffset = CommonNodeHeaderSize
	LeafNextLeafOffset = LeafNumCellsOffset + 4
	LeafNodeHeaderSize = LeafNextLeafOffset + 4

	LeafKeySize   = 4
	LeafValueSize = row.Size
	LeafCellSize  = LeafKeySize + LeafValueSize

	InternalNumKeysOffset    = CommonNodeHeaderSize
	InternalRightChildOffset = InternalNumKeysOffset + 4
	InternalNodeHeaderSize   = InternalRightChildOffset + 4

	InternalChildSize = 4
	InternalKeySize   = 4
	InternalCellSize  = InternalChildSize + InternalKeySize
)

// LeafSpaceForCells returns the bytes available to cells in a leaf page.
func LeafSpaceForCells(pageSize int) int {
	return pageSize - LeafNodeHeaderSize
}

// LeafMaxCells returns how many cells fit in a leaf page.
func LeafMaxCells(pageSize int) int {
	return LeafSpaceForCells(pageSize) / LeafCellSize
}

// InternalMaxKeys returns how many keys fit in an internal page.
func InternalMaxKeys(pageSize int) int {
	return (pageSize - InternalNodeHeaderSize) / InternalCellSize
}

func (node Node) Type() byte {
	return node[NodeTypeOffset]
}

func (node Node) IsLeaf() bool {
	return node[NodeTypeOffset] == TypeLeaf
}

func (node Node) IsRoot() bool {
	return node[IsRootOffset] != 0
}

func (node Node) setRoot(root bool) {
	if root {
		node[IsRootOffset] = 1
	} else {
		node[IsRootOffset] = 0
	}
}

func (node Node) initLeaf() {
	clear(node)
	node[NodeTypeOffset] = TypeLeaf
}

func (node Node) initInternal() {
	clear(node)
	node[NodeTypeOffset] = TypeInternal
}

// LeafNumCells returns the number of cells in a leaf page.
func (node Node) LeafNumCells() int {
	return int(binary.LittleEndian.Uint32(node[LeafNumCellsOffset:]))
}

func (node Node) setLeafNumCells(n int) {
	binary.LittleEndian.PutUint32(node[LeafNumCellsOffset:], uint32(n))
}

// NextLeaf returns the right sibling of a leaf page, or 0 for the rightmost leaf.
func (node Node) NextLeaf() PageNo {
	return binary.LittleEndian.Uint32(node[LeafNextLeafOffset:])
}

func (node Node) setNextLeaf(n PageNo) {
	binary.LittleEndian.PutUint32(node[LeafNextLeafOffset:], n)
}

func (node Node) leafCell(i int) []byte {
	offset := LeafNodeHeaderSize + i*LeafCellSize
	return node[offset : offset+LeafCellSize]
}

func (node Node) LeafKey(i int) uint32 {
	return binary.LittleEndian.Uint32(node.leafCell(i))
}

// LeafValue returns the encoded row of cell i. The slice aliases the page.
func (node Node) LeafValue(i int) []byte {
	return node.leafCell(i)[LeafKeySize:]
}

func (node Node) setLeafCell(i int, key uint32, value []byte) {
	cell := node.leafCell(i)
	binary.LittleEndian.PutUint32(cell, key)
	copy(cell[LeafKeySize:], value)
}

// leafInsert shifts cells [i, n) right by one and writes the new cell at i.
func (node Node) leafInsert(i int, key uint32, value []byte) {
	n := node.LeafNumCells()
	if i < n {
		beg := LeafNodeHeaderSize + i*LeafCellSize
		end := LeafNodeHeaderSize + n*LeafCellSize
		copy(node[beg+LeafCellSize:end+LeafCellSize], node[beg:end])
	}
	node.setLeafCell(i, key, value)
	node.setLeafNumCells(n + 1)
}

// leafSearch returns the position of key, or where it would be inserted.
func (node Node) leafSearch(key uint32) (int, bool) {
	return find(node.LeafNumCells(), func(i int) int {
		return compare(key, node.LeafKey(i))
	})
}

// InternalNumKeys returns the number of keys in an internal page.
// The page has one more child than keys.
func (node Node) InternalNumKeys() int {
	return int(binary.LittleEndian.Uint32(node[InternalNumKeysOffset:]))
}

func (node Node) setInternalNumKeys(n int) {
	binary.LittleEndian.PutUint32(node[InternalNumKeysOffset:], uint32(n))
}

func (node Node) RightChild() PageNo {
	return binary.LittleEndian.Uint32(node[InternalRightChildOffset:])
}

func (node Node) setRightChild(n PageNo) {
	binary.LittleEndian.PutUint32(node[InternalRightChildOffset:], n)
}

func (node Node) internalCell(i int) []byte {
	offset := InternalNodeHeaderSize + i*InternalCellSize
	return node[offset : offset+InternalCellSize]
}

// InternalChild returns child i; i == InternalNumKeys() is the right child.
func (node Node) InternalChild(i int) PageNo {
	if i == node.InternalNumKeys() {
		return node.RightChild()
	}
	return binary.LittleEndian.Uint32(node.internalCell(i))
}

func (node Node) setInternalChild(i int, n PageNo) {
	if i == node.InternalNumKeys() {
		node.setRightChild(n)
		return
	}
	binary.LittleEndian.PutUint32(node.internalCell(i), n)
}

func (node Node) InternalKey(i int) uint32 {
	return binary.LittleEndian.Uint32(node.internalCell(i)[InternalChildSize:])
}

func (node Node) setInternalCell(i int, child PageNo, key uint32) {
	cell := node.internalCell(i)
	binary.LittleEndian.PutUint32(cell, child)
	binary.LittleEndian.PutUint32(cell[InternalChildSize:], key)
}

// internalSearch returns the index of the child that covers key: the first
// separator greater than or equal to key, or the right child.
func (node Node) internalSearch(key uint32) int {
	return search(node.InternalNumKeys(), func(i int) int {
		return compare(key, node.InternalKey(i))
	})
}

// internalInsert records that child i split into itself and right, with
// separator as the largest key remaining in child i.
func (node Node) internalInsert(i int, separator uint32, right PageNo) {
	n := node.InternalNumKeys()
	left := node.InternalChild(i)
	if i < n {
		beg := InternalNodeHeaderSize + i*InternalCellSize
		end := InternalNodeHeaderSize + n*InternalCellSize
		copy(node[beg+InternalCellSize:end+InternalCellSize], node[beg:end])
	}
	node.setInternalCell(i, left, separator)
	node.setInternalNumKeys(n + 1)
	node.setInternalChild(i+1, right)
}

func compare(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func search(n int, f func(int) int) int {
	i, j := 0, n
	for i < j {
		h := int(uint(i+j) >> 1)
		if f(h) > 0 {
			i = h + 1
		} else {
			j = h
		}
	}
	return i
}

func find(n int, f func(int) int) (int, bool) {
	i := search(n, f)
	return i, i < n && f(i) == 0
}
