package btree

import (
	"go.uber.org/zap"
)

// splitLeaf inserts the cell at i into the full leaf by moving the upper half
// of the cells to a new right sibling, then records the split in the parent.
// It cannot fail: every page it touches is resident and fresh holds the pages
// the whole chain needs.
func (tree *Tree) splitLeaf(path []step, leftNo PageNo, left Node, i int, key uint32, value []byte, fresh []PageNo) {
	rightNo, fresh := fresh[0], fresh[1:]
	right := tree.resident(rightNo)
	right.initLeaf()
	right.setNextLeaf(left.NextLeaf())
	left.setNextLeaf(rightNo)

	total := tree.leafMax + 1
	rightCount := total / 2
	leftCount := total - rightCount

	// walk down so cells shifting within left are read before overwritten
	for index := tree.leafMax; index >= 0; index-- {
		dst := left
		at := index
		if index >= leftCount {
			dst = right
			at = index - leftCount
		}
		switch {
		case index == i:
			dst.setLeafCell(at, key, value)
		case index > i:
			copy(dst.leafCell(at), left.leafCell(index-1))
		default:
			copy(dst.leafCell(at), left.leafCell(index))
		}
	}
	left.setLeafNumCells(leftCount)
	right.setLeafNumCells(rightCount)
	tree.pager.MarkDirty(leftNo)
	tree.pager.MarkDirty(rightNo)

	separator := left.LeafKey(leftCount - 1)
	tree.log.Debug("leaf split",
		zap.Uint32("left", leftNo),
		zap.Uint32("right", rightNo),
		zap.Uint32("separator", separator),
	)
	tree.insertParent(path, leftNo, separator, rightNo, fresh)
}

// insertParent adds right as the sibling after left in the parent at the top
// of path, splitting internal pages upward as long as they are full.
func (tree *Tree) insertParent(path []step, leftNo PageNo, separator uint32, rightNo PageNo, fresh []PageNo) {
	for len(path) > 0 {
		parent := path[len(path)-1]
		path = path[:len(path)-1]

		if parent.node.InternalNumKeys() < tree.internalMax {
			parent.node.internalInsert(parent.index, separator, rightNo)
			tree.pager.MarkDirty(parent.page)
			return
		}

		var newNo PageNo
		newNo, fresh = fresh[0], fresh[1:]
		separator = tree.splitInternal(parent, separator, rightNo, newNo)
		leftNo, rightNo = parent.page, newNo
	}
	tree.growRoot(leftNo, separator, rightNo, fresh[0])
}

// splitInternal inserts (separator, right) after child parent.index into the
// full internal page, keeps the lower half in place, moves the upper half to
// page newNo and returns the promoted key.
func (tree *Tree) splitInternal(parent step, separator uint32, right PageNo, newNo PageNo) (promoted uint32) {
	node := parent.node
	n := node.InternalNumKeys()

	keys := make([]uint32, 0, n+1)
	children := make([]PageNo, 0, n+2)
	for j := 0; j < n; j++ {
		keys = append(keys, node.InternalKey(j))
		children = append(children, node.InternalChild(j))
	}
	children = append(children, node.RightChild())

	keys = insertAt(keys, parent.index, separator)
	children = insertAt(children, parent.index+1, right)

	k := len(keys)
	mid := k / 2
	promoted = keys[mid]

	node.initInternal()
	for j := 0; j < mid; j++ {
		node.setInternalCell(j, children[j], keys[j])
	}
	node.setInternalNumKeys(mid)
	node.setRightChild(children[mid])

	sibling := tree.resident(newNo)
	sibling.initInternal()
	for j := mid + 1; j < k; j++ {
		sibling.setInternalCell(j-mid-1, children[j], keys[j])
	}
	sibling.setInternalNumKeys(k - mid - 1)
	sibling.setRightChild(children[k])

	tree.pager.MarkDirty(parent.page)
	tree.pager.MarkDirty(newNo)
	tree.log.Debug("internal split",
		zap.Uint32("left", parent.page),
		zap.Uint32("right", newNo),
		zap.Uint32("promoted", promoted),
	)
	return
}

// growRoot puts a new root above the split root. The old root page keeps the
// left half, so the tree height grows by one.
func (tree *Tree) growRoot(leftNo PageNo, separator uint32, rightNo PageNo, rootNo PageNo) {
	tree.resident(leftNo).setRoot(false)
	tree.resident(rightNo).setRoot(false)

	root := tree.resident(rootNo)
	root.initInternal()
	root.setRoot(true)
	root.setInternalCell(0, leftNo, separator)
	root.setInternalNumKeys(1)
	root.setRightChild(rightNo)

	tree.pager.MarkDirty(leftNo)
	tree.pager.MarkDirty(rightNo)
	tree.pager.MarkDirty(rootNo)
	tree.root = rootNo
	tree.log.Debug("root split", zap.Uint32("root", rootNo))
}

func insertAt[T any](s []T, i int, v T) []T {
	var zero T
	s = append(s, zero)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
