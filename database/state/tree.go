// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package state

import (
	"github.com/Fantom-foundation/statesync/common"
	"github.com/Fantom-foundation/statesync/database/mpt"
	"github.com/Fantom-foundation/statesync/database/sync"
)

// noBlock marks a node that has never been certified for any block.
const noBlock = -1

// node is the summary of a prefix-addressed subtree. Slot i describes the
// subtree of the prefix extended by nibble i. At the bottom level, a slot
// summarizes the leaves under the corresponding full-depth prefix.
type node struct {
	// the block the content of this node was certified for, noBlock if unknown
	block int32
	// slots without any leaves below them
	empty mpt.Bitset16
	// digests of non-empty slots
	hash [16]common.Hash
	// slots whose local data is complete and consistent with the node
	synced mpt.Bitset16
}

func newNode() node {
	return node{block: noBlock, empty: mpt.AllSet}
}

func (n *node) proof() sync.Proof {
	return sync.Proof{Empty: n.empty, Hash: n.hash}
}

func (n *node) digest() common.Hash {
	return mpt.BranchNodeHash(n.empty, &n.hash)
}

// slotDigest is the digest claimed for the subtree of the given slot.
func (n *node) slotDigest(nibble mpt.Nibble) common.Hash {
	if n.empty.Get(nibble) {
		return common.EmptyStringHash
	}
	return n.hash[nibble]
}

// setSlot records the summary of a child subtree.
func (n *node) setSlot(nibble mpt.Nibble, child *node) {
	if child.empty.All() {
		n.empty.Set(nibble, true)
		n.hash[nibble] = common.Hash{}
		return
	}
	n.empty.Set(nibble, false)
	n.hash[nibble] = child.digest()
}

// nibbleObsolete checks whether replacing the node's slot by the given
// summary changes its content.
func (n *node) nibbleObsolete(nibble mpt.Nibble, empty bool, hash common.Hash) bool {
	return slotChanged(n.empty, &n.hash, nibble, empty, hash)
}

func slotChanged(empties mpt.Bitset16, hashes *[16]common.Hash, nibble mpt.Nibble, empty bool, hash common.Hash) bool {
	if empties.Get(nibble) != empty {
		return true
	}
	return !empty && hashes[nibble] != hash
}

// tree is the array of all nodes of a state, level by level. Level l holds
// 16^l nodes, addressed by the value of the leading l nibbles of a prefix.
type tree [][]node

func newTree(depth int) tree {
	res := make(tree, depth)
	for level := range res {
		res[level] = make([]node, 1<<(4*level))
	}
	res.reset()
	return res
}

func (t tree) reset() {
	for _, level := range t {
		for i := range level {
			level[i] = newNode()
		}
	}
}

// at returns the node at the given level on the path of the prefix.
func (t tree) at(level int, prefix mpt.Prefix) *node {
	return &t[level][prefix.Index(level)]
}

func (t tree) root() *node {
	return &t[0][0]
}

// consistentDepth returns the number of leading levels on the path of the
// prefix whose nodes are certified for the block of the root, at most levels.
func (t tree) consistentDepth(prefix mpt.Prefix, levels int) int {
	block := t.root().block
	for level := 0; level < levels; level++ {
		if b := t.at(level, prefix).block; b == noBlock || b != block {
			return level
		}
	}
	return levels
}

// consistentPathDepth is the consistent depth of the levels above the prefix.
// It equals the prefix size if the slot addressed by the prefix is certified
// for the block of the root.
func (t tree) consistentPathDepth(prefix mpt.Prefix) int {
	return t.consistentDepth(prefix, prefix.Size())
}

// updateBlockAt tries to align the block of the node at index in the given
// level with its parent. Nodes whose content is confirmed by the parent's
// slot adopt the parent's block. The result reports whether both blocks
// match afterwards.
func (t tree) updateBlockAt(level int, index uint64) bool {
	child := &t[level][index]
	parent := &t[level-1][index>>4]
	if child.block == parent.block {
		return true
	}
	if child.block == noBlock || parent.block == noBlock {
		return false
	}
	nibble := mpt.Nibble(index & 0xF)
	if parent.nibbleObsolete(nibble, child.empty.All(), child.digest()) {
		return false
	}
	child.block = parent.block
	return true
}

// updateBlocksDownPath aligns the blocks of the nodes on the path of the
// prefix from the root downwards, stopping at the first mismatch.
func (t tree) updateBlocksDownPath(prefix mpt.Prefix) {
	for level := 1; level < min(prefix.Size(), len(t)); level++ {
		if !t.updateBlockAt(level, prefix.Index(level)) {
			return
		}
	}
}

// propagateSynced recomputes the synced flags of the ancestors of the node at
// the given level on the path of the prefix. A slot is synced iff all slots of
// the node below it are synced.
func (t tree) propagateSynced(prefix mpt.Prefix, level int) {
	for ; level >= 1; level-- {
		child := t.at(level, prefix)
		t.at(level-1, prefix).synced.Set(prefix.Nibble(level-1), child.synced.All())
	}
}
