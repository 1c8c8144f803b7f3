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
	"bytes"
	"errors"
	"fmt"

	"github.com/Fantom-foundation/statesync/backend/bucket"
	"github.com/Fantom-foundation/statesync/common"
	"github.com/Fantom-foundation/statesync/database/mpt"
	"github.com/Fantom-foundation/statesync/database/sync"
)

const errTooManyLeaves = common.ConstError("too many leaves")

// GetLeaves serves a leaves request. Requests for prefixes outside of
// [1, depth] nibbles are rejected with sync.ErrUnsupportedRequest. If the
// requested slot is not certified for the root's block, or only for a block
// older than requested, a reply with StatusDontHaveData is produced.
func (s *State) GetLeaves(request *sync.GetLeavesRequest) (sync.LeavesReply, error) {
	prefix := request.Prefix
	size := prefix.Size()
	if request.Account != nil || size < 1 || size > s.depth {
		return sync.LeavesReply{}, fmt.Errorf("%w: leaves of prefix %v", sync.ErrUnsupportedRequest, prefix)
	}
	dontHave := sync.LeavesReply{Status: sync.StatusDontHaveData}
	if s.tree.consistentPathDepth(prefix) != size {
		return dontHave, nil
	}
	n := s.tree.at(size-1, prefix)
	nibble := prefix.Last()
	if !n.synced.Get(nibble) {
		return dontHave, nil
	}
	block := uint32(n.block)
	if request.BlockNumber != nil && *request.BlockNumber > block {
		return dontHave, nil
	}

	from := 0
	if request.BlockNumber != nil && *request.BlockNumber == block {
		from = min(int(request.FromLevel), size)
	}
	reply := sync.LeavesReply{
		Status:      sync.StatusOK,
		BlockNumber: block,
		Proof:       make([]sync.Proof, 0, size-from),
	}
	for level := from; level < size; level++ {
		reply.Proof = append(reply.Proof, s.tree.at(level, prefix).proof())
	}
	if request.HashOfLeaves != nil && *request.HashOfLeaves == n.slotDigest(nibble) {
		return reply, nil
	}

	limit := -1
	if size < s.depth {
		limit = s.maxLeavesPerReply
	}
	leaves := []sync.Leaf{}
	err := mpt.IterateLeaves(s.db, prefix, func(key common.Hash, val []byte) error {
		if limit >= 0 && len(leaves) >= limit {
			return errTooManyLeaves
		}
		leaves = append(leaves, sync.Leaf{Key: key, Value: bytes.Clone(val)})
		return nil
	})
	if errors.Is(err, errTooManyLeaves) {
		reply.Status = sync.StatusTooManyLeaves
		return reply, nil
	}
	if err != nil {
		return sync.LeavesReply{}, fmt.Errorf("failed to collect leaves of %v; %w", prefix, err)
	}
	reply.Leaves = leaves
	reply.HasLeaves = true
	return reply, nil
}

// ProcessLeavesReply integrates the reply to a leaves request for the given
// prefix. Replies not providing data and replies older than the local root
// are ignored.
func (s *State) ProcessLeavesReply(prefix mpt.Prefix, reply *sync.LeavesReply) error {
	size := prefix.Size()
	if size < 1 || size > s.depth {
		return fmt.Errorf("%w: leaves of prefix %v", sync.ErrUnsupportedRequest, prefix)
	}
	if reply.Status == sync.StatusDontHaveData {
		return nil
	}
	if len(reply.Proof) > size {
		return fmt.Errorf("%w: proof of %d levels for prefix %v", sync.ErrReplyShapeMismatch, len(reply.Proof), prefix)
	}
	if int64(reply.BlockNumber) < int64(s.tree.root().block) {
		return nil
	}
	if err := s.verifier.VerifyLeaves(prefix, reply); err != nil {
		return err
	}

	// The leaves are checked before anything is modified.
	nibble := prefix.Last()
	var subtree [][]node
	if reply.Status == sync.StatusOK && reply.HasLeaves {
		var err error
		if subtree, err = s.buildSubtree(prefix, reply.Leaves); err != nil {
			return err
		}
		parent := s.tree.at(size-1, prefix)
		expected, known := parent.proof(), parent.block == int32(reply.BlockNumber)
		if len(reply.Proof) > 0 {
			expected, known = reply.Proof[len(reply.Proof)-1], true
		}
		empty, hash := s.subtreeSummary(prefix, subtree)
		if known && slotChanged(expected.Empty, &expected.Hash, nibble, empty, hash) {
			return fmt.Errorf("%w: prefix %v at block %d", sync.ErrInconsistentReply, prefix, reply.BlockNumber)
		}
	}

	from := size - len(reply.Proof)
	for i := range reply.Proof {
		level := from + i
		if int64(reply.BlockNumber) > int64(s.tree.at(level, prefix).block) {
			if err := s.overwrite(level, prefix, &reply.Proof[i], reply.BlockNumber); err != nil {
				return err
			}
		}
	}

	// Without a path certified for the reply's block, the proof can not
	// vouch for the leaves.
	if s.tree.root().block != int32(reply.BlockNumber) || s.tree.consistentPathDepth(prefix) != size {
		s.tree.propagateSynced(prefix, size-1)
		return nil
	}

	n := s.tree.at(size-1, prefix)
	switch {
	case reply.Status == sync.StatusTooManyLeaves:
		// only the proof is usable
	case !reply.HasLeaves:
		// the local leaves are confirmed by the digest
		if size < s.depth && n.synced.Get(nibble) {
			s.setSubtreeBlock(prefix, reply.BlockNumber)
		}
	default:
		if err := s.replaceLeaves(prefix, reply.Leaves); err != nil {
			return err
		}
		if size < s.depth {
			s.storeSubtree(prefix, subtree, reply.BlockNumber)
		}
		n.synced.Set(nibble, true)
	}
	s.tree.propagateSynced(prefix, size-1)
	return nil
}

// buildSubtree computes the nodes of the subtree below the prefix holding the
// given leaves. Level i of the result holds the 16^i nodes at tree level
// prefix.Size()+i below the prefix. For bottom-level prefixes, the result is
// a single node whose slot of the prefix's last nibble summarizes the leaves.
func (s *State) buildSubtree(prefix mpt.Prefix, leaves []sync.Leaf) ([][]node, error) {
	size := prefix.Size()
	levels := s.depth - size
	base := prefix.Index(size)
	if levels == 0 {
		levels, base = 1, prefix.Index(size-1)
	}
	res := make([][]node, levels)
	for i := range res {
		res[i] = make([]node, 1<<(4*i))
		for j := range res[i] {
			res[i][j] = newNode()
			res[i][j].synced = mpt.AllSet
		}
	}
	bottom := res[levels-1]
	bottomBase := base << (4 * (levels - 1))

	hasher := mpt.NewLeafHasher()
	var current mpt.Prefix
	flush := func() {
		n := &bottom[current.Index(s.depth-1)-bottomBase]
		n.empty.Set(current.Last(), false)
		n.hash[current.Last()] = hasher.Sum()
	}
	for i := range leaves {
		key := leaves[i].Key
		if !prefix.Matches(key) {
			return nil, fmt.Errorf("%w: leaf %v outside of prefix %v", sync.ErrReplyShapeMismatch, key, prefix)
		}
		if i > 0 && bytes.Compare(leaves[i-1].Key[:], key[:]) >= 0 {
			return nil, fmt.Errorf("%w: leaves of prefix %v not sorted", sync.ErrReplyShapeMismatch, prefix)
		}
		leafPrefix, err := mpt.PrefixFromHash(s.depth, key)
		if err != nil {
			return nil, err
		}
		if i > 0 && leafPrefix != current {
			flush()
		}
		current = leafPrefix
		hasher.Add(leaves[i].Value)
	}
	if len(leaves) > 0 {
		flush()
	}
	for i := levels - 1; i >= 1; i-- {
		for j := range res[i] {
			res[i-1][j>>4].setSlot(mpt.Nibble(j&0xF), &res[i][j])
		}
	}
	return res, nil
}

// subtreeSummary returns the slot content described by a result of
// buildSubtree for the given prefix.
func (s *State) subtreeSummary(prefix mpt.Prefix, subtree [][]node) (bool, common.Hash) {
	top := &subtree[0][0]
	if prefix.Size() == s.depth {
		nibble := prefix.Last()
		return top.empty.Get(nibble), top.hash[nibble]
	}
	if top.empty.All() {
		return true, common.Hash{}
	}
	return false, top.digest()
}

// storeSubtree installs nodes computed by buildSubtree below the prefix.
func (s *State) storeSubtree(prefix mpt.Prefix, subtree [][]node, block uint32) {
	size := prefix.Size()
	base := prefix.Index(size)
	for i, nodes := range subtree {
		level := s.tree[size+i]
		offset := base << (4 * i)
		for j := range nodes {
			nodes[j].block = int32(block)
			level[offset+uint64(j)] = nodes[j]
		}
	}
}

// setSubtreeBlock certifies all nodes below the prefix for the given block.
func (s *State) setSubtreeBlock(prefix mpt.Prefix, block uint32) {
	size := prefix.Size()
	base := prefix.Index(size)
	for i := 0; size+i < s.depth; i++ {
		level := s.tree[size+i]
		offset := base << (4 * i)
		for j := uint64(0); j < 1<<(4*i); j++ {
			level[offset+j].block = int32(block)
		}
	}
}

// replaceLeaves swaps the leaves stored under the prefix for the given ones.
func (s *State) replaceLeaves(prefix mpt.Prefix, leaves []sync.Leaf) error {
	if err := mpt.DeleteLeaves(s.db, prefix); err != nil {
		return err
	}
	keys := make([][]byte, len(leaves))
	values := make([][]byte, len(leaves))
	for i := range leaves {
		keys[i] = leaves[i].Key[:]
		values[i] = leaves[i].Value
	}
	if err := s.db.PutAll(bucket.FromSlice(keys, values)); err != nil {
		return fmt.Errorf("failed to store leaves of %v; %w", prefix, err)
	}
	return nil
}
