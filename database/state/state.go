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
	"fmt"

	"github.com/Fantom-foundation/statesync/backend/bucket"
	"github.com/Fantom-foundation/statesync/common"
	"github.com/Fantom-foundation/statesync/database/mpt"
	"github.com/Fantom-foundation/statesync/database/sync"
)

// DefaultMaxNodesPerRequest is the default number of prefixes batched into a
// single node request.
const DefaultMaxNodesPerRequest = 64

// State is the sync-capable view of a flat key/value store of trie leaves. It
// maintains a fixed-depth tree of node summaries over the leaves, serves
// leaves and node requests of other states, and produces and processes the
// requests needed to replicate the data of a remote state.
//
// A State is not thread safe; all operations must be serialized by the
// owner.
type State struct {
	db          bucket.Bucket
	depth       int
	phase1Depth int
	tree        tree

	maxLeavesPerReply  int
	maxNodesPerRequest int
	verifier           ProofVerifier

	phase1 sweep
	phase2 sweep
	// nodes of the current phase 2 traversal
	traversal traversal
	// set if a node reply indicated that the remote root is newer
	rootBehind bool
	// set if nodes may lag behind the block of their parent
	lagging bool
}

// Option customizes a State created by New.
type Option func(*State)

// WithMaxLeavesPerReply limits the number of leaves included in replies to
// leaves requests of prefixes above the bottom level.
func WithMaxLeavesPerReply(limit int) Option {
	return func(s *State) {
		s.maxLeavesPerReply = limit
	}
}

// WithMaxNodesPerRequest limits the number of prefixes per node request.
func WithMaxNodesPerRequest(limit int) Option {
	return func(s *State) {
		s.maxNodesPerRequest = limit
	}
}

// WithProofVerifier installs a verifier checked before replies are applied.
func WithProofVerifier(verifier ProofVerifier) Option {
	return func(s *State) {
		s.verifier = verifier
	}
}

// New creates a state over the given bucket. All nodes start uninitialized;
// InitFromDb certifies existing content of the bucket.
func New(db bucket.Bucket, depth, phase1Depth int, opts ...Option) (*State, error) {
	if err := sync.CheckDepths(depth, phase1Depth); err != nil {
		return nil, err
	}
	hints := sync.DefaultHints()
	res := &State{
		db:                 db,
		depth:              depth,
		phase1Depth:        phase1Depth,
		tree:               newTree(depth),
		maxLeavesPerReply:  hints.MaxLeavesPerReply(),
		maxNodesPerRequest: DefaultMaxNodesPerRequest,
		verifier:           NoVerification{},
		phase1:             newSweep(phase1Depth),
		phase2:             newSweep(depth),
	}
	for _, opt := range opts {
		opt(res)
	}
	if res.maxLeavesPerReply < 1 || res.maxNodesPerRequest < 1 {
		return nil, fmt.Errorf("invalid reply limits: %d leaves, %d nodes", res.maxLeavesPerReply, res.maxNodesPerRequest)
	}
	return res, nil
}

func (s *State) Depth() int {
	return s.depth
}

func (s *State) Phase1Depth() int {
	return s.phase1Depth
}

// InitFromDb declares the current content of the bucket to be the state of
// the given block. All node summaries are recomputed and marked synced.
func (s *State) InitFromDb(block uint32) error {
	s.tree.reset()
	bottom := s.depth - 1
	hasher := mpt.NewLeafHasher()
	var current mpt.Prefix
	started := false
	flush := func() {
		n := s.tree.at(bottom, current)
		n.empty.Set(current.Last(), false)
		n.hash[current.Last()] = hasher.Sum()
	}
	err := mpt.IterateLeaves(s.db, mpt.Prefix{}, func(key common.Hash, val []byte) error {
		prefix, err := mpt.PrefixFromHash(s.depth, key)
		if err != nil {
			return err
		}
		if started && prefix != current {
			flush()
		}
		current, started = prefix, true
		hasher.Add(val)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to initialize state for block %d; %w", block, err)
	}
	if started {
		flush()
	}
	for level := bottom; level >= 1; level-- {
		nodes, parents := s.tree[level], s.tree[level-1]
		for i := range nodes {
			parents[i>>4].setSlot(mpt.Nibble(i&0xF), &nodes[i])
		}
	}
	for _, level := range s.tree {
		for i := range level {
			level[i].block = int32(block)
			level[i].synced = mpt.AllSet
		}
	}
	s.lagging = false
	s.rootBehind = false
	return nil
}

// Put inserts or updates a leaf. The state stops being certified for any
// block until the next InitFromDb.
func (s *State) Put(key common.Hash, value []byte) error {
	s.tree.root().block = noBlock
	prefix, err := mpt.PrefixFromHash(s.depth, key)
	if err != nil {
		return err
	}
	for level := 0; level < s.depth; level++ {
		s.tree.at(level, prefix).synced.Set(mpt.HashNibble(key, level), false)
	}
	if err := s.db.Put(key[:], value); err != nil {
		return fmt.Errorf("failed to store leaf %v; %w", key, err)
	}
	return nil
}

// SyncedBlock returns the block the entire local data is certified for, or
// -1 if the data is incomplete or not certified.
func (s *State) SyncedBlock() int64 {
	root := s.tree.root()
	if root.block == noBlock || !root.synced.All() {
		return -1
	}
	return int64(root.block)
}

// Phase1SyncDone reports whether the phase 1 sweep was completed once.
func (s *State) Phase1SyncDone() bool {
	return s.phase1.done
}

// RootHash returns the digest of the root node.
func (s *State) RootHash() common.Hash {
	return s.tree.root().digest()
}

// Root returns the proof of the root node and the block it is certified for,
// -1 if unknown.
func (s *State) Root() (sync.Proof, int64) {
	root := s.tree.root()
	return root.proof(), int64(root.block)
}

// CatchUpBlocks aligns the blocks of nodes left behind by updates of their
// ancestors whose content did not change. Afterwards, the state serves
// requests for all its synced subtrees at the block of the root.
func (s *State) CatchUpBlocks() {
	if !s.lagging || s.tree.root().block == noBlock {
		return
	}
	for level := 1; level < s.depth; level++ {
		for i := range s.tree[level] {
			s.tree.updateBlockAt(level, uint64(i))
		}
	}
	s.lagging = false
}

// overwrite replaces the node at the given level on the path of the prefix
// by the proof. Slots with changed content become unsynced; at the bottom
// level, their leaves are evicted.
func (s *State) overwrite(level int, prefix mpt.Prefix, proof *sync.Proof, block uint32) error {
	n := s.tree.at(level, prefix)
	for i := 0; i < 16; i++ {
		nibble := mpt.Nibble(i)
		if !n.nibbleObsolete(nibble, proof.Empty.Get(nibble), proof.Hash[nibble]) {
			continue
		}
		n.synced.Set(nibble, false)
		if level == s.depth-1 {
			if err := mpt.DeleteLeaves(s.db, prefix.Truncate(level).Child(nibble)); err != nil {
				return err
			}
		}
	}
	n.empty = proof.Empty
	n.hash = proof.Hash
	n.block = int32(block)
	if level+1 < s.depth {
		s.lagging = true
	}
	return nil
}
