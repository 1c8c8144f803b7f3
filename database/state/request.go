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
	"github.com/Fantom-foundation/statesync/database/mpt"
	"github.com/Fantom-foundation/statesync/database/sync"
)

// sweep is a cursor cycling through all prefixes of a fixed size.
type sweep struct {
	cursor mpt.Prefix
	// prefixes passed in the current round
	examined uint64
	total    uint64
	// set once the first round is completed
	done bool
}

func newSweep(size int) sweep {
	return sweep{
		cursor: mpt.Prefix{}.Extend(size),
		total:  1 << (4 * size),
	}
}

func (w *sweep) advance(steps uint64) {
	w.cursor = w.cursor.Add(steps)
	w.examined += steps
}

func (w *sweep) finished() bool {
	return w.examined >= w.total
}

func (w *sweep) startRound() {
	w.examined = 0
	w.done = true
}

// traversal is a breadth-first walk through the nodes with unsynced slots,
// certified for a fixed block.
type traversal struct {
	active bool
	block  int32
	// nodes to be examined; the first one is examined from nibble on
	frontier []mpt.Prefix
	nibble   int
}

func (t *traversal) restart(block int32) {
	t.active = true
	t.block = block
	t.frontier = append(t.frontier[:0], mpt.Prefix{})
	t.nibble = 0
}

func (t *traversal) pop() {
	t.frontier = t.frontier[1:]
	t.nibble = 0
}

// add schedules a node for examination if it belongs to the traversal.
func (t *traversal) add(prefix mpt.Prefix, block int32) {
	if t.active && t.block == block {
		t.frontier = append(t.frontier, prefix)
	}
}

// NextSyncRequest produces the next request needed to replicate the remote
// state. The result is nil if there is nothing left to request.
//
// Phase 1 sweeps once through all prefixes of the phase 1 depth and requests
// the leaves of each subtree not yet certified. Phase 2 runs while the state
// is not completely synced; it requests the nodes of subtrees with unsynced
// slots top-down and the leaves of unsynced bottom-level slots.
func (s *State) NextSyncRequest() sync.Request {
	if !s.phase1.done {
		if request := s.nextPhase1Request(); request != nil {
			return request
		}
	}
	if s.SyncedBlock() >= 0 {
		return nil
	}
	if s.rootBehind {
		s.rootBehind = false
		request := &sync.GetNodeRequest{Prefixes: []mpt.Prefix{{}}}
		if block := s.tree.root().block; block != noBlock {
			request.BlockNumber = sync.BlockNumber(uint32(block))
		}
		return request
	}
	for attempt := 0; attempt < 2; attempt++ {
		if request := s.nextNodeRequest(); request != nil {
			return request
		}
		if request := s.nextPhase2LeavesRequest(); request != nil {
			return request
		}
		s.traversal.restart(s.tree.root().block)
	}
	return nil
}

func (s *State) nextPhase1Request() *sync.GetLeavesRequest {
	for !s.phase1.finished() {
		prefix := s.phase1.cursor
		s.phase1.advance(1)
		if request := s.leavesRequestFor(prefix); request != nil {
			return request
		}
	}
	s.phase1.startRound()
	return nil
}

func (s *State) nextPhase2LeavesRequest() *sync.GetLeavesRequest {
	for !s.phase2.finished() {
		prefix := s.phase2.cursor
		if span := s.syncedSpan(prefix); span > 0 {
			s.phase2.advance(span)
			continue
		}
		s.phase2.advance(1)
		if request := s.leavesRequestFor(prefix); request != nil {
			return request
		}
	}
	s.phase2.startRound()
	return nil
}

// syncedSpan returns the number of bottom-level prefixes from the given one
// to the end of the largest synced and consistent subtree containing it, 0
// if there is none.
func (s *State) syncedSpan(prefix mpt.Prefix) uint64 {
	block := s.tree.root().block
	for level := 0; level < s.depth-1; level++ {
		n := s.tree.at(level, prefix)
		if n.block == noBlock || n.block != block {
			return 0
		}
		if n.synced.Get(prefix.Nibble(level)) {
			span := uint64(1) << (4 * (s.depth - level - 1))
			offset := prefix.Index(s.depth) - prefix.Index(level+1)*span
			return span - offset
		}
	}
	return 0
}

// leavesRequestFor produces a leaves request for the prefix unless its slot
// is synced and certified for the block of the root.
func (s *State) leavesRequestFor(prefix mpt.Prefix) *sync.GetLeavesRequest {
	s.tree.updateBlocksDownPath(prefix)
	size := prefix.Size()
	consistent := s.tree.consistentPathDepth(prefix)
	n := s.tree.at(size-1, prefix)
	synced := n.synced.Get(prefix.Last())
	if synced && consistent == size {
		return nil
	}
	request := &sync.GetLeavesRequest{
		Prefix:    prefix,
		FromLevel: uint8(consistent),
	}
	if block := s.tree.root().block; block != noBlock {
		request.BlockNumber = sync.BlockNumber(uint32(block))
	}
	if synced {
		hash := n.slotDigest(prefix.Last())
		request.HashOfLeaves = &hash
	}
	return request
}

// nextNodeRequest continues the traversal of the nodes certified for the
// block of the root. Children of unsynced slots that can not be certified
// locally are collected into a node request.
func (s *State) nextNodeRequest() *sync.GetNodeRequest {
	block := s.tree.root().block
	if !s.traversal.active || s.traversal.block != block {
		s.traversal.restart(block)
	}
	if block == noBlock {
		return nil
	}
	var batch []mpt.Prefix
	for len(s.traversal.frontier) > 0 {
		prefix := s.traversal.frontier[0]
		level := prefix.Size()
		if s.tree.consistentDepth(prefix, level+1) != level+1 {
			s.traversal.pop()
			continue
		}
		if level+1 >= s.depth {
			// bottom slots are covered by leaves requests
			s.tree.propagateSynced(prefix, level)
			s.traversal.pop()
			continue
		}
		n := s.tree.at(level, prefix)
		for ; s.traversal.nibble < 16; s.traversal.nibble++ {
			nibble := mpt.Nibble(s.traversal.nibble)
			if n.empty.Get(nibble) || n.synced.Get(nibble) {
				continue
			}
			if len(batch) == s.maxNodesPerRequest {
				return &sync.GetNodeRequest{Prefixes: batch, BlockNumber: sync.BlockNumber(uint32(block))}
			}
			child := prefix.Child(nibble)
			if s.tree.updateBlockAt(level+1, child.Index(level+1)) {
				s.traversal.frontier = append(s.traversal.frontier, child)
			} else {
				batch = append(batch, child)
			}
		}
		s.tree.propagateSynced(prefix, level)
		s.traversal.pop()
	}
	if len(batch) == 0 {
		return nil
	}
	return &sync.GetNodeRequest{Prefixes: batch, BlockNumber: sync.BlockNumber(uint32(block))}
}
