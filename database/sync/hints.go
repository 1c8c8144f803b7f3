// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package sync

import (
	"fmt"
	"math"

	"github.com/c2h5oh/datasize"
)

const (
	// MinDepth and MaxDepth bound the depth of a state's node tree.
	MinDepth = 2
	MaxDepth = 15

	// LeafSize is an approximation of the size of a dust account leaf in
	// bytes, including the bookkeeping overhead.
	LeafSize = 144
)

// Hints describe the expected data set and resources. They are used to derive
// the depth of the node tree and of the phase 1 partitioning.
type Hints struct {
	MaxMemory          datasize.ByteSize
	NumLeaves          uint64
	ChangesPerBlock    uint64
	ApproxMaxReplySize datasize.ByteSize
	ProofSize          uint64
	NodeSize           uint64
	LeafSize           uint64
	ReplyOverhead      uint64
}

func DefaultHints() Hints {
	return Hints{
		MaxMemory:          8 * datasize.GB,
		NumLeaves:          50_000_000,
		ChangesPerBlock:    10_000,
		ApproxMaxReplySize: 32 * datasize.KB,
		ProofSize:          ProofSize,
		NodeSize:           ProofSize + 8,
		LeafSize:           LeafSize,
		ReplyOverhead:      messageOverhead + 1 + blockSize,
	}
}

// NumTreeNodes is the number of nodes of a perfect 16-ary tree of the given
// depth.
func NumTreeNodes(depth int) uint64 {
	return ((uint64(1) << (4 * depth)) - 1) / 15
}

// TreeSizeInBytes estimates the memory used by a node tree of the given depth.
func (h *Hints) TreeSizeInBytes(depth int) uint64 {
	return NumTreeNodes(depth)*h.NodeSize + uint64(depth)*8
}

// DepthToFitInMemory is the largest depth whose tree fits into MaxMemory.
func (h *Hints) DepthToFitInMemory() int {
	for i := MinDepth; i <= MaxDepth; i++ {
		if h.TreeSizeInBytes(i) > h.MaxMemory.Bytes() {
			return i - 1
		}
	}
	return MaxDepth
}

// replyCost estimates the total reply size required to catch up with a
// single block for a tree of the given depth.
func (h *Hints) replyCost(depth int) float64 {
	nodes := uint64(0)
	for i := 0; i < depth; i++ {
		nodes += min(uint64(1)<<(4*i), h.ChangesPerBlock)
	}
	leavesPerReply := float64(h.NumLeaves) / float64(uint64(1)<<(4*depth))
	return float64(nodes*h.NodeSize) + float64(h.ChangesPerBlock)*leavesPerReply*float64(h.LeafSize)
}

// OptimalPhase2Depth minimizes the reply volume of phase 2 without
// considering memory limits.
func (h *Hints) OptimalPhase2Depth() int {
	best, bestCost := 0, math.Inf(1)
	for i := 0; i <= MaxDepth; i++ {
		if cost := h.replyCost(i); cost < bestCost {
			best, bestCost = i, cost
		}
	}
	return best
}

// OptimalPhase1Depth is the smallest depth at which the leaves of a single
// prefix fit into ApproxMaxReplySize on average.
func (h *Hints) OptimalPhase1Depth() int {
	for i := 1; i < 16; i++ {
		numRequests := uint64(1) << (4 * i)
		if h.NumLeaves*h.LeafSize <= h.ApproxMaxReplySize.Bytes()*numRequests {
			return i
		}
	}
	return 16
}

// InfBandwidthReplyOverhead is the relative overhead of proofs compared to
// the plain leaf volume when running phase 1 only.
func (h *Hints) InfBandwidthReplyOverhead() float64 {
	numProofs := NumTreeNodes(h.OptimalPhase1Depth())
	totalLeafSize := h.NumLeaves * h.LeafSize
	totalReplySize := numProofs*h.NodeSize + totalLeafSize
	return float64(totalReplySize)/float64(totalLeafSize) - 1
}

// Depth is the tree depth to be used for a state, clamped to the supported
// range.
func (h *Hints) Depth() int {
	return max(MinDepth, min(h.OptimalPhase2Depth(), h.DepthToFitInMemory(), MaxDepth))
}

// Phase1Depth is the depth of the phase 1 partitioning, never exceeding
// Depth.
func (h *Hints) Phase1Depth() int {
	return max(1, min(h.OptimalPhase1Depth(), h.Depth()))
}

// MaxLeavesPerReply is the limit above which subtree requests are answered
// with StatusTooManyLeaves: four times the number of leaves expected to fit
// into ApproxMaxReplySize.
func (h *Hints) MaxLeavesPerReply() int {
	if h.LeafSize == 0 {
		return math.MaxInt
	}
	return int(max(1, 4*h.ApproxMaxReplySize.Bytes()/h.LeafSize))
}

func (h *Hints) String() string {
	return fmt.Sprintf(
		"depth: %d, phase 1 depth: %d, tree size: %v, max leaves per reply: %d, reply overhead: %.2f%%",
		h.Depth(), h.Phase1Depth(),
		datasize.ByteSize(h.TreeSizeInBytes(h.Depth())).HumanReadable(),
		h.MaxLeavesPerReply(), 100*h.InfBandwidthReplyOverhead(),
	)
}

// CheckDepths validates a tree depth and phase 1 depth combination.
func CheckDepths(depth, phase1Depth int) error {
	if depth < MinDepth || depth > MaxDepth {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidDepth, depth, MinDepth, MaxDepth)
	}
	if phase1Depth < 1 || phase1Depth > depth {
		return fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidPhase1Depth, phase1Depth, depth)
	}
	return nil
}
