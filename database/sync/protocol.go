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
	"github.com/Fantom-foundation/statesync/common"
	"github.com/Fantom-foundation/statesync/database/mpt"
)

const (
	// ErrUnsupportedRequest is reported for requests outside the supported
	// prefix sizes of a state.
	ErrUnsupportedRequest = common.ConstError("unsupported request")
	// ErrReplyShapeMismatch is reported if a reply does not correspond to its
	// request. It indicates a transport or protocol bug.
	ErrReplyShapeMismatch = common.ConstError("reply does not match request")
	// ErrInconsistentReply is reported if the leaves of a reply do not match
	// the digest asserted by its proof.
	ErrInconsistentReply  = common.ConstError("reply leaves do not match proof")
	ErrInvalidDepth       = common.ConstError("invalid tree depth")
	ErrInvalidPhase1Depth = common.ConstError("invalid phase 1 depth")
	ErrMalformedMessage   = common.ConstError("malformed message")
)

// Approximate sizes of message components in bytes.
const (
	messageOverhead = 16
	prefixSize      = 9
	blockSize       = 4
	// ProofSize is the size of a single proof entry: the emptiness bitset
	// and 16 hashes.
	ProofSize = 2 + 16*common.HashSize
)

// Bitset16 flags one property per nibble of a node.
type Bitset16 = mpt.Bitset16

// Leaf is a single key/value entry of the trie.
type Leaf struct {
	Key   common.Hash
	Value []byte
}

func (l *Leaf) ByteSize() uint64 {
	return uint64(common.HashSize + len(l.Value))
}

// Proof describes a tree node: for each of its 16 children whether it is
// empty and, if not, its digest.
type Proof struct {
	Empty Bitset16
	Hash  [16]common.Hash
}

// NewProof creates a proof of a node with no children.
func NewProof() Proof {
	return Proof{Empty: mpt.AllSet}
}

// Digest computes the branch node hash of the described node.
func (p *Proof) Digest() common.Hash {
	return mpt.BranchNodeHash(p.Empty, &p.Hash)
}

// Status is the outcome of a leaves request.
type Status byte

const (
	StatusOK Status = iota
	// StatusDontHaveData is reported if the server can not certify the
	// requested data.
	StatusDontHaveData
	// StatusTooManyLeaves is reported if the leaves of the requested prefix
	// exceed the reply size limit. The proof is still included.
	StatusTooManyLeaves
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusDontHaveData:
		return "DontHaveData"
	case StatusTooManyLeaves:
		return "TooManyLeaves"
	}
	return "Unknown"
}

// Request is either a *GetLeavesRequest or a *GetNodeRequest. A nil Request
// signals that there is nothing to request.
type Request interface {
	ByteSize() uint64
	isRequest()
}

// GetLeavesRequest asks for all leaves below a prefix together with the
// proof of the path leading to it.
type GetLeavesRequest struct {
	// nil selects the state trie rather than an account's storage trie
	Account *common.Address
	Prefix  mpt.Prefix
	// the server must not reply with older data
	BlockNumber *uint32
	// If the server's block equals BlockNumber, the proof omits the
	// FromLevel levels closest to the root. Otherwise a full proof is sent.
	FromLevel uint8
	// leaves are omitted if their digest equals this hash
	HashOfLeaves *common.Hash
}

func (*GetLeavesRequest) isRequest() {}

func (r *GetLeavesRequest) ByteSize() uint64 {
	res := uint64(messageOverhead + prefixSize + 1)
	if r.Account != nil {
		res += common.AddressSize
	}
	if r.BlockNumber != nil {
		res += blockSize
	}
	if r.HashOfLeaves != nil {
		res += common.HashSize
	}
	return res
}

// LeavesReply answers a GetLeavesRequest.
type LeavesReply struct {
	Status Status
	// always >= the request's block number
	BlockNumber uint32
	// one entry per level, covering the levels from the request's FromLevel
	// (or 0) down to the level of the prefix's parent node
	Proof []Proof
	// leaves sorted by key; only valid if HasLeaves is set
	Leaves    []Leaf
	HasLeaves bool
}

func (r *LeavesReply) ByteSize() uint64 {
	res := uint64(messageOverhead+1+blockSize) + uint64(len(r.Proof))*ProofSize
	for i := range r.Leaves {
		res += r.Leaves[i].ByteSize()
	}
	return res
}

// GetNodeRequest asks for the proofs of the nodes addressed by the prefixes.
type GetNodeRequest struct {
	// nil selects the state trie rather than an account's storage trie
	Account  *common.Address
	Prefixes []mpt.Prefix
	// the server must not reply with older data
	BlockNumber *uint32
}

func (*GetNodeRequest) isRequest() {}

func (r *GetNodeRequest) ByteSize() uint64 {
	res := uint64(messageOverhead) + uint64(len(r.Prefixes))*prefixSize
	if r.Account != nil {
		res += common.AddressSize
	}
	if r.BlockNumber != nil {
		res += blockSize
	}
	return res
}

// NodeReply answers a GetNodeRequest. Nodes has the same length and order as
// the request's prefixes; nil entries are nodes the server can not certify.
type NodeReply struct {
	BlockNumber uint32
	Nodes       []*Proof
}

func (r *NodeReply) ByteSize() uint64 {
	res := uint64(messageOverhead + blockSize)
	for _, node := range r.Nodes {
		res++
		if node != nil {
			res += ProofSize
		}
	}
	return res
}

// BlockNumber is a convenience function for filling optional block numbers.
func BlockNumber(block uint32) *uint32 {
	return &block
}
