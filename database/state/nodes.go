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

	"github.com/Fantom-foundation/statesync/database/mpt"
	"github.com/Fantom-foundation/statesync/database/sync"
)

// GetNodes serves a node request. The result is nil if the state is not
// certified for any block or only for a block older than requested. Entries
// for nodes not certified for the block of the root are nil.
func (s *State) GetNodes(request *sync.GetNodeRequest) (*sync.NodeReply, error) {
	if request.Account != nil {
		return nil, fmt.Errorf("%w: storage nodes", sync.ErrUnsupportedRequest)
	}
	for _, prefix := range request.Prefixes {
		if prefix.Size() >= s.depth {
			return nil, fmt.Errorf("%w: node of prefix %v", sync.ErrUnsupportedRequest, prefix)
		}
	}
	root := s.tree.root()
	if root.block == noBlock {
		return nil, nil
	}
	if request.BlockNumber != nil && int64(*request.BlockNumber) > int64(root.block) {
		return nil, nil
	}
	reply := &sync.NodeReply{
		BlockNumber: uint32(root.block),
		Nodes:       make([]*sync.Proof, len(request.Prefixes)),
	}
	for i, prefix := range request.Prefixes {
		size := prefix.Size()
		if s.tree.consistentDepth(prefix, size+1) != size+1 {
			continue
		}
		proof := s.tree.at(size, prefix).proof()
		reply.Nodes[i] = &proof
	}
	return reply, nil
}

// ProcessNodeReply integrates the reply to a node request. A nil reply is
// ignored, as are replies older than the local root. If the reply is newer
// than the local root, only a contained root node is adopted.
func (s *State) ProcessNodeReply(request *sync.GetNodeRequest, reply *sync.NodeReply) error {
	if reply == nil {
		return nil
	}
	if len(reply.Nodes) != len(request.Prefixes) {
		return fmt.Errorf("%w: %d nodes for %d prefixes", sync.ErrReplyShapeMismatch, len(reply.Nodes), len(request.Prefixes))
	}
	for _, prefix := range request.Prefixes {
		if prefix.Size() >= s.depth {
			return fmt.Errorf("%w: node of prefix %v", sync.ErrUnsupportedRequest, prefix)
		}
	}
	rootBlock := int64(s.tree.root().block)
	if int64(reply.BlockNumber) < rootBlock {
		return nil
	}
	if err := s.verifier.VerifyNodes(request, reply); err != nil {
		return err
	}

	if int64(reply.BlockNumber) > rootBlock {
		for i, prefix := range request.Prefixes {
			if prefix.Size() == 0 && reply.Nodes[i] != nil {
				return s.overwrite(0, prefix, reply.Nodes[i], reply.BlockNumber)
			}
		}
		s.rootBehind = true
		return nil
	}

	for i, prefix := range request.Prefixes {
		proof := reply.Nodes[i]
		if proof == nil {
			continue
		}
		size := prefix.Size()
		if s.tree.consistentDepth(prefix, size) != size {
			continue
		}
		if size > 0 {
			parent := s.tree.at(size-1, prefix)
			digest := proof.Digest()
			if parent.nibbleObsolete(prefix.Last(), proof.Empty.All(), digest) {
				continue
			}
		}
		if int64(reply.BlockNumber) > int64(s.tree.at(size, prefix).block) {
			if err := s.overwrite(size, prefix, proof, reply.BlockNumber); err != nil {
				return err
			}
		}
		s.tree.propagateSynced(prefix, size)
		s.traversal.add(prefix, int32(reply.BlockNumber))
	}
	return nil
}

// HeadProbeRequest produces a request for the root node of any block newer
// than the local root. The result is nil if the local root is not certified.
func (s *State) HeadProbeRequest() *sync.GetNodeRequest {
	block := s.tree.root().block
	if block == noBlock {
		return nil
	}
	return &sync.GetNodeRequest{
		Prefixes:    []mpt.Prefix{{}},
		BlockNumber: sync.BlockNumber(uint32(block) + 1),
	}
}
