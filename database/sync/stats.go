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

import "fmt"

// Stats accumulates the traffic of sync sessions. It is accounting only and
// does not influence the protocol.
type Stats struct {
	NumRequests       uint64
	RequestTotalBytes uint64
	NumReplies        uint64
	ReplyTotalBytes   uint64
	ReplyTotalLeaves  uint64
	ReplyTotalNodes   uint64
	NumDontHaveData   uint64
	NumTooManyLeaves  uint64
}

// Add accumulates the given stats into this one.
func (s *Stats) Add(other *Stats) {
	s.NumRequests += other.NumRequests
	s.RequestTotalBytes += other.RequestTotalBytes
	s.NumReplies += other.NumReplies
	s.ReplyTotalBytes += other.ReplyTotalBytes
	s.ReplyTotalLeaves += other.ReplyTotalLeaves
	s.ReplyTotalNodes += other.ReplyTotalNodes
	s.NumDontHaveData += other.NumDontHaveData
	s.NumTooManyLeaves += other.NumTooManyLeaves
}

func (s *Stats) String() string {
	return fmt.Sprintf(
		"requests: %d (%d bytes), replies: %d (%d bytes, %d leaves, %d nodes), misses: %d, oversized: %d",
		s.NumRequests, s.RequestTotalBytes,
		s.NumReplies, s.ReplyTotalBytes, s.ReplyTotalLeaves, s.ReplyTotalNodes,
		s.NumDontHaveData, s.NumTooManyLeaves,
	)
}
