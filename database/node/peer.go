// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package node

//go:generate mockgen -source peer.go -destination peer_mocks.go -package node

import (
	"context"

	"github.com/Fantom-foundation/statesync/database/sync"
)

// Peer is the remote end of a sync session. Implementations may be local
// nodes or stubs forwarding the requests through a network.
type Peer interface {
	// GetStateLeaves requests the leaves and the proof of a prefix.
	GetStateLeaves(ctx context.Context, request *sync.GetLeavesRequest) (sync.LeavesReply, error)
	// GetStateNodes requests the proofs of nodes. A nil reply signals that
	// the peer does not have the requested data.
	GetStateNodes(ctx context.Context, request *sync.GetNodeRequest) (*sync.NodeReply, error)
}
