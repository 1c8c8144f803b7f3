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

//go:generate mockgen -source verifier.go -destination verifier_mocks.go -package state

import (
	"github.com/Fantom-foundation/statesync/database/mpt"
	"github.com/Fantom-foundation/statesync/database/sync"
)

// ProofVerifier checks the proofs of replies before they are integrated into
// a state. A failing check aborts the processing of the reply.
type ProofVerifier interface {
	VerifyLeaves(prefix mpt.Prefix, reply *sync.LeavesReply) error
	VerifyNodes(request *sync.GetNodeRequest, reply *sync.NodeReply) error
}

// NoVerification accepts all replies.
type NoVerification struct{}

func (NoVerification) VerifyLeaves(mpt.Prefix, *sync.LeavesReply) error {
	return nil
}

func (NoVerification) VerifyNodes(*sync.GetNodeRequest, *sync.NodeReply) error {
	return nil
}
