// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package mpt

import (
	"fmt"

	"github.com/Fantom-foundation/statesync/backend/bucket"
	"github.com/Fantom-foundation/statesync/common"
	"github.com/Fantom-foundation/statesync/database/mpt/rlp"
)

// The trie is hashed without extension and leaf node compression: all values
// below a bottom-level prefix are hashed as one flat list, and branch nodes
// always list all 16 children.

// LeafHasher computes the digest of a sequence of leaves. The digest is the
// Keccak256 hash of the concatenated Keccak256 hashes of the values, in key
// order. Without any leaves it equals common.EmptyStringHash.
type LeafHasher struct {
	hasher *common.Keccak256Hasher
}

func NewLeafHasher() *LeafHasher {
	return &LeafHasher{hasher: common.NewKeccak256Hasher()}
}

// Add appends the value of the next leaf in key order.
func (h *LeafHasher) Add(value []byte) {
	hash := common.Keccak256(value)
	h.hasher.Write(hash[:])
}

// Sum returns the digest of all leaves added so far and resets the hasher.
func (h *LeafHasher) Sum() common.Hash {
	return h.hasher.Sum()
}

// HashOfLeaves computes the digest of all leaves stored under the prefix.
func HashOfLeaves(db bucket.Bucket, prefix Prefix) (common.Hash, error) {
	hasher := NewLeafHasher()
	lower, upper := prefix.KeyRange()
	err := db.Iterate(lower, upper, func(_, val []byte) error {
		hasher.Add(val)
		return nil
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash leaves of %v; %w", prefix, err)
	}
	return hasher.Sum(), nil
}

// BranchNodeHash computes the digest of a branch node: the Keccak256 hash of
// the RLP list of its 16 children, where empty children are encoded as empty
// strings.
func BranchNodeHash(empty Bitset16, hashes *[16]common.Hash) common.Hash {
	items := make([]rlp.Item, 16)
	for i := range items {
		if empty.Get(Nibble(i)) {
			items[i] = rlp.String{}
		} else {
			items[i] = rlp.Hash{Hash: hashes[i]}
		}
	}
	return common.Keccak256(rlp.Encode(rlp.List{Items: items}))
}
