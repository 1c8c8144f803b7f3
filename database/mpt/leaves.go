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
)

const ErrInvalidKey = common.ConstError("trie key is not a 32-byte hash")

// IterateLeaves visits all leaves stored under the given prefix in key order.
func IterateLeaves(db bucket.Bucket, prefix Prefix, visit func(key common.Hash, val []byte) error) error {
	lower, upper := prefix.KeyRange()
	return db.Iterate(lower, upper, func(key, val []byte) error {
		if len(key) != common.HashSize {
			return fmt.Errorf("%w: %x", ErrInvalidKey, key)
		}
		return visit(common.Hash(key), val)
	})
}

// DeleteLeaves removes all leaves stored under the given prefix.
func DeleteLeaves(db bucket.Bucket, prefix Prefix) error {
	lower, upper := prefix.KeyRange()
	if err := db.Delete(lower, upper); err != nil {
		return fmt.Errorf("failed to delete leaves of %v; %w", prefix, err)
	}
	return nil
}
