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
	"errors"
	"testing"

	"github.com/Fantom-foundation/statesync/backend/bucket/memory"
	"github.com/Fantom-foundation/statesync/common"
)

func TestLeaves_IterateAndDeleteByPrefix(t *testing.T) {
	db := memory.New()
	keys := []common.Hash{
		{0x15, 0xd2, 0x46, 1},
		{0x15, 0xd2, 0x46, 2},
		{0x15, 0xd2, 0x47},
		{0xff, 0xff, 0xff},
	}
	for i, key := range keys {
		db.Put(key[:], []byte{byte(i)})
	}

	var visited []common.Hash
	err := IterateLeaves(db, MustParsePrefix("15d246"), func(key common.Hash, _ []byte) error {
		visited = append(visited, key)
		return nil
	})
	if err != nil {
		t.Fatalf("failed to iterate: %v", err)
	}
	if len(visited) != 2 || visited[0] != keys[0] || visited[1] != keys[1] {
		t.Errorf("unexpected leaves: %v", visited)
	}

	if err := DeleteLeaves(db, MustParsePrefix("15d24")); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if got := db.Len(); got != 1 {
		t.Errorf("unexpected number of remaining leaves: %d", got)
	}
	if _, found, _ := db.Get(keys[3][:]); !found {
		t.Errorf("unrelated leaf was deleted")
	}
}

func TestLeaves_IterateRejectsMalformedKeys(t *testing.T) {
	db := memory.New()
	db.Put([]byte{1, 2}, []byte{1})
	err := IterateLeaves(db, Prefix{}, func(common.Hash, []byte) error { return nil })
	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected invalid key error, got %v", err)
	}
}
