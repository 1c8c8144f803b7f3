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

import (
	"testing"

	"github.com/Fantom-foundation/statesync/backend/bucket"
	"github.com/Fantom-foundation/statesync/backend/bucket/memory"
	"github.com/Fantom-foundation/statesync/common"
	"github.com/Fantom-foundation/statesync/database/mpt"
)

func TestDustGenerator_GeneratesDustAccounts(t *testing.T) {
	db := memory.New()
	if err := NewDustGenerator(1).Generate(db, 100); err != nil {
		t.Fatalf("failed to generate: %v", err)
	}
	count, err := bucket.Count(db)
	if err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if count != 100 {
		t.Errorf("unexpected number of accounts, wanted 100, got %d", count)
	}
	err = mpt.IterateLeaves(db, mpt.Prefix{}, func(_ common.Hash, val []byte) error {
		account, err := mpt.DecodeAccount(val)
		if err != nil {
			return err
		}
		if account.Balance.IsZero() || account.Balance.Uint64() > finney {
			t.Errorf("balance out of range: %v", &account.Balance)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("failed to iterate accounts: %v", err)
	}
}

func TestDustGenerator_IsDeterministic(t *testing.T) {
	a, b := memory.New(), memory.New()
	if err := NewDustGenerator(5).Generate(a, 50); err != nil {
		t.Fatalf("failed to generate: %v", err)
	}
	if err := NewDustGenerator(5).Generate(b, 50); err != nil {
		t.Fatalf("failed to generate: %v", err)
	}
	same, err := bucket.HasSameData(a, b)
	if err != nil {
		t.Fatalf("failed to compare: %v", err)
	}
	if !same {
		t.Errorf("generators with the same seed should produce the same accounts")
	}
}
