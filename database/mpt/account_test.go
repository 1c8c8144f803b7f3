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
	"bytes"
	"testing"

	"github.com/Fantom-foundation/statesync/common"
	"github.com/Fantom-foundation/statesync/database/mpt/rlp"
	geth "github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

func TestAccount_EncodingMatchesGeth(t *testing.T) {
	balance := new(uint256.Int).Mul(uint256.NewInt(1_000_000_000), uint256.NewInt(1_000_000_000_000))
	account := NewAccount(12, balance)
	want, err := geth.EncodeToBytes([]any{
		uint64(12),
		balance,
		common.EmptyStringHash[:],
		common.EmptyStringHash[:],
	})
	if err != nil {
		t.Fatalf("failed to encode reference: %v", err)
	}
	if got := account.EncodeRLP(); !bytes.Equal(want, got) {
		t.Errorf("unexpected encoding, wanted %x, got %x", want, got)
	}
}

func TestAccount_DecodeRestoresEncodedAccount(t *testing.T) {
	account := NewAccount(7, uint256.NewInt(1<<40))
	account.CodeHash = common.Hash{1, 2, 3}
	restored, err := DecodeAccount(account.EncodeRLP())
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if restored.Nonce != account.Nonce || !restored.Balance.Eq(&account.Balance) ||
		restored.StorageRoot != account.StorageRoot || restored.CodeHash != account.CodeHash {
		t.Errorf("unexpected account, wanted %v, got %v", account, restored)
	}
}

func TestAccount_DecodeRejectsMalformedInput(t *testing.T) {
	tests := [][]byte{
		{},
		rlp.Encode(rlp.String{Str: []byte{1}}),
		rlp.Encode(rlp.List{Items: []rlp.Item{rlp.Uint64{Value: 1}}}),
		rlp.Encode(rlp.List{Items: []rlp.Item{rlp.Uint64{Value: 1}, rlp.Uint64{Value: 1}, rlp.String{}, rlp.String{}}}),
	}
	for _, test := range tests {
		if _, err := DecodeAccount(test); err == nil {
			t.Errorf("expected error for %x", test)
		}
	}
}
