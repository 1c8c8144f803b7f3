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

	"github.com/Fantom-foundation/statesync/common"
	"github.com/Fantom-foundation/statesync/database/mpt/rlp"
	"github.com/holiman/uint256"
)

// Account is the value stored in the state trie for each account. The trie
// key of an account is the Keccak256 hash of its address.
type Account struct {
	Nonce       uint64
	Balance     uint256.Int
	StorageRoot common.Hash
	CodeHash    common.Hash
}

// NewAccount creates an account without storage and code.
func NewAccount(nonce uint64, balance *uint256.Int) Account {
	res := Account{
		Nonce:       nonce,
		StorageRoot: common.EmptyStringHash,
		CodeHash:    common.EmptyStringHash,
	}
	res.Balance.Set(balance)
	return res
}

// EncodeRLP produces the RLP list [nonce, balance, storage root, code hash].
func (a *Account) EncodeRLP() []byte {
	return rlp.Encode(rlp.List{Items: []rlp.Item{
		rlp.Uint64{Value: a.Nonce},
		rlp.Uint256{Value: &a.Balance},
		rlp.Hash{Hash: a.StorageRoot},
		rlp.Hash{Hash: a.CodeHash},
	}})
}

// DecodeAccount parses an account produced by EncodeRLP.
func DecodeAccount(data []byte) (Account, error) {
	var res Account
	item, err := rlp.Decode(data)
	if err != nil {
		return res, fmt.Errorf("failed to decode account; %w", err)
	}
	list, err := rlp.AsList(item, 4)
	if err != nil {
		return res, fmt.Errorf("invalid account encoding; %w", err)
	}
	var fields [4]rlp.String
	for i := range fields {
		if fields[i], err = rlp.AsString(list.Items[i]); err != nil {
			return res, fmt.Errorf("invalid account field %d; %w", i, err)
		}
	}
	if res.Nonce, err = fields[0].Uint64(); err != nil {
		return res, fmt.Errorf("invalid nonce; %w", err)
	}
	balance, err := fields[1].Uint256()
	if err != nil {
		return res, fmt.Errorf("invalid balance; %w", err)
	}
	res.Balance.Set(balance)
	if res.StorageRoot, err = fields[2].Hash(); err != nil {
		return res, fmt.Errorf("invalid storage root; %w", err)
	}
	if res.CodeHash, err = fields[3].Hash(); err != nil {
		return res, fmt.Errorf("invalid code hash; %w", err)
	}
	return res, nil
}
