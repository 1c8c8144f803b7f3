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
	"math/rand"

	"github.com/Fantom-foundation/statesync/backend/bucket"
	"github.com/Fantom-foundation/statesync/common"
	"github.com/Fantom-foundation/statesync/database/mpt"
	"github.com/holiman/uint256"
)

const finney = 1_000_000_000_000_000

// DustGenerator produces random accounts with a small balance.
type DustGenerator struct {
	rnd *rand.Rand
}

func NewDustGenerator(seed int64) *DustGenerator {
	return &DustGenerator{rnd: rand.New(rand.NewSource(seed))}
}

func (g *DustGenerator) RandomAddress() common.Address {
	var res common.Address
	g.rnd.Read(res[:])
	return res
}

// RandomAccount creates an account with a balance in [1, 1 finney] wei.
func (g *DustGenerator) RandomAccount() mpt.Account {
	return mpt.NewAccount(0, uint256.NewInt(uint64(g.rnd.Int63n(finney))+1))
}

// Generate stores the given number of random accounts into the bucket.
func (g *DustGenerator) Generate(db bucket.Bucket, count int) error {
	i := 0
	return db.PutAll(func() ([]byte, []byte, bool) {
		if i >= count {
			return nil, nil, false
		}
		i++
		key := common.Keccak256ForAddress(g.RandomAddress())
		account := g.RandomAccount()
		return key[:], account.EncodeRLP(), true
	})
}
