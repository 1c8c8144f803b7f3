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
	"fmt"

	"github.com/Fantom-foundation/statesync/backend/bucket"
	"github.com/Fantom-foundation/statesync/common"
	"github.com/Fantom-foundation/statesync/database/mpt"
	"github.com/Fantom-foundation/statesync/database/sync"
	"go.uber.org/zap"
)

const (
	ErrNoOpenBlock      = common.ConstError("no block under construction")
	ErrBlockAlreadyOpen = common.ConstError("block already under construction")
	ErrNotSynced        = common.ConstError("state is not synced")
)

// Miner is a node producing new blocks. Accounts created while a block is
// open become visible to other nodes once the block is sealed.
type Miner struct {
	*Node
	block    uint32
	open     bool
	accounts int
}

// NewMiner creates a miner whose database content is the state of the given
// block.
func NewMiner(db bucket.Bucket, hints sync.Hints, block uint32, opts ...Option) (*Miner, error) {
	n, err := NewNode(db, hints, &block, opts...)
	if err != nil {
		return nil, err
	}
	return &Miner{Node: n}, nil
}

// NewBlock opens the block following the current one.
func (m *Miner) NewBlock() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open {
		return ErrBlockAlreadyOpen
	}
	synced := m.state.SyncedBlock()
	if synced < 0 {
		return ErrNotSynced
	}
	m.block = uint32(synced) + 1
	m.open = true
	m.accounts = 0
	return nil
}

// CreateAccount adds an account to the open block. The account is keyed by
// the hash of its address.
func (m *Miner) CreateAccount(address common.Address, account *mpt.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return ErrNoOpenBlock
	}
	if err := m.state.Put(common.Keccak256ForAddress(address), account.EncodeRLP()); err != nil {
		return fmt.Errorf("failed to create account %x; %w", address, err)
	}
	m.accounts++
	return nil
}

// SealBlock certifies the database content for the open block.
func (m *Miner) SealBlock() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return ErrNoOpenBlock
	}
	if err := m.state.InitFromDb(m.block); err != nil {
		return fmt.Errorf("failed to seal block %d; %w", m.block, err)
	}
	m.open = false
	m.log.Info("sealed block", zap.Uint32("block", m.block), zap.Int("accounts", m.accounts))
	return nil
}
