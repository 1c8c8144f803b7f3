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
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/Fantom-foundation/statesync/backend/bucket/memory"
	"github.com/Fantom-foundation/statesync/common"
	"github.com/Fantom-foundation/statesync/database/mpt"
	"github.com/Fantom-foundation/statesync/database/sync"
	"github.com/c2h5oh/datasize"
	"github.com/holiman/uint256"
)

func TestMiner_SealedBlocksAreServed(t *testing.T) {
	const block = 46732
	hints := sync.DefaultHints()
	hints.MaxMemory = 8 * datasize.MB
	miner, err := NewMiner(memory.New(), hints, block)
	if err != nil {
		t.Fatalf("failed to create miner: %v", err)
	}

	address := common.Address{0x0a, 0x23, 0x45, 0x67, 0x90, 0x1c, 0x34, 0x56, 0x79, 0x01, 0x23, 0x45, 0x67, 0x90, 0x01, 0x77, 0x45, 0x67, 0xfb, 0xb3}
	account := mpt.NewAccount(0, uint256.NewInt(54823904))
	key := common.Keccak256ForAddress(address)
	prefix, err := mpt.PrefixFromHash(2, key)
	if err != nil {
		t.Fatalf("failed to create prefix: %v", err)
	}
	request := &sync.GetLeavesRequest{Prefix: prefix}

	reply, err := miner.GetStateLeaves(context.Background(), request)
	if err != nil {
		t.Fatalf("failed to get leaves: %v", err)
	}
	if reply.Status != sync.StatusOK || reply.BlockNumber != block {
		t.Errorf("unexpected reply for empty state: %v at block %d", reply.Status, reply.BlockNumber)
	}
	if !reply.HasLeaves || len(reply.Leaves) != 0 {
		t.Errorf("expected empty leaves, got %v", reply.Leaves)
	}

	if err := miner.NewBlock(); err != nil {
		t.Fatalf("failed to open block: %v", err)
	}
	if err := miner.CreateAccount(address, &account); err != nil {
		t.Fatalf("failed to create account: %v", err)
	}
	if err := miner.SealBlock(); err != nil {
		t.Fatalf("failed to seal block: %v", err)
	}

	reply, err = miner.GetStateLeaves(context.Background(), request)
	if err != nil {
		t.Fatalf("failed to get leaves: %v", err)
	}
	if reply.Status != sync.StatusOK || reply.BlockNumber != block+1 {
		t.Errorf("unexpected reply for new block: %v at block %d", reply.Status, reply.BlockNumber)
	}
	if len(reply.Leaves) != 1 {
		t.Fatalf("expected a single leaf, got %d", len(reply.Leaves))
	}
	leaf := reply.Leaves[0]
	if leaf.Key != key {
		t.Errorf("unexpected key, wanted %v, got %v", key, leaf.Key)
	}
	if want := account.EncodeRLP(); !bytes.Equal(leaf.Value, want) {
		t.Errorf("unexpected value, wanted %x, got %x", want, leaf.Value)
	}
}

func TestMiner_OpenBlockIsNotServed(t *testing.T) {
	miner := newTestMiner(t, 10)
	if err := miner.NewBlock(); err != nil {
		t.Fatalf("failed to open block: %v", err)
	}
	account := mpt.NewAccount(1, uint256.NewInt(1))
	if err := miner.CreateAccount(common.Address{1}, &account); err != nil {
		t.Fatalf("failed to create account: %v", err)
	}
	reply, err := miner.GetStateNodes(context.Background(), &sync.GetNodeRequest{Prefixes: []mpt.Prefix{{}}})
	if err != nil {
		t.Fatalf("failed to get nodes: %v", err)
	}
	if reply != nil {
		t.Errorf("open block should not be served, got %v", reply)
	}
}

func TestMiner_BlockLifecycleIsEnforced(t *testing.T) {
	miner := newTestMiner(t, 10)
	account := mpt.NewAccount(0, uint256.NewInt(1))

	if err := miner.CreateAccount(common.Address{}, &account); !errors.Is(err, ErrNoOpenBlock) {
		t.Errorf("expected %v, got %v", ErrNoOpenBlock, err)
	}
	if err := miner.SealBlock(); !errors.Is(err, ErrNoOpenBlock) {
		t.Errorf("expected %v, got %v", ErrNoOpenBlock, err)
	}
	if err := miner.NewBlock(); err != nil {
		t.Fatalf("failed to open block: %v", err)
	}
	if err := miner.NewBlock(); !errors.Is(err, ErrBlockAlreadyOpen) {
		t.Errorf("expected %v, got %v", ErrBlockAlreadyOpen, err)
	}
	if err := miner.SealBlock(); err != nil {
		t.Fatalf("failed to seal block: %v", err)
	}
	if got := miner.SyncedBlock(); got != 101 {
		t.Errorf("unexpected block, wanted 101, got %d", got)
	}
}

func TestMiner_UncertifiedMinerCanNotOpenBlocks(t *testing.T) {
	miner := newTestMiner(t, 10)
	if err := miner.Put(common.Hash{1}, []byte{1}); err != nil {
		t.Fatalf("failed to put: %v", err)
	}
	if err := miner.NewBlock(); !errors.Is(err, ErrNotSynced) {
		t.Errorf("expected %v, got %v", ErrNotSynced, err)
	}
}
