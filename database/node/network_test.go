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
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/Fantom-foundation/statesync/database/mpt"
	"github.com/Fantom-foundation/statesync/database/sync"
	"golang.org/x/sync/errgroup"
)

func TestMemoryNetwork_RegisteredServersAreReachable(t *testing.T) {
	network := NewMemoryNetwork()
	a := newTestMiner(t, 10)
	b := newTestMiner(t, 20)

	addrA := network.Register(a)
	addrB := network.Register(b)
	if addrA == addrB {
		t.Fatalf("servers should have distinct addresses")
	}
	if got := network.Register(a); got != addrA {
		t.Errorf("registering twice should keep the address, wanted %d, got %d", addrA, got)
	}
	if got, want := network.GetAllAddresses(), []Address{addrA, addrB}; !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected addresses, wanted %v, got %v", want, got)
	}

	network.Unregister(a)
	if got, want := network.GetAllAddresses(), []Address{addrB}; !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected addresses, wanted %v, got %v", want, got)
	}
	if _, err := network.Call(context.Background(), addrA, nil); !errors.Is(err, ErrUnknownAddress) {
		t.Errorf("expected %v, got %v", ErrUnknownAddress, err)
	}
}

func TestRemotePeer_ForwardsRequestsInWireFormat(t *testing.T) {
	miner := newTestMiner(t, 300)
	network := NewMemoryNetwork()
	peer := NewRemotePeer(network, network.Register(miner))
	ctx := context.Background()

	request := &sync.GetLeavesRequest{Prefix: mpt.MustParsePrefix("a7")}
	got, err := peer.GetStateLeaves(ctx, request)
	if err != nil {
		t.Fatalf("failed to get leaves: %v", err)
	}
	want, err := miner.GetStateLeaves(ctx, request)
	if err != nil {
		t.Fatalf("failed to get leaves: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected leaves reply, wanted %+v, got %+v", want, got)
	}

	nodes := &sync.GetNodeRequest{Prefixes: []mpt.Prefix{{}, mpt.MustParsePrefix("3")}}
	gotNodes, err := peer.GetStateNodes(ctx, nodes)
	if err != nil {
		t.Fatalf("failed to get nodes: %v", err)
	}
	wantNodes, err := miner.GetStateNodes(ctx, nodes)
	if err != nil {
		t.Fatalf("failed to get nodes: %v", err)
	}
	if !reflect.DeepEqual(gotNodes, wantNodes) {
		t.Errorf("unexpected node reply, wanted %+v, got %+v", wantNodes, gotNodes)
	}

	// requests for newer blocks are answered with nothing
	nodes.BlockNumber = sync.BlockNumber(1000)
	if gotNodes, err = peer.GetStateNodes(ctx, nodes); err != nil || gotNodes != nil {
		t.Errorf("expected empty reply, got %v, %v", gotNodes, err)
	}
}

func TestRemotePeer_ServerErrorsAreForwarded(t *testing.T) {
	miner := newTestMiner(t, 10)
	network := NewMemoryNetwork()
	peer := NewRemotePeer(network, network.Register(miner))

	_, err := peer.GetStateLeaves(context.Background(), &sync.GetLeavesRequest{})
	if !errors.Is(err, sync.ErrUnsupportedRequest) {
		t.Errorf("expected %v, got %v", sync.ErrUnsupportedRequest, err)
	}
	if _, err := miner.Serve(context.Background(), []byte{0x01}); err == nil {
		t.Errorf("malformed requests should be rejected")
	}
}

func TestNetwork_LeechersSyncConcurrently(t *testing.T) {
	miner := newTestMiner(t, 1500)
	network := NewMemoryNetwork()
	address := network.Register(miner)

	leechers := make([]*Node, 4)
	for i := range leechers {
		leechers[i] = newTestLeecher(t, WithName(fmt.Sprintf("leecher-%d", i)))
		network.Register(leechers[i])
	}

	var group errgroup.Group
	for _, leecher := range leechers {
		leecher := leecher
		group.Go(func() error {
			peer := NewRemotePeer(network, address)
			stats := sync.Stats{}
			for round := 0; round < 1000 && !leecher.SyncDone(); round++ {
				if err := leecher.Sync(context.Background(), peer, &stats, 16_000); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		t.Fatalf("failed to sync: %v", err)
	}
	for _, leecher := range leechers {
		if !leecher.SyncDone() {
			t.Errorf("%s is not synced", leecher.Name())
		}
		checkSameState(t, miner.Node, leecher)
	}

	// synced leechers serve the state to others
	late := newTestLeecher(t)
	peer := NewRemotePeer(network, network.GetAllAddresses()[1])
	if err := late.Sync(context.Background(), peer, &sync.Stats{}, math.MaxUint64); err != nil {
		t.Fatalf("failed to sync from leecher: %v", err)
	}
	checkSameState(t, miner.Node, late)
}
