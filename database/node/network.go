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
	"fmt"
	gosync "sync"

	"github.com/Fantom-foundation/statesync/common"
	"github.com/Fantom-foundation/statesync/database/sync"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ErrUnknownAddress is returned for calls to addresses without a server.
const ErrUnknownAddress = common.ConstError("unknown address")

// Address is used like an IP address in the in-memory network.
type Address int

// Server handles serialized requests received through a network.
type Server interface {
	Serve(ctx context.Context, request []byte) ([]byte, error)
}

// Network is simulating the internet, allowing servers to join and leave,
// and only exchanging messages in serialized form. In particular, it is not
// possible to get a reference to another server.
type Network interface {
	// Register adds a server to the network and returns its address.
	Register(Server) Address

	// Unregister removes a server from the network.
	Unregister(Server)

	// GetAllAddresses retrieves the addresses of all registered servers in
	// ascending order.
	GetAllAddresses() []Address

	// Call sends the message to the given address and waits for the response.
	Call(ctx context.Context, address Address, message []byte) ([]byte, error)
}

// MemoryNetwork is an in-memory, single process implementation of a network.
type MemoryNetwork struct {
	mu      gosync.Mutex
	servers map[Address]Server
	next    Address
}

func NewMemoryNetwork() *MemoryNetwork {
	return &MemoryNetwork{servers: map[Address]Server{}}
}

func (n *MemoryNetwork) Register(server Server) Address {
	n.mu.Lock()
	defer n.mu.Unlock()
	for address, cur := range n.servers {
		if cur == server {
			return address
		}
	}
	address := n.next
	n.next++
	n.servers[address] = server
	return address
}

func (n *MemoryNetwork) Unregister(server Server) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for address, cur := range n.servers {
		if cur == server {
			delete(n.servers, address)
		}
	}
}

func (n *MemoryNetwork) GetAllAddresses() []Address {
	n.mu.Lock()
	res := maps.Keys(n.servers)
	n.mu.Unlock()
	slices.Sort(res)
	return res
}

func (n *MemoryNetwork) Call(ctx context.Context, address Address, message []byte) ([]byte, error) {
	n.mu.Lock()
	server, found := n.servers[address]
	n.mu.Unlock()
	if !found {
		return nil, fmt.Errorf("%w: %d", ErrUnknownAddress, address)
	}
	return server.Serve(ctx, message)
}

// Serve decodes a request, serves it from the local state and encodes the
// reply.
func (n *Node) Serve(ctx context.Context, message []byte) ([]byte, error) {
	request, err := sync.DecodeRequest(message)
	if err != nil {
		return nil, err
	}
	switch r := request.(type) {
	case *sync.GetLeavesRequest:
		reply, err := n.GetStateLeaves(ctx, r)
		if err != nil {
			return nil, err
		}
		return sync.EncodeLeavesReply(&reply), nil
	case *sync.GetNodeRequest:
		reply, err := n.GetStateNodes(ctx, r)
		if err != nil {
			return nil, err
		}
		return sync.EncodeNodeReply(reply), nil
	}
	return nil, fmt.Errorf("unsupported request type %T", request)
}

// RemotePeer is a Peer reached through a network. Requests and replies are
// exchanged in their wire encoding.
type RemotePeer struct {
	network Network
	address Address
}

func NewRemotePeer(network Network, address Address) *RemotePeer {
	return &RemotePeer{network: network, address: address}
}

func (p *RemotePeer) GetStateLeaves(ctx context.Context, request *sync.GetLeavesRequest) (sync.LeavesReply, error) {
	data, err := p.call(ctx, request)
	if err != nil {
		return sync.LeavesReply{}, err
	}
	return sync.DecodeLeavesReply(data)
}

func (p *RemotePeer) GetStateNodes(ctx context.Context, request *sync.GetNodeRequest) (*sync.NodeReply, error) {
	data, err := p.call(ctx, request)
	if err != nil {
		return nil, err
	}
	return sync.DecodeNodeReply(data)
}

func (p *RemotePeer) call(ctx context.Context, request sync.Request) ([]byte, error) {
	data, err := sync.EncodeRequest(request)
	if err != nil {
		return nil, err
	}
	return p.network.Call(ctx, p.address, data)
}
