// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package sync

import (
	"fmt"

	"github.com/Fantom-foundation/statesync/common"
	"github.com/Fantom-foundation/statesync/database/mpt"
	"github.com/Fantom-foundation/statesync/database/mpt/rlp"
)

// Messages are encoded as RLP lists. Optional fields are encoded as lists
// with zero or one element. Requests are wrapped in an envelope carrying the
// kind of the request.

const (
	kindGetLeaves = 1
	kindGetNodes  = 2
)

// EncodeRequest serializes a request including its kind.
func EncodeRequest(request Request) ([]byte, error) {
	switch r := request.(type) {
	case *GetLeavesRequest:
		return rlp.Encode(rlp.List{Items: []rlp.Item{rlp.Uint64{Value: kindGetLeaves}, getLeavesRequestItem(r)}}), nil
	case *GetNodeRequest:
		return rlp.Encode(rlp.List{Items: []rlp.Item{rlp.Uint64{Value: kindGetNodes}, getNodeRequestItem(r)}}), nil
	}
	return nil, fmt.Errorf("%w: unknown request type %T", ErrMalformedMessage, request)
}

// DecodeRequest parses a request produced by EncodeRequest.
func DecodeRequest(data []byte) (Request, error) {
	list, err := decodeList(data, 2)
	if err != nil {
		return nil, err
	}
	kind, err := toUint64(list.Items[0])
	if err != nil {
		return nil, err
	}
	switch kind {
	case kindGetLeaves:
		return parseGetLeavesRequest(list.Items[1])
	case kindGetNodes:
		return parseGetNodeRequest(list.Items[1])
	}
	return nil, fmt.Errorf("%w: unknown request kind %d", ErrMalformedMessage, kind)
}

// EncodeLeavesReply serializes a leaves reply.
func EncodeLeavesReply(reply *LeavesReply) []byte {
	proofs := make([]rlp.Item, len(reply.Proof))
	for i := range reply.Proof {
		proofs[i] = proofItem(&reply.Proof[i])
	}
	var leaves []rlp.Item
	if reply.HasLeaves {
		items := make([]rlp.Item, len(reply.Leaves))
		for i, leaf := range reply.Leaves {
			items[i] = rlp.List{Items: []rlp.Item{rlp.Hash{Hash: leaf.Key}, rlp.String{Str: leaf.Value}}}
		}
		leaves = []rlp.Item{rlp.List{Items: items}}
	}
	return rlp.Encode(rlp.List{Items: []rlp.Item{
		rlp.Uint64{Value: uint64(reply.Status)},
		rlp.Uint64{Value: uint64(reply.BlockNumber)},
		rlp.List{Items: proofs},
		rlp.List{Items: leaves},
	}})
}

// DecodeLeavesReply parses a reply produced by EncodeLeavesReply.
func DecodeLeavesReply(data []byte) (LeavesReply, error) {
	var res LeavesReply
	list, err := decodeList(data, 4)
	if err != nil {
		return res, err
	}
	status, err := toUint64(list.Items[0])
	if err != nil {
		return res, err
	}
	if status > uint64(StatusTooManyLeaves) {
		return res, fmt.Errorf("%w: unknown status %d", ErrMalformedMessage, status)
	}
	res.Status = Status(status)
	if res.BlockNumber, err = toUint32(list.Items[1]); err != nil {
		return res, err
	}
	proofs, err := asList(list.Items[2], -1)
	if err != nil {
		return res, err
	}
	res.Proof = make([]Proof, len(proofs.Items))
	for i, item := range proofs.Items {
		if res.Proof[i], err = parseProof(item); err != nil {
			return res, err
		}
	}
	leaves, err := parseOptional(list.Items[3])
	if err != nil || leaves == nil {
		return res, err
	}
	leafList, err := asList(leaves, -1)
	if err != nil {
		return res, err
	}
	res.HasLeaves = true
	res.Leaves = make([]Leaf, len(leafList.Items))
	for i, item := range leafList.Items {
		pair, err := asList(item, 2)
		if err != nil {
			return res, err
		}
		if res.Leaves[i].Key, err = toHash(pair.Items[0]); err != nil {
			return res, err
		}
		value, err := asString(pair.Items[1])
		if err != nil {
			return res, err
		}
		res.Leaves[i].Value = value.Str
	}
	return res, nil
}

// EncodeNodeReply serializes a node reply. A nil reply is encoded as well.
func EncodeNodeReply(reply *NodeReply) []byte {
	if reply == nil {
		return rlp.Encode(rlp.List{})
	}
	nodes := make([]rlp.Item, len(reply.Nodes))
	for i, node := range reply.Nodes {
		if node == nil {
			nodes[i] = rlp.List{}
		} else {
			nodes[i] = rlp.List{Items: []rlp.Item{proofItem(node)}}
		}
	}
	return rlp.Encode(rlp.List{Items: []rlp.Item{
		rlp.Uint64{Value: uint64(reply.BlockNumber)},
		rlp.List{Items: nodes},
	}})
}

// DecodeNodeReply parses a reply produced by EncodeNodeReply.
func DecodeNodeReply(data []byte) (*NodeReply, error) {
	list, err := decodeList(data, -1)
	if err != nil {
		return nil, err
	}
	if len(list.Items) == 0 {
		return nil, nil
	}
	if len(list.Items) != 2 {
		return nil, fmt.Errorf("%w: node reply with %d fields", ErrMalformedMessage, len(list.Items))
	}
	res := &NodeReply{}
	if res.BlockNumber, err = toUint32(list.Items[0]); err != nil {
		return nil, err
	}
	nodes, err := asList(list.Items[1], -1)
	if err != nil {
		return nil, err
	}
	res.Nodes = make([]*Proof, len(nodes.Items))
	for i, item := range nodes.Items {
		node, err := parseOptional(item)
		if err != nil {
			return nil, err
		}
		if node == nil {
			continue
		}
		proof, err := parseProof(node)
		if err != nil {
			return nil, err
		}
		res.Nodes[i] = &proof
	}
	return res, nil
}

func getLeavesRequestItem(r *GetLeavesRequest) rlp.Item {
	var hash []rlp.Item
	if r.HashOfLeaves != nil {
		hash = []rlp.Item{rlp.Hash{Hash: *r.HashOfLeaves}}
	}
	return rlp.List{Items: []rlp.Item{
		accountItem(r.Account),
		prefixItem(r.Prefix),
		blockItem(r.BlockNumber),
		rlp.Uint64{Value: uint64(r.FromLevel)},
		rlp.List{Items: hash},
	}}
}

func parseGetLeavesRequest(item rlp.Item) (*GetLeavesRequest, error) {
	list, err := asList(item, 5)
	if err != nil {
		return nil, err
	}
	res := &GetLeavesRequest{}
	if res.Account, err = parseAccount(list.Items[0]); err != nil {
		return nil, err
	}
	if res.Prefix, err = parsePrefix(list.Items[1]); err != nil {
		return nil, err
	}
	if res.BlockNumber, err = parseBlock(list.Items[2]); err != nil {
		return nil, err
	}
	fromLevel, err := toUint64(list.Items[3])
	if err != nil {
		return nil, err
	}
	if fromLevel > mpt.MaxPrefixSize {
		return nil, fmt.Errorf("%w: from level %d", ErrMalformedMessage, fromLevel)
	}
	res.FromLevel = uint8(fromLevel)
	hash, err := parseOptional(list.Items[4])
	if err != nil {
		return nil, err
	}
	if hash != nil {
		h, err := toHash(hash)
		if err != nil {
			return nil, err
		}
		res.HashOfLeaves = &h
	}
	return res, nil
}

func getNodeRequestItem(r *GetNodeRequest) rlp.Item {
	prefixes := make([]rlp.Item, len(r.Prefixes))
	for i, p := range r.Prefixes {
		prefixes[i] = prefixItem(p)
	}
	return rlp.List{Items: []rlp.Item{
		accountItem(r.Account),
		rlp.List{Items: prefixes},
		blockItem(r.BlockNumber),
	}}
}

func parseGetNodeRequest(item rlp.Item) (*GetNodeRequest, error) {
	list, err := asList(item, 3)
	if err != nil {
		return nil, err
	}
	res := &GetNodeRequest{}
	if res.Account, err = parseAccount(list.Items[0]); err != nil {
		return nil, err
	}
	prefixes, err := asList(list.Items[1], -1)
	if err != nil {
		return nil, err
	}
	res.Prefixes = make([]mpt.Prefix, len(prefixes.Items))
	for i, p := range prefixes.Items {
		if res.Prefixes[i], err = parsePrefix(p); err != nil {
			return nil, err
		}
	}
	if res.BlockNumber, err = parseBlock(list.Items[2]); err != nil {
		return nil, err
	}
	return res, nil
}

// proofItem encodes a proof like the branch node it describes.
func proofItem(p *Proof) rlp.Item {
	items := make([]rlp.Item, 16)
	for i := range items {
		if p.Empty.Get(mpt.Nibble(i)) {
			items[i] = rlp.String{}
		} else {
			items[i] = rlp.Hash{Hash: p.Hash[i]}
		}
	}
	return rlp.List{Items: items}
}

func parseProof(item rlp.Item) (Proof, error) {
	res := NewProof()
	list, err := asList(item, 16)
	if err != nil {
		return res, err
	}
	for i, cur := range list.Items {
		str, err := asString(cur)
		if err != nil {
			return res, err
		}
		if len(str.Str) == 0 {
			continue
		}
		if res.Hash[i], err = toHash(str); err != nil {
			return res, err
		}
		res.Empty.Set(mpt.Nibble(i), false)
	}
	return res, nil
}

func prefixItem(p mpt.Prefix) rlp.Item {
	return rlp.List{Items: []rlp.Item{rlp.Uint64{Value: uint64(p.Size())}, rlp.Uint64{Value: p.Val()}}}
}

func parsePrefix(item rlp.Item) (mpt.Prefix, error) {
	list, err := asList(item, 2)
	if err != nil {
		return mpt.Prefix{}, err
	}
	size, err := toUint64(list.Items[0])
	if err != nil {
		return mpt.Prefix{}, err
	}
	val, err := toUint64(list.Items[1])
	if err != nil {
		return mpt.Prefix{}, err
	}
	if size > mpt.MaxPrefixSize {
		return mpt.Prefix{}, fmt.Errorf("%w: prefix size %d", ErrMalformedMessage, size)
	}
	res, err := mpt.NewPrefix(int(size), val)
	if err != nil {
		return mpt.Prefix{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	return res, nil
}

func accountItem(account *common.Address) rlp.Item {
	if account == nil {
		return rlp.List{}
	}
	return rlp.List{Items: []rlp.Item{rlp.String{Str: account[:]}}}
}

func parseAccount(item rlp.Item) (*common.Address, error) {
	account, err := parseOptional(item)
	if err != nil || account == nil {
		return nil, err
	}
	str, err := asString(account)
	if err != nil {
		return nil, err
	}
	if len(str.Str) != common.AddressSize {
		return nil, fmt.Errorf("%w: address of %d bytes", ErrMalformedMessage, len(str.Str))
	}
	res := common.Address(str.Str)
	return &res, nil
}

func blockItem(block *uint32) rlp.Item {
	if block == nil {
		return rlp.List{}
	}
	return rlp.List{Items: []rlp.Item{rlp.Uint64{Value: uint64(*block)}}}
}

func parseBlock(item rlp.Item) (*uint32, error) {
	block, err := parseOptional(item)
	if err != nil || block == nil {
		return nil, err
	}
	res, err := toUint32(block)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// parseOptional unwraps a list of zero or one element; nil is returned for
// absent values.
func parseOptional(item rlp.Item) (rlp.Item, error) {
	list, err := asList(item, -1)
	if err != nil {
		return nil, err
	}
	switch len(list.Items) {
	case 0:
		return nil, nil
	case 1:
		return list.Items[0], nil
	}
	return nil, fmt.Errorf("%w: optional value with %d elements", ErrMalformedMessage, len(list.Items))
}

func decodeList(data []byte, size int) (rlp.List, error) {
	item, err := rlp.Decode(data)
	if err != nil {
		return rlp.List{}, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	return asList(item, size)
}

func asList(item rlp.Item, size int) (rlp.List, error) {
	res, err := rlp.AsList(item, size)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	return res, nil
}

func asString(item rlp.Item) (rlp.String, error) {
	res, err := rlp.AsString(item)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	return res, nil
}

func toUint64(item rlp.Item) (uint64, error) {
	str, err := asString(item)
	if err != nil {
		return 0, err
	}
	res, err := str.Uint64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	return res, nil
}

func toUint32(item rlp.Item) (uint32, error) {
	res, err := toUint64(item)
	if err != nil {
		return 0, err
	}
	if res > uint64(^uint32(0)) {
		return 0, fmt.Errorf("%w: block number %d", ErrMalformedMessage, res)
	}
	return uint32(res), nil
}

func toHash(item rlp.Item) (common.Hash, error) {
	str, err := asString(item)
	if err != nil {
		return common.Hash{}, err
	}
	res, err := str.Hash()
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	return res, nil
}
