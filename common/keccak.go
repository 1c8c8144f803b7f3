// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"sync"

	"golang.org/x/crypto/sha3"
)

// EmptyStringHash is the Keccak256 hash of the empty byte string. It is the
// digest of any empty leaf range.
var EmptyStringHash = Keccak256(nil)

var keccakHasherPool = sync.Pool{New: func() any { return sha3.NewLegacyKeccak256() }}

type keccakHasher interface {
	Reset()
	Write(in []byte) (int, error)
	Read(out []byte) (int, error)
}

// Keccak256 computes the legacy Keccak-256 hash used by Ethereum.
func Keccak256(data []byte) Hash {
	hasher := keccakHasherPool.Get().(keccakHasher)
	hasher.Reset()
	hasher.Write(data)
	var res Hash
	hasher.Read(res[:])
	keccakHasherPool.Put(hasher)
	return res
}

// Keccak256ForAddress computes the trie key of an account.
func Keccak256ForAddress(addr Address) Hash {
	return Keccak256(addr[:])
}

// Keccak256Hasher is a streaming Keccak-256 hasher. Unlike Keccak256 it owns
// its state and may be fed with data in several steps.
type Keccak256Hasher struct {
	hasher keccakHasher
}

func NewKeccak256Hasher() *Keccak256Hasher {
	return &Keccak256Hasher{hasher: sha3.NewLegacyKeccak256().(keccakHasher)}
}

func (h *Keccak256Hasher) Write(data []byte) {
	h.hasher.Write(data)
}

// Sum returns the hash of all data written so far and resets the hasher.
func (h *Keccak256Hasher) Sum() Hash {
	var res Hash
	h.hasher.Read(res[:])
	h.hasher.Reset()
	return res
}
