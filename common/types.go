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
	"encoding/hex"
	"fmt"
	"strings"
)

// HashSize is the number of bytes of a Hash.
const HashSize = 32

// AddressSize is the number of bytes of an Address.
const AddressSize = 20

// Hash is the 32-byte digest used both as trie key and as content hash.
type Hash [HashSize]byte

// Address is the 20-byte identifier of an account. Its trie key is the
// Keccak256 hash of the address.
type Address [AddressSize]byte

const ErrInvalidHexLength = ConstError("invalid length of hex string")

func (h Hash) String() string {
	return fmt.Sprintf("%x", h[:])
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func (a Address) String() string {
	return fmt.Sprintf("%x", a[:])
}

// HashFromHex parses a 64 character hex string, optionally prefixed by 0x.
func HashFromHex(s string) (Hash, error) {
	var res Hash
	if err := fromHex(s, res[:]); err != nil {
		return Hash{}, fmt.Errorf("failed to parse hash %q; %w", s, err)
	}
	return res, nil
}

// AddressFromHex parses a 40 character hex string, optionally prefixed by 0x.
func AddressFromHex(s string) (Address, error) {
	var res Address
	if err := fromHex(s, res[:]); err != nil {
		return Address{}, fmt.Errorf("failed to parse address %q; %w", s, err)
	}
	return res, nil
}

// MustHashFromHex is like HashFromHex but panics on malformed input. It is
// intended for literals in tests and tools.
func MustHashFromHex(s string) Hash {
	res, err := HashFromHex(s)
	if err != nil {
		panic(err)
	}
	return res
}

func fromHex(s string, trg []byte) error {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 2*len(trg) {
		return ErrInvalidHexLength
	}
	_, err := hex.Decode(trg, []byte(s))
	return err
}
