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
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/Fantom-foundation/statesync/common"
)

// MaxPrefixSize is the maximum number of nibbles of a Prefix.
const MaxPrefixSize = 16

const (
	ErrPrefixTooLong  = common.ConstError("prefix too long")
	ErrNonZeroPadding = common.ConstError("non-zero padding")
)

// Prefix is a sequence of up to 16 nibbles identifying a subtree of the trie.
// The nibbles are packed into a 64-bit value, left-aligned, 4 bits each. Bits
// beyond the prefix size are always zero.
type Prefix struct {
	size uint8
	val  uint64
}

// NewPrefix creates a prefix of the given size. The value must be zero in all
// bits not covered by the prefix.
func NewPrefix(size int, val uint64) (Prefix, error) {
	if size < 0 || size > MaxPrefixSize {
		return Prefix{}, fmt.Errorf("%w: %d nibbles", ErrPrefixTooLong, size)
	}
	if val&^mask(size) != 0 {
		return Prefix{}, fmt.Errorf("%w: %016x with size %d", ErrNonZeroPadding, val, size)
	}
	return Prefix{size: uint8(size), val: val}, nil
}

// PrefixFromHash derives a prefix of the given size from the leading nibbles
// of the hash.
func PrefixFromHash(size int, hash common.Hash) (Prefix, error) {
	if size < 0 || size > MaxPrefixSize {
		return Prefix{}, fmt.Errorf("%w: %d nibbles", ErrPrefixTooLong, size)
	}
	return Prefix{size: uint8(size), val: binary.BigEndian.Uint64(hash[:8]) & mask(size)}, nil
}

// ParsePrefix parses a prefix from a string of hex digits, one per nibble.
func ParsePrefix(s string) (Prefix, error) {
	if len(s) > MaxPrefixSize {
		return Prefix{}, fmt.Errorf("%w: %q", ErrPrefixTooLong, s)
	}
	res := Prefix{size: uint8(len(s))}
	for i, r := range s {
		n, err := NibbleFromRune(r)
		if err != nil {
			return Prefix{}, fmt.Errorf("failed to parse prefix %q; %w", s, err)
		}
		res.Set(i, n)
	}
	return res, nil
}

// MustParsePrefix is like ParsePrefix but panics on malformed input. It is
// intended for prefix literals.
func MustParsePrefix(s string) Prefix {
	res, err := ParsePrefix(s)
	if err != nil {
		panic(err)
	}
	return res
}

func mask(size int) uint64 {
	if size == 0 {
		return 0
	}
	return ^uint64(0) << (64 - 4*size)
}

func (p Prefix) Size() int {
	return int(p.size)
}

func (p Prefix) Val() uint64 {
	return p.val
}

// Nibble returns the nibble at the given position, 0 being the most
// significant one.
func (p Prefix) Nibble(pos int) Nibble {
	return Nibble(p.val >> (60 - 4*pos) & 0xF)
}

// Last returns the last nibble of a non-empty prefix.
func (p Prefix) Last() Nibble {
	return p.Nibble(int(p.size) - 1)
}

// Set updates the nibble at the given position, which must be within the
// prefix.
func (p *Prefix) Set(pos int, n Nibble) {
	shift := 60 - 4*pos
	p.val = p.val&^(uint64(0xF)<<shift) | uint64(n&0xF)<<shift
}

// Matches checks whether the hash starts with the nibbles of this prefix.
func (p Prefix) Matches(hash common.Hash) bool {
	padded := p.Padded()
	full := int(p.size) / 2
	for i := 0; i < full; i++ {
		if padded[i] != hash[i] {
			return false
		}
	}
	if p.size%2 == 1 {
		return padded[full]>>4 == hash[full]>>4
	}
	return true
}

// Padded returns the prefix bits followed by zeros as a hash. It is the
// smallest key covered by the prefix.
func (p Prefix) Padded() common.Hash {
	var res common.Hash
	binary.BigEndian.PutUint64(res[:8], p.val)
	return res
}

// Add increments the prefix by the given number of units of its last nibble.
// Exceeding the largest prefix of this size wraps around to zero; callers
// detect a full sweep through Val() == 0.
func (p Prefix) Add(inc uint64) Prefix {
	if p.size == 0 {
		return p
	}
	p.val += inc << (64 - 4*uint(p.size))
	return p
}

// Next is equivalent to Add(1).
func (p Prefix) Next() Prefix {
	return p.Add(1)
}

// Truncate cuts the prefix to the given size, which must not exceed the
// current one.
func (p Prefix) Truncate(size int) Prefix {
	return Prefix{size: uint8(size), val: p.val & mask(size)}
}

// Extend appends zero nibbles up to the given size.
func (p Prefix) Extend(size int) Prefix {
	return Prefix{size: uint8(size), val: p.val}
}

// Child appends the given nibble to the prefix.
func (p Prefix) Child(n Nibble) Prefix {
	res := p.Extend(int(p.size) + 1)
	res.Set(int(p.size), n)
	return res
}

// Index returns the value of the leading level nibbles of the prefix. It is
// the position of the covering node in a tree level.
func (p Prefix) Index(level int) uint64 {
	return p.val >> (64 - 4*uint(level))
}

// KeyRange returns the bounds [lower, upper) of the keys covered by this
// prefix. The upper bound is nil if the range extends to the end of the key
// space.
func (p Prefix) KeyRange() (lower, upper []byte) {
	padded := p.Padded()
	lower = padded[:]
	if next := p.Next(); next.val != 0 {
		nextPadded := next.Padded()
		upper = nextPadded[:]
	}
	return lower, upper
}

// String returns the nibbles as hex digits.
func (p Prefix) String() string {
	var builder strings.Builder
	for i := 0; i < int(p.size); i++ {
		builder.WriteRune(p.Nibble(i).Rune())
	}
	return builder.String()
}
