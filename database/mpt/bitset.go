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
	"math/bits"
)

// Bitset16 holds one bit per nibble of a branch node. Bit i belongs to
// nibble i.
type Bitset16 uint16

// AllSet is the bitset with all 16 bits set.
const AllSet Bitset16 = 0xFFFF

func (b Bitset16) Get(n Nibble) bool {
	return b&(1<<n) != 0
}

func (b *Bitset16) Set(n Nibble, value bool) {
	if value {
		*b |= 1 << n
	} else {
		*b &^= 1 << n
	}
}

func (b Bitset16) All() bool {
	return b == AllSet
}

func (b Bitset16) None() bool {
	return b == 0
}

func (b Bitset16) Count() int {
	return bits.OnesCount16(uint16(b))
}

// String prints the bits from nibble f down to nibble 0.
func (b Bitset16) String() string {
	return fmt.Sprintf("%016b", uint16(b))
}
