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

import "github.com/Fantom-foundation/statesync/common"

// Nibble is a 4-bit unsigned integer in the range 0-F. It is a single letter
// used to navigate in the trie structure.
type Nibble byte

// Rune converts a Nibble in a hexa-decimal rune (0-9a-f).
func (n Nibble) Rune() rune {
	if n < 10 {
		return rune('0' + n)
	} else if n < 16 {
		return rune('a' + n - 10)
	} else {
		return '?'
	}
}

// String converts a Nibble in a hexa-decimal string (0-9a-f).
func (n Nibble) String() string {
	return string(n.Rune())
}

const ErrInvalidNibble = common.ConstError("invalid nibble")

// NibbleFromRune parses a hexa-decimal rune (0-9a-f, A-F).
func NibbleFromRune(r rune) (Nibble, error) {
	switch {
	case '0' <= r && r <= '9':
		return Nibble(r - '0'), nil
	case 'a' <= r && r <= 'f':
		return Nibble(r - 'a' + 10), nil
	case 'A' <= r && r <= 'F':
		return Nibble(r - 'A' + 10), nil
	}
	return 0, ErrInvalidNibble
}

// HashNibble returns the nibble at the given position of the hash, counted
// from the most significant nibble.
func HashNibble(hash common.Hash, pos int) Nibble {
	b := hash[pos/2]
	if pos%2 == 0 {
		return Nibble(b >> 4)
	}
	return Nibble(b & 0xF)
}
