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
	"errors"
	"testing"

	"github.com/Fantom-foundation/statesync/common"
)

func TestNibble_Print(t *testing.T) {
	tests := []struct {
		value Nibble
		print string
	}{
		{Nibble(0), "0"},
		{Nibble(1), "1"},
		{Nibble(2), "2"},
		{Nibble(3), "3"},
		{Nibble(4), "4"},
		{Nibble(5), "5"},
		{Nibble(6), "6"},
		{Nibble(7), "7"},
		{Nibble(8), "8"},
		{Nibble(9), "9"},
		{Nibble(10), "a"},
		{Nibble(11), "b"},
		{Nibble(12), "c"},
		{Nibble(13), "d"},
		{Nibble(14), "e"},
		{Nibble(15), "f"},
		{Nibble(16), "?"},
		{Nibble(255), "?"},
	}

	for _, test := range tests {
		if got, want := test.value.String(), test.print; got != want {
			t.Errorf("invalid print, got %s, wanted %s", got, want)
		}
	}
}

func TestNibble_FromRune(t *testing.T) {
	for i := 0; i < 16; i++ {
		n := Nibble(i)
		got, err := NibbleFromRune(n.Rune())
		if err != nil || got != n {
			t.Errorf("failed to parse %c, got %v, %v", n.Rune(), got, err)
		}
	}
	if got, err := NibbleFromRune('C'); err != nil || got != 12 {
		t.Errorf("failed to parse upper case nibble, got %v, %v", got, err)
	}
	for _, r := range []rune{'g', 'G', ' ', 'x', '/'} {
		if _, err := NibbleFromRune(r); !errors.Is(err, ErrInvalidNibble) {
			t.Errorf("expected %c to be rejected, got %v", r, err)
		}
	}
}

func TestNibble_HashNibbleReadsFromMostSignificant(t *testing.T) {
	hash := common.Hash{0x27, 0x4c}
	want := []Nibble{2, 7, 4, 0xc, 0, 0}
	for i, w := range want {
		if got := HashNibble(hash, i); got != w {
			t.Errorf("unexpected nibble at %d, wanted %v, got %v", i, w, got)
		}
	}
	hash[common.HashSize-1] = 0xa9
	if got := HashNibble(hash, 2*common.HashSize-1); got != 9 {
		t.Errorf("unexpected last nibble, wanted 9, got %v", got)
	}
}
