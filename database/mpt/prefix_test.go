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
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/Fantom-foundation/statesync/common"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestPrefix_ConstructionChecksSizeAndPadding(t *testing.T) {
	tests := []struct {
		size int
		val  uint64
		err  error
	}{
		{0, 0, nil},
		{0, 1 << 63, ErrNonZeroPadding},
		{1, 0xF << 60, nil},
		{1, 1 << 59, ErrNonZeroPadding},
		{6, 0x0fd714 << 40, nil},
		{6, 0x0fd7141 << 36, ErrNonZeroPadding},
		{16, ^uint64(0), nil},
		{17, 0, ErrPrefixTooLong},
	}
	for _, test := range tests {
		_, err := NewPrefix(test.size, test.val)
		if !errors.Is(err, test.err) {
			t.Errorf("unexpected result for size %d, value %x: wanted %v, got %v", test.size, test.val, test.err, err)
		}
	}
}

func TestPrefix_PaddedAndMatches(t *testing.T) {
	p := MustParsePrefix("0fd714")
	if got, want := p.Size(), 6; got != want {
		t.Errorf("unexpected size, wanted %d, got %d", want, got)
	}
	want := common.Hash{0x0f, 0xd7, 0x14}
	if got := p.Padded(); got != want {
		t.Errorf("unexpected padded value, wanted %v, got %v", want, got)
	}

	hash := common.MustHashFromHex("0fd7140186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")
	if !p.Matches(hash) {
		t.Errorf("%v should match %v", p, hash)
	}
	hash[2] = 0x15 // nibble 5 differs
	if p.Matches(hash) {
		t.Errorf("%v should not match %v", p, hash)
	}

	odd := MustParsePrefix("0fd")
	if !odd.Matches(hash) {
		t.Errorf("%v should match %v", odd, hash)
	}
	hash[1] = 0xe7
	if odd.Matches(hash) {
		t.Errorf("%v should not match %v", odd, hash)
	}
	if !(Prefix{}).Matches(hash) {
		t.Errorf("empty prefix should match everything")
	}
}

func TestPrefix_NibblesCanBeReadAndWritten(t *testing.T) {
	p := MustParsePrefix("0fd714")
	for i, want := range []Nibble{0x0, 0xf, 0xd, 0x7, 0x1, 0x4} {
		if got := p.Nibble(i); got != want {
			t.Errorf("unexpected nibble at %d, wanted %v, got %v", i, want, got)
		}
	}
	if got := p.Last(); got != 4 {
		t.Errorf("unexpected last nibble: %v", got)
	}
	p.Set(1, 0xa)
	p.Set(5, 0x0)
	if got, want := p.String(), "0ad710"; got != want {
		t.Errorf("unexpected prefix after update, wanted %s, got %s", want, got)
	}
}

func TestPrefix_NextCarriesAndWraps(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"0ad7ff", "0ad800"},
		{"0", "1"},
		{"e", "f"},
		{"f", "0"},
		{"ffff", "0000"},
		{"ffffffffffffffff", "0000000000000000"},
	}
	for _, test := range tests {
		if got := MustParsePrefix(test.in).Next(); got != MustParsePrefix(test.out) {
			t.Errorf("unexpected successor of %s, wanted %s, got %v", test.in, test.out, got)
		}
	}
	if got := MustParsePrefix("00").Add(0x21); got != MustParsePrefix("21") {
		t.Errorf("unexpected sum: %v", got)
	}
	if got := (Prefix{}).Next(); got.Val() != 0 || got.Size() != 0 {
		t.Errorf("successor of empty prefix should wrap immediately, got %v", got)
	}
}

func TestPrefix_TruncateExtendAndChild(t *testing.T) {
	p := MustParsePrefix("274c")
	if got := p.Truncate(3); got != MustParsePrefix("274") {
		t.Errorf("unexpected truncation: %v", got)
	}
	if got := p.Extend(6); got != MustParsePrefix("274c00") {
		t.Errorf("unexpected extension: %v", got)
	}
	if got := p.Truncate(3).Child(0xc); got != p {
		t.Errorf("unexpected child: %v", got)
	}
	if got, want := p.Index(0), uint64(0); got != want {
		t.Errorf("unexpected index, wanted %x, got %x", want, got)
	}
	if got, want := p.Index(3), uint64(0x274); got != want {
		t.Errorf("unexpected index, wanted %x, got %x", want, got)
	}
	if got, want := p.Index(4), uint64(0x274c); got != want {
		t.Errorf("unexpected index, wanted %x, got %x", want, got)
	}
}

func TestPrefix_KeyRangeCoversPrefix(t *testing.T) {
	lower, upper := MustParsePrefix("15d24").KeyRange()
	if want := (common.Hash{0x15, 0xd2, 0x40}); !bytes.Equal(lower, want[:]) {
		t.Errorf("unexpected lower bound %x", lower)
	}
	if want := (common.Hash{0x15, 0xd2, 0x50}); !bytes.Equal(upper, want[:]) {
		t.Errorf("unexpected upper bound %x", upper)
	}
	if _, upper := MustParsePrefix("ff").KeyRange(); upper != nil {
		t.Errorf("last prefix should have open upper bound, got %x", upper)
	}
	if _, upper := (Prefix{}).KeyRange(); upper != nil {
		t.Errorf("empty prefix should have open upper bound, got %x", upper)
	}
}

func TestPrefix_ParseRejectsInvalidInput(t *testing.T) {
	if _, err := ParsePrefix("0123456789abcdef0"); !errors.Is(err, ErrPrefixTooLong) {
		t.Errorf("expected too long error, got %v", err)
	}
	if _, err := ParsePrefix("0x"); !errors.Is(err, ErrInvalidNibble) {
		t.Errorf("expected invalid nibble error, got %v", err)
	}
	if got, err := ParsePrefix("ABC"); err != nil || got != MustParsePrefix("abc") {
		t.Errorf("upper case nibbles not accepted: %v, %v", got, err)
	}
}

func genPrefix() gopter.Gen {
	return gopter.CombineGens(gen.IntRange(0, MaxPrefixSize), gen.UInt64()).Map(func(values []any) Prefix {
		size := values[0].(int)
		res, _ := NewPrefix(size, values[1].(uint64)&mask(size))
		return res
	})
}

func TestPrefix_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("padded prefix round-trips", prop.ForAll(
		func(p Prefix) string {
			restored, err := PrefixFromHash(p.Size(), p.Padded())
			if err != nil {
				return err.Error()
			}
			if restored != p {
				return fmt.Sprintf("wanted %v, got %v", p, restored)
			}
			return ""
		},
		genPrefix(),
	))

	properties.Property("parsed string round-trips", prop.ForAll(
		func(p Prefix) string {
			restored, err := ParsePrefix(p.String())
			if err != nil {
				return err.Error()
			}
			if restored != p {
				return fmt.Sprintf("wanted %v, got %v", p, restored)
			}
			return ""
		},
		genPrefix(),
	))

	properties.Property("maximum prefix wraps to zero", prop.ForAll(
		func(size int) string {
			max, err := NewPrefix(size, mask(size))
			if err != nil {
				return err.Error()
			}
			if next := max.Next(); next.Val() != 0 || next.Size() != size {
				return fmt.Sprintf("successor of %v is %v", max, next)
			}
			return ""
		},
		gen.IntRange(1, MaxPrefixSize),
	))

	properties.Property("keys in range match prefix", prop.ForAll(
		func(p Prefix, suffix uint64) string {
			if p.Size() == 0 || p.Size() == MaxPrefixSize {
				return ""
			}
			lower, upper := p.KeyRange()
			key := p.Padded()
			key[8] = byte(suffix)
			for i := 0; i < 8; i++ {
				key[i] |= byte((suffix &^ mask(p.Size())) >> (56 - 8*i))
			}
			if bytes.Compare(key[:], lower) < 0 || (upper != nil && bytes.Compare(key[:], upper) >= 0) {
				return fmt.Sprintf("%v not in range of %v", key, p)
			}
			if !p.Matches(key) {
				return fmt.Sprintf("%v does not match %v", key, p)
			}
			return ""
		},
		genPrefix(),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}
