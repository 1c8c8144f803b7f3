// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package bucket

//go:generate mockgen -source bucket.go -destination bucket_mocks.go -package bucket

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Fantom-foundation/statesync/common"
)

// Bucket is an ordered map from byte-string keys to byte-string values. All
// range operations are half-open and order keys lexicographically on their raw
// bytes. Implementations must support concurrent readers; each Iterate call
// observes a consistent view of the bucket.
type Bucket interface {
	// Put inserts or updates a single entry.
	Put(key, val []byte) error
	// PutAll inserts all entries produced by the given generator until it
	// reports that it is exhausted. The entries become visible atomically.
	PutAll(next func() (key, val []byte, ok bool)) error
	// Get retrieves the value stored for the given key.
	Get(key []byte) (val []byte, found bool, err error)
	// Iterate visits all entries with lower <= key < upper in ascending key
	// order. A nil upper bound extends the range to the end of the bucket.
	// Iteration stops at the first error returned by the visitor. The visitor
	// must not modify the bucket and must not retain the passed slices.
	Iterate(lower, upper []byte, visit func(key, val []byte) error) error
	// Delete removes all entries with lower <= key < upper. A nil upper bound
	// extends the range to the end of the bucket.
	Delete(lower, upper []byte) error
}

// InRange checks whether the key is within [lower, upper), where a nil upper
// bound is unbounded.
func InRange(key, lower, upper []byte) bool {
	return bytes.Compare(lower, key) <= 0 && (upper == nil || bytes.Compare(key, upper) < 0)
}

// FromSlice creates a PutAll generator producing the given key/value pairs.
func FromSlice(keys, values [][]byte) func() ([]byte, []byte, bool) {
	pos := 0
	return func() ([]byte, []byte, bool) {
		if pos >= len(keys) {
			return nil, nil, false
		}
		pos++
		return keys[pos-1], values[pos-1], true
	}
}

type entry struct {
	key, val []byte
}

// HasSameData checks whether both buckets contain exactly the same entries.
// It is intended for tests and verification tools only.
func HasSameData(a, b Bucket) (bool, error) {
	entriesA, err := collect(a)
	if err != nil {
		return false, err
	}
	same := true
	pos := 0
	err = b.Iterate(nil, nil, func(key, val []byte) error {
		if pos >= len(entriesA) || !bytes.Equal(entriesA[pos].key, key) || !bytes.Equal(entriesA[pos].val, val) {
			same = false
			return errStopIteration
		}
		pos++
		return nil
	})
	if err != nil && !errors.Is(err, errStopIteration) {
		return false, err
	}
	return same && pos == len(entriesA), nil
}

// Diff lists human readable descriptions of differences between the two
// buckets, limited to the given number of entries.
func Diff(a, b Bucket, limit int) ([]string, error) {
	entriesA, err := collect(a)
	if err != nil {
		return nil, err
	}
	entriesB, err := collect(b)
	if err != nil {
		return nil, err
	}
	var res []string
	i, j := 0, 0
	for (i < len(entriesA) || j < len(entriesB)) && len(res) < limit {
		switch {
		case j >= len(entriesB) || (i < len(entriesA) && bytes.Compare(entriesA[i].key, entriesB[j].key) < 0):
			res = append(res, fmt.Sprintf("only in first: %x", entriesA[i].key))
			i++
		case i >= len(entriesA) || bytes.Compare(entriesA[i].key, entriesB[j].key) > 0:
			res = append(res, fmt.Sprintf("only in second: %x", entriesB[j].key))
			j++
		default:
			if !bytes.Equal(entriesA[i].val, entriesB[j].val) {
				res = append(res, fmt.Sprintf("different value for %x: %x vs %x", entriesA[i].key, entriesA[i].val, entriesB[j].val))
			}
			i++
			j++
		}
	}
	return res, nil
}

// Count returns the number of entries in the bucket.
func Count(b Bucket) (int, error) {
	res := 0
	err := b.Iterate(nil, nil, func([]byte, []byte) error {
		res++
		return nil
	})
	return res, err
}

const errStopIteration = common.ConstError("stop iteration")

func collect(b Bucket) ([]entry, error) {
	var res []entry
	err := b.Iterate(nil, nil, func(key, val []byte) error {
		res = append(res, entry{bytes.Clone(key), bytes.Clone(val)})
		return nil
	})
	return res, err
}
