// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package memory

import (
	"bytes"
	"sync"

	"github.com/google/btree"
)

const degree = 32

type entry struct {
	key, val []byte
}

func less(a, b entry) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// Bucket is an in-memory ordered byte store. Readers and writers are
// serialized by a RW lock, so every operation observes a consistent state.
type Bucket struct {
	mutex sync.RWMutex
	tree  *btree.BTreeG[entry]
}

// New creates an empty in-memory bucket.
func New() *Bucket {
	return &Bucket{tree: btree.NewG(degree, less)}
}

func (b *Bucket) Put(key, val []byte) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.tree.ReplaceOrInsert(entry{bytes.Clone(key), bytes.Clone(val)})
	return nil
}

func (b *Bucket) PutAll(next func() ([]byte, []byte, bool)) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	for key, val, ok := next(); ok; key, val, ok = next() {
		b.tree.ReplaceOrInsert(entry{bytes.Clone(key), bytes.Clone(val)})
	}
	return nil
}

func (b *Bucket) Get(key []byte) ([]byte, bool, error) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	res, found := b.tree.Get(entry{key: key})
	if !found {
		return nil, false, nil
	}
	return bytes.Clone(res.val), true, nil
}

func (b *Bucket) Iterate(lower, upper []byte, visit func(key, val []byte) error) error {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	var err error
	iter := func(e entry) bool {
		err = visit(e.key, e.val)
		return err == nil
	}
	if upper == nil {
		b.tree.AscendGreaterOrEqual(entry{key: lower}, iter)
	} else {
		b.tree.AscendRange(entry{key: lower}, entry{key: upper}, iter)
	}
	return err
}

func (b *Bucket) Delete(lower, upper []byte) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	var toDelete []entry
	collect := func(e entry) bool {
		toDelete = append(toDelete, e)
		return true
	}
	if upper == nil {
		b.tree.AscendGreaterOrEqual(entry{key: lower}, collect)
	} else {
		b.tree.AscendRange(entry{key: lower}, entry{key: upper}, collect)
	}
	for _, e := range toDelete {
		b.tree.Delete(e)
	}
	return nil
}

// Len returns the number of entries in the bucket.
func (b *Bucket) Len() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.tree.Len()
}
