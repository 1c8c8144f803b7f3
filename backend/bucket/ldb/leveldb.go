// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ldb

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/Fantom-foundation/statesync/backend"
	"github.com/syndtr/goleveldb/leveldb"
)

// maxBatchSize is the number of updates collected before a batch is flushed
// during bulk deletions.
const maxBatchSize = 1 << 14

// Bucket is a byte store stored in a table space of a LevelDB instance.
// Iterations are served by LevelDB iterators, which read from an implicit
// snapshot; bulk updates are applied as a single batch.
type Bucket struct {
	db    backend.LevelDB
	table backend.TableSpace
}

// New creates a bucket within the given table space of the database.
func New(db backend.LevelDB, table backend.TableSpace) *Bucket {
	return &Bucket{db: db, table: table}
}

func (b *Bucket) Put(key, val []byte) error {
	return b.db.Put(backend.ToDBKey(b.table, key), val, nil)
}

func (b *Bucket) PutAll(next func() ([]byte, []byte, bool)) error {
	batch := new(leveldb.Batch)
	for key, val, ok := next(); ok; key, val, ok = next() {
		batch.Put(backend.ToDBKey(b.table, key), val)
	}
	if batch.Len() == 0 {
		return nil
	}
	return b.db.Write(batch, nil)
}

func (b *Bucket) Get(key []byte) ([]byte, bool, error) {
	val, err := b.db.Get(backend.ToDBKey(b.table, key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (b *Bucket) Iterate(lower, upper []byte, visit func(key, val []byte) error) error {
	iter := b.db.NewIterator(backend.TableSpaceRange(b.table, lower, upper), nil)
	defer iter.Release()
	for iter.Next() {
		if err := visit(iter.Key()[1:], iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (b *Bucket) Delete(lower, upper []byte) error {
	iter := b.db.NewIterator(backend.TableSpaceRange(b.table, lower, upper), nil)
	defer iter.Release()
	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(bytes.Clone(iter.Key()))
		if batch.Len() >= maxBatchSize {
			if err := b.db.Write(batch, nil); err != nil {
				return fmt.Errorf("failed to delete range; %w", err)
			}
			batch.Reset()
		}
	}
	if err := iter.Error(); err != nil {
		return err
	}
	if batch.Len() == 0 {
		return nil
	}
	return b.db.Write(batch, nil)
}
