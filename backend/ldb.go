// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package backend

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// TableSpace divide key-value storage into spaces by adding a prefix to the key.
type TableSpace byte

const (
	// StateLeavesKey is a tablespace for the leaves of the synchronized state trie
	StateLeavesKey TableSpace = 'S'
	// MinerKey is a tablespace for the block bookkeeping of a miner
	MinerKey TableSpace = 'M'
)

// ToDBKey converts the input key to its respective table space key.
func ToDBKey(t TableSpace, key []byte) []byte {
	res := make([]byte, 0, len(key)+1)
	res = append(res, byte(t))
	return append(res, key...)
}

// TableSpaceRange returns the key range covering the given table space limited
// to [lower, upper). A nil upper bound selects everything up to the end of the
// table space.
func TableSpaceRange(t TableSpace, lower, upper []byte) *util.Range {
	res := &util.Range{Start: ToDBKey(t, lower)}
	if upper != nil {
		res.Limit = ToDBKey(t, upper)
	} else {
		res.Limit = []byte{byte(t) + 1}
	}
	return res
}

// LevelDB is an interface missing in original LevelDB design.
// It contains methods common for the LevelDB instance and its Transactions.
// It allows for easy switching between transactional and non-transactional accesses.
type LevelDB interface {
	// Get gets the value for the given key. It returns ErrNotFound if the
	// DB does not contain the key.
	Get(key []byte, ro *opt.ReadOptions) (value []byte, err error)

	// Has returns true if the DB does contain the given key.
	Has(key []byte, ro *opt.ReadOptions) (bool, error)

	// NewIterator returns an iterator for the latest snapshot of the
	// underlying DB. The resultant key/value pairs are guaranteed to be
	// consistent, also while the DB is modified concurrently.
	//
	// The iterator must be released after use, by calling Release method.
	NewIterator(slice *util.Range, ro *opt.ReadOptions) iterator.Iterator

	// Put sets the value for the given key.
	Put(key, value []byte, wo *opt.WriteOptions) error

	// Delete deletes the value for the given key.
	Delete(key []byte, wo *opt.WriteOptions) error

	// Write apply the given batch to the DB atomically.
	Write(batch *leveldb.Batch, wo *opt.WriteOptions) error
}

// OpenLevelDb opens a LevelDB instance at the given path.
func OpenLevelDb(path string, options *opt.Options) (*leveldb.DB, error) {
	db, err := leveldb.OpenFile(path, options)
	if err != nil {
		return nil, fmt.Errorf("failed to open LevelDB at %s; %w", path, err)
	}
	return db, nil
}

// OpenInMemoryLevelDb opens a LevelDB instance backed by main memory. It is
// mainly intended for tests and emulations.
func OpenInMemoryLevelDb() (*leveldb.DB, error) {
	return leveldb.Open(storage.NewMemStorage(), nil)
}
