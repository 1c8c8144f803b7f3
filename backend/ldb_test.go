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
	"bytes"
	"testing"

	"github.com/syndtr/goleveldb/leveldb/util"
)

func TestToDBKey_PrependsTableSpace(t *testing.T) {
	key := ToDBKey(StateLeavesKey, []byte{1, 2, 3})
	if want := []byte{'S', 1, 2, 3}; !bytes.Equal(want, key) {
		t.Errorf("unexpected key, wanted %v, got %v", want, key)
	}
}

func TestTableSpaceRange_OpenUpperBoundEndsAtTableSpace(t *testing.T) {
	r := TableSpaceRange(StateLeavesKey, []byte{1}, nil)
	if want := []byte{'S', 1}; !bytes.Equal(want, r.Start) {
		t.Errorf("unexpected start, wanted %v, got %v", want, r.Start)
	}
	if want := []byte{'S' + 1}; !bytes.Equal(want, r.Limit) {
		t.Errorf("unexpected limit, wanted %v, got %v", want, r.Limit)
	}
}

func TestOpenInMemoryLevelDb_KeepsTableSpacesApart(t *testing.T) {
	db, err := OpenInMemoryLevelDb()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer db.Close()

	if err := db.Put(ToDBKey(StateLeavesKey, []byte{1}), []byte{1}, nil); err != nil {
		t.Fatalf("failed to put: %v", err)
	}
	if err := db.Put(ToDBKey(MinerKey, []byte{1}), []byte{2}, nil); err != nil {
		t.Fatalf("failed to put: %v", err)
	}

	var ranges = []*util.Range{
		TableSpaceRange(StateLeavesKey, nil, nil),
		TableSpaceRange(MinerKey, nil, nil),
	}
	for i, r := range ranges {
		iter := db.NewIterator(r, nil)
		count := 0
		for iter.Next() {
			count++
			if want, got := byte(i+1), iter.Value()[0]; want != got {
				t.Errorf("unexpected value in range %d, wanted %d, got %d", i, want, got)
			}
		}
		iter.Release()
		if count != 1 {
			t.Errorf("unexpected number of entries in range %d: %d", i, count)
		}
	}
}
