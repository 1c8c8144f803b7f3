// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package mpt provides the trie primitives shared by the sync protocol:
// nibble prefixes addressing subtrees, the hashing of leaves and branch
// nodes, and the encoding of account leaves.
//
// Leaves are stored in a bucket keyed by their 32-byte trie key. Digests are
// computed without extension and leaf node compression; every branch node
// lists all 16 children.
package mpt
