// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package rlp

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/Fantom-foundation/statesync/common"
	"github.com/holiman/uint256"
)

// The definition of the RLP encoding can be found here:
// https://ethereum.org/en/developers/docs/data-structures-and-encoding/rlp
//
// Recursive-Length Prefix (RLP) serialization is based on a recursive
// structure definition of an `item`. An item is defined as
//   - a string of bytes
//   - a list of items
// Decoding always produces String and List items; the remaining item types
// are encoding conveniences for frequently used values.

const (
	ErrEmptyInput       = common.ConstError("input RLP is empty")
	ErrTruncatedInput   = common.ConstError("input RLP is truncated")
	ErrTrailingBytes    = common.ConstError("input RLP has trailing bytes")
	ErrNonCanonicalSize = common.ConstError("non-canonical size encoding")
	ErrUnexpectedType   = common.ConstError("unexpected item type")
	ErrValueTooLarge    = common.ConstError("value too large")
)

// Item is an interface for everything that can be RLP encoded by this package.
type Item interface {
	// write writes the RLP encoding of this item to the given writer.
	write(writer) writer

	// getEncodedLength computes the encoded length of this item in bytes.
	getEncodedLength() int
}

// Encode is a convenience function for serializing an item structure.
func Encode(item Item) []byte {
	return EncodeInto(make([]byte, 0, item.getEncodedLength()), item)
}

// EncodeInto appends the encoding of the given item to dst.
func EncodeInto(dst []byte, item Item) []byte {
	return item.write(writer(dst))
}

// EncodedLength returns the number of bytes required to encode the item.
func EncodedLength(item Item) int {
	return item.getEncodedLength()
}

// Decode parses a single RLP item which must cover the full input.
func Decode(rlp []byte) (Item, error) {
	item, rest, err := decode(rlp)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTrailingBytes, len(rest))
	}
	return item, nil
}

// decode parses the leading item of the input and returns the remaining bytes.
func decode(rlp []byte) (Item, []byte, error) {
	if len(rlp) == 0 {
		return nil, nil, ErrEmptyInput
	}
	l := rlp[0]
	switch {
	case l < 0x80: // single byte
		return String{Str: rlp[0:1]}, rlp[1:], nil
	case l < 0xb8: // short string
		length := int(l - 0x80)
		if len(rlp) < length+1 {
			return nil, nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrTruncatedInput, length+1, len(rlp))
		}
		return String{Str: rlp[1 : length+1]}, rlp[length+1:], nil
	case l < 0xc0: // long string
		payload, rest, err := readPayload(rlp, int(l-0xb7))
		if err != nil {
			return nil, nil, err
		}
		return String{Str: payload}, rest, nil
	case l < 0xf8: // short list
		length := int(l - 0xc0)
		if len(rlp) < length+1 {
			return nil, nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrTruncatedInput, length+1, len(rlp))
		}
		items, err := decodeList(rlp[1 : length+1])
		return List{Items: items}, rlp[length+1:], err
	default: // long list
		payload, rest, err := readPayload(rlp, int(l-0xf7))
		if err != nil {
			return nil, nil, err
		}
		items, err := decodeList(payload)
		return List{Items: items}, rest, err
	}
}

// readPayload reads the payload of a long string or list whose size is
// encoded in sizeLength bytes following the leading byte.
func readPayload(rlp []byte, sizeLength int) ([]byte, []byte, error) {
	if len(rlp) < sizeLength+1 {
		return nil, nil, fmt.Errorf("%w: missing size bytes", ErrTruncatedInput)
	}
	size, err := readSize(rlp[1 : sizeLength+1])
	if err != nil {
		return nil, nil, err
	}
	offset := uint64(sizeLength + 1)
	if uint64(len(rlp))-offset < size {
		return nil, nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrTruncatedInput, size, uint64(len(rlp))-offset)
	}
	return rlp[offset : offset+size], rlp[offset+size:], nil
}

// decodeList decodes the concatenated items forming the payload of a list.
func decodeList(rlp []byte) ([]Item, error) {
	items := make([]Item, 0, 17)
	for len(rlp) > 0 {
		item, rest, err := decode(rlp)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		rlp = rest
	}
	return items, nil
}

func readSize(b []byte) (uint64, error) {
	if len(b) == 0 || len(b) > 8 {
		return 0, fmt.Errorf("%w: %d size bytes", ErrNonCanonicalSize, len(b))
	}
	if b[0] == 0 {
		return 0, fmt.Errorf("%w: leading zero", ErrNonCanonicalSize)
	}
	var s uint64
	for _, cur := range b {
		s = s<<8 | uint64(cur)
	}
	if s < 56 {
		return 0, fmt.Errorf("%w: long form for size %d", ErrNonCanonicalSize, s)
	}
	return s, nil
}

// writer is a specialized writer for this package writing encoded RLP
// content in a pre-allocated buffer.
type writer []byte

func (w writer) Write(data []byte) writer {
	return append(w, data...)
}

func (w writer) Put(c byte) writer {
	return append(w, c)
}

// ----------------------------------------------------------------------------
//                           Core Item Types
// ----------------------------------------------------------------------------

// String is the atomic ground type of an RLP input structure representing a
// (potentially empty) string of bytes.
type String struct {
	Str []byte
}

func (s String) write(writer writer) writer {
	l := len(s.Str)
	if l == 1 && s.Str[0] < 0x80 {
		return writer.Write(s.Str)
	}
	writer = encodeLength(l, 0x80, writer)
	return writer.Write(s.Str)
}

func (s String) getEncodedLength() int {
	l := len(s.Str)
	if l == 1 && s.Str[0] < 0x80 {
		return 1
	}
	return l + getEncodedLengthLength(l)
}

// Uint64 interprets the string as a big-endian unsigned integer.
func (s String) Uint64() (uint64, error) {
	if len(s.Str) > 8 {
		return 0, fmt.Errorf("%w: %d bytes for uint64", ErrValueTooLarge, len(s.Str))
	}
	if len(s.Str) > 0 && s.Str[0] == 0 {
		return 0, fmt.Errorf("%w: leading zero in integer", ErrNonCanonicalSize)
	}
	var res uint64
	for _, b := range s.Str {
		res = res<<8 | uint64(b)
	}
	return res, nil
}

// Hash interprets the string as a 32-byte hash.
func (s String) Hash() (common.Hash, error) {
	var res common.Hash
	if len(s.Str) != len(res) {
		return res, fmt.Errorf("%w: expected 32 byte hash, got %d bytes", ErrUnexpectedType, len(s.Str))
	}
	copy(res[:], s.Str)
	return res, nil
}

// List composes a list of items into a new item to be serialized.
type List struct {
	Items []Item
}

func (l List) write(writer writer) writer {
	length := 0
	for _, item := range l.Items {
		length += item.getEncodedLength()
	}
	writer = encodeLength(length, 0xc0, writer)
	for _, item := range l.Items {
		writer = item.write(writer)
	}
	return writer
}

func (l List) getEncodedLength() int {
	sum := 0
	for _, item := range l.Items {
		sum += item.getEncodedLength()
	}
	return sum + getEncodedLengthLength(sum)
}

// AsString casts a decoded item to a String.
func AsString(item Item) (String, error) {
	res, ok := item.(String)
	if !ok {
		return String{}, fmt.Errorf("%w: wanted string, got %T", ErrUnexpectedType, item)
	}
	return res, nil
}

// AsList casts a decoded item to a List with the given number of elements. A
// negative size accepts lists of any length.
func AsList(item Item, size int) (List, error) {
	res, ok := item.(List)
	if !ok {
		return List{}, fmt.Errorf("%w: wanted list, got %T", ErrUnexpectedType, item)
	}
	if size >= 0 && len(res.Items) != size {
		return List{}, fmt.Errorf("%w: wanted list of %d items, got %d", ErrUnexpectedType, size, len(res.Items))
	}
	return res, nil
}

// encodeLength is utility function used by String and List structures to
// encode the length of the string or list in the output stream.
func encodeLength(length int, offset byte, writer writer) writer {
	if length < 56 {
		return writer.Put(offset + byte(length))
	}
	numBytesForLength := getNumBytes(uint64(length))
	writer = writer.Put(offset + 55 + numBytesForLength)
	for i := byte(0); i < numBytesForLength; i++ {
		writer = writer.Put(byte(length >> (8 * (numBytesForLength - i - 1))))
	}
	return writer
}

// getNumBytes computes the minimum number of bytes required to represent
// the given value in big-endian encoding.
func getNumBytes(value uint64) byte {
	res := byte(0)
	for ; value != 0; value >>= 8 {
		res++
	}
	return res
}

func getEncodedLengthLength(length int) int {
	if length < 56 {
		return 1
	}
	return int(getNumBytes(uint64(length))) + 1
}

// ----------------------------------------------------------------------------
//                           Utility Item Types
// ----------------------------------------------------------------------------

// Encoded allows for embedding an already RLP encoded data fragment in a new RLP encoding.
type Encoded struct {
	Data []byte
}

func (e Encoded) write(writer writer) writer {
	return writer.Write(e.Data)
}

func (e Encoded) getEncodedLength() int {
	return len(e.Data)
}

// Hash encodes a 32-byte hash as a string without converting it to a slice
// first.
type Hash struct {
	Hash common.Hash
}

func (h Hash) write(writer writer) writer {
	writer = writer.Put(0x80 + common.HashSize)
	return writer.Write(h.Hash[:])
}

func (h Hash) getEncodedLength() int {
	return common.HashSize + 1
}

// Uint64 is an Item encoding unsigned integers into RLP by interpreting them
// as a string of bytes. The bytes are derived from the integer value by
// encoding it in big-endian byte order and removing leading zero-bytes.
type Uint64 struct {
	Value uint64
}

func (u Uint64) write(writer writer) writer {
	if u.Value == 0 {
		return writer.Put(0x80)
	}
	var buffer [8]byte
	binary.BigEndian.PutUint64(buffer[:], u.Value)
	return String{Str: buffer[8-getNumBytes(u.Value):]}.write(writer)
}

func (u Uint64) getEncodedLength() int {
	if u.Value < 0x80 {
		return 1
	}
	return 1 + int(getNumBytes(u.Value))
}

// BigInt is an Item encoding non-negative big.Int values analogous to Uint64.
type BigInt struct {
	Value *big.Int
}

func (i BigInt) write(writer writer) writer {
	if i.Value.IsUint64() {
		return Uint64{Value: i.Value.Uint64()}.write(writer)
	}
	return String{Str: i.Value.Bytes()}.write(writer)
}

func (i BigInt) getEncodedLength() int {
	if i.Value.IsUint64() {
		return Uint64{Value: i.Value.Uint64()}.getEncodedLength()
	}
	length := (i.Value.BitLen() + 7) / 8
	return getEncodedLengthLength(length) + length
}

// Uint256 is an Item encoding 256-bit unsigned integers analogous to Uint64.
type Uint256 struct {
	Value *uint256.Int
}

func (u Uint256) write(writer writer) writer {
	if u.Value.IsUint64() {
		return Uint64{Value: u.Value.Uint64()}.write(writer)
	}
	buffer := u.Value.Bytes32()
	return String{Str: buffer[32-u.Value.ByteLen():]}.write(writer)
}

func (u Uint256) getEncodedLength() int {
	if u.Value.IsUint64() {
		return Uint64{Value: u.Value.Uint64()}.getEncodedLength()
	}
	length := u.Value.ByteLen()
	return getEncodedLengthLength(length) + length
}

// Uint256 interprets the string as a big-endian 256-bit unsigned integer.
func (s String) Uint256() (*uint256.Int, error) {
	if len(s.Str) > 32 {
		return nil, fmt.Errorf("%w: %d bytes for uint256", ErrValueTooLarge, len(s.Str))
	}
	if len(s.Str) > 0 && s.Str[0] == 0 {
		return nil, fmt.Errorf("%w: leading zero in integer", ErrNonCanonicalSize)
	}
	return new(uint256.Int).SetBytes(s.Str), nil
}
