// Copyright 2023 The Moria Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package arch contains architecture-specific definitions.
package arch

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrUnsupportedClass is returned when a target declares a word size
// other than 4 or 8 bytes.
var ErrUnsupportedClass = errors.New("unsupported word size")

// An Architecture defines the architecture-specific layout parameters
// for a given machine: the byte order and the byte sizes of the C
// integer and pointer types. Architectures are immutable; use New or
// one of the predefined instances.
type Architecture struct {
	// ByteOrder is the byte order for ints and pointers.
	ByteOrder binary.ByteOrder
	// CharSize is the size of the char type, in bytes.
	CharSize int64
	// ShortSize is the size of the short type, in bytes.
	ShortSize int64
	// IntSize is the size of the int type, in bytes.
	IntSize int64
	// LongSize is the size of the long type, in bytes.
	LongSize int64
	// LongLongSize is the size of the long long type, in bytes.
	LongLongSize int64
	// PointerSize is the size of a pointer, in bytes.
	PointerSize int64
}

// New returns the Architecture for a machine with the given byte order
// and word size. The word size must be 4 or 8 bytes; it determines the
// pointer and long sizes.
func New(order binary.ByteOrder, wordSize int64) (Architecture, error) {
	if wordSize != 4 && wordSize != 8 {
		return Architecture{}, fmt.Errorf("%w: %d", ErrUnsupportedClass, wordSize)
	}
	return Architecture{
		ByteOrder:    order,
		CharSize:     1,
		ShortSize:    2,
		IntSize:      4,
		LongSize:     wordSize,
		LongLongSize: 8,
		PointerSize:  wordSize,
	}, nil
}

// Uint decodes buf as an unsigned integer in the architecture's byte
// order. The integer occupies the whole buffer; buffers up to 8 bytes
// are supported.
func (a Architecture) Uint(buf []byte) uint64 {
	if len(buf) > 8 {
		panic("buffer too large")
	}
	var v uint64
	if a.ByteOrder == binary.ByteOrder(binary.BigEndian) {
		for _, b := range buf {
			v = v<<8 | uint64(b)
		}
		return v
	}
	for i := len(buf) - 1; i >= 0; i-- {
		v = v<<8 | uint64(buf[i])
	}
	return v
}

// PutUint encodes v into buf in the architecture's byte order. The
// integer occupies the whole buffer; excess high bytes of v are
// discarded.
func (a Architecture) PutUint(buf []byte, v uint64) {
	if len(buf) > 8 {
		panic("buffer too large")
	}
	if a.ByteOrder == binary.ByteOrder(binary.BigEndian) {
		for i := len(buf) - 1; i >= 0; i-- {
			buf[i] = byte(v)
			v >>= 8
		}
		return
	}
	for i := range buf {
		buf[i] = byte(v)
		v >>= 8
	}
}

// AMD64 describes 64-bit x86 targets.
var AMD64 = Architecture{
	ByteOrder:    binary.LittleEndian,
	CharSize:     1,
	ShortSize:    2,
	IntSize:      4,
	LongSize:     8,
	LongLongSize: 8,
	PointerSize:  8,
}

// X86 describes 32-bit x86 targets.
var X86 = Architecture{
	ByteOrder:    binary.LittleEndian,
	CharSize:     1,
	ShortSize:    2,
	IntSize:      4,
	LongSize:     4,
	LongLongSize: 8,
	PointerSize:  4,
}
