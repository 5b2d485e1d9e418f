// Copyright 2023 The Moria Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package arch

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	for _, wordSize := range []int64{4, 8} {
		a, err := New(binary.LittleEndian, wordSize)
		if err != nil {
			t.Fatalf("New(little, %d): %v", wordSize, err)
		}
		if a.CharSize != 1 || a.ShortSize != 2 || a.IntSize != 4 || a.LongLongSize != 8 {
			t.Errorf("New(little, %d): unexpected fixed sizes: %+v", wordSize, a)
		}
		if a.PointerSize != wordSize || a.LongSize != wordSize {
			t.Errorf("New(little, %d): pointer=%d long=%d, want %d",
				wordSize, a.PointerSize, a.LongSize, wordSize)
		}
	}
	for _, wordSize := range []int64{0, 2, 16} {
		if _, err := New(binary.LittleEndian, wordSize); !errors.Is(err, ErrUnsupportedClass) {
			t.Errorf("New(little, %d) err = %v, want ErrUnsupportedClass", wordSize, err)
		}
	}
}

var uintTests = []struct {
	arch Architecture
	v    uint64
	want []byte
}{
	{AMD64, 0x0807060504030201, []byte{1, 2, 3, 4, 5, 6, 7, 8}},
	{X86, 0x04030201, []byte{1, 2, 3, 4}},
	{Architecture{ByteOrder: binary.BigEndian}, 0x0102, []byte{1, 2}},
	{Architecture{ByteOrder: binary.BigEndian}, 0x0807060504030201, []byte{8, 7, 6, 5, 4, 3, 2, 1}},
	{AMD64, 0x41, []byte{0x41}},
}

func TestUintRoundTrip(t *testing.T) {
	for _, test := range uintTests {
		buf := make([]byte, len(test.want))
		test.arch.PutUint(buf, test.v)
		if !bytes.Equal(buf, test.want) {
			t.Errorf("PutUint(%#x) = % x, want % x", test.v, buf, test.want)
		}
		if got := test.arch.Uint(buf); got != test.v {
			t.Errorf("Uint(% x) = %#x, want %#x", buf, got, test.v)
		}
	}
}

func TestUintTruncates(t *testing.T) {
	buf := make([]byte, 2)
	AMD64.PutUint(buf, 0x12345678)
	if want := []byte{0x78, 0x56}; !bytes.Equal(buf, want) {
		t.Errorf("PutUint into 2 bytes = % x, want % x", buf, want)
	}
}
