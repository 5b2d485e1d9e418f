// Copyright 2023 The Moria Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package moria

import (
	"encoding/binary"
	"testing"

	"github.com/emmaconnor/moria/arch"
)

// namespaces returns a namespace for every endianness and word size
// combination.
func namespaces(t *testing.T) []*Namespace {
	t.Helper()
	var out []*Namespace
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		for _, wordSize := range []int64{4, 8} {
			a, err := arch.New(order, wordSize)
			if err != nil {
				t.Fatalf("arch.New(%v, %d): %v", order, wordSize, err)
			}
			out = append(out, NewNamespace(a))
		}
	}
	return out
}

func amd64Namespace() *Namespace { return NewNamespace(arch.AMD64) }

func x86Namespace() *Namespace { return NewNamespace(arch.X86) }

// ntoh flips b on little-endian namespaces, letting tests state
// expected bytes in big-endian order once.
func ntoh(ns *Namespace, b []byte) []byte {
	if ns.arch.ByteOrder == binary.ByteOrder(binary.BigEndian) {
		return b
	}
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}

// pairStruct registers struct test {int int_field; test *self_ptr}
// in a fresh little-endian, 32-bit namespace.
func pairStruct(t *testing.T) (*Namespace, *StructType) {
	t.Helper()
	a, err := arch.New(binary.LittleEndian, 4)
	if err != nil {
		t.Fatal(err)
	}
	ns := NewNamespace(a)
	st := ns.GetOrCreateStruct("test")
	st.AddField(StructField{Offset: 0, Type: ns.Int, Name: "int_field"})
	st.AddField(StructField{Offset: 4, Type: ns.PointerTo(st), Name: "self_ptr"})
	return ns, st
}
