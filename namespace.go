// Copyright 2023 The Moria Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package moria models C types read from a binary's debug info as a
// runtime catalogue, builds graphs of typed values over them, and
// serializes those graphs into a single byte image with every pointer
// encoded as the absolute address of its target.
package moria

import (
	"fmt"
	"regexp"

	"github.com/emmaconnor/moria/arch"
)

// A Namespace owns the type catalogue for one target architecture:
// the built-in integer types, the named struct types, and the interned
// derived pointer and array types. It also runs the layout engine
// that packs value graphs into byte images.
//
// A Namespace may be populated from a single goroutine only. After
// Finalize returns the catalogue is read-only; values constructed
// from it still carry their own mutable state.
type Namespace struct {
	arch arch.Architecture

	// Built-in integer types, sized for the target architecture.
	Char, UnsignedChar         *IntType
	Short, UnsignedShort       *IntType
	Int, UnsignedInt           *IntType
	Long, UnsignedLong         *IntType
	LongLong, UnsignedLongLong *IntType
	Int8, UInt8                *IntType
	Int16, UInt16              *IntType
	Int32, UInt32              *IntType
	Int64, UInt64              *IntType

	// Void is the distinguished unknown-size integer type;
	// VoidPointer points to it.
	Void        *IntType
	VoidPointer *PointerType

	structs     map[string]*StructType
	structOrder []string
	derived     map[string]Type
	byName      map[string]*StructType
	finalized   bool
}

// NewNamespace returns a namespace with the built-in integer types
// sized for the given architecture.
func NewNamespace(a arch.Architecture) *Namespace {
	ns := &Namespace{
		arch:    a,
		structs: make(map[string]*StructType),
		derived: make(map[string]Type),
	}
	ns.Char = ns.NewIntType("char", a.CharSize, true)
	ns.UnsignedChar = ns.NewIntType("unsigned char", a.CharSize, false)
	ns.Short = ns.NewIntType("short", a.ShortSize, true)
	ns.UnsignedShort = ns.NewIntType("unsigned short", a.ShortSize, false)
	ns.Int = ns.NewIntType("int", a.IntSize, true)
	ns.UnsignedInt = ns.NewIntType("unsigned int", a.IntSize, false)
	ns.Long = ns.NewIntType("long", a.LongSize, true)
	ns.UnsignedLong = ns.NewIntType("unsigned long", a.LongSize, false)
	ns.LongLong = ns.NewIntType("long long", a.LongLongSize, true)
	ns.UnsignedLongLong = ns.NewIntType("unsigned long long", a.LongLongSize, false)

	ns.Int8 = ns.NewIntType("int8_t", 1, true)
	ns.UInt8 = ns.NewIntType("uint8_t", 1, false)
	ns.Int16 = ns.NewIntType("int16_t", 2, true)
	ns.UInt16 = ns.NewIntType("uint16_t", 2, false)
	ns.Int32 = ns.NewIntType("int32_t", 4, true)
	ns.UInt32 = ns.NewIntType("uint32_t", 4, false)
	ns.Int64 = ns.NewIntType("int64_t", 8, true)
	ns.UInt64 = ns.NewIntType("uint64_t", 8, false)

	ns.Void = ns.NewIntType("void", SizeUnknown, false)
	ns.VoidPointer = ns.PointerTo(ns.Void)
	return ns
}

// Arch returns the namespace's target architecture.
func (ns *Namespace) Arch() arch.Architecture { return ns.arch }

// NewIntType returns an integer type owned by the namespace. size may
// be SizeUnknown for types that cannot be serialized.
func (ns *Namespace) NewIntType(name string, size int64, signed bool) *IntType {
	return &IntType{ns: ns, name: name, size: size, signed: signed}
}

// PointerTo returns the pointer type to t, interned by type name.
func (ns *Namespace) PointerTo(t Type) *PointerType {
	name := t.Name() + "*"
	if d, ok := ns.derived[name]; ok {
		return d.(*PointerType)
	}
	p := &PointerType{ns: ns, referenced: t}
	ns.derived[name] = p
	return p
}

// ArrayOf returns the array type of count elements of t, interned by
// type name.
func (ns *Namespace) ArrayOf(t Type, count int64) *ArrayType {
	a := &ArrayType{ns: ns, member: t, count: count}
	if d, ok := ns.derived[a.Name()]; ok {
		return d.(*ArrayType)
	}
	ns.derived[a.Name()] = a
	return a
}

// GetOrCreateStruct returns the struct type registered under name,
// creating an empty one on first use. Repeated calls with the same
// name return the same instance.
func (ns *Namespace) GetOrCreateStruct(name string) *StructType {
	if st, ok := ns.structs[name]; ok {
		return st
	}
	st := &StructType{ns: ns, name: name}
	ns.structs[name] = st
	ns.structOrder = append(ns.structOrder, name)
	return st
}

// Structs returns the registered struct types in registration order.
func (ns *Namespace) Structs() []*StructType {
	out := make([]*StructType, len(ns.structOrder))
	for i, name := range ns.structOrder {
		out[i] = ns.structs[name]
	}
	return out
}

var structName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reservedNames are the namespace's own accessors. A struct whose
// name collides with one cannot be looked up and is rejected by
// Finalize.
var reservedNames = map[string]bool{
	"Char": true, "UnsignedChar": true,
	"Short": true, "UnsignedShort": true,
	"Int": true, "UnsignedInt": true,
	"Long": true, "UnsignedLong": true,
	"LongLong": true, "UnsignedLongLong": true,
	"Int8": true, "UInt8": true,
	"Int16": true, "UInt16": true,
	"Int32": true, "UInt32": true,
	"Int64": true, "UInt64": true,
	"Void": true, "VoidPointer": true,
	"Arch": true, "Pack": true, "Finalize": true,
	"Struct": true, "Structs": true, "GetOrCreateStruct": true,
	"PointerTo": true, "ArrayOf": true, "NewIntType": true,
}

// Finalize validates the registered struct names and freezes the
// catalogue. Afterwards Struct resolves names to types and no further
// types may be added.
func (ns *Namespace) Finalize() error {
	byName := make(map[string]*StructType, len(ns.structs))
	for _, name := range ns.structOrder {
		if !structName.MatchString(name) {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
		if reservedNames[name] {
			return fmt.Errorf("%w: struct name %s shadows a namespace accessor", ErrNameConflict, name)
		}
		byName[name] = ns.structs[name]
	}
	ns.byName = byName
	ns.finalized = true
	return nil
}

// Struct returns the struct type registered under name. The namespace
// must have been finalized.
func (ns *Namespace) Struct(name string) (*StructType, error) {
	if !ns.finalized {
		return nil, fmt.Errorf("namespace has not been finalized")
	}
	st, ok := ns.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown struct %q", name)
	}
	return st, nil
}
