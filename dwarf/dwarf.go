// Copyright 2023 The Moria Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dwarf builds a moria type catalogue from the DWARF debug
// information of an ELF binary.
package dwarf

import (
	"debug/dwarf"
	"debug/elf"
	"errors"
	"fmt"

	"github.com/emmaconnor/moria"
	"github.com/emmaconnor/moria/arch"
)

var (
	// ErrUnsupportedEncoding is returned when a base type uses an
	// encoding outside the accepted set.
	ErrUnsupportedEncoding = errors.New("unsupported base-type encoding")
	// ErrUnsupportedTag is returned when a type tag is not handled by
	// the catalogue.
	ErrUnsupportedTag = errors.New("unsupported debug-info type")
)

// A Parser reads struct definitions from DWARF data into a type
// catalogue.
type Parser struct {
	data       *dwarf.Data
	ns         *moria.Namespace
	populating map[string]bool
}

// NewParser returns a Parser over an open ELF file, deriving the
// target architecture from the file header.
func NewParser(f *elf.File) (*Parser, error) {
	var wordSize int64
	switch f.Class {
	case elf.ELFCLASS32:
		wordSize = 4
	case elf.ELFCLASS64:
		wordSize = 8
	default:
		return nil, fmt.Errorf("%w: elf class %v", arch.ErrUnsupportedClass, f.Class)
	}
	a, err := arch.New(f.ByteOrder, wordSize)
	if err != nil {
		return nil, err
	}
	d, err := f.DWARF()
	if err != nil {
		return nil, err
	}
	return &Parser{data: d, ns: moria.NewNamespace(a), populating: make(map[string]bool)}, nil
}

// Parse opens the binary at path and returns the finalized namespace
// holding every named struct type in its debug info.
func Parse(path string) (*moria.Namespace, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := NewParser(f)
	if err != nil {
		return nil, err
	}
	return p.Namespace()
}

// Namespace traverses every compilation unit, registers the struct
// types they declare, and returns the finalized namespace.
func (p *Parser) Namespace() (*moria.Namespace, error) {
	r := p.data.Reader()
	for {
		e, err := r.Next()
		if err != nil {
			return nil, err
		}
		if e == nil {
			break
		}
		if e.Tag != dwarf.TagStructType {
			continue
		}
		t, err := p.data.Type(e.Offset)
		if err != nil {
			return nil, err
		}
		st, ok := t.(*dwarf.StructType)
		if !ok || st.StructName == "" || st.Incomplete {
			continue
		}
		if _, err := p.addStruct(st); err != nil {
			return nil, err
		}
	}
	if err := p.ns.Finalize(); err != nil {
		return nil, err
	}
	return p.ns, nil
}

// addStruct interns the struct under its name and populates its
// fields, unless it is already populated or population is in progress
// further up the stack (self-referential structs).
func (p *Parser) addStruct(st *dwarf.StructType) (*moria.StructType, error) {
	if st.Kind != "struct" {
		return nil, fmt.Errorf("%w: %s %s", ErrUnsupportedTag, st.Kind, st.StructName)
	}
	out := p.ns.GetOrCreateStruct(st.StructName)
	if out.NumFields() > 0 || p.populating[st.StructName] {
		return out, nil
	}
	p.populating[st.StructName] = true
	defer delete(p.populating, st.StructName)
	for _, f := range st.Field {
		t, err := p.convert(f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s.%s: %w", st.StructName, f.Name, err)
		}
		out.AddField(moria.StructField{Offset: f.ByteOffset, Type: t, Name: f.Name})
	}
	return out, nil
}

// convert maps a debug/dwarf type tree onto the catalogue's type
// model. Typedefs are transparent; a target-less typedef becomes an
// unsigned integer of its declared size.
func (p *Parser) convert(t dwarf.Type) (moria.Type, error) {
	switch t := t.(type) {
	case *dwarf.CharType:
		return p.ns.NewIntType(t.Name, byteSize(t.Common()), true), nil
	case *dwarf.IntType:
		return p.ns.NewIntType(t.Name, byteSize(t.Common()), true), nil
	case *dwarf.UcharType, *dwarf.UintType, *dwarf.BoolType, *dwarf.AddrType, *dwarf.FloatType:
		// Booleans, machine addresses, and floats are carried as
		// opaque unsigned integers of their stated size.
		c := t.Common()
		return p.ns.NewIntType(c.Name, byteSize(c), false), nil
	case *dwarf.ComplexType, *dwarf.UnspecifiedType:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, t.String())
	case *dwarf.PtrType:
		if t.Type == nil {
			return p.ns.VoidPointer, nil
		}
		if _, ok := t.Type.(*dwarf.VoidType); ok {
			return p.ns.VoidPointer, nil
		}
		inner, err := p.convert(t.Type)
		if err != nil {
			return nil, err
		}
		return p.ns.PointerTo(inner), nil
	case *dwarf.ArrayType:
		elem, err := p.convert(t.Type)
		if err != nil {
			return nil, err
		}
		count := t.Count
		if count < 0 {
			// Incomplete array, like char x[].
			count = 0
		}
		return p.ns.ArrayOf(elem, count), nil
	case *dwarf.StructType:
		return p.addStruct(t)
	case *dwarf.TypedefType:
		if t.Type != nil {
			return p.convert(t.Type)
		}
		return p.ns.NewIntType(t.Name, byteSize(t.Common()), false), nil
	case *dwarf.VoidType:
		return p.ns.Void, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedTag, t.String())
}

// byteSize maps debug/dwarf's missing-size convention onto the
// catalogue's.
func byteSize(c *dwarf.CommonType) int64 {
	if c.ByteSize <= 0 {
		return moria.SizeUnknown
	}
	return c.ByteSize
}
