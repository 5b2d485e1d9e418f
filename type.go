// Copyright 2023 The Moria Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package moria

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// SizeUnknown marks a type whose byte size is not resolved. Such a
// type cannot be serialized, cast to, or placed by the layout engine.
const SizeUnknown int64 = -1

// A Type describes a C type owned by a Namespace. The concrete types
// are *IntType, *PointerType, *ArrayType, and *StructType.
type Type interface {
	// Name returns the C-like spelling of the type.
	Name() string
	// Size returns the byte size of the type, or SizeUnknown.
	Size() int64
	// Equal reports whether two types denote the same type in the
	// same namespace.
	Equal(Type) bool
	// Namespace returns the owning namespace.
	Namespace() *Namespace
}

// An IntType is an integral type of a given size and signedness.
// Floating-point source types are carried as opaque unsigned integers
// of their stated size. The distinguished "void" type is an IntType
// with unknown size.
type IntType struct {
	ns     *Namespace
	name   string
	size   int64
	signed bool
}

func (t *IntType) Name() string          { return t.name }
func (t *IntType) Size() int64           { return t.size }
func (t *IntType) Namespace() *Namespace { return t.ns }
func (t *IntType) String() string        { return t.name }

// Signed reports whether the type is signed.
func (t *IntType) Signed() bool { return t.signed }

// Equal reports whether u is an integer type of the same size and
// signedness in the same namespace. Names do not participate.
func (t *IntType) Equal(u Type) bool {
	o, ok := u.(*IntType)
	return ok && o.ns == t.ns && o.size == t.size && o.signed == t.signed
}

// bounds returns the inclusive payload range of t. The maximum is
// unsigned so that the full range of an 8-byte unsigned type is
// expressible.
func (t *IntType) bounds() (min int64, max uint64, err error) {
	if t.size == SizeUnknown {
		return 0, 0, fmt.Errorf("%w: %s has no bounds", ErrUnresolvedSize, t.name)
	}
	bits := uint(8 * t.size)
	if t.signed {
		if bits == 64 {
			return math.MinInt64, math.MaxInt64, nil
		}
		return -(int64(1) << (bits - 1)), (uint64(1) << (bits - 1)) - 1, nil
	}
	if bits == 64 {
		return 0, math.MaxUint64, nil
	}
	return 0, (uint64(1) << bits) - 1, nil
}

// checkRange reports whether v is representable by t.
func (t *IntType) checkRange(v int64) error {
	min, max, err := t.bounds()
	if err != nil {
		return err
	}
	if v < min || (v > 0 && uint64(v) > max) {
		return fmt.Errorf("%w: %d cannot be represented by %s int of size %d",
			ErrOutOfRange, v, signedness(t.signed), t.size)
	}
	return nil
}

// mask returns the payload bit mask. The size must be known.
func (t *IntType) mask() uint64 {
	if t.size >= 8 {
		return math.MaxUint64
	}
	return (uint64(1) << (8 * uint(t.size))) - 1
}

func signedness(signed bool) string {
	if signed {
		return "signed"
	}
	return "unsigned"
}

// A PointerType is a pointer to a referenced type. Its size is always
// the namespace architecture's pointer size and its wire encoding is
// always unsigned.
type PointerType struct {
	ns         *Namespace
	referenced Type
}

func (t *PointerType) Name() string          { return t.referenced.Name() + "*" }
func (t *PointerType) Size() int64           { return t.ns.arch.PointerSize }
func (t *PointerType) Namespace() *Namespace { return t.ns }
func (t *PointerType) String() string        { return t.Name() }

// Referenced returns the pointed-to type.
func (t *PointerType) Referenced() Type { return t.referenced }

// Equal reports whether u is a pointer to an equal type in the same
// namespace.
func (t *PointerType) Equal(u Type) bool {
	o, ok := u.(*PointerType)
	return ok && o.ns == t.ns && o.referenced.Equal(t.referenced)
}

// An ArrayType is a fixed-count sequence of a member type.
type ArrayType struct {
	ns     *Namespace
	member Type
	count  int64
}

func (t *ArrayType) Name() string {
	if t.count > 0 {
		return fmt.Sprintf("%s[%d]", t.member.Name(), t.count)
	}
	return t.member.Name() + "[]"
}

func (t *ArrayType) Size() int64 {
	if msize := t.member.Size(); msize != SizeUnknown {
		return msize * t.count
	}
	return SizeUnknown
}

func (t *ArrayType) Namespace() *Namespace { return t.ns }
func (t *ArrayType) String() string        { return t.Name() }

// Member returns the element type.
func (t *ArrayType) Member() Type { return t.member }

// Count returns the element count.
func (t *ArrayType) Count() int64 { return t.count }

// Equal reports whether u is an array of an equal member type with
// the same count in the same namespace.
func (t *ArrayType) Equal(u Type) bool {
	o, ok := u.(*ArrayType)
	return ok && o.ns == t.ns && o.count == t.count && o.member.Equal(t.member)
}

// A StructField is a named, typed member of a struct at a fixed byte
// offset. Offsets are taken verbatim from the catalogue source; no
// alignment or padding is computed.
type StructField struct {
	Offset int64
	Type   Type
	Name   string
}

// Size returns the byte size of the field's type.
func (f StructField) Size() int64 { return f.Type.Size() }

// Equal reports whether two fields declare the same name and type at
// the same offset.
func (f StructField) Equal(g StructField) bool {
	return f.Offset == g.Offset && f.Name == g.Name && f.Type.Equal(g.Type)
}

func (f StructField) String() string { return f.Type.Name() + " " + f.Name }

// A StructType is a named aggregate whose fields are kept ordered by
// offset. Its size is the end of its last field; an empty struct or
// one whose last field has unknown size has unknown size.
type StructType struct {
	ns     *Namespace
	name   string
	fields []StructField
}

func (t *StructType) Name() string          { return t.name }
func (t *StructType) Namespace() *Namespace { return t.ns }
func (t *StructType) String() string        { return t.name }

func (t *StructType) Size() int64 {
	if len(t.fields) == 0 {
		return SizeUnknown
	}
	last := t.fields[len(t.fields)-1]
	if last.Size() == SizeUnknown {
		return SizeUnknown
	}
	return last.Offset + last.Size()
}

// Equal reports whether u is the struct registered under the same
// name in the same namespace.
func (t *StructType) Equal(u Type) bool {
	o, ok := u.(*StructType)
	return ok && o.ns == t.ns && o.name == t.name
}

// AddField inserts f, keeping the field list ordered by offset.
func (t *StructType) AddField(f StructField) {
	i := sort.Search(len(t.fields), func(i int) bool { return t.fields[i].Offset >= f.Offset })
	t.fields = append(t.fields, StructField{})
	copy(t.fields[i+1:], t.fields[i:])
	t.fields[i] = f
}

// Fields returns the fields in offset order. The slice is owned by
// the type and must not be modified.
func (t *StructType) Fields() []StructField { return t.fields }

// NumFields returns the number of declared fields.
func (t *StructType) NumFields() int { return len(t.fields) }

// FieldByName returns the field declared under name.
func (t *StructType) FieldByName(name string) (StructField, bool) {
	for _, f := range t.fields {
		if f.Name == name {
			return f, true
		}
	}
	return StructField{}, false
}

// Pretty returns the C-like rendering of the struct declaration.
// Struct-typed fields are rendered inline, indented two spaces per
// nesting level.
func (t *StructType) Pretty() string {
	return strings.Join(t.prettyLines(0), "\n")
}

func (t *StructType) prettyLines(indent int) []string {
	pad := strings.Repeat(" ", indent)
	lines := []string{pad + "struct " + t.name + " {"}
	for _, f := range t.fields {
		if st, ok := f.Type.(*StructType); ok {
			lines = append(lines, st.prettyLines(indent+2)...)
		} else {
			lines = append(lines, pad+"  "+f.String()+";")
		}
	}
	return append(lines, pad+"};")
}
