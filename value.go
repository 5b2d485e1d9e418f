// Copyright 2023 The Moria Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package moria

import (
	"fmt"
	"strings"
)

// A Value is a typed datum positioned in the address space being
// built. The concrete values are *Int, *Pointer, *Array, and *Struct.
//
// Structs own their fields and arrays own their elements; pointers
// only reference their target. Every value carries a positional
// binding: an optional base value plus an offset. A value with an
// offset and no base sits at an absolute address; a value with
// neither is free for the layout engine to place.
type Value interface {
	// Type returns the value's type. A value's type never changes
	// after construction.
	Type() Type
	// Base returns the value this one is positioned relative to, or
	// nil when the offset is absolute.
	Base() Value
	// Offset returns the offset and whether it is set.
	Offset() (int64, bool)
	// Addr returns the derived absolute address: the base's address
	// plus the offset, or the offset alone when there is no base.
	Addr() (int64, bool)
	// Move rebinds the value to base at the given offset. A nil base
	// makes the offset absolute.
	Move(base Value, offset int64)
	// Unbind clears the positional binding, leaving the value free
	// for the layout engine to place.
	Unbind()
	// Ref returns a pointer value referencing this value.
	Ref() *Pointer
	// Copy returns an unbound deep copy. Pointer values share their
	// referent with the original.
	Copy() Value
	// Pack serializes the value in the namespace's byte order.
	Pack() ([]byte, error)

	fmt.Stringer

	copyAt(base Value, offset int64, bound bool) Value
	refs() []Value
}

// A binding locates a value: an optional base value the offset is
// relative to, and the offset itself.
type binding struct {
	base  Value
	off   int64
	bound bool
}

func (b *binding) Base() Value { return b.base }

func (b *binding) Offset() (int64, bool) { return b.off, b.bound }

func (b *binding) Move(base Value, offset int64) {
	b.base, b.off, b.bound = base, offset, true
}

func (b *binding) Unbind() {
	b.base, b.off, b.bound = nil, 0, false
}

func (b *binding) Addr() (int64, bool) {
	if !b.bound {
		return 0, false
	}
	if b.base == nil {
		return b.off, true
	}
	base, ok := b.base.Addr()
	if !ok {
		return 0, false
	}
	return base + b.off, true
}

func refTo(v Value) *Pointer {
	return v.Type().Namespace().PointerTo(v.Type()).NewRef(v)
}

func castError(t Type, x any) error {
	return fmt.Errorf("%w: %s cannot be assigned from %T", ErrTypeMismatch, t.Name(), x)
}

// newValue default-constructs a value of type t with the given
// binding.
func newValue(t Type, base Value, off int64, bound bool) (Value, error) {
	switch t := t.(type) {
	case *IntType:
		return &Int{binding: binding{base, off, bound}, typ: t}, nil
	case *PointerType:
		return &Pointer{binding: binding{base, off, bound}, typ: t}, nil
	case *ArrayType:
		return t.newAt(nil, base, off, bound)
	case *StructType:
		return t.newAt(nil, base, off, bound)
	}
	panic(fmt.Sprintf("unknown type %T", t))
}

func castValueAt(t Type, x any, base Value, off int64, bound bool) (Value, error) {
	switch t := t.(type) {
	case *IntType:
		return t.castAt(x, base, off, bound)
	case *PointerType:
		return t.castAt(x, base, off, bound)
	case *ArrayType:
		return t.castAt(x, base, off, bound)
	case *StructType:
		return t.castAt(x, base, off, bound)
	}
	panic(fmt.Sprintf("unknown type %T", t))
}

func unpackValueAt(t Type, buf []byte, base Value, off int64, bound bool) (Value, error) {
	switch t := t.(type) {
	case *IntType:
		return t.unpackAt(buf, base, off, bound)
	case *PointerType:
		return t.unpackAt(buf, base, off, bound)
	case *ArrayType:
		return t.unpackAt(buf, base, off, bound)
	case *StructType:
		return t.unpackAt(buf, base, off, bound)
	}
	panic(fmt.Sprintf("unknown type %T", t))
}

// NewValue returns an unbound default-constructed value of type t.
func NewValue(t Type) (Value, error) { return newValue(t, nil, 0, false) }

// CastValue coerces x to an unbound value of type t.
func CastValue(t Type, x any) (Value, error) { return castValueAt(t, x, nil, 0, false) }

// UnpackValue decodes buf as an unbound value of type t.
func UnpackValue(t Type, buf []byte) (Value, error) { return unpackValueAt(t, buf, nil, 0, false) }

// iterate normalizes the convenience sequence forms accepted by array
// and pointer casts into a slice of element inputs.
func iterate(x any) ([]any, bool) {
	switch x := x.(type) {
	case string:
		items := make([]any, len(x))
		for i := 0; i < len(x); i++ {
			items[i] = x[i]
		}
		return items, true
	case []byte:
		items := make([]any, len(x))
		for i, c := range x {
			items[i] = c
		}
		return items, true
	case []any:
		return x, true
	case []int:
		items := make([]any, len(x))
		for i, n := range x {
			items[i] = n
		}
		return items, true
	case []int64:
		items := make([]any, len(x))
		for i, n := range x {
			items[i] = n
		}
		return items, true
	case []uint64:
		items := make([]any, len(x))
		for i, n := range x {
			items[i] = n
		}
		return items, true
	case []Value:
		items := make([]any, len(x))
		for i, v := range x {
			items[i] = v
		}
		return items, true
	}
	return nil, false
}

// An Int is a typed integral value. The payload is optional; an unset
// Int packs as zero.
type Int struct {
	binding
	typ  *IntType
	bits uint64 // two's-complement payload, masked to the type size
	set  bool
}

// New returns an Int holding v, which must be representable by t.
func (t *IntType) New(v int64) (*Int, error) { return t.newIntAt(v, nil, 0, false) }

func (t *IntType) newIntAt(v int64, base Value, off int64, bound bool) (*Int, error) {
	if err := t.checkRange(v); err != nil {
		return nil, err
	}
	return &Int{binding: binding{base, off, bound}, typ: t, bits: uint64(v) & t.mask(), set: true}, nil
}

// Cast coerces x to an Int of type t. Integers are wrapped modulo the
// type's bit width and reinterpreted with its signedness; floats are
// truncated toward zero first; a one-rune string or one-byte byte
// slice yields its ordinal. An Int of the same type is copied.
func (t *IntType) Cast(x any) (*Int, error) { return t.castAt(x, nil, 0, false) }

func (t *IntType) castAt(x any, base Value, off int64, bound bool) (*Int, error) {
	if t.size == SizeUnknown {
		return nil, fmt.Errorf("%w: cannot cast to %s", ErrUnresolvedSize, t.name)
	}
	var bits uint64
	switch x := x.(type) {
	case *Int:
		if !t.Equal(x.typ) {
			return nil, castError(t, x)
		}
		return x.copyAt(base, off, bound).(*Int), nil
	case int:
		bits = uint64(int64(x))
	case int8:
		bits = uint64(int64(x))
	case int16:
		bits = uint64(int64(x))
	case int32:
		bits = uint64(int64(x))
	case int64:
		bits = uint64(x)
	case uint:
		bits = uint64(x)
	case uint8:
		bits = uint64(x)
	case uint16:
		bits = uint64(x)
	case uint32:
		bits = uint64(x)
	case uint64:
		bits = x
	case float32:
		bits = uint64(int64(x))
	case float64:
		bits = uint64(int64(x))
	case string:
		r := []rune(x)
		if len(r) != 1 {
			return nil, castError(t, x)
		}
		bits = uint64(r[0])
	case []byte:
		if len(x) != 1 {
			return nil, castError(t, x)
		}
		bits = uint64(x[0])
	default:
		return nil, castError(t, x)
	}
	return &Int{binding: binding{base, off, bound}, typ: t, bits: bits & t.mask(), set: true}, nil
}

// Unpack decodes exactly Size bytes into an Int.
func (t *IntType) Unpack(buf []byte) (*Int, error) { return t.unpackAt(buf, nil, 0, false) }

func (t *IntType) unpackAt(buf []byte, base Value, off int64, bound bool) (*Int, error) {
	if t.size == SizeUnknown {
		return nil, fmt.Errorf("%w: cannot unpack %s", ErrUnresolvedSize, t.name)
	}
	if int64(len(buf)) != t.size {
		return nil, fmt.Errorf("%w: need %d bytes to unpack %s, got %d",
			ErrSizeMismatch, t.size, t.name, len(buf))
	}
	return &Int{binding: binding{base, off, bound}, typ: t, bits: t.ns.arch.Uint(buf), set: true}, nil
}

func (v *Int) Type() Type    { return v.typ }
func (v *Int) Ref() *Pointer { return refTo(v) }
func (v *Int) Copy() Value   { return v.copyAt(nil, 0, false) }

// IsSet reports whether the payload has been assigned.
func (v *Int) IsSet() bool { return v.set }

// Int64 returns the payload with the type's signedness applied:
// sign-extended for signed types, zero-extended otherwise.
func (v *Int) Int64() int64 {
	if v.typ.signed {
		shift := uint(64 - 8*v.typ.size)
		return int64(v.bits<<shift) >> shift
	}
	return int64(v.bits)
}

// Uint64 returns the raw payload bits.
func (v *Int) Uint64() uint64 { return v.bits }

// Set assigns the payload, applying the same range check as New.
func (v *Int) Set(x int64) error {
	if err := v.typ.checkRange(x); err != nil {
		return err
	}
	v.bits, v.set = uint64(x)&v.typ.mask(), true
	return nil
}

func (v *Int) Pack() ([]byte, error) {
	if v.typ.size == SizeUnknown {
		return nil, fmt.Errorf("%w: cannot pack %s", ErrUnresolvedSize, v.typ.name)
	}
	buf := make([]byte, v.typ.size)
	v.typ.ns.arch.PutUint(buf, v.bits)
	return buf, nil
}

func (v *Int) copyAt(base Value, off int64, bound bool) Value {
	return &Int{binding: binding{base, off, bound}, typ: v.typ, bits: v.bits, set: v.set}
}

func (v *Int) refs() []Value {
	if v.base != nil {
		return []Value{v.base}
	}
	return nil
}

func (v *Int) String() string {
	if !v.set {
		return "<" + v.typ.name + " ?>"
	}
	if v.typ.signed {
		return fmt.Sprintf("<%s %d>", v.typ.name, v.Int64())
	}
	return fmt.Sprintf("<%s %d>", v.typ.name, v.bits)
}

// An Array is a fixed-length sequence of values of one member type.
// Elements are owned by the array and bound to it at offsets that are
// multiples of the member size.
type Array struct {
	binding
	typ   *ArrayType
	elems []Value
}

// New returns an array value. With a nil slice every element is
// default-constructed; otherwise exactly Count values are copied in
// and rebound to the array.
func (t *ArrayType) New(vals []Value) (*Array, error) { return t.newAt(vals, nil, 0, false) }

func (t *ArrayType) newAt(vals []Value, base Value, off int64, bound bool) (*Array, error) {
	msize := t.member.Size()
	if msize == SizeUnknown {
		return nil, fmt.Errorf("%w: array of %s", ErrUnresolvedSize, t.member.Name())
	}
	a := &Array{binding: binding{base, off, bound}, typ: t}
	if vals == nil {
		a.elems = make([]Value, t.count)
		for i := range a.elems {
			e, err := newValue(t.member, a, int64(i)*msize, true)
			if err != nil {
				return nil, err
			}
			a.elems[i] = e
		}
		return a, nil
	}
	if int64(len(vals)) != t.count {
		return nil, fmt.Errorf("%w: %s needs %d elements, got %d",
			ErrShapeMismatch, t.Name(), t.count, len(vals))
	}
	a.elems = make([]Value, len(vals))
	for i, v := range vals {
		if !v.Type().Equal(t.member) {
			return nil, fmt.Errorf("%w: element %d is %s, not %s",
				ErrTypeMismatch, i, v.Type().Name(), t.member.Name())
		}
		a.elems[i] = v.copyAt(a, int64(i)*msize, true)
	}
	return a, nil
}

// Cast builds an array from at most Count inputs, casting each to the
// member type and default-constructing the remaining slots.
func (t *ArrayType) Cast(x any) (*Array, error) { return t.castAt(x, nil, 0, false) }

func (t *ArrayType) castAt(x any, base Value, off int64, bound bool) (*Array, error) {
	if a, ok := x.(*Array); ok {
		if !t.Equal(a.typ) {
			return nil, castError(t, x)
		}
		return a.copyAt(base, off, bound).(*Array), nil
	}
	items, ok := iterate(x)
	if !ok {
		return nil, castError(t, x)
	}
	if int64(len(items)) > t.count {
		return nil, fmt.Errorf("%w: too many elements (%d) to fit in %s",
			ErrTypeMismatch, len(items), t.Name())
	}
	vals := make([]Value, 0, t.count)
	for _, item := range items {
		v, err := CastValue(t.member, item)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	for int64(len(vals)) < t.count {
		v, err := NewValue(t.member)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return t.newAt(vals, base, off, bound)
}

// Unpack decodes Count times the member size bytes into an array.
func (t *ArrayType) Unpack(buf []byte) (*Array, error) { return t.unpackAt(buf, nil, 0, false) }

func (t *ArrayType) unpackAt(buf []byte, base Value, off int64, bound bool) (*Array, error) {
	msize := t.member.Size()
	if msize == SizeUnknown {
		return nil, fmt.Errorf("%w: cannot unpack array of %s", ErrUnresolvedSize, t.member.Name())
	}
	if int64(len(buf)) != msize*t.count {
		return nil, fmt.Errorf("%w: need %d bytes to unpack %s, got %d",
			ErrSizeMismatch, msize*t.count, t.Name(), len(buf))
	}
	vals := make([]Value, t.count)
	for i := range vals {
		v, err := UnpackValue(t.member, buf[int64(i)*msize:int64(i+1)*msize])
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		vals[i] = v
	}
	return t.newAt(vals, base, off, bound)
}

func (v *Array) Type() Type    { return v.typ }
func (v *Array) Ref() *Pointer { return refTo(v) }
func (v *Array) Copy() Value   { return v.copyAt(nil, 0, false) }

// Len returns the element count.
func (v *Array) Len() int { return len(v.elems) }

// Index returns element i.
func (v *Array) Index(i int) Value { return v.elems[i] }

// Bytes converts a character array (an array of single-byte integers)
// to the byte sequence up to but excluding the first zero or unset
// element, or all elements if none is zero.
func (v *Array) Bytes() ([]byte, error) {
	m, ok := v.typ.member.(*IntType)
	if !ok || m.size != 1 {
		return nil, fmt.Errorf("%w: byte conversion needs a single-byte integer array, have %s",
			ErrTypeMismatch, v.typ.Name())
	}
	var out []byte
	for _, e := range v.elems {
		iv := e.(*Int)
		if !iv.set || iv.bits == 0 {
			break
		}
		out = append(out, byte(iv.bits))
	}
	return out, nil
}

func (v *Array) Pack() ([]byte, error) {
	msize := v.typ.member.Size()
	if msize == SizeUnknown {
		return nil, fmt.Errorf("%w: cannot pack array of %s", ErrUnresolvedSize, v.typ.member.Name())
	}
	buf := make([]byte, 0, msize*v.typ.count)
	for i, e := range v.elems {
		part, err := e.Pack()
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		if int64(len(part)) != msize {
			return nil, fmt.Errorf("%w: element %d packed to %d bytes, want %d",
				ErrSizeMismatch, i, len(part), msize)
		}
		buf = append(buf, part...)
	}
	return buf, nil
}

func (v *Array) copyAt(base Value, off int64, bound bool) Value {
	msize := v.typ.member.Size()
	a := &Array{binding: binding{base, off, bound}, typ: v.typ, elems: make([]Value, len(v.elems))}
	for i, e := range v.elems {
		a.elems[i] = e.copyAt(a, int64(i)*msize, true)
	}
	return a
}

func (v *Array) refs() []Value {
	var out []Value
	if v.base != nil {
		out = append(out, v.base)
	}
	return append(out, v.elems...)
}

func (v *Array) String() string {
	if b, err := v.Bytes(); err == nil {
		return fmt.Sprintf("(%s)%q", v.typ.Name(), b)
	}
	parts := make([]string, len(v.elems))
	for i, e := range v.elems {
		parts[i] = e.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// A Pointer is a typed pointer value. It references another value in
// the graph, holds a raw target address, or is null. The referent is
// not owned: dropping the pointer does not affect it, and packing
// never stores through it.
type Pointer struct {
	binding
	typ      *PointerType
	referent Value
	raw      uint64
	hasRaw   bool
}

// New returns a null pointer.
func (t *PointerType) New() *Pointer { return &Pointer{typ: t} }

// NewRef returns a pointer referencing v.
func (t *PointerType) NewRef(v Value) *Pointer { return &Pointer{typ: t, referent: v} }

// NewRaw returns a pointer holding the raw target address addr.
func (t *PointerType) NewRaw(addr uint64) *Pointer {
	return &Pointer{typ: t, raw: addr, hasRaw: true}
}

// Cast coerces x to a pointer of type t. An integer becomes a raw
// target address. A string or a byte or value sequence materializes
// an array of the referenced type, cast element-wise, which the
// resulting pointer references; an empty sequence is rejected.
func (t *PointerType) Cast(x any) (*Pointer, error) { return t.castAt(x, nil, 0, false) }

func (t *PointerType) castAt(x any, base Value, off int64, bound bool) (*Pointer, error) {
	switch x := x.(type) {
	case *Pointer:
		if !t.Equal(x.typ) {
			return nil, castError(t, x)
		}
		return x.copyAt(base, off, bound).(*Pointer), nil
	case int:
		p := t.NewRaw(uint64(int64(x)))
		p.binding = binding{base, off, bound}
		return p, nil
	case int64:
		p := t.NewRaw(uint64(x))
		p.binding = binding{base, off, bound}
		return p, nil
	case uint64:
		p := t.NewRaw(x)
		p.binding = binding{base, off, bound}
		return p, nil
	case int8, int16, int32, uint, uint8, uint16, uint32:
		n, err := t.ns.UInt64.Cast(x)
		if err != nil {
			return nil, err
		}
		p := t.NewRaw(n.Uint64())
		p.binding = binding{base, off, bound}
		return p, nil
	}
	items, ok := iterate(x)
	if !ok {
		return nil, castError(t, x)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: cannot point %s at an empty sequence", ErrTypeMismatch, t.Name())
	}
	arr, err := t.ns.ArrayOf(t.referenced, int64(len(items))).Cast(x)
	if err != nil {
		return nil, err
	}
	return &Pointer{binding: binding{base, off, bound}, typ: t, referent: arr}, nil
}

// Unpack decodes a pointer-sized buffer into a pointer with a raw
// target address.
func (t *PointerType) Unpack(buf []byte) (*Pointer, error) { return t.unpackAt(buf, nil, 0, false) }

func (t *PointerType) unpackAt(buf []byte, base Value, off int64, bound bool) (*Pointer, error) {
	if int64(len(buf)) != t.Size() {
		return nil, fmt.Errorf("%w: need %d bytes to unpack %s, got %d",
			ErrSizeMismatch, t.Size(), t.Name(), len(buf))
	}
	p := t.NewRaw(t.ns.arch.Uint(buf))
	p.binding = binding{base, off, bound}
	return p, nil
}

func (p *Pointer) Type() Type    { return p.typ }
func (p *Pointer) Ref() *Pointer { return refTo(p) }
func (p *Pointer) Copy() Value   { return p.copyAt(nil, 0, false) }

// Referent returns the referenced value, or nil.
func (p *Pointer) Referent() Value { return p.referent }

// SetRef points p at v. A pointer cannot hold both a referent and a
// raw address.
func (p *Pointer) SetRef(v Value) error {
	if p.hasRaw {
		return fmt.Errorf("%w: pointer already holds a raw address", ErrConflictingInit)
	}
	p.referent = v
	return nil
}

// SetRaw assigns a raw target address.
func (p *Pointer) SetRaw(addr uint64) error {
	if p.referent != nil {
		return fmt.Errorf("%w: pointer already holds a referent", ErrConflictingInit)
	}
	p.raw, p.hasRaw = addr, true
	return nil
}

// Target returns the effective target address: the raw address if one
// is set, otherwise the referent's derived address.
func (p *Pointer) Target() (int64, bool) {
	if p.hasRaw {
		return int64(p.raw), true
	}
	if p.referent == nil {
		return 0, false
	}
	return p.referent.Addr()
}

// Pack emits the pointer-sized unsigned target address, or zero when
// the target is null or unresolved.
func (p *Pointer) Pack() ([]byte, error) {
	buf := make([]byte, p.typ.Size())
	if addr, ok := p.Target(); ok {
		p.typ.ns.arch.PutUint(buf, uint64(addr))
	}
	return buf, nil
}

func (p *Pointer) copyAt(base Value, off int64, bound bool) Value {
	return &Pointer{
		binding:  binding{base, off, bound},
		typ:      p.typ,
		referent: p.referent,
		raw:      p.raw,
		hasRaw:   p.hasRaw,
	}
}

func (p *Pointer) refs() []Value {
	var out []Value
	if p.base != nil {
		out = append(out, p.base)
	}
	if p.referent != nil {
		out = append(out, p.referent)
	}
	return out
}

func (p *Pointer) String() string {
	name := p.typ.referenced.Name()
	addr, ok := p.Target()
	switch {
	case !ok:
		return "(" + name + "*)?"
	case addr == 0:
		return "(" + name + "*)NULL"
	}
	return fmt.Sprintf("(%s*)%#x", name, addr)
}

// A Struct is a composite value with named fields at fixed offsets.
// Fields are owned by the struct and bound to it at their declared
// offsets.
type Struct struct {
	binding
	typ    *StructType
	fields map[string]Value
}

// New returns a struct value with every declared field
// default-constructed, then applies the given initializers with Set's
// coercion rules.
func (t *StructType) New(inits map[string]any) (*Struct, error) {
	return t.newAt(inits, nil, 0, false)
}

func (t *StructType) newAt(inits map[string]any, base Value, off int64, bound bool) (*Struct, error) {
	s := &Struct{
		binding: binding{base, off, bound},
		typ:     t,
		fields:  make(map[string]Value, len(t.fields)),
	}
	for _, f := range t.fields {
		fv, err := newValue(f.Type, s, f.Offset, true)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		s.fields[f.Name] = fv
	}
	for name, x := range inits {
		if err := s.Set(name, x); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Cast accepts only struct values of the same type, which are copied.
func (t *StructType) Cast(x any) (*Struct, error) { return t.castAt(x, nil, 0, false) }

func (t *StructType) castAt(x any, base Value, off int64, bound bool) (*Struct, error) {
	if s, ok := x.(*Struct); ok && t.Equal(s.typ) {
		return s.copyAt(base, off, bound).(*Struct), nil
	}
	return nil, castError(t, x)
}

// Unpack slices buf by each field's declared window and unpacks the
// fields recursively. buf must be exactly the struct size.
func (t *StructType) Unpack(buf []byte) (*Struct, error) { return t.unpackAt(buf, nil, 0, false) }

func (t *StructType) unpackAt(buf []byte, base Value, off int64, bound bool) (*Struct, error) {
	size := t.Size()
	if size == SizeUnknown {
		return nil, fmt.Errorf("%w: cannot unpack %s", ErrUnresolvedSize, t.name)
	}
	if int64(len(buf)) != size {
		return nil, fmt.Errorf("%w: need %d bytes to unpack %s, got %d",
			ErrSizeMismatch, size, t.name, len(buf))
	}
	s, err := t.newAt(nil, base, off, bound)
	if err != nil {
		return nil, err
	}
	for _, f := range t.fields {
		fsize := f.Size()
		if fsize == SizeUnknown {
			return nil, fmt.Errorf("field %s: %w: cannot unpack %s", f.Name, ErrUnresolvedSize, f.Type.Name())
		}
		fv, err := unpackValueAt(f.Type, buf[f.Offset:f.Offset+fsize], s, f.Offset, true)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		s.fields[f.Name] = fv
	}
	return s, nil
}

func (s *Struct) Type() Type    { return s.typ }
func (s *Struct) Ref() *Pointer { return refTo(s) }
func (s *Struct) Copy() Value   { return s.copyAt(nil, 0, false) }

// Field returns the value of the named field.
func (s *Struct) Field(name string) (Value, error) {
	v, ok := s.fields[name]
	if !ok {
		return nil, fmt.Errorf("%w: struct %s has no field %s", ErrUnknownField, s.typ.name, name)
	}
	return v, nil
}

// Set assigns the named field. A value of the field's type is copied
// and rebound to the struct; any other input is cast to the field
// type.
func (s *Struct) Set(name string, x any) error {
	f, ok := s.typ.FieldByName(name)
	if !ok {
		return fmt.Errorf("%w: struct %s has no field %s", ErrUnknownField, s.typ.name, name)
	}
	if v, ok := x.(Value); ok && v.Type().Equal(f.Type) {
		s.fields[name] = v.copyAt(s, f.Offset, true)
		return nil
	}
	v, err := castValueAt(f.Type, x, s, f.Offset, true)
	if err != nil {
		return fmt.Errorf("field %s: %w", name, err)
	}
	s.fields[name] = v
	return nil
}

// Pack emits the fields in offset order, zero-filling the gap before
// each field. Fields must not overlap.
func (s *Struct) Pack() ([]byte, error) {
	if len(s.typ.fields) == 0 {
		return nil, fmt.Errorf("%w: cannot pack empty struct %s", ErrUnresolvedSize, s.typ.name)
	}
	var buf []byte
	var lastEnd int64
	for _, f := range s.typ.fields {
		pad := f.Offset - lastEnd
		if pad < 0 {
			return nil, fmt.Errorf("%w: field %s at offset %d overlaps the previous field",
				ErrSizeMismatch, f.Name, f.Offset)
		}
		fsize := f.Size()
		if fsize == SizeUnknown {
			return nil, fmt.Errorf("field %s: %w: cannot pack %s", f.Name, ErrUnresolvedSize, f.Type.Name())
		}
		part, err := s.fields[f.Name].Pack()
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		if int64(len(part)) != fsize {
			return nil, fmt.Errorf("%w: field %s packed to %d bytes, want %d",
				ErrSizeMismatch, f.Name, len(part), fsize)
		}
		buf = append(buf, make([]byte, pad)...)
		buf = append(buf, part...)
		lastEnd = f.Offset + fsize
	}
	return buf, nil
}

func (s *Struct) copyAt(base Value, off int64, bound bool) Value {
	c := &Struct{
		binding: binding{base, off, bound},
		typ:     s.typ,
		fields:  make(map[string]Value, len(s.fields)),
	}
	for _, f := range s.typ.fields {
		c.fields[f.Name] = s.fields[f.Name].copyAt(c, f.Offset, true)
	}
	return c
}

func (s *Struct) refs() []Value {
	var out []Value
	if s.base != nil {
		out = append(out, s.base)
	}
	for _, f := range s.typ.fields {
		out = append(out, s.fields[f.Name])
	}
	return out
}

func (s *Struct) String() string {
	var b strings.Builder
	addr := "?"
	if a, ok := s.Addr(); ok {
		addr = fmt.Sprintf("%#x", a)
	}
	fmt.Fprintf(&b, "<struct %s @%s:", s.typ.name, addr)
	for _, f := range s.typ.fields {
		fmt.Fprintf(&b, " %s=%s", f.Name, s.fields[f.Name])
	}
	b.WriteString(">")
	return b.String()
}
