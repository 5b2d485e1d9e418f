// Copyright 2023 The Moria Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dwarf

import (
	"debug/dwarf"
	"debug/elf"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/emmaconnor/moria"
	"github.com/emmaconnor/moria/arch"
)

func testParser() *Parser {
	return &Parser{ns: moria.NewNamespace(arch.X86), populating: make(map[string]bool)}
}

func common(name string, size int64) dwarf.CommonType {
	return dwarf.CommonType{Name: name, ByteSize: size}
}

func basic(name string, size int64) dwarf.BasicType {
	return dwarf.BasicType{CommonType: common(name, size)}
}

// nestedStruct builds the fixture
//
//	struct test {
//	  int int_field;            // offset 0
//	  void *void_ptr_field;     // offset 8
//	  char char_arr_field[16];  // offset 16
//	  struct child_struct {
//	    uint64_t child_uint64_field;
//	  } nested_field;           // offset 32
//	  int num_field;            // offset 40
//	  partial_t *partial_ptr_field; // offset 44
//	};
func nestedStruct() *dwarf.StructType {
	intT := &dwarf.IntType{BasicType: basic("int", 4)}
	charT := &dwarf.CharType{BasicType: basic("char", 1)}
	uint64T := &dwarf.UintType{BasicType: basic("uint64_t", 8)}
	voidPtrT := &dwarf.PtrType{CommonType: common("", 4), Type: &dwarf.VoidType{}}
	charArrT := &dwarf.ArrayType{CommonType: common("", 16), Type: charT, Count: 16}
	childT := &dwarf.StructType{
		CommonType: common("", 8),
		StructName: "child_struct",
		Kind:       "struct",
		Field: []*dwarf.StructField{
			{Name: "child_uint64_field", Type: uint64T, ByteOffset: 0},
		},
	}
	partialT := &dwarf.TypedefType{CommonType: common("partial_t", 0)}
	partialPtrT := &dwarf.PtrType{CommonType: common("", 4), Type: partialT}
	return &dwarf.StructType{
		CommonType: common("", 48),
		StructName: "test",
		Kind:       "struct",
		Field: []*dwarf.StructField{
			{Name: "int_field", Type: intT, ByteOffset: 0},
			{Name: "void_ptr_field", Type: voidPtrT, ByteOffset: 8},
			{Name: "char_arr_field", Type: charArrT, ByteOffset: 16},
			{Name: "nested_field", Type: childT, ByteOffset: 32},
			{Name: "num_field", Type: intT, ByteOffset: 40},
			{Name: "partial_ptr_field", Type: partialPtrT, ByteOffset: 44},
		},
	}
}

func TestAddNestedStruct(t *testing.T) {
	p := testParser()
	st, err := p.addStruct(nestedStruct())
	if err != nil {
		t.Fatal(err)
	}
	if err := p.ns.Finalize(); err != nil {
		t.Fatal(err)
	}

	if st.Size() != 48 {
		t.Errorf("struct test size = %d, want 48", st.Size())
	}
	child, err := p.ns.Struct("child_struct")
	if err != nil {
		t.Fatalf("child_struct was not registered: %v", err)
	}
	if child.Size() != 8 {
		t.Errorf("child_struct size = %d, want 8", child.Size())
	}

	f, ok := st.FieldByName("void_ptr_field")
	if !ok || !f.Type.Equal(p.ns.VoidPointer) {
		t.Errorf("void_ptr_field type = %v, want void*", f.Type)
	}
	f, ok = st.FieldByName("partial_ptr_field")
	if !ok {
		t.Fatal("partial_ptr_field missing")
	}
	pt, ok := f.Type.(*moria.PointerType)
	if !ok || pt.Referenced().Size() != moria.SizeUnknown {
		t.Errorf("partial_ptr_field type = %v, want pointer to unsized partial_t", f.Type)
	}

	want := strings.Join([]string{
		"struct test {",
		"  int int_field;",
		"  void* void_ptr_field;",
		"  char[16] char_arr_field;",
		"  struct child_struct {",
		"    uint64_t child_uint64_field;",
		"  };",
		"  int num_field;",
		"  partial_t* partial_ptr_field;",
		"};",
	}, "\n")
	if got := st.Pretty(); got != want {
		t.Errorf("Pretty:\n%s\nwant:\n%s", got, want)
	}
}

func TestAddStructIdempotent(t *testing.T) {
	p := testParser()
	fixture := nestedStruct()
	if _, err := p.addStruct(fixture); err != nil {
		t.Fatal(err)
	}
	// A second definition of the same struct, as emitted by another
	// compilation unit, must not duplicate fields.
	st, err := p.addStruct(fixture)
	if err != nil {
		t.Fatal(err)
	}
	if st.NumFields() != 6 {
		t.Errorf("fields after re-adding = %d, want 6", st.NumFields())
	}
}

func TestConvert(t *testing.T) {
	p := testParser()
	for _, test := range []struct {
		in     dwarf.Type
		size   int64
		signed bool
	}{
		{&dwarf.IntType{BasicType: basic("int", 4)}, 4, true},
		{&dwarf.CharType{BasicType: basic("char", 1)}, 1, true},
		{&dwarf.UcharType{BasicType: basic("unsigned char", 1)}, 1, false},
		{&dwarf.UintType{BasicType: basic("unsigned int", 4)}, 4, false},
		{&dwarf.BoolType{BasicType: basic("_Bool", 1)}, 1, false},
		{&dwarf.AddrType{BasicType: basic("address", 4)}, 4, false},
		// Floats are opaque unsigned integers of their stated size.
		{&dwarf.FloatType{BasicType: basic("float", 4)}, 4, false},
		{&dwarf.FloatType{BasicType: basic("double", 8)}, 8, false},
		// Typedefs are transparent.
		{&dwarf.TypedefType{CommonType: common("myint", 0), Type: &dwarf.IntType{BasicType: basic("int", 4)}}, 4, true},
		// A target-less typedef becomes an unsigned int of its
		// declared size.
		{&dwarf.TypedefType{CommonType: common("handle_t", 2)}, 2, false},
		{&dwarf.TypedefType{CommonType: common("opaque_t", 0)}, moria.SizeUnknown, false},
	} {
		got, err := p.convert(test.in)
		if err != nil {
			t.Errorf("convert(%v): %v", test.in, err)
			continue
		}
		it, ok := got.(*moria.IntType)
		if !ok {
			t.Errorf("convert(%v) = %T, want *moria.IntType", test.in, got)
			continue
		}
		if it.Size() != test.size || it.Signed() != test.signed {
			t.Errorf("convert(%v) = size %d signed %t, want size %d signed %t",
				test.in, it.Size(), it.Signed(), test.size, test.signed)
		}
	}
}

func TestConvertUnsupported(t *testing.T) {
	p := testParser()
	for _, test := range []struct {
		in   dwarf.Type
		want error
	}{
		{&dwarf.ComplexType{BasicType: basic("complex float", 8)}, ErrUnsupportedEncoding},
		{&dwarf.UnspecifiedType{BasicType: basic("", 0)}, ErrUnsupportedEncoding},
		{&dwarf.StructType{StructName: "u", Kind: "union"}, ErrUnsupportedTag},
		{&dwarf.EnumType{EnumName: "e"}, ErrUnsupportedTag},
		{&dwarf.FuncType{}, ErrUnsupportedTag},
		{&dwarf.QualType{Qual: "const", Type: &dwarf.IntType{BasicType: basic("int", 4)}}, ErrUnsupportedTag},
	} {
		if _, err := p.convert(test.in); !errors.Is(err, test.want) {
			t.Errorf("convert(%v) err = %v, want %v", test.in, err, test.want)
		}
	}
}

func TestConvertArrays(t *testing.T) {
	p := testParser()
	charT := &dwarf.CharType{BasicType: basic("char", 1)}
	got, err := p.convert(&dwarf.ArrayType{CommonType: common("", 16), Type: charT, Count: 16})
	if err != nil {
		t.Fatal(err)
	}
	at, ok := got.(*moria.ArrayType)
	if !ok || at.Count() != 16 || at.Size() != 16 {
		t.Fatalf("convert(char[16]) = %v, %v", got, err)
	}

	// An incomplete array like char x[] carries no count.
	got, err = p.convert(&dwarf.ArrayType{CommonType: common("", 0), Type: charT, Count: -1})
	if err != nil {
		t.Fatal(err)
	}
	if at := got.(*moria.ArrayType); at.Count() != 0 {
		t.Errorf("incomplete array count = %d, want 0", at.Count())
	}
}

func TestNewParserClass(t *testing.T) {
	f := &elf.File{FileHeader: elf.FileHeader{Class: elf.ELFCLASSNONE}}
	if _, err := NewParser(f); !errors.Is(err, arch.ErrUnsupportedClass) {
		t.Errorf("NewParser with bad class err = %v, want ErrUnsupportedClass", err)
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Parse of missing file err = %v, want ErrNotExist", err)
	}

	bogus := filepath.Join(t.TempDir(), "bogus")
	if err := os.WriteFile(bogus, []byte("definitely not a valid ELF file"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Parse(bogus); err == nil {
		t.Error("Parse of a non-ELF file succeeded")
	}
}
