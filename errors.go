// Copyright 2023 The Moria Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package moria

import "errors"

// Error kinds reported by the type catalogue, the value tree, and the
// layout engine. They are wrapped with context at the failure site;
// match them with errors.Is. The allocator's own kinds live in the
// pack package and the debug-info reader's in the dwarf package.
var (
	// ErrInvalidName is returned when a struct name does not match
	// the C identifier pattern.
	ErrInvalidName = errors.New("invalid struct name")
	// ErrNameConflict is returned when a struct name would shadow a
	// namespace accessor.
	ErrNameConflict = errors.New("name conflict")
	// ErrUnresolvedSize is returned when an operation needs a
	// concrete type size and the type does not have one.
	ErrUnresolvedSize = errors.New("unresolved size")
	// ErrOutOfRange is returned when an integer payload exceeds the
	// representable range of its type.
	ErrOutOfRange = errors.New("out of range")
	// ErrTypeMismatch is returned when a cast input cannot be
	// interpreted as the target type.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrShapeMismatch is returned when an array is constructed with
	// the wrong number of elements.
	ErrShapeMismatch = errors.New("wrong number of elements")
	// ErrConflictingInit is returned when a pointer is given both a
	// referent and a raw address.
	ErrConflictingInit = errors.New("conflicting pointer initialization")
	// ErrUnknownField is returned when a struct is asked for a field
	// it does not declare.
	ErrUnknownField = errors.New("unknown field")
	// ErrCyclicAnchor is returned when a positional binding chain
	// revisits itself.
	ErrCyclicAnchor = errors.New("cyclic address dependency")
	// ErrSizeMismatch is returned when a packed length disagrees with
	// the declared size.
	ErrSizeMismatch = errors.New("size mismatch")
)
