// Copyright 2023 The Moria Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pack provides a fixed-range free-list allocator used to lay
// out value graphs inside a single address window.
package pack

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfSpace is returned when no free chunk can satisfy an
	// allocation request.
	ErrOutOfSpace = errors.New("out of space")
	// ErrInvalidSplit is returned when a chunk split is requested
	// outside the chunk's bounds.
	ErrInvalidSplit = errors.New("invalid chunk split")
)

// A chunk is a contiguous run of unallocated addresses.
type chunk struct {
	addr int64
	size int64
}

func (c chunk) end() int64 { return c.addr + c.size }

// split carves [addr, addr+size) out of c and returns the zero, one,
// or two chunks covering what remains before and after the window.
func (c chunk) split(addr, size int64) ([]chunk, error) {
	if size < 0 || addr < c.addr || addr+size > c.end() {
		return nil, fmt.Errorf("%w: cannot allocate %#x+%d from chunk %#x+%d",
			ErrInvalidSplit, addr, size, c.addr, c.size)
	}
	var rest []chunk
	if addr > c.addr {
		rest = append(rest, chunk{c.addr, addr - c.addr})
	}
	if addr+size < c.end() {
		rest = append(rest, chunk{addr + size, c.end() - (addr + size)})
	}
	return rest, nil
}

// A Heap hands out addresses from a fixed window. Free chunks are kept
// in insertion order and never merged; a Heap lives for a single
// packing pass and allocations are never released.
type Heap struct {
	free []chunk
}

// NewHeap returns a Heap over the window [addr, addr+size).
func NewHeap(addr, size int64) *Heap {
	return &Heap{free: []chunk{{addr, size}}}
}

// Alloc reserves size bytes and returns the address of the
// reservation. The chunk leaving the least space over is chosen; the
// earliest such chunk wins ties.
func (h *Heap) Alloc(size int64) (int64, error) {
	best := -1
	for i, c := range h.free {
		if c.size < size {
			continue
		}
		if best < 0 || c.size < h.free[best].size {
			best = i
		}
	}
	if best < 0 {
		return 0, fmt.Errorf("%w: no free chunk holds %d bytes", ErrOutOfSpace, size)
	}
	addr := h.free[best].addr
	if err := h.take(best, addr, size); err != nil {
		return 0, err
	}
	return addr, nil
}

// AllocAt reserves size bytes at exactly addr. The requested span must
// lie entirely within a single free chunk.
func (h *Heap) AllocAt(addr, size int64) error {
	for i, c := range h.free {
		if addr >= c.addr && addr+size <= c.end() {
			return h.take(i, addr, size)
		}
	}
	return fmt.Errorf("%w: %#x+%d is not free", ErrOutOfSpace, addr, size)
}

// take replaces free chunk i by the remainder of splitting
// [addr, addr+size) out of it.
func (h *Heap) take(i int, addr, size int64) error {
	rest, err := h.free[i].split(addr, size)
	if err != nil {
		return err
	}
	h.free = append(h.free[:i:i], append(rest, h.free[i+1:]...)...)
	return nil
}
