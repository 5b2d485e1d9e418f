// Copyright 2023 The Moria Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package moria

import (
	"fmt"
	"sort"
	"strings"

	"github.com/emmaconnor/moria/pack"
)

// Pack lays out every value reachable from roots inside the window
// [base, base+max) and returns the byte image, zero-filled between
// placed values.
//
// Values whose binding chain ends in an absolute offset keep their
// addresses and are reserved first; the remaining anchors are
// allocated and their offsets written back. Pack therefore mutates
// free anchors: a failed or repeated call sees any already-assigned
// offsets as fixed, so callers that retry must reset those values
// first. Traversal and allocation follow discovery order, making the
// layout deterministic for a graph built in a fixed order.
func (ns *Namespace) Pack(base, max int64, roots []Value) ([]byte, error) {
	reached, err := reach(roots)
	if err != nil {
		return nil, err
	}

	// Resolve every value to its anchor and partition the anchors
	// into fixed- and free-address clusters.
	var fixed, free []Value
	seen := make(map[Value]bool)
	for _, v := range reached {
		a, err := anchorOf(v)
		if err != nil {
			return nil, err
		}
		if seen[a] {
			continue
		}
		seen[a] = true
		if _, ok := a.Offset(); ok {
			fixed = append(fixed, a)
		} else {
			free = append(free, a)
		}
	}

	// Fixed anchors carve holes in the arena that constrain where the
	// free anchors may fall, so they are reserved first.
	heap := pack.NewHeap(base, max)
	for _, v := range fixed {
		addr, _ := v.Addr()
		if err := heap.AllocAt(addr, v.Type().Size()); err != nil {
			return nil, err
		}
	}
	for _, v := range free {
		addr, err := heap.Alloc(v.Type().Size())
		if err != nil {
			return nil, err
		}
		v.Move(nil, addr)
	}

	anchors := append(free, fixed...)
	sort.SliceStable(anchors, func(i, j int) bool {
		ai, _ := anchors[i].Addr()
		aj, _ := anchors[j].Addr()
		return ai < aj
	})

	var out []byte
	for i, v := range anchors {
		part, err := v.Pack()
		if err != nil {
			return nil, err
		}
		out = append(out, part...)
		if i < len(anchors)-1 {
			addr, _ := v.Addr()
			next, _ := anchors[i+1].Addr()
			out = append(out, make([]byte, next-(addr+v.Type().Size()))...)
		}
	}
	return out, nil
}

// reach computes the reachability closure of roots over binding,
// element, field, and referent edges. Pointer cycles are legal; a
// value whose type size is unresolved fails as soon as it is seen.
func reach(roots []Value) ([]Value, error) {
	var all []Value
	seen := make(map[Value]bool)
	stack := make([]Value, len(roots))
	copy(stack, roots)
	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[v] {
			continue
		}
		seen[v] = true
		if v.Type().Size() == SizeUnknown {
			return nil, fmt.Errorf("%w: cannot place %s", ErrUnresolvedSize, v)
		}
		all = append(all, v)
		for _, c := range v.refs() {
			if !seen[c] {
				stack = append(stack, c)
			}
		}
	}
	return all, nil
}

// anchorOf walks the binding chain of v to its terminal value. Unlike
// pointer edges, binding edges must not form cycles.
func anchorOf(v Value) (Value, error) {
	path := []Value{v}
	cur := v
	for cur.Base() != nil {
		cur = cur.Base()
		for _, p := range path {
			if p == cur {
				names := make([]string, 0, len(path)+1)
				for _, q := range path {
					names = append(names, q.String())
				}
				names = append(names, cur.String())
				return nil, fmt.Errorf("%w: %s", ErrCyclicAnchor, strings.Join(names, " -> "))
			}
		}
		path = append(path, cur)
	}
	return cur, nil
}
