// Copyright 2023 The Moria Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/emmaconnor/moria"
	"github.com/emmaconnor/moria/arch"
	"github.com/emmaconnor/moria/hexdump"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "pack a circular linked list and dump the image",
	Args:  cobra.NoArgs,
	RunE:  runDemo,
}

// runDemo builds a doubly linked list of three nodes against a
// hand-registered catalogue, packs it, dumps the image, and round
// trips it back through Unpack.
func runDemo(cmd *cobra.Command, args []string) error {
	ns := moria.NewNamespace(arch.AMD64)
	user := ns.GetOrCreateStruct("user")
	user.AddField(moria.StructField{Offset: 0, Type: ns.Int, Name: "id"})
	user.AddField(moria.StructField{Offset: 8, Type: ns.ArrayOf(ns.Char, 16), Name: "name"})
	user.AddField(moria.StructField{Offset: 24, Type: ns.PointerTo(user), Name: "prev"})
	user.AddField(moria.StructField{Offset: 32, Type: ns.PointerTo(user), Name: "next"})
	if err := ns.Finalize(); err != nil {
		return err
	}

	var users []*moria.Struct
	for i, name := range []string{"alice", "bob", "charlie"} {
		u, err := user.New(map[string]any{"id": i + 1, "name": name})
		if err != nil {
			return err
		}
		users = append(users, u)
	}
	n := len(users)
	for i, u := range users {
		if err := u.Set("next", users[(i+1)%n].Ref()); err != nil {
			return err
		}
		if err := u.Set("prev", users[(i+n-1)%n].Ref()); err != nil {
			return err
		}
	}

	const base = 0x560000000000
	roots := make([]moria.Value, n)
	for i, u := range users {
		roots[i] = u
	}
	img, err := ns.Pack(base, 0x1000, roots)
	if err != nil {
		return err
	}
	hexdump.Fprint(os.Stdout, img, base)

	nodes, err := ns.ArrayOf(user, int64(n)).Unpack(img)
	if err != nil {
		return err
	}
	nodes.Move(nil, base)
	for i := 0; i < nodes.Len(); i++ {
		fmt.Println(nodes.Index(i))
	}
	return nil
}
