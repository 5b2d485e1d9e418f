// Copyright 2023 The Moria Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emmaconnor/moria/dwarf"
)

var structsCmd = &cobra.Command{
	Use:   "structs <binary>",
	Short: "print every struct in C-like form",
	Args:  cobra.ExactArgs(1),
	RunE:  runStructs,
}

func runStructs(cmd *cobra.Command, args []string) error {
	ns, err := dwarf.Parse(args[0])
	if err != nil {
		return err
	}
	for i, st := range ns.Structs() {
		if i > 0 {
			fmt.Println()
		}
		fmt.Println(st.Pretty())
	}
	return nil
}
