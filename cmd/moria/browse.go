// Copyright 2023 The Moria Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/kortschak/utter"
	"github.com/spf13/cobra"

	"github.com/emmaconnor/moria"
	"github.com/emmaconnor/moria/dwarf"
)

var browseCmd = &cobra.Command{
	Use:   "browse <binary>",
	Short: "interactively explore the struct catalogue",
	Args:  cobra.ExactArgs(1),
	RunE:  runBrowse,
}

func runBrowse(cmd *cobra.Command, args []string) error {
	ns, err := dwarf.Parse(args[0])
	if err != nil {
		return err
	}
	names := func(string) []string {
		var out []string
		for _, st := range ns.Structs() {
			out = append(out, st.Name())
		}
		return out
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "moria> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("list"),
			readline.PcItem("show", readline.PcItemDynamic(names)),
			readline.PcItem("sizeof", readline.PcItemDynamic(names)),
			readline.PcItem("raw", readline.PcItemDynamic(names)),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil { // io.EOF
			return nil
		}
		f := strings.Fields(line)
		if len(f) == 0 {
			continue
		}
		switch f[0] {
		case "quit", "exit":
			return nil
		case "help":
			fmt.Println("commands: list, show <struct>, sizeof <struct>, raw <struct>, quit")
		case "list":
			for _, st := range ns.Structs() {
				fmt.Println(st.Name())
			}
		case "show", "sizeof", "raw":
			if len(f) != 2 {
				fmt.Fprintf(os.Stderr, "usage: %s <struct>\n", f[0])
				continue
			}
			st, err := ns.Struct(f[1])
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				continue
			}
			switch f[0] {
			case "show":
				fmt.Println(st.Pretty())
			case "sizeof":
				if size := st.Size(); size != moria.SizeUnknown {
					fmt.Println(size)
				} else {
					fmt.Println("unknown")
				}
			case "raw":
				utter.Dump(st)
			}
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q; try help\n", f[0])
		}
	}
}
