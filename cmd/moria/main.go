// Copyright 2023 The Moria Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The moria command reads the C struct definitions carried in a
// binary's DWARF debug info. Run "moria help" for a list of commands.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime/pprof"

	"github.com/spf13/cobra"
)

var proffile string

var rootCmd = &cobra.Command{
	Use:           "moria <binary>",
	Short:         "inspect C struct layouts carried in a binary's debug info",
	Args:          cobra.ExactArgs(1),
	RunE:          runStructs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if proffile == "" {
			return nil
		}
		f, err := os.Create(proffile)
		if err != nil {
			return err
		}
		return pprof.StartCPUProfile(f)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if proffile != "" {
			pprof.StopCPUProfile()
		}
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&proffile, "prof", "", "write a cpu profile to this file")
	rootCmd.AddCommand(structsCmd, browseCmd, demoCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "moria: %v\n", err)
		if errors.Is(err, fs.ErrNotExist) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}
