// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sim-fuzz/simcore/pkg/trace"
)

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <trace-file>",
		Short: "Print every entry of a persisted execution trace.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := trace.Load(args[0])
			if err != nil {
				return err
			}
			for i, e := range t.Entries() {
				if t.PCOnly {
					fmt.Printf("%6d  0x%016x\n", i, e.PC)
				} else {
					fmt.Printf("%6d  0x%016x  %-16s % x\n", i, e.PC, e.Mnemonic, e.Bytes)
				}
			}
			return nil
		},
	}
}
