// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sim-fuzz/simcore/pkg/trace"
)

func newSummaryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "summary <trace-file>",
		Short: "Print entry count and the set of distinct program counters in a trace.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := trace.Load(args[0])
			if err != nil {
				return err
			}
			seen := make(map[uint64]struct{}, t.Len())
			for _, e := range t.Entries() {
				seen[e.PC] = struct{}{}
			}
			fmt.Printf("entries:          %d\n", t.Len())
			fmt.Printf("distinct PCs:     %d\n", len(seen))
			fmt.Printf("pc-only format:   %v\n", t.PCOnly)
			return nil
		},
	}
}
