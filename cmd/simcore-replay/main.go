// Copyright 2024 simcore project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Command simcore-replay is a small companion CLI for inspecting the
// execution traces and solutions a campaign persisted to disk (spec.md
// §4.B, §6). It never links against a simulator; it only reads the
// plain-text trace files pkg/trace.Trace.WriteTo produces.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sim-fuzz/simcore/pkg/log"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var verbosity int

	root := &cobra.Command{
		Use:   "simcore-replay",
		Short: "Inspect execution traces and solutions persisted by a simcore campaign.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetVerbosity(verbosity)
		},
	}
	root.PersistentFlags().IntVarP(&verbosity, "verbose", "v", 0, "log verbosity")

	root.AddCommand(newShowCommand())
	root.AddCommand(newSummaryCommand())
	return root
}
