// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cli implements the gcbench command.
package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// NewRootCmd returns the gcbench command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gcbench",
		Short: "Measure a garbage collection workload with performance counters",
		Long: `gcbench runs an allocation-heavy workload with periodic forced collections
and reports elapsed time, GC statistics, and performance counter deltas, with
the stop-the-world share of each separated from the rest.

Counters follow the thread running the workload and threads it creates. The
Go runtime starts its own threads, including GC background workers, from a
separate thread, so their work is not in the counter totals; counter ".stw"
values cover the mutator thread's side of each collection only.

Every flag can also be set with a PERFHARNESS_ environment variable (for
example PERFHARNESS_ALLOC_MB=128) or in a YAML file passed with --config.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: applyColor,
	}
	root.PersistentFlags().String("config", "", "YAML configuration file")
	root.PersistentFlags().Bool("debug", false, "enable debug logging")
	root.PersistentFlags().Bool("no-color", false, "disable colored output")

	root.AddCommand(newRunCmd())
	addPlatformCommands(root)
	return root
}

func applyColor(cmd *cobra.Command, args []string) error {
	noColor, err := colorDisabled(cmd)
	if err != nil {
		return err
	}
	if noColor {
		color.NoColor = true
	}
	return nil
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
