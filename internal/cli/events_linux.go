// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aclements/perfharness/perfset"
)

func addPlatformCommands(root *cobra.Command) {
	root.AddCommand(newEventsCmd())
}

func newEventsCmd() *cobra.Command {
	var probe bool
	cmd := &cobra.Command{
		Use:   "events [event...]",
		Short: "Resolve a counter roster and optionally check that each counter opens",
		Long: `events resolves each named event (the default roster if none are given)
and prints its class. Names may be builtin perf names such as cpu-cycles or
L1-dcache-load-misses, raw events such as r01c2, or PMU terms such as
cpu/config=0xc0/.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = perfset.DefaultEvents
			}
			roster, err := perfset.ParseRoster(args)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tCLASS\tSTATUS")
			for _, d := range roster {
				status := "-"
				if probe {
					status = probeCounter(d)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, d.Class(), status)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "open each counter to check that it is available")
	return cmd
}

var (
	okStatus   = color.New(color.FgGreen).SprintFunc()
	failStatus = color.New(color.FgRed).SprintFunc()
)

func probeCounter(d perfset.Descriptor) string {
	set, err := perfset.Open([]perfset.Descriptor{d})
	if err != nil {
		return failStatus("unavailable: " + err.Error())
	}
	if err := set.Close(); err != nil {
		return failStatus("close failed: " + err.Error())
	}
	return okStatus("ok")
}
