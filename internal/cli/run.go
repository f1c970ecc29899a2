// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/aclements/perfharness/gcstat"
	"github.com/aclements/perfharness/harness"
	"github.com/aclements/perfharness/internal/workload"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the allocation workload and report its statistics",
		Long: `run repeats the allocation workload and reports each iteration.

With --stw, every forced collection is bracketed as a stop-the-world interval.
Counter values, including their ".stw" share, cover only the thread running
the workload: Go's GC background workers run on runtime threads that the
counters do not follow.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg.Debug)
			if err != nil {
				return err
			}
			defer log.Sync()
			// The config file may also set no-color.
			if cfg.NoColor {
				color.NoColor = true
			}
			return runBench(cmd, cfg, log)
		},
	}
	addRunFlags(cmd)
	return cmd
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func openSession(cfg Config, log *zap.Logger) (*harness.Session, error) {
	if !cfg.Counters {
		return harness.New(nil, harness.WithLogger(log)), nil
	}
	s, err := harness.Open(cfg.Events, harness.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("opening counters (use --counters=false to run without): %w", err)
	}
	return s, nil
}

func runBench(cmd *cobra.Command, cfg Config, log *zap.Logger) (err error) {
	out, err := newResultWriter(cfg.Format, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	s, err := openSession(cfg, log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, s.Close()) }()

	wl := cfg.workload()
	var pauser workload.Pauser
	if cfg.STW {
		pauser = s
	}
	log.Info("starting",
		zap.Int("iterations", cfg.Iterations),
		zap.Int64("alloc_bytes", wl.AllocBytes),
		zap.Strings("counters", s.CounterNames()),
	)

	for i := 1; i <= cfg.Iterations; i++ {
		if err := s.Prepare(cfg.Counters); err != nil {
			return err
		}
		if err := s.Begin(gcstat.Read().Stats()); err != nil {
			return err
		}
		st, runErr := workload.Run(wl, pauser)
		if err := s.End(gcstat.Read().Stats()); err != nil {
			return multierr.Append(runErr, err)
		}
		if runErr != nil {
			return runErr
		}
		log.Debug("iteration finished",
			zap.Int("iteration", i),
			zap.Int("allocations", st.Allocations),
			zap.Int("collections", st.Collections),
		)
		r := s.Results()
		if err := out.Write(i, &r); err != nil {
			return err
		}
	}
	return out.Flush()
}
