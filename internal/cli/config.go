// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aclements/perfharness/internal/workload"
)

const envPrefix = "PERFHARNESS"

// Config is the gcbench run configuration after merging flags, environment,
// and the optional config file.
type Config struct {
	Counters       bool     `mapstructure:"counters"`
	Events         []string `mapstructure:"events"`
	Iterations     int      `mapstructure:"iterations"`
	AllocMB        int64    `mapstructure:"alloc-mb"`
	ObjectSize     int      `mapstructure:"object-size"`
	LiveMB         int64    `mapstructure:"live-mb"`
	CollectEveryMB int64    `mapstructure:"collect-every-mb"`
	STW            bool     `mapstructure:"stw"`
	Format         string   `mapstructure:"format"`
	Debug          bool     `mapstructure:"debug"`
	NoColor        bool     `mapstructure:"no-color"`
}

var formats = []string{"text", "json", "yaml", "prom"}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	def := workload.DefaultConfig
	f.Bool("counters", true, "read performance counters")
	f.StringSlice("events", nil, "performance counter roster (default task-clock,cpu-cycles)")
	f.Int("iterations", 3, "number of measured iterations")
	f.Int64("alloc-mb", def.AllocBytes>>20, "garbage allocated per iteration, in MiB")
	f.Int("object-size", def.ObjectSize, "allocation size in bytes")
	f.Int64("live-mb", def.LiveBytes>>20, "live heap retained during an iteration, in MiB")
	f.Int64("collect-every-mb", def.CollectEvery>>20, "force a collection after this many MiB (0 disables)")
	f.Bool("stw", true, "bracket forced collections as stop-the-world intervals")
	f.StringP("format", "o", "text", "output format: "+strings.Join(formats, ", "))
}

// loadConfig merges the command's flags with PERFHARNESS_* environment
// variables and the --config file. Flags set on the command line win.
func loadConfig(cmd *cobra.Command) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return Config{}, err
	}
	if err := v.BindPFlags(cmd.InheritedFlags()); err != nil {
		return Config{}, err
	}
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, cfg.validate()
}

// colorDisabled reports whether --no-color or PERFHARNESS_NO_COLOR is set.
func colorDisabled(cmd *cobra.Command) (bool, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlag("no-color", cmd.Flags().Lookup("no-color")); err != nil {
		return false, err
	}
	return v.GetBool("no-color"), nil
}

func (c Config) validate() error {
	if c.Iterations < 1 {
		return fmt.Errorf("iterations must be at least 1, got %d", c.Iterations)
	}
	for _, f := range formats {
		if c.Format == f {
			return c.workload().Validate()
		}
	}
	return fmt.Errorf("unknown format %q (want one of %s)", c.Format, strings.Join(formats, ", "))
}

func (c Config) workload() workload.Config {
	return workload.Config{
		AllocBytes:   c.AllocMB << 20,
		ObjectSize:   c.ObjectSize,
		LiveBytes:    c.LiveMB << 20,
		CollectEvery: c.CollectEveryMB << 20,
	}
}
