// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux

package cli

import "github.com/spf13/cobra"

func addPlatformCommands(root *cobra.Command) {}
