// Copyright 2024 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Gcbench runs a garbage collection workload and reports its statistics
// split into stop-the-world and other time.
//
// Usage:
//
//	gcbench run [flags]
//	gcbench events [--probe] [event...]
package main

import (
	"os"

	"github.com/aclements/perfharness/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
