// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package main

import (
	"fmt"
	"os"

	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// Exit codes: 2 for bad invocations, 1 for everything else.
func exitCode(err error) int {
	if aegiserr.HasCode(err, aegiserr.CodeCLIInputInvalid) {
		return 2
	}
	return 1
}

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "aegis:", err)
		os.Exit(exitCode(err))
	}
}
