// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// buildInfo fills in values ldflags left unset from the module build info,
// so `go install ...@v1.2.0` binaries still report their version.
func buildInfo() (ver, rev, built string) {
	ver, rev, built = version, commit, date
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ver, rev, built
	}
	if ver == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		ver = info.Main.Version
	}
	for _, s := range info.Settings {
		switch {
		case s.Key == "vcs.revision" && rev == "unknown":
			rev = s.Value
			if len(rev) > 12 {
				rev = rev[:12]
			}
		case s.Key == "vcs.time" && built == "unknown":
			built = s.Value
		}
	}
	return ver, rev, built
}

func newVersionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print aegis version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ver, rev, built := buildInfo()
			out := cmd.OutOrStdout()
			if short {
				_, err := fmt.Fprintln(out, ver)
				return err
			}
			_, err := fmt.Fprintf(out, "aegis %s (commit: %s, built: %s, %s %s/%s)\n",
				ver, rev, built, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return err
		},
	}
	cmd.Flags().BoolVar(&short, "short", false, "print only the version")
	return cmd
}
