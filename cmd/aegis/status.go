// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package main

import (
	"fmt"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
	"github.com/aegis-hr/aegis/pkg/health"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show server status",
		Long:  "Query the running server's health endpoint and display component and provider status.",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", defaultAddress, "server address to check")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	var report health.Report
	if err := newAPIClient(addr, defaultHTTPClient).getJSON(cmd.Context(), "/health", &report); err != nil {
		if aegiserr.HasCode(err, aegiserr.CodeCLIServerNotRunning) {
			_, _ = fmt.Fprintf(out, "Server at %s is not running (connection refused)\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Server at %s: %s\n", addr, err)
		return nil
	}

	_, _ = fmt.Fprintf(out, "Server at %s: %s (%d documents)\n", addr, report.Status, report.Documents)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, name := range slices.Sorted(maps.Keys(report.Components)) {
		_, _ = fmt.Fprintf(tw, "  %s\t%s\n", name, report.Components[name])
	}
	for _, name := range slices.Sorted(maps.Keys(report.Providers)) {
		m := report.Providers[name]
		state := "available"
		if !m.Available {
			state = fmt.Sprintf("cooling down (%d failures)", m.FailureCount)
		}
		_, _ = fmt.Fprintf(tw, "  provider %s\t%s\n", name, state)
	}
	return tw.Flush()
}
