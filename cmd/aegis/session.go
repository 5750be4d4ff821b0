// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage conversations",
	}

	cmd.PersistentFlags().String("address", defaultAddress, "server address")
	cmd.AddCommand(newSessionClearCmd())

	return cmd
}

func newSessionClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <session-id>",
		Short: "Forget the conversation history of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("address")
			api := newAPIClient(addr, defaultHTTPClient)
			if err := api.delete(cmd.Context(), "/sessions/"+url.PathEscape(args[0])); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Cleared session %s\n", args[0])
			return err
		},
	}
}
