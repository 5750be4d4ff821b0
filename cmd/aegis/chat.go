// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aegis-hr/aegis/internal/server"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the HR assistant",
		Long: `Send a message to a running Aegis server. Without a message an interactive
session starts; type /reset to forget the conversation and /exit to leave.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChat,
	}

	cmd.Flags().String("address", defaultAddress, "server address")
	cmd.Flags().StringP("session", "s", "", "continue an existing session by ID")

	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("address")
	session, _ := cmd.Flags().GetString("session")
	out := cmd.OutOrStdout()
	api := newAPIClient(addr, slowHTTPClient)

	send := func(message string) error {
		var resp server.ChatResponse
		err := api.postJSON(cmd.Context(), "/chat", server.ChatRequest{Message: message, SessionID: session}, &resp)
		if err != nil {
			return err
		}
		session = resp.SessionID
		_, err = fmt.Fprintf(out, "Aegis: %s\n", resp.Response)
		return err
	}

	if len(args) > 0 {
		if err := send(args[0]); err != nil {
			return err
		}
		_, err := fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", session)
		return err
	}

	_, _ = fmt.Fprintln(out, "Aegis HR assistant. Type /reset to start over, /exit to quit.")
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		_, _ = fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/reset":
			if session != "" {
				if err := api.delete(cmd.Context(), "/sessions/"+session); err != nil {
					_, _ = fmt.Fprintf(out, "error: %s\n", err)
					continue
				}
			}
			session = ""
			_, _ = fmt.Fprintln(out, "Conversation cleared.")
			continue
		}

		if err := send(line); err != nil {
			if aegiserr.HasCode(err, aegiserr.CodeCLIServerNotRunning) {
				return err
			}
			_, _ = fmt.Fprintf(out, "error: %s\n", err)
		}
	}
}
