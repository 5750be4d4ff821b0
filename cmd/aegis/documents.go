// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aegis-hr/aegis/internal/server"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file.pdf>",
		Short: "Upload a resume to a running server",
		Args:  cobra.ExactArgs(1),
		RunE:  runUpload,
	}
	cmd.Flags().String("address", defaultAddress, "server address")
	return cmd
}

func runUpload(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("address")
	path := args[0]

	f, err := os.Open(path)
	if err != nil {
		return aegiserr.Wrapf(err, aegiserr.CodeCLIInputInvalid, "opening %s", path)
	}
	defer func() { _ = f.Close() }()

	var resp server.UploadResponse
	if err := newAPIClient(addr, slowHTTPClient).upload(cmd.Context(), "/upload", path, f, &resp); err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
	return err
}

func newDocumentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "List indexed documents",
		Args:  cobra.NoArgs,
		RunE:  runDocuments,
	}
	cmd.Flags().String("address", defaultAddress, "server address")
	return cmd
}

func runDocuments(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	var body struct {
		Documents []string `json:"documents"`
	}
	if err := newAPIClient(addr, defaultHTTPClient).getJSON(cmd.Context(), "/documents", &body); err != nil {
		return err
	}

	if len(body.Documents) == 0 {
		_, err := fmt.Fprintln(out, "No documents indexed.")
		return err
	}
	for _, name := range body.Documents {
		if _, err := fmt.Fprintln(out, name); err != nil {
			return err
		}
	}
	return nil
}
