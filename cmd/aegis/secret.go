// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aegis-hr/aegis/internal/provider"
	"github.com/aegis-hr/aegis/internal/secrets"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// secretStoreFactory creates a secrets.Store. It is a package-level variable
// so tests can substitute a mock implementation.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets stored in the OS keyring",
		Long: `Store, inspect and delete secrets under the "aegis" keyring service.
Reference them from the config file as keyring://aegis/<name>.`,
	}

	cmd.AddCommand(
		newSecretSetCmd(),
		newSecretGetCmd(),
		newSecretListCmd(),
		newSecretDeleteCmd(),
	)

	return cmd
}

func newSecretSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <name> [value]",
		Short: "Store a secret; the value is read from stdin when omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runSecretSet,
	}
}

func newSecretGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Show a secret, masked unless --reveal is given",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretGet,
	}
	cmd.Flags().Bool("reveal", false, "print the secret in clear text")
	return cmd
}

func newSecretListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the provider keys present in the keyring",
		RunE:  runSecretList,
	}
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a secret by name",
		Args:  cobra.ExactArgs(1),
		RunE:  runSecretDelete,
	}
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	name := args[0]

	var value string
	if len(args) == 2 {
		value = args[1]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return aegiserr.Wrap(err, aegiserr.CodeSecretInvalidInput, "reading secret from stdin")
		}
		value = line
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return aegiserr.New(aegiserr.CodeSecretInvalidInput, "secret value must not be empty")
	}

	if err := secretStoreFactory().Set(secrets.Service, name, value); err != nil {
		return err
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "Stored secret: %s (keyring://%s/%s)\n", name, secrets.Service, name)
	return err
}

func runSecretGet(cmd *cobra.Command, args []string) error {
	reveal, _ := cmd.Flags().GetBool("reveal")

	value, err := secretStoreFactory().Get(secrets.Service, args[0])
	if err != nil {
		return err
	}
	if !reveal {
		value = maskSecret(value)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), value)
	return err
}

// runSecretList probes the well-known provider key names; the keyring offers
// no enumeration.
func runSecretList(cmd *cobra.Command, _ []string) error {
	store := secretStoreFactory()
	out := cmd.OutOrStdout()

	var found int
	for _, p := range provider.SupportedProviders() {
		name := secrets.ProviderKeyName(string(p))
		_, err := store.Get(secrets.Service, name)
		switch {
		case err == nil:
			found++
			_, _ = fmt.Fprintln(out, name)
		case aegiserr.HasCode(err, aegiserr.CodeSecretNotFound):
		default:
			return err
		}
	}

	if found == 0 {
		_, _ = fmt.Fprintln(out, "No secrets stored.")
	}
	return nil
}

func runSecretDelete(cmd *cobra.Command, args []string) error {
	name := args[0]

	if err := secretStoreFactory().Delete(secrets.Service, name); err != nil {
		if aegiserr.HasCode(err, aegiserr.CodeSecretNotFound) {
			return aegiserr.Errorf(aegiserr.CodeSecretNotFound, "secret %q not found", name)
		}
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret: %s\n", name)
	return nil
}

// maskSecret keeps the last four characters of long secrets.
func maskSecret(s string) string {
	if len(s) <= 8 {
		return strings.Repeat("•", len(s))
	}
	return strings.Repeat("•", 8) + s[len(s)-4:]
}
