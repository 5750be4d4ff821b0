// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package main

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aegis-hr/aegis/internal/config"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

func newModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models [provider]",
		Short: "List the models a provider offers",
		Long:  "List the generation models of a provider, by default the provider of models.default.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runModels,
	}
	cmd.Flags().Bool("all", false, "include embedding models")
	return cmd
}

func runModels(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	all, _ := cmd.Flags().GetBool("all")

	name := config.ProviderFromModel(cfg.Models.Default)
	if len(args) > 0 {
		name = args[0]
	}

	reg, err := wireProviders(cfg, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = reg.Close() }()

	p, err := reg.Get(name)
	if err != nil {
		return err
	}
	models, err := p.ListModels(cmd.Context())
	if err != nil {
		return aegiserr.Reclassify(err, aegiserr.CodeCLIRequestFailure, "listing models of "+name)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "MODEL\tNAME\tKIND")
	for _, m := range models {
		kind := "generation"
		if m.Embedding {
			if !all {
				continue
			}
			kind = "embedding"
		}
		_, _ = fmt.Fprintf(tw, "%s/%s\t%s\t%s\n", name, m.ID, m.Name, kind)
	}
	return tw.Flush()
}
