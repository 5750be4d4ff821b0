// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package main

import (
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aegis-hr/aegis/internal/config"
	"github.com/aegis-hr/aegis/internal/secrets"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// defaultAddress is where client commands look for a running server.
const defaultAddress = "127.0.0.1:8000"

// NewRootCmd creates the root aegis command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "aegis",
		Short:         "Aegis: multi-agent HR assistant",
		Long:          "Aegis screens resumes, answers policy questions and drafts onboarding plans from the documents you upload.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initViper(cmd); err != nil {
				return err
			}
			setupLogger(cmd.ErrOrStderr(), viper.GetBool("verbose"), viper.GetString("log_format"))
			return nil
		},
	}

	// Global flags; initViper binds them to viper keys.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().String("data-dir", "", "path to data directory")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	root.PersistentFlags().String("log-format", "text", "log format: text or json")

	root.AddCommand(
		newInitCmd(),
		newStartCmd(),
		newStatusCmd(),
		newChatCmd(),
		newSessionCmd(),
		newUploadCmd(),
		newDocumentsCmd(),
		newIngestCmd(),
		newModelsCmd(),
		newSecretCmd(),
		newDoctorCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings, and an optional config file so the standard precedence
// (flag > env > file > defaults) is handled uniformly. keyring:// values are
// resolved last.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return aegiserr.Errorf(aegiserr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// SetConfigType is omitted: with it set, Viper also tries the bare
		// name, which collides with an ./aegis binary.
		v.SetConfigName("aegis")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/aegis")
		v.AddConfigPath("/etc/aegis")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return aegiserr.Errorf(aegiserr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			if path := bootstrapDefaultConfig(); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return aegiserr.Errorf(aegiserr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		}
	}

	flags := cmd.Root().PersistentFlags()
	for key, flag := range map[string]string{
		"storage.data_dir": "data-dir",
		"verbose":          "verbose",
		"log_format":       "log-format",
	} {
		f := flags.Lookup(flag)
		if key == "storage.data_dir" && !f.Changed {
			// An unset flag would shadow the file and env values.
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return aegiserr.Errorf(aegiserr.CodeCLISetupFailure, "binding %s flag: %w", flag, err)
		}
	}

	config.WarnInsecurePermissions(v.ConfigFileUsed(), v.GetString("storage.data_dir"))
	secrets.ResolveViper(v, secretStoreFactory())
	return nil
}

// loadConfig decodes and validates the configuration initViper assembled.
func loadConfig() (*config.Config, error) {
	return config.FromViper(viper.GetViper())
}

// setupLogger installs the process-wide slog logger.
func setupLogger(w io.Writer, verbose bool, format string) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler = slog.NewTextHandler(w, opts)
	if format == "json" {
		h = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
}

// bootstrapDefaultConfig writes the default config on first run and returns
// its path. Failures are logged at debug and startup continues on built-in
// defaults.
func bootstrapDefaultConfig() string {
	path, err := config.DefaultConfigPath()
	if err != nil {
		slog.Debug("skipping config bootstrap", "error", err)
		return ""
	}
	created, err := config.BootstrapConfig(path)
	if err != nil {
		slog.Debug("skipping config bootstrap", "path", path, "error", err)
		return ""
	}
	if !created {
		return ""
	}
	slog.Info("created default config", "path", path)
	return path
}
