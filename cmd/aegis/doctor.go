// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"

	"github.com/aegis-hr/aegis/internal/provider"
	"github.com/aegis-hr/aegis/internal/secrets"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
	"github.com/aegis-hr/aegis/pkg/health"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostics",
		Long:  "Check the binary, server, config, provider API keys, document index and disk space.",
		RunE:  runDoctor,
	}

	cmd.Flags().String("address", defaultAddress, "server address to check")

	return cmd
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	addr, _ := cmd.Flags().GetString("address")
	dataDir := resolveDataDir()

	checks := []struct {
		name string
		fn   func() string
	}{
		{"Binary", checkBinary},
		{"Platform", checkPlatform},
		{"Server", func() string { return checkServer(cmd, addr) }},
		{"Config", checkConfig},
		{"Provider keys", checkProviderKeys},
		{"Index", func() string { return checkIndex(dataDir) }},
		{"Disk Space", func() string { return checkDiskSpace(dataDir) }},
	}

	for _, c := range checks {
		if _, err := fmt.Fprintf(w, "%-20s %s\n", c.name+":", c.fn()); err != nil {
			return err
		}
	}

	return nil
}

// resolveDataDir returns the storage directory from viper or the default.
func resolveDataDir() string {
	if dataDir := viper.GetString("storage.data_dir"); dataDir != "" {
		return dataDir
	}
	return "aegis_data"
}

func checkBinary() string {
	return fmt.Sprintf("aegis %s (%s/%s)", version, runtime.GOOS, runtime.GOARCH)
}

func checkPlatform() string {
	return fmt.Sprintf("%s/%s, Go %s", runtime.GOOS, runtime.GOARCH, runtime.Version())
}

func checkServer(cmd *cobra.Command, addr string) string {
	var report health.Report
	if err := newAPIClient(addr, defaultHTTPClient).getJSON(cmd.Context(), "/health", &report); err != nil {
		if aegiserr.HasCode(err, aegiserr.CodeCLIServerNotRunning) {
			return fmt.Sprintf("not running at %s (run 'aegis start')", addr)
		}
		return fmt.Sprintf("error: %s", err)
	}
	return fmt.Sprintf("%s at %s", report.Status, addr)
}

func checkConfig() string {
	cfgFile := viper.ConfigFileUsed()
	if cfgFile != "" {
		return fmt.Sprintf("loaded from %s", cfgFile)
	}
	return "using defaults (no config file found)"
}

// checkProviderKeys reports where each supported provider's key comes from.
func checkProviderKeys() string {
	store := secretStoreFactory()

	var found []string
	for _, p := range provider.SupportedProviders() {
		name := string(p)
		switch {
		case viper.GetString("providers."+name+".api_key") != "":
			found = append(found, name+" (config)")
		case keyringHas(store, name):
			found = append(found, name+" (keyring)")
		case os.Getenv(provider.EnvKeyVar(p)) != "":
			found = append(found, name+" (env)")
		}
	}

	if len(found) == 0 {
		return "none found (run 'aegis init' or 'aegis secret set google-api-key')"
	}
	return strings.Join(found, ", ")
}

func keyringHas(store secrets.Store, providerName string) bool {
	v, err := store.Get(secrets.Service, secrets.ProviderKeyName(providerName))
	return err == nil && v != ""
}

func checkIndex(dataDir string) string {
	path := filepath.Join(dataDir, "vectors.db")
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("no index at %s (created on first start)", path)
		}
		return fmt.Sprintf("error reading index: %s", err)
	}
	return fmt.Sprintf("%s (%s)", path, formatBytes(uint64(info.Size())))
}

func checkDiskSpace(dataDir string) string {
	path := dataDir
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// The data dir is created on first start; check its parent until then.
		path = filepath.Dir(dataDir)
	}

	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return fmt.Sprintf("unable to check: %s", err)
	}

	availBytes := stat.Bavail * uint64(stat.Bsize)
	return formatBytes(availBytes) + " available"
}

// formatBytes formats a byte count as a human-readable string.
func formatBytes(b uint64) string {
	const (
		gb = 1024 * 1024 * 1024
		mb = 1024 * 1024
		kb = 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d bytes", b)
	}
}
