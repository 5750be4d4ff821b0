// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package main

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aegis-hr/aegis/internal/ingest"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Index local documents without a running server",
		Long: `Extract, screen, embed and store local files directly. Directories are
walked recursively; only supported files (` + fmt.Sprint(ingest.SupportedExtensions()) + `) are indexed.
Do not run this while 'aegis start' holds the same data directory.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runIngest,
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := slog.Default()

	files, err := collectFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return aegiserr.New(aegiserr.CodeCLIInputInvalid, "no supported files found")
	}

	reg, err := wireProviders(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = reg.Close() }()

	vs, cs, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = vs.Close() }()
	_ = cs.Close()

	mgr, _, err := wireIngest(cfg, reg, vs, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var failed int
	for _, path := range files {
		report, err := mgr.IngestFile(cmd.Context(), path)
		if err != nil {
			failed++
			_, _ = fmt.Fprintf(out, "FAIL  %s: %s\n", path, err)
			continue
		}
		_, _ = fmt.Fprintf(out, "OK    %s: %d chunks, %d redacted, %d replaced\n",
			report.Source, report.Chunks, report.Redacted, report.Replaced)
	}

	if failed > 0 {
		return aegiserr.Errorf(aegiserr.CodeIngestStoreFailure, "%d of %d files failed", failed, len(files))
	}
	return nil
}

// collectFiles expands directories into the supported files they contain.
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, aegiserr.Wrapf(err, aegiserr.CodeCLIInputInvalid, "reading %s", root)
		}
		if !info.IsDir() {
			files = append(files, root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && ingest.KindOf(path) != ingest.KindUnsupported {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, aegiserr.Wrapf(err, aegiserr.CodeCLIInputInvalid, "walking %s", root)
		}
	}
	return files, nil
}
