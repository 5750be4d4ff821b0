// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

// Command openapi-gen writes the OpenAPI document of the Aegis HTTP API.
//
//	openapi-gen [-check] [path]
//
// The format follows the extension of path: .yaml/.yml or JSON otherwise.
// With -check nothing is written; the command fails if path is out of date.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aegis-hr/aegis/internal/server"
	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

const defaultOutput = "api/openapi/openapi.json"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "openapi-gen:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("openapi-gen", flag.ContinueOnError)
	check := fs.Bool("check", false, "fail if the file differs from the generated document")
	if err := fs.Parse(args); err != nil {
		return aegiserr.Wrap(err, aegiserr.CodeCLIInputInvalid, "parsing flags")
	}
	outPath := defaultOutput
	if fs.NArg() > 0 {
		outPath = fs.Arg(0)
	}

	doc, err := generateSpec(formatFor(outPath))
	if err != nil {
		return err
	}

	if *check {
		existing, err := os.ReadFile(outPath)
		if err != nil {
			return aegiserr.Wrapf(err, aegiserr.CodeCLIInputInvalid, "reading %s", outPath)
		}
		if !bytes.Equal(existing, doc) {
			return aegiserr.Errorf(aegiserr.CodeCLIInputInvalid, "%s is stale; run openapi-gen to regenerate", outPath)
		}
		_, err = fmt.Fprintf(stdout, "%s is up to date\n", outPath)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return aegiserr.Wrap(err, aegiserr.CodeCLISetupFailure, "creating output directory")
	}
	if err := os.WriteFile(outPath, doc, 0o644); err != nil {
		return aegiserr.Wrapf(err, aegiserr.CodeCLISetupFailure, "writing %s", outPath)
	}
	_, err = fmt.Fprintf(stdout, "OpenAPI document written to %s\n", outPath)
	return err
}

type format int

const (
	formatJSON format = iota
	formatYAML
)

func formatFor(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	default:
		return formatJSON
	}
}

// generateSpec builds a server without services; every route is registered
// up front, so the document is complete even though no handler can run.
func generateSpec(f format) ([]byte, error) {
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"})
	if err != nil {
		return nil, aegiserr.Errorf(aegiserr.CodeCLISetupFailure, "creating server: %w", err)
	}
	defer func() { _ = srv.Close() }()

	spec := srv.API().OpenAPI()
	if f == formatYAML {
		out, err := spec.YAML()
		if err != nil {
			return nil, aegiserr.Wrap(err, aegiserr.CodeCLISetupFailure, "encoding yaml")
		}
		return out, nil
	}

	out, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return nil, aegiserr.Wrap(err, aegiserr.CodeCLISetupFailure, "encoding json")
	}
	return append(out, '\n'), nil
}
