// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	aegiserr "github.com/aegis-hr/aegis/pkg/errors"
)

// defaultHTTPClient serves quick requests. Overridden in tests.
var defaultHTTPClient = &http.Client{
	Timeout: 10 * time.Second,
}

// slowHTTPClient serves chat turns and uploads, which wait on the model.
var slowHTTPClient = &http.Client{
	Timeout: 5 * time.Minute,
}

// apiClient talks to a running Aegis server.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(addr string, hc *http.Client) *apiClient {
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &apiClient{baseURL: strings.TrimRight(base, "/"), http: hc}
}

// problem is the error body the server writes.
type problem struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

func (c *apiClient) getJSON(ctx context.Context, path string, dest any) error {
	return c.do(ctx, http.MethodGet, path, "", nil, dest)
}

func (c *apiClient) postJSON(ctx context.Context, path string, body, dest any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return aegiserr.Wrap(err, aegiserr.CodeCLIInputInvalid, "encoding request")
	}
	return c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(raw), dest)
}

func (c *apiClient) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, "", nil, nil)
}

// upload sends content as the "file" field of a multipart form.
func (c *apiClient) upload(ctx context.Context, path, filename string, content io.Reader, dest any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return aegiserr.Wrap(err, aegiserr.CodeCLIInputInvalid, "building upload")
	}
	if _, err := io.Copy(fw, content); err != nil {
		return aegiserr.Wrapf(err, aegiserr.CodeCLIInputInvalid, "reading %s", filename)
	}
	if err := mw.Close(); err != nil {
		return aegiserr.Wrap(err, aegiserr.CodeCLIInputInvalid, "building upload")
	}
	return c.do(ctx, http.MethodPost, path, mw.FormDataContentType(), &buf, dest)
}

func (c *apiClient) do(ctx context.Context, method, path, contentType string, body io.Reader, dest any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return aegiserr.Wrap(err, aegiserr.CodeCLIRequestFailure, "building request")
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if isDialError(err) {
			return aegiserr.New(aegiserr.CodeCLIServerNotRunning, "server is not running (connection refused)")
		}
		return aegiserr.Wrap(err, aegiserr.CodeCLIRequestFailure, "request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return responseError(resp)
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return aegiserr.Wrap(err, aegiserr.CodeCLIResponseInvalid, "invalid response")
	}
	return nil
}

// responseError turns an error response into a CLI error carrying the
// server's detail message.
func responseError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var p problem
	detail := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &p) == nil && p.Detail != "" {
		detail = p.Detail
	}
	return aegiserr.Errorf(aegiserr.CodeCLIRequestFailure, "server returned %d: %s", resp.StatusCode, detail)
}

// isDialError returns true if err is a net dial error (connection refused, etc.).
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
