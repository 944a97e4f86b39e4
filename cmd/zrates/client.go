// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

package main

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	zrerr "github.com/mrabdussalam/zakat-rates/pkg/errors"
)

// defaultHTTPClient is the package-level HTTP client used by commands that
// talk to a running daemon. Overridden in tests via httptest.
var defaultHTTPClient = &http.Client{
	Timeout: 5 * time.Second,
}

// daemonClient provides HTTP access to a running zrates daemon.
type daemonClient struct {
	baseURL string
	http    *http.Client
}

// newDaemonClient creates a client targeting the given host:port address.
func newDaemonClient(addr string) *daemonClient {
	return &daemonClient{
		baseURL: "http://" + addr,
		http:    defaultHTTPClient,
	}
}

// getJSON performs a GET request and decodes the JSON response into dest.
// A refused connection comes back as CodeCLIServerNotRunning.
func (c *daemonClient) getJSON(path string, dest any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		if isDialError(err) {
			return zrerr.New(zrerr.CodeCLIServerNotRunning, "daemon is not running (connection refused)")
		}
		return zrerr.Wrap(err, zrerr.CodeCLIRequestFailure, "requesting "+path)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return zrerr.Errorf(zrerr.CodeCLIRequestFailure,
			"daemon returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return zrerr.Wrap(err, zrerr.CodeCLIResponseInvalid, "decoding response")
	}
	return nil
}

// isDialError reports whether err is a net dial error (connection refused
// and friends).
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
