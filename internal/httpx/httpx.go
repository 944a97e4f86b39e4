// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Zakat Rates Contributors

// Package httpx provides the shared outbound HTTP client with transport
// tuning suited to many small requests against a fixed set of hosts.
package httpx

import (
	"net"
	"net/http"
	"time"
)

// Client wraps http.Client with default headers applied to every request.
type Client struct {
	HTTP      *http.Client
	UserAgent string
	Headers   map[string]string
}

// New builds a Client whose overall timeout caps every request regardless
// of per-request context deadlines.
func New(timeout time.Duration) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   3 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	}
	return &Client{
		HTTP:      &http.Client{Timeout: timeout, Transport: transport},
		UserAgent: "zakat-rates/1.0",
	}
}

// Do sends req, filling in the default User-Agent and headers for any the
// request does not already set. Context and deadline travel on req.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range c.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	return c.HTTP.Do(req)
}
