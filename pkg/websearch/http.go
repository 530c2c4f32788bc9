// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package websearch

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds a single search request.
	DefaultTimeout = 10 * time.Second

	maxPageSize = 2 << 20 // 2MB
	maxErrBody  = 256
)

// NewHTTPClient returns a client with the given timeout and transport.
// A non-positive timeout uses DefaultTimeout; a nil transport uses
// http.DefaultTransport.
func NewHTTPClient(timeout time.Duration, transport http.RoundTripper) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// FetchPage executes req and returns its body as a Page. Transport
// failures and non-2xx statuses wrap ErrSearchUnavailable.
func FetchPage(client *http.Client, req *http.Request, provider string, format Format, query string) (*Page, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s request: %w", ErrSearchUnavailable, provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %s read response: %w", ErrSearchUnavailable, provider, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > maxErrBody {
			snippet = snippet[:maxErrBody]
		}
		return nil, fmt.Errorf("%w: %s returned status %d: %s", ErrSearchUnavailable, provider, resp.StatusCode, strings.TrimSpace(snippet))
	}

	return &Page{Query: query, Format: format, Body: body}, nil
}

// ParamDuration reads a Go duration from params, returning def when the
// key is absent.
func ParamDuration(params map[string]string, key string, def time.Duration) (time.Duration, error) {
	v, ok := params[key]
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

// ParamInt reads an integer from params, returning def when the key is
// absent.
func ParamInt(params map[string]string, key string, def int) (int, error) {
	v, ok := params[key]
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

// ParamList splits a newline-separated parameter into trimmed, non-empty
// entries.
func ParamList(params map[string]string, key string) []string {
	var out []string
	for _, line := range strings.Split(params[key], "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
