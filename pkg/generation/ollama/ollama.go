// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package ollama implements a generation backend for Ollama's
// /api/generate endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/leseb/ragproxy/pkg/generation"
)

// DefaultEndpoint is a local Ollama server.
const DefaultEndpoint = "http://localhost:11434/api/generate"

const maxErrBody = 512

func init() {
	generation.Providers.Register("ollama", func(_ context.Context, params map[string]string) (generation.Backend, error) {
		return New(params["endpoint"], nil), nil
	})
}

// Backend posts prompts to an Ollama server and reads its NDJSON reply.
type Backend struct {
	endpoint   string
	httpClient *http.Client
}

// New creates a Backend. An empty endpoint uses DefaultEndpoint and a nil
// client uses a fresh http.Client; call timeouts come from the caller's
// context.
func New(endpoint string, client *http.Client) *Backend {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Backend{endpoint: endpoint, httpClient: client}
}

func (b *Backend) Name() string { return "ollama" }

type generateRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
	Stream *bool  `json:"stream,omitempty"`
}

// Stream starts a generation. Both streamed and single-body replies are
// newline-delimited JSON and are decoded the same way.
func (b *Backend) Stream(ctx context.Context, req generation.Request) (generation.ChunkStream, error) {
	body, err := json.Marshal(generateRequest{Prompt: req.Prompt, Model: req.Model, Stream: req.Stream})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return nil, &generation.StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	return generation.NewReaderStream(resp.Body), nil
}
