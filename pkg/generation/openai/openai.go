// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package openai implements a generation backend for OpenAI-compatible
// chat completion APIs (OpenAI, vLLM, Ollama's /v1 endpoint) using the
// official SDK.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/leseb/ragproxy/pkg/generation"
)

func init() {
	generation.Providers.Register("openai", func(_ context.Context, params map[string]string) (generation.Backend, error) {
		return New(params["endpoint"], params["api_key"]), nil
	})
}

// Backend streams chat completions and exposes each delta as a chunk.
type Backend struct {
	client sdk.Client
}

// New creates a Backend. baseURL may point at any OpenAI-compatible
// server; an empty apiKey uses a placeholder for local backends that
// don't authenticate.
func New(baseURL, apiKey string) *Backend {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	} else {
		opts = append(opts, option.WithAPIKey("dummy"))
	}
	return &Backend{client: sdk.NewClient(opts...)}
}

func (b *Backend) Name() string { return "openai" }

// Stream sends the prompt as a single user message. Chat completions
// always stream here; req.Stream is ignored.
func (b *Backend) Stream(ctx context.Context, req generation.Request) (generation.ChunkStream, error) {
	if req.Model == "" {
		return nil, fmt.Errorf("openai: model is required")
	}
	stream := b.client.Chat.Completions.NewStreaming(ctx, sdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: []sdk.ChatCompletionMessageParamUnion{sdk.UserMessage(req.Prompt)},
	})
	return &chatStream{s: stream}, nil
}

type sseStream interface {
	Next() bool
	Current() sdk.ChatCompletionChunk
	Err() error
	Close() error
}

type chatStream struct {
	s sseStream
}

func (c *chatStream) Chunks() iter.Seq[generation.Chunk] {
	return func(yield func(generation.Chunk) bool) {
		for c.s.Next() {
			for _, choice := range c.s.Current().Choices {
				chunk := generation.Chunk{
					Response: choice.Delta.Content,
					Done:     choice.FinishReason != "",
				}
				if !yield(chunk) {
					return
				}
			}
		}
	}
}

func (c *chatStream) Err() error {
	if err := c.s.Err(); err != nil && !errors.Is(err, io.EOF) {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			return &generation.StatusError{StatusCode: apiErr.StatusCode, Body: apiErr.Message}
		}
		return err
	}
	return nil
}

func (c *chatStream) Close() error { return c.s.Close() }
