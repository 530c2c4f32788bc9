// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package generation talks to text-generation backends and aggregates
// their streamed output into a single answer.
package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/leseb/ragproxy/pkg/provider"
)

// Providers is the registry of generation backend implementations.
var Providers = provider.NewRegistry[Backend]("generation")

var (
	// ErrGenerationUnavailable wraps every failure to obtain an answer:
	// transport errors, non-2xx statuses, timeouts and an open breaker.
	ErrGenerationUnavailable = errors.New("generation unavailable")

	// ErrEmptyResponse is returned when the aggregated answer is blank.
	ErrEmptyResponse = errors.New("empty response field")
)

// Chunk is one fragment of a streamed answer.
type Chunk struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Request is a generation call. An empty Model lets the backend pick its
// default; a nil Stream leaves streaming up to the backend.
type Request struct {
	Prompt string
	Model  string
	Stream *bool
}

// StatusError reports a non-2xx response from a backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}

// ChunkStream is an open response from a backend. Chunks may be ranged
// over once; Err reports a read error after iteration stops.
type ChunkStream interface {
	Chunks() iter.Seq[Chunk]
	Err() error
	Close() error
}

// Backend starts a generation and returns its chunk stream.
type Backend interface {
	Name() string
	Stream(ctx context.Context, req Request) (ChunkStream, error)
}

// FailureText renders err as the placeholder answer returned to callers
// when generation fails.
func FailureText(err error) string {
	return fmt.Sprintf("[LLM Failure] %v", err)
}

// NewReaderStream adapts a newline-delimited JSON body into a ChunkStream.
func NewReaderStream(rc io.ReadCloser) ChunkStream {
	return &readerStream{Decoder: NewDecoder(rc), body: rc}
}

type readerStream struct {
	*Decoder
	body io.ReadCloser
}

func (s *readerStream) Close() error { return s.body.Close() }
