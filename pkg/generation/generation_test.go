// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package generation

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestAggregate_StopsAtDone(t *testing.T) {
	body := `{"response":"Hel","done":false}
{"response":"lo","done":false}
{"response":"","done":true}
{"response":"ignored","done":false}
`
	if got := Aggregate(Chunks(strings.NewReader(body))); got != "Hello" {
		t.Errorf("Aggregate = %q, want %q", got, "Hello")
	}
}

func TestAggregate_KeepsDoneFragment(t *testing.T) {
	seq := slices.Values([]Chunk{{Response: " Hi"}, {Response: " there ", Done: true}, {Response: "x"}})
	if got := Aggregate(seq); got != "Hi there" {
		t.Errorf("Aggregate = %q", got)
	}
}

func TestChunks_SkipsBlankAndMalformedLines(t *testing.T) {
	body := "\n{\"response\":\"a\"}\nnot json\n   \n{\"response\":\"b\",\"done\":true}\n"
	dec := NewDecoder(strings.NewReader(body))

	var got []string
	for c := range dec.Chunks() {
		got = append(got, c.Response)
	}
	if !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("chunks = %q", got)
	}
	if dec.Skipped() != 1 {
		t.Errorf("Skipped = %d, want 1", dec.Skipped())
	}
	if dec.Err() != nil {
		t.Errorf("Err = %v", dec.Err())
	}
}

func TestChunks_IsLazy(t *testing.T) {
	r := &countingReader{r: strings.NewReader(`{"response":"a","done":true}` + "\n" + strings.Repeat(`{"response":"b"}`+"\n", 100000))}
	Aggregate(Chunks(r))
	if r.n > 128*1024 {
		t.Errorf("read %d bytes; iteration should stop near the done chunk", r.n)
	}
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

func TestFailureText(t *testing.T) {
	got := FailureText(ErrEmptyResponse)
	if got != "[LLM Failure] empty response field" {
		t.Errorf("FailureText = %q", got)
	}
}

type fakeStream struct {
	chunks []Chunk
	err    error
	closed bool
}

func (s *fakeStream) Chunks() iter.Seq[Chunk] { return slices.Values(s.chunks) }
func (s *fakeStream) Err() error              { return s.err }
func (s *fakeStream) Close() error            { s.closed = true; return nil }

type fakeBackend struct {
	calls   int
	lastReq Request
	stream  *fakeStream
	err     error
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Stream(_ context.Context, req Request) (ChunkStream, error) {
	b.calls++
	b.lastReq = req
	if b.err != nil {
		return nil, b.err
	}
	return b.stream, nil
}

func TestClient_Generate(t *testing.T) {
	backend := &fakeBackend{stream: &fakeStream{chunks: []Chunk{{Response: "Play "}, {Response: "a Paladin", Done: true}}}}
	client := NewClient(backend, ClientConfig{DefaultModel: "llama3", Stream: true}, slog.New(slog.DiscardHandler))

	got, err := client.Generate(context.Background(), Request{Prompt: "p"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "Play a Paladin" {
		t.Errorf("Generate = %q", got)
	}
	if backend.lastReq.Model != "llama3" {
		t.Errorf("expected default model, got %q", backend.lastReq.Model)
	}
	if backend.lastReq.Stream == nil || !*backend.lastReq.Stream {
		t.Error("expected stream flag from config")
	}
	if !backend.stream.closed {
		t.Error("stream should be closed")
	}

	if _, err := client.Generate(context.Background(), Request{Prompt: "p", Model: "mistral"}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if backend.lastReq.Model != "mistral" {
		t.Errorf("explicit model should win, got %q", backend.lastReq.Model)
	}
}

func TestClient_EmptyResponse(t *testing.T) {
	backend := &fakeBackend{stream: &fakeStream{chunks: []Chunk{{Response: "  "}, {Done: true}}}}
	client := NewClient(backend, ClientConfig{}, nil)

	_, err := client.Generate(context.Background(), Request{Prompt: "p"})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
	if FailureText(err) == "" {
		t.Error("placeholder must not be empty")
	}
}

func TestClient_BackendErrors(t *testing.T) {
	backend := &fakeBackend{err: &StatusError{StatusCode: 502, Body: "bad gateway"}}
	client := NewClient(backend, ClientConfig{}, nil)

	_, err := client.Generate(context.Background(), Request{Prompt: "p"})
	if !errors.Is(err, ErrGenerationUnavailable) {
		t.Fatalf("expected ErrGenerationUnavailable, got %v", err)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != 502 {
		t.Errorf("expected wrapped StatusError, got %v", err)
	}
}

func TestClient_MidStreamErrorFails(t *testing.T) {
	backend := &fakeBackend{stream: &fakeStream{chunks: []Chunk{{Response: "partial"}}, err: io.ErrUnexpectedEOF}}
	client := NewClient(backend, ClientConfig{}, nil)

	_, err := client.Generate(context.Background(), Request{Prompt: "p"})
	if !errors.Is(err, ErrGenerationUnavailable) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected wrapped read error, got %v", err)
	}
}

func TestClient_BreakerOpens(t *testing.T) {
	backend := &fakeBackend{err: errors.New("connection refused")}
	client := NewClient(backend, ClientConfig{Breaker: BreakerConfig{MaxFailures: 2, Timeout: time.Minute}}, nil)

	for i := 0; i < 2; i++ {
		client.Generate(context.Background(), Request{Prompt: "p"})
	}
	if client.BreakerState() != "open" {
		t.Fatalf("breaker state = %q, want open", client.BreakerState())
	}

	_, err := client.Generate(context.Background(), Request{Prompt: "p"})
	if !errors.Is(err, ErrGenerationUnavailable) {
		t.Fatalf("expected ErrGenerationUnavailable, got %v", err)
	}
	if backend.calls != 2 {
		t.Errorf("open breaker should not reach the backend, calls = %d", backend.calls)
	}
}
