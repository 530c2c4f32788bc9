// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the JSON bodies of the inbound HTTP API.
package schema

// GenerateRequest is the body of POST /api/generate. Prompt is required;
// Model is optional and forwarded to the generation backend.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

// GenerateResponse is returned for every accepted prompt, including when
// search or generation degraded.
type GenerateResponse struct {
	Context  string `json:"context"`
	Response string `json:"response"`
}

// ErrorResponse is the body of every 4xx/5xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FlushResponse is returned by POST /flush.
type FlushResponse struct {
	Status  string `json:"status"`
	Entries int    `json:"entries"`
}

// StatusResponse is returned by the liveness endpoints.
type StatusResponse struct {
	Status     string `json:"status"`
	Generation string `json:"generation_breaker,omitempty"`
}
