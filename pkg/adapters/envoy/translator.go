// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package envoy

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	extproc "github.com/envoyproxy/go-control-plane/envoy/service/ext_proc/v3"
	typev3 "github.com/envoyproxy/go-control-plane/envoy/type/v3"

	"github.com/leseb/ragproxy/pkg/core/schema"
)

// MaxBodyBytes bounds a request body after content decoding.
const MaxBodyBytes = 1 << 20

// ErrBodyTooLarge is returned when a decoded body exceeds MaxBodyBytes.
var ErrBodyTooLarge = errors.New("request body too large")

// RequestInfo is what the processor keeps from the request headers phase.
type RequestInfo struct {
	Method          string
	Path            string
	ContentEncoding string
}

// ParseRequestHeaders reads the pseudo headers and content encoding.
// Envoy may deliver header values either as Value or as RawValue.
func ParseRequestHeaders(hdrs *extproc.HttpHeaders) RequestInfo {
	var info RequestInfo
	for _, h := range hdrs.GetHeaders().GetHeaders() {
		v := h.GetValue()
		if v == "" {
			v = string(h.GetRawValue())
		}
		switch strings.ToLower(h.GetKey()) {
		case ":method":
			info.Method = v
		case ":path":
			path, _, _ := strings.Cut(v, "?")
			info.Path = path
		case "content-encoding":
			info.ContentEncoding = strings.ToLower(strings.TrimSpace(v))
		}
	}
	return info
}

// ExtractGenerateRequest decodes the generate body from a request body
// phase. An empty body yields a zero request; the pipeline rejects it.
func ExtractGenerateRequest(req *extproc.ProcessingRequest, contentEncoding string) (schema.GenerateRequest, error) {
	var genReq schema.GenerateRequest
	if req == nil {
		return genReq, fmt.Errorf("processing request is nil")
	}

	// Extract body from request_body phase
	requestBody := req.GetRequestBody()
	if requestBody == nil {
		return genReq, fmt.Errorf("request body is nil")
	}

	body, err := DecodeContent(requestBody.GetBody(), contentEncoding)
	if err != nil {
		return genReq, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return genReq, nil
	}

	if err := json.Unmarshal(body, &genReq); err != nil {
		return genReq, fmt.Errorf("failed to parse request body: %w", err)
	}
	return genReq, nil
}

// CreateJSONResponse creates an ImmediateResponse carrying v as JSON.
func CreateJSONResponse(statusCode typev3.StatusCode, v any) (*extproc.ProcessingResponse, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &extproc.ProcessingResponse{
		Response: &extproc.ProcessingResponse_ImmediateResponse{
			ImmediateResponse: &extproc.ImmediateResponse{
				Status: &typev3.HttpStatus{
					Code: statusCode,
				},
				Body: body,
				Headers: &extproc.HeaderMutation{
					SetHeaders: []*corev3.HeaderValueOption{
						{
							Header: &corev3.HeaderValue{
								Key:      "content-type",
								RawValue: []byte("application/json"),
							},
						},
					},
				},
			},
		},
	}, nil
}

// CreateSuccessResponse creates an ImmediateResponse with the generated answer
func CreateSuccessResponse(resp schema.GenerateResponse) (*extproc.ProcessingResponse, error) {
	return CreateJSONResponse(typev3.StatusCode_OK, resp)
}

// CreateErrorResponse creates an ImmediateResponse with an error body
func CreateErrorResponse(statusCode typev3.StatusCode, message string) *extproc.ProcessingResponse {
	// ErrorResponse always marshals.
	resp, _ := CreateJSONResponse(statusCode, schema.ErrorResponse{Error: message})
	return resp
}

// CreateBadRequestError creates a 400 error response
func CreateBadRequestError(message string) *extproc.ProcessingResponse {
	return CreateErrorResponse(typev3.StatusCode_BadRequest, message)
}

// CreatePayloadTooLargeError creates a 413 error response
func CreatePayloadTooLargeError(message string) *extproc.ProcessingResponse {
	return CreateErrorResponse(typev3.StatusCode_PayloadTooLarge, message)
}

// CreateInternalError creates a 500 error response
func CreateInternalError(message string) *extproc.ProcessingResponse {
	return CreateErrorResponse(typev3.StatusCode_InternalServerError, message)
}

// CreateContinueResponse creates a continue response for the request
// headers phase
func CreateContinueResponse() *extproc.ProcessingResponse {
	return &extproc.ProcessingResponse{
		Response: &extproc.ProcessingResponse_RequestHeaders{
			RequestHeaders: &extproc.HeadersResponse{},
		},
	}
}

// CreateBodyContinueResponse passes a request body through unchanged
func CreateBodyContinueResponse() *extproc.ProcessingResponse {
	return &extproc.ProcessingResponse{
		Response: &extproc.ProcessingResponse_RequestBody{
			RequestBody: &extproc.BodyResponse{},
		},
	}
}

// DecodeContent decompresses body content if needed. The decoded size is
// capped at MaxBodyBytes.
func DecodeContent(body []byte, contentEncoding string) ([]byte, error) {
	switch contentEncoding {
	case "gzip":
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer reader.Close()

		decoded, err := readLimited(reader)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress gzip: %w", err)
		}
		return decoded, nil

	case "br":
		decoded, err := readLimited(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("failed to decompress brotli: %w", err)
		}
		return decoded, nil

	case "", "identity":
		if len(body) > MaxBodyBytes {
			return nil, ErrBodyTooLarge
		}
		return body, nil

	default:
		return nil, fmt.Errorf("unsupported content encoding: %s", contentEncoding)
	}
}

func readLimited(r io.Reader) ([]byte, error) {
	decoded, err := io.ReadAll(io.LimitReader(r, MaxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(decoded) > MaxBodyBytes {
		return nil, ErrBodyTooLarge
	}
	return decoded, nil
}

// statusCodeToHTTP converts Envoy StatusCode to HTTP status code number
func statusCodeToHTTP(code typev3.StatusCode) int {
	switch code {
	case typev3.StatusCode_OK:
		return http.StatusOK
	case typev3.StatusCode_BadRequest:
		return http.StatusBadRequest
	case typev3.StatusCode_InternalServerError:
		return http.StatusInternalServerError
	default:
		return int(code)
	}
}
