// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package envoy answers generate requests from inside Envoy through the
// external processing filter. Requests to the generate route are handled
// with an ImmediateResponse; everything else passes through untouched.
// The filter must be configured with request_body_mode BUFFERED.
package envoy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	extproc "github.com/envoyproxy/go-control-plane/envoy/service/ext_proc/v3"
	"github.com/google/uuid"

	"github.com/leseb/ragproxy/pkg/core/pipeline"
	"github.com/leseb/ragproxy/pkg/core/schema"
)

// GeneratePath is the route answered by the processor.
const GeneratePath = "/api/generate"

// Processor implements the ExternalProcessorServer interface
type Processor struct {
	extproc.UnimplementedExternalProcessorServer
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
}

// requestContext is the per-stream state. One stream carries one HTTP
// request.
type requestContext struct {
	requestID string
	info      RequestInfo
}

func (r *requestContext) isGenerate() bool {
	return r.info.Path == GeneratePath && r.info.Method == http.MethodPost
}

// NewProcessor creates a new ExtProc processor
func NewProcessor(p *pipeline.Pipeline, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		pipeline: p,
		logger:   logger,
	}
}

// Process handles the ExtProc stream
func (p *Processor) Process(stream extproc.ExternalProcessor_ProcessServer) error {
	ctx := stream.Context()
	reqCtx := &requestContext{requestID: "unknown"}

	p.logger.Debug("new extproc stream started")

	for {
		// Receive next processing request
		req, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			p.logger.Debug("stream closed by client", "request_id", reqCtx.requestID)
			return nil
		}
		if err != nil {
			p.logger.Error("error receiving request", "error", err, "request_id", reqCtx.requestID)
			return err
		}

		// Process based on request type
		var resp *extproc.ProcessingResponse

		switch v := req.Request.(type) {
		case *extproc.ProcessingRequest_RequestHeaders:
			resp = p.processRequestHeaders(ctx, v.RequestHeaders, reqCtx)

		case *extproc.ProcessingRequest_RequestBody:
			if !reqCtx.isGenerate() {
				p.logger.Debug("processing request body (pass through)", "path", reqCtx.info.Path)
				resp = CreateBodyContinueResponse()
				break
			}
			resp = p.processRequestBody(ctx, req, reqCtx)

		case *extproc.ProcessingRequest_ResponseHeaders:
			// Only reached for pass-through routes
			resp = &extproc.ProcessingResponse{
				Response: &extproc.ProcessingResponse_ResponseHeaders{
					ResponseHeaders: &extproc.HeadersResponse{},
				},
			}

		case *extproc.ProcessingRequest_ResponseBody:
			resp = &extproc.ProcessingResponse{
				Response: &extproc.ProcessingResponse_ResponseBody{
					ResponseBody: &extproc.BodyResponse{},
				},
			}

		default:
			p.logger.Warn("unknown request type", "type", fmt.Sprintf("%T", v), "request_id", reqCtx.requestID)
			resp = CreateContinueResponse()
		}

		// Send response
		if err := stream.Send(resp); err != nil {
			p.logger.Error("error sending response", "error", err, "request_id", reqCtx.requestID)
			return err
		}
	}
}

// processRequestHeaders records the route. A generate request without a
// body is answered right away since no body phase will follow.
func (p *Processor) processRequestHeaders(ctx context.Context, hdrs *extproc.HttpHeaders, reqCtx *requestContext) *extproc.ProcessingResponse {
	reqCtx.info = ParseRequestHeaders(hdrs)
	p.logger.Debug("processing request headers",
		"method", reqCtx.info.Method,
		"path", reqCtx.info.Path)

	if reqCtx.isGenerate() && hdrs.GetEndOfStream() {
		return p.generate(ctx, schema.GenerateRequest{}, reqCtx)
	}
	return CreateContinueResponse()
}

// processRequestBody runs the pipeline and returns an immediate response
func (p *Processor) processRequestBody(ctx context.Context, req *extproc.ProcessingRequest, reqCtx *requestContext) *extproc.ProcessingResponse {
	genReq, err := ExtractGenerateRequest(req, reqCtx.info.ContentEncoding)
	if errors.Is(err, ErrBodyTooLarge) {
		p.logger.Warn("request body too large", "limit", MaxBodyBytes)
		return CreatePayloadTooLargeError("Request body too large")
	}
	if err != nil {
		p.logger.Warn("failed to extract request", "error", err)
		return CreateBadRequestError("Failed to parse request body")
	}
	return p.generate(ctx, genReq, reqCtx)
}

func (p *Processor) generate(ctx context.Context, genReq schema.GenerateRequest, reqCtx *requestContext) *extproc.ProcessingResponse {
	reqCtx.requestID = generateRequestID()

	res, err := p.pipeline.Handle(ctx, genReq)
	if errors.Is(err, pipeline.ErrEmptyPrompt) {
		return CreateBadRequestError("Prompt missing")
	}
	if err != nil {
		p.logger.Error("pipeline processing failed",
			"request_id", reqCtx.requestID,
			"error", err,
		)
		return CreateInternalError(err.Error())
	}

	procResp, err := CreateSuccessResponse(schema.GenerateResponse{Context: res.Context, Response: res.Response})
	if err != nil {
		p.logger.Error("failed to create success response",
			"request_id", reqCtx.requestID,
			"error", err,
		)
		return CreateInternalError("Failed to create response")
	}

	p.logger.Info("request processed successfully",
		"request_id", reqCtx.requestID,
		"status", statusCodeToHTTP(procResp.GetImmediateResponse().GetStatus().GetCode()),
		"cache_hit", res.CacheHit,
		"degraded", res.Degraded(),
	)
	return procResp
}

// generateRequestID returns a unique ID for log correlation
func generateRequestID() string {
	return "req_" + uuid.NewString()
}
