package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vietddude/toolgate/internal/core/domain"
	"github.com/vietddude/toolgate/internal/core/failure"
	"github.com/vietddude/toolgate/internal/core/retry"
	"github.com/vietddude/toolgate/internal/infra/vendor"
	"github.com/vietddude/toolgate/internal/metrics"
)

type response struct {
	Success bool                `json:"success"`
	Data    any                 `json:"data,omitempty"`
	Error   *failure.Descriptor `json:"error,omitempty"`
}

type executeBody struct {
	ConnectedAccountID string         `json:"connected_account_id"`
	Input              map[string]any `json:"input"`
}

type validateKeyBody struct {
	APIKey string `json:"api_key"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, response{Success: true, Data: data})
}

// call runs fn with a retry trace attached and reports any failure.
func call[T any](s *Server, c *gin.Context, op string, fn func(ctx context.Context) (T, error)) (T, *failure.Descriptor, *retry.Trace) {
	trace := retry.NewTrace()
	v, err := fn(retry.WithTrace(c.Request.Context(), trace))
	if err == nil {
		return v, nil, trace
	}
	d := failure.ClassifyError(err)
	s.recordFailure(c, op, d, trace)
	c.JSON(failure.HTTPStatus(d), response{Success: false, Error: d})
	return v, d, trace
}

func (s *Server) recordFailure(c *gin.Context, op string, d *failure.Descriptor, trace *retry.Trace) {
	attempts := trace.Attempts()
	if attempts == 0 {
		// Rejected before reaching the vendor.
		attempts = 1
	}
	rec := domain.NewFailureRecord(requestID(c), op, d, attempts, trace.Messages())
	if err := s.failures.Record(c.Request.Context(), rec); err != nil {
		s.log.Error("Failed to record failure", "operation", op, "error", err)
	}
	s.log.Warn("Request failed",
		"operation", op,
		"kind", d.Kind,
		"code", d.ErrorCode,
		"attempts", attempts,
		"request_id", requestID(c),
	)
}

func (s *Server) handleListApps(c *gin.Context) {
	apps, d, _ := call(s, c, vendor.OpListApps, s.provider.ListApps)
	if d == nil {
		ok(c, apps)
	}
}

func (s *Server) handleListTools(c *gin.Context) {
	app := c.Query("app")
	tools, d, _ := call(s, c, vendor.OpListTools, func(ctx context.Context) ([]vendor.Tool, error) {
		return s.provider.ListTools(ctx, app)
	})
	if d == nil {
		ok(c, tools)
	}
}

func (s *Server) handleExecuteTool(c *gin.Context) {
	tool := c.Param("tool")

	var body executeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.rejectBody(c, vendor.OpExecuteTool, err)
		return
	}
	req := vendor.ExecuteRequest{ConnectedAccountID: body.ConnectedAccountID, Input: body.Input}

	result, d, trace := call(s, c, vendor.OpExecuteTool, func(ctx context.Context) (*vendor.ExecuteResult, error) {
		return s.provider.ExecuteTool(ctx, tool, req)
	})
	if d == nil {
		ok(c, result)
		return
	}
	// The caller hanging up is not a vendor outage.
	if d.Retryable() && c.Request.Context().Err() == nil {
		s.pushDeadLetter(c, tool, req, d, trace)
	}
}

func (s *Server) pushDeadLetter(c *gin.Context, tool string, req vendor.ExecuteRequest, d *failure.Descriptor, trace *retry.Trace) {
	payload, err := json.Marshal(req)
	if err != nil {
		s.log.Error("Failed to encode dead letter", "tool", tool, "error", err)
		return
	}
	dl := &domain.DeadLetter{
		Operation: vendor.OpExecuteTool,
		Tool:      tool,
		Request:   payload,
		LastError: d,
		Attempts:  0,
	}
	if err := s.deadLetters.Push(c.Request.Context(), dl); err != nil {
		s.log.Error("Failed to push dead letter", "tool", tool, "error", err)
		return
	}
	metrics.DeadLettersTotal.WithLabelValues(vendor.OpExecuteTool).Inc()
	s.log.Warn("Tool execution dead-lettered",
		"id", dl.ID,
		"tool", tool,
		"kind", d.Kind,
		"attempts", trace.Attempts(),
	)
}

func (s *Server) handleGetConnection(c *gin.Context) {
	id := c.Param("id")
	conn, d, _ := call(s, c, vendor.OpGetConnection, func(ctx context.Context) (*vendor.Connection, error) {
		return s.provider.GetConnection(ctx, id)
	})
	if d == nil {
		ok(c, conn)
	}
}

func (s *Server) handleValidateKey(c *gin.Context) {
	var body validateKeyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.rejectBody(c, vendor.OpValidateKey, err)
		return
	}
	info, d, _ := call(s, c, vendor.OpValidateKey, func(ctx context.Context) (*vendor.KeyInfo, error) {
		return s.provider.ValidateKey(ctx, body.APIKey)
	})
	if d == nil {
		ok(c, info)
	}
}

func (s *Server) rejectBody(c *gin.Context, op string, err error) {
	d := failure.Invalid("invalid request body: "+err.Error(), err)
	s.recordFailure(c, op, d, retry.NewTrace())
	c.JSON(failure.HTTPStatus(d), response{Success: false, Error: d})
}

type failureSummary struct {
	Records []*domain.FailureRecord `json:"records"`
	Totals  map[failure.Kind]int    `json:"totals"`
}

func (s *Server) handleRecentFailures(c *gin.Context) {
	ctx := c.Request.Context()
	limit, _ := strconv.Atoi(c.Query("limit"))
	records, err := s.failures.Recent(ctx, limit)
	if err != nil {
		s.internalError(c, err)
		return
	}
	counts, err := s.failures.CountByKind(ctx)
	if err != nil {
		s.internalError(c, err)
		return
	}

	totals := make(map[failure.Kind]int, len(failure.Kinds()))
	for _, k := range failure.Kinds() {
		totals[k] = counts[k]
	}
	if records == nil {
		records = []*domain.FailureRecord{}
	}
	ok(c, failureSummary{Records: records, Totals: totals})
}

func (s *Server) handleListDeadLetters(c *gin.Context) {
	letters, err := s.deadLetters.List(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	ok(c, letters)
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.log.Error("Storage error", "error", err, "request_id", requestID(c))
	d := failure.Classify(failure.RawFailure{Status: http.StatusInternalServerError, Err: err})
	c.JSON(failure.HTTPStatus(d), response{Success: false, Error: d})
}
