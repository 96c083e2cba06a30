package middleware

import (
	"context"

	"github.com/kbukum/shopkit/logger"
	"github.com/kbukum/shopkit/pipeline"
)

// Logging logs every response and passes it on unchanged.
type Logging struct {
	pipeline.PassThrough
	log *logger.Logger
}

// NewLogging creates the logging middleware.
func NewLogging(log *logger.Logger) *Logging {
	if log == nil {
		log = logger.Nop()
	}
	return &Logging{log: log.WithComponent("http")}
}

// Name returns "logging".
func (m *Logging) Name() string { return "logging" }

// ShouldProcessResponse matches every response.
func (m *Logging) ShouldProcessResponse(*pipeline.Response) bool { return true }

// ProcessResponse logs resp at a level chosen by its status.
func (m *Logging) ProcessResponse(ctx context.Context, resp *pipeline.Response) pipeline.Result {
	fields := map[string]interface{}{
		logger.FieldAttempt:  resp.Attempt,
		logger.FieldDuration: resp.Elapsed.Milliseconds(),
	}
	if req := resp.Request; req != nil {
		for k, v := range logger.RequestFields(req.ID, req.Method, req.Path) {
			fields[k] = v
		}
	}
	log := m.log.WithContext(ctx)

	switch {
	case !resp.HasStatus():
		log.Warn("Request failed", logger.MergeWithError(fields, resp.Err))
	case resp.StatusCode >= 500:
		fields[logger.FieldStatusCode] = resp.StatusCode
		log.Error("Request completed", fields)
	case resp.StatusCode >= 400:
		fields[logger.FieldStatusCode] = resp.StatusCode
		log.Warn("Request completed", fields)
	default:
		fields[logger.FieldStatusCode] = resp.StatusCode
		log.Debug("Request completed", fields)
	}
	return pipeline.Success(resp)
}
