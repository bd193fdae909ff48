package middleware

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/voltgrid/ocpi-gateway/internal/ocpi"
)

// Request-scoped fields shared by the request log and the metrics labels.
const (
	FieldTenant     = "tenant"
	FieldVersion    = "version"
	FieldRole       = "role"
	FieldModule     = "module"
	FieldStatusCode = "status_code"
)

// RecordStatus stores the protocol status code sent for the request.
func RecordStatus(ctx context.Context, code ocpi.StatusCode) {
	AddLogField(ctx, FieldStatusCode, strconv.Itoa(int(code)))
}

// LogError records a failed request. Server errors are logged at Error level
// together with their cause; client errors at Warn with the partner-visible
// message only.
func LogError(ctx context.Context, logger *slog.Logger, oe *ocpi.Error) {
	if oe == nil {
		return
	}
	RecordStatus(ctx, oe.Code)
	AddError(ctx, oe)

	attrs := []slog.Attr{
		slog.String("request_id", GetRequestID(ctx)),
		slog.String(FieldTenant, LogField(ctx, FieldTenant)),
		slog.String(FieldModule, LogField(ctx, FieldModule)),
		slog.Int(FieldStatusCode, int(oe.Code)),
		slog.String("status_message", oe.StatusMessage()),
	}
	if oe.Code.IsServerError() {
		if oe.Err != nil {
			attrs = append(attrs, slog.String("error", oe.Err.Error()))
		}
		logger.LogAttrs(ctx, slog.LevelError, "ocpi request failed", attrs...)
		return
	}
	logger.LogAttrs(ctx, slog.LevelWarn, "ocpi request rejected", attrs...)
}
