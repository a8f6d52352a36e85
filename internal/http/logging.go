package http

import (
	"context"
	"log/slog"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// handlerLogger prefers the request scoped logger installed by RequestLogger
// so records carry request_id, and tags them with handler and operation.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = defaultLogger(fallback)
	}

	tagged := logger.With(slog.String("handler", handlerName))
	if operation != "" {
		tagged = tagged.With(slog.String("operation", operation))
	}
	if len(attrs) == 0 {
		return tagged
	}
	return tagged.With(attrs...)
}
