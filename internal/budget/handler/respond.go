package handler

import (
	"context"
	"log/slog"
	"net/http"

	"caretrack/internal/transport/http/shared"
	dErrors "caretrack/pkg/domain-errors"
	"caretrack/pkg/requestcontext"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	shared.WriteJSON(w, status, body)
}

// writeError logs internal failures server-side and lets coded errors pass
// through the shared envelope untouched.
func writeError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		logger.ErrorContext(ctx, "budget request failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	shared.WriteError(w, err)
}
