package handlers

import (
	"fmt"
	"net/http"

	"github.com/nkiryanov/authserver/internal/apperrors"
	"github.com/nkiryanov/authserver/internal/handlers/render"
	"github.com/nkiryanov/authserver/internal/logger"
)

func handleHealth(health pinger, logger logger.Logger) http.Handler {
	type response struct {
		Status string `json:"status"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := health.Ping(r.Context()); err != nil {
			logger.Warn("storage is unreachable", "error", err)
			render.Error(w, fmt.Errorf("%w: %w", apperrors.ErrUnavailable, err))
			return
		}

		render.OK(w, response{Status: "ok"})
	})
}
