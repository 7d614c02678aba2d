package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/cwrk-planet/session-hub/internal/domain"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrHubClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
