package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/arbiterlabs/answerd/internal/generation"
	"github.com/arbiterlabs/answerd/internal/retriever"
	"github.com/arbiterlabs/answerd/internal/session"
)

// ErrorBody is the uniform error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a stable machine-readable kind plus a human
// message.
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Error kinds. Clients branch on these, not on messages.
const (
	KindInvalidInput      = "invalid_input"
	KindNotFound          = "not_found"
	KindNotReady          = "not_ready"
	KindGenerationFailed  = "generation_failed"
	KindGenerationTimeout = "generation_timeout"
	KindInternal          = "internal"
)

// writeError maps a domain error onto the envelope. Unknown errors
// become opaque 500s so internals never leak to clients.
func writeError(c echo.Context, err error) error {
	status, kind, message := classify(err)
	return c.JSON(status, ErrorBody{Error: ErrorDetail{Kind: kind, Message: message}})
}

func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, retriever.ErrEmptyQuestion):
		return http.StatusBadRequest, KindInvalidInput, err.Error()
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, KindNotFound, "session not found"
	case errors.Is(err, retriever.ErrNotReady):
		return http.StatusServiceUnavailable, KindNotReady, "knowledge base not ready"
	case errors.Is(err, generation.ErrGenerationTimeout):
		return http.StatusGatewayTimeout, KindGenerationTimeout, "answer generation timed out"
	case errors.Is(err, generation.ErrGeneration):
		return http.StatusBadGateway, KindGenerationFailed, "answer generation failed"
	default:
		return http.StatusInternalServerError, KindInternal, "internal error"
	}
}
