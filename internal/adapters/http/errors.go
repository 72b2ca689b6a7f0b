package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/geosampler/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, conflict, bad_gateway, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errUnavailable returns a 503 error.
func errUnavailable(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusServiceUnavailable, "unavailable", msg)
}

// errFromDomain maps a use-case error onto the response taxonomy.
func errFromDomain(c *fiber.Ctx, err error) error {
	msg := err.Error()
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return errNotFound(c, msg)
	case errors.Is(err, domain.ErrInvalidGeometry),
		errors.Is(err, domain.ErrUnsupportedGeometryType),
		errors.Is(err, domain.ErrInvalidSpacing),
		errors.Is(err, domain.ErrNoPoints):
		return errBadRequest(c, msg)
	case errors.Is(err, domain.ErrStaleStatistics),
		errors.Is(err, domain.ErrConcurrentUpdate):
		return newError(c, fiber.StatusConflict, "conflict", msg)
	case errors.Is(err, domain.ErrNoActiveRaster):
		return newError(c, fiber.StatusPreconditionFailed, "precondition_failed", msg)
	case errors.Is(err, domain.ErrNoData):
		return newError(c, fiber.StatusUnprocessableEntity, "unprocessable", msg)
	case errors.Is(err, domain.ErrExtractionFailed):
		return newError(c, fiber.StatusBadGateway, "bad_gateway", msg)
	case errors.Is(err, domain.ErrNotConfigured):
		return errUnavailable(c, msg)
	}

	LoggerFromCtx(c.UserContext()).Error("unhandled error", "path", c.Path(), "error", err)
	return errInternal(c, msg)
}
