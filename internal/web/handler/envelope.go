package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/recodex/sis-binding/internal/db/controller/events"
	"github.com/recodex/sis-binding/internal/db/controller/terms"
	"github.com/recodex/sis-binding/internal/db/controller/users"
	"github.com/recodex/sis-binding/internal/db/models"
	"github.com/recodex/sis-binding/internal/policy"
	"github.com/recodex/sis-binding/internal/recodex"
	"github.com/recodex/sis-binding/internal/sis"
)

// envelope is the JSON shape of every response of this service. It mirrors
// the ReCodEx API envelope so that frontends can share response handling.
type envelope struct {
	Success bool           `json:"success"`
	Code    int            `json:"code"`
	Payload any            `json:"payload,omitempty"`
	Error   *envelopeError `json:"error,omitempty"`
}

type envelopeError struct {
	Message string `json:"message"`
}

// SendSuccess writes the payload wrapped in a success envelope.
func SendSuccess(c *fiber.Ctx, payload any) error {
	return c.Status(fiber.StatusOK).JSON(envelope{
		Success: true,
		Code:    fiber.StatusOK,
		Payload: payload,
	})
}

// SendError maps an error onto an HTTP status and writes an error envelope.
// It doubles as the fiber error handler, so route handlers can simply return
// typed errors from the lower layers.
func SendError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := err.Error()

	var policyErr *policy.Error
	var fiberErr *fiber.Error
	var recodexErr *recodex.APIError
	var sisErr *sis.APIError

	switch {
	case errors.As(err, &policyErr):
		status = policyErr.Status
	case errors.As(err, &fiberErr):
		status = fiberErr.Code
	case errors.As(err, &recodexErr), errors.As(err, &sisErr):
		status = fiber.StatusBadGateway
	case errors.Is(err, users.ErrUserNotFound),
		errors.Is(err, terms.ErrTermNotFound),
		errors.Is(err, events.ErrEventNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, terms.ErrTermAlreadyExists),
		errors.Is(err, models.ErrInvalidDateRange):
		status = fiber.StatusBadRequest
	}

	if status >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}

	return c.Status(status).JSON(envelope{
		Success: false,
		Code:    status,
		Error:   &envelopeError{Message: message},
	})
}
