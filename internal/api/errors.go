package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/paddock/internal/lifecycle"
	"github.com/yourusername/paddock/internal/models"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// classify maps a service error to an HTTP status and a stable error code
func classify(err error) (int, string) {
	var fe *fiber.Error
	var ve *models.ValidationError
	switch {
	case errors.As(err, &fe):
		return fe.Code, "http_error"
	case errors.As(err, &ve):
		return fiber.StatusBadRequest, ve.Code
	case errors.Is(err, models.ErrNotFound):
		return fiber.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrRaceAlreadyRunning):
		return fiber.StatusConflict, "race_already_running"
	case errors.Is(err, lifecycle.ErrNoActiveRace):
		return fiber.StatusConflict, "no_active_race"
	case models.IsState(err):
		return fiber.StatusConflict, "invalid_state"
	case models.IsPersistence(err):
		return fiber.StatusServiceUnavailable, "storage_unavailable"
	default:
		return fiber.StatusInternalServerError, "internal"
	}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status, code := classify(err)
	msg := err.Error()
	if status >= fiber.StatusInternalServerError {
		s.log.WithError(err).WithFields(logrus.Fields{
			"method": c.Method(),
			"path":   c.Path(),
		}).Error("Request failed")
		if status == fiber.StatusInternalServerError {
			msg = "internal server error"
		}
	}
	return c.Status(status).JSON(ErrorResponse{Error: code, Message: msg})
}

func invalidBody(err error) error {
	return models.NewValidationError("invalid_body", "request body is not valid JSON: "+err.Error())
}
