package handlers

import (
	"errors"

	"github.com/ethpandaops/querycat/pkg/resolver"
	"github.com/gofiber/fiber/v3"
)

// ErrSourceNotFound is returned when a source is not in any loaded catalog
var ErrSourceNotFound = fiber.NewError(fiber.StatusNotFound, "source not found")

// ErrInvalidBody is returned when a resolve request body cannot be decoded
var ErrInvalidBody = fiber.NewError(fiber.StatusBadRequest, "invalid request body, expected {\"parameters\": {...}}")

// resolutionError maps a resolver failure to an HTTP error
func resolutionError(err error) error {
	switch {
	case errors.Is(err, resolver.ErrUnknownSource):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, resolver.ErrMissingRequiredParameter), errors.Is(err, resolver.ErrInvalidParameterValue):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, resolver.ErrMalformedTemplate):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	default:
		return err
	}
}
