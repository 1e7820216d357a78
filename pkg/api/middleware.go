package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// HeaderRequestID carries the id correlating a request with its log line
const HeaderRequestID = "X-Request-ID"

func setupMiddleware(app *fiber.App, log logrus.FieldLogger) {
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Use(requestLogger(log))

	// The API only reads catalogs and resolves queries
	app.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", HeaderRequestID},
		ExposeHeaders: []string{HeaderRequestID},
	}))
}

// requestLogger tags each request with an id and logs it once the response
// status is known. Health checks are served but not logged.
func requestLogger(log logrus.FieldLogger) fiber.Handler {
	return func(c fiber.Ctx) error {
		id := c.Get(HeaderRequestID)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(HeaderRequestID, id)

		start := time.Now()

		if chainErr := c.Next(); chainErr != nil {
			if err := errorHandler(c, chainErr); err != nil {
				return err
			}
		}

		if c.Path() == "/healthz" {
			return nil
		}

		entry := log.WithFields(logrus.Fields{
			"request_id": id,
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     c.Response().StatusCode(),
			"latency":    time.Since(start).String(),
		})
		if c.Response().StatusCode() >= fiber.StatusInternalServerError {
			entry.Warn("API request failed")
		} else {
			entry.Debug("API request")
		}

		return nil
	}
}

// errorHandler renders every error as {"error": ..., "code": ...}
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var fiberErr *fiber.Error
	if ok := errors.As(err, &fiberErr); ok {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": message,
		"code":  code,
	})
}
