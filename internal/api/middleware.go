package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/jeovahfialho/b3-pregao/pkg/logger"
	"github.com/jeovahfialho/b3-pregao/pkg/metrics"
)

const (
	requestIDLocal = "requestID"
	rateWindow     = time.Minute
)

// RequestID aceita o X-Request-ID do cliente ou gera um UUID.
func RequestID() fiber.Handler {
	return requestid.New(requestid.Config{
		Header:     fiber.HeaderXRequestID,
		ContextKey: requestIDLocal,
	})
}

// RequestContext leva o id da requisição ao UserContext, de onde os
// handlers tiram o logger.
func RequestContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.SetUserContext(logger.ContextWithRequestID(c.UserContext(), getRequestID(c)))
		return c.Next()
	}
}

// Metrics registra duração e total por rota registrada (não pelo caminho).
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		timer := metrics.NewTimer()
		err := c.Next()
		metrics.RecordHTTPRequest(c.Method(), c.Route().Path, statusOf(c, err), timer.Elapsed())
		return err
	}
}

func defaultRateLimit(max int) int {
	if max <= 0 {
		return 100
	}
	return max
}

// RateLimiter limita por IP numa janela deslizante de um minuto.
func RateLimiter(max int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               defaultRateLimit(max),
		Expiration:        rateWindow,
		LimiterMiddleware: limiter.SlidingWindow{},
		LimitReached: func(c *fiber.Ctx) error {
			return writeError(c, fiber.StatusTooManyRequests, "limite de requisições excedido")
		},
	})
}

// ErrorHandler converte erros devolvidos pelos handlers em ErrorResponse.
func ErrorHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err == nil {
			return nil
		}

		code := statusOf(c, err)
		message := err.Error()
		if code == fiber.StatusInternalServerError {
			logger.WithContext(c.UserContext()).Error("erro não tratado",
				zap.String("path", c.Path()), zap.Error(err))
			message = "erro interno"
		}

		return writeError(c, code, message)
	}
}

func statusOf(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var e *fiber.Error
	if errors.As(err, &e) {
		return e.Code
	}
	return fiber.StatusInternalServerError
}

func writeError(c *fiber.Ctx, code int, message string) error {
	return c.Status(code).JSON(ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: getRequestID(c),
		Timestamp: time.Now(),
	})
}

func getRequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestIDLocal).(string); ok {
		return id
	}
	return ""
}
