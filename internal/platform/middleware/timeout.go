package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinicaleng/cmms/internal/platform/apperr"
)

// RequestTimeout puts a deadline on each request context. Route paths in skip
// are left without one; bulk endpoints bound their own transaction instead.
//
// The handler runs on the calling goroutine and is expected to honour the
// context. When the deadline has passed and nothing was written yet, the
// client gets a 504.
func RequestTimeout(timeout time.Duration, skip ...string) echo.MiddlewareFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := skipped[c.Path()]; ok || timeout <= 0 {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return err
			}
			if c.Response().Committed {
				return nil
			}
			if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
				return err
			}
			return c.JSON(http.StatusGatewayTimeout, apperr.Response{Error: "tempo limite da requisição excedido"})
		}
	}
}
