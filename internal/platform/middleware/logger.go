package middleware

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicaleng/cmms/internal/platform/apperr"
)

// Logger writes one line per request. A failed request is logged with the
// status the error handler will render and its apperr kind: business
// rejections at info, everything else at warn or error.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil && !c.Response().Committed {
				status = apperr.StatusOf(err)
			}

			evt := requestEvent(logger, err, status)
			rid, _ := c.Get("request_id").(string)
			tenant, _ := c.Get("tenant_id").(string)
			evt = evt.
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("route", c.Path()).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP())
			if tenant != "" {
				evt = evt.Str("tenant_id", tenant)
			}
			evt.Msg("request")

			return err
		}
	}
}

func requestEvent(logger zerolog.Logger, err error, status int) *zerolog.Event {
	if err == nil {
		return logger.Info()
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		if apperr.IsRejection(err) || ae.Kind == apperr.KindForbidden {
			return logger.Info().Str("error_kind", ae.Kind.String()).Str("error", ae.Message)
		}
		return logger.Error().Str("error_kind", ae.Kind.String()).Err(err)
	}
	if status >= 500 {
		return logger.Error().Err(err)
	}
	return logger.Warn().Err(err)
}
