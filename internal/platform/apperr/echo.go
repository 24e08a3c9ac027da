package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Response is the body of every failed request.
type Response struct {
	Error string `json:"error"`
}

// StatusOf is the HTTP status err is rendered with.
func StatusOf(err error) int {
	var ae *Error
	var he *echo.HTTPError
	switch {
	case errors.As(err, &ae):
		return HTTPStatus(ae.Kind)
	case errors.As(err, &he):
		return he.Code
	}
	return http.StatusInternalServerError
}

// HTTPErrorHandler renders domain errors and echo.HTTPErrors as Response.
// Internal errors are logged with their cause and rendered generically.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := StatusOf(err)
		msg := InternalMessage

		var he *echo.HTTPError
		var ae *Error
		switch {
		case errors.As(err, &ae):
			msg = PublicMessage(ae)
		case errors.As(err, &he):
			if status < http.StatusInternalServerError {
				msg = fmt.Sprintf("%v", he.Message)
			}
		}

		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, Response{Error: msg})
	}
}
