package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/devplane/internal/devctx"
)

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request_error", msg, "")
}

func writeError(c *echo.Context, status int, errType, msg, code string) error {
	return c.JSON(status, map[string]any{
		"error": ResponseError{
			Message: msg,
			Type:    errType,
			Code:    code,
		},
	})
}

// writePlaneError renders err with the status statusFor picks. Native status
// names are surfaced as the error code.
func writePlaneError(c *echo.Context, err error) error {
	status, errType := statusFor(err)
	code := ""
	var se *devctx.StatusError
	if errors.As(err, &se) {
		code = se.Name
	}
	return writeError(c, status, errType, err.Error(), code)
}

// deviceParam reads a non-negative device id from the named path parameter.
func deviceParam(c *echo.Context, name string) (int, error) {
	raw := c.Param(name)
	dev, err := strconv.Atoi(raw)
	if err != nil || dev < 0 {
		return 0, &paramError{name: name, raw: raw}
	}
	return dev, nil
}
