package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	applogger "RiskLab/pkg/logger"
)

// ErrorCode is the machine-readable code carried in error bodies.
type ErrorCode string

const (
	CodeBadRequest       ErrorCode = "ERR_BAD_REQUEST"
	CodeValidation       ErrorCode = "ERR_VALIDATION"
	CodeNotFound         ErrorCode = "ERR_NOT_FOUND"
	CodeMethodNotAllowed ErrorCode = "ERR_METHOD_NOT_ALLOWED"
	CodeInternal         ErrorCode = "ERR_INTERNAL"
)

// AppError is returned by handlers to produce a non-2xx response.
// Err is logged but never serialized.
type AppError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Details []ValidationError      `json:"-"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// WithParam sets a single error param.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError attaches the underlying cause.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// Errorf creates an AppError with a formatted message.
func Errorf(status int, code ErrorCode, format string, a ...interface{}) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, a...), Status: status}
}

func NotFoundErrorf(format string, a ...interface{}) *AppError {
	return Errorf(http.StatusNotFound, CodeNotFound, format, a...)
}

func BadRequestErrorf(format string, a ...interface{}) *AppError {
	return Errorf(http.StatusBadRequest, CodeBadRequest, format, a...)
}

func InternalErrorf(format string, a ...interface{}) *AppError {
	return Errorf(http.StatusInternalServerError, CodeInternal, format, a...)
}

// ValidationFailed reports request binding or validation problems as a 400.
func ValidationFailed(details []ValidationError) *AppError {
	e := Errorf(http.StatusBadRequest, CodeValidation, "invalid request")
	e.Details = details
	return e
}

// ErrorHandler renders every error that reaches echo in the standard envelope.
func ErrorHandler(l *applogger.Logger) echo.HTTPErrorHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		appErr := asAppError(err)
		if appErr.Status >= http.StatusInternalServerError {
			l.Error("request failed",
				applogger.String("method", c.Request().Method),
				applogger.String("path", c.Path()),
				applogger.Error(err),
			)
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(appErr.Status)
			return
		}
		_ = writeError(c, appErr)
	}
}

func asAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		switch {
		case he.Code == http.StatusNotFound:
			return NotFoundErrorf("route not found")
		case he.Code == http.StatusMethodNotAllowed:
			return Errorf(he.Code, CodeMethodNotAllowed, "method not allowed")
		case he.Code < http.StatusInternalServerError:
			return Errorf(he.Code, CodeBadRequest, "%v", he.Message)
		}
	}
	return InternalErrorf("internal server error").WithError(err)
}
