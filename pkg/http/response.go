package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// Page is the data of a list response.
type Page[T any] struct {
	Rows  []T   `json:"rows"`
	Total int64 `json:"total"`
}

// JSON writes data in the envelope with the given status.
func JSON(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, Envelope{
		Status:  status,
		Message: http.StatusText(status),
		Data:    data,
	})
}

// OK writes a 200 envelope.
func OK(c echo.Context, data interface{}) error {
	return JSON(c, http.StatusOK, data)
}

// List writes rows as a page. A nil slice is rendered as [].
func List[T any](c echo.Context, rows []T) error {
	if rows == nil {
		rows = []T{}
	}
	return OK(c, Page[T]{Rows: rows, Total: int64(len(rows))})
}

func writeError(c echo.Context, e *AppError) error {
	if len(e.Details) > 0 {
		return JSON(c, e.Status, e.Details)
	}
	return JSON(c, e.Status, []*AppError{e})
}
