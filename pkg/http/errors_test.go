package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routes map[string]echo.HandlerFunc

func (r routes) RegisterRoutes(e *echo.Echo) {
	for path, h := range r {
		e.GET(path, h)
	}
}

type errorBody struct {
	Status int `json:"status"`
	Data   []struct {
		Code    string                 `json:"code"`
		Field   string                 `json:"field"`
		Message string                 `json:"message"`
		Params  map[string]interface{} `json:"params"`
	} `json:"data"`
}

func serve(t *testing.T, h Handler, method, url string) (*httptest.ResponseRecorder, errorBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	NewServer(h).Echo().ServeHTTP(rec, httptest.NewRequest(method, url, nil))
	var body errorBody
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestErrorHandlerRendersAppError(t *testing.T) {
	h := routes{"/thing": func(echo.Context) error {
		return NotFoundErrorf("thing %s not found", "x").WithParam("id", "x")
	}}
	rec, body := serve(t, h, http.MethodGet, "/thing")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusNotFound, body.Status)
	require.Len(t, body.Data, 1)
	assert.Equal(t, string(CodeNotFound), body.Data[0].Code)
	assert.Equal(t, "thing x not found", body.Data[0].Message)
	assert.Equal(t, "x", body.Data[0].Params["id"])
}

func TestErrorHandlerRendersValidationDetails(t *testing.T) {
	h := routes{"/thing": func(echo.Context) error {
		return ValidationFailed([]ValidationError{{Code: "ERR_LTE", Field: "Limit", Message: "Limit must be at most 1000"}})
	}}
	rec, body := serve(t, h, http.MethodGet, "/thing")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "ERR_LTE", body.Data[0].Code)
	assert.Equal(t, "Limit", body.Data[0].Field)
}

func TestErrorHandlerHidesUnexpectedErrors(t *testing.T) {
	h := routes{"/boom": func(echo.Context) error {
		return errors.New("dial tcp 10.0.0.1:9000: refused")
	}}
	rec, body := serve(t, h, http.MethodGet, "/boom")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Len(t, body.Data, 1)
	assert.Equal(t, string(CodeInternal), body.Data[0].Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.1")
}

func TestErrorHandlerUnknownRoute(t *testing.T) {
	rec, body := serve(t, routes{}, http.MethodGet, "/nowhere")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.Len(t, body.Data, 1)
	assert.Equal(t, string(CodeNotFound), body.Data[0].Code)
}

func TestRecoverTurnsPanicIntoEnvelope(t *testing.T) {
	h := routes{"/panic": func(echo.Context) error { panic("nil map") }}
	rec, body := serve(t, h, http.MethodGet, "/panic")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, http.StatusInternalServerError, body.Status)
}

func TestListRendersEmptyRows(t *testing.T) {
	h := routes{"/rows": func(c echo.Context) error { return List[string](c, nil) }}
	rec := httptest.NewRecorder()
	NewServer(h).Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rows", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":200,"message":"OK","data":{"rows":[],"total":0}}`, rec.Body.String())
}
