package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lk2023060901/seo-research-backend/internal/pkg/errors"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var r Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	return r
}

func TestHandleError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	HandleError(c, apperrors.New(apperrors.ErrRunNotFound, "r-1"))

	assert.Equal(t, http.StatusNotFound, w.Code)
	r := decode(t, w)
	assert.Equal(t, apperrors.ErrRunNotFound, r.Code)
	assert.Equal(t, "Pipeline run not found: r-1", r.Message)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	HandleError(c, errors.New("unexpected"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	Success(c, map[string]int{"n": 1})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"code":0,"data":{"n":1}}`, w.Body.String())

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	Success(c, nil)
	assert.JSONEq(t, `{"code":0,"data":{}}`, w.Body.String())
}

func TestHandleError_ValidationFields(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	HandleError(c, apperrors.NewValidationError(apperrors.FieldError{Field: "url", Rule: "required"}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"code":1001,"message":"Invalid parameters: url: required","data":{"fields":[{"field":"url","rule":"required"}]}}`, w.Body.String())
}
