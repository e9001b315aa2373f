package httputil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registerBody struct {
	FullName string `json:"full_name" validate:"required,max=5"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Internal string `json:"-" validate:"max=1"`
}

func TestValidationError_UsesJSONFieldNames(t *testing.T) {
	err := NewValidator().Struct(registerBody{FullName: "Rita Reporter", Email: "nope"})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	ValidationError(rec, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":{"message":"validation error","details":[
		{"field":"full_name","message":"max=5"},
		{"field":"email","message":"email"}
	]}}`, rec.Body.String())
}

func TestValidationError_PlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	ValidationError(rec, errors.New("body is empty"))

	assert.JSONEq(t, `{"error":{"message":"validation error","details":"body is empty"}}`, rec.Body.String())
}

func TestEnvelopes(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, http.StatusCreated, map[string]string{"id": "I1"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"id":"I1"}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	Error(rec, http.StatusConflict, "incident is closed")
	assert.JSONEq(t, `{"error":{"message":"incident is closed"}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	JSON(rec, http.StatusNoContent, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}
