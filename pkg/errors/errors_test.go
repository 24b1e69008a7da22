package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"resource not found", fmt.Errorf("lookup: %w", ErrResourceNotFound), http.StatusNotFound},
		{"term not found", ErrTermNotFound, http.StatusNotFound},
		{"invalid input", ErrInvalidInput, http.StatusBadRequest},
		{"invalid record", ErrInvalidRecord, http.StatusUnprocessableEntity},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests},
		{"unavailable", ErrUnavailable, http.StatusServiceUnavailable},
		{"timeout", ErrTimeout, http.StatusServiceUnavailable},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
		{"app error wins", New(ErrResourceNotFound, http.StatusTeapot, "x"), http.StatusTeapot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatusCode(tt.err))
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	err := Newf(ErrInvalidInput, http.StatusBadRequest, "query too long: %d", 9000)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "invalid input: query too long: 9000", err.Error())
}
