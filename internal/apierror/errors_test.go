package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	err := New(KindValidation, "bad input")
	assert.Equal(t, KindValidation, KindOf(err))

	wrapped := fmt.Errorf("handler: %w", err)
	assert.Equal(t, KindValidation, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindValidation))

	assert.Equal(t, KindResource, KindOf(errors.New("plain")))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindIntegrity, cause, "totals drifted")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "totals drifted")
	assert.Contains(t, err.Error(), "boom")
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindTenant, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindIdempotencyConflict, http.StatusConflict},
		{KindState, http.StatusUnprocessableEntity},
		{KindImbalance, http.StatusUnprocessableEntity},
		{KindPeriodClosed, http.StatusUnprocessableEntity},
		{KindIntegrity, http.StatusInternalServerError},
		{KindResource, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(New(tt.kind, "x")), "kind %s", tt.kind)
	}

	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(errors.New("unclassified")))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "invalid tax rate", Sanitize("invalid tax rate"))
	assert.Equal(t, "An internal error occurred", Sanitize("pq: duplicate key"))
	assert.Equal(t, "An internal error occurred", Sanitize("dial tcp 10.0.0.1:5432"))
	assert.Equal(t, "An internal error occurred", Sanitize("panic: runtime error"))
}
