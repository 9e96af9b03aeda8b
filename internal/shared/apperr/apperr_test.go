package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid", InvalidErr("bad", nil), http.StatusBadRequest},
		{"not found", NotFoundErr("missing"), http.StatusNotFound},
		{"unauthorized", UnauthorizedErr("login"), http.StatusUnauthorized},
		{"forbidden", ForbiddenErr("no"), http.StatusForbidden},
		{"conflict", ConflictErr("dup"), http.StatusConflict},
		{"unavailable", UnavailableErr("gateway down", errors.New("dial")), http.StatusBadGateway},
		{"too many", TooManyErr("slow down"), http.StatusTooManyRequests},
		{"wrapped app error", fmt.Errorf("outer: %w", ForbiddenErr("no")), http.StatusForbidden},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestWrapKeepsExistingAppError(t *testing.T) {
	orig := NotFoundErr("Order not found.")
	assert.Same(t, orig, Wrap(orig))

	cause := errors.New("db down")
	w := Wrap(cause)
	assert.Equal(t, Internal, w.Kind)
	assert.ErrorIs(t, w, cause)
	assert.Equal(t, defaultPublicMsg, PublicMessage(w))
	assert.Nil(t, Wrap(nil))
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "Order not found.", PublicMessage(NotFoundErr("Order not found.")))
	assert.Equal(t, defaultPublicMsg, PublicMessage(errors.New("x")))
}
