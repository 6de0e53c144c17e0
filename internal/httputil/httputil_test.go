package httputil

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/holdings/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"insufficient funds", domain.NewOperationError(domain.KindInsufficientFunds, "X", "no"), http.StatusUnprocessableEntity},
		{"wrapped oversell", fmt.Errorf("failed: %w", domain.NewOperationError(domain.KindInsufficientQuantity, "X", "no")), http.StatusUnprocessableEntity},
		{"position not found", domain.NewOperationError(domain.KindPositionNotFound, "X", "no"), http.StatusNotFound},
		{"account not found", domain.ErrAccountNotFound, http.StatusNotFound},
		{"plain error", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestNewErrorBody(t *testing.T) {
	body := NewErrorBody(fmt.Errorf("wrap: %w", domain.NewOperationError(domain.KindInvalidPrice, "ITSA4", "bad")))
	assert.Equal(t, domain.KindInvalidPrice, body.Kind)
	assert.Contains(t, body.Error, "ITSA4")

	plain := NewErrorBody(errors.New("boom"))
	assert.Empty(t, plain.Kind)
	assert.Equal(t, "boom", plain.Error)
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Identifier string `json:"identifier"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"identifier":"ITSA4"}`))
	require.NoError(t, DecodeJSON(req, &v))
	assert.Equal(t, "ITSA4", v.Identifier)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"ticker":"ITSA4"}`))
	assert.Error(t, DecodeJSON(req, &v))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`not json`))
	assert.Error(t, DecodeJSON(req, &v))
}
