// Package httputil holds the request decoding and error mapping shared by the
// module handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aristath/holdings/internal/domain"
)

// MaxBodyBytes bounds request bodies accepted by DecodeJSON
const MaxBodyBytes = 1 << 20

// StatusFor maps an error to an HTTP status code. Rejected operations are
// unprocessable input (422) except missing positions or accounts (404);
// everything else is a server error.
func StatusFor(err error) int {
	if _, ok := domain.KindOf(err); !ok {
		return http.StatusInternalServerError
	}
	if domain.IsNotFound(err) {
		return http.StatusNotFound
	}
	return http.StatusUnprocessableEntity
}

// ErrorBody is the JSON error payload. Kind is set for rejected operations.
type ErrorBody struct {
	Error string           `json:"error"`
	Kind  domain.ErrorKind `json:"kind,omitempty"`
}

// NewErrorBody builds the payload for err
func NewErrorBody(err error) ErrorBody {
	var opErr *domain.OperationError
	if errors.As(err, &opErr) {
		return ErrorBody{Error: opErr.Error(), Kind: opErr.Kind}
	}
	return ErrorBody{Error: err.Error()}
}

// DecodeJSON decodes a JSON request body into v, rejecting unknown fields
func DecodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
