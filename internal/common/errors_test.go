package common

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
		code string
	}{
		{"not found", NotFoundErrorf("session %d not found", 4), http.StatusNotFound, CodeNotFound},
		{"invalid input", InvalidInputErrorf("bad id"), http.StatusBadRequest, CodeInvalidInput},
		{"wrapped sentinel", fmt.Errorf("lookup: %w", ErrNotFound), http.StatusNotFound, CodeNotFound},
		{"structuring beats inner validation", NewAppError(CodeStructuringFailed, "model output rejected", fmt.Errorf("check: %w", ErrValidation)), http.StatusBadGateway, CodeStructuringFailed},
		{"database", NewAppError(CodeDatabase, "insert failed", ErrDatabase), http.StatusInternalServerError, CodeDatabase},
		{"plain", errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
			assert.Equal(t, tt.code, ErrorCode(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "session 4 not found", ErrorMessage(NotFoundErrorf("session %d not found", 4)))
	assert.Equal(t, "insert failed: disk full", ErrorMessage(NewAppError(CodeDatabase, "insert failed", errors.New("disk full"))))
}
