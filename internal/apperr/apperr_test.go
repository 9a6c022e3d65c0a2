package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name   string
		err    error
		status int
		kind   Kind
	}{
		{"invalid input", InvalidInput("rank", "bad body", nil), http.StatusBadRequest, KindInvalidInput},
		{"embedding", Embedding("search", cause), http.StatusBadGateway, KindEmbedding},
		{"upstream", UpstreamSearch("search", cause), http.StatusBadGateway, KindUpstreamSearch},
		{"wrapped", fmt.Errorf("outer: %w", Embedding("search", cause)), http.StatusBadGateway, KindEmbedding},
		{"plain error", cause, http.StatusInternalServerError, KindInternal},
		{"model not fitted", New(KindModelNotFitted, "predict", "", nil), http.StatusInternalServerError, KindModelNotFitted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.True(t, Is(tt.err, tt.kind))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	cause := errors.New("connection refused")
	err := UpstreamSearch("vector search", cause)

	assert.Equal(t, "vector search: candidate search is unavailable: connection refused", err.Error())
	assert.Equal(t, "candidate search is unavailable", PublicMessage(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal error", PublicMessage(cause))
	assert.False(t, Is(nil, KindInternal))
}
