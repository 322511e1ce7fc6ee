package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorConstructors(t *testing.T) {
	tests := []struct {
		name      string
		err       *AppError
		code      string
		status    int
		retryable bool
	}{
		{"not found", ErrNotFound("receipt"), CodeNotFound, http.StatusNotFound, false},
		{"precondition", ErrPreconditionFailed("bad state"), CodePreconditionFailed, http.StatusPreconditionFailed, false},
		{"concurrent", ErrConcurrentModification("task"), CodeConcurrentModification, http.StatusConflict, true},
		{"conflict", ErrConflict("duplicate"), CodeConflict, http.StatusConflict, false},
		{"putaway", ErrPutawayExhausted("no location"), CodePutawayExhausted, http.StatusUnprocessableEntity, false},
		{"validation", ErrValidation("bad"), CodeValidationError, http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
		})
	}
}

func TestAppErrorWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("version conflict")
	err := ErrConcurrentModification("pallet").Wrap(cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.Contains(t, err.Error(), "version conflict")
	assert.True(t, HasCode(err, CodeConcurrentModification))
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	appErr := ErrNotFoundWithID("task", "t-1")
	assert.Same(t, appErr, FromError(appErr))

	internal := FromError(stderrors.New("connection refused"))
	assert.Equal(t, CodeInternalError, internal.Code)
	assert.Equal(t, http.StatusInternalServerError, internal.HTTPStatus)
}
