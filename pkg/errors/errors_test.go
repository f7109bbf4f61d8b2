package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := Wrap(CodeDependency, cause, "load loan")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, CodeDependency, err.Code())
	assert.Equal(t, "DEPENDENCY_ERROR: load loan", err.Error())
}

func TestOperationFailedWrapsInternal(t *testing.T) {
	cause := stdErrors.New("deadlock detected")
	err := OperationFailed("ReturnLoan", cause)

	assert.Equal(t, CodeInternal, err.Code())
	assert.Equal(t, "ReturnLoan failed", err.Message())
	require.ErrorIs(t, err, cause)
}

func TestAsFindsTypedError(t *testing.T) {
	inner := New(CodeStateConflict, "copy already withdrawn")
	wrapped := Wrap(CodeInternal, inner, "withdraw copy")

	typed := As(wrapped)
	require.NotNil(t, typed)
	assert.Equal(t, CodeInternal, typed.Code())

	assert.Nil(t, As(stdErrors.New("plain")))
}

func TestHasCode(t *testing.T) {
	err := New(CodeLimitExceeded, "too many reservations")
	assert.True(t, HasCode(err, CodeLimitExceeded))
	assert.False(t, HasCode(err, CodeConflict))
	assert.False(t, HasCode(nil, CodeConflict))
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	meta := MetadataFor(Code("NO_SUCH_CODE"))
	assert.Equal(t, http.StatusInternalServerError, meta.HTTPStatus)

	limit := MetadataFor(CodeLimitExceeded)
	assert.Equal(t, http.StatusConflict, limit.HTTPStatus)
	assert.False(t, limit.Retryable)
}
