package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	err := NewError(ErrStreamOpen, "connect refused")
	assert.Equal(t, "[STREAM_OPEN_FAILED] connect refused", err.Error())

	cause := errors.New("dial tcp: timeout")
	err = NewError(ErrThreadCreate, "create thread").WithCause(cause)
	assert.Contains(t, err.Error(), "THREAD_CREATE_FAILED")
	assert.Contains(t, err.Error(), "dial tcp: timeout")
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(ErrUpstreamError, "upstream").WithCause(cause)
	assert.ErrorIs(t, err, cause)
}

func TestError_Builders(t *testing.T) {
	err := NewError(ErrStreamBroken, "mid-stream failure").
		WithHTTPStatus(502).
		WithRetryable(true)
	assert.Equal(t, 502, err.HTTPStatus)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, ErrStreamBroken, GetErrorCode(err))
}

func TestGetErrorCode_PlainError(t *testing.T) {
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
	assert.False(t, IsRetryable(errors.New("plain")))
}
