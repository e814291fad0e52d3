package protocol_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/geoffjay/taskfabricd/internal/protocol"
)

func TestErrorFormatting(t *testing.T) {
	err := protocol.NewError(protocol.CodeTimeout, "no reply", protocol.ErrTimeout)
	assert.Contains(t, err.Error(), "TIMEOUT")
	assert.Contains(t, err.Error(), "no reply")
	assert.True(t, errors.Is(err, protocol.ErrTimeout))
}

func TestErrorIsMatchesByCode(t *testing.T) {
	a := protocol.NewError(protocol.CodeNoRoute, "nobody home", nil)
	b := protocol.NewError(protocol.CodeNoRoute, "different message", nil)
	assert.True(t, errors.Is(a, b))
}

func TestWithContext(t *testing.T) {
	err := protocol.NewError(protocol.CodeMalformed, "bad", nil).WithContext("type", "POST_TASK")
	assert.Equal(t, "POST_TASK", err.Context["type"])
}

func TestIsRetryableAndPermanent(t *testing.T) {
	retryable := protocol.NewError(protocol.CodeWorkerBusy, "busy", nil)
	assert.True(t, protocol.IsRetryable(retryable))
	assert.False(t, protocol.IsPermanent(retryable))

	permanent := protocol.NewError(protocol.CodeUnknownOpcode, "nope", nil)
	assert.True(t, protocol.IsPermanent(permanent))
	assert.False(t, protocol.IsRetryable(permanent))

	assert.False(t, protocol.IsRetryable(nil))
	assert.False(t, protocol.IsPermanent(nil))
}
