package transport_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoffjay/taskfabricd/internal/protocol"
	"github.com/geoffjay/taskfabricd/internal/transport"
)

func TestRequestReplyRoundTrip(t *testing.T) {
	listener, err := transport.Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		env, addr, err := listener.ReadEnvelope()
		if err != nil {
			return
		}
		if env.Type != protocol.PostTask {
			return
		}
		_ = listener.Reply(addr, protocol.Response, protocol.Reply{Message: "Task received, ID = 42"})
	}()

	sock, err := transport.Dial(listener.LocalAddr().String())
	require.NoError(t, err)
	defer sock.Close()
	sock.SetTimeout(500 * time.Millisecond)
	sock.SetRetries(1)

	var resp protocol.Reply
	err = sock.Request(protocol.PostTask, protocol.PostTaskRequest{
		Type:    "upper",
		Payload: json.RawMessage(`"hi"`),
	}, &resp)
	require.NoError(t, err)
	assert.Equal(t, "Task received, ID = 42", resp.Message)

	<-done
}

func TestRequestTimesOutWithoutServer(t *testing.T) {
	sock, err := transport.Dial("127.0.0.1:1")
	require.NoError(t, err)
	defer sock.Close()
	sock.SetTimeout(50 * time.Millisecond)
	sock.SetRetries(1)

	var resp protocol.Reply
	err = sock.Request(protocol.PostTask, protocol.PostTaskRequest{
		Type:    "upper",
		Payload: json.RawMessage(`"hi"`),
	}, &resp)
	require.Error(t, err)
	assert.True(t, protocol.IsRetryable(err))
}

func TestReplyErrorDecodesIntoErrorField(t *testing.T) {
	listener, err := transport.Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	go func() {
		env, addr, err := listener.ReadEnvelope()
		if err != nil {
			return
		}
		if env.Type != protocol.GetResult {
			return
		}
		_ = listener.ReplyError(addr, "task not found")
	}()

	sock, err := transport.Dial(listener.LocalAddr().String())
	require.NoError(t, err)
	defer sock.Close()
	sock.SetTimeout(500 * time.Millisecond)

	var resp protocol.ResultResponse
	err = sock.Request(protocol.GetResult, protocol.GetResultRequest{TaskID: 1}, &resp)
	require.NoError(t, err)
	assert.Equal(t, "task not found", resp.Error)
}
