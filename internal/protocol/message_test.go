package protocol_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoffjay/taskfabricd/internal/protocol"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	raw, err := protocol.Encode(protocol.PostTask, protocol.PostTaskRequest{
		Type:    "upper",
		Payload: json.RawMessage(`"hello"`),
	})
	require.NoError(t, err)

	env, err := protocol.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, protocol.PostTask, env.Type)

	var req protocol.PostTaskRequest
	require.NoError(t, env.Unmarshal(&req))
	assert.Equal(t, "upper", req.Type)
	assert.Equal(t, `"hello"`, string(req.Payload))
}

func TestDecodeMalformed(t *testing.T) {
	_, err := protocol.Decode([]byte("not json"))
	require.Error(t, err)
	assert.True(t, protocol.IsPermanent(err))
}

func TestDecodeMissingType(t *testing.T) {
	_, err := protocol.Decode([]byte(`{"data": {}}`))
	require.Error(t, err)
	assert.True(t, protocol.IsPermanent(err))
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	_, err := protocol.Encode(protocol.PostTask, protocol.PostTaskRequest{
		Type:    "upper",
		Payload: json.RawMessage(`"` + strings.Repeat("x", protocol.MaxDatagramSize*2) + `"`),
	})
	require.Error(t, err)
	assert.True(t, protocol.IsPermanent(err))
}

func TestDecodeRejectsOversizedDatagram(t *testing.T) {
	_, err := protocol.Decode([]byte(strings.Repeat("x", protocol.MaxDatagramSize+1)))
	require.Error(t, err)
}

func TestEncodeError(t *testing.T) {
	raw, err := protocol.EncodeError("boom")
	require.NoError(t, err)

	env, err := protocol.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, protocol.Response, env.Type)

	var payload protocol.ErrorPayload
	require.NoError(t, env.Unmarshal(&payload))
	assert.Equal(t, "boom", payload.Error)
}
