package worker

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoffjay/taskfabricd/internal/protocol"
	"github.com/geoffjay/taskfabricd/internal/transport"
)

// fakeNameService answers REGISTER_WORKER/DEREGISTER_WORKER/HEARTBEAT
// with a bare success reply, recording every request it sees.
func fakeNameService(t *testing.T) (*transport.Listener, chan protocol.Envelope) {
	t.Helper()
	l, err := transport.Listen("127.0.0.1:0")
	require.NoError(t, err)

	seen := make(chan protocol.Envelope, 16)
	go func() {
		for {
			env, from, err := l.ReadEnvelope()
			if err != nil {
				return
			}
			seen <- env
			if env.Type == protocol.RegisterWorker {
				_ = l.Reply(from, protocol.Response, protocol.Reply{Message: "Registered"})
			}
		}
	}()

	return l, seen
}

func fakeDispatcher(t *testing.T) (*transport.Listener, chan protocol.ResultReturnRequest) {
	t.Helper()
	l, err := transport.Listen("127.0.0.1:0")
	require.NoError(t, err)

	results := make(chan protocol.ResultReturnRequest, 16)
	go func() {
		for {
			env, _, err := l.ReadEnvelope()
			if err != nil {
				return
			}
			if env.Type != protocol.ResultReturn {
				continue
			}
			var req protocol.ResultReturnRequest
			if err := env.Unmarshal(&req); err == nil {
				results <- req
			}
		}
	}()

	return l, results
}

func TestRegisterSucceedsAgainstLiveNameService(t *testing.T) {
	ns, seen := fakeNameService(t)
	defer ns.Close()

	w, err := New(Config{
		Type:              "reverse",
		BindAddress:       "127.0.0.1:0",
		NameServiceAddr:   ns.LocalAddr().String(),
		DispatcherAddr:    "127.0.0.1:1",
		Concurrency:       2,
		HeartbeatInterval: time.Hour,
	})
	require.NoError(t, err)
	defer w.listener.Close()

	require.NoError(t, w.Register())

	select {
	case env := <-seen:
		assert.Equal(t, protocol.RegisterWorker, env.Type)
	case <-time.After(time.Second):
		t.Fatal("nameservice never saw the registration")
	}
}

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := New(Config{Type: "not-a-real-handler", BindAddress: "127.0.0.1:0"})
	assert.Error(t, err)
}

func TestServeProcessesTaskAndReturnsResult(t *testing.T) {
	ns, _ := fakeNameService(t)
	defer ns.Close()

	dispatcher, results := fakeDispatcher(t)
	defer dispatcher.Close()

	w, err := New(Config{
		Type:              "reverse",
		BindAddress:       "127.0.0.1:0",
		NameServiceAddr:   ns.LocalAddr().String(),
		DispatcherAddr:    dispatcher.LocalAddr().String(),
		Concurrency:       2,
		HeartbeatInterval: time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Shutdown() })

	go func() { _ = w.Serve() }()

	sock, err := transport.Dial(w.Addr())
	require.NoError(t, err)
	defer sock.Close()

	require.NoError(t, sock.Send(protocol.Task, protocol.Task{
		ID:      7,
		Type:    "reverse",
		Payload: json.RawMessage(`"abc"`),
	}))

	select {
	case result := <-results:
		assert.Equal(t, uint64(7), result.TaskID)
		assert.JSONEq(t, `"cba"`, string(result.Result))
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher never received the task result")
	}
}

func TestServeReturnsErrorResultForInvalidPayload(t *testing.T) {
	ns, _ := fakeNameService(t)
	defer ns.Close()

	dispatcher, results := fakeDispatcher(t)
	defer dispatcher.Close()

	w, err := New(Config{
		Type:              "reverse",
		BindAddress:       "127.0.0.1:0",
		NameServiceAddr:   ns.LocalAddr().String(),
		DispatcherAddr:    dispatcher.LocalAddr().String(),
		Concurrency:       1,
		HeartbeatInterval: time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Shutdown() })

	go func() { _ = w.Serve() }()

	sock, err := transport.Dial(w.Addr())
	require.NoError(t, err)
	defer sock.Close()

	require.NoError(t, sock.Send(protocol.Task, protocol.Task{
		ID:      8,
		Type:    "reverse",
		Payload: json.RawMessage(`42`),
	}))

	select {
	case result := <-results:
		var msg string
		require.NoError(t, json.Unmarshal(result.Result, &msg))
		assert.Contains(t, msg, "Error processing task:")
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher never received the error result")
	}
}

func TestShutdownDeregisters(t *testing.T) {
	ns, seen := fakeNameService(t)
	defer ns.Close()

	w, err := New(Config{
		Type:              "upper",
		BindAddress:       "127.0.0.1:0",
		NameServiceAddr:   ns.LocalAddr().String(),
		DispatcherAddr:    "127.0.0.1:1",
		Concurrency:       1,
		HeartbeatInterval: time.Hour,
	})
	require.NoError(t, err)
	require.NoError(t, w.Register())
	<-seen // drain the register

	go func() { _ = w.Serve() }()
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, w.Shutdown())

	select {
	case env := <-seen:
		assert.Equal(t, protocol.DeregisterWorker, env.Type)
	case <-time.After(time.Second):
		t.Fatal("nameservice never saw the deregistration")
	}
}
