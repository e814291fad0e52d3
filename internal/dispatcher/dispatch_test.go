package dispatcher

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoffjay/taskfabricd/internal/protocol"
	"github.com/geoffjay/taskfabricd/internal/transport"
)

// fakeNameService answers every LOOKUP_WORKER with the same address,
// or with an empty address if addr is "".
func fakeNameService(t *testing.T, addr string) *transport.Listener {
	t.Helper()
	l, err := transport.Listen("127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		for {
			env, from, err := l.ReadEnvelope()
			if err != nil {
				return
			}
			if env.Type != protocol.LookupWorker {
				continue
			}
			_ = l.Reply(from, protocol.Response, protocol.LookupWorkerResponse{Address: addr})
		}
	}()

	return l
}

// fakeWorker records every TASK datagram it receives.
func fakeWorker(t *testing.T) (*transport.Listener, chan protocol.Task) {
	t.Helper()
	l, err := transport.Listen("127.0.0.1:0")
	require.NoError(t, err)

	received := make(chan protocol.Task, 8)
	go func() {
		for {
			env, _, err := l.ReadEnvelope()
			if err != nil {
				return
			}
			if env.Type != protocol.Task {
				continue
			}
			var task protocol.Task
			if err := env.Unmarshal(&task); err == nil {
				received <- task
			}
		}
	}()

	return l, received
}

func newTestDispatcher(t *testing.T, nameServiceAddr string) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher("127.0.0.1:0", nameServiceAddr, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Shutdown() })
	return d
}

func TestDispatchPassSendsQueuedTaskToLiveWorker(t *testing.T) {
	worker, received := fakeWorker(t)
	defer worker.Close()

	ns := fakeNameService(t, worker.LocalAddr().String())
	defer ns.Close()

	d := newTestDispatcher(t, ns.LocalAddr().String())
	id := d.store.Enqueue("reverse", json.RawMessage(`"abc"`))

	d.dispatchPass()

	select {
	case task := <-received:
		assert.Equal(t, id, task.ID)
		assert.Equal(t, "reverse", task.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("worker never received the dispatched task")
	}

	assert.Equal(t, 0, d.store.QueueDepth())
	assert.True(t, d.store.isBusy(worker.LocalAddr().String()))
}

func TestDispatchPassSkipsTaskWithNoLiveWorker(t *testing.T) {
	ns := fakeNameService(t, "")
	defer ns.Close()

	d := newTestDispatcher(t, ns.LocalAddr().String())
	d.lookupWorkerRetriesOverrideForTest()
	_ = d.store.Enqueue("reverse", json.RawMessage(`"abc"`))

	d.dispatchPass()

	assert.Equal(t, 1, d.store.QueueDepth(), "a task with no live worker must stay queued")
}

func TestDispatchPassSkipsTaskForBusyWorker(t *testing.T) {
	worker, received := fakeWorker(t)
	defer worker.Close()

	ns := fakeNameService(t, worker.LocalAddr().String())
	defer ns.Close()

	d := newTestDispatcher(t, ns.LocalAddr().String())
	first := d.store.Enqueue("reverse", json.RawMessage(`"abc"`))
	second := d.store.Enqueue("reverse", json.RawMessage(`"def"`))

	d.dispatchPass()

	select {
	case task := <-received:
		assert.Equal(t, first, task.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("worker never received the first dispatched task")
	}

	assert.Equal(t, 1, d.store.QueueDepth(), "the second task must stay queued while the worker is busy")

	typ, pending := d.store.taskType(second)
	assert.Equal(t, "reverse", typ)
	assert.True(t, pending)
}
