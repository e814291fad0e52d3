package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoffjay/taskfabricd/internal/protocol"
	"github.com/geoffjay/taskfabricd/internal/transport"
)

// fakeDispatcher answers GET_STATS with a fixed response.
func fakeDispatcher(t *testing.T, resp protocol.GetStatsResponse) *transport.Listener {
	t.Helper()
	l, err := transport.Listen("127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		for {
			env, from, err := l.ReadEnvelope()
			if err != nil {
				return
			}
			if env.Type == protocol.GetStats {
				_ = l.Reply(from, protocol.Response, resp)
			}
		}
	}()

	return l
}

// fakeNameService answers LIST_WORKERS with a fixed response.
func fakeNameService(t *testing.T, resp protocol.ListWorkersResponse) *transport.Listener {
	t.Helper()
	l, err := transport.Listen("127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		for {
			env, from, err := l.ReadEnvelope()
			if err != nil {
				return
			}
			if env.Type == protocol.ListWorkers {
				_ = l.Reply(from, protocol.Response, resp)
			}
		}
	}()

	return l
}

func TestPollerPublishesSnapshotToSink(t *testing.T) {
	dispatcher := fakeDispatcher(t, protocol.GetStatsResponse{
		Stats: protocol.Stats{TotalTasks: 3, CompletedTasks: 2, OpenTasks: 1},
	})
	defer dispatcher.Close()

	nameservice := fakeNameService(t, protocol.ListWorkersResponse{
		Workers: []protocol.WorkerEntry{{Type: "reverse", Address: "127.0.0.1:6000"}},
	})
	defer nameservice.Close()

	sink := NewSink("test://sink", "")
	received := make(chan []byte, 4)
	sink.SetHandler(&SinkHandler{Callback: callbackFunc(func(data []byte) error {
		received <- data
		return nil
	})})

	p := NewPoller(dispatcher.LocalAddr().String(), nameservice.LocalAddr().String(), 20*time.Millisecond, sink)
	go p.Run()
	defer p.Stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go sink.Run(context.Background(), &wg)
	defer sink.Stop()

	select {
	case data := <-received:
		assert.Contains(t, string(data), `"total_tasks":3`)
		assert.Contains(t, string(data), `"reverse"`)
	case <-time.After(2 * time.Second):
		t.Fatal("sink never received a published snapshot")
	}

	snap := p.Latest()
	assert.Equal(t, 3, snap.Stats.TotalTasks)
	require.Len(t, snap.Workers, 1)
	assert.Equal(t, "reverse", snap.Workers[0].Type)
}

type callbackFunc func(data []byte) error

func (f callbackFunc) Handle(data []byte) error { return f(data) }
