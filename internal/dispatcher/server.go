package dispatcher

import (
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/geoffjay/taskfabricd/internal/metrics"
	"github.com/geoffjay/taskfabricd/internal/protocol"
	"github.com/geoffjay/taskfabricd/internal/transport"
)

// errorResultPrefix is the convention workers use to report a handler
// failure through the ordinary RESULT_RETURN channel: the result is a
// JSON string starting with this prefix rather than a structured error
// field, since the wire protocol carries no separate status for
// RESULT_RETURN. The Dispatcher sniffs for it to route the task into
// the failed bucket instead of completed.
const errorResultPrefix = "Error processing task: "

// maxPendingPreview bounds GET_STATS's pending-task preview.
const maxPendingPreview = 10

// Dispatcher is the UDP-facing task broker: it decodes POST_TASK,
// GET_RESULT, RESULT_RETURN, GET_STATS and GET_ALL_TASKS datagrams
// against a Store, and runs the dispatch pass after every intake and
// result return.
type Dispatcher struct {
	listener        *transport.Listener
	store           *Store
	nameServiceAddr string
	maxQueueDepth   int

	lookupRetries int
	lookupTimeout time.Duration
	lookupWait    time.Duration

	stopCh chan struct{}
}

// NewDispatcher binds a Dispatcher to addr, routing worker lookups to
// nameServiceAddr. A maxQueueDepth of 0 leaves intake unbounded, the
// spec's default; a positive value makes POST_TASK reject new work
// once that many tasks are pending, per the opt-in backpressure design
// note.
func NewDispatcher(addr, nameServiceAddr string, maxQueueDepth int) (*Dispatcher, error) {
	listener, err := transport.Listen(addr)
	if err != nil {
		return nil, err
	}

	return &Dispatcher{
		listener:        listener,
		store:           NewStore(),
		nameServiceAddr: nameServiceAddr,
		maxQueueDepth:   maxQueueDepth,
		lookupRetries:   lookupRetries,
		lookupTimeout:   lookupTimeout,
		lookupWait:      lookupWait,
		stopCh:          make(chan struct{}),
	}, nil
}

// Addr returns the bound local address.
func (d *Dispatcher) Addr() string {
	return d.listener.LocalAddr().String()
}

// Serve blocks, answering datagrams until Shutdown is called.
func (d *Dispatcher) Serve() error {
	for {
		env, addr, err := d.listener.ReadEnvelope()
		if err != nil {
			select {
			case <-d.stopCh:
				return nil
			default:
			}
			log.WithError(err).Warn("failed to read datagram")
			continue
		}

		go d.dispatchIncoming(env, addr)
	}
}

// Shutdown stops Serve and releases the listening socket.
func (d *Dispatcher) Shutdown() error {
	close(d.stopCh)
	return d.listener.Close()
}

func (d *Dispatcher) dispatchIncoming(env protocol.Envelope, addr *net.UDPAddr) {
	log.WithFields(log.Fields{"type": env.Type, "from": addr.String()}).Debug("dispatcher received datagram")

	switch env.Type {
	case protocol.PostTask:
		d.handlePostTask(env, addr)
	case protocol.GetResult:
		d.handleGetResult(env, addr)
	case protocol.ResultReturn:
		d.handleResultReturn(env, addr)
	case protocol.GetStats:
		d.handleGetStats(addr)
	case protocol.GetAllTasks:
		d.handleGetAllTasks(addr)
	default:
		log.WithField("type", env.Type).Warn("dispatcher received unknown opcode")
		_ = d.listener.Reply(addr, protocol.Response, protocol.Reply{Error: "Unknown message type"})
	}
}

func (d *Dispatcher) handlePostTask(env protocol.Envelope, addr *net.UDPAddr) {
	var req protocol.PostTaskRequest
	if err := env.Unmarshal(&req); err != nil || req.Type == "" {
		_ = d.listener.Reply(addr, protocol.Response, protocol.Reply{Error: "malformed POST_TASK request"})
		return
	}

	if d.maxQueueDepth > 0 && d.store.QueueDepth() >= d.maxQueueDepth {
		_ = d.listener.Reply(addr, protocol.Response, protocol.Reply{Error: "queue full"})
		return
	}

	id := d.store.Enqueue(req.Type, req.Payload)
	go d.dispatchPass()

	_ = d.listener.Reply(addr, protocol.Response, protocol.Reply{
		Message: fmt.Sprintf("Task received, ID = %d", id),
	})
}

func (d *Dispatcher) handleGetResult(env protocol.Envelope, addr *net.UDPAddr) {
	var req protocol.GetResultRequest
	if err := env.Unmarshal(&req); err != nil {
		_ = d.listener.Reply(addr, protocol.Response, protocol.ResultResponse{Error: "malformed GET_RESULT request"})
		return
	}

	task, ok := d.store.Get(req.TaskID)
	if !ok {
		_ = d.listener.Reply(addr, protocol.Response, protocol.ResultResponse{Error: "Task not found"})
		return
	}
	if task.Status == protocol.StatusPending {
		_ = d.listener.Reply(addr, protocol.Response, protocol.ResultResponse{Error: "Result not ready"})
		return
	}

	_ = d.listener.Reply(addr, protocol.Response, protocol.ResultResponse{Result: task.Result})
}

func (d *Dispatcher) handleResultReturn(env protocol.Envelope, addr *net.UDPAddr) {
	var req protocol.ResultReturnRequest
	if err := env.Unmarshal(&req); err != nil {
		_ = d.listener.Reply(addr, protocol.Response, protocol.Reply{Error: "malformed RESULT_RETURN request"})
		return
	}

	var ok bool
	if msg, isErr := resultErrorMessage(req.Result); isErr {
		ok = d.store.Fail(req.TaskID, msg)
	} else {
		ok = d.store.Complete(req.TaskID, req.Result)
	}
	if !ok {
		_ = d.listener.Reply(addr, protocol.Response, protocol.Reply{Error: "Task ID not found"})
		return
	}

	_ = d.listener.Reply(addr, protocol.Response, protocol.Reply{Message: "Result stored"})
	go d.dispatchPass()
}

// resultErrorMessage reports whether result is a JSON string carrying
// the worker error-result convention, returning the whole string,
// prefix included.
func resultErrorMessage(result json.RawMessage) (message string, isError bool) {
	var s string
	if err := json.Unmarshal(result, &s); err != nil {
		return "", false
	}
	if !strings.HasPrefix(s, errorResultPrefix) {
		return "", false
	}
	return s, true
}

func (d *Dispatcher) handleGetStats(addr *net.UDPAddr) {
	stats := d.store.Stats()
	metrics.SetTaskStats(stats)

	_ = d.listener.Reply(addr, protocol.Response, protocol.GetStatsResponse{
		Stats:   stats,
		Pending: d.store.Pending(maxPendingPreview),
	})
}

func (d *Dispatcher) handleGetAllTasks(addr *net.UDPAddr) {
	_ = d.listener.Reply(addr, protocol.Response, protocol.GetAllTasksResponse{
		Stats: d.store.Stats(),
		Tasks: d.store.All(),
	})
}
