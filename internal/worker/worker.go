// Package worker implements a single-task-type Worker: it registers
// itself with the NameService, binds the fixed worker port, and
// answers every inbound TASK datagram by running the matching handler
// and returning its result to the Dispatcher.
package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/geoffjay/taskfabricd/internal/protocol"
	"github.com/geoffjay/taskfabricd/internal/transport"
	"github.com/geoffjay/taskfabricd/internal/worker/handlers"
)

const (
	registerRetries = 10
	registerTimeout = 1 * time.Second
	registerWait    = 1 * time.Second
)

// ErrRegistrationFailed is returned by Register when every attempt to
// reach the NameService is exhausted.
var ErrRegistrationFailed = errors.New("worker: failed to register with nameservice after exhausting retries")

// Worker answers TASK datagrams for exactly one task type.
type Worker struct {
	workerType      string
	nameServiceAddr string
	dispatcherAddr  string

	listener *transport.Listener
	pool     *pool
	hb       *heartbeat

	stopCh chan struct{}
}

// Config bundles the parameters a Worker needs at construction time.
type Config struct {
	Type              string
	BindAddress       string
	NameServiceAddr   string
	DispatcherAddr    string
	Concurrency       int
	HeartbeatInterval time.Duration
}

// New validates that Type has a registered handler, binds BindAddress,
// and returns a Worker ready to Register and Serve.
func New(cfg Config) (*Worker, error) {
	if _, ok := handlers.Lookup(cfg.Type); !ok {
		return nil, errors.New("worker: no handler registered for type " + cfg.Type)
	}

	listener, err := transport.Listen(cfg.BindAddress)
	if err != nil {
		return nil, err
	}

	return &Worker{
		workerType:      cfg.Type,
		nameServiceAddr: cfg.NameServiceAddr,
		dispatcherAddr:  cfg.DispatcherAddr,
		listener:        listener,
		pool:            newPool(cfg.Concurrency),
		hb:              newHeartbeat(cfg.NameServiceAddr, cfg.Type, cfg.HeartbeatInterval),
		stopCh:          make(chan struct{}),
	}, nil
}

// Addr returns the bound local address.
func (w *Worker) Addr() string {
	return w.listener.LocalAddr().String()
}

// Register sends REGISTER_WORKER to the NameService, retrying up to
// registerRetries times with a one-second wait between attempts. A
// persistent failure is reported to the caller, which per the startup
// contract should exit with a nonzero status rather than serve
// unregistered.
func (w *Worker) Register() error {
	for attempt := 0; attempt < registerRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(registerWait)
		}

		sock, err := transport.Dial(w.nameServiceAddr)
		if err != nil {
			log.WithError(err).Warn("failed to dial nameservice for registration")
			continue
		}
		sock.SetTimeout(registerTimeout)
		sock.SetRetries(0)

		var reply protocol.Reply
		err = sock.Request(protocol.RegisterWorker, protocol.RegisterWorkerRequest{Type: w.workerType}, &reply)
		sock.Close()

		if err == nil {
			log.WithField("type", w.workerType).Info("registered with nameservice")
			return nil
		}
		log.WithError(err).Warn("registration attempt failed")
	}

	return ErrRegistrationFailed
}

// Serve starts the heartbeat loop and blocks, answering TASK datagrams
// until Shutdown is called.
func (w *Worker) Serve() error {
	w.hb.start()

	for {
		env, addr, err := w.listener.ReadEnvelope()
		if err != nil {
			select {
			case <-w.stopCh:
				return nil
			default:
			}
			log.WithError(err).Warn("failed to read datagram")
			continue
		}

		if env.Type != protocol.Task {
			log.WithField("type", env.Type).Warn("worker received unexpected opcode")
			continue
		}

		var task protocol.Task
		if err := env.Unmarshal(&task); err != nil {
			log.WithError(err).WithField("from", addr.String()).Warn("malformed TASK datagram")
			continue
		}

		w.pool.run(func() { w.processTask(task) })
	}
}

// Shutdown stops Serve, waits for any in-flight handler to finish,
// deregisters from the NameService, and releases the listening
// socket — the "finish the in-flight task, then deregister and exit"
// contract a termination signal triggers.
func (w *Worker) Shutdown() error {
	close(w.stopCh)
	err := w.listener.Close()

	w.pool.wait()
	w.hb.stop()
	w.deregister()

	return err
}

func (w *Worker) deregister() {
	sock, err := transport.Dial(w.nameServiceAddr)
	if err != nil {
		log.WithError(err).Warn("failed to dial nameservice for deregistration")
		return
	}
	defer sock.Close()

	if err := sock.Send(protocol.DeregisterWorker, protocol.DeregisterWorkerRequest{Type: w.workerType}); err != nil {
		log.WithError(err).Warn("failed to send deregistration")
		return
	}
	log.WithField("type", w.workerType).Info("deregistered from nameservice")
}

func (w *Worker) processTask(task protocol.Task) {
	log.WithFields(log.Fields{"task_id": task.ID, "type": task.Type}).Info("processing task")

	result, err := w.runHandler(task)
	if err != nil {
		result, _ = json.Marshal("Error processing task: " + err.Error())
		log.WithError(err).WithField("task_id", task.ID).Error("handler failed")
	}

	w.sendResult(task.ID, result)
}

func (w *Worker) runHandler(task protocol.Task) (json.RawMessage, error) {
	h, ok := handlers.Lookup(task.Type)
	if !ok {
		return nil, errors.New("invalid task type: " + task.Type)
	}
	return h(task.Payload)
}

func (w *Worker) sendResult(taskID uint64, result json.RawMessage) {
	sock, err := transport.Dial(w.dispatcherAddr)
	if err != nil {
		log.WithError(err).WithField("task_id", taskID).Error("failed to dial dispatcher to return result")
		return
	}
	defer sock.Close()

	err = sock.Send(protocol.ResultReturn, protocol.ResultReturnRequest{TaskID: taskID, Result: result})
	if err != nil {
		log.WithError(err).WithField("task_id", taskID).Error("failed to send result to dispatcher")
		return
	}
	log.WithField("task_id", taskID).Info("result sent")
}

// ContainerAddress is a human-readable hint at this process's own
// reachable address, for startup logging only: the NameService always
// derives the real address from the datagram source IP, so this value
// is never sent on the wire or trusted by anything.
func ContainerAddress() string {
	hostname, err := os.Hostname()
	if envHost := os.Getenv("HOSTNAME"); envHost != "" {
		hostname = envHost
	} else if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s:%d", hostname, protocol.WorkerPort)
}
