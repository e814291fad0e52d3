package nameservice

import (
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/geoffjay/taskfabricd/internal/metrics"
	"github.com/geoffjay/taskfabricd/internal/protocol"
	"github.com/geoffjay/taskfabricd/internal/transport"
)

// reapInterval is how often the background reaper sweeps dead entries,
// mirroring the Majordomo broker's periodic expired-request cleanup
// ticker. Lazy liveness checking at read time makes this hygiene only;
// see Registry.Reap.
const reapInterval = time.Minute

// Server is the UDP-facing NameService: it decodes REGISTER_WORKER,
// HEARTBEAT, DEREGISTER_WORKER, LOOKUP_WORKER and LIST_WORKERS
// datagrams and answers them against a Registry. Every worker address
// is derived from the datagram's source IP paired with the fixed
// protocol.WorkerPort, never from a client-supplied value, so a worker
// behind container NAT cannot misreport its own reachable address.
type Server struct {
	listener *transport.Listener
	registry *Registry

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewServer binds a NameService to addr.
func NewServer(addr string) (*Server, error) {
	listener, err := transport.Listen(addr)
	if err != nil {
		return nil, err
	}

	return &Server{
		listener: listener,
		registry: NewRegistry(),
		stopCh:   make(chan struct{}),
	}, nil
}

// Addr returns the bound local address.
func (s *Server) Addr() string {
	return s.listener.LocalAddr().String()
}

// Serve blocks, answering datagrams until Shutdown is called. It also
// starts the background reaper goroutine.
func (s *Server) Serve() error {
	s.wg.Add(1)
	go s.reapLoop()

	for {
		env, addr, err := s.listener.ReadEnvelope()
		if err != nil {
			select {
			case <-s.stopCh:
				return nil
			default:
			}
			log.WithError(err).Warn("failed to read datagram")
			continue
		}

		go s.dispatch(env, addr)
	}
}

// Shutdown stops Serve and the reaper goroutine and releases the
// listening socket.
func (s *Server) Shutdown() error {
	close(s.stopCh)
	err := s.listener.Close()
	s.wg.Wait()
	return err
}

func (s *Server) reapLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.registry.Reap(reapInterval)
		}
	}
}

// workerAddress derives the address the registry keys workers by: the
// datagram's source IP with the fixed worker port, ignoring whatever
// ephemeral source port the kernel actually assigned.
func workerAddress(addr *net.UDPAddr) string {
	return fmt.Sprintf("%s:%d", addr.IP.String(), protocol.WorkerPort)
}

func (s *Server) dispatch(env protocol.Envelope, addr *net.UDPAddr) {
	log.WithFields(log.Fields{"type": env.Type, "from": addr.String()}).Debug("nameservice received datagram")

	switch env.Type {
	case protocol.RegisterWorker:
		s.handleRegister(env, addr)
	case protocol.Heartbeat:
		s.handleHeartbeat(env, addr)
	case protocol.DeregisterWorker:
		s.handleDeregister(env, addr)
	case protocol.LookupWorker:
		s.handleLookup(env, addr)
	case protocol.ListWorkers:
		s.handleList(addr)
	default:
		log.WithField("type", env.Type).Warn("nameservice received unknown opcode")
		_ = s.listener.Reply(addr, protocol.Response, protocol.Reply{Error: "Unknown message type"})
	}
}

func (s *Server) handleRegister(env protocol.Envelope, addr *net.UDPAddr) {
	var req protocol.RegisterWorkerRequest
	if err := env.Unmarshal(&req); err != nil || req.Type == "" {
		_ = s.listener.Reply(addr, protocol.Response, protocol.Reply{Error: "malformed REGISTER_WORKER request"})
		return
	}

	workerAddr := workerAddress(addr)
	s.registry.Register(req.Type, workerAddr)
	log.WithFields(log.Fields{"type": req.Type, "address": workerAddr}).Info("worker registered")

	_ = s.listener.Reply(addr, protocol.Response, protocol.Reply{
		Message: fmt.Sprintf("Registered %s at %s", req.Type, workerAddr),
	})
}

func (s *Server) handleHeartbeat(env protocol.Envelope, addr *net.UDPAddr) {
	var req protocol.HeartbeatRequest
	if err := env.Unmarshal(&req); err != nil {
		_ = s.listener.Reply(addr, protocol.Response, protocol.Reply{Error: "malformed HEARTBEAT request"})
		return
	}

	updated := s.registry.Heartbeat(workerAddress(addr))
	_ = s.listener.Reply(addr, protocol.Response, protocol.Reply{
		Message: fmt.Sprintf("Heartbeat received, updated %d entries", updated),
	})
}

func (s *Server) handleDeregister(env protocol.Envelope, addr *net.UDPAddr) {
	// Type is accepted but ignored: deregistration matches by source
	// address per the wire protocol, covering the {} request shape.
	var req protocol.DeregisterWorkerRequest
	_ = env.Unmarshal(&req)

	removed := s.registry.Deregister(workerAddress(addr))
	log.WithFields(log.Fields{"address": workerAddress(addr), "removed": removed}).Info("worker deregistered")

	_ = s.listener.Reply(addr, protocol.Response, protocol.Reply{
		Message: fmt.Sprintf("Deregistered %d entries", removed),
	})
}

func (s *Server) handleLookup(env protocol.Envelope, addr *net.UDPAddr) {
	var req protocol.LookupWorkerRequest
	if err := env.Unmarshal(&req); err != nil || req.Type == "" {
		_ = s.listener.Reply(addr, protocol.Response, protocol.LookupWorkerResponse{Error: "malformed LOOKUP_WORKER request"})
		return
	}

	address, ok := s.registry.Lookup(req.Type)
	if !ok {
		_ = s.listener.Reply(addr, protocol.Response, protocol.LookupWorkerResponse{
			Error: fmt.Sprintf("No live worker for type %q", req.Type),
		})
		return
	}

	_ = s.listener.Reply(addr, protocol.Response, protocol.LookupWorkerResponse{Address: address})
}

func (s *Server) handleList(addr *net.UDPAddr) {
	workers := s.registry.List()
	metrics.SetLiveWorkers(len(workers))
	_ = s.listener.Reply(addr, protocol.Response, protocol.ListWorkersResponse{Workers: workers})
}
