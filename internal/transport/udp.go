// Package transport provides the UDP request/reply plumbing shared by
// every fabric component: a datagram socket that frames and unframes
// protocol.Envelope values, with the connect/timeout/retry shape the
// Majordomo client and worker sockets use, generalized from a ZeroMQ
// DEALER poller to a plain net.UDPConn with read deadlines.
package transport

import (
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/geoffjay/taskfabricd/internal/protocol"
)

const (
	// DefaultTimeout is the per-attempt reply wait before a Socket retries
	// or gives up, mirroring the Majordomo client's 2500ms default.
	DefaultTimeout = 2500 * time.Millisecond
	// DefaultRetries is the number of resend attempts a Socket makes
	// before surfacing protocol.ErrTimeout to its caller.
	DefaultRetries = 3
)

// Socket is a UDP request/reply client bound to one remote address. It
// is not safe for concurrent use by multiple goroutines.
type Socket struct {
	remote  *net.UDPAddr
	conn    *net.UDPConn
	timeout time.Duration
	retries int
}

// Dial opens a UDP socket addressed at remote, ready to send requests.
func Dial(remote string) (*Socket, error) {
	addr, err := net.ResolveUDPAddr("udp", remote)
	if err != nil {
		return nil, protocol.NewError(protocol.CodeNoRoute, "failed to resolve address", err).WithContext("remote", remote)
	}

	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, protocol.NewError(protocol.CodeNoRoute, "failed to dial", err).WithContext("remote", remote)
	}

	return &Socket{
		remote:  addr,
		conn:    conn,
		timeout: DefaultTimeout,
		retries: DefaultRetries,
	}, nil
}

// SetTimeout overrides the per-attempt reply wait.
func (s *Socket) SetTimeout(d time.Duration) {
	s.timeout = d
}

// SetRetries overrides the number of resend attempts.
func (s *Socket) SetRetries(n int) {
	s.retries = n
}

// Close releases the underlying connection.
func (s *Socket) Close() error {
	return s.conn.Close()
}

// Send transmits opcode/payload without waiting for a reply, for
// opcodes like TASK that the protocol defines as fire-and-forget: the
// result arrives later over a separate request.
func (s *Socket) Send(opcode string, payload interface{}) error {
	raw, err := protocol.Encode(opcode, payload)
	if err != nil {
		return err
	}
	_, err = s.conn.Write(raw)
	if err != nil {
		return protocol.NewError(protocol.CodeNoRoute, "failed to send datagram", err).WithContext("type", opcode)
	}
	return nil
}

// Request sends opcode/payload and decodes the reply envelope's data
// into out. A reply carrying an {"error": ...} field is decoded into out
// like any other reply, not returned as a Go error. It resends up to
// s.retries times on timeout before returning protocol.ErrTimeout.
func (s *Socket) Request(opcode string, payload interface{}, out interface{}) error {
	raw, err := protocol.Encode(opcode, payload)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			log.WithFields(log.Fields{
				"remote":  s.remote.String(),
				"type":    opcode,
				"attempt": attempt,
			}).Warn("retrying request after timeout")
		}

		if _, err := s.conn.Write(raw); err != nil {
			lastErr = protocol.NewError(protocol.CodeNoRoute, "failed to send datagram", err)
			continue
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
			return protocol.NewError(protocol.CodeNoRoute, "failed to set read deadline", err)
		}

		buf := make([]byte, protocol.MaxDatagramSize)
		n, err := s.conn.Read(buf)
		if err != nil {
			lastErr = protocol.NewError(protocol.CodeTimeout, "no reply within timeout", protocol.ErrTimeout).
				WithContext("type", opcode)
			continue
		}

		env, err := protocol.Decode(buf[:n])
		if err != nil {
			return err
		}

		if out == nil {
			return nil
		}
		return env.Unmarshal(out)
	}

	log.WithFields(log.Fields{
		"remote": s.remote.String(),
		"type":   opcode,
	}).Error("request exhausted all retries")

	return lastErr
}

// Listener is a UDP endpoint that receives datagrams from arbitrary
// peers and replies to their source address, the shape every fabric
// server (NameService, Dispatcher, Worker) uses.
type Listener struct {
	conn *net.UDPConn
}

// Listen binds a UDP socket at addr.
func Listen(addr string) (*Listener, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, protocol.NewError(protocol.CodeNoRoute, "failed to resolve bind address", err).WithContext("addr", addr)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, protocol.NewError(protocol.CodeNoRoute, "failed to bind", err).WithContext("addr", addr)
	}

	return &Listener{conn: conn}, nil
}

// LocalAddr returns the bound address.
func (l *Listener) LocalAddr() net.Addr {
	return l.conn.LocalAddr()
}

// Close releases the underlying connection.
func (l *Listener) Close() error {
	return l.conn.Close()
}

// ReadEnvelope blocks until a datagram arrives, returning its decoded
// envelope and source address. A malformed datagram is reported as an
// error rather than silently dropped, so the caller can log and
// continue serving.
func (l *Listener) ReadEnvelope() (protocol.Envelope, *net.UDPAddr, error) {
	buf := make([]byte, protocol.MaxDatagramSize)
	n, addr, err := l.conn.ReadFromUDP(buf)
	if err != nil {
		return protocol.Envelope{}, nil, err
	}

	env, err := protocol.Decode(buf[:n])
	return env, addr, err
}

// Reply encodes opcode/payload and sends it to addr.
func (l *Listener) Reply(addr *net.UDPAddr, opcode string, payload interface{}) error {
	raw, err := protocol.Encode(opcode, payload)
	if err != nil {
		return err
	}
	_, err = l.conn.WriteToUDP(raw, addr)
	return err
}

// ReplyError sends a RESPONSE envelope carrying message as its error
// field, used whenever a handler rejects a request rather than
// crashing the server loop.
func (l *Listener) ReplyError(addr *net.UDPAddr, message string) error {
	return l.Reply(addr, protocol.Response, protocol.ErrorPayload{Error: message})
}
