// Package protocol implements the datagram wire protocol shared by the
// NameService, Dispatcher, Worker and Client: a single JSON envelope of
// {"type": ..., "data": ...} carried over one UDP datagram per request.
package protocol

import "time"

// Opcodes understood by at least one component of the fabric.
const (
	PostTask         = "POST_TASK"
	GetResult        = "GET_RESULT"
	ResultReturn     = "RESULT_RETURN"
	RegisterWorker   = "REGISTER_WORKER"
	DeregisterWorker = "DEREGISTER_WORKER"
	LookupWorker     = "LOOKUP_WORKER"
	Heartbeat        = "HEARTBEAT"
	ListWorkers      = "LIST_WORKERS"
	GetStats         = "GET_STATS"
	GetAllTasks      = "GET_ALL_TASKS"
	Task             = "TASK"
	Response         = "RESPONSE"
)

// MaxDatagramSize is the largest encoded envelope the fabric will send or
// accept; larger payloads are out of scope per the wire protocol.
const MaxDatagramSize = 4096

// HeartbeatTimeout is the NameService liveness window: an entry is live
// iff now-last_seen <= HeartbeatTimeout.
const HeartbeatTimeout = 30 * time.Second

// WorkerPort is the fixed UDP port every worker listens on. The
// NameService never trusts a worker-supplied address; it pairs this port
// with the datagram's source IP.
const WorkerPort = 6000

// DispatcherPort is the fixed UDP port the Dispatcher listens on.
const DispatcherPort = 4000

// NameServicePort is the fixed UDP port the NameService listens on.
const NameServicePort = 5001
