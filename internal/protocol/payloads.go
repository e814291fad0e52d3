package protocol

import "encoding/json"

// Task status values.
const (
	StatusPending = "pending"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Task is a named unit of work identified by a Dispatcher-issued id,
// carrying an opaque payload through pending -> done|failed. Payload
// and Result are left as raw JSON since a handler's input/output may be
// a string, a number, or a sequence.
type Task struct {
	ID                 uint64          `json:"id"`
	Type               string          `json:"type"`
	Payload            json.RawMessage `json:"payload"`
	Status             string          `json:"status"`
	Result             json.RawMessage `json:"result,omitempty"`
	AssignedWorker     string          `json:"assigned_worker,omitempty"`
	TimestampCreated   int64           `json:"timestamp_created"`
	TimestampCompleted int64           `json:"timestamp_completed,omitempty"`
}

// Reply is the generic {message} | {error} response shape every
// acknowledgement-only opcode (REGISTER_WORKER, HEARTBEAT,
// DEREGISTER_WORKER, RESULT_RETURN, POST_TASK) replies with.
type Reply struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// PostTaskRequest is the data field of a POST_TASK envelope sent by a
// Client to the Dispatcher.
type PostTaskRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// GetResultRequest is the data field of a GET_RESULT envelope.
type GetResultRequest struct {
	TaskID uint64 `json:"task_id"`
}

// ResultResponse reports a task's stored result or the reason it isn't
// available yet.
type ResultResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// ResultReturnRequest is the data field of a RESULT_RETURN envelope a
// Worker sends back to the Dispatcher once a task completes.
type ResultReturnRequest struct {
	TaskID uint64          `json:"task_id"`
	Result json.RawMessage `json:"result,omitempty"`
}

// RegisterWorkerRequest is the data field of a REGISTER_WORKER
// envelope: a worker registers itself under the single type it serves.
type RegisterWorkerRequest struct {
	Type string `json:"type"`
}

// HeartbeatRequest is the data field of a HEARTBEAT envelope.
type HeartbeatRequest struct {
	Type string `json:"type"`
}

// DeregisterWorkerRequest is the data field of a DEREGISTER_WORKER
// envelope. Type is optional and the NameService ignores it:
// deregistration always matches by source address, removing every
// entry that address owns.
type DeregisterWorkerRequest struct {
	Type string `json:"type,omitempty"`
}

// LookupWorkerRequest is the data field of a LOOKUP_WORKER envelope.
type LookupWorkerRequest struct {
	Type string `json:"type"`
}

// LookupWorkerResponse reports the live worker address for a type, or
// an error if none is currently live.
type LookupWorkerResponse struct {
	Address string `json:"address,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WorkerEntry is one entry in a LIST_WORKERS response.
type WorkerEntry struct {
	Type    string `json:"type"`
	Address string `json:"address"`
}

// ListWorkersResponse is the data field of a LIST_WORKERS reply.
type ListWorkersResponse struct {
	Workers []WorkerEntry `json:"workers"`
}

// TypeStats is the per-type slice of Stats.
type TypeStats struct {
	Count                    int     `json:"count"`
	AverageCompletionSeconds float64 `json:"average_completion_seconds"`
}

// Stats is the Dispatcher's live statistics snapshot.
type Stats struct {
	TotalTasks               int                  `json:"total_tasks"`
	CompletedTasks           int                  `json:"completed_tasks"`
	FailedTasks              int                  `json:"failed_tasks"`
	OpenTasks                int                  `json:"open_tasks"`
	AverageCompletionSeconds float64              `json:"average_completion_seconds"`
	ByType                   map[string]TypeStats `json:"by_type,omitempty"`
}

// GetStatsResponse is the data field of a GET_STATS reply: the live
// statistics plus up to ten pending tasks.
type GetStatsResponse struct {
	Stats   Stats  `json:"stats"`
	Pending []Task `json:"pending"`
}

// GetAllTasksResponse is the data field of a GET_ALL_TASKS reply: the
// live statistics plus every known task.
type GetAllTasksResponse struct {
	Stats Stats  `json:"stats"`
	Tasks []Task `json:"tasks"`
}
