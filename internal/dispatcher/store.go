// Package dispatcher implements task intake, the worker-busy dispatch
// pass, and result collection, generalizing the Majordomo broker's
// in-memory request table (core/mdp/persistence.go's
// MemoryPersistenceStore/RequestManager) from string-keyed, TTL-expiring
// Requests into uint64-keyed Tasks that live for the process lifetime
// with no eviction.
package dispatcher

import (
	"sync"
	"time"

	"github.com/geoffjay/taskfabricd/internal/protocol"
)

type typeAgg struct {
	count         int
	totalDuration time.Duration
}

// Store is the Dispatcher's single owned piece of shared state: the
// task table, the FIFO dispatch queue, the worker-busy table and the
// live statistics, all guarded by one mutex per the fabric's
// shared-state discipline.
type Store struct {
	mu sync.Mutex

	nextID uint64
	tasks  map[uint64]*protocol.Task
	queue  []uint64
	busy   map[string]bool

	totalTasks     int
	completedTasks int
	failedTasks    int
	totalDuration  time.Duration
	byType         map[string]*typeAgg
}

// NewStore builds an empty task store.
func NewStore() *Store {
	return &Store{
		tasks:  make(map[uint64]*protocol.Task),
		busy:   make(map[string]bool),
		byType: make(map[string]*typeAgg),
	}
}

// Enqueue allocates an id, stores a pending Task, and appends it to the
// FIFO queue. It returns the assigned id.
func (s *Store) Enqueue(typ string, payload []byte) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID

	s.tasks[id] = &protocol.Task{
		ID:               id,
		Type:             typ,
		Payload:          payload,
		Status:           protocol.StatusPending,
		TimestampCreated: time.Now().Unix(),
	}
	s.queue = append(s.queue, id)
	s.totalTasks++

	return id
}

// pendingSnapshot returns a copy of the current queue order, used by
// the dispatch pass so it can perform NameService lookups (which may
// block for seconds across ten retries) without holding the store
// lock for the whole walk.
func (s *Store) pendingSnapshot() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]uint64, len(s.queue))
	copy(out, s.queue)
	return out
}

// isBusy reports whether endpoint currently has a task in flight.
func (s *Store) isBusy(endpoint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy[endpoint]
}

// taskType returns a task's type and whether it is still pending,
// without removing it from anything; used by the dispatch pass between
// the lookup and the claim step since the task may have completed or
// already been claimed by a racing pass in the interim.
func (s *Store) taskType(id uint64) (typ string, pending bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return "", false
	}
	return t.Type, t.Status == protocol.StatusPending
}

// claim marks endpoint busy and assigns the task to it, removing the
// task from the queue, provided it is still pending and the endpoint is
// still free. It reports whether the claim succeeded; a false result
// means another pass (or a result return) beat this one to it.
func (s *Store) claim(id uint64, endpoint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy[endpoint] {
		return false
	}
	t, ok := s.tasks[id]
	if !ok || t.Status != protocol.StatusPending {
		return false
	}

	s.busy[endpoint] = true
	t.AssignedWorker = endpoint

	for i, qid := range s.queue {
		if qid == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}

	return true
}

// release reverts a claim after a failed send, returning the task to
// the queue so the next dispatch pass retries it.
func (s *Store) release(id uint64, endpoint string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.busy, endpoint)
	if t, ok := s.tasks[id]; ok && t.Status == protocol.StatusPending {
		t.AssignedWorker = ""
		s.queue = append(s.queue, id)
	}
}

// QueueDepth returns the number of tasks currently pending dispatch,
// used by the optional --max-queue-depth intake guard.
func (s *Store) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Complete records a RESULT_RETURN: it stores the result, marks the
// task done, frees the assigned worker, and updates statistics. It
// reports false if the task id is unknown. A RESULT_RETURN for a task
// that is already done is a no-op that still reports success, the
// "safer default" policy for duplicate completions.
func (s *Store) Complete(id uint64, result []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	if t.Status != protocol.StatusPending {
		return true
	}

	now := time.Now()
	t.Result = result
	t.Status = protocol.StatusDone
	t.TimestampCompleted = now.Unix()

	if t.AssignedWorker != "" {
		delete(s.busy, t.AssignedWorker)
	}
	s.removeFromQueue(id)

	s.completedTasks++
	duration := time.Duration(t.TimestampCompleted-t.TimestampCreated) * time.Second
	s.totalDuration += duration

	agg, ok := s.byType[t.Type]
	if !ok {
		agg = &typeAgg{}
		s.byType[t.Type] = agg
	}
	agg.count++
	agg.totalDuration += duration

	return true
}

// Fail records a handler failure the same way Complete records success,
// but into the failed bucket rather than completed.
func (s *Store) Fail(id uint64, errMessage string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	if t.Status != protocol.StatusPending {
		return true
	}

	now := time.Now()
	t.Result = quoteJSON(errMessage)
	t.Status = protocol.StatusFailed
	t.TimestampCompleted = now.Unix()

	if t.AssignedWorker != "" {
		delete(s.busy, t.AssignedWorker)
	}
	s.removeFromQueue(id)

	s.failedTasks++

	return true
}

func (s *Store) removeFromQueue(id uint64) {
	for i, qid := range s.queue {
		if qid == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// Get returns a copy of the task by id.
func (s *Store) Get(id uint64) (protocol.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return protocol.Task{}, false
	}
	return *t, true
}

// Stats returns a frozen snapshot of the live statistics.
func (s *Store) Stats() protocol.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := protocol.Stats{
		TotalTasks:     s.totalTasks,
		CompletedTasks: s.completedTasks,
		FailedTasks:    s.failedTasks,
		OpenTasks:      s.totalTasks - s.completedTasks - s.failedTasks,
	}

	if s.completedTasks > 0 {
		stats.AverageCompletionSeconds = s.totalDuration.Seconds() / float64(s.completedTasks)
	}

	if len(s.byType) > 0 {
		stats.ByType = make(map[string]protocol.TypeStats, len(s.byType))
		for typ, agg := range s.byType {
			stats.ByType[typ] = protocol.TypeStats{
				Count:                    agg.count,
				AverageCompletionSeconds: agg.totalDuration.Seconds() / float64(agg.count),
			}
		}
	}

	return stats
}

// Pending returns up to limit pending tasks in queue order, for
// GET_STATS's truncated preview.
func (s *Store) Pending(limit int) []protocol.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.queue)
	if n > limit {
		n = limit
	}

	out := make([]protocol.Task, 0, n)
	for _, id := range s.queue[:n] {
		out = append(out, *s.tasks[id])
	}
	return out
}

// All returns every known task, for GET_ALL_TASKS.
func (s *Store) All() []protocol.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]protocol.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	return out
}

func quoteJSON(s string) []byte {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	for _, r := range s {
		if r == '"' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, string(r)...)
	}
	out = append(out, '"')
	return out
}
