package dispatcher

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/geoffjay/taskfabricd/internal/protocol"
	"github.com/geoffjay/taskfabricd/internal/transport"
)

const (
	lookupRetries = 10
	lookupTimeout = 1 * time.Second
	lookupWait    = 1 * time.Second
)

// lookupWorker asks the NameService for a live address for typ,
// retrying up to lookupRetries times with a one-second wait between
// attempts, per the dispatcher's worker-lookup-with-retry design. It
// returns ok=false, not an error, when every attempt comes back empty:
// "no route to worker" is logged and the task simply stays queued.
func (d *Dispatcher) lookupWorker(typ string) (address string, ok bool) {
	for attempt := 0; attempt < d.lookupRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(d.lookupWait)
		}

		sock, err := transport.Dial(d.nameServiceAddr)
		if err != nil {
			log.WithError(err).Warn("failed to dial nameservice for lookup")
			continue
		}
		sock.SetTimeout(d.lookupTimeout)
		sock.SetRetries(0)

		var resp protocol.LookupWorkerResponse
		err = sock.Request(protocol.LookupWorker, protocol.LookupWorkerRequest{Type: typ}, &resp)
		sock.Close()

		if err != nil {
			continue
		}
		if resp.Address == "" {
			continue
		}
		return resp.Address, true
	}

	log.WithField("type", typ).Warn("no route to worker after exhausting lookup retries")
	return "", false
}

// dispatchPass walks the queue top-to-bottom, skipping any task whose
// type has no live worker or whose worker is currently busy, and hands
// every remaining task to its resolved worker. It is triggered after
// every intake and every result return, and is the only place tasks
// leave the queue.
func (d *Dispatcher) dispatchPass() {
	for _, id := range d.store.pendingSnapshot() {
		typ, pending := d.store.taskType(id)
		if !pending {
			continue
		}

		address, ok := d.lookupWorker(typ)
		if !ok {
			continue
		}

		if d.store.isBusy(address) {
			continue
		}

		if !d.store.claim(id, address) {
			continue
		}

		task, ok := d.store.Get(id)
		if !ok {
			d.store.release(id, address)
			continue
		}

		sock, err := transport.Dial(address)
		if err != nil {
			log.WithError(err).WithField("address", address).Error("failed to dial worker for dispatch")
			d.store.release(id, address)
			continue
		}

		err = sock.Send(protocol.Task, task)
		sock.Close()
		if err != nil {
			log.WithError(err).WithFields(log.Fields{"task_id": id, "address": address}).Error("failed to send task to worker")
			d.store.release(id, address)
			continue
		}

		log.WithFields(log.Fields{"task_id": id, "type": typ, "address": address}).Info("dispatched task")
	}
}
