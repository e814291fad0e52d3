// Package monitor implements a read-only dashboard over the fabric: a
// Poller periodically pulls GET_STATS from the Dispatcher and
// LIST_WORKERS from the NameService, a Sink fans the resulting snapshot
// out to whoever is watching (an SSE stream today), and Server exposes
// both over a small gin HTTP API.
package monitor

import (
	"encoding/json"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/geoffjay/taskfabricd/internal/metrics"
	"github.com/geoffjay/taskfabricd/internal/protocol"
	"github.com/geoffjay/taskfabricd/internal/transport"
)

// Snapshot is the merged view the dashboard renders once per poll.
type Snapshot struct {
	Stats    protocol.Stats         `json:"stats"`
	Pending  []protocol.Task        `json:"pending"`
	Workers  []protocol.WorkerEntry `json:"workers"`
	PolledAt int64                  `json:"polled_at"`
}

// Poller pulls a Snapshot from the Dispatcher and NameService on a fixed
// interval and publishes it to a Sink, mirroring the dashboard's own
// stats_updater background loop.
type Poller struct {
	dispatcherAddr  string
	nameServiceAddr string
	interval        time.Duration
	timeout         time.Duration

	sink *Sink

	latest   Snapshot
	latestCh chan Snapshot

	started atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewPoller builds a Poller publishing to sink every interval.
func NewPoller(dispatcherAddr, nameServiceAddr string, interval time.Duration, sink *Sink) *Poller {
	return &Poller{
		dispatcherAddr:  dispatcherAddr,
		nameServiceAddr: nameServiceAddr,
		interval:        interval,
		timeout:         1 * time.Second,
		sink:            sink,
		latestCh:        make(chan Snapshot, 1),
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
	}
}

// Latest returns the most recently polled snapshot, or a zero Snapshot
// if nothing has been polled yet.
func (p *Poller) Latest() Snapshot {
	select {
	case s := <-p.latestCh:
		p.latestCh <- s
		return s
	default:
		return p.latest
	}
}

// Run polls on a ticker until Stop is called.
func (p *Poller) Run() {
	p.started.Store(true)
	defer close(p.doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

// Stop halts Run and waits for the in-flight poll, if any, to finish.
// On a Poller whose Run was never started it returns at once.
func (p *Poller) Stop() {
	close(p.stopCh)
	if p.started.Load() {
		<-p.doneCh
	}
}

func (p *Poller) poll() {
	snapshot := Snapshot{PolledAt: time.Now().Unix()}

	if resp, err := p.queryStats(); err == nil {
		snapshot.Stats = resp.Stats
		snapshot.Pending = resp.Pending
		metrics.SetTaskStats(resp.Stats)
	} else {
		log.WithError(err).Warn("monitor: failed to poll dispatcher stats")
	}

	if workers, err := p.queryWorkers(); err == nil {
		snapshot.Workers = workers
		metrics.SetLiveWorkers(len(workers))
	} else {
		log.WithError(err).Warn("monitor: failed to poll nameservice workers")
	}

	p.latest = snapshot
	select {
	case <-p.latestCh:
	default:
	}
	p.latestCh <- snapshot

	if p.sink != nil {
		if raw, err := json.Marshal(snapshot); err == nil {
			p.sink.Publish(raw)
		}
	}
}

func (p *Poller) queryStats() (protocol.GetStatsResponse, error) {
	var resp protocol.GetStatsResponse

	sock, err := transport.Dial(p.dispatcherAddr)
	if err != nil {
		return resp, err
	}
	defer sock.Close()
	sock.SetTimeout(p.timeout)
	sock.SetRetries(0)

	err = sock.Request(protocol.GetStats, struct{}{}, &resp)
	return resp, err
}

func (p *Poller) queryWorkers() ([]protocol.WorkerEntry, error) {
	var resp protocol.ListWorkersResponse

	sock, err := transport.Dial(p.nameServiceAddr)
	if err != nil {
		return nil, err
	}
	defer sock.Close()
	sock.SetTimeout(p.timeout)
	sock.SetRetries(0)

	err = sock.Request(protocol.ListWorkers, struct{}{}, &resp)
	return resp.Workers, err
}
