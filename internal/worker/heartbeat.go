package worker

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/geoffjay/taskfabricd/internal/protocol"
	"github.com/geoffjay/taskfabricd/internal/transport"
)

// heartbeat sends a fire-and-forget HEARTBEAT datagram to the
// nameservice on a fixed interval, the ticker/stop-channel/WaitGroup
// shape every fabric background loop uses.
type heartbeat struct {
	nameServiceAddr string
	workerType      string
	interval        time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newHeartbeat(nameServiceAddr, workerType string, interval time.Duration) *heartbeat {
	return &heartbeat{
		nameServiceAddr: nameServiceAddr,
		workerType:      workerType,
		interval:        interval,
		stopCh:          make(chan struct{}),
	}
}

func (h *heartbeat) start() {
	h.wg.Add(1)
	go h.loop()
}

func (h *heartbeat) stop() {
	close(h.stopCh)
	h.wg.Wait()
}

func (h *heartbeat) loop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.send()
		}
	}
}

func (h *heartbeat) send() {
	sock, err := transport.Dial(h.nameServiceAddr)
	if err != nil {
		log.WithError(err).Warn("failed to dial nameservice for heartbeat")
		return
	}
	defer sock.Close()

	if err := sock.Send(protocol.Heartbeat, protocol.HeartbeatRequest{Type: h.workerType}); err != nil {
		log.WithError(err).Warn("failed to send heartbeat")
		return
	}
	log.Debug("heartbeat sent")
}
