package monitor

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/geoffjay/taskfabricd/internal/metrics"
	"github.com/geoffjay/taskfabricd/internal/protocol"
	"github.com/geoffjay/taskfabricd/internal/transport"
)

// Config bundles the parameters a Server needs at construction time.
type Config struct {
	BindAddress     string
	DispatcherAddr  string
	NameServiceAddr string
	PollInterval    time.Duration
	// Workers lists the launcher's configured worker entries, merged
	// into /api/workers alongside whichever of them are currently live.
	Workers []WorkerConfigEntry
}

// WorkerConfigEntry is one statically-configured worker launcher entry,
// independent of whether the NameService currently sees it as live.
type WorkerConfigEntry struct {
	Name   string `yaml:"name" json:"name"`
	Active bool   `yaml:"active" json:"active"`
}

// Server exposes the fabric's live statistics over HTTP: a polling
// JSON API, an SSE stream of snapshots, and a Prometheus endpoint.
type Server struct {
	cfg Config

	engine      *gin.Engine
	poller      *Poller
	sink        *Sink
	broadcaster *broadcaster

	httpServer *http.Server
}

// NewServer builds a Server ready to Run.
func NewServer(cfg Config) *Server {
	sink := NewSink("monitor://stats", "snapshot")
	bc := newBroadcaster()
	sink.SetHandler(&SinkHandler{Callback: bc})

	poller := NewPoller(cfg.DispatcherAddr, cfg.NameServiceAddr, cfg.PollInterval, sink)

	s := &Server{
		cfg:         cfg,
		poller:      poller,
		sink:        sink,
		broadcaster: bc,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), LoggerMiddleware())
	s.registerRoutes(engine)
	s.engine = engine

	s.httpServer = &http.Server{
		Addr:    cfg.BindAddress,
		Handler: engine,
	}

	return s
}

func (s *Server) registerRoutes(engine *gin.Engine) {
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	engine.GET("/api/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.poller.Latest())
	})

	engine.GET("/api/workers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"live":       s.poller.Latest().Workers,
			"configured": s.cfg.Workers,
		})
	})

	engine.GET("/api/tasks", func(c *gin.Context) {
		resp, err := s.queryAllTasks()
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	})

	engine.GET("/events", s.handleEvents)

	engine.GET("/metrics", gin.WrapH(metrics.Handler()))
}

func (s *Server) queryAllTasks() (protocol.GetAllTasksResponse, error) {
	var resp protocol.GetAllTasksResponse

	sock, err := transport.Dial(s.cfg.DispatcherAddr)
	if err != nil {
		return resp, err
	}
	defer sock.Close()
	sock.SetTimeout(2 * time.Second)
	sock.SetRetries(0)

	err = sock.Request(protocol.GetAllTasks, struct{}{}, &resp)
	return resp, err
}

// handleEvents streams published snapshots to the client as
// server-sent events until the request's context is canceled.
func (s *Server) handleEvents(c *gin.Context) {
	ch, unsubscribe := s.broadcaster.Subscribe()
	defer unsubscribe()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w gin.ResponseWriter) bool {
		select {
		case data, ok := <-ch:
			if !ok {
				return false
			}
			_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// Run starts the poller, sink and HTTP server, blocking until ctx is
// canceled, then shuts every piece down in turn.
func (s *Server) Run(ctx context.Context, wg *sync.WaitGroup) error {
	defer wg.Done()

	var inner sync.WaitGroup
	inner.Add(1)
	go s.sink.Run(ctx, &inner)

	go s.poller.Run()

	serveErrCh := make(chan error, 1)
	go func() {
		log.WithField("addr", s.cfg.BindAddress).Info("monitor server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErrCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErrCh:
		log.WithError(err).Error("monitor server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.httpServer.Shutdown(shutdownCtx)

	s.poller.Stop()
	inner.Wait()

	return nil
}
