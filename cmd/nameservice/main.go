// Command nameservice runs the fabric's type-to-worker registry: it
// answers REGISTER_WORKER, HEARTBEAT, DEREGISTER_WORKER, LOOKUP_WORKER
// and LIST_WORKERS datagrams.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/geoffjay/taskfabricd/internal/config"
	flog "github.com/geoffjay/taskfabricd/internal/log"
	"github.com/geoffjay/taskfabricd/internal/metrics"
	"github.com/geoffjay/taskfabricd/internal/nameservice"
	"github.com/geoffjay/taskfabricd/internal/protocol"
	"github.com/geoffjay/taskfabricd/internal/version"
)

func main() {
	processArgs()

	cfg := config.ServiceConfig{}
	defaults := map[string]interface{}{
		"bind_address":    fmt.Sprintf("0.0.0.0:%d", protocol.NameServicePort),
		"metrics_address": ":9101",
	}
	if err := config.LoadConfigWithDefaults("nameservice", &cfg, defaults); err != nil {
		fmt.Fprintln(os.Stderr, "warning: failed to load nameservice config:", err)
	}

	flog.Initialize(cfg.Log)
	flog.SetOutput("nameservice")

	server, err := nameservice.NewServer(cfg.BindAddress)
	if err != nil {
		log.WithError(err).Fatal("failed to bind nameservice")
	}

	go func() {
		if err := metrics.Serve(cfg.MetricsAddress); err != nil {
			log.WithError(err).Warn("metrics server exited")
		}
	}()

	log.WithField("addr", server.Addr()).Info("nameservice starting")

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.Serve(); err != nil {
			log.WithError(err).Error("nameservice serve loop exited with error")
		}
	}()

	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)
	<-termChan

	log.Info("shutdown signal received")
	if err := server.Shutdown(); err != nil {
		log.WithError(err).Warn("error during nameservice shutdown")
	}
	<-done
	log.Info("nameservice stopped")
}

func processArgs() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "-V", "--version", "version":
			fmt.Println(version.VERSION)
			os.Exit(0)
		}
	}
}
