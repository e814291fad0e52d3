// Command worker runs a single-task-type Worker: it registers with the
// NameService, binds the fixed worker port, and processes TASK
// datagrams with whichever handler matches its configured type.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/geoffjay/taskfabricd/internal/config"
	flog "github.com/geoffjay/taskfabricd/internal/log"
	"github.com/geoffjay/taskfabricd/internal/metrics"
	"github.com/geoffjay/taskfabricd/internal/protocol"
	"github.com/geoffjay/taskfabricd/internal/version"
	"github.com/geoffjay/taskfabricd/internal/worker"
	_ "github.com/geoffjay/taskfabricd/internal/worker/handlers"
)

type workerConfig struct {
	config.ServiceConfig `mapstructure:",squash"`
	Type                 string `yaml:"type" mapstructure:"type"`
	Concurrency          int    `yaml:"concurrency" mapstructure:"concurrency"`
}

func main() {
	typeFlag := flag.String("type", "", "task type this worker handles (e.g. reverse, upper, hash, sum, wait, random_fact)")
	processArgs()
	flag.Parse()

	cfg := workerConfig{}
	defaults := map[string]interface{}{
		"bind_address":         fmt.Sprintf("0.0.0.0:%d", protocol.WorkerPort),
		"metrics_address":      ":9103",
		"nameservice_endpoint": fmt.Sprintf("127.0.0.1:%d", protocol.NameServicePort),
		"dispatcher_endpoint":  fmt.Sprintf("127.0.0.1:%d", protocol.DispatcherPort),
		"heartbeat_interval":   10 * time.Second,
		"concurrency":          4,
	}
	if err := config.LoadConfigWithDefaults("worker", &cfg, defaults); err != nil {
		fmt.Fprintln(os.Stderr, "warning: failed to load worker config:", err)
	}

	if *typeFlag != "" {
		cfg.Type = *typeFlag
	}
	if cfg.Type == "" {
		fmt.Fprintln(os.Stderr, "worker: --type is required (or set \"type\" in the config file)")
		os.Exit(1)
	}

	flog.Initialize(cfg.Log)
	flog.SetOutput("worker_" + cfg.Type)

	w, err := worker.New(worker.Config{
		Type:              cfg.Type,
		BindAddress:       cfg.BindAddress,
		NameServiceAddr:   cfg.NameServiceEndpoint,
		DispatcherAddr:    cfg.DispatcherEndpoint,
		Concurrency:       cfg.Concurrency,
		HeartbeatInterval: cfg.HeartbeatInterval,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to construct worker")
	}

	if err := w.Register(); err != nil {
		log.WithError(err).Fatal("failed to register with nameservice")
	}

	go func() {
		if err := metrics.Serve(cfg.MetricsAddress); err != nil {
			log.WithError(err).Warn("metrics server exited")
		}
	}()

	log.WithFields(log.Fields{"type": cfg.Type, "addr": w.Addr()}).Info("worker starting")

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Serve(); err != nil {
			log.WithError(err).Error("worker serve loop exited with error")
		}
	}()

	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)
	<-termChan

	log.Info("shutdown signal received, finishing in-flight task before exit")
	if err := w.Shutdown(); err != nil {
		log.WithError(err).Warn("error during worker shutdown")
	}
	<-done
	log.Info("worker stopped")
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
