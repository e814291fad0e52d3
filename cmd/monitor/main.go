// Command monitor runs the fabric's read-only dashboard: an HTTP
// server that polls the Dispatcher and NameService and exposes the
// result as JSON, Server-Sent Events, and Prometheus gauges.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/geoffjay/taskfabricd/internal/config"
	flog "github.com/geoffjay/taskfabricd/internal/log"
	"github.com/geoffjay/taskfabricd/internal/monitor"
	"github.com/geoffjay/taskfabricd/internal/protocol"
	"github.com/geoffjay/taskfabricd/internal/version"
	"github.com/geoffjay/taskfabricd/internal/workerconfig"
)

type monitorConfig struct {
	config.ServiceConfig `mapstructure:",squash"`
	PollInterval         time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	WorkerConfigPath     string        `yaml:"worker_config_path" mapstructure:"worker_config_path"`
}

func main() {
	processArgs()

	cfg := monitorConfig{}
	defaults := map[string]interface{}{
		"bind_address":         "0.0.0.0:8080",
		"nameservice_endpoint": fmt.Sprintf("127.0.0.1:%d", protocol.NameServicePort),
		"dispatcher_endpoint":  fmt.Sprintf("127.0.0.1:%d", protocol.DispatcherPort),
		"poll_interval":        1 * time.Second,
		"worker_config_path":   "workers.yaml",
	}
	if err := config.LoadConfigWithDefaults("monitor", &cfg, defaults); err != nil {
		fmt.Fprintln(os.Stderr, "warning: failed to load monitor config:", err)
	}

	flog.Initialize(cfg.Log)
	flog.SetOutput("monitor")

	entries, err := workerconfig.Load(cfg.WorkerConfigPath)
	if err != nil {
		log.WithError(err).Warn("failed to load worker launcher config")
	}

	workers := make([]monitor.WorkerConfigEntry, 0, len(entries))
	for _, e := range entries {
		workers = append(workers, monitor.WorkerConfigEntry{Name: e.Name, Active: e.Active})
	}

	server := monitor.NewServer(monitor.Config{
		BindAddress:     cfg.BindAddress,
		DispatcherAddr:  cfg.DispatcherEndpoint,
		NameServiceAddr: cfg.NameServiceEndpoint,
		PollInterval:    cfg.PollInterval,
		Workers:         workers,
	})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		if err := server.Run(ctx, &wg); err != nil {
			log.WithError(err).Error("monitor server exited with error")
		}
	}()

	log.WithField("addr", cfg.BindAddress).Info("monitor starting")

	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)
	<-termChan

	log.Info("shutdown signal received")
	cancel()
	wg.Wait()
	log.Info("monitor stopped")
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
