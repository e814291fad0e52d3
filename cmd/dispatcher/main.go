// Command dispatcher runs the fabric's task broker: it accepts
// POST_TASK/GET_RESULT from clients, looks workers up through the
// NameService, and hands tasks off over TASK/RESULT_RETURN datagrams.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/geoffjay/taskfabricd/internal/config"
	"github.com/geoffjay/taskfabricd/internal/dispatcher"
	flog "github.com/geoffjay/taskfabricd/internal/log"
	"github.com/geoffjay/taskfabricd/internal/metrics"
	"github.com/geoffjay/taskfabricd/internal/protocol"
	"github.com/geoffjay/taskfabricd/internal/version"
)

type dispatcherConfig struct {
	config.ServiceConfig `mapstructure:",squash"`
	MaxQueueDepth int `yaml:"max_queue_depth" mapstructure:"max_queue_depth"`
}

func main() {
	maxQueueDepthFlag := flag.Int("max-queue-depth", 0, "reject intake once this many tasks are pending (0 = unbounded)")
	processArgs()
	flag.Parse()

	cfg := dispatcherConfig{}
	defaults := map[string]interface{}{
		"bind_address":         fmt.Sprintf("0.0.0.0:%d", protocol.DispatcherPort),
		"metrics_address":      ":9102",
		"nameservice_endpoint": fmt.Sprintf("127.0.0.1:%d", protocol.NameServicePort),
		"max_queue_depth":      0,
	}
	if err := config.LoadConfigWithDefaults("dispatcher", &cfg, defaults); err != nil {
		fmt.Fprintln(os.Stderr, "warning: failed to load dispatcher config:", err)
	}

	if *maxQueueDepthFlag > 0 {
		cfg.MaxQueueDepth = *maxQueueDepthFlag
	}

	flog.Initialize(cfg.Log)
	flog.SetOutput("dispatcher")

	d, err := dispatcher.NewDispatcher(cfg.BindAddress, cfg.NameServiceEndpoint, cfg.MaxQueueDepth)
	if err != nil {
		log.WithError(err).Fatal("failed to bind dispatcher")
	}

	go func() {
		if err := metrics.Serve(cfg.MetricsAddress); err != nil {
			log.WithError(err).Warn("metrics server exited")
		}
	}()

	log.WithField("addr", d.Addr()).Info("dispatcher starting")

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := d.Serve(); err != nil {
			log.WithError(err).Error("dispatcher serve loop exited with error")
		}
	}()

	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)
	<-termChan

	log.Info("shutdown signal received")
	if err := d.Shutdown(); err != nil {
		log.WithError(err).Warn("error during dispatcher shutdown")
	}
	<-done
	log.Info("dispatcher stopped")
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
