// Package log wires the fabric's services to a shared logrus logger:
// level and formatter come from config.LogConfig, and an optional Loki
// hook ships Info, Warn, Error and Fatal entries to a log aggregator.
package log

import (
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/yukitsune/lokirus"

	"github.com/geoffjay/taskfabricd/core/util"
	"github.com/geoffjay/taskfabricd/internal/config"
)

const timestampFormat = "2006-01-02 15:04:05"

// Initialize configures the standard logrus logger from cfg. An
// unrecognized level leaves the current level untouched rather than
// failing startup; an empty formatter defaults to text.
func Initialize(cfg config.LogConfig) {
	if cfg.Level != "" {
		if level, err := log.ParseLevel(cfg.Level); err == nil {
			log.SetLevel(level)
		}
	}

	switch cfg.Formatter {
	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: timestampFormat,
		})
	default:
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: timestampFormat,
		})
	}

	if cfg.Loki.Address != "" {
		hook := lokirus.NewLokiHookWithOpts(
			cfg.Loki.Address,
			lokirus.NewLokiHookOptions().WithLevelMap(lokirus.LevelMap{
				log.InfoLevel:  "info",
				log.WarnLevel:  "warning",
				log.ErrorLevel: "error",
				log.FatalLevel: "fatal",
			}).WithStaticLabels(lokirus.Labels(cfg.Loki.Labels)),
			log.InfoLevel, log.WarnLevel, log.ErrorLevel, log.FatalLevel,
		)
		log.AddHook(hook)
	}
}

// SetOutput points the standard logger at <LOG_DIR>/<service>.log in
// addition to stderr, mirroring the per-service log files the fabric's
// services have always written. LOG_DIR defaults to the working
// directory when unset. A file that can't be opened is logged as a
// warning and left to stderr alone rather than failing startup.
func SetOutput(service string) {
	dir := util.Getenv("LOG_DIR", ".")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.WithError(err).Warn("failed to create LOG_DIR, logging to stderr only")
		return
	}

	path := filepath.Join(dir, service+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("failed to open log file, logging to stderr only")
		return
	}

	log.SetOutput(io.MultiWriter(os.Stderr, file))
}
