// Package metrics exposes the fabric's live-statistics numbers as
// Prometheus gauges, mirroring the {type, data} values already carried
// over the wire in GET_STATS/LIST_WORKERS so an operator can scrape
// the same numbers taskctl prints.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/geoffjay/taskfabricd/internal/protocol"
)

var (
	TotalTasks = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "taskfabricd_total_tasks",
		Help: "Total number of tasks the dispatcher has ever accepted.",
	})

	CompletedTasks = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "taskfabricd_completed_tasks",
		Help: "Total number of tasks completed successfully.",
	})

	FailedTasks = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "taskfabricd_failed_tasks",
		Help: "Total number of tasks that returned a handler error.",
	})

	OpenTasks = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "taskfabricd_open_tasks",
		Help: "Number of tasks still pending or in flight.",
	})

	AverageCompletionSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "taskfabricd_average_completion_seconds",
		Help: "Average completion time across all completed tasks.",
	})

	LiveWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "taskfabricd_live_workers",
		Help: "Number of worker types with a live registration in the nameservice.",
	})
)

func init() {
	prometheus.MustRegister(TotalTasks)
	prometheus.MustRegister(CompletedTasks)
	prometheus.MustRegister(FailedTasks)
	prometheus.MustRegister(OpenTasks)
	prometheus.MustRegister(AverageCompletionSeconds)
	prometheus.MustRegister(LiveWorkers)
}

// Handler returns the Prometheus scrape handler, mounted at /metrics
// by every service that carries a stats surface.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve mounts Handler at /metrics and blocks serving it on addr. A
// blank addr disables the metrics server entirely, the escape hatch a
// deployment uses when Prometheus scraping isn't wanted.
func Serve(addr string) error {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	err := http.ListenAndServe(addr, mux)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// SetTaskStats copies a GET_STATS snapshot into the exported gauges.
func SetTaskStats(stats protocol.Stats) {
	TotalTasks.Set(float64(stats.TotalTasks))
	CompletedTasks.Set(float64(stats.CompletedTasks))
	FailedTasks.Set(float64(stats.FailedTasks))
	OpenTasks.Set(float64(stats.OpenTasks))
	AverageCompletionSeconds.Set(stats.AverageCompletionSeconds)
}

// SetLiveWorkers records the number of entries LIST_WORKERS returned.
func SetLiveWorkers(n int) {
	LiveWorkers.Set(float64(n))
}
