package client

import (
	"fmt"
	"github.com/VictoriaMetrics/metrics"
	"io"
	"time"
)

// poolMetrics holds the counters of all pools in the process
var poolMetrics = metrics.NewSet()

// WriteMetrics writes the pool metrics in Prometheus text format
func WriteMetrics(w io.Writer) {
	poolMetrics.WritePrometheus(w)
}

func countDispatch(endpoint string) {
	poolMetrics.GetOrCreateCounter(fmt.Sprintf(`dtube_pool_dispatch_total{endpoint=%q}`, endpoint)).Inc()
}

func countRetry(endpoint string) {
	poolMetrics.GetOrCreateCounter(fmt.Sprintf(`dtube_pool_retries_total{endpoint=%q}`, endpoint)).Inc()
}

func countReconnect(endpoint string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	poolMetrics.GetOrCreateCounter(fmt.Sprintf(`dtube_pool_reconnects_total{endpoint=%q,result=%q}`, endpoint, result)).Inc()
}

func countExhausted() {
	poolMetrics.GetOrCreateCounter(`dtube_pool_exhausted_total`).Inc()
}

func countReserved(endpoint string) {
	poolMetrics.GetOrCreateCounter(fmt.Sprintf(`dtube_pool_jobs_reserved_total{endpoint=%q}`, endpoint)).Inc()
}

func countReleased(endpoint string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	poolMetrics.GetOrCreateCounter(fmt.Sprintf(`dtube_pool_jobs_released_total{endpoint=%q,result=%q}`, endpoint, result)).Inc()
}

func observeReserveRound(start time.Time, end time.Time) {
	poolMetrics.GetOrCreateHistogram(`dtube_pool_reserve_round_duration_seconds`).Update(end.Sub(start).Seconds())
}
