// Package metrics provides Prometheus metrics for the hiddensweep client.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hiddensweep_api_requests_total",
			Help: "Total number of API requests by method and status class",
		},
		[]string{"method", "status"},
	)

	apiErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hiddensweep_api_errors_total",
			Help: "Total number of failed API calls by error kind",
		},
		[]string{"kind"},
	)

	scanFilesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hiddensweep_scan_files_total",
			Help: "Total number of hidden files reported by scans",
		},
	)

	scanBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hiddensweep_scan_bytes_total",
			Help: "Total size in bytes of hidden files reported by scans",
		},
	)

	filesDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hiddensweep_files_deleted_total",
			Help: "Total number of files deleted as reported by the server",
		},
	)
)

// RecordRequest counts a completed API request.
func RecordRequest(method string, status int) {
	class := strconv.Itoa(status/100) + "xx"
	apiRequestsTotal.WithLabelValues(method, class).Inc()
}

// RecordRequestError counts a failed API call by taxonomy kind.
func RecordRequestError(kind string) {
	apiErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordScannedFile counts one file event from a scan stream.
func RecordScannedFile(size int64) {
	scanFilesTotal.Inc()
	scanBytesTotal.Add(float64(size))
}

// RecordDeleted counts files deleted as confirmed by the server.
func RecordDeleted(n int) {
	filesDeletedTotal.Add(float64(n))
}
