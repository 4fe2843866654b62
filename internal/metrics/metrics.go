package metrics

import (
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DocumentReads = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "document_reads_total",
		Help:      "Total fetches of the catalog document.",
	})
	DocumentWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "document_writes_total",
		Help:      "Total full-document writes of the catalog.",
	})
	WriteConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "write_conflicts_total",
		Help:      "Conditional writes that lost to a concurrent writer.",
	})
	ProductsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "products_created_total",
		Help:      "Products created through the API.",
	})
	ProductsUpdated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "products_updated_total",
		Help:      "Products updated through the API.",
	})
	ProductsDeleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "products_deleted_total",
		Help:      "Products removed through the API.",
	})
	ImagesStored = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "images_stored_total",
		Help:      "Image blobs written to the object store.",
	})
	SignFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "sign_failures_total",
		Help:      "Presign attempts that fell back to the raw key.",
	})
	OrphansSwept = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "catalog",
		Name:      "orphans_swept_total",
		Help:      "Unreferenced image blobs removed by the sweep worker.",
	})
)

// Init registers collectors; call once from main.
func Init() {
	prometheus.MustRegister(
		DocumentReads, DocumentWrites, WriteConflicts,
		ProductsCreated, ProductsUpdated, ProductsDeleted,
		ImagesStored, SignFailures, OrphansSwept,
	)
}

// Serve starts a /metrics server on the given addr (e.g., ":9090"). Non-blocking when run in goroutine.
func Serve(addr string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, nil)
}

// AddrFromEnv returns listen address from METRICS_ADDR or default ":9090".
func AddrFromEnv() string {
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		return v
	}
	return ":9090"
}
