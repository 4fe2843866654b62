package main

import (
	"context"
	"log"
	"os"
	"strings"

	tactivity "go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/yourorg/product-catalog/internal/activities"
	"github.com/yourorg/product-catalog/internal/catalog"
	pcmetrics "github.com/yourorg/product-catalog/internal/metrics"
	"github.com/yourorg/product-catalog/internal/storage"
	"github.com/yourorg/product-catalog/internal/workflow"
)

func main() {
	ctx := context.Background()
	taddr := getenv("TEMPORAL_ADDRESS", "localhost:7233")
	ns := getenv("TEMPORAL_NAMESPACE", "default")
	q := getenv("TEMPORAL_TASK_QUEUE", "product-catalog")

	// Structured logger (zap)
	zl := newZap(getenv("LOG_LEVEL", "info"))
	defer zl.Sync()

	// Metrics server
	pcmetrics.Init()
	go func() {
		_ = pcmetrics.Serve(pcmetrics.AddrFromEnv())
	}()

	// The sweep reads the same bucket the API writes.
	var blobs storage.BlobStore
	if getenv("CATALOG_BACKEND", "s3") == "badger" {
		b, err := storage.NewBadger(getenv("BADGER_DIR", "/var/product-catalog/badger"))
		if err != nil {
			log.Fatal("badger init:", err)
		}
		defer b.Close()
		blobs = b
	} else {
		s3c, err := storage.NewS3(ctx, getenv("CATALOG_BUCKET", "my-lists-images"))
		if err != nil {
			log.Fatal("s3 init:", err)
		}
		blobs = s3c
	}
	cat := catalog.New(blobs, catalog.LastWriterWins, zl)

	c, err := client.Dial(client.Options{HostPort: taddr, Namespace: ns})
	if err != nil {
		log.Fatal("temporal client:", err)
	}
	defer c.Close()

	w := worker.New(c, q, worker.Options{})
	acts := activities.New(activities.Config{Blobs: blobs, Catalog: cat, Log: zl})
	// Register activities with explicit names matching workflow.ExecuteActivity calls
	w.RegisterActivityWithOptions(acts.SweepOrphanedImages, tactivity.RegisterOptions{Name: "Activities.SweepOrphanedImages"})
	w.RegisterWorkflow(workflow.SweepImagesWorkflow)

	zl.Info("worker started", zap.String("namespace", ns), zap.String("taskQueue", q), zap.String("metrics", getenv("METRICS_ADDR", ":9090")))
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal("worker failed:", err)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func newZap(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
