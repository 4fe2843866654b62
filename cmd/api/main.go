package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/yourorg/product-catalog/internal/api"
	"github.com/yourorg/product-catalog/internal/catalog"
	"github.com/yourorg/product-catalog/internal/images"
	"github.com/yourorg/product-catalog/internal/metrics"
	"github.com/yourorg/product-catalog/internal/storage"
)

func main() {
	ctx := context.Background()

	// Structured logger (zap)
	zl := newZap(getEnv("LOG_LEVEL", "info"))
	defer zl.Sync()

	// Metrics server
	metrics.Init()
	go func() {
		_ = metrics.Serve(metrics.AddrFromEnv())
	}()

	// Blob store backend: the bucket in production, badger for local work.
	backend := getEnv("CATALOG_BACKEND", "s3")
	var blobs storage.BlobStore
	switch backend {
	case "badger":
		b, err := storage.NewBadger(getEnv("BADGER_DIR", "/var/product-catalog/badger"))
		if err != nil {
			log.Fatalf("badger init: %v", err)
		}
		defer b.Close()
		blobs = b
	default:
		s3c, err := storage.NewS3(ctx, getEnv("CATALOG_BUCKET", "my-lists-images"))
		if err != nil {
			log.Fatalf("s3 init: %v", err)
		}
		blobs = s3c
	}

	strategy := catalog.ParseStrategy(getEnv("CATALOG_WRITE_STRATEGY", "lww"))
	cat := catalog.New(blobs, strategy, zl)
	img := images.New(blobs, zl)

	// Initialize Gin
	r := gin.Default()
	r.MaxMultipartMemory = 8 << 20 // 8MB

	// CORS middleware
	origins := strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:3000"), ",")
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	// Serve the UI build
	staticDir := getEnv("STATIC_DIR", "./build")
	r.Static("/static", staticDir+"/static")
	r.StaticFile("/", staticDir+"/index.html")
	r.StaticFile("/index.html", staticDir+"/index.html")

	handler := api.NewHandler(cat, img, blobs, zl)
	r.GET("/test", handler.Health)
	if backend == "badger" {
		// Local backend has no presigned URLs; serve blobs directly.
		r.GET("/blob/:key", handler.ServeBlob)
	}

	// API routes
	products := r.Group("/api/products")
	{
		products.GET("", handler.GetProducts)
		products.POST("/create", handler.CreateProduct)
		products.POST("/update", handler.UpdateProduct)
		products.DELETE("/delete/:title", handler.DeleteProduct)
	}

	// Maintenance workflow routes (only if Temporal is available)
	temporalClient, err := client.Dial(client.Options{
		HostPort:  getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		Namespace: getEnv("TEMPORAL_NAMESPACE", "default"),
	})
	if err != nil {
		zl.Warn("temporal unavailable, maintenance routes disabled", zap.Error(err))
	} else {
		defer temporalClient.Close()
		wf := api.NewWorkflowHandler(temporalClient, getEnv("TEMPORAL_TASK_QUEUE", "product-catalog"), zl)
		r.POST("/api/maintenance/sweep-images", wf.StartImageSweep)
		r.GET("/api/maintenance/workflows/:id/status", wf.GetWorkflowStatus)
	}

	// Start server
	port := getEnv("PORT", "8080")
	zl.Info("server starting",
		zap.String("port", port),
		zap.String("backend", backend),
		zap.String("writeStrategy", getEnv("CATALOG_WRITE_STRATEGY", "lww")))
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
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
