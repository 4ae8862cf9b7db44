// reconcile-service runs the drift-detection sweep as its own deployable:
// a small gin server that accepts the admin trigger, the Pub/Sub push from
// Cloud Scheduler, and optionally a local ticker for environments without
// a scheduler (set RECONCILE_INTERVAL_MINUTES).
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/reviews_backend/config"
	"github.com/mmdatafocus/reviews_backend/models"
	"github.com/mmdatafocus/reviews_backend/notify"
	"github.com/mmdatafocus/reviews_backend/trackersync"
	"github.com/mmdatafocus/reviews_backend/utils"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func main() {
	port := os.Getenv("RECONCILE_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	reconciler, err := trackersync.BuildReconciler(logger)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "tracker"}).Fatal(err)
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.Use(requestLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/reconcile", trackersync.ReconcileHandler(reconciler))
	r.POST("/tracker/pubsub", trackersync.PubSubPushHandler(reconciler))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	// Drift notifications go out via Pub/Sub when a project is configured.
	// Ensure the topic up front so the first sweep does not race topic
	// creation; failure here only degrades notifications, never the sweep.
	if notifier, ok := notify.FromEnv(logger).(*notify.PubSubNotifier); ok {
		go func() {
			client, err := config.GetClient(sigCtx)
			if err != nil {
				config.LogWarn(logger, "main.go", "main", "pubsub client init", nil, err)
				return
			}
			if _, err := config.CreateTopicIfNotExists(client, notifier.Topic()); err != nil {
				config.LogWarn(logger, "main.go", "main", "ensure notifications topic", nil, err)
			}
		}()
	}

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()

	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	if minutes := intFromEnv("RECONCILE_INTERVAL_MINUTES", 0); minutes > 0 {
		go runTicker(sigCtx, reconciler, logger, time.Duration(minutes)*time.Minute)
	}

	select {
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{"field": "server"}).Error(err)
		}
	}
}

func runTicker(ctx context.Context, reconciler *trackersync.Reconciler, logger *logrus.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx := utils.SetCorrelationIdInContext(ctx, uuid.NewString())
			results, corrected, err := reconciler.ReconcileAll(sweepCtx)
			if err != nil {
				config.LogError(logger, "main.go", "runTicker", "reconcile sweep", nil, err)
				continue
			}
			logger.WithFields(logrus.Fields{
				"checked":   len(results),
				"corrected": corrected,
			}).Info("scheduled reconcile sweep finished")
		}
	}
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		logger.WithFields(logrus.Fields{
			"status":         c.Writer.Status(),
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"latency":        latency.String(),
			"correlation_id": cid,
		}).Info("request")
	}
}

func intFromEnv(key string, def int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}
