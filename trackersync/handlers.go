package trackersync

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/reviews_backend/config"
	"github.com/mmdatafocus/reviews_backend/notify"
	"github.com/sirupsen/logrus"
)

// BuildReconciler wires the tracker client, adapter and notifier from env.
func BuildReconciler(logger *logrus.Logger) (*Reconciler, error) {
	apiKey := strings.TrimSpace(os.Getenv("TRACKER_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("TRACKER_API_KEY is not set")
	}

	client, err := NewClient(apiKey)
	if err != nil {
		return nil, err
	}
	adapter := NewAdapter(client)
	return NewReconciler(client, adapter, notify.FromEnv(logger), logger), nil
}

// BuildAdapter wires a standalone adapter for the request-path sync (the
// reconciler keeps its own).
func BuildAdapter() (*Adapter, error) {
	apiKey := strings.TrimSpace(os.Getenv("TRACKER_API_KEY"))
	if apiKey == "" {
		return nil, errors.New("TRACKER_API_KEY is not set")
	}
	client, err := NewClient(apiKey)
	if err != nil {
		return nil, err
	}
	return NewAdapter(client), nil
}

type reconcileResponse struct {
	CorrectedCount int                    `json:"correctedCount"`
	Results        []ReconciliationResult `json:"results"`
}

// ReconcileHandler runs a sweep on demand. Mounted behind the admin-only
// middleware.
func ReconcileHandler(reconciler *Reconciler) gin.HandlerFunc {
	return func(c *gin.Context) {
		results, corrected, err := reconciler.ReconcileAll(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, reconcileResponse{
			CorrectedCount: corrected,
			Results:        results,
		})
	}
}

type pubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// PubSubPushHandler is the scheduled trigger: Cloud Scheduler publishes a
// ReconcileMessage, Pub/Sub pushes it here. Malformed pushes are acked and
// dropped so they cannot loop; a failed sweep returns non-2xx so Pub/Sub
// retries it.
func PubSubPushHandler(reconciler *Reconciler) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(http.StatusNoContent)
			return
		}

		var envelope pubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			config.LogError(logger, "handlers.go", "PubSubPushHandler", "Unmarshal envelope", body, err)
			c.Status(http.StatusNoContent)
			return
		}

		var msg config.ReconcileMessage
		if err := json.Unmarshal(envelope.Message.Data, &msg); err != nil {
			config.LogError(logger, "handlers.go", "PubSubPushHandler", "Unmarshal reconcile message", envelope.Message.Data, err)
			c.Status(http.StatusNoContent)
			return
		}

		results, corrected, err := reconciler.ReconcileAll(c.Request.Context())
		if err != nil {
			config.LogError(logger, "handlers.go", "PubSubPushHandler", "ReconcileAll", msg, err)
			// Non-2xx tells Pub/Sub to retry.
			c.Status(http.StatusInternalServerError)
			return
		}

		logger.WithFields(logrus.Fields{
			"module":       "handlers.go",
			"requestedBy":  msg.RequestedBy,
			"reviews":      len(results),
			"corrected":    corrected,
			"subscription": envelope.Subscription,
		}).Info("scheduled reconcile sweep finished")
		c.Status(http.StatusNoContent)
	}
}
