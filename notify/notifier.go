package notify

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/mmdatafocus/reviews_backend/config"
	"github.com/sirupsen/logrus"
)

// Notifier is the delivery collaborator boundary. Implementations send
// best-effort; callers must not treat a delivery failure as fatal.
type Notifier interface {
	Notify(ctx context.Context, recipients []string, subject string, body string) error
}

// PubSubNotifier hands messages to the notification-delivery service via a
// Pub/Sub topic. Actual e-mail formatting and sending live outside this
// backend.
type PubSubNotifier struct {
	topic string
}

type notificationPayload struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
}

func NewPubSubNotifier() *PubSubNotifier {
	topic := strings.TrimSpace(os.Getenv("NOTIFICATIONS_TOPIC"))
	if topic == "" {
		topic = "review-notifications"
	}
	return &PubSubNotifier{topic: topic}
}

// Topic reports the Pub/Sub topic this notifier publishes to, so a service
// can ensure the topic exists before the first delivery.
func (n *PubSubNotifier) Topic() string {
	return n.topic
}

func (n *PubSubNotifier) Notify(ctx context.Context, recipients []string, subject string, body string) error {
	if len(recipients) == 0 {
		return errors.New("at least one recipient is required")
	}
	return config.PublishJSON(ctx, n.topic, notificationPayload{
		Recipients: recipients,
		Subject:    subject,
		Body:       body,
	})
}

// LogNotifier writes notifications to the structured log. Used in local
// development and in tests when no Pub/Sub project is configured.
type LogNotifier struct {
	Logger *logrus.Logger
}

func (n *LogNotifier) Notify(ctx context.Context, recipients []string, subject string, body string) error {
	n.Logger.WithFields(logrus.Fields{
		"module":     "notifier.go",
		"recipients": recipients,
		"subject":    subject,
	}).Info(body)
	return nil
}

// FromEnv picks the Pub/Sub notifier when a project is configured, and the
// log notifier otherwise.
func FromEnv(logger *logrus.Logger) Notifier {
	if os.Getenv("PUBSUB_PROJECT_ID") != "" || os.Getenv("GOOGLE_CLOUD_PROJECT") != "" || os.Getenv("GCP_PROJECT") != "" {
		return NewPubSubNotifier()
	}
	return &LogNotifier{Logger: logger}
}
