package notifier

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gojek/heimdall/v7"
	"github.com/gojek/heimdall/v7/httpclient"
	"github.com/sirupsen/logrus"

	"github.com/agentick/dashboard/pkg/logger"
	"github.com/agentick/dashboard/pkg/types"
)

// changeEvent is the webhook payload for one client mutation.
type changeEvent struct {
	Kind   string        `json:"kind"`
	ID     string        `json:"id"`
	Client *types.Client `json:"client,omitempty"`
	SentAt time.Time     `json:"sentAt"`
}

// WebhookNotifier POSTs client change events to a configured URL. Delivery
// is fire-and-forget with bounded retries; a dead endpoint never fails or
// slows the write that triggered it.
type WebhookNotifier struct {
	url    string
	client *httpclient.Client
}

// New builds a notifier with a retrying HTTP client.
func New(url string) *WebhookNotifier {
	client := httpclient.NewClient(
		httpclient.WithHTTPTimeout(5*time.Second),
		httpclient.WithRetrier(heimdall.NewRetrier(
			heimdall.NewConstantBackoff(100*time.Millisecond, 50*time.Millisecond),
		)),
		httpclient.WithRetryCount(3),
	)
	return &WebhookNotifier{url: url, client: client}
}

// Notify delivers the event in the background.
func (n *WebhookNotifier) Notify(ctx context.Context, kind, id string, client *types.Client) {
	log := logger.Logger(ctx).WithFields(logrus.Fields{
		"kind": kind,
		"id":   id,
	})

	go func() {
		payload, err := json.Marshal(changeEvent{
			Kind:   kind,
			ID:     id,
			Client: client,
			SentAt: time.Now().UTC(),
		})
		if err != nil {
			log.WithError(err).Error("failed to marshal webhook payload")
			return
		}

		req, err := http.NewRequest(http.MethodPost, n.url, bytes.NewReader(payload))
		if err != nil {
			log.WithError(err).Error("failed to build webhook request")
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			log.WithError(err).Warn("webhook delivery failed")
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			log.WithField("status", resp.StatusCode).Warn("webhook endpoint rejected event")
		}
	}()
}
