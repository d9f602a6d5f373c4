// Package notify posts domain events to a webhook endpoint. Delivery is
// fire-and-forget: failures are logged, never propagated to the caller.
package notify

import (
	"time"

	"netweave/internal/logs"

	"github.com/go-resty/resty/v2"
)

// Event kinds sent to the webhook.
const (
	EventConfigApplied    = "config.applied"
	EventDeploymentStatus = "deployment.status"
	EventVersionPublished = "version.published"
	EventDesignRestored   = "design.restored"
)

type Event struct {
	Kind    string         `json:"kind"`
	Caller  string         `json:"caller,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	SentAt  time.Time      `json:"sentAt"`
}

type Dispatcher struct {
	client *resty.Client
	url    string
}

// New returns a dispatcher, or nil when no webhook is configured. A nil
// dispatcher is safe to call.
func New(webhookURL string) *Dispatcher {
	if webhookURL == "" {
		return nil
	}
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Content-Type", "application/json")
	return &Dispatcher{client: client, url: webhookURL}
}

// Publish sends the event in the background.
func (d *Dispatcher) Publish(kind, caller string, payload map[string]any) {
	if d == nil {
		return
	}
	ev := Event{Kind: kind, Caller: caller, Payload: payload, SentAt: time.Now().UTC()}
	go func() {
		resp, err := d.client.R().SetBody(ev).Post(d.url)
		if err != nil {
			logs.Logger.Warnf("notify %s: %v", kind, err)
			return
		}
		if resp.IsError() {
			logs.Logger.Warnf("notify %s: webhook returned %s", kind, resp.Status())
		}
	}()
}
