// Package notify delegates member-facing messages to an external channel.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Notifier delivers a message to every member of a house. Delivery is
// best-effort; callers must not fail business operations on notify errors.
type Notifier interface {
	NotifyHouse(ctx context.Context, houseID snowflake.ID, message string) error
}

type NoOpNotifier struct{}

func (NoOpNotifier) NotifyHouse(ctx context.Context, houseID snowflake.ID, message string) error {
	return nil
}

// WebhookNotifier posts house messages to a configured webhook, which the
// push-notification collaborator fans out to member devices.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url: url,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

type webhookPayload struct {
	HouseID string `json:"house_id"`
	Message string `json:"message"`
}

func (n *WebhookNotifier) NotifyHouse(ctx context.Context, houseID snowflake.ID, message string) error {
	body, err := json.Marshal(webhookPayload{
		HouseID: houseID.String(),
		Message: message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("notify webhook returned %d", resp.StatusCode)
	}
	return nil
}
