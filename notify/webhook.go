package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/linki/instrumented_http"

	"github.com/dnsentinel/dnsentinel/dnserr"
)

// WebhookNotifier posts a Notification as a JSON payload to a fixed
// URL. Embed rendering and retry policy belong to the receiving chat
// module; this is the opaque transport seam.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier builds a WebhookNotifier posting to url, wrapping
// the HTTP client the same way the resolver does so delivery
// latency/error rates surface as metrics.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	base := &http.Client{Timeout: timeout}
	client := instrumented_http.NewClient(base, &instrumented_http.CallbackOptions{
		PathProcessor: func(path string) string { return "notify" },
	})
	return &WebhookNotifier{url: url, client: client}
}

type webhookPayload struct {
	Title    string  `json:"title"`
	Color    string  `json:"color"`
	Fields   []Field `json:"fields"`
	Actions  []string `json:"actions"`
}

// Emit posts n to the configured webhook URL.
func (w *WebhookNotifier) Emit(n Notification) error {
	payload := webhookPayload{
		Title:   n.Title,
		Color:   string(n.SeverityColor),
		Fields:  n.Fields,
		Actions: n.Actions,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return dnserr.New(dnserr.Integrity, "notify.Emit marshal", err)
	}

	req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return dnserr.New(dnserr.Transport, "notify.Emit request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return dnserr.New(dnserr.Transport, "notify.Emit", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return dnserr.New(dnserr.Transport, "notify.Emit", fmt.Errorf("webhook returned status %d", resp.StatusCode))
	}
	return nil
}
