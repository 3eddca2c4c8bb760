package brokerauth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// NotificationTypePendingUser tags outbound pending-user webhook payloads.
const NotificationTypePendingUser = "NEW_PENDING_USER"

// PendingUserNotification is the JSON payload posted to operator webhooks
// when a provisioned or re-evaluated user remains PENDING.
type PendingUserNotification struct {
	Type      string    `json:"type"`
	PhoneE164 string    `json:"phoneE164"`
	UID       string    `json:"uid"`
	CreatedAt time.Time `json:"createdAt"`
}

// WebhookNotifier posts pending-user notifications to a set of operator
// webhook URLs. Delivery is best-effort per URL; one failing endpoint does
// not stop the others, and having no endpoints configured only logs.
type WebhookNotifier struct {
	urls   []string
	client *http.Client
	logger Logger
	now    func() time.Time
}

var _ PendingNotifier = (*WebhookNotifier)(nil)

// WebhookNotifierOption customizes notifier construction.
type WebhookNotifierOption func(*WebhookNotifier)

// WithNotifierClient overrides the HTTP client used for webhook posts.
func WithNotifierClient(client *http.Client) WebhookNotifierOption {
	return func(n *WebhookNotifier) {
		if client != nil {
			n.client = client
		}
	}
}

// WithNotifierLogger overrides the notifier's logger.
func WithNotifierLogger(l Logger) WebhookNotifierOption {
	return func(n *WebhookNotifier) {
		n.logger = resolveLogger(l)
	}
}

// WithNotifierClock injects a custom clock (useful for tests).
func WithNotifierClock(now func() time.Time) WebhookNotifierOption {
	return func(n *WebhookNotifier) {
		if now != nil {
			n.now = now
		}
	}
}

// NewWebhookNotifier creates a notifier for the given webhook URLs.
func NewWebhookNotifier(urls []string, opts ...WebhookNotifierOption) *WebhookNotifier {
	n := &WebhookNotifier{
		urls:   urls,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: defLogger{},
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}

	return n
}

// NotifyPendingUser posts the notification to every configured URL. The
// returned error reports only that every delivery failed; callers are free
// to ignore it.
func (n *WebhookNotifier) NotifyPendingUser(ctx context.Context, user *User) error {
	payload := PendingUserNotification{
		Type:      NotificationTypePendingUser,
		PhoneE164: user.PhoneE164,
		UID:       user.UID,
		CreatedAt: n.now().UTC(),
	}

	if len(n.urls) == 0 {
		n.logger.Info("notify_pending_user_log_only",
			"phone_e164", payload.PhoneE164,
			"uid", payload.UID,
		)
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	var lastErr error
	delivered := 0

	for _, url := range n.urls {
		if err := n.post(ctx, url, body); err != nil {
			n.logger.Error("notify_pending_user_error", "url", url, "error", err)
			lastErr = err
			continue
		}
		delivered++
	}

	if delivered == 0 && lastErr != nil {
		return lastErr
	}

	return nil
}

func (n *WebhookNotifier) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	n.logger.Info("notify_pending_user_sent", "url", url, "status", res.StatusCode)
	return nil
}
