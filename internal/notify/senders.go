package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hireflow/hireflow/internal/domain"
)

const sendTimeout = 30 * time.Second

// EmailSender delivers over SMTP. With no server configured it runs in
// simulated mode, minting a local receipt id, which is how dev and test
// environments operate.
type EmailSender struct {
	Addr string // host:port, empty means simulate
	From string
}

func (s *EmailSender) Channel() string { return domain.ChannelEmail }

func (s *EmailSender) Send(ctx context.Context, n *domain.NotificationRequest) SendResult {
	if s.Addr == "" {
		return SendResult{Success: true, ExternalID: "sim-" + uuid.NewString(), Provider: "smtp-simulated"}
	}
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.From)
	fmt.Fprintf(&msg, "To: %s\r\n", n.Address)
	fmt.Fprintf(&msg, "Subject: %s\r\n", n.Subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(n.Body)

	if err := smtp.SendMail(s.Addr, nil, s.From, []string{n.Address}, []byte(msg.String())); err != nil {
		return SendResult{Provider: "smtp", Err: fmt.Errorf("smtp send: %w", err)}
	}
	return SendResult{Success: true, ExternalID: uuid.NewString(), Provider: "smtp"}
}

// HTTPProviderSender posts a notification as JSON to an external provider
// endpoint. SMS and push both use this shape; only the endpoint and provider
// name differ. An empty URL simulates success.
type HTTPProviderSender struct {
	ChannelName string
	URL         string
	Provider    string
	Client      *http.Client
}

func (s *HTTPProviderSender) Channel() string { return s.ChannelName }

func (s *HTTPProviderSender) Send(ctx context.Context, n *domain.NotificationRequest) SendResult {
	if s.URL == "" {
		return SendResult{Success: true, ExternalID: "sim-" + uuid.NewString(), Provider: s.Provider + "-simulated"}
	}
	payload := map[string]string{
		"to":      n.Address,
		"subject": n.Subject,
		"body":    n.Body,
	}
	status, respBody, err := postJSON(ctx, s.client(), s.URL, payload, nil)
	if err != nil {
		return SendResult{Provider: s.Provider, Err: err}
	}
	if status < 200 || status >= 300 {
		return SendResult{Provider: s.Provider, Err: fmt.Errorf("%s provider returned status %d", s.Provider, status)}
	}
	return SendResult{Success: true, ExternalID: externalIDFrom(respBody), Provider: s.Provider}
}

func (s *HTTPProviderSender) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

// ChatSender posts a simple text payload to a chat webhook, the incoming
// webhook shape most chat products accept.
type ChatSender struct {
	URL    string
	Client *http.Client
}

func (s *ChatSender) Channel() string { return domain.ChannelChat }

func (s *ChatSender) Send(ctx context.Context, n *domain.NotificationRequest) SendResult {
	url := n.Address
	if url == "" {
		url = s.URL
	}
	if url == "" {
		return SendResult{Success: true, ExternalID: "sim-" + uuid.NewString(), Provider: "chat-simulated"}
	}
	text := n.Body
	if n.Subject != "" {
		text = "*" + n.Subject + "*\n" + n.Body
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	status, _, err := postJSON(ctx, client, url, map[string]string{"text": text}, nil)
	if err != nil {
		return SendResult{Provider: "chat", Err: err}
	}
	if status < 200 || status >= 300 {
		return SendResult{Provider: "chat", Err: fmt.Errorf("chat webhook returned status %d", status)}
	}
	return SendResult{Success: true, ExternalID: uuid.NewString(), Provider: "chat"}
}

// WebhookSender posts the full notification to the recipient-supplied URL,
// signed with HMAC-SHA256 so the receiver can verify origin.
type WebhookSender struct {
	Secret string
	Client *http.Client
}

func (s *WebhookSender) Channel() string { return domain.ChannelWebhook }

func (s *WebhookSender) Send(ctx context.Context, n *domain.NotificationRequest) SendResult {
	payload := map[string]any{
		"notification_id": n.BusinessKey,
		"category":        n.Category,
		"subject":         n.Subject,
		"body":            n.Body,
		"context":         n.Context,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return SendResult{Provider: "webhook", Err: fmt.Errorf("marshal payload: %w", err)}
	}
	headers := map[string]string{
		"X-Hireflow-Delivery":  n.BusinessKey,
		"X-Hireflow-Signature": ComputeSignature(s.Secret, body),
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	status, _, err := postRaw(ctx, client, n.Address, body, headers)
	if err != nil {
		return SendResult{Provider: "webhook", Err: err}
	}
	if status < 200 || status >= 300 {
		return SendResult{Provider: "webhook", Err: fmt.Errorf("webhook returned status %d", status)}
	}
	return SendResult{Success: true, ExternalID: n.BusinessKey, Provider: "webhook"}
}

// ComputeSignature returns the hex HMAC-SHA256 of body under secret.
func ComputeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature lets webhook receivers check an incoming delivery.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected := ComputeSignature(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any, headers map[string]string) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal payload: %w", err)
	}
	return postRaw(ctx, client, url, body, headers)
}

func postRaw(ctx context.Context, client *http.Client, url string, body []byte, headers map[string]string) (int, []byte, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctxTimeout, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	return resp.StatusCode, buf.Bytes(), nil
}

func externalIDFrom(respBody []byte) string {
	var parsed struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &parsed); err == nil && parsed.ID != "" {
		return parsed.ID
	}
	return uuid.NewString()
}
