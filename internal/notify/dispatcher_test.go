package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hireflow/hireflow/internal/domain"
)

type stubSender struct {
	channel string
	result  SendResult
	got     *domain.NotificationRequest
}

func (s *stubSender) Channel() string { return s.channel }
func (s *stubSender) Send(ctx context.Context, n *domain.NotificationRequest) SendResult {
	s.got = n
	return s.result
}

func TestDispatcher_RoutesByChannel(t *testing.T) {
	email := &stubSender{channel: domain.ChannelEmail, result: SendResult{Success: true, ExternalID: "e-1"}}
	sms := &stubSender{channel: domain.ChannelSMS, result: SendResult{Success: true, ExternalID: "s-1"}}
	d := NewDispatcher(email, sms)

	n := &domain.NotificationRequest{Channel: domain.ChannelSMS, Address: "+15551234"}
	result := d.Dispatch(context.Background(), n)
	if !result.Success || result.ExternalID != "s-1" {
		t.Fatalf("expected sms result, got %+v", result)
	}
	if sms.got != n {
		t.Error("sms sender did not receive the notification")
	}
	if email.got != nil {
		t.Error("email sender should not have been called")
	}
}

func TestDispatcher_UnknownChannelFails(t *testing.T) {
	d := NewDispatcher()
	result := d.Dispatch(context.Background(), &domain.NotificationRequest{Channel: "pigeon"})
	if result.Success || result.Err == nil {
		t.Fatalf("expected failure for unknown channel, got %+v", result)
	}
}

func TestWebhookSender_SignsPayload(t *testing.T) {
	secret := "test-secret"
	var gotBody []byte
	var gotSignature, gotDelivery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSignature = r.Header.Get("X-Hireflow-Signature")
		gotDelivery = r.Header.Get("X-Hireflow-Delivery")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := &WebhookSender{Secret: secret}
	n := &domain.NotificationRequest{
		BusinessKey: "bk-1",
		Channel:     domain.ChannelWebhook,
		Address:     server.URL,
		Subject:     "subject",
		Body:        "body",
	}
	result := s.Send(context.Background(), n)
	if !result.Success {
		t.Fatalf("send failed: %v", result.Err)
	}
	if gotDelivery != "bk-1" {
		t.Errorf("expected delivery header bk-1, got %q", gotDelivery)
	}
	if !VerifySignature(secret, gotBody, gotSignature) {
		t.Error("signature did not verify")
	}
	var payload map[string]any
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if payload["body"] != "body" {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestWebhookSender_NonSuccessStatusIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	s := &WebhookSender{Secret: "x"}
	result := s.Send(context.Background(), &domain.NotificationRequest{
		BusinessKey: "bk-2", Address: server.URL, Body: "body",
	})
	if result.Success || result.Err == nil {
		t.Fatalf("expected failure on 502, got %+v", result)
	}
}

func TestEmailSender_SimulatesWithoutServer(t *testing.T) {
	s := &EmailSender{}
	result := s.Send(context.Background(), &domain.NotificationRequest{
		Address: "a@example.com", Subject: "s", Body: "b",
	})
	if !result.Success || result.ExternalID == "" {
		t.Fatalf("expected simulated success, got %+v", result)
	}
}

func TestHTTPProviderSender_StatusClassCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"prov-123"}`))
	}))
	defer server.Close()

	s := &HTTPProviderSender{ChannelName: domain.ChannelSMS, URL: server.URL, Provider: "sms"}
	result := s.Send(context.Background(), &domain.NotificationRequest{Address: "+15551234", Body: "hi"})
	if !result.Success {
		t.Fatalf("send failed: %v", result.Err)
	}
	if result.ExternalID != "prov-123" {
		t.Errorf("expected provider id, got %q", result.ExternalID)
	}
}
