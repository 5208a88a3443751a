package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"revenue-balance/internal/notify"
)

func sampleMessage() notify.Message {
	return notify.Message{
		JobName:      "customscript_revenue_balance",
		Stage:        "map",
		ErrorCode:    "CALCULATION_FAILED",
		ErrorMessage: "Error during processing Sales Order ID : 1042",
	}
}

func TestMessage_Format(t *testing.T) {
	msg := sampleMessage()

	wantSubject := "Revenue balance job customscript_revenue_balance failed for stage: map"
	if got := msg.Subject(); got != wantSubject {
		t.Errorf("Expected subject %q, got %q", wantSubject, got)
	}
	wantBody := "An error occurred with the following information:\n" +
		"Error code: CALCULATION_FAILED\n" +
		"Error msg: Error during processing Sales Order ID : 1042"
	if got := msg.Body(); got != wantBody {
		t.Errorf("Expected body %q, got %q", wantBody, got)
	}
}

func TestWebhookNotifier_Posts(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected JSON content type, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := notify.NewWebhookNotifier(srv.URL).Notify(context.Background(), sampleMessage()); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	text, _ := got["text"].(map[string]any)
	content, _ := text["content"].(string)
	if !strings.Contains(content, "Error code: CALCULATION_FAILED") {
		t.Errorf("Expected content to carry the error code, got %q", content)
	}
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := notify.NewWebhookNotifier(srv.URL).Notify(context.Background(), sampleMessage()); err == nil {
		t.Error("Expected error for non-2xx response")
	}
	if err := notify.NewWebhookNotifier("").Notify(context.Background(), sampleMessage()); err == nil {
		t.Error("Expected error for empty url")
	}
}

type recordingNotifier struct {
	got []notify.Message
	err error
}

func (r *recordingNotifier) Notify(_ context.Context, msg notify.Message) error {
	r.got = append(r.got, msg)
	return r.err
}

func TestMulti_AttemptsAllAndJoinsErrors(t *testing.T) {
	failing := &recordingNotifier{err: errors.New("relay down")}
	ok := &recordingNotifier{}
	multi := notify.Multi{failing, nil, ok}

	err := multi.Notify(context.Background(), sampleMessage())
	if err == nil || !strings.Contains(err.Error(), "relay down") {
		t.Errorf("Expected joined relay error, got %v", err)
	}
	if len(failing.got) != 1 || len(ok.got) != 1 {
		t.Errorf("Expected every notifier to be attempted, got %d and %d", len(failing.got), len(ok.got))
	}
}

func TestNewEmailNotifier_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  notify.SMTPConfig
		to   []string
	}{
		{"missing host", notify.SMTPConfig{FromEmail: "jobs@example.com"}, []string{"ops@example.com"}},
		{"missing from", notify.SMTPConfig{Host: "smtp.example.com"}, []string{"ops@example.com"}},
		{"no recipients", notify.SMTPConfig{Host: "smtp.example.com", FromEmail: "jobs@example.com"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := notify.NewEmailNotifier(tt.cfg, tt.to...); err == nil {
				t.Error("Expected validation error")
			}
		})
	}

	if _, err := notify.NewEmailNotifier(notify.SMTPConfig{Host: "smtp.example.com", FromEmail: "jobs@example.com"}, "ops@example.com"); err != nil {
		t.Errorf("Expected valid config to construct, got %v", err)
	}
}
