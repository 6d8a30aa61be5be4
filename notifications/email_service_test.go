package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendEmail(t *testing.T) {
	var got brevoPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "key-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"messageId":"1"}`))
	}))
	defer srv.Close()

	svc := &BrevoService{APIKey: "key-123", SenderEmail: "noreply@school.test", SenderName: "School", Endpoint: srv.URL, Client: srv.Client()}
	if err := svc.SendEmail(context.Background(), "", "amina@school.test", "Reminder", "<p>hi</p>"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.Subject != "Reminder" || got.To[0]["name"] != "amina" {
		t.Fatalf("unexpected payload %+v", got)
	}

	svc.APIKey = "wrong"
	if err := svc.SendEmail(context.Background(), "Amina", "amina@school.test", "Reminder", ""); err == nil {
		t.Fatal("expected an error for a rejected request")
	}
	if err := svc.SendEmail(context.Background(), "Amina", "not-an-email", "Reminder", ""); err == nil {
		t.Fatal("expected an error for an invalid address")
	}
}

func TestNewEmailServiceNeedsConfig(t *testing.T) {
	t.Setenv("BREVO_API_KEY", "")
	t.Setenv("EMAIL_SENDER", "")
	if NewEmailService() != nil {
		t.Fatal("expected nil service without configuration")
	}
}
