package notify

import (
	"context"
	"errors"
	"testing"
)

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewClient(); err == nil {
		t.Error("expected error with no credentials")
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("token")); err == nil {
		t.Error("expected error with no from number")
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("token"), WithFromNumber("+15550001111")); err != nil {
		t.Errorf("expected client with full credentials, got %v", err)
	}
}

func TestNewClientEnvFallback(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "AC456")
	t.Setenv("TWILIO_AUTH_TOKEN", "envtoken")
	t.Setenv("TWILIO_FROM_NUMBER", "+15550002222")

	c, err := NewClient()
	if err != nil {
		t.Fatalf("env-configured client failed: %v", err)
	}
	if c.fromNumber != "+15550002222" {
		t.Errorf("expected env from number, got %s", c.fromNumber)
	}
}

func TestMockNotifierRecords(t *testing.T) {
	m := NewMockNotifier()
	if err := m.NotifyCrisisContact(context.Background(), "+15550003333", "user-1"); err != nil {
		t.Fatalf("mock notify failed: %v", err)
	}
	if len(m.Sent) != 1 || m.Sent[0].To != "+15550003333" || m.Sent[0].UserID != "user-1" {
		t.Errorf("unexpected recorded notifications: %+v", m.Sent)
	}

	m.Err = errors.New("carrier rejected")
	if err := m.NotifyCrisisContact(context.Background(), "+15550003333", "user-1"); err == nil {
		t.Error("expected primed error")
	}
}
