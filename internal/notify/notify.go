// Package notify wraps the Twilio API for crisis escalation SMS in MoodPipe.
//
// When the pipeline activates the crisis protocol and a user has an emergency
// contact on file, a short notification is sent to that contact. Delivery is
// best-effort: a failed or unconfigured notifier is logged and never blocks
// or fails the safety response.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Notifier sends crisis escalation notifications.
type Notifier interface {
	NotifyCrisisContact(ctx context.Context, to, userID string) error
}

// Opts holds configuration options for the Twilio SMS client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Option defines a configuration option for the Twilio SMS client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the sending phone number.
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.FromNumber = from }
}

// crisisBody is deliberately vague about specifics; the contact learns that a
// check-in is wanted, not what the user wrote.
const crisisBody = "Someone who listed you as an emergency contact may need support right now. Please check in with them when you can. If you believe they are in immediate danger, call 911."

// Client sends crisis SMS through the Twilio REST API.
type Client struct {
	client     *twilio.RestClient
	fromNumber string
}

// NewClient creates a Twilio-backed notifier. Credentials fall back to the
// TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER environment
// variables.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	slog.Debug("Notify client config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromNumber_set", cfg.FromNumber != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromNumber == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(
		twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		},
	)

	return &Client{
		client:     client,
		fromNumber: cfg.FromNumber,
	}, nil
}

// NotifyCrisisContact sends the crisis check-in SMS.
func (c *Client) NotifyCrisisContact(ctx context.Context, to, userID string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(c.fromNumber)
	params.SetBody(crisisBody)

	_, err := c.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Notify.NotifyCrisisContact failed", "user_id", userID, "error", err)
		return fmt.Errorf("failed to send crisis notification: %w", err)
	}

	slog.Info("Notify.NotifyCrisisContact: crisis notification sent", "user_id", userID)
	return nil
}

// MockNotifier records crisis notifications for tests.
type MockNotifier struct {
	Sent []SentNotification
	Err  error
}

// SentNotification captures one NotifyCrisisContact call.
type SentNotification struct {
	To     string
	UserID string
}

// NewMockNotifier creates a MockNotifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{Sent: []SentNotification{}}
}

func (m *MockNotifier) NotifyCrisisContact(ctx context.Context, to, userID string) error {
	m.Sent = append(m.Sent, SentNotification{To: to, UserID: userID})
	return m.Err
}
