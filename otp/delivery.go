package otp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/smtp"
	"time"

	"github.com/johnmichaeldizon211/APATECH1/models"
)

// Channel delivers a recovery code to one kind of contact.
type Channel interface {
	Send(ctx context.Context, contact, code string) error
	Provider() string
}

// SMTPChannel sends recovery codes by plain-text email.
type SMTPChannel struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (c *SMTPChannel) Provider() string { return "smtp" }

func (c *SMTPChannel) Send(_ context.Context, contact, code string) error {
	addr := fmt.Sprintf("%s:%d", c.Host, c.Port)
	var auth smtp.Auth
	if c.Username != "" {
		auth = smtp.PlainAuth("", c.Username, c.Password, c.Host)
	}

	message := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: Your password reset code\r\n\r\nYour verification code is %s. It expires in %d minutes.\r\n",
		c.From, contact, code, int(TTL.Minutes()),
	)
	if err := smtp.SendMail(addr, auth, c.From, []string{contact}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send recovery email: %w", err)
	}
	return nil
}

// SMSWebhookChannel posts recovery codes to an external SMS gateway.
type SMSWebhookChannel struct {
	URL         string
	BearerToken string
	httpClient  *http.Client
}

func NewSMSWebhookChannel(url, bearerToken string) *SMSWebhookChannel {
	return &SMSWebhookChannel{
		URL:         url,
		BearerToken: bearerToken,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *SMSWebhookChannel) Provider() string { return "sms-webhook" }

type smsPayload struct {
	To      string `json:"to"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *SMSWebhookChannel) Send(ctx context.Context, contact, code string) error {
	body, err := json.Marshal(smsPayload{
		To:      contact,
		Code:    code,
		Message: fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(TTL.Minutes())),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute sms request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sms gateway answered status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Sender picks the channel for a method and handles demo mode. In demo mode
// nothing leaves the process and the code is surfaced to the caller instead.
type Sender struct {
	DemoMode bool
	Email    Channel
	SMS      Channel
}

// SendResult reports how the code went out. DemoCode is set only in demo
// mode; FailureReason is set when a real channel was configured but failed
// and delivery fell back to demo behavior.
type SendResult struct {
	Delivery      models.Delivery
	DemoCode      string
	FailureReason string
}

func (s *Sender) channelFor(method string) Channel {
	switch method {
	case MethodEmail:
		return s.Email
	case MethodMobile:
		return s.SMS
	default:
		return nil
	}
}

// Send delivers the session's code over the requested method. A missing
// channel or a delivery failure degrades to demo behavior rather than
// blocking recovery.
func (s *Sender) Send(ctx context.Context, session *Session) SendResult {
	delivery := models.Delivery{Method: session.Method, Mode: "live"}

	channel := s.channelFor(session.Method)
	if s.DemoMode || channel == nil {
		delivery.Mode = "demo"
		return SendResult{Delivery: delivery, DemoCode: session.Code}
	}

	delivery.Provider = channel.Provider()
	if err := channel.Send(ctx, session.Contact, session.Code); err != nil {
		slog.Warn("Recovery code delivery failed, falling back to demo mode",
			"method", session.Method, "provider", channel.Provider(), "error", err)
		delivery.Mode = "demo"
		return SendResult{Delivery: delivery, DemoCode: session.Code, FailureReason: err.Error()}
	}
	return SendResult{Delivery: delivery}
}
