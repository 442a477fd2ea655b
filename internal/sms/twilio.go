package sms

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// TwilioConfig carries the account credentials and sender number. Any empty
// field disables sending (Send reports skipped).
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Twilio sends messages through the Twilio Messages REST endpoint.
type Twilio struct {
	cfg    TwilioConfig
	client *http.Client
	base   string
}

// NewTwilio constructs a Twilio transport. httpClient may be nil, in which
// case a client with a 10s timeout is used.
func NewTwilio(cfg TwilioConfig, httpClient *http.Client) *Twilio {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Twilio{cfg: cfg, client: httpClient, base: twilioAPIBase}
}

// Configured reports whether all credentials are present.
func (t *Twilio) Configured() bool {
	return t.cfg.AccountSID != "" && t.cfg.AuthToken != "" && t.cfg.FromNumber != ""
}

// Send implements Transport. Provider errors are reported in the Result, not
// as Go errors.
func (t *Twilio) Send(ctx context.Context, to, body string) Result {
	if !t.Configured() {
		return Result{Provider: "twilio", Status: StatusSkipped, Err: "SMS provider not configured"}
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", t.cfg.FromNumber)
	form.Set("Body", body)

	endpoint := t.base + "/Accounts/" + t.cfg.AccountSID + "/Messages.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{Provider: "twilio", Status: StatusFailed, Err: err.Error()}
	}
	req.SetBasicAuth(t.cfg.AccountSID, t.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return Result{Provider: "twilio", Status: StatusFailed, Err: err.Error()}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = "twilio error: " + resp.Status
		}
		return Result{Provider: "twilio", Status: StatusFailed, Err: msg}
	}

	var payload struct {
		SID string `json:"sid"`
	}
	_ = json.Unmarshal(raw, &payload)
	return Result{Provider: "twilio", Status: StatusSent, MessageID: payload.SID}
}
