// Package alert posts panic alerts to a Discord-compatible webhook.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kilianp07/cad/auth"
	corealert "github.com/kilianp07/cad/core/alert"
)

const defaultTimeout = 5 * time.Second

// Config selects the webhook endpoint.
type Config struct {
	URL      string        `json:"url"`
	Username string        `json:"username"`
	Timeout  time.Duration `json:"timeout"`
	// Locale is the BCP 47 language used for alert text.
	Locale string `json:"locale"`
	// OAuth authenticates requests with client credentials when set.
	OAuth auth.Conf `json:"oauth"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.Username == "" {
		c.Username = "Dispatch"
	}
	if c.Locale == "" {
		c.Locale = "en"
	}
}

// Validate checks the URL scheme when a URL is set.
func (c Config) Validate() error {
	if c.URL == "" {
		return nil
	}
	if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("alert.url must be http(s): %q", c.URL)
	}
	if c.OAuth.Enabled() && c.OAuth.AuthURL == "" {
		return fmt.Errorf("alert.oauth.auth_url is required with a client_id")
	}
	return nil
}

// Webhook implements core/alert.Alerter.
type Webhook struct {
	cfg    Config
	client *http.Client
	creds  *auth.ClientCred
}

var _ corealert.Alerter = (*Webhook)(nil)

// New returns a Webhook, or a Nop alerter when no URL is configured.
func New(cfg Config) corealert.Alerter {
	cfg.SetDefaults()
	if cfg.URL == "" {
		return corealert.Nop{}
	}
	w := &Webhook{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
	if cfg.OAuth.Enabled() {
		w.creds = auth.NewClientCred(cfg.OAuth)
	}
	return w
}

type embed struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Color       int               `json:"color"`
	Fields      []corealert.Field `json:"fields,omitempty"`
	Timestamp   string            `json:"timestamp"`
	Footer      *footer           `json:"footer,omitempty"`
}

type footer struct {
	Text string `json:"text"`
}

type message struct {
	Username string  `json:"username,omitempty"`
	Embeds   []embed `json:"embeds"`
}

// SendAlert posts p as a single embed.
func (w *Webhook) SendAlert(ctx context.Context, kind corealert.Kind, p corealert.Payload) error {
	body := message{
		Username: w.cfg.Username,
		Embeds: []embed{{
			Title:       p.Title,
			Description: p.Description,
			Color:       p.Color,
			Fields:      p.Fields,
			Timestamp:   p.Timestamp.UTC().Format(time.RFC3339),
			Footer:      &footer{Text: string(kind)},
		}},
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if w.creds != nil {
		if err := w.creds.SetAuthHeader(req); err != nil {
			return fmt.Errorf("authorize webhook: %w", err)
		}
	}
	res, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("webhook status %d: %s", res.StatusCode, strings.TrimSpace(string(b)))
	}
	return nil
}
