package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"time"

	"gopkg.in/mail.v2"
)

const (
	webhookTimeout = 5 * time.Second
	emailTimeout   = 15 * time.Second
)

// WebhookSink POSTs alert events as JSON to a fixed list of URLs.
type WebhookSink struct {
	urls   []string
	client *http.Client
}

func NewWebhookSink(urls []string) *WebhookSink {
	return &WebhookSink{
		urls:   urls,
		client: &http.Client{Timeout: webhookTimeout},
	}
}

func (s *WebhookSink) Name() string { return "webhook" }

// Notify posts to every URL and returns the first failure after trying all of them.
func (s *WebhookSink) Notify(ctx context.Context, event AlertEvent) error {
	body, err := json.Marshal(map[string]interface{}{
		"type":  event.Kind(),
		"event": event,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	var firstErr error
	for _, u := range s.urls {
		if err := s.post(ctx, u, body); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *WebhookSink) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyDrain))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s returned %d", url, resp.StatusCode)
	}
	return nil
}

// SMTPConfig holds the mail server settings for the e-mail sink.
type SMTPConfig struct {
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
	TLS      bool     `mapstructure:"tls"`
}

// Enabled reports whether enough is configured to send mail.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != "" && len(c.To) > 0
}

// EmailSink mails alert events.
type EmailSink struct {
	config SMTPConfig
	send   func(*mail.Message) error
}

func NewEmailSink(config SMTPConfig) *EmailSink {
	s := &EmailSink{config: config}
	s.send = s.dialAndSend
	return s
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Notify(ctx context.Context, event AlertEvent) error {
	m := s.message(event)

	done := make(chan error, 1)
	go func() {
		done <- s.send(m)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(emailTimeout):
		return fmt.Errorf("timeout sending email after %s", emailTimeout)
	}
}

func (s *EmailSink) message(event AlertEvent) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", s.config.From)
	m.SetHeader("To", s.config.To...)
	m.SetHeader("Subject", event.Subject())

	color := "#c0392b"
	if event.NowUp {
		color = "#27ae60"
	}
	m.SetBody("text/plain", event.Describe())
	m.AddAlternative("text/html", fmt.Sprintf(
		`<html><body><h2 style="color: %s;">%s</h2><p>%s</p><hr><small>Sent by upwatch</small></body></html>`,
		color, html.EscapeString(event.Subject()), html.EscapeString(event.Describe()),
	))
	return m
}

func (s *EmailSink) dialAndSend(m *mail.Message) error {
	d := mail.NewDialer(s.config.Host, s.config.Port, s.config.Username, s.config.Password)
	d.TLSConfig = &tls.Config{ServerName: s.config.Host}
	d.Timeout = emailTimeout
	if s.config.TLS {
		d.SSL = true
	} else {
		d.SSL = false
		d.StartTLSPolicy = mail.OpportunisticStartTLS
	}
	return d.DialAndSend(m)
}
