// Package email sends transactional storefront email.
package email

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	ProviderResend   = "resend"
	ProviderPostmark = "postmark"
	ProviderMailgun  = "mailgun"
	ProviderNone     = "none"
)

type Provider interface {
	SendEmail(ctx context.Context, email *Email) error
}

type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type Config struct {
	Provider string
	APIKey   string
	From     string
	Domain   string // Mailgun sending domain
	// HTTPClient is used by the HTTP based providers. Nil means a client
	// with a 30 second timeout.
	HTTPClient *http.Client
}

// NewProvider returns the configured provider. It returns a nil Provider
// when email is disabled.
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(config.Provider)) {
	case "", ProviderNone:
		return nil, nil
	case ProviderResend:
		return NewResendProvider(config.APIKey, config.From), nil
	case ProviderPostmark:
		return NewPostmarkProvider(config.APIKey, config.From, config.HTTPClient), nil
	case ProviderMailgun:
		if strings.TrimSpace(config.Domain) == "" {
			return nil, fmt.Errorf("mailgun requires a sending domain")
		}
		return NewMailgunProvider(config.APIKey, config.Domain, config.From, config.HTTPClient), nil
	default:
		return nil, fmt.Errorf("EMAIL_PROVIDER must be one of 'resend', 'postmark', 'mailgun', or 'none'")
	}
}

// doRequest sends req and returns the status code and the fully read body.
func doRequest(client *http.Client, req *http.Request, name string) (int, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to send email: %w", err)
	}
	body, readErr := io.ReadAll(resp.Body)
	closeErr := resp.Body.Close()
	if readErr != nil {
		return 0, nil, fmt.Errorf("failed to read %s response: %w", name, readErr)
	}
	if closeErr != nil {
		return 0, nil, fmt.Errorf("failed to close %s response body: %w", name, closeErr)
	}
	return resp.StatusCode, body, nil
}

func defaultHTTPClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: defaultTimeout}
}
