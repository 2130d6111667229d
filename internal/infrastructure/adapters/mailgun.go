package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/cipherroom/gateway/pkg/errors"
)

// MailgunAdapter sends transactional email through Mailgun, grounded
// on connectors/mailgun_connector.py. Unlike Gmail it needs no
// per-user OAuth state: one API key/domain pair serves every user, so
// it carries no credentialStore.
type MailgunAdapter struct {
	apiKey    string
	domain    string
	baseURL   string
	sandbox   bool
	client    *http.Client
	fromLabel string
	logger    *zap.Logger
}

type MailgunConfig struct {
	APIKey    string
	Domain    string
	Sandbox   bool
	FromLabel string // defaults to "Gateway <mailgun@DOMAIN>", matching the source's "KwikChat <...>" default
}

func NewMailgunAdapter(cfg MailgunConfig, logger *zap.Logger) *MailgunAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &MailgunAdapter{
		apiKey:    cfg.APIKey,
		domain:    cfg.Domain,
		sandbox:   cfg.Sandbox,
		fromLabel: cfg.FromLabel,
		client:    newHTTPClient(20 * time.Second),
		logger:    logger.With(zap.String("adapter", "mailgun")),
	}
	if a.domain != "" {
		a.baseURL = "https://api.mailgun.net/v3/" + a.domain
	}
	return a
}

// WithBaseURL overrides the Mailgun API base (tests point this at an
// httptest server).
func (a *MailgunAdapter) WithBaseURL(baseURL string) *MailgunAdapter {
	a.baseURL = baseURL
	return a
}

func (a *MailgunAdapter) Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	to := paramString(params, "to")
	subject := paramString(params, "subject")
	text := paramString(params, "text")
	html := paramString(params, "html")
	from := paramString(params, "from")

	if to == "" {
		return nil, apperrors.NewInvalidInputError("recipient 'to' is required for send_email")
	}
	if subject == "" {
		return nil, apperrors.NewInvalidInputError("subject is required for send_email")
	}
	if text == "" && html == "" {
		return nil, apperrors.NewInvalidInputError("email text or html content is required for send_email")
	}

	if a.apiKey == "" || a.domain == "" {
		a.logger.Warn("missing Mailgun credentials, mocking send")
		return map[string]interface{}{
			"message": fmt.Sprintf("Simulated email to %s: %s", to, subject),
			"mock":    true,
		}, nil
	}

	if from == "" {
		from = a.fromLabel
		if from == "" {
			from = "Gateway <mailgun@" + a.domain + ">"
		}
	}

	form := url.Values{}
	form.Set("from", from)
	form.Set("to", to)
	form.Set("subject", subject)
	form.Set("text", text)
	if html != "" {
		form.Set("html", html)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth("api", a.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, apperrors.NewInternalErrorWithCause("mailgun request failed", fmt.Errorf("%s", apperrors.Redact(err.Error())))
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		a.logger.Error("Mailgun error", zap.Int("status", resp.StatusCode), zap.String("body", apperrors.Redact(string(body))))
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to send email: %d", resp.StatusCode))
	}

	var parsed struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(body, &parsed)
	return map[string]interface{}{
		"id":      parsed.ID,
		"message": "Email sent successfully",
		"sandbox": a.sandbox,
	}, nil
}
