package adapters

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/cipherroom/gateway/pkg/errors"
)

// WhatsAppAdapter sends WhatsApp messages through Twilio, grounded on
// connectors/whatsapp_connector.py. "send_invoice" is kept as the
// source's thin wrapper around send_message rather than its own
// endpoint, since Twilio has no native invoice concept.
type WhatsAppAdapter struct {
	accountSID string
	authToken  string
	fromNumber string
	client     *http.Client
	baseURL    string // overridden by tests; defaults to the real Twilio API
	logger     *zap.Logger
}

type WhatsAppConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string // e.g. "whatsapp:+15550001111"
}

func NewWhatsAppAdapter(cfg WhatsAppConfig, logger *zap.Logger) *WhatsAppAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WhatsAppAdapter{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		fromNumber: cfg.FromNumber,
		client:     newHTTPClient(20 * time.Second),
		baseURL:    "https://api.twilio.com/2010-04-01",
		logger:     logger.With(zap.String("adapter", "whatsapp")),
	}
}

// WithBaseURL overrides the Twilio API base (tests point this at an
// httptest server).
func (a *WhatsAppAdapter) WithBaseURL(baseURL string) *WhatsAppAdapter {
	a.baseURL = baseURL
	return a
}

// Adapter returns a dispatch.Adapter bound to one of this connector's
// actions (send_message, send_invoice, get_templates). The dispatcher
// only ever calls Execute(ctx, params) with no action hint, so each
// action the registry routes to is its own bound Adapter rather than
// one Execute method branching on a params["action"] key that a
// workflow step template has no obligation to set.
func (a *WhatsAppAdapter) Adapter(action string) *whatsappBoundAdapter {
	return &whatsappBoundAdapter{wa: a, action: action}
}

type whatsappBoundAdapter struct {
	wa     *WhatsAppAdapter
	action string
}

func (b *whatsappBoundAdapter) Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	switch b.action {
	case "send_message":
		return b.wa.sendMessage(ctx, paramString(params, "phone_number"), paramString(params, "message"), paramString(params, "media_url"))
	case "send_invoice":
		body := fmt.Sprintf("Hello, here is your invoice: %s", paramString(params, "payment_link"))
		return b.wa.sendMessage(ctx, paramString(params, "phone_number"), body, "")
	case "get_templates":
		return map[string]interface{}{"templates": []string{"hello_world", "payment_reminder", "shipping_update"}}, nil
	default:
		return nil, apperrors.NewInvalidInputError("unknown WhatsApp action: " + b.action)
	}
}

func (a *WhatsAppAdapter) sendMessage(ctx context.Context, to, body, mediaURL string) (map[string]interface{}, error) {
	if to == "" {
		return nil, apperrors.NewInvalidInputError("phone_number is required")
	}
	if a.accountSID == "" {
		a.logger.Warn("WhatsApp credentials not configured, mocking send", zap.String("to", to))
		return map[string]interface{}{"status": "sent", "mock": true}, nil
	}

	form := url.Values{}
	form.Set("From", a.fromNumber)
	form.Set("To", "whatsapp:"+strings.TrimPrefix(to, "whatsapp:"))
	form.Set("Body", body)
	if mediaURL != "" {
		form.Set("MediaUrl", mediaURL)
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", a.baseURL, a.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(a.accountSID, a.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, apperrors.NewInternalErrorWithCause("twilio request failed", fmt.Errorf("%s", apperrors.Redact(err.Error())))
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		a.logger.Error("Twilio error", zap.Int("status", resp.StatusCode), zap.String("body", apperrors.Redact(string(respBody))))
		return nil, apperrors.NewInternalError("failed to send message via Twilio")
	}

	return map[string]interface{}{"status": "sent", "mock": false}, nil
}
