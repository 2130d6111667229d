package adapters

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cipherroom/gateway/internal/domain/entity"
	"github.com/cipherroom/gateway/internal/domain/repository"
	apperrors "github.com/cipherroom/gateway/pkg/errors"
)

const (
	defaultGmailTokenURL = "https://oauth2.googleapis.com/token"
	defaultGmailSendURL  = "https://gmail.googleapis.com/gmail/v1/users/me/messages/send"
)

// GmailAdapter sends mail through a user's connected Gmail OAuth
// integration, grounded on connectors/gmail_connector.py: same
// raw-RFC822-then-base64url send payload, same refresh-on-expiry and
// retry-once-on-401 behavior, same "not connected" / "reconnect"
// error shapes surfaced to the caller via action_required.
type GmailAdapter struct {
	clientID     string
	clientSecret string
	creds        *credentialStore
	client       *http.Client
	tokenURL     string
	sendURL      string
	logger       *zap.Logger
}

func NewGmailAdapter(clientID, clientSecret string, integrations repository.IntegrationRepository, masterKey [32]byte, logger *zap.Logger) *GmailAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GmailAdapter{
		clientID:     clientID,
		clientSecret: clientSecret,
		creds:        newCredentialStore(integrations, masterKey),
		client:       newHTTPClient(20 * time.Second),
		tokenURL:     defaultGmailTokenURL,
		sendURL:      defaultGmailSendURL,
		logger:       logger.With(zap.String("adapter", "gmail")),
	}
}

// WithEndpoints overrides the token/send URLs (tests point these at an
// httptest server instead of the real Gmail API).
func (a *GmailAdapter) WithEndpoints(tokenURL, sendURL string) *GmailAdapter {
	a.tokenURL = tokenURL
	a.sendURL = sendURL
	return a
}

func (a *GmailAdapter) Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	userID := paramString(params, "user_id")
	if userID == "" {
		return nil, apperrors.NewInvalidInputError("missing user context for Gmail send")
	}
	to := paramString(params, "to")
	subject := paramString(params, "subject")
	text := paramString(params, "text")
	if text == "" {
		text = paramString(params, "body")
	}
	html := paramString(params, "html")

	if to == "" {
		return nil, apperrors.NewInvalidInputError("recipient 'to' is required for send_email")
	}
	if subject == "" {
		return nil, apperrors.NewInvalidInputError("subject is required for send_email")
	}
	if text == "" && html == "" {
		return nil, apperrors.NewInvalidInputError("email text or html content is required for send_email")
	}
	if a.clientID == "" || a.clientSecret == "" {
		return nil, apperrors.NewInternalError("Gmail OAuth credentials are not configured")
	}

	integration, creds, connected, err := a.creds.load(ctx, userID, entity.IntegrationGmail)
	if err != nil {
		return nil, err
	}
	if !connected {
		return nil, &needsReconnect{service: "gmail", message: "Gmail is not connected. Please connect Gmail in Settings > Integrations."}
	}

	if creds.expired() {
		refreshed, err := a.refresh(ctx, integration, creds)
		if err != nil {
			return nil, &needsReconnect{service: "gmail", message: "Gmail token expired. Please reconnect Gmail."}
		}
		creds = refreshed
	}

	raw := buildRFC822(paramString(params, "from"), to, subject, text, html)
	status, body, err := a.send(ctx, creds.AccessToken, raw)
	if err == nil && status == http.StatusUnauthorized {
		refreshed, rerr := a.refresh(ctx, integration, creds)
		if rerr == nil {
			creds = refreshed
			status, body, err = a.send(ctx, creds.AccessToken, raw)
		}
	}
	if err != nil {
		return nil, apperrors.NewInternalErrorWithCause("Gmail send failed", fmt.Errorf("%s", apperrors.Redact(err.Error())))
	}
	if status == http.StatusOK || status == http.StatusAccepted {
		var parsed struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(body, &parsed)
		return map[string]interface{}{"id": parsed.ID, "message": "Email sent successfully"}, nil
	}

	a.logger.Error("Gmail send failed", zap.Int("status", status), zap.String("body", apperrors.Redact(string(body))))
	return nil, apperrors.NewInternalError("failed to send email via Gmail")
}

func (a *GmailAdapter) send(ctx context.Context, accessToken string, raw string) (int, []byte, error) {
	payload, err := json.Marshal(map[string]string{"raw": raw})
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.sendURL, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

// refresh exchanges the stored refresh token for a new access token
// and persists the refreshed credentials, mirroring
// _refresh_access_token in the Python source.
func (a *GmailAdapter) refresh(ctx context.Context, integration *entity.Integration, creds oauthCredentials) (oauthCredentials, error) {
	if creds.RefreshToken == "" {
		return creds, apperrors.NewUnauthorizedError("no refresh token on file")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", creds.RefreshToken)
	form.Set("client_id", a.clientID)
	form.Set("client_secret", a.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return creds, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return creds, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return creds, err
	}
	if resp.StatusCode != http.StatusOK {
		a.logger.Error("Gmail token refresh failed", zap.String("body", apperrors.Redact(string(body))))
		return creds, apperrors.NewUnauthorizedError("token refresh rejected")
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.AccessToken == "" {
		return creds, apperrors.NewInternalError("malformed token refresh response")
	}

	creds.AccessToken = payload.AccessToken
	if payload.ExpiresIn > 0 {
		creds.ExpiresAt = time.Now().Unix() + payload.ExpiresIn
	}
	if err := a.creds.save(ctx, integration, creds); err != nil {
		a.logger.Warn("failed to persist refreshed Gmail credentials", zap.Error(err))
	}
	return creds, nil
}

// needsReconnect mirrors the source's action_required: "connect_gmail"
// hint, letting the chat layer render a "reconnect this integration"
// prompt instead of a bare error.
type needsReconnect struct {
	service string
	message string
}

func (e *needsReconnect) Error() string { return e.message }

// ActionRequired reports the reconnect hint the interfaces layer
// surfaces to the client, e.g. {"action_required": "connect_gmail"}.
func (e *needsReconnect) ActionRequired() string { return "connect_" + e.service }

func buildRFC822(from, to, subject, text, html string) string {
	var msg strings.Builder
	if from != "" {
		msg.WriteString("From: " + from + "\r\n")
	}
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")

	switch {
	case html != "" && text != "":
		boundary := "gw-boundary-mixed"
		msg.WriteString("Content-Type: multipart/alternative; boundary=\"" + boundary + "\"\r\n\r\n")
		msg.WriteString("--" + boundary + "\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n" + text + "\r\n")
		msg.WriteString("--" + boundary + "\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n" + html + "\r\n")
		msg.WriteString("--" + boundary + "--")
	case html != "":
		msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n" + html)
	default:
		msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n" + text)
	}

	return base64.URLEncoding.EncodeToString([]byte(msg.String()))
}
