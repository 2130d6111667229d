package adapters

import (
	"context"

	"github.com/cipherroom/gateway/internal/domain/ratelimit"
	apperrors "github.com/cipherroom/gateway/pkg/errors"
)

// QuotaAdapter serves the get_quotas command (spec §6, supplemented
// from quota_connector.py): it surfaces each scope's remaining count
// in the current window rather than guarding a call, so it reads the
// same Gate the Rate & Quota Gate component already maintains instead
// of keeping its own counters.
type QuotaAdapter struct {
	gate ratelimit.Gate
}

func NewQuotaAdapter(gate ratelimit.Gate) *QuotaAdapter {
	return &QuotaAdapter{gate: gate}
}

var reportedScopes = []ratelimit.Scope{
	ratelimit.ScopeChatMessages,
	ratelimit.ScopeFileUploads,
	ratelimit.ScopeOrchestrationCall,
	ratelimit.ScopeTravelSearch,
}

func (a *QuotaAdapter) Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	userID := paramString(params, "user_id")
	if userID == "" {
		return nil, apperrors.NewInvalidInputError("missing user context")
	}

	quotas := make(map[string]interface{}, len(reportedScopes))
	for _, scope := range reportedScopes {
		remaining, err := a.gate.Remaining(ctx, scope, userID)
		if err != nil {
			return nil, err
		}
		ceiling := ratelimit.DefaultCeilings[scope]
		quotas[string(scope)] = map[string]interface{}{
			"remaining":   remaining,
			"limit":       ceiling.Limit,
			"window_secs": ceiling.Window,
		}
	}
	return map[string]interface{}{"quotas": quotas}, nil
}
