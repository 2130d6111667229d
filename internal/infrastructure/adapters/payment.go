package adapters

import (
	"context"
	"time"

	apperrors "github.com/cipherroom/gateway/pkg/errors"
)

// Transaction is one ledger entry surfaced to the read-only payment
// adapter, matching the shape list_transactions builds in
// connectors/payment_connector.py.
type Transaction struct {
	Date        time.Time
	Description string
	Amount      float64
	Type        string
}

// Invoice is the subset of a payment request the AI is allowed to see.
type Invoice struct {
	ReferenceID string
	Amount      float64
	Status      string
	CreatedAt   time.Time
	PaidAt      *time.Time
}

// WalletSource is the read path into the payments subsystem. The AI
// adapter never has write access — there is deliberately no
// CreateInvoice or Withdraw method on this interface, mirroring the
// Python source's comment that this connector "cannot initiate
// transactions".
type WalletSource interface {
	Balance(ctx context.Context, userID string) (amount float64, currency string, err error)
	Transactions(ctx context.Context, userID string, limit int) ([]Transaction, error)
	Invoice(ctx context.Context, referenceID string) (*Invoice, error)
}

// PaymentAdapter exposes a whitelisted set of read-only payment
// queries, grounded on connectors/payment_connector.py's
// ReadOnlyPaymentConnector: any action outside the allow-list is
// rejected before it ever reaches WalletSource.
type PaymentAdapter struct {
	wallet WalletSource
}

func NewPaymentAdapter(wallet WalletSource) *PaymentAdapter {
	return &PaymentAdapter{wallet: wallet}
}

var allowedPaymentActions = map[string]bool{
	"check_balance":        true,
	"list_transactions":    true,
	"check_invoice_status": true,
	"check_payments":       true,
}

// Adapter returns a dispatch.Adapter bound to one whitelisted action,
// for the same reason WhatsAppAdapter.Adapter exists: the registry
// differentiates by action, Execute does not receive one.
func (a *PaymentAdapter) Adapter(action string) *paymentBoundAdapter {
	return &paymentBoundAdapter{pa: a, action: action}
}

type paymentBoundAdapter struct {
	pa     *PaymentAdapter
	action string
}

func (b *paymentBoundAdapter) Execute(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	if !allowedPaymentActions[b.action] {
		return nil, apperrors.NewForbiddenError("AI does not have permission for action: " + b.action)
	}

	userID := paramString(params, "user_id")
	if userID == "" {
		return nil, apperrors.NewInvalidInputError("missing user context")
	}

	switch b.action {
	case "check_balance":
		return b.pa.checkBalance(ctx, userID)
	case "list_transactions":
		limit := int(paramFloat(params, "limit", 10))
		return b.pa.listTransactions(ctx, userID, limit)
	case "check_invoice_status":
		return b.pa.checkInvoice(ctx, paramString(params, "invoice_id"))
	case "check_payments":
		return b.pa.checkPayments(ctx, userID)
	}
	return nil, apperrors.NewInvalidInputError("unknown action")
}

func (a *PaymentAdapter) checkBalance(ctx context.Context, userID string) (map[string]interface{}, error) {
	balance, currency, err := a.wallet.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"balance":  balance,
		"currency": currency,
	}, nil
}

func (a *PaymentAdapter) listTransactions(ctx context.Context, userID string, limit int) (map[string]interface{}, error) {
	txs, err := a.wallet.Transactions(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, len(txs))
	for i, t := range txs {
		out[i] = map[string]interface{}{
			"date":        t.Date.Format("2006-01-02 15:04"),
			"description": t.Description,
			"amount":      t.Amount,
			"type":        t.Type,
		}
	}
	return map[string]interface{}{"transactions": out, "count": len(out)}, nil
}

func (a *PaymentAdapter) checkInvoice(ctx context.Context, referenceID string) (map[string]interface{}, error) {
	invoice, err := a.wallet.Invoice(ctx, referenceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, apperrors.NewNotFoundError("invoice not found")
	}
	result := map[string]interface{}{
		"reference_id": invoice.ReferenceID,
		"amount":       invoice.Amount,
		"status":       invoice.Status,
		"created":      invoice.CreatedAt.Format("2006-01-02 15:04"),
	}
	if invoice.PaidAt != nil {
		result["paid"] = invoice.PaidAt.Format("2006-01-02 15:04")
	}
	return map[string]interface{}{"invoice": result}, nil
}

// checkPayments is the source's "summary view": balance plus the last
// three transactions in one reply, worth keeping as a single adapter
// action so the assistant can answer "how's my account doing?" without
// composing two calls itself.
func (a *PaymentAdapter) checkPayments(ctx context.Context, userID string) (map[string]interface{}, error) {
	balance, currency, err := a.wallet.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	txs, err := a.wallet.Transactions(ctx, userID, 3)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, len(txs))
	for i, t := range txs {
		out[i] = map[string]interface{}{
			"date":        t.Date.Format("2006-01-02 15:04"),
			"description": t.Description,
			"amount":      t.Amount,
			"type":        t.Type,
		}
	}
	return map[string]interface{}{
		"balance":              balance,
		"currency":             currency,
		"recent_transactions": out,
	}, nil
}
