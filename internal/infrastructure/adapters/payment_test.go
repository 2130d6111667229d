package adapters

import (
	"context"
	"testing"
	"time"
)

type stubWallet struct {
	balance      float64
	currency     string
	transactions []Transaction
	invoices     map[string]*Invoice
}

func (w *stubWallet) Balance(ctx context.Context, userID string) (float64, string, error) {
	return w.balance, w.currency, nil
}

func (w *stubWallet) Transactions(ctx context.Context, userID string, limit int) ([]Transaction, error) {
	if limit < len(w.transactions) {
		return w.transactions[:limit], nil
	}
	return w.transactions, nil
}

func (w *stubWallet) Invoice(ctx context.Context, referenceID string) (*Invoice, error) {
	return w.invoices[referenceID], nil
}

func TestPaymentAdapterRejectsActionOutsideWhitelist(t *testing.T) {
	a := NewPaymentAdapter(&stubWallet{})
	_, err := a.Adapter("withdraw").Execute(context.Background(), map[string]interface{}{"user_id": "u1"})
	if err == nil {
		t.Fatal("expected withdraw to be rejected for a read-only adapter")
	}
}

func TestPaymentAdapterCheckBalance(t *testing.T) {
	a := NewPaymentAdapter(&stubWallet{balance: 1500, currency: "KES"})
	result, err := a.Adapter("check_balance").Execute(context.Background(), map[string]interface{}{"user_id": "u1"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["balance"] != 1500.0 || result["currency"] != "KES" {
		t.Fatalf("unexpected result: %v", result)
	}
}

func TestPaymentAdapterCheckPaymentsSummarizesBalanceAndRecentTransactions(t *testing.T) {
	wallet := &stubWallet{
		balance:  500,
		currency: "KES",
		transactions: []Transaction{
			{Date: time.Now(), Description: "a", Amount: 10, Type: "CREDIT"},
			{Date: time.Now(), Description: "b", Amount: -5, Type: "DEBIT"},
			{Date: time.Now(), Description: "c", Amount: 20, Type: "CREDIT"},
			{Date: time.Now(), Description: "d", Amount: -1, Type: "DEBIT"},
		},
	}
	a := NewPaymentAdapter(wallet)
	result, err := a.Adapter("check_payments").Execute(context.Background(), map[string]interface{}{"user_id": "u1"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	recent := result["recent_transactions"].([]map[string]interface{})
	if len(recent) != 3 {
		t.Fatalf("expected the summary view capped at 3 transactions, got %d", len(recent))
	}
}

func TestPaymentAdapterCheckInvoiceNotFound(t *testing.T) {
	a := NewPaymentAdapter(&stubWallet{invoices: map[string]*Invoice{}})
	_, err := a.Adapter("check_invoice_status").Execute(context.Background(), map[string]interface{}{"user_id": "u1", "invoice_id": "missing"})
	if err == nil {
		t.Fatal("expected not-found error for unknown invoice")
	}
}

func TestPaymentAdapterRequiresUserContext(t *testing.T) {
	a := NewPaymentAdapter(&stubWallet{})
	_, err := a.Adapter("check_balance").Execute(context.Background(), map[string]interface{}{})
	if err == nil {
		t.Fatal("expected error for missing user context")
	}
}
