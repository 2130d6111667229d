package adapters

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cipherroom/gateway/internal/domain/ratelimit"
	"github.com/cipherroom/gateway/internal/domain/repository"
)

// Config carries the per-deployment settings BuildRegistry needs.
// A credential left blank does not fail startup: Mailgun and WhatsApp
// are still registered and mock their sends (matching the connectors'
// own "missing credentials, mocking" fallback), while Gmail is
// registered and returns an error on each send.
type Config struct {
	GmailClientID     string
	GmailClientSecret string
	MasterKey         [32]byte

	Mailgun MailgunConfig

	WhatsApp WhatsAppConfig

	Wallet WalletSource

	TravelFetchers map[string]TravelFetcher // keyed by search_type: buses, hotels, flights, transfers, events
}

// BuildRegistry assembles the full (service, action) -> Adapter table
// for every connector named in spec §4.O. Redis is optional: a nil
// client falls back to in-memory rate limiting and search caching,
// appropriate for single-instance development the way the teacher's
// components fall back to in-memory stores when Redis isn't wired.
func BuildRegistry(cfg Config, integrations repository.IntegrationRepository, redisClient redis.UniversalClient, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}

	var gate ratelimit.Gate
	var travelCache TravelCache
	if redisClient != nil {
		gate = ratelimit.NewRedisGate(redisClient, ratelimit.DefaultCeilings)
		travelCache = NewRedisTravelCache(redisClient)
	} else {
		gate = ratelimit.NewMemoryGate(ratelimit.DefaultCeilings)
		travelCache = NewMemoryTravelCache()
	}

	reg := NewRegistry()

	gmail := NewGmailAdapter(cfg.GmailClientID, cfg.GmailClientSecret, integrations, cfg.MasterKey, logger)
	reg.Register("gmail", "send_email", gmail)

	mailgun := NewMailgunAdapter(cfg.Mailgun, logger)
	reg.Register("mailgun", "send_email", mailgun)

	whatsapp := NewWhatsAppAdapter(cfg.WhatsApp, logger)
	reg.Register("whatsapp", "send_whatsapp", whatsapp.Adapter("send_message"))
	reg.Register("whatsapp", "send_invoice", whatsapp.Adapter("send_invoice"))
	reg.Register("whatsapp", "get_templates", whatsapp.Adapter("get_templates"))

	if cfg.Wallet != nil {
		payment := NewPaymentAdapter(cfg.Wallet)
		reg.Register("payments", "check_balance", payment.Adapter("check_balance"))
		reg.Register("payments", "list_transactions", payment.Adapter("list_transactions"))
		reg.Register("payments", "check_invoice_status", payment.Adapter("check_invoice_status"))
		reg.Register("payments", "check_payments", payment.Adapter("check_payments"))
	}

	for searchType, fetcher := range cfg.TravelFetchers {
		reg.Register("travel", searchType, NewTravelSearchAdapter(searchType, fetcher, travelCache, gate, logger))
	}

	reg.Register("quota", "get_quotas", NewQuotaAdapter(gate))

	return reg
}
