package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cipherroom/gateway/internal/interfaces/websocket"
)

// WebhookDispatcher accepts a verified inbound webhook and starts (or
// defers) the workflow(s) subscribed to it (spec §4.K/L, Webhook ingress).
type WebhookDispatcher interface {
	DispatchWebhook(ctx context.Context, service, event string, payload map[string]interface{}) error
}

// WebhookSecretResolver looks up the shared secret configured for a given
// webhook service, so verification stays generic across integrations.
type WebhookSecretResolver interface {
	WebhookSecret(service string) (string, bool)
}

// Config is the HTTP server's listen configuration.
type Config struct {
	Host string
	Port int
	Mode string // debug, release
}

// Server is the gateway's REST/webhook surface — the group chat hub
// itself is served over WebSocket (internal/interfaces/websocket).
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// NewServer wires the health check, webhook ingress, and chat session
// routes.
func NewServer(cfg Config, dispatcher WebhookDispatcher, secrets WebhookSecretResolver, wsHandler *websocket.Handler, logger *zap.Logger) *Server {
	if cfg.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logger))

	setupRoutes(router, dispatcher, secrets, wsHandler, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return &Server{
		server: &http.Server{Addr: addr, Handler: router},
		logger: logger,
	}
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting http server", zap.String("address", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", zap.Error(err))
		}
	}()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping http server")
	return s.server.Shutdown(ctx)
}

func setupRoutes(router *gin.Engine, dispatcher WebhookDispatcher, secrets WebhookSecretResolver, wsHandler *websocket.Handler, logger *zap.Logger) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Unix()})
	})

	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/:service/:event", func(c *gin.Context) {
			handleWebhook(c, dispatcher, secrets, logger)
		})
	}

	if wsHandler != nil {
		router.GET("/ws", gin.WrapF(wsHandler.ServeWS))
	}
}

// handleWebhook verifies the inbound signature (constant-time, per
// service convention) before handing the decoded payload to the
// dispatcher — an unverified or malformed request never reaches a
// workflow trigger.
func handleWebhook(c *gin.Context, dispatcher WebhookDispatcher, secrets WebhookSecretResolver, logger *zap.Logger) {
	service := c.Param("service")
	event := c.Param("event")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read body"})
		return
	}

	secret, ok := secrets.WebhookSecret(service)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown webhook service"})
		return
	}

	verified := false
	switch service {
	case "whatsapp":
		verified = verifyHubSignatureSHA1(c.GetHeader("X-Hub-Signature"), secret, body)
	default:
		verified = verifyHMACSHA256(c.GetHeader("X-Signature"), secret, body)
	}
	if !verified {
		logger.Warn("webhook signature rejected", zap.String("service", service), zap.String("event", event))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	if err := dispatcher.DispatchWebhook(c.Request.Context(), service, event, payload); err != nil {
		logger.Error("webhook dispatch failed", zap.String("service", service), zap.Error(err))
		c.JSON(http.StatusAccepted, gin.H{"status": "queued_for_retry"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

func ginLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}
