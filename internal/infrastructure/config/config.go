package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the gateway's top-level configuration, loaded in layers:
// defaults → ~/.cipherroom/config.yaml → ./config.yaml → environment.
type Config struct {
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Log        LogConfig        `mapstructure:"log"`
	Crypto     CryptoConfig     `mapstructure:"crypto"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Moderation ModerationConfig `mapstructure:"moderation"`
	Workflow   WorkflowConfig   `mapstructure:"workflow"`
	Proactive  ProactiveConfig  `mapstructure:"proactive"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Assistant  AssistantConfig  `mapstructure:"assistant"`
	Integrations IntegrationsConfig `mapstructure:"integrations"`
}

// AssistantConfig names the model and trigger word the Intent Parser,
// Context Store, and Streaming Synthesizer share (spec §6 env vars
// ASSISTANT_MENTION_PREFIX and the chat-completion model each LLM
// provider call is routed to).
type AssistantConfig struct {
	MentionPrefix string `mapstructure:"mention_prefix"`
	ChatModel     string `mapstructure:"chat_model"`
}

// GatewayConfig is the websocket/HTTP listen configuration.
type GatewayConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // local, production
}

// DatabaseConfig configures the Storage Adapter's gorm connection.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite, postgres
	DSN    string `mapstructure:"dsn"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CryptoConfig configures the Crypto Envelope's key unwrap (spec §4.A).
type CryptoConfig struct {
	// MasterKeyHex is the 32-byte (hex-encoded) key that unwraps each
	// room's sealed symmetric key directly, with no key-derivation step.
	MasterKeyHex string `mapstructure:"master_key_hex"`
}

// RedisConfig backs the Presence Store and Rate & Quota Gate.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig backs the Deferred Queue's cross-instance signaling.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// LLMConfig configures the shared LLM client used by the Intent Parser,
// Context Store refresh, and Streaming Synthesizer.
type LLMConfig struct {
	Providers []LLMProviderConfig `mapstructure:"providers"`
}

type LLMProviderConfig struct {
	Name     string `mapstructure:"name"` // anthropic, openai, gemini
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	Model    string `mapstructure:"model"`
	Priority int    `mapstructure:"priority"`
}

// IntegrationsConfig carries credentials for the External Adapters
// registry (spec §4.O). A blank credential set still registers the
// adapter rather than failing startup: Mailgun and WhatsApp then mock
// their sends, while Gmail returns an error on each send.
type IntegrationsConfig struct {
	GmailClientID     string `mapstructure:"gmail_client_id"`
	GmailClientSecret string `mapstructure:"gmail_client_secret"`

	MailgunAPIKey  string `mapstructure:"mailgun_api_key"`
	MailgunDomain  string `mapstructure:"mailgun_domain"`
	MailgunSandbox bool   `mapstructure:"mailgun_sandbox"`

	WhatsAppAccountSID string `mapstructure:"whatsapp_account_sid"`
	WhatsAppAuthToken  string `mapstructure:"whatsapp_auth_token"`
	WhatsAppFromNumber string `mapstructure:"whatsapp_from_number"`
}

// ModerationConfig configures the Moderation Buffer's thresholds.
type ModerationConfig struct {
	BatchSize      int `mapstructure:"batch_size"`
	MuteThreshold  int `mapstructure:"mute_threshold"`
}

// WorkflowConfig configures the Workflow Runtime and webhook ingress.
type WorkflowConfig struct {
	DefaultTimezone   string            `mapstructure:"default_timezone"`
	StepTimeout       time.Duration     `mapstructure:"step_timeout"`
	MaxRetries        int               `mapstructure:"max_retries"`
	RetryBaseWait     time.Duration     `mapstructure:"retry_base_wait"`
	WebhookSecrets    map[string]string `mapstructure:"webhook_secrets"`
	DeferredMaxRetries int              `mapstructure:"deferred_max_retries"`
}

// ProactiveConfig configures the Proactive Engine's idle/nudge gating.
type ProactiveConfig struct {
	IdleThreshold   time.Duration `mapstructure:"idle_threshold"`
	MaxNudgesPerDay int           `mapstructure:"max_nudges_per_day"`
}

// TracingConfig configures the OpenTelemetry exporter.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

// Load reads configuration from defaults, the global config directory,
// a project-local override, and environment variables, in that order of
// increasing precedence — the same layering the teacher's config loader
// uses, trimmed to this gateway's own settings.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	globalDir := filepath.Join(os.Getenv("HOME"), "."+AppName)
	v.AddConfigPath(globalDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read global config: %w", err)
		}
	}

	for _, localDir := range []string{"./config", "."} {
		localPath := filepath.Join(localDir, "config.yaml")
		if _, err := os.Stat(localPath); err == nil {
			v2 := viper.New()
			v2.SetConfigFile(localPath)
			if err := v2.ReadInConfig(); err == nil {
				_ = v.MergeConfigMap(v2.AllSettings())
			}
			break
		}
	}

	v.SetEnvPrefix("CIPHERROOM")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("gateway.port", 8787)
	v.SetDefault("gateway.mode", "local")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "cipherroom.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.topic", "workflow.deferred")

	v.SetDefault("moderation.batch_size", 10)
	v.SetDefault("moderation.mute_threshold", 5)

	v.SetDefault("workflow.default_timezone", "UTC")
	v.SetDefault("workflow.step_timeout", "5m")
	v.SetDefault("workflow.max_retries", 3)
	v.SetDefault("workflow.retry_base_wait", "2s")
	v.SetDefault("workflow.deferred_max_retries", 8)

	v.SetDefault("proactive.idle_threshold", "30m")
	v.SetDefault("proactive.max_nudges_per_day", 3)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", AppName)

	v.SetDefault("assistant.mention_prefix", "@assistant")
	v.SetDefault("assistant.chat_model", "claude-opus-4")
}
