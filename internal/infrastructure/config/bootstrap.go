package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// AppName is the canonical application name.
const AppName = "cipherroom"

// HomeDir returns the gateway's configuration home: ~/.cipherroom
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+AppName)
}

// Bootstrap ensures ~/.cipherroom exists with a default config.yaml.
// Safe to call on every startup — it never overwrites an existing file.
func Bootstrap(logger *zap.Logger) error {
	root := HomeDir()
	if err := os.MkdirAll(root, 0755); err != nil {
		return fmt.Errorf("create dir %s: %w", root, err)
	}

	configPath := filepath.Join(root, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		logger.Debug("config home OK", zap.String("home", root))
		return nil
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0644); err != nil {
		logger.Warn("failed to write default config", zap.String("path", configPath), zap.Error(err))
		return nil
	}

	logger.Info("bootstrap complete", zap.String("home", root))
	return nil
}

const defaultConfig = `# cipherroom gateway configuration — auto-generated on first launch.

gateway:
  host: 0.0.0.0
  port: 8787
  mode: local                 # local | production

database:
  driver: sqlite               # sqlite | postgres
  dsn: cipherroom.db

log:
  level: info                  # debug | info | warn | error
  format: console               # console | json

crypto:
  master_key_hex: ""           # 32-byte hex key unwrapping room keys

redis:
  addr: localhost:6379
  password: ""
  db: 0

kafka:
  brokers: []
  topic: workflow.deferred

llm:
  providers: []
  # - name: anthropic
  #   api_key: "sk-ant-..."
  #   model: "claude-opus-4"
  #   priority: 1

moderation:
  batch_size: 10
  mute_threshold: 5

workflow:
  default_timezone: UTC
  step_timeout: 5m
  max_retries: 3
  retry_base_wait: 2s
  deferred_max_retries: 8
  webhook_secrets: {}

proactive:
  idle_threshold: 30m
  max_nudges_per_day: 3

assistant:
  mention_prefix: "@assistant"
  chat_model: "claude-opus-4"

tracing:
  enabled: false
  endpoint: ""
  service_name: cipherroom
`
