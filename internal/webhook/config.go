// Package webhook receives repository push notifications and triggers
// serialized reconciliation passes.
package webhook

import (
	"time"

	"github.com/knadh/koanf/v2"
)

const (
	// defaultWebhookPort is the default HTTP port for the webhook server.
	defaultWebhookPort = 8080
	defaultWebhookPath = "/webhooks/github"
)

// ServerConfig holds configuration for the webhook server.
type ServerConfig struct {
	Port      int           // HTTP port to listen on (webhook_port, default 8080)
	Path      string        // Webhook endpoint path (webhook_path, default /webhooks/github)
	Secret    string        // HMAC secret shared with the forge (webhook_secret, optional)
	Ref       string        // Only pushes to this ref trigger a pass (webhook_ref)
	SyncDelay time.Duration // Delay before running the pass (webhook_sync_delay, default 0)
}

// LoadConfig reads the webhook_ keys. Ref defaults to the tracked branch.
func LoadConfig(k *koanf.Koanf, branch string) *ServerConfig {
	cfg := &ServerConfig{
		Port:   defaultWebhookPort,
		Path:   defaultWebhookPath,
		Secret: k.String("webhook_secret"),
		Ref:    "refs/heads/" + branch,
	}

	if port := k.Int("webhook_port"); port > 0 {
		cfg.Port = port
	}
	if path := k.String("webhook_path"); path != "" {
		cfg.Path = path
	}
	if ref := k.String("webhook_ref"); ref != "" {
		cfg.Ref = ref
	}
	if d := k.Duration("webhook_sync_delay"); d > 0 {
		cfg.SyncDelay = d
	}

	return cfg
}

// IsValid returns true if the configuration is valid.
// Secret is optional (signature verification is skipped if not set).
func (c *ServerConfig) IsValid() bool {
	return c.Port > 0 && c.Path != "" && c.Ref != ""
}
