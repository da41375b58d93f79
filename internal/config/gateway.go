package config

import (
	"strings"

	"github.com/spf13/viper"
)

// GatewayConfig holds billing gateway connection settings. Values come
// from billing.yaml when present, environment variables otherwise.
type GatewayConfig struct {
	Provider   string // "http" or "fake"
	BaseURL    string
	APIKey     string
	MerchantID string
	TimeoutSec int
}

func loadGatewayConfig() GatewayConfig {
	v := viper.New()
	v.SetConfigName("billing")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("gateway.provider", "fake")
	v.SetDefault("gateway.base_url", "")
	v.SetDefault("gateway.api_key", "")
	v.SetDefault("gateway.merchant_id", "")
	v.SetDefault("gateway.timeout_seconds", 15)

	v.SetEnvPrefix("BILLING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Missing file is fine; env vars and defaults still apply.
	_ = v.ReadInConfig()

	return GatewayConfig{
		Provider:   strings.ToLower(strings.TrimSpace(v.GetString("gateway.provider"))),
		BaseURL:    strings.TrimRight(strings.TrimSpace(v.GetString("gateway.base_url")), "/"),
		APIKey:     strings.TrimSpace(v.GetString("gateway.api_key")),
		MerchantID: strings.TrimSpace(v.GetString("gateway.merchant_id")),
		TimeoutSec: v.GetInt("gateway.timeout_seconds"),
	}
}
