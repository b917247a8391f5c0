package config

import (
	"os"
	"strconv"
	"strings"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	KafkaBrokers []string

	AuthorityAdminAccount string
	AuthorityPublicKey    string
	RegistryIdentityMode  string

	PlatformAccount string
	PlatformFeeBps  uint32
	SettlementMode  string

	EnableRegistryOutboxRelay   bool
	EnableSettlementOutboxRelay bool
	EnableIntentConsumer        bool
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "folio"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	var brokers []string
	for _, value := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		value = strings.TrimSpace(value)
		if value != "" {
			brokers = append(brokers, value)
		}
	}
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	platformAccount := strings.TrimSpace(os.Getenv("PLATFORM_ACCOUNT"))
	if platformAccount == "" {
		platformAccount = "platform"
	}

	return Config{
		ServiceName:  service,
		HTTPPort:     port,
		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		KafkaBrokers: brokers,

		AuthorityAdminAccount: strings.TrimSpace(os.Getenv("AUTHORITY_ADMIN_ACCOUNT")),
		AuthorityPublicKey:    strings.TrimSpace(os.Getenv("AUTHORITY_PUBLIC_KEY")),
		RegistryIdentityMode:  strings.TrimSpace(os.Getenv("REGISTRY_IDENTITY_MODE")),

		PlatformAccount: platformAccount,
		PlatformFeeBps:  envBps("PLATFORM_FEE_BPS", 1000),
		SettlementMode:  strings.TrimSpace(os.Getenv("SETTLEMENT_MODE")),

		EnableRegistryOutboxRelay:   envBool("ENABLE_REGISTRY_OUTBOX_RELAY", true),
		EnableSettlementOutboxRelay: envBool("ENABLE_SETTLEMENT_OUTBOX_RELAY", true),
		EnableIntentConsumer:        envBool("ENABLE_INTENT_CONSUMER", true),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envBps(name string, fallback uint32) uint32 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || value > 10000 {
		return fallback
	}
	return uint32(value)
}
