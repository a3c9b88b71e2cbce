package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string
	HTTPPort     string
	PostgresDSN  string
	KafkaBrokers []string

	// MarketplaceAddress is the operator identity the asset registry must
	// approve before an item can be listed.
	MarketplaceAddress    common.Address
	WithdrawFailurePolicy string

	OutboxPollInterval  time.Duration
	PayoutRetryInterval time.Duration
	// PayoutMaxAttempts bounds payout retries; zero retries forever.
	PayoutMaxAttempts   int
	RegistrySeedFile    string

	RateLimitRPS   float64
	RateLimitBurst int
	EnableMetrics  bool
}

const (
	defaultMarketplaceAddress  = "0x000000000000000000000000000000000000000d"
	defaultOutboxPollInterval  = 2 * time.Second
	defaultPayoutRetryInterval = 30 * time.Second
	defaultPayoutMaxAttempts   = 10
	defaultRateLimitRPS        = 20
	defaultRateLimitBurst      = 40
)

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "nftmarket"
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

	marketplace := strings.TrimSpace(os.Getenv("MARKETPLACE_ADDRESS"))
	if marketplace == "" {
		marketplace = defaultMarketplaceAddress
	}
	if !common.IsHexAddress(marketplace) {
		return Config{}, fmt.Errorf("MARKETPLACE_ADDRESS %q is not a hex address", marketplace)
	}

	policy := strings.TrimSpace(strings.ToLower(os.Getenv("MARKETPLACE_WITHDRAW_FAILURE_POLICY")))
	if policy == "" {
		policy = "reconcile"
	}

	cfg := Config{
		ServiceName:  service,
		HTTPPort:     port,
		PostgresDSN:  strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		KafkaBrokers: brokers,

		MarketplaceAddress:    common.HexToAddress(marketplace),
		WithdrawFailurePolicy: policy,

		OutboxPollInterval:  envDuration("OUTBOX_POLL_INTERVAL", defaultOutboxPollInterval),
		PayoutRetryInterval: envDuration("PAYOUT_RETRY_INTERVAL", defaultPayoutRetryInterval),
		PayoutMaxAttempts:   envInt("PAYOUT_MAX_ATTEMPTS", defaultPayoutMaxAttempts),
		RegistrySeedFile:    strings.TrimSpace(os.Getenv("REGISTRY_SEED_FILE")),

		RateLimitRPS:   envFloat("RATE_LIMIT_RPS", defaultRateLimitRPS),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", defaultRateLimitBurst),
		EnableMetrics:  envBool("ENABLE_METRICS", true),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.ServiceName == "" {
		errs = append(errs, errors.New("SERVICE_NAME is required"))
	}
	if port, err := strconv.Atoi(c.HTTPPort); err != nil || port <= 0 || port > 65535 {
		errs = append(errs, fmt.Errorf("HTTP_PORT %q is not a valid port", c.HTTPPort))
	}
	if c.MarketplaceAddress == (common.Address{}) {
		errs = append(errs, errors.New("MARKETPLACE_ADDRESS must not be the zero address"))
	}
	switch c.WithdrawFailurePolicy {
	case "reconcile", "restore":
	default:
		errs = append(errs, fmt.Errorf("MARKETPLACE_WITHDRAW_FAILURE_POLICY %q must be reconcile or restore", c.WithdrawFailurePolicy))
	}
	if c.OutboxPollInterval <= 0 {
		errs = append(errs, errors.New("OUTBOX_POLL_INTERVAL must be positive"))
	}
	if c.PayoutRetryInterval <= 0 {
		errs = append(errs, errors.New("PAYOUT_RETRY_INTERVAL must be positive"))
	}
	if c.PayoutMaxAttempts < 0 {
		errs = append(errs, errors.New("PAYOUT_MAX_ATTEMPTS must not be negative"))
	}
	if c.RateLimitRPS < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS must not be negative"))
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_BURST must be positive when rate limiting is enabled"))
	}
	return errors.Join(errs...)
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

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envFloat(name string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}
