// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/pharmaracks/stockledger/internal/domain/order"
)

type Config struct {
	ServiceName string
	Env         string

	// PostgresDSN selects the durable store; empty means in-memory.
	PostgresDSN string

	// KafkaBrokers selects the external event publisher; empty keeps events
	// on the in-process bus only.
	KafkaBrokers []string
	KafkaTopic   string

	MetricsAddr string

	// OrderInitialStatus is the status new orders start in. "delivered"
	// reproduces the payment-bypass checkout mode.
	OrderInitialStatus order.Status

	SweepInterval time.Duration
}

// Load reads configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName: getenv("SERVICE_NAME", "stockledger"),
		Env:         getenv("ENV", "dev"),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		KafkaTopic:  getenv("KAFKA_TOPIC", "stockledger.events"),
		MetricsAddr: getenv("METRICS_ADDR", ":9090"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	status, err := order.ParseStatus(getenv("ORDER_INITIAL_STATUS", string(order.StatusPending)))
	if err != nil {
		return nil, fmt.Errorf("config: ORDER_INITIAL_STATUS: %w", err)
	}
	cfg.OrderInitialStatus = status

	interval := getenv("SWEEP_INTERVAL", "10m")
	cfg.SweepInterval, err = time.ParseDuration(interval)
	if err != nil {
		return nil, fmt.Errorf("config: SWEEP_INTERVAL %q: %w", interval, err)
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
