// Package config содержит логику чтения конфигурации сервиса заказов кафе.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса заказов кафе.
type Config struct {
	RunAddress           string        `env:"RUN_ADDRESS"`
	DatabaseURI          string        `env:"DATABASE_URI"`
	PaymentAddress       string        `env:"PAYMENT_SYSTEM_ADDRESS"`
	PaymentTimeout       time.Duration `env:"PAYMENT_TIMEOUT"`
	PaymentCancelTimeout time.Duration `env:"PAYMENT_CANCEL_TIMEOUT"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envPaymentAddress := cfg.PaymentAddress
	envPaymentTimeout := cfg.PaymentTimeout
	envPaymentCancelTimeout := cfg.PaymentCancelTimeout

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.PaymentAddress, "p", "", "payment system address")
	flag.DurationVar(&cfg.PaymentTimeout, "payment-timeout", 3*time.Second, "payment charge timeout")
	flag.DurationVar(&cfg.PaymentCancelTimeout, "payment-cancel-timeout", 3*time.Second, "payment cancel timeout")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envPaymentAddress != "" {
		cfg.PaymentAddress = envPaymentAddress
	}
	if envPaymentTimeout > 0 {
		cfg.PaymentTimeout = envPaymentTimeout
	}
	if envPaymentCancelTimeout > 0 {
		cfg.PaymentCancelTimeout = envPaymentCancelTimeout
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.PaymentTimeout <= 0 {
		cfg.PaymentTimeout = 3 * time.Second
	}
	if cfg.PaymentCancelTimeout <= 0 {
		cfg.PaymentCancelTimeout = 3 * time.Second
	}

	return cfg, nil
}
