// Package config は環境変数からの設定読み込みです。
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config はリレーとピアが共有する設定です。フラグで上書きされます。
type Config struct {
	RelayAddr string `env:"DOSAGE_RELAY_ADDR" envDefault:":8080"`
	RelayURL  string `env:"DOSAGE_RELAY_URL" envDefault:"http://localhost:8080"`
	DBPath    string `env:"DOSAGE_DB_PATH" envDefault:"dosage.db"`

	HeartbeatInterval time.Duration `env:"DOSAGE_HEARTBEAT_INTERVAL" envDefault:"3s"`
	HeartbeatMisses   int           `env:"DOSAGE_HEARTBEAT_MISSES" envDefault:"3"`
	ReconnectWindow   time.Duration `env:"DOSAGE_RECONNECT_WINDOW" envDefault:"30s"`
	RoundDelay        time.Duration `env:"DOSAGE_ROUND_DELAY" envDefault:"2s"`
	ShopDuration      time.Duration `env:"DOSAGE_SHOP_DURATION" envDefault:"30s"`
	BotDelay          time.Duration `env:"DOSAGE_BOT_DELAY" envDefault:"1200ms"`
	IdleTimeout       time.Duration `env:"DOSAGE_IDLE_TIMEOUT" envDefault:"30s"`

	BalanceFile string `env:"DOSAGE_BALANCE_FILE"`

	LogLevel  string `env:"DOSAGE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"DOSAGE_LOG_FORMAT" envDefault:"text"`

	OTelEndpoint string `env:"DOSAGE_OTEL_ENDPOINT"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Logger は設定に従って slog のロガーを作ります。
func (c Config) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
