package config

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// Params is the raw, unvalidated configuration as read from flags and the
// environment.
type Params struct {
	ServerAddr      string `validate:"required"`
	Store           string `validate:"oneof=postgres redis memory"`
	DatabaseDSN     string `validate:"required_if=Store postgres"`
	RedisAddr       string `validate:"required_if=Store redis"`
	RedisPassword   string
	RoomTTL         time.Duration `validate:"gte=0"`
	SigningSecret   string        `validate:"required,base64"`
	AllowedOrigins  []string      `validate:"dive,url"`
	HistoryDepth    int           `validate:"gte=0"`
	IdleRoomTimeout time.Duration `validate:"gt=0"`
	StoreTimeout    time.Duration `validate:"gt=0"`
	StrictErase     bool
}

type Config struct {
	ServerAddr      string
	Store           string
	DatabaseDSN     string
	RedisAddr       string
	RedisPassword   string
	RoomTTL         time.Duration
	SigningKey      []byte
	AllowedOrigins  []string
	HistoryDepth    int
	IdleRoomTimeout time.Duration
	StoreTimeout    time.Duration
	StrictErase     bool
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(p Params) (*Config, error) {
	if err := validator.New().Struct(p); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	signingKey, err := decodeSigningSecret(p.SigningSecret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		ServerAddr:      p.ServerAddr,
		Store:           p.Store,
		DatabaseDSN:     p.DatabaseDSN,
		RedisAddr:       p.RedisAddr,
		RedisPassword:   p.RedisPassword,
		RoomTTL:         p.RoomTTL,
		SigningKey:      signingKey,
		AllowedOrigins:  p.AllowedOrigins,
		HistoryDepth:    p.HistoryDepth,
		IdleRoomTimeout: p.IdleRoomTimeout,
		StoreTimeout:    p.StoreTimeout,
		StrictErase:     p.StrictErase,
	}, nil
}
