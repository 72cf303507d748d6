package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/Skotchmaster/session_auth/internal/tokens"
)

type Config struct {
	ServerAddr string
	LogLevel   string

	DBDriver    string
	DatabaseURL string

	JWTSecret []byte
	JWTIssuer string

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	RefreshCookieName   string
	RefreshCookieSecure bool

	BcryptCost int

	PurgeInterval time.Duration

	KafkaBrokers []string
	KafkaTopic   string
}

func LoadConfig() (Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func FromEnv() Config {
	return Config{
		ServerAddr: EnvDefault("SERVER_ADDR", ":8080"),
		LogLevel:   EnvDefault("LOG_LEVEL", "info"),

		DBDriver:    EnvDefault("DB_DRIVER", "postgres"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTSecret: []byte(os.Getenv("JWT_SECRET")),
		JWTIssuer: EnvDefault("JWT_ISSUER", "session-auth"),

		AccessTTL:  time.Duration(EnvIntDefault("ACCESS_TTL_SECONDS", 900)) * time.Second,
		RefreshTTL: time.Duration(EnvIntDefault("REFRESH_TTL_SECONDS", 14*24*3600)) * time.Second,

		RefreshCookieName:   EnvDefault("REFRESH_COOKIE_NAME", "refreshToken"),
		RefreshCookieSecure: EnvBoolDefault("REFRESH_COOKIE_SECURE", true),

		BcryptCost: EnvIntDefault("BCRYPT_COST", 12),

		PurgeInterval: time.Duration(EnvIntDefault("PURGE_INTERVAL_SECONDS", 3600)) * time.Second,

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   EnvDefault("KAFKA_TOPIC", "session_events"),
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("missing required env DATABASE_URL"))
	}
	if len(c.JWTSecret) < tokens.MinSecretLen {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", tokens.MinSecretLen))
	}
	if c.AccessTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TTL_SECONDS must be positive"))
	}
	if c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("REFRESH_TTL_SECONDS must be positive"))
	}
	if c.RefreshTTL <= c.AccessTTL {
		errs = append(errs, errors.New("REFRESH_TTL_SECONDS must exceed ACCESS_TTL_SECONDS"))
	}
	if c.RefreshCookieName == "" {
		errs = append(errs, errors.New("REFRESH_COOKIE_NAME must not be empty"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.PurgeInterval < 0 {
		errs = append(errs, errors.New("PURGE_INTERVAL_SECONDS must not be negative"))
	}
	return errors.Join(errs...)
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
