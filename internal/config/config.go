package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	defaultHTTPAddr     = ":3000"
	defaultDBDriver     = "sqlite"
	defaultDBDSN        = "agentlens.db"
	defaultEvalInterval = time.Minute
)

type Config struct {
	HTTPAddr     string
	DBDriver     string
	DBDSN        string
	APIKey       string
	EvalInterval time.Duration
	WebhookURLs  []string
}

func FromEnv() Config {
	addr := strings.TrimSpace(os.Getenv("LENS_HTTP_ADDR"))
	if addr == "" {
		addr = defaultHTTPAddr
	}
	driver := strings.TrimSpace(os.Getenv("LENS_DB_DRIVER"))
	if driver == "" {
		driver = defaultDBDriver
	}
	dsn := strings.TrimSpace(os.Getenv("LENS_DB_DSN"))
	if dsn == "" {
		dsn = defaultDBDSN
	}

	evalInterval := defaultEvalInterval
	if raw := strings.TrimSpace(os.Getenv("LENS_EVAL_INTERVAL")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err == nil && parsed > 0 {
			evalInterval = parsed
		}
	}

	return Config{
		HTTPAddr:     addr,
		DBDriver:     strings.ToLower(driver),
		DBDSN:        dsn,
		APIKey:       strings.TrimSpace(os.Getenv("LENS_API_KEY")),
		EvalInterval: evalInterval,
		WebhookURLs:  splitList(os.Getenv("LENS_WEBHOOK_URLS")),
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return fmt.Errorf("LENS_HTTP_ADDR must not be empty")
	}
	switch strings.ToLower(strings.TrimSpace(c.DBDriver)) {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("LENS_DB_DRIVER must be sqlite or postgres")
	}
	if strings.TrimSpace(c.DBDSN) == "" {
		return fmt.Errorf("LENS_DB_DSN must not be empty")
	}
	if c.EvalInterval <= 0 {
		return fmt.Errorf("LENS_EVAL_INTERVAL must be > 0")
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value != "" {
			out = append(out, value)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
