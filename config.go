package main

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config is the full runtime configuration, read from RR_-prefixed
// environment variables (a local .env is auto-loaded first).
type Config struct {
	Addr      string
	DSN       string
	UploadDir string
	Debug     bool

	Workers      int
	PollInterval time.Duration
	CallTimeout  time.Duration
	LeaseTimeout time.Duration
	CharBudget   int
	MaxRetries   int

	ExtractorBaseURL string
	ExtractorAPIKey  string
	ExtractorModel   string
	TextServiceURL   string

	// Registries maps registry name to lookup base URL,
	// e.g. RR_REGISTRIES="bbr=https://bbr.example;tax=https://tax.example"
	Registries map[string]string
}

func loadConfig() (*Config, error) {
	loadDotEnv()
	k := koanf.New(".")
	if err := k.Load(env.Provider("RR_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "RR_"))
	}), nil); err != nil {
		return nil, err
	}

	cfg := &Config{
		Addr:             strOr(k, "addr", ":8081"),
		DSN:              k.String("dsn"),
		UploadDir:        strOr(k, "upload_base", "uploads"),
		Debug:            k.Bool("debug"),
		Workers:          intOr(k, "workers", 2),
		PollInterval:     durOr(k, "poll_interval", 2*time.Second),
		CallTimeout:      durOr(k, "call_timeout", 90*time.Second),
		LeaseTimeout:     durOr(k, "lease_timeout", 15*time.Minute),
		CharBudget:       intOr(k, "char_budget", 0),
		MaxRetries:       intOr(k, "max_retries", 3),
		ExtractorBaseURL: k.String("extractor_url"),
		ExtractorAPIKey:  k.String("extractor_api_key"),
		ExtractorModel:   strOr(k, "extractor_model", "gpt-4o-mini"),
		TextServiceURL:   k.String("text_service_url"),
		Registries:       parseRegistries(k.String("registries")),
	}
	return cfg, nil
}

func strOr(k *koanf.Koanf, key, def string) string {
	if v := k.String(key); v != "" {
		return v
	}
	return def
}

// intOr and durOr key off presence, not value, so an explicit zero
// (RR_WORKERS=0 to run without embedded workers) is honored instead of
// falling back to the default.
func intOr(k *koanf.Koanf, key string, def int) int {
	if k.Exists(key) {
		return k.Int(key)
	}
	return def
}

func durOr(k *koanf.Koanf, key string, def time.Duration) time.Duration {
	if k.Exists(key) {
		return k.Duration(key)
	}
	return def
}

// parseRegistries splits "name=url;name=url" into a map.
func parseRegistries(s string) map[string]string {
	out := map[string]string{}
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if eq := strings.IndexByte(part, '='); eq > 0 {
			out[strings.TrimSpace(part[:eq])] = strings.TrimSpace(part[eq+1:])
		}
	}
	return out
}

// loadDotEnv loads key=value pairs from a local .env file into the
// environment without overwriting variables that are already set.
// Lines starting with # are ignored.
func loadDotEnv() {
	path := ".env"
	if _, err := os.Stat(path); err != nil {
		return
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if eq := strings.IndexByte(line, '='); eq > 0 {
			key := strings.TrimSpace(line[:eq])
			val := strings.TrimSpace(line[eq+1:])
			if _, exists := os.LookupEnv(key); !exists {
				_ = os.Setenv(key, val)
			}
		}
	}
}
