package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath             string
	RawMailDir         string
	OutputDir          string
	CustomerConfigPath string

	LogLevel  string
	LogFormat string
	LogOutput string

	MatchFuzzyThreshold float64
	MatchWorkers        int

	OrderAPIBaseURL      string
	OrderAPIToken        string
	OrderRateLimitRPS    int
	OrderTimeoutMs       int
	OrderLookbackDays    int
	OrderMaxRetryAttempt int

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	ReportSenders    []string
	MailLookbackDays int

	ListenerProvider    string
	ListenerLabel       string
	ListenerIntervalSec int
	ListenerFetchMax    int
	ListenerImportBatch int
	ListenerAutoExport  bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:             getEnv("DB_PATH", filepath.Join(cwd, "data", "shipmatch.db")),
		RawMailDir:         getEnv("MAIL_RAW_DIR", filepath.Join(cwd, "data", "raw")),
		OutputDir:          getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		CustomerConfigPath: getEnv("CUSTOMER_CONFIG_PATH", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
		LogOutput: getEnv("LOG_OUTPUT", "stderr"),

		MatchFuzzyThreshold: getEnvFloat("MATCH_FUZZY_THRESHOLD", 75),
		MatchWorkers:        getEnvInt("MATCH_WORKERS", 1),

		OrderAPIBaseURL:      getEnv("ORDER_API_BASE_URL", ""),
		OrderAPIToken:        getEnv("ORDER_API_TOKEN", ""),
		OrderRateLimitRPS:    getEnvInt("ORDER_RATE_LIMIT_RPS", 5),
		OrderTimeoutMs:       getEnvInt("ORDER_TIMEOUT_MS", 30000),
		OrderLookbackDays:    getEnvInt("ORDER_LOOKBACK_DAYS", 120),
		OrderMaxRetryAttempt: getEnvInt("ORDER_MAX_RETRY_ATTEMPTS", 5),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		ReportSenders:    getEnvList("REPORT_SENDERS"),
		MailLookbackDays: getEnvInt("MAIL_LOOKBACK_DAYS", 7),

		ListenerProvider:    getEnv("LISTENER_PROVIDER", "imap"),
		ListenerLabel:       getEnv("LISTENER_LABEL", "INBOX"),
		ListenerIntervalSec: getEnvInt("LISTENER_INTERVAL_SEC", 300),
		ListenerFetchMax:    getEnvInt("LISTENER_FETCH_MAX", 20),
		ListenerImportBatch: getEnvInt("LISTENER_IMPORT_BATCH", 20),
		ListenerAutoExport:  getEnvBool("LISTENER_AUTO_EXPORT", true),
	}

	if cfg.MatchFuzzyThreshold < 0 || cfg.MatchFuzzyThreshold > 100 {
		return Config{}, fmt.Errorf("MATCH_FUZZY_THRESHOLD must be within [0,100], got %v", cfg.MatchFuzzyThreshold)
	}
	if cfg.MatchWorkers < 1 {
		cfg.MatchWorkers = 1
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	return getEnvParsed(key, fallback, strconv.Atoi)
}

func getEnvFloat(key string, fallback float64) float64 {
	return getEnvParsed(key, fallback, func(v string) (float64, error) { return strconv.ParseFloat(v, 64) })
}

// getEnvParsed returns fallback when key is unset, blank or unparsable.
func getEnvParsed[T any](key string, fallback T, parse func(string) (T, error)) T {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return fallback
	}
	v, err := parse(raw)
	if err != nil {
		return fallback
	}
	return v
}

// getEnvList splits a comma-separated value, dropping blanks.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(getEnv(key, ""))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
