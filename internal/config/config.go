package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AccountConfig describes one allowed panel account.
type AccountConfig struct {
	// ID is the case-sensitive account identifier.
	ID string `yaml:"id"`
	// Key is the optional symmetric key; 16, 24 or 32 characters when set.
	Key string `yaml:"key,omitempty"`
}

// Config holds every setting the broker process consumes.
type Config struct {
	// LogLevel is the minimum level for log output.
	LogLevel string `yaml:"log_level"`
	// ListenAddress is the TCP bind address for the panel protocol.
	ListenAddress string `yaml:"listen_addr"`
	// AdminAddress is the HTTP bind address for the admin surface.
	AdminAddress string `yaml:"admin_addr"`
	// Accounts lists the panels allowed to deliver signals.
	Accounts []AccountConfig `yaml:"accounts"`
	// ForwardURL is the downstream HTTP target events are delivered to.
	ForwardURL string `yaml:"forward_url"`
	// ForwardAuthHeader is an optional Authorization header value for
	// downstream deliveries.
	ForwardAuthHeader string `yaml:"forward_auth_header,omitempty"`
	// ForwardCookie is an optional Cookie header value for downstream
	// deliveries, passed through verbatim (semicolons intact).
	ForwardCookie string `yaml:"forward_cookie,omitempty"`
	// ForwardExtraHeaders are additional headers set on every delivery.
	ForwardExtraHeaders map[string]string `yaml:"forward_extra_headers,omitempty"`
	// ForwardTimeout bounds one downstream delivery attempt.
	ForwardTimeout time.Duration `yaml:"forward_timeout"`
	// ForwardMaxAttempts is the retry budget per event.
	ForwardMaxAttempts int `yaml:"forward_max_attempts"`
	// ForwardRetryBaseDelay is the first backoff delay; it doubles per retry.
	ForwardRetryBaseDelay time.Duration `yaml:"forward_retry_base_delay"`
	// ForwardQueueSize bounds the delivery queue; the oldest pending task
	// is dropped under sustained overload.
	ForwardQueueSize int `yaml:"forward_queue_size"`
	// HeartbeatCodes lists periodic-test codes excluded from forwarding.
	HeartbeatCodes []string `yaml:"heartbeat_codes"`
	// IdleTimeout closes a panel connection with no complete frame.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	// ReplayCapacity bounds the in-memory replay buffer.
	ReplayCapacity int `yaml:"replay_capacity"`
	// Timezone is the zone panel timestamps are interpreted in.
	Timezone string `yaml:"timezone"`
}

const (
	// DefaultConfigFilename is the default filename for broker settings.
	DefaultConfigFilename = "sia-bridge-settings.yaml"

	// DefaultListenAddress binds the panel protocol on all interfaces.
	DefaultListenAddress = ":65100"

	// DefaultAdminAddress binds the admin HTTP surface.
	DefaultAdminAddress = ":8080"

	// DefaultForwardTimeout bounds one delivery attempt.
	DefaultForwardTimeout = 5 * time.Second

	// DefaultForwardMaxAttempts is the delivery retry budget.
	DefaultForwardMaxAttempts = 5

	// DefaultForwardRetryBaseDelay is the first retry backoff.
	DefaultForwardRetryBaseDelay = 500 * time.Millisecond

	// DefaultForwardQueueSize bounds the delivery queue.
	DefaultForwardQueueSize = 1024

	// DefaultIdleTimeout closes silent panel connections.
	DefaultIdleTimeout = 3 * time.Minute

	// DefaultReplayCapacity bounds the replay buffer.
	DefaultReplayCapacity = 1000

	// DefaultTimezone interprets panel timestamps.
	DefaultTimezone = "UTC"
)

var (
	// errForwardURLRequired is returned when no downstream target is set.
	errForwardURLRequired = errors.New("forward URL must be provided")
	// errNoAccounts is returned when the account list is empty.
	errNoAccounts = errors.New("at least one account must be configured")
	// errKeyLength is returned for keys outside the allowed sizes.
	errKeyLength = errors.New("account key must be 16, 24 or 32 characters")
)

// Load reads configuration from the provided path, overlays environment
// variables, and validates the result. A missing file at the default path
// is not an error so that pure-environment deployments work.
func Load(path string) (*Config, error) {
	usingDefault := path == ""
	if usingDefault {
		path = DefaultConfigFilename
	}

	var cfg Config

	contents, err := os.ReadFile(filepath.Clean(path))

	switch {
	case err == nil:
		if err = yaml.Unmarshal(contents, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	case usingDefault && os.IsNotExist(err):
		// Settings come entirely from the environment.
	default:
		return nil, fmt.Errorf("read settings: %w", err)
	}

	if err = applyEnvironment(&cfg); err != nil {
		return nil, err
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks required fields, fills defaults, and verifies formats.
func Validate(cfg *Config) error {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.ListenAddress); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}

	if cfg.AdminAddress == "" {
		cfg.AdminAddress = DefaultAdminAddress
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.AdminAddress); err != nil {
		return fmt.Errorf("invalid admin address: %w", err)
	}

	if len(cfg.Accounts) == 0 {
		return errNoAccounts
	}

	for _, account := range cfg.Accounts {
		switch len(account.Key) {
		case 0, 16, 24, 32:
		default:
			return fmt.Errorf("%w: account %q has %d", errKeyLength, account.ID, len(account.Key))
		}
	}

	if cfg.ForwardURL == "" {
		return errForwardURLRequired
	}

	if _, err := url.ParseRequestURI(cfg.ForwardURL); err != nil {
		return fmt.Errorf("invalid forward URL: %w", err)
	}

	if cfg.ForwardTimeout <= 0 {
		cfg.ForwardTimeout = DefaultForwardTimeout
	}

	if cfg.ForwardMaxAttempts <= 0 {
		cfg.ForwardMaxAttempts = DefaultForwardMaxAttempts
	}

	if cfg.ForwardRetryBaseDelay <= 0 {
		cfg.ForwardRetryBaseDelay = DefaultForwardRetryBaseDelay
	}

	if cfg.ForwardQueueSize <= 0 {
		cfg.ForwardQueueSize = DefaultForwardQueueSize
	}

	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}

	if cfg.ReplayCapacity <= 0 {
		cfg.ReplayCapacity = DefaultReplayCapacity
	}

	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}

	return nil
}

// Location returns the timezone panel timestamps are interpreted in.
// Validate has already checked the name, so failures fall back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}

	return loc
}

// applyEnvironment overlays environment variables onto the configuration.
// Environment wins over the file, matching the original deployment surface.
// A set but unparseable numeric value is a deployment mistake and fails the
// load rather than silently keeping the file value or default.
func applyEnvironment(cfg *Config) error {
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.ListenAddress, "SIA_LISTEN")
	setString(&cfg.AdminAddress, "ADMIN_LISTEN")
	setString(&cfg.ForwardURL, "FORWARD_URL")
	setString(&cfg.ForwardAuthHeader, "FORWARD_AUTH_HEADER")
	setString(&cfg.ForwardCookie, "FORWARD_COOKIE")
	setString(&cfg.Timezone, "APP_TIMEZONE")

	if err := setDuration(&cfg.ForwardTimeout, "FORWARD_TIMEOUT"); err != nil {
		return err
	}

	if err := setDuration(&cfg.ForwardRetryBaseDelay, "FORWARD_RETRY_BASE_DELAY"); err != nil {
		return err
	}

	if err := setDuration(&cfg.IdleTimeout, "IDLE_TIMEOUT"); err != nil {
		return err
	}

	if err := setInt(&cfg.ForwardMaxAttempts, "FORWARD_MAX_RETRIES"); err != nil {
		return err
	}

	if err := setInt(&cfg.ForwardQueueSize, "FORWARD_QUEUE_SIZE"); err != nil {
		return err
	}

	if err := setInt(&cfg.ReplayCapacity, "REPLAY_CAPACITY"); err != nil {
		return err
	}

	if headers, ok := os.LookupEnv("FORWARD_EXTRA_HEADERS"); ok && headers != "" {
		cfg.ForwardExtraHeaders = splitHeaders(headers)
	}

	if codes, ok := os.LookupEnv("HEARTBEAT_CODES"); ok {
		cfg.HeartbeatCodes = splitList(codes)
	}

	if accounts, ok := os.LookupEnv("SIA_ACCOUNTS"); ok {
		ids := splitList(accounts)
		keys := strings.Split(os.Getenv("SIA_KEYS"), ",")

		cfg.Accounts = make([]AccountConfig, 0, len(ids))

		for i, id := range ids {
			account := AccountConfig{ID: id}
			if i < len(keys) {
				account.Key = strings.TrimSpace(keys[i])
			}

			cfg.Accounts = append(cfg.Accounts, account)
		}
	}

	return nil
}

// splitHeaders parses a semicolon-separated list of "Name: Value" pairs;
// entries without a colon are skipped.
func splitHeaders(s string) map[string]string {
	headers := make(map[string]string)

	for _, pair := range strings.Split(s, ";") {
		name, value, found := strings.Cut(pair, ":")
		if !found {
			continue
		}

		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		headers[name] = strings.TrimSpace(value)
	}

	return headers
}

// splitList splits a comma-separated list, dropping empty entries.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}

	return out
}

// setString overlays a string setting from the environment.
func setString(target *string, name string) {
	if value, ok := os.LookupEnv(name); ok && value != "" {
		*target = value
	}
}

// setDuration overlays a duration setting; plain numbers mean seconds,
// keeping compatibility with the original numeric environment values.
func setDuration(target *time.Duration, name string) error {
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return nil
	}

	if parsed, err := time.ParseDuration(value); err == nil {
		*target = parsed

		return nil
	}

	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("environment %s: %q is neither a duration nor seconds", name, value)
	}

	*target = time.Duration(seconds * float64(time.Second))

	return nil
}

// setInt overlays an integer setting from the environment.
func setInt(target *int, name string) error {
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("environment %s: %q is not an integer", name, value)
	}

	*target = parsed

	return nil
}
