package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks required fields and format validations.
func TestValidate(t *testing.T) {
	t.Parallel()

	// No accounts.
	cfg := new(Config)

	err := Validate(cfg)
	require.Error(t, err)

	// Bad key length.
	cfg = &Config{
		Accounts: []AccountConfig{{ID: "AAA", Key: "short"}},
	}

	err = Validate(cfg)
	require.Error(t, err)

	// Missing forward URL.
	cfg = &Config{
		Accounts: []AccountConfig{{ID: "AAA"}},
	}

	err = Validate(cfg)
	require.Error(t, err)

	// Bad listen address.
	cfg = &Config{
		ListenAddress: "bad:address",
		Accounts:      []AccountConfig{{ID: "AAA"}},
		ForwardURL:    "http://localhost:9000/ingest",
	}

	err = Validate(cfg)
	require.Error(t, err)

	// Okay; defaults fill in.
	cfg = &Config{
		Accounts:   []AccountConfig{{ID: "AAA"}, {ID: "EEE", Key: "0123456789ABCDEF"}},
		ForwardURL: "http://localhost:9000/ingest",
	}

	err = Validate(cfg)
	require.NoError(t, err)
	require.Equal(t, DefaultListenAddress, cfg.ListenAddress)
	require.Equal(t, DefaultForwardTimeout, cfg.ForwardTimeout)
	require.Equal(t, DefaultForwardMaxAttempts, cfg.ForwardMaxAttempts)
	require.Equal(t, DefaultReplayCapacity, cfg.ReplayCapacity)
	require.Equal(t, DefaultTimezone, cfg.Timezone)
}

// TestLoad_File loads and validates a settings file.
func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	contents := `
listen_addr: "127.0.0.1:65100"
forward_url: "http://127.0.0.1:9000/ingest"
idle_timeout: 2m
heartbeat_codes: [YK, RP]
accounts:
  - id: AAA
  - id: EEE
    key: 0123456789ABCDEF
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:65100", cfg.ListenAddress)
	require.Equal(t, 2*time.Minute, cfg.IdleTimeout)
	require.Equal(t, []string{"YK", "RP"}, cfg.HeartbeatCodes)
	require.Len(t, cfg.Accounts, 2)
	require.Equal(t, "0123456789ABCDEF", cfg.Accounts[1].Key)
}

// TestLoad_MissingExplicitFile fails when a named settings file is absent.
func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

// TestLoad_EnvironmentOverlay verifies environment wins over the file.
func TestLoad_EnvironmentOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	contents := `
forward_url: "http://127.0.0.1:9000/ingest"
accounts:
  - id: AAA
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	t.Setenv("SIA_ACCOUNTS", "BBB,CCC")
	t.Setenv("SIA_KEYS", ",0123456789ABCDEF")
	t.Setenv("FORWARD_URL", "http://127.0.0.1:9999/other")
	t.Setenv("FORWARD_TIMEOUT", "2.5")
	t.Setenv("FORWARD_MAX_RETRIES", "7")
	t.Setenv("HEARTBEAT_CODES", "YK, HB")
	t.Setenv("FORWARD_COOKIE", "session=abc; theme=dark")
	t.Setenv("FORWARD_EXTRA_HEADERS", "X-Tenant: ops;X-Source:sia")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "http://127.0.0.1:9999/other", cfg.ForwardURL)
	require.Equal(t, "session=abc; theme=dark", cfg.ForwardCookie)
	require.Equal(t, map[string]string{"X-Tenant": "ops", "X-Source": "sia"}, cfg.ForwardExtraHeaders)
	require.Equal(t, 2500*time.Millisecond, cfg.ForwardTimeout)
	require.Equal(t, 7, cfg.ForwardMaxAttempts)
	require.Equal(t, []string{"YK", "HB"}, cfg.HeartbeatCodes)

	require.Len(t, cfg.Accounts, 2)
	require.Equal(t, "BBB", cfg.Accounts[0].ID)
	require.Empty(t, cfg.Accounts[0].Key)
	require.Equal(t, "CCC", cfg.Accounts[1].ID)
	require.Equal(t, "0123456789ABCDEF", cfg.Accounts[1].Key)
}

// TestLoad_BadEnvironmentNumerics verifies an unparseable numeric override
// fails the load instead of silently keeping the previous value.
func TestLoad_BadEnvironmentNumerics(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	contents := `
forward_url: "http://127.0.0.1:9000/ingest"
accounts:
  - id: AAA
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	t.Setenv("FORWARD_MAX_RETRIES", "abc")

	_, err := Load(path)
	require.ErrorContains(t, err, "FORWARD_MAX_RETRIES")

	t.Setenv("FORWARD_MAX_RETRIES", "")
	t.Setenv("FORWARD_TIMEOUT", "soon")

	_, err = Load(path)
	require.ErrorContains(t, err, "FORWARD_TIMEOUT")
}

// TestLocation falls back to UTC for unknown zones.
func TestLocation(t *testing.T) {
	t.Parallel()

	cfg := &Config{Timezone: "Asia/Jakarta"}
	require.Equal(t, "Asia/Jakarta", cfg.Location().String())

	cfg = &Config{Timezone: "Not/AZone"}
	require.Equal(t, time.UTC, cfg.Location())
}
