// Package config loads the daemon's sectioned key/value settings file.
//
// The file path comes from the CONFIG_FILE environment variable, falling
// back to /etc/frost-doh/config.prod.ini. Its absence is fatal: a daemon
// answering name lookups with no known upstream or store path has nothing
// useful to do.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

const defaultConfigPath = "/etc/frost-doh/config.prod.ini"

// TTLPolicy selects how cache expirations are computed.
type TTLPolicy struct {
	UseUpstream bool
	FixedSecs   int64
}

// Config is the fully parsed, defaulted settings.
type Config struct {
	Provider        string // "google" or "cloudflare"
	TTL             TTLPolicy
	SQLitePath      string
	LoggingLevel    string
	LoggingJSON     bool
	DiagnosticsOn   bool
	DiagnosticsAddr string
}

// Path resolves the config file location: CONFIG_FILE env var, else the
// compiled-in default.
func Path() string {
	if p := os.Getenv("CONFIG_FILE"); p != "" {
		return p
	}
	return defaultConfigPath
}

// Load reads and parses the settings file at path. A missing file is a
// fatal error to the caller (the daemon has nothing safe to default to
// for the upstream/store location).
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s is required: %w", path, err)
	}

	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	cfg := &Config{
		Provider:        loadProvider(f),
		TTL:             loadTTL(f),
		SQLitePath:      f.Section("sqlite").Key("connection").MustString("doh.db"),
		LoggingLevel:    strings.ToUpper(f.Section("logging").Key("level").MustString("info")),
		LoggingJSON:     f.Section("logging").Key("json").MustBool(false),
		DiagnosticsOn:   f.Section("diagnostics").Key("enabled").MustBool(false),
		DiagnosticsAddr: f.Section("diagnostics").Key("listen").MustString("127.0.0.1:8080"),
	}
	return cfg, nil
}

func loadProvider(f *ini.File) string {
	if strings.EqualFold(f.Section("resolver").Key("provider").String(), "cloudflare") {
		return "cloudflare"
	}
	return "google"
}

func loadTTL(f *ini.File) TTLPolicy {
	raw := strings.TrimSpace(f.Section("resolver").Key("ttl").MustString("default"))
	if strings.EqualFold(raw, "default") {
		return TTLPolicy{UseUpstream: true}
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return TTLPolicy{UseUpstream: false, FixedSecs: 60}
	}
	return TTLPolicy{UseUpstream: false, FixedSecs: secs}
}
