package main

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// profileConfig is a connection profile persisted as a TOML file, e.g.
// ~/.config/phnxcli/profile.toml. Secrets (shared_secret) are kept out of
// it deliberately; see loadSharedSecret.
type profileConfig struct {
	Server  ServerConfig  `toml:"server"`
	Timeout TimeoutConfig `toml:"timeout"`
}

// ServerConfig names the Phoenix endpoint and the identity query parameters
// the handshake is made with.
type ServerConfig struct {
	// URL is the ws:// or wss:// endpoint, e.g.
	// "ws://localhost:9002/socket/websocket".
	URL string `toml:"url"`
	// ID is sent as the "id" query parameter alongside shared_secret.
	ID string `toml:"id"`
}

// TimeoutConfig holds the durations used for Connect/Join/Call deadlines.
type TimeoutConfig struct {
	ConnectMS int `toml:"connect_ms,omitempty"`
	JoinMS    int `toml:"join_ms,omitempty"`
	CallMS    int `toml:"call_ms,omitempty"`
}

func defaultProfile() profileConfig {
	return profileConfig{
		Timeout: TimeoutConfig{ConnectMS: 5000, JoinMS: 5000, CallMS: 5000},
	}
}

// loadProfile reads a TOML profile from path, falling back to defaults for
// any timeout left at zero.
func loadProfile(path string) (profileConfig, error) {
	cfg := defaultProfile()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return profileConfig{}, fmt.Errorf("phnxcli: decode profile %s: %w", path, err)
	}
	if cfg.Timeout.ConnectMS == 0 {
		cfg.Timeout.ConnectMS = 5000
	}
	if cfg.Timeout.JoinMS == 0 {
		cfg.Timeout.JoinMS = 5000
	}
	if cfg.Timeout.CallMS == 0 {
		cfg.Timeout.CallMS = 5000
	}
	return cfg, nil
}

func (t TimeoutConfig) connect() time.Duration { return time.Duration(t.ConnectMS) * time.Millisecond }
func (t TimeoutConfig) join() time.Duration    { return time.Duration(t.JoinMS) * time.Millisecond }
func (t TimeoutConfig) call() time.Duration    { return time.Duration(t.CallMS) * time.Millisecond }

// loadSharedSecret loads PHNX_SHARED_SECRET from the process environment,
// falling back to a .env file in the working directory if present. This
// keeps credentials out of the TOML profile and out of shell history, the
// same split bamgate draws between its persisted config and its secrets
// file.
func loadSharedSecret() string {
	if v := os.Getenv("PHNX_SHARED_SECRET"); v != "" {
		return v
	}
	_ = godotenv.Load()
	return os.Getenv("PHNX_SHARED_SECRET")
}

// resolveURL appends the id and shared_secret query parameters to the
// profile's base URL, preserving any query parameters already present.
func resolveURL(cfg profileConfig, secret string) (string, error) {
	u, err := url.Parse(cfg.Server.URL)
	if err != nil {
		return "", fmt.Errorf("phnxcli: parse server url: %w", err)
	}
	q := u.Query()
	if cfg.Server.ID != "" {
		q.Set("id", cfg.Server.ID)
	}
	if secret != "" {
		q.Set("shared_secret", secret)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
