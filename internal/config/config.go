package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/multiformats/go-multiaddr"

	"github.com/Aneesh-Raskar/vemeego/internal/util"
)

// FileName is the config file kept in every peer directory.
const FileName = "vemeego.json"

type Config struct {
	Identity Identity `json:"identity" envPrefix:"IDENTITY_"`
	P2P      P2P      `json:"p2p" envPrefix:"P2P_"`
	Media    Media    `json:"media" envPrefix:"MEDIA_"`
	Store    Store    `json:"store" envPrefix:"STORE_"`
	Feed     Feed     `json:"feed" envPrefix:"FEED_"`
	Invite   Invite   `json:"invite" envPrefix:"INVITE_"`
	Logging  Logging  `json:"logging" envPrefix:"LOG_"`
}

type Identity struct {
	UserID      string `json:"user_id" env:"USER_ID"`
	DisplayName string `json:"display_name" env:"DISPLAY_NAME"`
}

type P2P struct {
	ListenPort int      `json:"listen_port" env:"LISTEN_PORT"`
	KeyFile    string   `json:"key_file" env:"KEY_FILE"`
	Bootstrap  []string `json:"bootstrap" env:"BOOTSTRAP"`
	Relays     []string `json:"relays" env:"RELAYS"`
	MDNS       bool     `json:"mdns" env:"MDNS"`
}

type Media struct {
	// Websocket URL of the SFU signaling endpoint. Empty disables calls.
	SignalURL  string   `json:"signal_url" env:"SIGNAL_URL"`
	ICEServers []string `json:"ice_servers" env:"ICE_SERVERS"`
}

type Store struct {
	// Relative to the peer directory.
	Dir string `json:"dir" env:"DIR"`
}

// Feed is the shared store and change feed served by "vemeego feed".
type Feed struct {
	Addr string `json:"addr" env:"ADDR"`
	// Base URL peers use to reach Addr.
	URL string `json:"url" env:"URL"`
}

type Invite struct {
	TimeoutSec     int `json:"timeout_seconds" env:"TIMEOUT_SECONDS"`
	RingIntervalMs int `json:"ring_interval_ms" env:"RING_INTERVAL_MS"`
}

type Logging struct {
	Level string `json:"level" env:"LEVEL"`
}

func Default() Config {
	return Config{
		P2P: P2P{
			ListenPort: 0,
			KeyFile:    "data/identity.key",
			MDNS:       true,
		},
		Media: Media{
			ICEServers: []string{"stun:stun.l.google.com:19302"},
		},
		Store: Store{
			Dir: "data",
		},
		Feed: Feed{
			Addr: "127.0.0.1:8790",
			URL:  "http://127.0.0.1:8790",
		},
		Invite: Invite{
			TimeoutSec:     60,
			RingIntervalMs: 1500,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

var levels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
	"dpanic": true, "panic": true, "fatal": true,
}

func (c *Config) Validate() error {
	// P2P
	if c.P2P.ListenPort < 0 || c.P2P.ListenPort > 65535 {
		return errors.New("p2p.listen_port must be 0..65535")
	}
	if strings.TrimSpace(c.P2P.KeyFile) == "" {
		return errors.New("p2p.key_file is required")
	}
	for _, s := range append(append([]string{}, c.P2P.Bootstrap...), c.P2P.Relays...) {
		if _, err := multiaddr.NewMultiaddr(s); err != nil {
			return fmt.Errorf("p2p: invalid multiaddr %q: %w", s, err)
		}
	}

	// Media
	if s := strings.TrimSpace(c.Media.SignalURL); s != "" {
		if err := validateURL(s, "ws", "wss"); err != nil {
			return fmt.Errorf("media.signal_url: %w", err)
		}
	}

	// Store
	if strings.TrimSpace(c.Store.Dir) == "" {
		return errors.New("store.dir is required")
	}

	// Feed
	if strings.TrimSpace(c.Feed.Addr) == "" {
		return errors.New("feed.addr is required")
	}
	if err := validateURL(c.Feed.URL, "ws", "wss", "http", "https"); err != nil {
		return fmt.Errorf("feed.url: %w", err)
	}

	// Invite
	if c.Invite.TimeoutSec < 1 || c.Invite.TimeoutSec > 600 {
		return errors.New("invite.timeout_seconds must be 1..600")
	}
	if c.Invite.RingIntervalMs < 0 {
		return errors.New("invite.ring_interval_ms must be >= 0")
	}

	if !levels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level %q is not a known level", c.Logging.Level)
	}
	return nil
}

func validateURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %v", err)
	}
	ok := false
	for _, s := range schemes {
		if u.Scheme == s {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("scheme must be one of %s", strings.Join(schemes, ", "))
	}
	if u.Hostname() == "" {
		return errors.New("missing host")
	}
	return nil
}

// ApplyEnv overrides cfg with VEMEEGO_* environment variables.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "VEMEEGO_"}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the config file, applies environment overrides and validates
// the result.
func Load(path string) (Config, error) {
	cfg, err := LoadPartial(path)
	if err != nil {
		return Config{}, err
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadPartial reads a config file without environment overrides or
// validation.
func LoadPartial(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	b = stripBOM(b)

	// Start from defaults so missing JSON fields remain initialized.
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// stripBOM removes a UTF-8 byte order mark if present.
func stripBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}

func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return util.WriteJSONFile(path, cfg)
}

// Ensure loads config if it exists; otherwise creates a default config file.
// Returns (cfg, createdNew, err).
func Ensure(path string) (Config, bool, error) {
	if _, err := os.Stat(path); err == nil {
		cfg, err := Load(path)
		return cfg, false, err
	} else if !os.IsNotExist(err) {
		return Config{}, false, err
	}

	cfg := Default()
	if err := Save(path, cfg); err != nil {
		return Config{}, false, fmt.Errorf("create default config: %w", err)
	}
	if err := ApplyEnv(&cfg); err != nil {
		return Config{}, false, err
	}
	return cfg, true, cfg.Validate()
}
