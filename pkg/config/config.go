package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"tarun-kavipurapu/rcmd/pkg/logger"
	"tarun-kavipurapu/rcmd/pkg/transport/tcp"
)

const DefaultPort = 1729

type ServerConfig struct {
	Addr          string
	CaptureFile   string
	MaxFrameBytes int
	IdleTimeout   time.Duration
	Advertise     bool
	Instance      string
	MetricsAddr   string
	Log           logger.Config
}

type ClientConfig struct {
	Server          string
	ReceivedFile    string
	MaxFrameBytes   int
	Discover        bool
	DiscoverTimeout time.Duration
	Log             logger.Config
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:          fmt.Sprintf("0.0.0.0:%d", DefaultPort),
		CaptureFile:   "screen.jpg",
		MaxFrameBytes: tcp.DefaultMaxFrameBytes,
		Log: logger.Config{
			File:    "logs/rcmd-server.log",
			Level:   "info",
			Console: false,
		},
	}
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Server:          fmt.Sprintf("127.0.0.1:%d", DefaultPort),
		ReceivedFile:    "received_screen.jpg",
		MaxFrameBytes:   tcp.DefaultMaxFrameBytes,
		DiscoverTimeout: 3 * time.Second,
		Log: logger.Config{
			Level: "info",
		},
	}
}

// Limits converts the configured frame bound into transport limits.
func (c ServerConfig) Limits() tcp.Limits {
	return tcp.Limits{MaxHeaderDigits: tcp.DefaultMaxHeaderDigits, MaxFrameBytes: c.MaxFrameBytes}
}

func (c ClientConfig) Limits() tcp.Limits {
	return tcp.Limits{MaxHeaderDigits: tcp.DefaultMaxHeaderDigits, MaxFrameBytes: c.MaxFrameBytes}
}

type serverFile struct {
	Addr          string `toml:"addr"`
	CaptureFile   string `toml:"capture_file"`
	MaxFrameBytes int    `toml:"max_frame_bytes"`
	IdleTimeout   string `toml:"idle_timeout"`
	Advertise     bool   `toml:"advertise"`
	Instance      string `toml:"instance"`
	MetricsAddr   string `toml:"metrics_addr"`
	LogFile       string `toml:"log_file"`
	LogLevel      string `toml:"log_level"`
	LogConsole    bool   `toml:"log_console"`
}

type clientFile struct {
	Server          string `toml:"server"`
	ReceivedFile    string `toml:"received_file"`
	MaxFrameBytes   int    `toml:"max_frame_bytes"`
	Discover        bool   `toml:"discover"`
	DiscoverTimeout string `toml:"discover_timeout"`
	LogFile         string `toml:"log_file"`
	LogLevel        string `toml:"log_level"`
}

// LoadServer overlays the keys present in a TOML file onto the defaults.
func LoadServer(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()

	var raw serverFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("load server config: %w", err)
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("capture_file") {
		cfg.CaptureFile = strings.TrimSpace(raw.CaptureFile)
	}
	if meta.IsDefined("max_frame_bytes") {
		if raw.MaxFrameBytes <= 0 {
			return ServerConfig{}, fmt.Errorf("max_frame_bytes must be positive, got %d", raw.MaxFrameBytes)
		}
		cfg.MaxFrameBytes = raw.MaxFrameBytes
	}
	if meta.IsDefined("idle_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.IdleTimeout))
		if err != nil {
			return ServerConfig{}, fmt.Errorf("parse idle_timeout: %w", err)
		}
		cfg.IdleTimeout = d
	}
	if meta.IsDefined("advertise") {
		cfg.Advertise = raw.Advertise
	}
	if meta.IsDefined("instance") {
		cfg.Instance = strings.TrimSpace(raw.Instance)
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}
	if meta.IsDefined("log_file") {
		cfg.Log.File = strings.TrimSpace(raw.LogFile)
	}
	if meta.IsDefined("log_level") {
		cfg.Log.Level = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("log_console") {
		cfg.Log.Console = raw.LogConsole
	}

	return cfg, nil
}

func LoadClient(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig()

	var raw clientFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("load client config: %w", err)
	}

	if meta.IsDefined("server") {
		cfg.Server = strings.TrimSpace(raw.Server)
	}
	if meta.IsDefined("received_file") {
		cfg.ReceivedFile = strings.TrimSpace(raw.ReceivedFile)
	}
	if meta.IsDefined("max_frame_bytes") {
		if raw.MaxFrameBytes <= 0 {
			return ClientConfig{}, fmt.Errorf("max_frame_bytes must be positive, got %d", raw.MaxFrameBytes)
		}
		cfg.MaxFrameBytes = raw.MaxFrameBytes
	}
	if meta.IsDefined("discover") {
		cfg.Discover = raw.Discover
	}
	if meta.IsDefined("discover_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.DiscoverTimeout))
		if err != nil {
			return ClientConfig{}, fmt.Errorf("parse discover_timeout: %w", err)
		}
		cfg.DiscoverTimeout = d
	}
	if meta.IsDefined("log_file") {
		cfg.Log.File = strings.TrimSpace(raw.LogFile)
	}
	if meta.IsDefined("log_level") {
		cfg.Log.Level = strings.TrimSpace(raw.LogLevel)
	}

	return cfg, nil
}
