package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	AppID     string `yaml:"app_id"`     // fyne application ID, also scopes preferences
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	UserAgent string `yaml:"user_agent"` // optional platform probe override, e.g. "Android 12; HONOR ANY-LX1"

	Scan        ScanConfig       `yaml:"scan"`
	Permissions PermissionConfig `yaml:"permissions"`
	Printer     PrinterConfig    `yaml:"printer"`
}

// ScanConfig tunes the discovery pipeline. Zero durations keep the
// manufacturer defaults from the device profile.
type ScanConfig struct {
	TimeoutMs          int `yaml:"timeout_ms"`
	RetryDelayMs       int `yaml:"retry_delay_ms"`
	SettleMs           int `yaml:"settle_ms"`            // pause after enabling the radio
	DiscoveryWindowMs  int `yaml:"discovery_window_ms"`  // how long BlueZ inquiry runs per attempt
	MaxAttempts        int `yaml:"max_attempts"`
	SpecialMaxAttempts int `yaml:"special_max_attempts"` // budget for difficult devices
	JournalSize        int `yaml:"journal_size"`
	SeenTTLSeconds     int `yaml:"seen_ttl_seconds"`
}

// PermissionConfig tunes the permission negotiator.
type PermissionConfig struct {
	BatchSize    int `yaml:"batch_size"`
	BatchPauseMs int `yaml:"batch_pause_ms"`
}

// PrinterConfig describes the serial link to the receipt printer.
type PrinterConfig struct {
	RFCOMMChannel  int `yaml:"rfcomm_channel"`
	BaudRate       int `yaml:"baud_rate"`
	WriteChunk     int `yaml:"write_chunk"`      // bytes per serial write
	BytesPerSecond int `yaml:"bytes_per_second"` // write pacing, 0 disables
	PaperDots      int `yaml:"paper_dots"`       // 384 for 58mm, 576 for 80mm
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		AppID:    "gob.mercados.print",
		LogLevel: "info",
		Scan: ScanConfig{
			SettleMs:           2000,
			DiscoveryWindowMs:  8000,
			MaxAttempts:        3,
			SpecialMaxAttempts: 5,
			JournalSize:        20,
			SeenTTLSeconds:     300,
		},
		Permissions: PermissionConfig{
			BatchSize:    3,
			BatchPauseMs: 500,
		},
		Printer: PrinterConfig{
			RFCOMMChannel:  1,
			BaudRate:       115200,
			WriteChunk:     512,
			BytesPerSecond: 8192,
			PaperDots:      384,
		},
	}
}

// LoadConfig reads the config from a file or creates it if missing.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := DefaultConfig()
		if err := cfg.Save(path); err != nil {
			return nil, err
		}
		return cfg, nil
	} else if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

// fillDefaults restores defaults for fields explicitly zeroed in the file
// where zero is not a meaningful value.
func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.AppID == "" {
		c.AppID = def.AppID
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.Scan.MaxAttempts <= 0 {
		c.Scan.MaxAttempts = def.Scan.MaxAttempts
	}
	if c.Scan.SpecialMaxAttempts <= 0 {
		c.Scan.SpecialMaxAttempts = def.Scan.SpecialMaxAttempts
	}
	if c.Scan.JournalSize <= 0 {
		c.Scan.JournalSize = def.Scan.JournalSize
	}
	if c.Scan.SeenTTLSeconds <= 0 {
		c.Scan.SeenTTLSeconds = def.Scan.SeenTTLSeconds
	}
	if c.Permissions.BatchSize <= 0 {
		c.Permissions.BatchSize = def.Permissions.BatchSize
	}
	if c.Printer.RFCOMMChannel <= 0 {
		c.Printer.RFCOMMChannel = def.Printer.RFCOMMChannel
	}
	if c.Printer.BaudRate <= 0 {
		c.Printer.BaudRate = def.Printer.BaudRate
	}
	if c.Printer.WriteChunk <= 0 {
		c.Printer.WriteChunk = def.Printer.WriteChunk
	}
	if c.Printer.PaperDots <= 0 || c.Printer.PaperDots%8 != 0 {
		c.Printer.PaperDots = def.Printer.PaperDots
	}
}

// Save writes the config to disk.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// Timeout overrides the per-manufacturer scan timeout when non-zero.
func (s ScanConfig) Timeout() time.Duration { return ms(s.TimeoutMs) }

// RetryDelay overrides the per-manufacturer retry delay when non-zero.
func (s ScanConfig) RetryDelay() time.Duration { return ms(s.RetryDelayMs) }

func (s ScanConfig) Settle() time.Duration { return ms(s.SettleMs) }

func (s ScanConfig) DiscoveryWindow() time.Duration { return ms(s.DiscoveryWindowMs) }

func (s ScanConfig) SeenTTL() time.Duration { return time.Duration(s.SeenTTLSeconds) * time.Second }

func (p PermissionConfig) BatchPause() time.Duration { return ms(p.BatchPauseMs) }
