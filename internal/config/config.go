package config

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"airguard/internal/tracks"
)

type Config struct {
	LogLevel  string          `json:"log_level" yaml:"log_level"`
	LogFormat string          `json:"log_format" yaml:"log_format"`
	Ingest    IngestConfig    `json:"ingest" yaml:"ingest"`
	Decoder   DecoderConfig   `json:"decoder" yaml:"decoder"`
	Detection DetectionConfig `json:"detection" yaml:"detection"`
	Trusted   TrustedConfig   `json:"trusted" yaml:"trusted"`
	Recorder  RecorderConfig  `json:"recorder" yaml:"recorder"`
	Waterfall WaterfallConfig `json:"waterfall" yaml:"waterfall"`
	Tracks    tracks.Config   `json:"tracks" yaml:"tracks"`
	API       APIConfig       `json:"api" yaml:"api"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics"`
	Alerts    AlertsConfig    `json:"alerts" yaml:"alerts"`
}

type IngestConfig struct {
	ChannelBuffer int             `json:"channel_buffer" yaml:"channel_buffer"`
	Workers       int             `json:"workers" yaml:"workers"`
	REST          RESTConfig      `json:"rest" yaml:"rest"`
	Kafka         KafkaConfig     `json:"kafka" yaml:"kafka"`
	Pcap          PcapConfig      `json:"pcap" yaml:"pcap"`
	TCPStream     TCPStreamConfig `json:"tcp_stream" yaml:"tcp_stream"`
}

type RESTConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type KafkaConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Brokers []string `json:"brokers" yaml:"brokers"`
	Topic   string   `json:"topic" yaml:"topic"`
	GroupID string   `json:"group_id" yaml:"group_id"`
}

type TCPStreamConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
	// Tap names captures from connections that do not send a tap= line.
	Tap string `json:"tap" yaml:"tap"`
}

type PcapConfig struct {
	Enabled bool     `json:"enabled" yaml:"enabled"`
	Files   []string `json:"files" yaml:"files"`
	Tap     string   `json:"tap" yaml:"tap"`
}

type DecoderConfig struct {
	Anonymize bool `json:"anonymize" yaml:"anonymize"`
	// AnonymizationKey is hex encoded, at most 64 bytes.
	AnonymizationKey string `json:"anonymization_key" yaml:"anonymization_key"`
}

type DetectionConfig struct {
	AlertCooldown  time.Duration `json:"alert_cooldown" yaml:"alert_cooldown"`
	DedupeWindow   time.Duration `json:"dedupe_window" yaml:"dedupe_window"`
	ContactTimeout time.Duration `json:"contact_timeout" yaml:"contact_timeout"`
	// CustomBandits is an optional YAML file of additional bandit definitions.
	CustomBandits string `json:"custom_bandits" yaml:"custom_bandits"`
}

type TrustedConfig struct {
	Enabled         bool                `json:"enabled" yaml:"enabled"`
	Transmitters    []string            `json:"transmitters" yaml:"transmitters"`
	TapTransmitters map[string][]string `json:"tap_transmitters" yaml:"tap_transmitters"`
}

type RecorderConfig struct {
	FlushInterval time.Duration `json:"flush_interval" yaml:"flush_interval"`
}

type WaterfallConfig struct {
	Enabled bool          `json:"enabled" yaml:"enabled"`
	Bucket  time.Duration `json:"bucket" yaml:"bucket"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

type StorageConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Driver  string `json:"driver" yaml:"driver"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

type MetricsConfig struct {
	StoreLimit int  `json:"store_limit" yaml:"store_limit"`
	Prometheus bool `json:"prometheus" yaml:"prometheus"`
}

type AlertsConfig struct {
	StoreLimit int `json:"store_limit" yaml:"store_limit"`
}

func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "json",
		Ingest: IngestConfig{
			ChannelBuffer: 10000,
			Workers:       4,
			REST:          RESTConfig{Enabled: true, Addr: ":8080"},
			Kafka:         KafkaConfig{Enabled: false},
			Pcap:          PcapConfig{Enabled: false, Tap: "pcap"},
			TCPStream:     TCPStreamConfig{Enabled: false, Addr: ":8082", Tap: "tcp"},
		},
		Detection: DetectionConfig{
			AlertCooldown:  30 * time.Second,
			DedupeWindow:   1 * time.Second,
			ContactTimeout: 5 * time.Minute,
		},
		Trusted:   TrustedConfig{Enabled: false},
		Recorder:  RecorderConfig{FlushInterval: time.Minute},
		Waterfall: WaterfallConfig{Enabled: true, Bucket: time.Minute},
		Tracks:    tracks.DefaultConfig(),
		API:       APIConfig{Enabled: true, Addr: ":8081"},
		Storage:   StorageConfig{Enabled: false, Driver: "sqlite", DSN: "file:airguard.db?_pragma=busy_timeout(5000)"},
		Metrics:   MetricsConfig{StoreLimit: 5000, Prometheus: true},
		Alerts:    AlertsConfig{StoreLimit: 1000},
	}
}

func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()

	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("config file is empty")
	}
	var decodeErr error
	if looksLikeJSON(trimmed) {
		decodeErr = json.Unmarshal([]byte(trimmed), cfg)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), cfg)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	if path == "" || cfg == nil {
		return errors.New("config path or config is empty")
	}
	var data []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func looksLikeJSON(s string) bool {
	for _, ch := range s {
		if ch == '{' || ch == '[' {
			return true
		}
		if ch > ' ' {
			return false
		}
	}
	return false
}

func applyDefaults(cfg *Config) {
	if cfg.Metrics.StoreLimit <= 0 {
		cfg.Metrics.StoreLimit = 5000
	}
	if cfg.Alerts.StoreLimit <= 0 {
		cfg.Alerts.StoreLimit = 1000
	}
	if cfg.Ingest.ChannelBuffer <= 0 {
		cfg.Ingest.ChannelBuffer = 10000
	}
	if cfg.Ingest.Workers <= 0 {
		cfg.Ingest.Workers = 4
	}
	if cfg.Ingest.Pcap.Tap == "" {
		cfg.Ingest.Pcap.Tap = "pcap"
	}
	if cfg.Ingest.TCPStream.Tap == "" {
		cfg.Ingest.TCPStream.Tap = "tcp"
	}
	if cfg.Recorder.FlushInterval <= 0 {
		cfg.Recorder.FlushInterval = time.Minute
	}
	if cfg.Waterfall.Bucket <= 0 {
		cfg.Waterfall.Bucket = time.Minute
	}
	if cfg.Detection.ContactTimeout <= 0 {
		cfg.Detection.ContactTimeout = 5 * time.Minute
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
}

// AnonymizationKey decodes the configured key.
func (c *Config) AnonymizationKey() ([]byte, error) {
	return hex.DecodeString(c.Decoder.AnonymizationKey)
}

func Validate(cfg *Config) error {
	if cfg.API.Enabled && cfg.API.Addr == "" {
		return errors.New("api.addr required when api.enabled is true")
	}
	if cfg.Ingest.REST.Enabled && cfg.Ingest.REST.Addr == "" {
		return errors.New("ingest.rest.addr required when ingest.rest.enabled is true")
	}
	if cfg.Ingest.Kafka.Enabled {
		if len(cfg.Ingest.Kafka.Brokers) == 0 || cfg.Ingest.Kafka.Topic == "" || cfg.Ingest.Kafka.GroupID == "" {
			return errors.New("ingest.kafka requires brokers, topic, group_id")
		}
	}
	if cfg.Ingest.TCPStream.Enabled && cfg.Ingest.TCPStream.Addr == "" {
		return errors.New("ingest.tcp_stream.addr required when ingest.tcp_stream.enabled is true")
	}
	if cfg.Ingest.Pcap.Enabled && len(cfg.Ingest.Pcap.Files) == 0 {
		return errors.New("ingest.pcap.files required when ingest.pcap.enabled is true")
	}
	if cfg.Decoder.Anonymize {
		key, err := cfg.AnonymizationKey()
		if err != nil {
			return fmt.Errorf("decoder.anonymization_key: %w", err)
		}
		if len(key) == 0 || len(key) > 64 {
			return errors.New("decoder.anonymization_key must be 1 to 64 bytes when decoder.anonymize is true")
		}
	}
	if cfg.Detection.AlertCooldown < 0 {
		return errors.New("detection.alert_cooldown must be >= 0")
	}
	if cfg.Detection.DedupeWindow < 0 {
		return errors.New("detection.dedupe_window must be >= 0")
	}
	if err := cfg.Tracks.Validate(); err != nil {
		return fmt.Errorf("tracks: %w", err)
	}
	switch cfg.Storage.Driver {
	case "sqlite", "postgres", "postgresql":
	default:
		if cfg.Storage.Enabled {
			return fmt.Errorf("storage.driver %q not supported", cfg.Storage.Driver)
		}
	}
	return nil
}

type Manager struct {
	path    string
	cfg     atomic.Value
	modTime time.Time
}

func NewManager(path string) (*Manager, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: path}
	m.cfg.Store(cfg)
	info, err := os.Stat(path)
	if err == nil {
		m.modTime = info.ModTime()
	}
	return m, nil
}

// NewStaticManager serves a fixed config that was not loaded from a file.
func NewStaticManager(cfg *Config) *Manager {
	m := &Manager{}
	m.cfg.Store(cfg)
	return m
}

func (m *Manager) Get() *Config {
	if v := m.cfg.Load(); v != nil {
		return v.(*Config)
	}
	return DefaultConfig()
}

func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Reload() (*Config, error) {
	if m.path == "" {
		return m.Get(), nil
	}
	cfg, err := Load(m.path)
	if err != nil {
		return nil, err
	}
	m.cfg.Store(cfg)
	if info, err := os.Stat(m.path); err == nil {
		m.modTime = info.ModTime()
	}
	return cfg, nil
}

func (m *Manager) Update(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := Validate(cfg); err != nil {
		return err
	}
	if m.path != "" {
		if err := Save(m.path, cfg); err != nil {
			return err
		}
		if info, err := os.Stat(m.path); err == nil {
			m.modTime = info.ModTime()
		}
	}
	m.cfg.Store(cfg)
	return nil
}

func (m *Manager) NeedsReload() (bool, error) {
	if m.path == "" {
		return false, nil
	}
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}
	return info.ModTime().After(m.modTime), nil
}

// Watcher polls the config file and reloads it on change. It runs as a
// supervised service.
type Watcher struct {
	Manager  *Manager
	Interval time.Duration
	OnReload func(*Config)
	OnError  func(error)
}

func (w *Watcher) Serve(ctx context.Context) error {
	interval := w.Interval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			needs, err := w.Manager.NeedsReload()
			if err != nil {
				if w.OnError != nil {
					w.OnError(err)
				}
				continue
			}
			if !needs {
				continue
			}
			cfg, err := w.Manager.Reload()
			if err != nil {
				if w.OnError != nil {
					w.OnError(err)
				}
				continue
			}
			if w.OnReload != nil {
				w.OnReload(cfg)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Watcher) String() string { return "config-watcher" }

func ResolvePath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	return filepath.Join(cwd, path)
}
