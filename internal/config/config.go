// SPDX-License-Identifier: MIT

// Package config loads and validates the application configuration.
// Precedence for every setting: command-line flag > environment variable >
// config file > built-in default. The resulting Config is an immutable
// snapshot; a refresh run never observes a half-updated configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults match the documented deployment values.
const (
	DefaultHost        = "10.0.0.101"
	DefaultControlPort = 80
	DefaultStreamPort  = 8001
	DefaultBouquet     = "userbouquet.f52ab.tv"
	DefaultDataDir     = "data"
	DefaultXMLTVFile   = "epg.xml"
	DefaultM3UFile     = "playlist.m3u"
	DefaultInterval    = 60 * time.Minute
	DefaultListenAddr  = ":8080"
	DefaultCacheTTL    = 24 * time.Hour
)

// Config is the immutable configuration snapshot for one process. The
// generation pipeline receives it by value, so a future config reload can
// hand a fresh snapshot to the next run without racing an in-flight one.
type Config struct {
	Host        string        // Enigma2 box IP or hostname
	ControlPort int           // OpenWebIf control (web API) port
	StreamPort  int           // OpenWebIf stream port
	Bouquet     string        // bouquet name to resolve
	DataDir     string        // directory for generated artifacts and the cache
	XMLTVFile   string        // XMLTV output filename, relative to DataDir
	M3UFile     string        // M3U output filename, relative to DataDir
	Interval    time.Duration // regeneration interval
	ListenAddr  string        // HTTP listen address for the file endpoints
	CacheTTL    time.Duration // upstream response cache TTL; 0 disables the cache
	LogLevel    string
}

// fileConfig mirrors Config for the optional YAML config file. Pointer
// fields distinguish "absent" from zero values.
type fileConfig struct {
	Host        *string `yaml:"host"`
	ControlPort *int    `yaml:"control_port"`
	StreamPort  *int    `yaml:"stream_port"`
	Bouquet     *string `yaml:"bouquet"`
	DataDir     *string `yaml:"data_dir"`
	XMLTVFile   *string `yaml:"epg_file"`
	M3UFile     *string `yaml:"m3u_file"`
	Interval    *string `yaml:"interval"`
	ListenAddr  *string `yaml:"listen"`
	CacheTTL    *string `yaml:"cache_ttl"`
	LogLevel    *string `yaml:"log_level"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Host:        DefaultHost,
		ControlPort: DefaultControlPort,
		StreamPort:  DefaultStreamPort,
		Bouquet:     DefaultBouquet,
		DataDir:     DefaultDataDir,
		XMLTVFile:   DefaultXMLTVFile,
		M3UFile:     DefaultM3UFile,
		Interval:    DefaultInterval,
		ListenAddr:  DefaultListenAddr,
		CacheTTL:    DefaultCacheTTL,
		LogLevel:    "info",
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// the environment, in that order. Flags are applied afterwards by the caller.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)

	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.Host, fc.Host)
	setInt(&cfg.ControlPort, fc.ControlPort)
	setInt(&cfg.StreamPort, fc.StreamPort)
	setString(&cfg.Bouquet, fc.Bouquet)
	setString(&cfg.DataDir, fc.DataDir)
	setString(&cfg.XMLTVFile, fc.XMLTVFile)
	setString(&cfg.M3UFile, fc.M3UFile)
	setString(&cfg.ListenAddr, fc.ListenAddr)
	setString(&cfg.LogLevel, fc.LogLevel)
	if err := setDuration(&cfg.Interval, fc.Interval); err != nil {
		return fmt.Errorf("config file %s: interval: %w", path, err)
	}
	if err := setDuration(&cfg.CacheTTL, fc.CacheTTL); err != nil {
		return fmt.Errorf("config file %s: cache_ttl: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Host = ParseString("E2J_HOST", cfg.Host)
	cfg.ControlPort = ParseInt("E2J_CONTROL_PORT", cfg.ControlPort)
	cfg.StreamPort = ParseInt("E2J_STREAM_PORT", cfg.StreamPort)
	cfg.Bouquet = ParseString("E2J_BOUQUET", cfg.Bouquet)
	cfg.DataDir = ParseString("E2J_DATA", cfg.DataDir)
	cfg.XMLTVFile = ParseString("E2J_EPG_FILE", cfg.XMLTVFile)
	cfg.M3UFile = ParseString("E2J_M3U_FILE", cfg.M3UFile)
	cfg.Interval = ParseDuration("E2J_INTERVAL", cfg.Interval)
	cfg.ListenAddr = ParseString("E2J_LISTEN", cfg.ListenAddr)
	cfg.CacheTTL = ParseDuration("E2J_CACHE_TTL", cfg.CacheTTL)
	cfg.LogLevel = ParseString("E2J_LOG_LEVEL", cfg.LogLevel)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

// Validate reports the first configuration error, if any.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host must not be empty")
	}
	if c.ControlPort < 1 || c.ControlPort > 65535 {
		return fmt.Errorf("control port %d out of range", c.ControlPort)
	}
	if c.StreamPort < 1 || c.StreamPort > 65535 {
		return fmt.Errorf("stream port %d out of range", c.StreamPort)
	}
	if c.Bouquet == "" {
		return fmt.Errorf("bouquet must not be empty")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory must not be empty")
	}
	return nil
}

// ControlBaseURL is the base URL of the OpenWebIf control API.
func (c Config) ControlBaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.ControlPort)
}

// StreamBaseURL is the base URL channels are streamed from.
func (c Config) StreamBaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.StreamPort)
}

// XMLTVPath is the absolute-or-relative path of the XMLTV artifact.
func (c Config) XMLTVPath() string {
	return filepath.Join(c.DataDir, c.XMLTVFile)
}

// M3UPath is the path of the playlist artifact.
func (c Config) M3UPath() string {
	return filepath.Join(c.DataDir, c.M3UFile)
}
