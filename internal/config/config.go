// Package config loads beepseq settings from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	SampleRate int `yaml:"sample_rate"`
	// Volume is nil until set so that an explicit 0 mutes.
	Volume          *float64 `yaml:"volume"`
	HistoryCapacity int      `yaml:"history_capacity"`
	TabWidth        int      `yaml:"tab_width"`

	Parser struct {
		MinFrequency  int `yaml:"min_frequency"`
		MaxFrequency  int `yaml:"max_frequency"`
		MaxDurationMs int `yaml:"max_duration_ms"`
		MaxDepth      int `yaml:"max_depth"`
	} `yaml:"parser"`

	Autosave Autosave `yaml:"autosave"`
	Sentry   Sentry   `yaml:"sentry"`
	Log      Log      `yaml:"log"`
	Server   Server   `yaml:"server"`
	Theme    Theme    `yaml:"theme"`
}

// Autosave writes the working text to Path once edits pause for Delay.
// An empty Path disables it.
type Autosave struct {
	Path  string        `yaml:"path"`
	Delay time.Duration `yaml:"delay"`
}

// Sentry reporting is off when DSN is empty.
type Sentry struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

type Log struct {
	Debug bool `yaml:"debug"`
}

type Server struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// Theme is handed to whatever surface renders the editor. Nothing here
// interprets it.
type Theme struct {
	Background string `yaml:"background"`
	Foreground string `yaml:"foreground"`
	Surface    string `yaml:"surface"`
	Active     string `yaml:"active"`
	FontFamily string `yaml:"font_family"`
	FontSize   int    `yaml:"font_size"`
}

func DefaultTheme() Theme {
	return Theme{
		Background: "#2D2D2D",
		Foreground: "#F8F9FA",
		Surface:    "#2B2B2B",
		Active:     "#404040",
		FontFamily: "Consolas",
		FontSize:   12,
	}
}

func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

// Load reads path and fills every unset field with its default. A missing
// file is not an error when allowMissing is set.
func Load(path string, allowMissing bool) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if allowMissing && os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SampleRate == 0 {
		c.SampleRate = 44100
	}
	if c.Volume == nil {
		v := 1.0
		c.Volume = &v
	}
	if c.HistoryCapacity == 0 {
		c.HistoryCapacity = 100
	}
	if c.TabWidth == 0 {
		c.TabWidth = 4
	}
	if c.Parser.MinFrequency == 0 {
		c.Parser.MinFrequency = 37
	}
	if c.Parser.MaxFrequency == 0 {
		c.Parser.MaxFrequency = 32767
	}
	if c.Parser.MaxDurationMs == 0 {
		c.Parser.MaxDurationMs = 60 * 60 * 1000
	}
	if c.Parser.MaxDepth == 0 {
		c.Parser.MaxDepth = 32
	}
	if c.Autosave.Delay == 0 {
		c.Autosave.Delay = 2 * time.Second
	}
	if c.Sentry.Environment == "" {
		c.Sentry.Environment = "development"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}

	def := DefaultTheme()
	if c.Theme.Background == "" {
		c.Theme.Background = def.Background
	}
	if c.Theme.Foreground == "" {
		c.Theme.Foreground = def.Foreground
	}
	if c.Theme.Surface == "" {
		c.Theme.Surface = def.Surface
	}
	if c.Theme.Active == "" {
		c.Theme.Active = def.Active
	}
	if c.Theme.FontFamily == "" {
		c.Theme.FontFamily = def.FontFamily
	}
	if c.Theme.FontSize == 0 {
		c.Theme.FontSize = def.FontSize
	}
}

func (c Config) Validate() error {
	if c.SampleRate < 8000 {
		return fmt.Errorf("sample_rate %d is below 8000", c.SampleRate)
	}
	if v := c.VolumeLevel(); v < 0 || v > 1 {
		return fmt.Errorf("volume %.2f must be within 0..1", v)
	}
	if c.HistoryCapacity < 2 {
		return fmt.Errorf("history_capacity %d must be at least 2", c.HistoryCapacity)
	}
	if c.TabWidth < 1 {
		return fmt.Errorf("tab_width %d must be positive", c.TabWidth)
	}
	if c.Parser.MinFrequency > c.Parser.MaxFrequency {
		return fmt.Errorf("parser frequency range %d..%d is empty", c.Parser.MinFrequency, c.Parser.MaxFrequency)
	}
	if c.Parser.MaxDurationMs < 0 {
		return fmt.Errorf("parser max_duration_ms %d is negative", c.Parser.MaxDurationMs)
	}
	return nil
}

// VolumeLevel is the configured volume, or full volume when unset.
func (c Config) VolumeLevel() float64 {
	if c.Volume == nil {
		return 1
	}
	return *c.Volume
}
