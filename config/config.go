// Package config loads client presets — timeouts, proxy bypass list, max
// body size — from a YAML file, the way the teacher's corpus favors
// declarative config files over code for deployment-specific tuning.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"sigs.k8s.io/yaml"
)

// duration unmarshals from a Go-style duration string ("30s", "5m") rather
// than requiring a raw nanosecond integer in the config file.
type duration time.Duration

func (d *duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = duration(parsed)
	return nil
}

// Preset holds the subset of Client options that make sense to externalize
// into a config file rather than set in code.
type Preset struct {
	Timeout         duration `json:"timeout,omitempty"`
	ConnectTimeout  duration `json:"connectTimeout,omitempty"`
	MaxBodySize     int64    `json:"maxBodySize,omitempty"`
	ProxyURL        string   `json:"proxyURL,omitempty"`
	NoProxy         string   `json:"noProxy,omitempty"`
	MaxRedirects    int      `json:"maxRedirects,omitempty"`
	UserAgent       string   `json:"userAgent,omitempty"`
	InterleaveDelay duration `json:"interleaveDelay,omitempty"`
}

// AsTimeout returns p.Timeout as a time.Duration.
func (p *Preset) AsTimeout() time.Duration { return time.Duration(p.Timeout) }

// AsConnectTimeout returns p.ConnectTimeout as a time.Duration.
func (p *Preset) AsConnectTimeout() time.Duration { return time.Duration(p.ConnectTimeout) }

// AsInterleaveDelay returns p.InterleaveDelay as a time.Duration.
func (p *Preset) AsInterleaveDelay() time.Duration { return time.Duration(p.InterleaveDelay) }

// LoadYAML reads and parses a Preset from a YAML file at path.
func LoadYAML(path string) (*Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return ParseYAML(data)
}

// ParseYAML parses a Preset from raw YAML bytes, using sigs.k8s.io/yaml so
// the same Preset struct also accepts JSON (that library round-trips YAML
// through JSON internally, so struct tags stay in one place).
func ParseYAML(data []byte) (*Preset, error) {
	var p Preset
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("config: parsing preset: %w", err)
	}
	return &p, nil
}
