// Package config loads the hub's channel list and bridge parameters
// (spec §4.6, §6).
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// BridgeDefaults are the CLI-overridable bridge parameters (spec §6 CLI
// surface).
type BridgeDefaults struct {
	DLLPath       string `yaml:"dll_path"`
	CapacityBytes int64  `yaml:"capacity_bytes"`
	SleepMillis   int    `yaml:"sleep_ms"`
	Backend       string `yaml:"backend"` // cpu | gpu
	LogEveryMs    int    `yaml:"log_every_ms"`
}

// ChannelConfig is one entry of the declarative channel list (spec §6).
// Unknown YAML fields are ignored by default (yaml.v3 behavior).
type ChannelConfig struct {
	Name      string            `yaml:"name"`
	Transform string            `yaml:"transform"`
	Params    map[string]any    `yaml:"params"`
	Disabled  bool              `yaml:"disabled"`
	Indicator string            `yaml:"indicator"` // ignored by core
	Color     string            `yaml:"color"`      // ignored by core
}

// File is the on-disk shape: bridge defaults plus the channel list.
type File struct {
	Bridge   BridgeDefaults  `yaml:"bridge"`
	Channels []ChannelConfig `yaml:"channels"`
}

// Config is the fully resolved configuration the supervisor acts on.
type Config struct {
	Bridge   BridgeDefaults
	Channels []ChannelConfig

	// Path is where this Config was loaded from, used for hot-reload
	// diffing (spec §5).
	Path string
}

const envConfigPath = "PYSHARED_HUB_CONFIG"

// ResolvePath implements the precedence order of spec §4.6: explicit
// argument (the --config flag) > path from the PYSHARED_HUB_CONFIG
// environment variable > built-in default next to the executable >
// user-scope path (APPDATA/<AppName> on Windows, XDG-ish fallback
// elsewhere).
func ResolvePath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if env := os.Getenv(envConfigPath); env != "" {
		return env, nil
	}

	exe, err := os.Executable()
	if err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "pyshared_hub.yaml")
		if _, statErr := os.Stat(candidate); statErr == nil {
			return candidate, nil
		}
	}

	if appdata := os.Getenv("APPDATA"); appdata != "" {
		candidate := filepath.Join(appdata, "PySharedHub", "pyshared_hub.yaml")
		if _, statErr := os.Stat(candidate); statErr == nil {
			return candidate, nil
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, ".config", "pyshared-hub", "pyshared_hub.yaml")
		if _, statErr := os.Stat(candidate); statErr == nil {
			return candidate, nil
		}
	}

	return "", errors.New("config: no configuration file found (set " + envConfigPath + " or place pyshared_hub.yaml next to the executable)")
}

// Load reads and validates the configuration at path. Missing or
// malformed configuration is fatal for the supervisor (spec §4.6, §7).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: read %q", path)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(err, "config: parse %q", path)
	}

	if err := validate(&file); err != nil {
		return nil, errors.Wrapf(err, "config: validate %q", path)
	}

	if file.Bridge.CapacityBytes <= 0 {
		file.Bridge.CapacityBytes = 8 * 1024 * 1024
	}
	if file.Bridge.SleepMillis <= 0 {
		file.Bridge.SleepMillis = 1
	}
	if file.Bridge.Backend == "" {
		file.Bridge.Backend = "cpu"
	}
	if file.Bridge.LogEveryMs <= 0 {
		file.Bridge.LogEveryMs = 5000
	}

	return &Config{Bridge: file.Bridge, Channels: file.Channels, Path: path}, nil
}

func validate(file *File) error {
	seen := make(map[string]bool, len(file.Channels))
	for i, ch := range file.Channels {
		if ch.Name == "" {
			return errors.Errorf("channel[%d]: name must not be empty", i)
		}
		if seen[ch.Name] {
			return errors.Errorf("channel[%d]: duplicate channel name %q", i, ch.Name)
		}
		seen[ch.Name] = true
		if !ch.Disabled && ch.Transform == "" {
			return errors.Errorf("channel %q: transform must not be empty", ch.Name)
		}
	}
	return nil
}

// EnabledChannels returns the channels with Disabled == false.
func (c *Config) EnabledChannels() []ChannelConfig {
	out := make([]ChannelConfig, 0, len(c.Channels))
	for _, ch := range c.Channels {
		if !ch.Disabled {
			out = append(out, ch)
		}
	}
	return out
}

// Diff describes what changed between two loads, used by the supervisor's
// 1s reload cadence (spec §5): channel/capacity_bytes changes only warn
// and require a restart. log_every_ms is not compared, and no running
// component reads it, so a change to it has no effect.
type Diff struct {
	RestartRequired bool
	Reasons         []string
}

// Compare reports what changed from prev to next.
func Compare(prev, next *Config) Diff {
	var d Diff
	if prev == nil {
		return d
	}
	if prev.Bridge.CapacityBytes != next.Bridge.CapacityBytes {
		d.RestartRequired = true
		d.Reasons = append(d.Reasons, "capacity_bytes changed")
	}
	prevNames := make(map[string]ChannelConfig, len(prev.Channels))
	for _, ch := range prev.Channels {
		prevNames[ch.Name] = ch
	}
	nextNames := make(map[string]bool, len(next.Channels))
	for _, ch := range next.Channels {
		nextNames[ch.Name] = true
		old, ok := prevNames[ch.Name]
		if !ok {
			d.RestartRequired = true
			d.Reasons = append(d.Reasons, "channel added: "+ch.Name)
			continue
		}
		if old.Transform != ch.Transform || old.Disabled != ch.Disabled {
			d.RestartRequired = true
			d.Reasons = append(d.Reasons, "channel changed: "+ch.Name)
		}
	}
	for name := range prevNames {
		if !nextNames[name] {
			d.RestartRequired = true
			d.Reasons = append(d.Reasons, "channel removed: "+name)
		}
	}
	return d
}
