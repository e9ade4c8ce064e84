// Package daemonconfig loads the daemon's file-based configuration,
// layered underneath the CLI-flag configuration kong owns for the
// front-end (see cmd/squish), matching the teacher's split between
// flag-driven CLI config and a separate persisted config shape.
package daemonconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where squishd looks for its config absent --config.
const DefaultPath = "/etc/squish/squishd.yaml"

// Config is the daemon's on-disk configuration.
type Config struct {
	// SocketPath is the Control API's unix socket. Defaults to
	// /tmp/squishd.sock per spec.md §6.
	SocketPath string `yaml:"socket_path"`

	// BaseDir is the daemon's CWD, the root of the on-disk layout
	// (cache/, container/) named in spec.md §6.
	BaseDir string `yaml:"base_dir"`

	// ReaperTick overrides the 100ms default sweep interval.
	ReaperTick time.Duration `yaml:"reaper_tick"`

	// OTLPEndpoint, if set, enables span export via otlptracegrpc.
	// Empty means the no-op tracer.
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Pid1Binary and SlirpBinary locate the two helper executables the
	// supervisor spawns.
	Pid1Binary  string `yaml:"pid1_binary"`
	SlirpBinary string `yaml:"slirp_binary"`

	// MaxConcurrentSpawns bounds pool.SpawnPool's semaphore.
	MaxConcurrentSpawns int `yaml:"max_concurrent_spawns"`
}

// fileShape mirrors Config but with ReaperTick as the duration string
// ("100ms", "1s") a human actually writes in YAML.
type fileShape struct {
	SocketPath          string `yaml:"socket_path"`
	BaseDir             string `yaml:"base_dir"`
	ReaperTick          string `yaml:"reaper_tick"`
	OTLPEndpoint        string `yaml:"otlp_endpoint"`
	Pid1Binary          string `yaml:"pid1_binary"`
	SlirpBinary         string `yaml:"slirp_binary"`
	MaxConcurrentSpawns int    `yaml:"max_concurrent_spawns"`
}

func defaults() Config {
	return Config{
		SocketPath:          "/tmp/squishd.sock",
		BaseDir:             "/var/lib/squish",
		ReaperTick:          100 * time.Millisecond,
		Pid1Binary:          "/usr/local/libexec/squish-pid1",
		SlirpBinary:         "/usr/local/libexec/slirp4netns",
		MaxConcurrentSpawns: 8,
	}
}

// Load reads path (DefaultPath if empty), filling unset fields with
// defaults(). A missing file is not an error — the defaults alone are a
// valid configuration.
func Load(path string) (Config, error) {
	cfg := defaults()
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("daemonconfig: read %s: %w", path, err)
	}

	var raw fileShape
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("daemonconfig: parse %s: %w", path, err)
	}

	if raw.SocketPath != "" {
		cfg.SocketPath = raw.SocketPath
	}
	if raw.BaseDir != "" {
		cfg.BaseDir = raw.BaseDir
	}
	if raw.ReaperTick != "" {
		d, err := time.ParseDuration(raw.ReaperTick)
		if err != nil {
			return cfg, fmt.Errorf("daemonconfig: reaper_tick %q: %w", raw.ReaperTick, err)
		}
		cfg.ReaperTick = d
	}
	if raw.OTLPEndpoint != "" {
		cfg.OTLPEndpoint = raw.OTLPEndpoint
	}
	if raw.Pid1Binary != "" {
		cfg.Pid1Binary = raw.Pid1Binary
	}
	if raw.SlirpBinary != "" {
		cfg.SlirpBinary = raw.SlirpBinary
	}
	if raw.MaxConcurrentSpawns != 0 {
		cfg.MaxConcurrentSpawns = raw.MaxConcurrentSpawns
	}
	return cfg, nil
}
