// Package config loads scheduler defaults from an optional TOML file and
// environment variables, the way the teacher's am package loads QNTX
// configuration via Viper: file values first, environment overrides on
// top, sane defaults when neither is present.
//
// Everything here is a *default*. The wire protocol's SET_TQ message
// (spec.md §4.3) remains the authoritative way to change the time quantum
// at runtime; config seeds the value a freshly started scheduler uses
// before any operator has sent SET_TQ. When a config file is given, its
// watcher also applies a changed time_quantum_seconds at runtime, which
// replaces any quantum set earlier by SET_TQ.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/nvlockd/nvlockd/internal/xerrors"
)

// Scheduler holds the scheduler daemon's startup configuration.
type Scheduler struct {
	SocketDir           string `mapstructure:"socket_dir"`
	TimeQuantumSecs     int    `mapstructure:"time_quantum_seconds"`
	Debug               bool   `mapstructure:"debug"`
	JSONLogs            bool   `mapstructure:"json_logs"`
	AntiThrashAtStart   bool   `mapstructure:"anti_thrash_at_start"`
	MaxAcceptsPerMinute int    `mapstructure:"max_accepts_per_minute"`
}

const envPrefix = "NVLOCKD"

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("socket_dir", "/var/run/nvlockd")
	v.SetDefault("time_quantum_seconds", 30)
	v.SetDefault("debug", false)
	v.SetDefault("json_logs", false)
	v.SetDefault("anti_thrash_at_start", true)
	v.SetDefault("max_accepts_per_minute", 0)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configPath (if non-empty and present) over the defaults above,
// then lets NVLOCKD_* environment variables take final precedence.
func Load(configPath string) (*Scheduler, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, xerrors.Wrap(err, "read scheduler config file")
		}
	}

	var cfg Scheduler
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, xerrors.Wrap(err, "unmarshal scheduler config")
	}
	if cfg.TimeQuantumSecs <= 0 {
		return nil, xerrors.Newf("time_quantum_seconds must be positive, got %d", cfg.TimeQuantumSecs)
	}
	return &cfg, nil
}
