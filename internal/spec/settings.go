package spec

import (
	"github.com/caarlos0/env/v11"
)

// Settings are CLI-level options read from WETWIRE_TOPOLOGY_* variables.
// Flags override them through Merge.
type Settings struct {
	Profile     string `env:"WETWIRE_TOPOLOGY_PROFILE"`
	Region      string `env:"WETWIRE_TOPOLOGY_REGION"`
	StateDB     string `env:"WETWIRE_TOPOLOGY_STATE_DB" envDefault:"wetwire-topology.db"`
	LogLevel    string `env:"WETWIRE_TOPOLOGY_LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"WETWIRE_TOPOLOGY_LOG_FORMAT" envDefault:"console"`
	MetricsFile string `env:"WETWIRE_TOPOLOGY_METRICS_FILE"`
	EnvFile     string `env:"WETWIRE_TOPOLOGY_ENV_FILE" envDefault:".env"`
}

// LoadSettings parses settings from the environment.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Merge returns a copy with non-empty overrides applied.
func (s Settings) Merge(profile, region string) Settings {
	if profile != "" {
		s.Profile = profile
	}
	if region != "" {
		s.Region = region
	}
	return s
}
