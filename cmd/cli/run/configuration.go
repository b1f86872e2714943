package run

import "time"

const (
	triesConfigurationKeyConstant     = "tries"
	baseDelayConfigurationKeyConstant = "base_delay"
	configurationKeySeparatorConstant = "."

	defaultTriesConstant    = 1
	defaultBaseDelayLiteral = "5s"
)

// Configuration captures the persisted defaults for the run command.
type Configuration struct {
	Tries     int           `mapstructure:"tries"`
	BaseDelay time.Duration `mapstructure:"base_delay"`
}

// DefaultConfigurationValues exposes the configuration defaults for the run
// command under the provided configuration key prefix.
func DefaultConfigurationValues(configurationKeyPrefix string) map[string]any {
	return map[string]any{
		configurationKeyPrefix + configurationKeySeparatorConstant + triesConfigurationKeyConstant:     defaultTriesConstant,
		configurationKeyPrefix + configurationKeySeparatorConstant + baseDelayConfigurationKeyConstant: defaultBaseDelayLiteral,
	}
}
