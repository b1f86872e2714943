package clean

import "time"

const (
	maxAgeConfigurationKeyConstant    = "max_age"
	configurationKeySeparatorConstant = "."

	defaultMaxAgeLiteral = "24h"
)

// Configuration captures the persisted defaults for the clean command.
type Configuration struct {
	MaxAge time.Duration `mapstructure:"max_age"`
}

// DefaultConfigurationValues exposes the configuration defaults for the clean
// command under the provided configuration key prefix.
func DefaultConfigurationValues(configurationKeyPrefix string) map[string]any {
	return map[string]any{
		configurationKeyPrefix + configurationKeySeparatorConstant + maxAgeConfigurationKeyConstant: defaultMaxAgeLiteral,
	}
}
