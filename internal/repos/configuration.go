package repos

import "strings"

// CommandConfiguration captures persisted settings for the repos commands.
type CommandConfiguration struct {
	Output string `mapstructure:"output"`
	Format string `mapstructure:"format"`
}

// DefaultCommandConfiguration returns baseline configuration values for the repos commands.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{}
}

// DefaultConfigurationValues returns the defaults keyed for the configuration loader.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		prefix + ".output": defaults.Output,
		prefix + ".format": defaults.Format,
	}
}

// Sanitize trims values; an empty format is inferred from the output file name.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.Output = strings.TrimSpace(configuration.Output)
	sanitized.Format = strings.ToLower(strings.TrimSpace(configuration.Format))
	return sanitized
}
