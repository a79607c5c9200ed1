package branches

import "strings"

const (
	defaultPrefixConstant        = "devin/"
	defaultInventoryFileConstant = "stale_branches.json"
	defaultAgeDaysConstant       = 4
)

// CommandConfiguration captures configuration values for the branch commands.
type CommandConfiguration struct {
	Prefix        string `mapstructure:"prefix"`
	InventoryFile string `mapstructure:"inventory_file"`
	Days          int    `mapstructure:"days"`
}

// DefaultCommandConfiguration provides baseline configuration values for the branch commands.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		Prefix:        defaultPrefixConstant,
		InventoryFile: defaultInventoryFileConstant,
		Days:          defaultAgeDaysConstant,
	}
}

// DefaultConfigurationValues returns the defaults keyed for the configuration loader.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		prefix + ".prefix":         defaults.Prefix,
		prefix + ".inventory_file": defaults.InventoryFile,
		prefix + ".days":           defaults.Days,
	}
}

// Sanitize trims values and restores defaults for empty or non-positive settings.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	defaults := DefaultCommandConfiguration()
	sanitized := configuration
	sanitized.Prefix = strings.TrimSpace(configuration.Prefix)
	if len(sanitized.Prefix) == 0 {
		sanitized.Prefix = defaults.Prefix
	}
	sanitized.InventoryFile = strings.TrimSpace(configuration.InventoryFile)
	if len(sanitized.InventoryFile) == 0 {
		sanitized.InventoryFile = defaults.InventoryFile
	}
	if sanitized.Days <= 0 {
		sanitized.Days = defaults.Days
	}
	return sanitized
}
