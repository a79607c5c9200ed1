package migrate

import "strings"

const (
	defaultOwnerTypeConstant = "org"
	defaultOrderByConstant   = "created DESC"
)

// CommandConfiguration captures persisted settings for JIRA migration.
type CommandConfiguration struct {
	OwnerType     string `mapstructure:"owner_type"`
	Owner         string `mapstructure:"owner"`
	ProjectNumber int    `mapstructure:"project_number"`
	OrderBy       string `mapstructure:"order_by"`
	StatusField   string `mapstructure:"status_field"`
}

// DefaultCommandConfiguration returns baseline configuration values for JIRA migration.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		OwnerType:   defaultOwnerTypeConstant,
		OrderBy:     defaultOrderByConstant,
		StatusField: defaultStatusFieldNameConstant,
	}
}

// DefaultConfigurationValues exposes the defaults under the prefix.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		prefix + ".owner_type":     defaults.OwnerType,
		prefix + ".owner":          defaults.Owner,
		prefix + ".project_number": defaults.ProjectNumber,
		prefix + ".order_by":       defaults.OrderBy,
		prefix + ".status_field":   defaults.StatusField,
	}
}

// Sanitize trims values and restores defaults for blank entries.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	defaults := DefaultCommandConfiguration()
	sanitized := CommandConfiguration{
		OwnerType:     strings.TrimSpace(configuration.OwnerType),
		Owner:         strings.TrimSpace(configuration.Owner),
		ProjectNumber: configuration.ProjectNumber,
		OrderBy:       strings.TrimSpace(configuration.OrderBy),
		StatusField:   strings.TrimSpace(configuration.StatusField),
	}
	if len(sanitized.OwnerType) == 0 {
		sanitized.OwnerType = defaults.OwnerType
	}
	if len(sanitized.OrderBy) == 0 {
		sanitized.OrderBy = defaults.OrderBy
	}
	if len(sanitized.StatusField) == 0 {
		sanitized.StatusField = defaults.StatusField
	}
	return sanitized
}
