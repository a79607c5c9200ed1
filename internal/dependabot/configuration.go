package dependabot

import "strings"

const defaultRepositoryLimitConstant = 100

// CommandConfiguration captures persisted settings for the dependabot command.
type CommandConfiguration struct {
	Repository      string   `mapstructure:"repository"`
	DryRun          bool     `mapstructure:"dry_run"`
	RepositoryLimit int      `mapstructure:"repository_limit"`
	Manifests       []string `mapstructure:"manifests"`
}

// DefaultCommandConfiguration returns baseline configuration values for the dependabot command.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		RepositoryLimit: defaultRepositoryLimitConstant,
		Manifests:       DefaultManifests(),
	}
}

// DefaultConfigurationValues returns the defaults keyed for the configuration loader.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		prefix + ".repository":       defaults.Repository,
		prefix + ".dry_run":          defaults.DryRun,
		prefix + ".repository_limit": defaults.RepositoryLimit,
		prefix + ".manifests":        defaults.Manifests,
	}
}

// Sanitize trims values and restores defaults for empty settings.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.Repository = strings.TrimSpace(configuration.Repository)
	if sanitized.RepositoryLimit <= 0 {
		sanitized.RepositoryLimit = defaultRepositoryLimitConstant
	}
	manifests := make([]string, 0, len(configuration.Manifests))
	for _, manifest := range configuration.Manifests {
		if trimmed := strings.TrimSpace(manifest); len(trimmed) > 0 {
			manifests = append(manifests, trimmed)
		}
	}
	if len(manifests) == 0 {
		manifests = DefaultManifests()
	}
	sanitized.Manifests = manifests
	return sanitized
}
