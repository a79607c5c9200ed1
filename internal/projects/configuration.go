package projects

import (
	"strings"
	"time"
)

const (
	defaultOwnerTypeConstant   = "org"
	defaultTargetsFileConstant = "update_targets.json"
	defaultBatchDelayConstant  = time.Second
	defaultSyncMarkerConstant  = "Status: Done"
	defaultSyncStatusConstant  = "Done"
)

// CommandConfiguration captures persisted settings for the project commands.
type CommandConfiguration struct {
	OwnerType     string        `mapstructure:"owner_type"`
	Owner         string        `mapstructure:"owner"`
	ProjectNumber int           `mapstructure:"project_number"`
	StatusField   string        `mapstructure:"status_field"`
	CacheFile     string        `mapstructure:"cache_file"`
	TargetsFile   string        `mapstructure:"targets_file"`
	BatchSize     int           `mapstructure:"batch_size"`
	BatchDelay    time.Duration `mapstructure:"batch_delay"`
	SyncMarker    string        `mapstructure:"sync_marker"`
	SyncStatus    string        `mapstructure:"sync_status"`
}

// DefaultCommandConfiguration returns baseline configuration values for the project commands.
// An empty CacheFile defers to the shared cache settings.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		OwnerType:   defaultOwnerTypeConstant,
		StatusField: defaultStatusFieldNameConstant,
		TargetsFile: defaultTargetsFileConstant,
		BatchSize:   defaultBatchSizeConstant,
		BatchDelay:  defaultBatchDelayConstant,
		SyncMarker:  defaultSyncMarkerConstant,
		SyncStatus:  defaultSyncStatusConstant,
	}
}

// DefaultConfigurationValues exposes the defaults under the prefix.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		prefix + ".owner_type":     defaults.OwnerType,
		prefix + ".owner":          defaults.Owner,
		prefix + ".project_number": defaults.ProjectNumber,
		prefix + ".status_field":   defaults.StatusField,
		prefix + ".cache_file":     defaults.CacheFile,
		prefix + ".targets_file":   defaults.TargetsFile,
		prefix + ".batch_size":     defaults.BatchSize,
		prefix + ".batch_delay":    defaults.BatchDelay.String(),
		prefix + ".sync_marker":    defaults.SyncMarker,
		prefix + ".sync_status":    defaults.SyncStatus,
	}
}

// Sanitize trims values and restores defaults for blank or non-positive entries.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	defaults := DefaultCommandConfiguration()
	sanitized := configuration
	sanitized.OwnerType = stringOrDefault(configuration.OwnerType, defaults.OwnerType)
	sanitized.Owner = strings.TrimSpace(configuration.Owner)
	sanitized.StatusField = stringOrDefault(configuration.StatusField, defaults.StatusField)
	sanitized.CacheFile = strings.TrimSpace(configuration.CacheFile)
	sanitized.TargetsFile = stringOrDefault(configuration.TargetsFile, defaults.TargetsFile)
	sanitized.SyncMarker = stringOrDefault(configuration.SyncMarker, defaults.SyncMarker)
	sanitized.SyncStatus = stringOrDefault(configuration.SyncStatus, defaults.SyncStatus)
	if sanitized.BatchSize <= 0 {
		sanitized.BatchSize = defaults.BatchSize
	}
	if sanitized.BatchDelay < 0 {
		sanitized.BatchDelay = defaults.BatchDelay
	}
	return sanitized
}

func stringOrDefault(value string, fallback string) string {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return fallback
	}
	return trimmedValue
}
