package ratelimit

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	bulkInitialWaitConstant             = time.Hour
	bulkBackoffFactorConstant           = 1.5
	bulkMaxWaitConstant                 = 6 * time.Hour
	migrationInitialWaitConstant        = 2 * time.Second
	migrationBackoffFactorConstant      = 2.0
	migrationMaxWaitConstant            = 24 * time.Hour
	interactiveInitialWaitConstant      = time.Second
	interactiveBackoffFactorConstant    = 2.0
	interactiveMaxWaitConstant          = 6 * time.Hour
	defaultMaxRetriesConstant           = 10
	invalidPolicyTemplateConstant       = "invalid retry policy: %s"
	initialWaitRequirementConstant      = "initial_wait must be positive"
	backoffFactorRequirementConstant    = "backoff_factor must be at least 1"
	maxWaitRequirementConstant          = "max_wait must not be smaller than initial_wait"
	maxRetriesRequirementConstant       = "max_retries must be positive"
	unknownProfileTemplateConstant      = "unknown retry profile: %s"
	ProfileNameBulk                     = "bulk"
	ProfileNameMigration                = "migration"
	ProfileNameInteractive              = "interactive"
	configurationKeyInitialWaitConstant = "initial_wait"
	configurationKeyFactorConstant      = "backoff_factor"
	configurationKeyMaxWaitConstant     = "max_wait"
	configurationKeyMaxRetriesConstant  = "max_retries"
)

// Policy describes the wait schedule and retry ceiling for one class of operations.
type Policy struct {
	InitialWait   time.Duration `mapstructure:"initial_wait"`
	BackoffFactor float64       `mapstructure:"backoff_factor"`
	MaxWait       time.Duration `mapstructure:"max_wait"`
	MaxRetries    int           `mapstructure:"max_retries"`
}

// Profiles groups the named policies used across commands.
type Profiles struct {
	Bulk        Policy `mapstructure:"bulk"`
	Migration   Policy `mapstructure:"migration"`
	Interactive Policy `mapstructure:"interactive"`
}

// BulkPolicy waits long between attempts; used for project item listings that exhaust the hourly quota.
func BulkPolicy() Policy {
	return Policy{
		InitialWait:   bulkInitialWaitConstant,
		BackoffFactor: bulkBackoffFactorConstant,
		MaxWait:       bulkMaxWaitConstant,
		MaxRetries:    defaultMaxRetriesConstant,
	}
}

// MigrationPolicy starts with short waits and allows up to a day between attempts.
func MigrationPolicy() Policy {
	return Policy{
		InitialWait:   migrationInitialWaitConstant,
		BackoffFactor: migrationBackoffFactorConstant,
		MaxWait:       migrationMaxWaitConstant,
		MaxRetries:    defaultMaxRetriesConstant,
	}
}

// InteractivePolicy serves single mutations and REST calls.
func InteractivePolicy() Policy {
	return Policy{
		InitialWait:   interactiveInitialWaitConstant,
		BackoffFactor: interactiveBackoffFactorConstant,
		MaxWait:       interactiveMaxWaitConstant,
		MaxRetries:    defaultMaxRetriesConstant,
	}
}

// DefaultProfiles returns the built-in profile set.
func DefaultProfiles() Profiles {
	return Profiles{
		Bulk:        BulkPolicy(),
		Migration:   MigrationPolicy(),
		Interactive: InteractivePolicy(),
	}
}

// DefaultConfigurationValues exposes the built-in profiles as configuration defaults under the provided prefix.
func DefaultConfigurationValues(prefix string) map[string]any {
	values := map[string]any{}
	for profileName, policy := range map[string]Policy{
		ProfileNameBulk:        BulkPolicy(),
		ProfileNameMigration:   MigrationPolicy(),
		ProfileNameInteractive: InteractivePolicy(),
	} {
		profilePrefix := prefix + "." + profileName + "."
		values[profilePrefix+configurationKeyInitialWaitConstant] = policy.InitialWait.String()
		values[profilePrefix+configurationKeyFactorConstant] = policy.BackoffFactor
		values[profilePrefix+configurationKeyMaxWaitConstant] = policy.MaxWait.String()
		values[profilePrefix+configurationKeyMaxRetriesConstant] = policy.MaxRetries
	}
	return values
}

// Lookup returns the policy registered under the profile name.
func (profiles Profiles) Lookup(profileName string) (Policy, error) {
	switch profileName {
	case ProfileNameBulk:
		return profiles.Bulk, nil
	case ProfileNameMigration:
		return profiles.Migration, nil
	case ProfileNameInteractive:
		return profiles.Interactive, nil
	default:
		return Policy{}, fmt.Errorf(unknownProfileTemplateConstant, profileName)
	}
}

// Validate reports the first constraint the policy violates.
func (policy Policy) Validate() error {
	switch {
	case policy.InitialWait <= 0:
		return fmt.Errorf(invalidPolicyTemplateConstant, initialWaitRequirementConstant)
	case policy.BackoffFactor < 1:
		return fmt.Errorf(invalidPolicyTemplateConstant, backoffFactorRequirementConstant)
	case policy.MaxWait < policy.InitialWait:
		return fmt.Errorf(invalidPolicyTemplateConstant, maxWaitRequirementConstant)
	case policy.MaxRetries <= 0:
		return fmt.Errorf(invalidPolicyTemplateConstant, maxRetriesRequirementConstant)
	default:
		return nil
	}
}

// NewBackOff builds a deterministic exponential schedule yielding min(initial*factor^n, max) for call n.
func (policy Policy) NewBackOff() *backoff.ExponentialBackOff {
	exponentialBackOff := &backoff.ExponentialBackOff{
		InitialInterval:     policy.InitialWait,
		RandomizationFactor: 0,
		Multiplier:          policy.BackoffFactor,
		MaxInterval:         policy.MaxWait,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	exponentialBackOff.Reset()
	return exponentialBackOff
}

// WaitSchedule lists the waits applied before each retry up to the ceiling.
func (policy Policy) WaitSchedule() []time.Duration {
	if policy.MaxRetries <= 1 {
		return nil
	}
	exponentialBackOff := policy.NewBackOff()
	schedule := make([]time.Duration, 0, policy.MaxRetries-1)
	for attemptIndex := 0; attemptIndex < policy.MaxRetries-1; attemptIndex++ {
		schedule = append(schedule, exponentialBackOff.NextBackOff())
	}
	return schedule
}
