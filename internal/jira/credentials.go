package jira

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

const credentialsParseErrorTemplateConstant = "JIRA credentials: %w"
const migrationTargetParseErrorTemplateConstant = "migration target: %w"

// Credentials authenticate against a JIRA Cloud site.
type Credentials struct {
	URL      string `env:"JIRA_URL,required,notEmpty"`
	Username string `env:"JIRA_USERNAME,required,notEmpty"`
	APIToken string `env:"JIRA_API_TOKEN,required,notEmpty"`
}

// MigrationTarget carries optional environment fallbacks for the destination project.
type MigrationTarget struct {
	GitHubOwner          string `env:"GITHUB_OWNER"`
	GitHubProjectNumber  int    `env:"GITHUB_PROJECT_NUMBER"`
	GitHubMigrationToken string `env:"GITHUB_MIGRATION_TOKEN"`
}

// LoadCredentials parses credentials from the environment map, or from the process environment when the map is nil.
func LoadCredentials(environment map[string]string) (Credentials, error) {
	var credentials Credentials
	if parseError := env.ParseWithOptions(&credentials, env.Options{Environment: environment}); parseError != nil {
		return Credentials{}, fmt.Errorf(credentialsParseErrorTemplateConstant, parseError)
	}
	return credentials, nil
}

// LoadMigrationTarget parses the optional destination settings.
func LoadMigrationTarget(environment map[string]string) (MigrationTarget, error) {
	var target MigrationTarget
	if parseError := env.ParseWithOptions(&target, env.Options{Environment: environment}); parseError != nil {
		return MigrationTarget{}, fmt.Errorf(migrationTargetParseErrorTemplateConstant, parseError)
	}
	return target, nil
}
