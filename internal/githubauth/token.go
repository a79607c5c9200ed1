package githubauth

import (
	"os"
	"strings"
)

// Conventional environment variables, in lookup order.
const (
	EnvGitHubToken    = "GITHUB_TOKEN"
	EnvGitHubCLIToken = "GH_TOKEN"
	EnvGitHubAPIToken = "GITHUB_API_TOKEN"
)

// EnvironmentLookup obtains an environment variable value.
type EnvironmentLookup func(key string) (string, bool)

// ResolveToken returns the first non-blank conventional token.
func ResolveToken(environmentLookup EnvironmentLookup) (string, bool) {
	if environmentLookup == nil {
		environmentLookup = os.LookupEnv
	}
	for _, variableName := range [...]string{EnvGitHubToken, EnvGitHubCLIToken, EnvGitHubAPIToken} {
		value, _ := environmentLookup(variableName)
		if token := strings.TrimSpace(value); len(token) > 0 {
			return token, true
		}
	}
	return "", false
}

// MapLookup adapts a map to EnvironmentLookup, mostly for tests.
func MapLookup(environment map[string]string) EnvironmentLookup {
	return func(key string) (string, bool) {
		value, exists := environment[key]
		return value, exists
	}
}
