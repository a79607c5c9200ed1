package githubauth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

const (
	defaultGraphQLURLConstant           = "https://api.github.com/graphql"
	defaultRESTURLConstant              = "https://api.github.com/"
	configurationKeyTokenSourceConstant = "token_source"
	configurationKeyGraphQLURLConstant  = "graphql_url"
	configurationKeyRESTURLConstant     = "rest_url"
	emptyTokenErrorMessageConstant      = "GitHub token must not be empty"
)

// Configuration captures GitHub endpoint and credential settings.
type Configuration struct {
	TokenSource string `mapstructure:"token_source"`
	GraphQLURL  string `mapstructure:"graphql_url"`
	RESTURL     string `mapstructure:"rest_url"`
}

// DefaultConfiguration targets api.github.com and reads tokens from the conventional variables.
func DefaultConfiguration() Configuration {
	return Configuration{
		TokenSource: "",
		GraphQLURL:  defaultGraphQLURLConstant,
		RESTURL:     defaultRESTURLConstant,
	}
}

// DefaultConfigurationValues exposes the defaults under the prefix.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultConfiguration()
	return map[string]any{
		prefix + "." + configurationKeyTokenSourceConstant: defaults.TokenSource,
		prefix + "." + configurationKeyGraphQLURLConstant:  defaults.GraphQLURL,
		prefix + "." + configurationKeyRESTURLConstant:     defaults.RESTURL,
	}
}

// NewHTTPClient returns an HTTP client that authorizes every request with the bearer token.
func NewHTTPClient(clientContext context.Context, token string) (*http.Client, error) {
	trimmedToken := strings.TrimSpace(token)
	if len(trimmedToken) == 0 {
		return nil, errors.New(emptyTokenErrorMessageConstant)
	}
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: trimmedToken})
	return oauth2.NewClient(clientContext, tokenSource), nil
}
