package session

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/temirov/ghkeeper/internal/githubapi"
	"github.com/temirov/ghkeeper/internal/githubauth"
	"github.com/temirov/ghkeeper/internal/githubrest"
	"github.com/temirov/ghkeeper/internal/metrics"
	"github.com/temirov/ghkeeper/internal/ratelimit"
	"github.com/temirov/ghkeeper/internal/snapshot"
)

const (
	githubConfigurationKeyConstant  = "github"
	cacheConfigurationKeyConstant   = "cache"
	retryConfigurationKeyConstant   = "retry"
	redisKeySeparatorConstant       = ":"
	tokenResolvedLogMessageConstant = "Resolved GitHub token"
	tokenSourceFieldNameConstant    = "token_source"
	environmentTokenLabelConstant   = "environment"
)

// Configuration groups the settings shared by every GitHub-facing command.
type Configuration struct {
	GitHub githubauth.Configuration `mapstructure:"github"`
	Cache  snapshot.Configuration   `mapstructure:"cache"`
	Retry  ratelimit.Profiles       `mapstructure:"retry"`
}

// DefaultConfiguration returns the built-in shared settings.
func DefaultConfiguration() Configuration {
	return Configuration{
		GitHub: githubauth.DefaultConfiguration(),
		Cache:  snapshot.DefaultConfiguration(),
		Retry:  ratelimit.DefaultProfiles(),
	}
}

// DefaultConfigurationValues exposes the shared defaults keyed by their configuration paths.
func DefaultConfigurationValues() map[string]any {
	values := map[string]any{}
	for _, section := range []map[string]any{
		githubauth.DefaultConfigurationValues(githubConfigurationKeyConstant),
		snapshot.DefaultConfigurationValues(cacheConfigurationKeyConstant),
		ratelimit.DefaultConfigurationValues(retryConfigurationKeyConstant),
	} {
		for key, value := range section {
			values[key] = value
		}
	}
	return values
}

// Dependencies are the injectable collaborators of a Runtime. Nil values fall back to process defaults.
type Dependencies struct {
	Logger            *zap.Logger
	Recorder          *metrics.Recorder
	EnvironmentLookup githubauth.EnvironmentLookup
	FileReader        githubauth.FileReader
	Sleeper           ratelimit.Sleeper
}

// Runtime lazily creates and caches authenticated clients.
type Runtime struct {
	logger        *zap.Logger
	recorder      *metrics.Recorder
	configuration Configuration
	tokenResolver *githubauth.TokenResolver
	sleeper       ratelimit.Sleeper

	mutex      sync.Mutex
	httpClient *http.Client
}

// NewRuntime assembles a Runtime from the configuration.
func NewRuntime(dependencies Dependencies, configuration Configuration) *Runtime {
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sleeper := dependencies.Sleeper
	if sleeper == nil {
		sleeper = ratelimit.TimerSleeper
	}
	return &Runtime{
		logger:        logger,
		recorder:      dependencies.Recorder,
		configuration: configuration,
		tokenResolver: githubauth.NewTokenResolver(dependencies.EnvironmentLookup, dependencies.FileReader),
		sleeper:       sleeper,
	}
}

// Logger returns the runtime logger.
func (runtime *Runtime) Logger() *zap.Logger {
	return runtime.logger
}

// Recorder returns the metrics recorder, which may be nil.
func (runtime *Runtime) Recorder() *metrics.Recorder {
	return runtime.recorder
}

// Configuration returns the shared settings.
func (runtime *Runtime) Configuration() Configuration {
	return runtime.configuration
}

// Retrier builds a retrier for the named rate-limit profile.
func (runtime *Runtime) Retrier(profileName string) (*ratelimit.Retrier, error) {
	policy, lookupError := runtime.configuration.Retry.Lookup(profileName)
	if lookupError != nil {
		return nil, lookupError
	}
	return ratelimit.NewRetrier(runtime.logger, runtime.recorder, ratelimit.RetrierConfiguration{
		Policy:  policy,
		Sleeper: runtime.sleeper,
	})
}

// HTTPClient resolves the token once and returns the authorized client.
func (runtime *Runtime) HTTPClient(executionContext context.Context) (*http.Client, error) {
	runtime.mutex.Lock()
	defer runtime.mutex.Unlock()

	if runtime.httpClient != nil {
		return runtime.httpClient, nil
	}

	token, resolveError := runtime.tokenResolver.Resolve(executionContext, runtime.configuration.GitHub.TokenSource)
	if resolveError != nil {
		return nil, resolveError
	}
	httpClient, clientError := githubauth.NewHTTPClient(context.Background(), token)
	if clientError != nil {
		return nil, clientError
	}

	tokenSourceLabel := runtime.configuration.GitHub.TokenSource
	if len(strings.TrimSpace(tokenSourceLabel)) == 0 {
		tokenSourceLabel = environmentTokenLabelConstant
	}
	runtime.logger.Debug(tokenResolvedLogMessageConstant, zap.String(tokenSourceFieldNameConstant, tokenSourceLabel))

	runtime.httpClient = httpClient
	return httpClient, nil
}

// GraphQLClient returns a Projects (v2) client for the configured endpoint.
func (runtime *Runtime) GraphQLClient(executionContext context.Context) (*githubapi.Client, error) {
	httpClient, httpClientError := runtime.HTTPClient(executionContext)
	if httpClientError != nil {
		return nil, httpClientError
	}
	return githubapi.NewClient(githubapi.NewGraphQLClient(httpClient, runtime.configuration.GitHub.GraphQLURL))
}

// RESTClient returns a REST client for the configured endpoint.
func (runtime *Runtime) RESTClient(executionContext context.Context) (*githubrest.Client, error) {
	httpClient, httpClientError := runtime.HTTPClient(executionContext)
	if httpClientError != nil {
		return nil, httpClientError
	}
	restClient, restClientError := githubrest.NewRESTClient(httpClient, runtime.configuration.GitHub.RESTURL)
	if restClientError != nil {
		return nil, restClientError
	}
	return githubrest.NewClient(restClient)
}

// OpenSnapshotStore opens the configured snapshot store. A non-empty override replaces the file path,
// or is appended to the Redis key, so distinct caches can coexist.
func (runtime *Runtime) OpenSnapshotStore(override string) (snapshot.Store, func() error, error) {
	storeConfiguration := runtime.configuration.Cache
	trimmedOverride := strings.TrimSpace(override)
	if len(trimmedOverride) > 0 {
		storeConfiguration.Path = trimmedOverride
		storeConfiguration.RedisKey = storeConfiguration.RedisKey + redisKeySeparatorConstant + trimmedOverride
	}
	return snapshot.Open(storeConfiguration)
}
