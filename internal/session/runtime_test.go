package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/ghkeeper/internal/githubauth"
	"github.com/temirov/ghkeeper/internal/ratelimit"
	"github.com/temirov/ghkeeper/internal/session"
	"github.com/temirov/ghkeeper/internal/snapshot"
)

const (
	testTokenConstant              = "ghp_runtime"
	testAuthorizationConstant      = "Bearer ghp_runtime"
	testRepositoryResponseConstant = `{"data":{"repository":{"id":"R_kgDO"}}}`
)

func TestRuntimeRetrierProfiles(testInstance *testing.T) {
	runtime := session.NewRuntime(session.Dependencies{}, session.DefaultConfiguration())

	testCases := []struct {
		name           string
		profileName    string
		expectedPolicy ratelimit.Policy
		expectError    bool
	}{
		{name: "bulk", profileName: ratelimit.ProfileNameBulk, expectedPolicy: ratelimit.BulkPolicy()},
		{name: "migration", profileName: ratelimit.ProfileNameMigration, expectedPolicy: ratelimit.MigrationPolicy()},
		{name: "interactive", profileName: ratelimit.ProfileNameInteractive, expectedPolicy: ratelimit.InteractivePolicy()},
		{name: "unknown", profileName: "burst", expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			retrier, retrierError := runtime.Retrier(testCase.profileName)
			if testCase.expectError {
				require.Error(subTest, retrierError)
				return
			}
			require.NoError(subTest, retrierError)
			require.Equal(subTest, testCase.expectedPolicy, retrier.Policy())
		})
	}
}

func TestRuntimeHTTPClientRequiresToken(testInstance *testing.T) {
	runtime := session.NewRuntime(session.Dependencies{
		EnvironmentLookup: githubauth.MapLookup(map[string]string{}),
	}, session.DefaultConfiguration())

	_, clientError := runtime.HTTPClient(context.Background())
	require.ErrorIs(testInstance, clientError, githubauth.ErrTokenNotFound)
}

func TestRuntimeResolvesTokenOnce(testInstance *testing.T) {
	lookupCount := 0
	runtime := session.NewRuntime(session.Dependencies{
		EnvironmentLookup: func(key string) (string, bool) {
			lookupCount++
			if key == "GITHUB_TOKEN" {
				return testTokenConstant, true
			}
			return "", false
		},
	}, session.DefaultConfiguration())

	firstClient, firstError := runtime.HTTPClient(context.Background())
	require.NoError(testInstance, firstError)
	lookupsAfterFirst := lookupCount

	secondClient, secondError := runtime.HTTPClient(context.Background())
	require.NoError(testInstance, secondError)
	require.Same(testInstance, firstClient, secondClient)
	require.Equal(testInstance, lookupsAfterFirst, lookupCount)
}

func TestRuntimeGraphQLClientUsesConfiguredEndpoint(testInstance *testing.T) {
	var receivedAuthorization string
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		receivedAuthorization = request.Header.Get("Authorization")
		responseWriter.Header().Set("Content-Type", "application/json")
		_, _ = responseWriter.Write([]byte(testRepositoryResponseConstant))
	}))
	testInstance.Cleanup(server.Close)

	configuration := session.DefaultConfiguration()
	configuration.GitHub.GraphQLURL = server.URL
	runtime := session.NewRuntime(session.Dependencies{
		EnvironmentLookup: githubauth.MapLookup(map[string]string{"GH_TOKEN": testTokenConstant}),
	}, configuration)

	client, clientError := runtime.GraphQLClient(context.Background())
	require.NoError(testInstance, clientError)

	repositoryID, queryError := client.RepositoryID(context.Background(), "acme", "widgets")
	require.NoError(testInstance, queryError)
	require.Equal(testInstance, "R_kgDO", repositoryID)
	require.Equal(testInstance, testAuthorizationConstant, receivedAuthorization)
}

func TestRuntimeOpenSnapshotStoreOverride(testInstance *testing.T) {
	overridePath := filepath.Join(testInstance.TempDir(), "items.json")
	runtime := session.NewRuntime(session.Dependencies{}, session.DefaultConfiguration())

	store, closeStore, openError := runtime.OpenSnapshotStore(overridePath)
	require.NoError(testInstance, openError)
	testInstance.Cleanup(func() { require.NoError(testInstance, closeStore()) })

	require.NoError(testInstance, store.Save(context.Background(), []byte(`[]`)))
	require.FileExists(testInstance, overridePath)

	reloaded, loadError := store.Load(context.Background())
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, []byte(`[]`), reloaded)
}

func TestDefaultConfigurationValuesCoverEverySection(testInstance *testing.T) {
	values := session.DefaultConfigurationValues()
	require.Equal(testInstance, "https://api.github.com/graphql", values["github.graphql_url"])
	require.Equal(testInstance, snapshot.BackendFile, values["cache.backend"])
	require.Equal(testInstance, "1h0m0s", values["retry.bulk.initial_wait"])
	require.Equal(testInstance, 10, values["retry.migration.max_retries"])
}
