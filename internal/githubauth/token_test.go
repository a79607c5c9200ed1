package githubauth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/ghkeeper/internal/githubauth"
)

func TestResolveTokenPreference(testInstance *testing.T) {
	testCases := []struct {
		name          string
		environment   map[string]string
		expectedToken string
		expectFound   bool
	}{
		{name: "github_token_first", environment: map[string]string{"GITHUB_TOKEN": "primary", "GH_TOKEN": "cli"}, expectedToken: "primary", expectFound: true},
		{name: "cli_token_fallback", environment: map[string]string{"GITHUB_TOKEN": "  ", "GH_TOKEN": "cli"}, expectedToken: "cli", expectFound: true},
		{name: "api_token_fallback", environment: map[string]string{"GITHUB_API_TOKEN": " api "}, expectedToken: "api", expectFound: true},
		{name: "none", environment: map[string]string{}, expectFound: false},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			token, found := githubauth.ResolveToken(githubauth.MapLookup(testCase.environment))
			require.Equal(testInstance, testCase.expectFound, found)
			require.Equal(testInstance, testCase.expectedToken, token)
		})
	}
}

func TestParseTokenSource(testInstance *testing.T) {
	testCases := []struct {
		name           string
		value          string
		expectedSource githubauth.TokenSource
		expectError    bool
	}{
		{name: "bare_variable", value: "MIGRATION_TOKEN", expectedSource: githubauth.TokenSource{Type: githubauth.TokenSourceTypeEnvironment, Reference: "MIGRATION_TOKEN"}},
		{name: "env_prefix", value: "ENV: MIGRATION_TOKEN", expectedSource: githubauth.TokenSource{Type: githubauth.TokenSourceTypeEnvironment, Reference: "MIGRATION_TOKEN"}},
		{name: "file_prefix", value: "file:/run/secrets/github", expectedSource: githubauth.TokenSource{Type: githubauth.TokenSourceTypeFile, Reference: "/run/secrets/github"}},
		{name: "empty", value: "  ", expectError: true},
		{name: "empty_file", value: "file:", expectError: true},
		{name: "unsupported", value: "vault:secret/github", expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			source, parseError := githubauth.ParseTokenSource(testCase.value)
			if testCase.expectError {
				require.Error(testInstance, parseError)
				return
			}
			require.NoError(testInstance, parseError)
			require.Equal(testInstance, testCase.expectedSource, source)
		})
	}
}

func TestTokenResolverResolve(testInstance *testing.T) {
	environment := map[string]string{"GITHUB_TOKEN": "conventional", "MIGRATION_TOKEN": "migration"}
	fileReader := func(path string) ([]byte, error) {
		switch path {
		case "/secrets/github":
			return []byte("from-file\n"), nil
		case "/secrets/empty":
			return []byte("  \n"), nil
		default:
			return nil, errors.New("no such file")
		}
	}
	resolver := githubauth.NewTokenResolver(githubauth.MapLookup(environment), fileReader)

	testCases := []struct {
		name          string
		source        string
		expectedToken string
		expectError   bool
	}{
		{name: "conventional_default", source: "", expectedToken: "conventional"},
		{name: "named_variable", source: "env:MIGRATION_TOKEN", expectedToken: "migration"},
		{name: "file", source: "file:/secrets/github", expectedToken: "from-file"},
		{name: "missing_variable", source: "UNSET_TOKEN", expectError: true},
		{name: "empty_file", source: "file:/secrets/empty", expectError: true},
		{name: "unreadable_file", source: "file:/secrets/missing", expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			token, resolveError := resolver.Resolve(context.Background(), testCase.source)
			if testCase.expectError {
				require.Error(testInstance, resolveError)
				return
			}
			require.NoError(testInstance, resolveError)
			require.Equal(testInstance, testCase.expectedToken, token)
		})
	}
}

func TestTokenResolverWithoutAnyToken(testInstance *testing.T) {
	resolver := githubauth.NewTokenResolver(githubauth.MapLookup(map[string]string{}), nil)
	_, resolveError := resolver.Resolve(context.Background(), "")
	require.ErrorIs(testInstance, resolveError, githubauth.ErrTokenNotFound)
}

func TestNewHTTPClientAuthorizesRequests(testInstance *testing.T) {
	var receivedAuthorization string
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		receivedAuthorization = request.Header.Get("Authorization")
		responseWriter.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	httpClient, clientError := githubauth.NewHTTPClient(context.Background(), " secret-token ")
	require.NoError(testInstance, clientError)

	response, requestError := httpClient.Get(server.URL)
	require.NoError(testInstance, requestError)
	require.NoError(testInstance, response.Body.Close())
	require.Equal(testInstance, "Bearer secret-token", receivedAuthorization)

	_, emptyError := githubauth.NewHTTPClient(context.Background(), "")
	require.Error(testInstance, emptyError)
}
