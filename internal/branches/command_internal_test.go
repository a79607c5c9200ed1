package branches

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/ghkeeper/internal/githubauth"
	"github.com/temirov/ghkeeper/internal/ratelimit"
	"github.com/temirov/ghkeeper/internal/session"
)

func TestResolveServiceUsesInteractiveRetryPolicy(testInstance *testing.T) {
	runtime := session.NewRuntime(session.Dependencies{
		EnvironmentLookup: githubauth.MapLookup(map[string]string{githubauth.EnvGitHubToken: "ghp_branches"}),
	}, session.DefaultConfiguration())
	builder := CommandBuilder{RuntimeProvider: func() *session.Runtime { return runtime }}

	service, resolveError := builder.resolveService(context.Background())
	require.NoError(testInstance, resolveError)
	require.Equal(testInstance, ratelimit.InteractivePolicy(), service.retrier.Policy())
	require.NotEqual(testInstance, ratelimit.BulkPolicy().InitialWait, service.retrier.Policy().InitialWait)
}
