package repos_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/ghkeeper/internal/githubrest"
	"github.com/temirov/ghkeeper/internal/pagination/paginationtest"
	"github.com/temirov/ghkeeper/internal/ratelimit"
	"github.com/temirov/ghkeeper/internal/repos"
)

func TestServiceListsAllPages(testInstance *testing.T) {
	retrier, waits, retrierError := paginationtest.NewImmediateRetrier(3)
	require.NoError(testInstance, retrierError)
	source := paginationtest.NewScriptedSource(
		[]githubrest.Repository{{Name: "api", FullName: "acme/api"}},
		[]githubrest.Repository{{Name: "web", FullName: "acme/web"}},
	).FailPage(1, errors.New("API rate limit exceeded"))

	service, serviceError := repos.NewService(repos.ServiceDependencies{Source: source, Retrier: retrier})
	require.NoError(testInstance, serviceError)

	repositories, listError := service.List(context.Background())
	require.NoError(testInstance, listError)
	require.Equal(testInstance, sampleRepositories()[0].FullName, repositories[0].FullName)
	require.Len(testInstance, repositories, 2)
	require.Len(testInstance, waits.Durations, 1)
}

func TestServiceFirstPage(testInstance *testing.T) {
	retrier, _, retrierError := paginationtest.NewImmediateRetrier(1)
	require.NoError(testInstance, retrierError)
	source := paginationtest.NewScriptedSource(
		[]githubrest.Repository{{FullName: "acme/api"}},
		[]githubrest.Repository{{FullName: "acme/web"}},
	)

	service, serviceError := repos.NewService(repos.ServiceDependencies{Source: source, Retrier: retrier})
	require.NoError(testInstance, serviceError)

	repositories, listError := service.FirstPage(context.Background())
	require.NoError(testInstance, listError)
	require.Equal(testInstance, []githubrest.Repository{{FullName: "acme/api"}}, repositories)
	require.Equal(testInstance, 1, source.Calls())
}

func TestServiceReportsFatalErrors(testInstance *testing.T) {
	retrier, _, retrierError := paginationtest.NewImmediateRetrier(3)
	require.NoError(testInstance, retrierError)
	source := paginationtest.NewScriptedSource([]githubrest.Repository{}).FailPage(0, errors.New("401 bad credentials"))

	service, serviceError := repos.NewService(repos.ServiceDependencies{Source: source, Retrier: retrier})
	require.NoError(testInstance, serviceError)

	_, listError := service.List(context.Background())
	var fatalError ratelimit.FatalError
	require.ErrorAs(testInstance, listError, &fatalError)
	require.ErrorContains(testInstance, listError, "unable to list repositories")
}

func TestNewServiceValidatesDependencies(testInstance *testing.T) {
	retrier, _, retrierError := paginationtest.NewImmediateRetrier(1)
	require.NoError(testInstance, retrierError)

	_, sourceError := repos.NewService(repos.ServiceDependencies{Retrier: retrier})
	require.ErrorIs(testInstance, sourceError, repos.ErrSourceNotConfigured)

	_, retrierMissingError := repos.NewService(repos.ServiceDependencies{Source: paginationtest.NewScriptedSource[githubrest.Repository]()})
	require.ErrorIs(testInstance, retrierMissingError, repos.ErrRetrierNotConfigured)
}
