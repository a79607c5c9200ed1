package dependabot_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/ghkeeper/internal/dependabot"
	"github.com/temirov/ghkeeper/internal/githubrest"
)

func executeDependabotCommand(testInstance *testing.T, service *dependabot.Service, configuration dependabot.CommandConfiguration, arguments ...string) (string, error) {
	testInstance.Helper()
	builder := dependabot.CommandBuilder{
		ConfigurationProvider: func() dependabot.CommandConfiguration { return configuration },
		ServiceProvider:       func(context.Context) (*dependabot.Service, error) { return service, nil },
	}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)
	output := &bytes.Buffer{}
	command.SetOut(output)
	command.SetArgs(arguments)
	executionError := command.Execute()
	return output.String(), executionError
}

func TestScanCommandReportsDecisions(testInstance *testing.T) {
	client := newFakeClient()
	client.pullRequests["acme/api"] = []githubrest.PullRequest{
		{Number: 1, Title: "Bump lodash from 1 to 2"},
		{Number: 2, Title: "Bump left-pad from 1 to 2"},
		{Number: 3, Title: "Refresh lockfile"},
	}
	client.alerts["acme/api"] = []githubrest.DependabotAlert{{Number: 1}}
	client.manifests["acme/api:package.json"] = "lodash"
	client.pullRequestError["acme/web"] = errors.New("404 not found")
	service := newTestService(testInstance, client, staticRepositories{repositories: []githubrest.Repository{{FullName: "acme/api"}, {FullName: "acme/web"}}})

	output, executionError := executeDependabotCommand(testInstance, service, dependabot.CommandConfiguration{}, "scan")
	require.NoError(testInstance, executionError)
	require.Contains(testInstance, output, "Checking 2 repositories for Dependabot alerts and pull requests\n")
	require.Contains(testInstance, output, "\nacme/api: 3 open pull requests, 1 alerts\n")
	require.Contains(testInstance, output, "  #1 lodash is a direct dependency (package.json): analysis requested\n")
	require.Contains(testInstance, output, "  #2 left-pad is an indirect dependency: skipped\n")
	require.Contains(testInstance, output, "  #3 \"Refresh lockfile\" does not name a bumped package: skipped\n")
	require.Contains(testInstance, output, "\nacme/web: skipped: ")
	require.Contains(testInstance, output, "\nDependabot scan completed: 1 comments posted\n")
	require.Len(testInstance, client.comments, 1)
}

func TestScanCommandHonoursRepositoryAndDryRun(testInstance *testing.T) {
	testCases := []struct {
		name          string
		configuration dependabot.CommandConfiguration
		arguments     []string
		expectComment bool
	}{
		{name: "flag dry run", arguments: []string{"scan", "--repo", "acme/api", "--dry-run"}},
		{name: "configured dry run", configuration: dependabot.CommandConfiguration{Repository: "acme/api", DryRun: true}, arguments: []string{"scan"}},
		{name: "flag disables configured dry run", configuration: dependabot.CommandConfiguration{Repository: "acme/api", DryRun: true}, arguments: []string{"scan", "--dry-run=no"}, expectComment: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			client := newFakeClient()
			client.pullRequests["acme/api"] = []githubrest.PullRequest{{Number: 5, Title: "Bump lodash from 1 to 2"}}
			client.manifests["acme/api:package.json"] = "lodash"
			service := newTestService(subTest, client, nil)

			output, executionError := executeDependabotCommand(subTest, service, testCase.configuration, testCase.arguments...)
			require.NoError(subTest, executionError)
			require.Contains(subTest, output, "Checking 1 repositories")
			require.Equal(subTest, testCase.expectComment, len(client.comments) == 1)
			if !testCase.expectComment {
				require.Contains(subTest, output, "dry run, no comment posted")
			}
		})
	}
}
