package dependabot_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/ghkeeper/internal/dependabot"
	"github.com/temirov/ghkeeper/internal/githubrest"
	"github.com/temirov/ghkeeper/internal/pagination/paginationtest"
	"github.com/temirov/ghkeeper/internal/ratelimit"
)

type postedComment struct {
	repository string
	number     int
	body       string
}

type fakeClient struct {
	pullRequests     map[string][]githubrest.PullRequest
	alerts           map[string][]githubrest.DependabotAlert
	manifests        map[string]string
	pullRequestError map[string]error
	manifestErrors   map[string]error
	commentFailures  map[int][]error
	comments         []postedComment
	readManifests    []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		pullRequests:     map[string][]githubrest.PullRequest{},
		alerts:           map[string][]githubrest.DependabotAlert{},
		manifests:        map[string]string{},
		pullRequestError: map[string]error{},
		manifestErrors:   map[string]error{},
		commentFailures:  map[int][]error{},
	}
}

func (client *fakeClient) DependabotPullRequests(_ context.Context, owner string, name string) ([]githubrest.PullRequest, error) {
	fullName := owner + "/" + name
	if failure, failing := client.pullRequestError[fullName]; failing {
		return nil, failure
	}
	return client.pullRequests[fullName], nil
}

func (client *fakeClient) OpenDependabotAlerts(_ context.Context, owner string, name string) ([]githubrest.DependabotAlert, error) {
	return client.alerts[owner+"/"+name], nil
}

func (client *fakeClient) FileContains(_ context.Context, owner string, name string, path string, needle string) (bool, error) {
	key := owner + "/" + name + ":" + path
	client.readManifests = append(client.readManifests, key)
	if failure, failing := client.manifestErrors[key]; failing {
		return false, failure
	}
	content, present := client.manifests[key]
	if !present {
		return false, nil
	}
	return strings.Contains(content, needle), nil
}

func (client *fakeClient) CreateIssueComment(_ context.Context, owner string, name string, number int, body string) error {
	if queuedFailures := client.commentFailures[number]; len(queuedFailures) > 0 {
		client.commentFailures[number] = queuedFailures[1:]
		return queuedFailures[0]
	}
	client.comments = append(client.comments, postedComment{repository: owner + "/" + name, number: number, body: body})
	return nil
}

type staticRepositories struct {
	repositories []githubrest.Repository
	listError    error
}

func (lister staticRepositories) FirstPage(context.Context) ([]githubrest.Repository, error) {
	return lister.repositories, lister.listError
}

func newTestService(testInstance *testing.T, client *fakeClient, lister dependabot.RepositoryLister) *dependabot.Service {
	testInstance.Helper()
	retrier, _, retrierError := paginationtest.NewImmediateRetrier(2)
	require.NoError(testInstance, retrierError)
	service, serviceError := dependabot.NewService(dependabot.ServiceDependencies{Client: client, Repositories: lister, Retrier: retrier})
	require.NoError(testInstance, serviceError)
	return service
}

func TestTargets(testInstance *testing.T) {
	lister := staticRepositories{repositories: []githubrest.Repository{{FullName: "acme/api"}, {FullName: "acme/web"}, {FullName: "acme/docs"}}}

	testCases := []struct {
		name          string
		lister        dependabot.RepositoryLister
		options       dependabot.Options
		expected      []string
		expectedError string
	}{
		{name: "single repository", options: dependabot.Options{Repository: " acme/api "}, expected: []string{"acme/api"}},
		{name: "invalid repository", options: dependabot.Options{Repository: "api"}, expectedError: "owner/name"},
		{name: "all repositories", lister: lister, expected: []string{"acme/api", "acme/web", "acme/docs"}},
		{name: "limited", lister: lister, options: dependabot.Options{RepositoryLimit: 2}, expected: []string{"acme/api", "acme/web"}},
		{name: "lister failure", lister: staticRepositories{listError: errors.New("boom")}, expectedError: "unable to list repositories: boom"},
		{name: "no lister", expectedError: "repository lister not configured"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			service := newTestService(subTest, newFakeClient(), testCase.lister)
			targets, targetsError := service.Targets(context.Background(), testCase.options)
			if len(testCase.expectedError) > 0 {
				require.ErrorContains(subTest, targetsError, testCase.expectedError)
				return
			}
			require.NoError(subTest, targetsError)
			require.Equal(subTest, testCase.expected, targets)
		})
	}
}

func TestScanCommentsOnDirectDependencies(testInstance *testing.T) {
	client := newFakeClient()
	client.pullRequests["acme/api"] = []githubrest.PullRequest{
		{Number: 1, Title: "Bump lodash from 4.17.20 to 4.17.21"},
		{Number: 2, Title: "Bump minimist from 1.2.0 to 1.2.6"},
		{Number: 3, Title: "Update the lockfile"},
		{Number: 4, Title: "Bump golang.org/x/net from 0.17.0 to 0.23.0"},
	}
	client.alerts["acme/api"] = []githubrest.DependabotAlert{{Number: 7}, {Number: 8}}
	client.manifests["acme/api:package.json"] = `{"dependencies": {"lodash": "^4.17.20"}}`
	client.manifests["acme/api:go.mod"] = "require golang.org/x/net v0.17.0"
	client.manifestErrors["acme/api:requirements.txt"] = errors.New("500 internal error")
	client.commentFailures[4] = []error{errors.New("403 locked")}
	client.pullRequestError["acme/broken"] = errors.New("404 not found")
	service := newTestService(testInstance, client, nil)

	report, scanError := service.Scan(context.Background(), []string{"acme/api", "acme/broken"}, dependabot.Options{})
	require.NoError(testInstance, scanError)

	require.Equal(testInstance, 1, report.Comments)
	require.Len(testInstance, report.Repositories, 2)
	apiReport := report.Repositories[0]
	require.Equal(testInstance, 4, apiReport.PullRequests)
	require.Equal(testInstance, 2, apiReport.Alerts)

	decisions := make([]dependabot.Decision, 0, len(apiReport.Analyses))
	for _, analysis := range apiReport.Analyses {
		decisions = append(decisions, analysis.Decision)
	}
	require.Equal(testInstance, []dependabot.Decision{
		dependabot.DecisionCommented,
		dependabot.DecisionIndirect,
		dependabot.DecisionUnparsable,
		dependabot.DecisionFailed,
	}, decisions)
	require.Equal(testInstance, "package.json", apiReport.Analyses[0].Manifest)
	require.Equal(testInstance, "go.mod", apiReport.Analyses[3].Manifest)
	var fatalError ratelimit.FatalError
	require.ErrorAs(testInstance, apiReport.Analyses[3].Error, &fatalError)

	require.Equal(testInstance, []postedComment{{repository: "acme/api", number: 1, body: dependabot.AnalysisComment}}, client.comments)

	var brokenFatal ratelimit.FatalError
	require.ErrorAs(testInstance, report.Repositories[1].Error, &brokenFatal)
}

func TestScanDryRunPostsNothing(testInstance *testing.T) {
	client := newFakeClient()
	client.pullRequests["acme/api"] = []githubrest.PullRequest{{Number: 1, Title: "Bump lodash from 1 to 2"}}
	client.manifests["acme/api:package.json"] = "lodash"
	service := newTestService(testInstance, client, nil)

	report, scanError := service.Scan(context.Background(), []string{"acme/api"}, dependabot.Options{DryRun: true, Manifests: []string{"package.json"}})
	require.NoError(testInstance, scanError)
	require.Equal(testInstance, 0, report.Comments)
	require.Equal(testInstance, dependabot.DecisionDryRun, report.Repositories[0].Analyses[0].Decision)
	require.Empty(testInstance, client.comments)
	require.Equal(testInstance, []string{"acme/api:package.json"}, client.readManifests)
}

func TestNewServiceValidatesDependencies(testInstance *testing.T) {
	retrier, _, retrierError := paginationtest.NewImmediateRetrier(1)
	require.NoError(testInstance, retrierError)

	_, clientError := dependabot.NewService(dependabot.ServiceDependencies{Retrier: retrier})
	require.ErrorIs(testInstance, clientError, dependabot.ErrClientNotConfigured)

	_, retrierMissingError := dependabot.NewService(dependabot.ServiceDependencies{Client: newFakeClient()})
	require.ErrorIs(testInstance, retrierMissingError, dependabot.ErrRetrierNotConfigured)
}
