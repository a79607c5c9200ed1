package projects_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/ghkeeper/internal/githubapi"
	"github.com/temirov/ghkeeper/internal/githubrest"
	"github.com/temirov/ghkeeper/internal/pagination/paginationtest"
	"github.com/temirov/ghkeeper/internal/projects"
	"github.com/temirov/ghkeeper/internal/snapshot"
)

type commandFixture struct {
	service    *serviceFixture
	store      *paginationtest.MemoryStore
	storePaths []string
	output     *bytes.Buffer
}

func newCommandFixture(testInstance *testing.T, itemPages [][]githubapi.ProjectItem, issuePages [][]githubrest.Issue) *commandFixture {
	testInstance.Helper()
	return &commandFixture{
		service: newServiceFixture(testInstance, itemPages, issuePages),
		store:   paginationtest.NewMemoryStore(nil),
		output:  &bytes.Buffer{},
	}
}

func (fixture *commandFixture) execute(testInstance *testing.T, configuration projects.CommandConfiguration, arguments ...string) error {
	testInstance.Helper()
	builder := projects.CommandBuilder{
		ConfigurationProvider: func() projects.CommandConfiguration { return configuration },
		ServiceProvider: func(context.Context) (*projects.Service, error) {
			return fixture.service.service, nil
		},
		StoreProvider: func(path string) (snapshot.Store, func() error, error) {
			fixture.storePaths = append(fixture.storePaths, path)
			return fixture.store, func() error { return nil }, nil
		},
	}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)
	command.SetOut(fixture.output)
	command.SetErr(&bytes.Buffer{})
	command.SetArgs(arguments)
	return command.Execute()
}

func TestItemsCommandListsAndWritesTargets(testInstance *testing.T) {
	fixture := newCommandFixture(testInstance, [][]githubapi.ProjectItem{{
		{ID: "PVTI_1", Title: "Fix login", Status: "Todo", ContentType: githubapi.ContentTypeIssue, Repository: "acme/backend", Number: 12},
		{ID: "PVTI_2", Title: "Idea", ContentType: githubapi.ContentTypeDraftIssue},
	}}, nil)
	targetsPath := filepath.Join(testInstance.TempDir(), "targets.json")

	executionError := fixture.execute(testInstance, projects.CommandConfiguration{Owner: "acme", ProjectNumber: 3},
		"items", "--write-targets", targetsPath, "--cache-file", "items.json")
	require.NoError(testInstance, executionError)

	require.Equal(testInstance,
		"2 items in Roadmap\n"+
			"- [Todo] Fix login (acme/backend#12, PVTI_1)\n"+
			"- [未設定] Idea (DraftIssue, PVTI_2)\n"+
			"Wrote 2 targets to "+targetsPath+"\n",
		fixture.output.String(),
	)
	require.Equal(testInstance, []string{"items.json"}, fixture.storePaths)

	targets, loadError := projects.LoadTargets(targetsPath)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, []projects.Target{{ID: "PVTI_1", Title: "Fix login"}, {ID: "PVTI_2", Title: "Idea"}}, targets)
}

func TestItemsCommandSetsStatusAndConvertsDrafts(testInstance *testing.T) {
	fixture := newCommandFixture(testInstance, [][]githubapi.ProjectItem{{
		{ID: "PVTI_1", Title: "Idea", ContentType: githubapi.ContentTypeDraftIssue, Body: "Status: Done"},
	}}, nil)

	executionError := fixture.execute(testInstance, projects.CommandConfiguration{},
		"items", "--owner", "acme", "--number", "3", "--refresh", "--convert-drafts", "--repository", "acme/backend", "--set-status", "Done")
	require.NoError(testInstance, executionError)

	require.Contains(testInstance, fixture.output.String(), "converted Idea -> #41 https://github.com/acme/backend/issues/41\n")
	require.Contains(testInstance, fixture.output.String(), "Updated 1/1 items\n")
	require.Equal(testInstance, []string{"PVTI_1"}, fixture.service.gateway.convertedItems)
	require.Len(testInstance, fixture.service.gateway.statusUpdates, 1)
	require.Equal(testInstance, 0, fixture.store.LoadCount)
}

func TestItemsCommandValidatesInput(testInstance *testing.T) {
	testCases := []struct {
		name          string
		configuration projects.CommandConfiguration
		arguments     []string
		expectedError string
	}{
		{name: "missing owner", arguments: []string{"items", "--number", "3"}, expectedError: "project owner must be provided"},
		{name: "missing number", configuration: projects.CommandConfiguration{Owner: "acme"}, arguments: []string{"items"}, expectedError: "project number must be provided"},
		{name: "invalid owner type", arguments: []string{"items", "--owner", "acme", "--number", "3", "--owner-type", "team"}, expectedError: "owner"},
		{name: "conversion without repository", arguments: []string{"items", "--owner", "acme", "--number", "3", "--convert-drafts"}, expectedError: "--repository is required"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			fixture := newCommandFixture(subTest, [][]githubapi.ProjectItem{{}}, nil)
			executionError := fixture.execute(subTest, testCase.configuration, testCase.arguments...)
			require.ErrorContains(subTest, executionError, testCase.expectedError)
			require.Empty(subTest, fixture.service.gateway.statusUpdates)
		})
	}
}

func TestUpdateStatusCommandUsesTargetsFile(testInstance *testing.T) {
	fixture := newCommandFixture(testInstance, nil, nil)
	targetsPath := filepath.Join(testInstance.TempDir(), "update_targets.json")
	require.NoError(testInstance, projects.SaveTargets(targetsPath, []projects.Target{{ID: "PVTI_1", Title: "one"}, {ID: "PVTI_2", Title: "two"}}))

	executionError := fixture.execute(testInstance, projects.CommandConfiguration{},
		"update-status", "--project-id", testProjectIDConstant, "--status", "Done", "--targets", targetsPath, "--batch-size", "1", "--delay", "2s")
	require.NoError(testInstance, executionError)

	require.Equal(testInstance, "Updated 2/2 items\n", fixture.output.String())
	require.Len(testInstance, fixture.service.sleeps, 1)
	require.Equal(testInstance, "2s", fixture.service.sleeps[0].String())
}

func TestUpdateStatusCommandReportsMissingTargets(testInstance *testing.T) {
	fixture := newCommandFixture(testInstance, nil, nil)

	executionError := fixture.execute(testInstance, projects.CommandConfiguration{TargetsFile: filepath.Join(testInstance.TempDir(), "absent.json")},
		"update-status", "--owner", "acme", "--number", "3", "--status", "Done")
	require.ErrorIs(testInstance, executionError, projects.ErrTargetsFileMissing)
}

func TestSyncIssuesCommandReportsSummary(testInstance *testing.T) {
	fixture := newCommandFixture(testInstance,
		[][]githubapi.ProjectItem{{}},
		[][]githubrest.Issue{{
			{NodeID: "I_1", Number: 1, Title: "Added", Body: "Status: Done"},
			{NodeID: "I_2", Number: 2, Title: "Stuck", Body: "Status: Done"},
		}},
	)
	fixture.service.gateway.addFailures["I_2"] = []error{githubapi.ErrProjectNotFound}

	executionError := fixture.execute(testInstance, projects.CommandConfiguration{Owner: "acme", ProjectNumber: 3},
		"sync-issues", "--repository", "acme/backend")
	require.ErrorContains(testInstance, executionError, "1 items failed to synchronise")

	output := fixture.output.String()
	require.Contains(testInstance, output, "Synchronised 2 issues and 0 drafts: 1 added, 0 updated, 0 unchanged, 1 failed\n")
	require.Contains(testInstance, output, "- acme/backend#2: ")
	require.Equal(testInstance, []string{"I_1"}, fixture.service.gateway.addedContentIDs)
}
