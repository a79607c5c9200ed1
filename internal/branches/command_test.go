package branches_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/ghkeeper/internal/branches"
	"github.com/temirov/ghkeeper/internal/githubrest"
)

func executeBranchesCommand(testInstance *testing.T, service *branches.Service, configuration branches.CommandConfiguration, arguments ...string) (string, error) {
	testInstance.Helper()
	builder := branches.CommandBuilder{
		ConfigurationProvider: func() branches.CommandConfiguration { return configuration },
		ServiceProvider:       func(context.Context) (*branches.Service, error) { return service, nil },
		Now:                   func() time.Time { return testNow },
	}
	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)
	output := &bytes.Buffer{}
	command.SetOut(output)
	command.SetArgs(arguments)
	executionError := command.Execute()
	return output.String(), executionError
}

func TestScanCommandWritesInventory(testInstance *testing.T) {
	client := newFakeBranchClient()
	client.branches["acme/api"] = []githubrest.Branch{{Name: "bot/refresh", CommitSHA: "sha-1"}, {Name: "devin/x", CommitSHA: "sha-2"}}
	client.commitDates["sha-1"] = testNow.Add(-3 * 24 * time.Hour)
	service := newTestService(testInstance, client, []githubrest.Repository{{Name: "api", FullName: "acme/api", Owner: "acme"}}, nil)
	inventoryPath := filepath.Join(testInstance.TempDir(), "inventory.json")

	output, executionError := executeBranchesCommand(testInstance, service, branches.CommandConfiguration{}, "scan", "--prefix", "bot/", "-o", inventoryPath)
	require.NoError(testInstance, executionError)
	require.Equal(testInstance,
		"Found branches with prefix \"bot/\" in 1 of 1 repositories:\n"+
			"\nacme/api\n"+
			"  - bot/refresh (last commit 2024-06-07T12:00:00Z, 3 days ago)\n"+
			"\nSaved inventory to "+inventoryPath+"\n",
		output,
	)

	inventory, loadError := branches.LoadInventory(inventoryPath)
	require.NoError(testInstance, loadError)
	require.Len(testInstance, inventory, 1)
	require.Equal(testInstance, "bot/refresh", inventory[0].Branches[0].Name)
	require.True(testInstance, inventory[0].Branches[0].LastCommitDate.Equal(testNow.Add(-3*24*time.Hour)))
}

func TestScanCommandReportsNoMatches(testInstance *testing.T) {
	service := newTestService(testInstance, newFakeBranchClient(), []githubrest.Repository{{Name: "api", FullName: "acme/api", Owner: "acme"}}, nil)
	inventoryPath := filepath.Join(testInstance.TempDir(), "inventory.json")

	output, executionError := executeBranchesCommand(testInstance, service, branches.CommandConfiguration{InventoryFile: inventoryPath}, "scan")
	require.NoError(testInstance, executionError)
	require.Equal(testInstance, "No branches with prefix \"devin/\" found in 1 repositories\n", output)
	require.NoFileExists(testInstance, inventoryPath)
}

func TestCleanupCommand(testInstance *testing.T) {
	directory := testInstance.TempDir()
	inventoryPath := filepath.Join(directory, "stale.json")
	require.NoError(testInstance, branches.SaveInventory(inventoryPath, []branches.RepositoryBranches{{
		Name:     "api",
		FullName: "acme/api",
		Branches: []branches.BranchRecord{
			{Name: "devin/old", LastCommitDate: testNow.Add(-9 * 24 * time.Hour)},
			{Name: "devin/fresh", LastCommitDate: testNow.Add(-24 * time.Hour)},
		},
	}}))

	testCases := []struct {
		name           string
		arguments      []string
		expectedOutput string
		expectedError  string
		expectDeletion bool
	}{
		{
			name:      "simulation by default",
			arguments: []string{"cleanup", "--input", inventoryPath},
			expectedOutput: "Processing 1 repositories\n" +
				"\nacme/api\n" +
				"[simulation] devin/old: would delete (last commit 1 week ago)\n" +
				"[skipped] devin/fresh: last commit 1 day ago is newer than the cutoff\n" +
				"\n0 deleted, 1 simulated, 1 skipped, 0 failed\n",
		},
		{
			name:      "execute deletes old branches",
			arguments: []string{"cleanup", "-i", inventoryPath, "--execute"},
			expectedOutput: "Processing 1 repositories\n" +
				"\nacme/api\n" +
				"[deleted] devin/old: deleted (last commit 1 week ago)\n" +
				"[skipped] devin/fresh: last commit 1 day ago is newer than the cutoff\n" +
				"\n1 deleted, 0 simulated, 1 skipped, 0 failed\n",
			expectDeletion: true,
		},
		{
			name:      "shorter cutoff",
			arguments: []string{"cleanup", "--input", inventoryPath, "--days", "10"},
			expectedOutput: "Processing 1 repositories\n" +
				"\nacme/api\n" +
				"[skipped] devin/old: last commit 1 week ago is newer than the cutoff\n" +
				"[skipped] devin/fresh: last commit 1 day ago is newer than the cutoff\n" +
				"\n0 deleted, 0 simulated, 2 skipped, 0 failed\n",
		},
		{
			name:          "missing inventory",
			arguments:     []string{"cleanup", "--input", filepath.Join(directory, "absent.json")},
			expectedError: "run `ghkeeper branches scan` first",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			client := newFakeBranchClient()
			service := newTestService(subTest, client, nil, nil)

			output, executionError := executeBranchesCommand(subTest, service, branches.CommandConfiguration{}, testCase.arguments...)
			if len(testCase.expectedError) > 0 {
				require.ErrorIs(subTest, executionError, branches.ErrInventoryMissing)
				require.ErrorContains(subTest, executionError, testCase.expectedError)
				return
			}
			require.NoError(subTest, executionError)
			require.Equal(subTest, testCase.expectedOutput, output)
			require.Equal(subTest, testCase.expectDeletion, len(client.deleted) == 1)
		})
	}
}

func TestCleanupCommandFailsWhenDeletionsFail(testInstance *testing.T) {
	inventoryPath := filepath.Join(testInstance.TempDir(), "stale.json")
	require.NoError(testInstance, branches.SaveInventory(inventoryPath, []branches.RepositoryBranches{{
		FullName: "acme/api",
		Branches: []branches.BranchRecord{{Name: "devin/old", LastCommitDate: testNow.Add(-9 * 24 * time.Hour)}},
	}}))
	client := newFakeBranchClient()
	client.deleteFailures["acme/api:devin/old"] = []error{errors.New(testForbiddenConstant)}
	service := newTestService(testInstance, client, nil, nil)

	output, executionError := executeBranchesCommand(testInstance, service, branches.CommandConfiguration{}, "cleanup", "--input", inventoryPath, "--execute")
	require.EqualError(testInstance, executionError, "1 branch deletions failed")
	require.Contains(testInstance, output, "[error] devin/old: ")
	require.Contains(testInstance, output, "0 deleted, 0 simulated, 0 skipped, 1 failed\n")
}
