package projects_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/ghkeeper/internal/githubapi"
	"github.com/temirov/ghkeeper/internal/projects"
)

const expectedTargetsDocumentConstant = `[
  {
    "id": "PVTI_1",
    "title": "First"
  },
  {
    "id": "PVTI_2",
    "title": "Second"
  }
]
`

func TestSaveAndLoadTargets(testInstance *testing.T) {
	targetsPath := filepath.Join(testInstance.TempDir(), "update_targets.json")
	targets := projects.TargetsFromItems([]githubapi.ProjectItem{
		{ID: "PVTI_1", Title: "First", Status: "Todo"},
		{ID: "PVTI_2", Title: "Second"},
	})

	require.NoError(testInstance, projects.SaveTargets(targetsPath, targets))

	contents, readError := os.ReadFile(targetsPath)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, expectedTargetsDocumentConstant, string(contents))

	loadedTargets, loadError := projects.LoadTargets(targetsPath)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, targets, loadedTargets)
}

func TestSaveTargetsWritesEmptyArray(testInstance *testing.T) {
	targetsPath := filepath.Join(testInstance.TempDir(), "targets.json")
	require.NoError(testInstance, projects.SaveTargets(targetsPath, nil))

	contents, readError := os.ReadFile(targetsPath)
	require.NoError(testInstance, readError)
	require.Equal(testInstance, "[]\n", string(contents))
}

func TestLoadTargetsErrors(testInstance *testing.T) {
	directory := testInstance.TempDir()
	malformedPath := filepath.Join(directory, "malformed.json")
	require.NoError(testInstance, os.WriteFile(malformedPath, []byte("{not json"), 0o644))

	testCases := []struct {
		name          string
		path          string
		expectMissing bool
		expectedError string
	}{
		{name: "missing file", path: filepath.Join(directory, "absent.json"), expectMissing: true, expectedError: "--write-targets"},
		{name: "malformed file", path: malformedPath, expectedError: "unable to decode targets file"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			_, loadError := projects.LoadTargets(testCase.path)
			require.Error(subTest, loadError)
			require.Contains(subTest, loadError.Error(), testCase.expectedError)
			require.Equal(subTest, testCase.expectMissing, errors.Is(loadError, projects.ErrTargetsFileMissing))
		})
	}
}
