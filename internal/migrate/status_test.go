package migrate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/ghkeeper/internal/migrate"
)

func TestMapStatus(testInstance *testing.T) {
	testCases := []struct {
		jiraStatus     string
		expectedStatus string
		expectUnknown  bool
	}{
		{jiraStatus: "Open", expectedStatus: "Todo"},
		{jiraStatus: "Reopened", expectedStatus: "Todo"},
		{jiraStatus: "To Do", expectedStatus: "Todo"},
		{jiraStatus: "In Progress", expectedStatus: "In Progress"},
		{jiraStatus: "in progress", expectedStatus: "In Progress"},
		{jiraStatus: "Done", expectedStatus: "Done"},
		{jiraStatus: "Resolved", expectedStatus: "Done"},
		{jiraStatus: " Closed ", expectedStatus: "Done"},
		{jiraStatus: "Blocked", expectUnknown: true},
		{jiraStatus: "", expectUnknown: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.jiraStatus, func(subTest *testing.T) {
			githubStatus, mappingError := migrate.MapStatus(testCase.jiraStatus)
			if testCase.expectUnknown {
				var unknownStatusError migrate.UnknownStatusError
				require.ErrorAs(subTest, mappingError, &unknownStatusError)
				require.Equal(subTest, testCase.jiraStatus, unknownStatusError.Status)
				return
			}
			require.NoError(subTest, mappingError)
			require.Equal(subTest, testCase.expectedStatus, githubStatus)
		})
	}
}
