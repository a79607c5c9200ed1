package docs_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/temirov/ghkeeper/cmd/cli"
	"github.com/temirov/ghkeeper/internal/utils"
)

const (
	readmeFileNameConstant           = "README.md"
	yamlFenceStartConstant           = "```yaml"
	yamlFenceEndConstant             = "```"
	configHeaderMarkerConstant       = "# config.yaml"
	readmeSnippetFileNameConstant    = "config.yaml"
	parentDirectoryReferenceConstant = ".."
	missingHeaderMessageConstant     = "README example missing config header marker"
	missingStartFenceMessageConstant = "README example missing yaml fence start"
	missingEndFenceMessageConstant   = "README example missing yaml fence end"
	unexpectedSectionMessageTemplate = "unexpected configuration section %s"
)

var knownSections = map[string]map[string]struct{}{
	"common": nil,
	"github": nil,
	"cache":  nil,
	"retry":  {"bulk": {}, "migration": {}, "interactive": {}},
	"tools":  {"repos": {}, "branches": {}, "projects": {}, "migrate": {}, "dependabot": {}},
}

func TestReadmeConfigurationParses(testInstance *testing.T) {
	snippetContent := readmeConfigurationSnippet(testInstance)

	var sections map[string]map[string]any
	require.NoError(testInstance, yaml.Unmarshal([]byte(snippetContent), &sections))
	for sectionName, sectionContent := range sections {
		nestedSections, known := knownSections[sectionName]
		require.Truef(testInstance, known, unexpectedSectionMessageTemplate, sectionName)
		if nestedSections == nil {
			continue
		}
		for nestedName := range sectionContent {
			_, nestedKnown := nestedSections[nestedName]
			require.Truef(testInstance, nestedKnown, unexpectedSectionMessageTemplate, sectionName+"."+nestedName)
		}
	}

	snippetPath := filepath.Join(testInstance.TempDir(), readmeSnippetFileNameConstant)
	require.NoError(testInstance, os.WriteFile(snippetPath, []byte(snippetContent), 0o600))

	loader := utils.NewConfigurationLoader("config", "yaml", "GHKEEPER_README", nil)
	var configuration cli.ApplicationConfiguration
	_, loadError := loader.LoadConfiguration(snippetPath, nil, &configuration)
	require.NoError(testInstance, loadError)

	require.Equal(testInstance, "console", configuration.Common.LogFormat)
	require.Equal(testInstance, "redis", configuration.Cache.Backend)
	require.Equal(testInstance, 24*time.Hour, configuration.Cache.RedisTTL)
	require.Equal(testInstance, time.Hour, configuration.Retry.Bulk.InitialWait)
	require.Equal(testInstance, "acme", configuration.Tools.Projects.Owner)
	require.Equal(testInstance, 7, configuration.Tools.Migrate.ProjectNumber)
	require.Equal(testInstance, 50, configuration.Tools.Dependabot.RepositoryLimit)
}

func readmeConfigurationSnippet(testInstance *testing.T) string {
	testInstance.Helper()

	workingDirectory, workingDirectoryError := os.Getwd()
	require.NoError(testInstance, workingDirectoryError)

	readmePath := filepath.Join(workingDirectory, parentDirectoryReferenceConstant, readmeFileNameConstant)
	contentBytes, readError := os.ReadFile(readmePath)
	require.NoError(testInstance, readError)

	contentText := string(contentBytes)
	headerIndex := strings.Index(contentText, configHeaderMarkerConstant)
	require.NotEqual(testInstance, -1, headerIndex, missingHeaderMessageConstant)

	fenceStartIndex := strings.LastIndex(contentText[:headerIndex], yamlFenceStartConstant)
	require.NotEqual(testInstance, -1, fenceStartIndex, missingStartFenceMessageConstant)

	remainingText := contentText[headerIndex:]
	fenceEndRelativeIndex := strings.Index(remainingText, yamlFenceEndConstant)
	require.NotEqual(testInstance, -1, fenceEndRelativeIndex, missingEndFenceMessageConstant)
	fenceEndIndex := headerIndex + fenceEndRelativeIndex

	return strings.TrimSpace(contentText[fenceStartIndex+len(yamlFenceStartConstant) : fenceEndIndex])
}
