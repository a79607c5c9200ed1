package migrate

import (
	"fmt"
	"strings"
)

const (
	githubStatusTodoConstant       = "Todo"
	githubStatusInProgressConstant = "In Progress"
	githubStatusDoneConstant       = "Done"
	unknownStatusTemplateConstant  = "JIRA status %q has no GitHub status mapping"
)

var jiraStatusMapping = map[string]string{
	"open":        githubStatusTodoConstant,
	"reopened":    githubStatusTodoConstant,
	"to do":       githubStatusTodoConstant,
	"in progress": githubStatusInProgressConstant,
	"done":        githubStatusDoneConstant,
	"resolved":    githubStatusDoneConstant,
	"closed":      githubStatusDoneConstant,
}

// UnknownStatusError reports a JIRA status outside the mapping.
type UnknownStatusError struct {
	Status string
}

// Error describes the unmapped status.
func (statusError UnknownStatusError) Error() string {
	return fmt.Sprintf(unknownStatusTemplateConstant, statusError.Status)
}

// MapStatus translates a JIRA workflow status into a GitHub Project status name.
// Matching ignores case and surrounding whitespace; there is no fallback status.
func MapStatus(jiraStatus string) (string, error) {
	githubStatus, mapped := jiraStatusMapping[strings.ToLower(strings.TrimSpace(jiraStatus))]
	if !mapped {
		return "", UnknownStatusError{Status: jiraStatus}
	}
	return githubStatus, nil
}
