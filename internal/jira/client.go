package jira

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	gojira "github.com/andygrunwald/go-jira"

	"github.com/temirov/ghkeeper/internal/pagination"
)

const (
	defaultPageSizeConstant             = 100
	jqlTemplateConstant                 = `project = "%s" ORDER BY %s`
	defaultOrderByConstant              = "created DESC"
	searcherMissingMessageConstant      = "JIRA issue searcher not configured"
	projectMissingMessageConstant       = "JIRA project must be provided"
	clientCreationErrorTemplateConstant = "unable to create JIRA client for %s: %w"
	searchErrorTemplateConstant         = "JIRA search failed at %d: %w"
	invalidCursorTemplateConstant       = "invalid JIRA cursor %q"
)

var (
	// ErrSearcherNotConfigured indicates a Client built without a search backend.
	ErrSearcherNotConfigured = errors.New(searcherMissingMessageConstant)
	// ErrProjectMissing indicates an empty project key.
	ErrProjectMissing = errors.New(projectMissingMessageConstant)
)

// IssueSearcher is satisfied by go-jira's IssueService.
type IssueSearcher interface {
	SearchWithContext(ctx context.Context, jql string, options *gojira.SearchOptions) ([]gojira.Issue, *gojira.Response, error)
}

// Client searches issues with a fixed page size.
type Client struct {
	searcher IssueSearcher
	pageSize int
}

// NewClient authenticates with basic auth and returns a Client backed by go-jira.
func NewClient(credentials Credentials) (*Client, error) {
	transport := gojira.BasicAuthTransport{Username: credentials.Username, Password: credentials.APIToken}
	jiraClient, creationError := gojira.NewClient(transport.Client(), credentials.URL)
	if creationError != nil {
		return nil, fmt.Errorf(clientCreationErrorTemplateConstant, credentials.URL, creationError)
	}
	return NewClientWithSearcher(jiraClient.Issue, defaultPageSizeConstant)
}

// NewClientWithSearcher wraps an existing searcher. Non-positive page sizes fall back to 100.
func NewClientWithSearcher(searcher IssueSearcher, pageSize int) (*Client, error) {
	if searcher == nil {
		return nil, ErrSearcherNotConfigured
	}
	if pageSize <= 0 {
		pageSize = defaultPageSizeConstant
	}
	return &Client{searcher: searcher, pageSize: pageSize}, nil
}

// BuildJQL selects every issue of the project in the requested order.
func BuildJQL(project string, orderBy string) (string, error) {
	trimmedProject := strings.TrimSpace(project)
	if len(trimmedProject) == 0 {
		return "", ErrProjectMissing
	}
	trimmedOrderBy := strings.TrimSpace(orderBy)
	if len(trimmedOrderBy) == 0 {
		trimmedOrderBy = defaultOrderByConstant
	}
	escapedProject := strings.ReplaceAll(trimmedProject, `"`, `\"`)
	return fmt.Sprintf(jqlTemplateConstant, escapedProject, trimmedOrderBy), nil
}

// Issues pages through the search results; the cursor is the next startAt offset.
// A page shorter than the page size ends the search.
func (client *Client) Issues(jql string) pagination.PageSource[Issue] {
	return pagination.PageSourceFunc[Issue](func(executionContext context.Context, cursor *string) (pagination.Page[Issue], error) {
		startAt := 0
		if cursor != nil {
			parsedStartAt, parseError := strconv.Atoi(*cursor)
			if parseError != nil || parsedStartAt < 0 {
				return pagination.Page[Issue]{}, fmt.Errorf(invalidCursorTemplateConstant, *cursor)
			}
			startAt = parsedStartAt
		}

		options := &gojira.SearchOptions{StartAt: startAt, MaxResults: client.pageSize}
		sourceIssues, _, searchError := client.searcher.SearchWithContext(executionContext, jql, options)
		if searchError != nil {
			return pagination.Page[Issue]{}, fmt.Errorf(searchErrorTemplateConstant, startAt, searchError)
		}

		page := pagination.Page[Issue]{Items: make([]Issue, 0, len(sourceIssues))}
		for _, sourceIssue := range sourceIssues {
			page.Items = append(page.Items, convertIssue(sourceIssue))
		}
		if len(sourceIssues) >= client.pageSize {
			page.HasNextPage = true
			page.EndCursor = strconv.Itoa(startAt + len(sourceIssues))
		}
		return page, nil
	})
}
