package githubrest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/go-github/v62/github"

	"github.com/temirov/ghkeeper/internal/pagination"
)

const (
	defaultRESTEndpointConstant             = "https://api.github.com/"
	pageSizeConstant                        = 100
	issueStateAllConstant                   = "all"
	pullRequestStateOpenConstant            = "open"
	alertStateOpenConstant                  = "open"
	branchReferencePrefixConstant           = "heads/"
	dependabotLoginConstant                 = "dependabot[bot]"
	clientNotConfiguredMessageConstant      = "GitHub REST client not configured"
	invalidCursorTemplateConstant           = "invalid page cursor %q"
	enterpriseEndpointErrorTemplateConstant = "unable to configure REST endpoint %s: %w"
	listRepositoriesErrorTemplateConstant   = "unable to list repositories: %w"
	listBranchesErrorTemplateConstant       = "unable to list branches of %s/%s: %w"
	getCommitErrorTemplateConstant          = "unable to load commit %s of %s/%s: %w"
	deleteBranchErrorTemplateConstant       = "unable to delete branch %s of %s/%s: %w"
	listIssuesErrorTemplateConstant         = "unable to list issues of %s/%s: %w"
	listPullRequestsErrorTemplateConstant   = "unable to list pull requests of %s/%s: %w"
	listAlertsErrorTemplateConstant         = "unable to list Dependabot alerts of %s/%s: %w"
	getContentsErrorTemplateConstant        = "unable to read %s of %s/%s: %w"
	decodeContentsErrorTemplateConstant     = "unable to decode %s of %s/%s: %w"
	createCommentErrorTemplateConstant      = "unable to comment on %s/%s#%d: %w"
)

// ErrClientNotConfigured indicates the wrapper was constructed without a go-github client.
var ErrClientNotConfigured = errors.New(clientNotConfiguredMessageConstant)

// Client exposes the REST operations ghkeeper needs.
type Client struct {
	github *github.Client
}

// NewRESTClient builds a go-github client for the endpoint; an empty endpoint targets api.github.com.
func NewRESTClient(httpClient *http.Client, endpoint string) (*github.Client, error) {
	restClient := github.NewClient(httpClient)
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if len(trimmedEndpoint) == 0 || trimmedEndpoint == defaultRESTEndpointConstant {
		return restClient, nil
	}
	enterpriseClient, enterpriseError := restClient.WithEnterpriseURLs(trimmedEndpoint, trimmedEndpoint)
	if enterpriseError != nil {
		return nil, fmt.Errorf(enterpriseEndpointErrorTemplateConstant, trimmedEndpoint, enterpriseError)
	}
	return enterpriseClient, nil
}

// NewClient wraps a go-github client.
func NewClient(restClient *github.Client) (*Client, error) {
	if restClient == nil {
		return nil, ErrClientNotConfigured
	}
	return &Client{github: restClient}, nil
}

// Repositories pages through repositories the authenticated user can access.
func (client *Client) Repositories() pagination.PageSource[Repository] {
	return pagination.PageSourceFunc[Repository](func(executionContext context.Context, cursor *string) (pagination.Page[Repository], error) {
		pageNumber, cursorError := pageFromCursor(cursor)
		if cursorError != nil {
			return pagination.Page[Repository]{}, cursorError
		}

		options := &github.RepositoryListByAuthenticatedUserOptions{
			ListOptions: github.ListOptions{Page: pageNumber, PerPage: pageSizeConstant},
		}
		repositories, response, listError := client.github.Repositories.ListByAuthenticatedUser(executionContext, options)
		if listError != nil {
			return pagination.Page[Repository]{}, fmt.Errorf(listRepositoriesErrorTemplateConstant, listError)
		}

		items := make([]Repository, 0, len(repositories))
		for _, repository := range repositories {
			items = append(items, Repository{
				Name:     repository.GetName(),
				FullName: repository.GetFullName(),
				Owner:    repository.GetOwner().GetLogin(),
				Archived: repository.GetArchived(),
			})
		}
		return newPage(items, response), nil
	})
}

// Branches pages through the branches of owner/name.
func (client *Client) Branches(owner string, name string) pagination.PageSource[Branch] {
	return pagination.PageSourceFunc[Branch](func(executionContext context.Context, cursor *string) (pagination.Page[Branch], error) {
		pageNumber, cursorError := pageFromCursor(cursor)
		if cursorError != nil {
			return pagination.Page[Branch]{}, cursorError
		}

		options := &github.BranchListOptions{ListOptions: github.ListOptions{Page: pageNumber, PerPage: pageSizeConstant}}
		branches, response, listError := client.github.Repositories.ListBranches(executionContext, owner, name, options)
		if listError != nil {
			return pagination.Page[Branch]{}, fmt.Errorf(listBranchesErrorTemplateConstant, owner, name, listError)
		}

		items := make([]Branch, 0, len(branches))
		for _, branch := range branches {
			items = append(items, Branch{Name: branch.GetName(), CommitSHA: branch.GetCommit().GetSHA()})
		}
		return newPage(items, response), nil
	})
}

// Commit loads the author timestamp of a commit.
func (client *Client) Commit(executionContext context.Context, owner string, name string, sha string) (Commit, error) {
	repositoryCommit, _, getError := client.github.Repositories.GetCommit(executionContext, owner, name, sha, nil)
	if getError != nil {
		return Commit{}, fmt.Errorf(getCommitErrorTemplateConstant, sha, owner, name, getError)
	}
	return Commit{
		SHA:        repositoryCommit.GetSHA(),
		AuthoredAt: repositoryCommit.GetCommit().GetAuthor().GetDate().Time,
	}, nil
}

// DeleteBranch removes refs/heads/branch from owner/name.
func (client *Client) DeleteBranch(executionContext context.Context, owner string, name string, branch string) error {
	if _, deleteError := client.github.Git.DeleteRef(executionContext, owner, name, branchReferencePrefixConstant+branch); deleteError != nil {
		return fmt.Errorf(deleteBranchErrorTemplateConstant, branch, owner, name, deleteError)
	}
	return nil
}

// Issues pages through all issues of owner/name regardless of state.
func (client *Client) Issues(owner string, name string) pagination.PageSource[Issue] {
	return pagination.PageSourceFunc[Issue](func(executionContext context.Context, cursor *string) (pagination.Page[Issue], error) {
		pageNumber, cursorError := pageFromCursor(cursor)
		if cursorError != nil {
			return pagination.Page[Issue]{}, cursorError
		}

		options := &github.IssueListByRepoOptions{
			State:       issueStateAllConstant,
			ListOptions: github.ListOptions{Page: pageNumber, PerPage: pageSizeConstant},
		}
		issues, response, listError := client.github.Issues.ListByRepo(executionContext, owner, name, options)
		if listError != nil {
			return pagination.Page[Issue]{}, fmt.Errorf(listIssuesErrorTemplateConstant, owner, name, listError)
		}

		items := make([]Issue, 0, len(issues))
		for _, issue := range issues {
			items = append(items, Issue{
				NodeID:        issue.GetNodeID(),
				Number:        issue.GetNumber(),
				Title:         issue.GetTitle(),
				Body:          issue.GetBody(),
				State:         issue.GetState(),
				URL:           issue.GetHTMLURL(),
				IsPullRequest: issue.IsPullRequest(),
			})
		}
		return newPage(items, response), nil
	})
}

// DependabotPullRequests lists open pull requests opened by Dependabot.
func (client *Client) DependabotPullRequests(executionContext context.Context, owner string, name string) ([]PullRequest, error) {
	options := &github.PullRequestListOptions{
		State:       pullRequestStateOpenConstant,
		ListOptions: github.ListOptions{PerPage: pageSizeConstant},
	}

	pullRequests := make([]PullRequest, 0)
	for {
		pagePullRequests, response, listError := client.github.PullRequests.List(executionContext, owner, name, options)
		if listError != nil {
			return nil, fmt.Errorf(listPullRequestsErrorTemplateConstant, owner, name, listError)
		}
		for _, pullRequest := range pagePullRequests {
			if pullRequest.GetUser().GetLogin() != dependabotLoginConstant {
				continue
			}
			pullRequests = append(pullRequests, PullRequest{
				Number: pullRequest.GetNumber(),
				Title:  pullRequest.GetTitle(),
				Author: pullRequest.GetUser().GetLogin(),
				URL:    pullRequest.GetHTMLURL(),
			})
		}
		if response == nil || response.NextPage == 0 {
			break
		}
		options.Page = response.NextPage
	}
	return pullRequests, nil
}

// OpenDependabotAlerts lists the first page of open Dependabot alerts.
func (client *Client) OpenDependabotAlerts(executionContext context.Context, owner string, name string) ([]DependabotAlert, error) {
	options := &github.ListAlertsOptions{
		State:       github.String(alertStateOpenConstant),
		ListOptions: github.ListOptions{PerPage: pageSizeConstant},
	}
	alerts, _, listError := client.github.Dependabot.ListRepoAlerts(executionContext, owner, name, options)
	if listError != nil {
		return nil, fmt.Errorf(listAlertsErrorTemplateConstant, owner, name, listError)
	}

	dependabotAlerts := make([]DependabotAlert, 0, len(alerts))
	for _, alert := range alerts {
		dependabotAlerts = append(dependabotAlerts, DependabotAlert{
			Number:   alert.GetNumber(),
			State:    alert.GetState(),
			Package:  alert.GetSecurityVulnerability().GetPackage().GetName(),
			Severity: alert.GetSecurityVulnerability().GetSeverity(),
		})
	}
	return dependabotAlerts, nil
}

// FileContains reports whether the file at path exists and contains the needle.
func (client *Client) FileContains(executionContext context.Context, owner string, name string, path string, needle string) (bool, error) {
	fileContent, _, response, getError := client.github.Repositories.GetContents(executionContext, owner, name, path, nil)
	if getError != nil {
		if response != nil && response.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, fmt.Errorf(getContentsErrorTemplateConstant, path, owner, name, getError)
	}
	if fileContent == nil {
		return false, nil
	}

	decodedContent, decodeError := fileContent.GetContent()
	if decodeError != nil {
		return false, fmt.Errorf(decodeContentsErrorTemplateConstant, path, owner, name, decodeError)
	}
	return strings.Contains(decodedContent, needle), nil
}

// CreateIssueComment posts a comment on an issue or pull request.
func (client *Client) CreateIssueComment(executionContext context.Context, owner string, name string, number int, body string) error {
	comment := &github.IssueComment{Body: github.String(body)}
	if _, _, createError := client.github.Issues.CreateComment(executionContext, owner, name, number, comment); createError != nil {
		return fmt.Errorf(createCommentErrorTemplateConstant, owner, name, number, createError)
	}
	return nil
}

func pageFromCursor(cursor *string) (int, error) {
	if cursor == nil {
		return 1, nil
	}
	pageNumber, parseError := strconv.Atoi(*cursor)
	if parseError != nil || pageNumber < 1 {
		return 0, fmt.Errorf(invalidCursorTemplateConstant, *cursor)
	}
	return pageNumber, nil
}

func newPage[T any](items []T, response *github.Response) pagination.Page[T] {
	page := pagination.Page[T]{Items: items}
	if response != nil && response.NextPage != 0 {
		page.HasNextPage = true
		page.EndCursor = strconv.Itoa(response.NextPage)
	}
	return page
}
