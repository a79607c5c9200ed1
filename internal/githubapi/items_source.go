package githubapi

import (
	"context"
	"strings"

	"github.com/shurcooL/githubv4"

	"github.com/temirov/ghkeeper/internal/pagination"
)

const (
	defaultItemsPageSizeConstant   = 100
	maximumItemsPageSizeConstant   = 100
	defaultStatusFieldNameConstant = "Status"
)

// ProjectItemsSource pages through the items of one project.
type ProjectItemsSource struct {
	client          *Client
	projectID       string
	pageSize        int
	statusFieldName string
}

// ItemsSource returns a page source over the project's items. Page sizes outside 1..100 fall back to 100.
func (client *Client) ItemsSource(projectID string, pageSize int, statusFieldName string) *ProjectItemsSource {
	if pageSize <= 0 || pageSize > maximumItemsPageSizeConstant {
		pageSize = defaultItemsPageSizeConstant
	}
	if len(strings.TrimSpace(statusFieldName)) == 0 {
		statusFieldName = defaultStatusFieldNameConstant
	}
	return &ProjectItemsSource{
		client:          client,
		projectID:       projectID,
		pageSize:        pageSize,
		statusFieldName: statusFieldName,
	}
}

// FetchPage loads the items after the cursor.
func (source *ProjectItemsSource) FetchPage(executionContext context.Context, cursor *string) (pagination.Page[ProjectItem], error) {
	if len(strings.TrimSpace(source.projectID)) == 0 {
		return pagination.Page[ProjectItem]{}, InvalidInputError{FieldName: projectIDFieldNameConstant, Message: requiredValueMessageConstant}
	}

	var afterCursor *githubv4.String
	if cursor != nil {
		afterCursor = githubv4.NewString(githubv4.String(*cursor))
	}

	var query ProjectItemsQuery
	variables := map[string]any{
		projectIDVariableNameConstant:       githubv4.ID(source.projectID),
		pageSizeVariableNameConstant:        githubv4.Int(source.pageSize),
		cursorVariableNameConstant:          afterCursor,
		statusFieldNameVariableNameConstant: githubv4.String(source.statusFieldName),
	}
	if queryError := source.client.graphQL.Query(executionContext, &query, variables); queryError != nil {
		return pagination.Page[ProjectItem]{}, OperationError{Operation: listItemsOperationNameConstant, Cause: queryError}
	}

	itemsConnection := query.Node.ProjectV2.Items
	page := pagination.Page[ProjectItem]{
		Items:       make([]ProjectItem, 0, len(itemsConnection.Nodes)),
		HasNextPage: itemsConnection.PageInfo.HasNextPage,
		EndCursor:   string(itemsConnection.PageInfo.EndCursor),
	}
	for _, node := range itemsConnection.Nodes {
		page.Items = append(page.Items, convertItemNode(node))
	}
	return page, nil
}

func convertItemNode(node ProjectItemNode) ProjectItem {
	item := ProjectItem{
		ID:          node.ID,
		Type:        node.Type,
		Status:      node.Status.SingleSelectValue.Name,
		ContentType: node.Content.Typename,
		CreatedAt:   node.CreatedAt.Time,
		UpdatedAt:   node.UpdatedAt.Time,
	}

	switch node.Content.Typename {
	case ContentTypeDraftIssue:
		draftIssue := node.Content.DraftIssue
		item.ContentID = draftIssue.ID
		item.Title = draftIssue.Title
		item.Body = draftIssue.Body
		item.CreatedAt = draftIssue.CreatedAt.Time
		item.UpdatedAt = draftIssue.UpdatedAt.Time
	case ContentTypeIssue:
		issue := node.Content.Issue
		item.ContentID = issue.ID
		item.Number = issue.Number
		item.Title = issue.Title
		item.Body = issue.Body
		item.State = issue.State
		item.URL = issue.URL
		item.Repository = issue.Repository.NameWithOwner
		item.CreatedAt = issue.CreatedAt.Time
		item.UpdatedAt = issue.UpdatedAt.Time
		for _, label := range issue.Labels.Nodes {
			item.Labels = append(item.Labels, label.Name)
		}
		for _, assignee := range issue.Assignees.Nodes {
			item.Assignees = append(item.Assignees, assignee.Login)
		}
	case ContentTypePullRequest:
		pullRequest := node.Content.PullRequest
		item.ContentID = pullRequest.ID
		item.Number = pullRequest.Number
		item.Title = pullRequest.Title
		item.Body = pullRequest.Body
		item.State = pullRequest.State
		item.URL = pullRequest.URL
		item.Repository = pullRequest.Repository.NameWithOwner
		item.CreatedAt = pullRequest.CreatedAt.Time
		item.UpdatedAt = pullRequest.UpdatedAt.Time
	}

	return item
}
