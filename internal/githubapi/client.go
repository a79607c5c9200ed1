package githubapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/shurcooL/githubv4"
)

const (
	ownerFieldNameConstant                 = "owner"
	numberFieldNameConstant                = "number"
	projectIDFieldNameConstant             = "project_id"
	itemIDFieldNameConstant                = "item_id"
	fieldIDFieldNameConstant               = "field_id"
	optionIDFieldNameConstant              = "option_id"
	fieldNameFieldNameConstant             = "field_name"
	titleFieldNameConstant                 = "title"
	contentIDFieldNameConstant             = "content_id"
	repositoryIDFieldNameConstant          = "repository_id"
	repositoryNameFieldNameConstant        = "repository_name"
	requiredValueMessageConstant           = "value required"
	positiveNumberMessageConstant          = "must be positive"
	defaultGraphQLEndpointConstant         = "https://api.github.com/graphql"
	resolveProjectOperationNameConstant    = OperationName("ResolveProject")
	statusFieldOperationNameConstant       = OperationName("LoadStatusField")
	listItemsOperationNameConstant         = OperationName("ListProjectItems")
	repositoryIDOperationNameConstant      = OperationName("ResolveRepositoryID")
	addDraftIssueOperationNameConstant     = OperationName("AddDraftIssue")
	addItemByIDOperationNameConstant       = OperationName("AddItemByID")
	updateFieldValueOperationNameConstant  = OperationName("UpdateItemFieldValue")
	convertDraftIssueOperationNameConstant = OperationName("ConvertDraftIssue")
	ownerVariableNameConstant              = "owner"
	numberVariableNameConstant             = "number"
	projectIDVariableNameConstant          = "projectId"
	fieldNameVariableNameConstant          = "fieldName"
	pageSizeVariableNameConstant           = "pageSize"
	cursorVariableNameConstant             = "cursor"
	statusFieldNameVariableNameConstant    = "statusFieldName"
	repositoryNameVariableNameConstant     = "name"
)

// OperationName describes a named GraphQL workflow supported by the client.
type OperationName string

// GraphQLClient is the subset of githubv4.Client used by Client.
type GraphQLClient interface {
	Query(ctx context.Context, query any, variables map[string]any) error
	Mutate(ctx context.Context, mutation any, input githubv4.Input, variables map[string]any) error
}

// Client issues Projects (v2) queries and mutations.
type Client struct {
	graphQL GraphQLClient
}

// NewGraphQLClient builds a githubv4 client for the endpoint; an empty endpoint targets api.github.com.
func NewGraphQLClient(httpClient *http.Client, endpoint string) *githubv4.Client {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if len(trimmedEndpoint) == 0 || trimmedEndpoint == defaultGraphQLEndpointConstant {
		return githubv4.NewClient(httpClient)
	}
	return githubv4.NewEnterpriseClient(trimmedEndpoint, httpClient)
}

// NewClient constructs a Client around the GraphQL transport.
func NewClient(graphQL GraphQLClient) (*Client, error) {
	if graphQL == nil {
		return nil, ErrClientNotConfigured
	}
	return &Client{graphQL: graphQL}, nil
}

// ResolveProject finds the project numbered within the owner's projects.
func (client *Client) ResolveProject(executionContext context.Context, reference ProjectReference) (Project, error) {
	trimmedOwner := strings.TrimSpace(reference.Owner)
	if len(trimmedOwner) == 0 {
		return Project{}, InvalidInputError{FieldName: ownerFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if reference.Number <= 0 {
		return Project{}, InvalidInputError{FieldName: numberFieldNameConstant, Message: positiveNumberMessageConstant}
	}

	variables := map[string]any{
		ownerVariableNameConstant:  githubv4.String(trimmedOwner),
		numberVariableNameConstant: githubv4.Int(reference.Number),
	}

	var project Project
	switch reference.OwnerType {
	case UserOwnerType:
		var query UserProjectQuery
		if queryError := client.graphQL.Query(executionContext, &query, variables); queryError != nil {
			return Project{}, OperationError{Operation: resolveProjectOperationNameConstant, Cause: queryError}
		}
		project = Project{ID: query.User.ProjectV2.ID, Title: query.User.ProjectV2.Title}
	default:
		var query OrganizationProjectQuery
		if queryError := client.graphQL.Query(executionContext, &query, variables); queryError != nil {
			return Project{}, OperationError{Operation: resolveProjectOperationNameConstant, Cause: queryError}
		}
		project = Project{ID: query.Organization.ProjectV2.ID, Title: query.Organization.ProjectV2.Title}
	}

	if len(project.ID) == 0 {
		return Project{}, OperationError{Operation: resolveProjectOperationNameConstant, Cause: ErrProjectNotFound}
	}
	return project, nil
}

// StatusField loads the single-select field named fieldName together with its options.
func (client *Client) StatusField(executionContext context.Context, projectID string, fieldName string) (StatusField, error) {
	if len(strings.TrimSpace(projectID)) == 0 {
		return StatusField{}, InvalidInputError{FieldName: projectIDFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(fieldName)) == 0 {
		return StatusField{}, InvalidInputError{FieldName: fieldNameFieldNameConstant, Message: requiredValueMessageConstant}
	}

	var query StatusFieldQuery
	variables := map[string]any{
		projectIDVariableNameConstant: githubv4.ID(projectID),
		fieldNameVariableNameConstant: githubv4.String(fieldName),
	}
	if queryError := client.graphQL.Query(executionContext, &query, variables); queryError != nil {
		return StatusField{}, OperationError{Operation: statusFieldOperationNameConstant, Cause: queryError}
	}

	singleSelectField := query.Node.ProjectV2.Field.SingleSelectField
	if len(singleSelectField.ID) == 0 {
		return StatusField{}, OperationError{Operation: statusFieldOperationNameConstant, Cause: ErrStatusFieldNotFound}
	}

	statusField := StatusField{ID: singleSelectField.ID, Name: singleSelectField.Name}
	for _, option := range singleSelectField.Options {
		statusField.Options = append(statusField.Options, StatusOption{ID: option.ID, Name: option.Name})
	}
	return statusField, nil
}

// RepositoryID resolves the node ID of owner/name.
func (client *Client) RepositoryID(executionContext context.Context, owner string, name string) (string, error) {
	if len(strings.TrimSpace(owner)) == 0 {
		return "", InvalidInputError{FieldName: ownerFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(name)) == 0 {
		return "", InvalidInputError{FieldName: repositoryNameFieldNameConstant, Message: requiredValueMessageConstant}
	}

	var query RepositoryIDQuery
	variables := map[string]any{
		ownerVariableNameConstant:          githubv4.String(strings.TrimSpace(owner)),
		repositoryNameVariableNameConstant: githubv4.String(strings.TrimSpace(name)),
	}
	if queryError := client.graphQL.Query(executionContext, &query, variables); queryError != nil {
		return "", OperationError{Operation: repositoryIDOperationNameConstant, Cause: queryError}
	}
	if len(query.Repository.ID) == 0 {
		return "", OperationError{Operation: repositoryIDOperationNameConstant, Cause: ErrRepositoryNotFound}
	}
	return query.Repository.ID, nil
}

// AddDraftIssue creates a draft item and returns its item ID.
func (client *Client) AddDraftIssue(executionContext context.Context, projectID string, title string, body string) (string, error) {
	if len(strings.TrimSpace(projectID)) == 0 {
		return "", InvalidInputError{FieldName: projectIDFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(title)) == 0 {
		return "", InvalidInputError{FieldName: titleFieldNameConstant, Message: requiredValueMessageConstant}
	}

	var mutation AddDraftIssueMutation
	input := AddProjectV2DraftIssueInput{
		ProjectID: githubv4.ID(projectID),
		Title:     githubv4.String(title),
		Body:      githubv4.String(body),
	}
	if mutateError := client.graphQL.Mutate(executionContext, &mutation, input, nil); mutateError != nil {
		return "", OperationError{Operation: addDraftIssueOperationNameConstant, Cause: mutateError}
	}
	return mutation.AddProjectV2DraftIssue.ProjectItem.ID, nil
}

// AddItemByContentID attaches an issue or pull request to the project and returns the item ID.
func (client *Client) AddItemByContentID(executionContext context.Context, projectID string, contentID string) (string, error) {
	if len(strings.TrimSpace(projectID)) == 0 {
		return "", InvalidInputError{FieldName: projectIDFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(contentID)) == 0 {
		return "", InvalidInputError{FieldName: contentIDFieldNameConstant, Message: requiredValueMessageConstant}
	}

	var mutation AddItemByIDMutation
	input := AddProjectV2ItemByIdInput{
		ProjectID: githubv4.ID(projectID),
		ContentID: githubv4.ID(contentID),
	}
	if mutateError := client.graphQL.Mutate(executionContext, &mutation, input, nil); mutateError != nil {
		return "", OperationError{Operation: addItemByIDOperationNameConstant, Cause: mutateError}
	}
	return mutation.AddProjectV2ItemByID.Item.ID, nil
}

// UpdateItemSingleSelect sets the single-select field of an item to the option.
func (client *Client) UpdateItemSingleSelect(executionContext context.Context, projectID string, itemID string, fieldID string, optionID string) error {
	requiredValues := []struct {
		fieldName string
		value     string
	}{
		{fieldName: projectIDFieldNameConstant, value: projectID},
		{fieldName: itemIDFieldNameConstant, value: itemID},
		{fieldName: fieldIDFieldNameConstant, value: fieldID},
		{fieldName: optionIDFieldNameConstant, value: optionID},
	}
	for _, requiredValue := range requiredValues {
		if len(strings.TrimSpace(requiredValue.value)) == 0 {
			return InvalidInputError{FieldName: requiredValue.fieldName, Message: requiredValueMessageConstant}
		}
	}

	var mutation UpdateItemFieldValueMutation
	input := UpdateProjectV2ItemFieldValueInput{
		ProjectID: githubv4.ID(projectID),
		ItemID:    githubv4.ID(itemID),
		FieldID:   githubv4.ID(fieldID),
		Value:     ProjectV2FieldValue{SingleSelectOptionID: githubv4.NewString(githubv4.String(optionID))},
	}
	if mutateError := client.graphQL.Mutate(executionContext, &mutation, input, nil); mutateError != nil {
		return OperationError{Operation: updateFieldValueOperationNameConstant, Cause: mutateError}
	}
	return nil
}

// ConvertDraftToIssue converts a draft item into an issue of the repository.
func (client *Client) ConvertDraftToIssue(executionContext context.Context, itemID string, repositoryID string) (ConvertedIssue, error) {
	if len(strings.TrimSpace(itemID)) == 0 {
		return ConvertedIssue{}, InvalidInputError{FieldName: itemIDFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(repositoryID)) == 0 {
		return ConvertedIssue{}, InvalidInputError{FieldName: repositoryIDFieldNameConstant, Message: requiredValueMessageConstant}
	}

	var mutation ConvertDraftIssueMutation
	input := ConvertProjectV2DraftIssueItemToIssueInput{
		ItemID:       githubv4.ID(itemID),
		RepositoryID: githubv4.ID(repositoryID),
	}
	if mutateError := client.graphQL.Mutate(executionContext, &mutation, input, nil); mutateError != nil {
		return ConvertedIssue{}, OperationError{Operation: convertDraftIssueOperationNameConstant, Cause: mutateError}
	}

	convertedItem := mutation.ConvertProjectV2DraftIssueItemToIssue.Item
	return ConvertedIssue{
		ItemID: convertedItem.ID,
		Number: convertedItem.Content.Issue.Number,
		URL:    convertedItem.Content.Issue.URL,
	}, nil
}
