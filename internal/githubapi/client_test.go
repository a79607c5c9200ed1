package githubapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/ghkeeper/internal/githubapi"
	"github.com/temirov/ghkeeper/internal/ratelimit"
)

const (
	testProjectIDConstant    = "PVT_kwDOA"
	testItemIDConstant       = "PVTI_lADOA"
	testFieldIDConstant      = "PVTSSF_lADOA"
	testOptionIDConstant     = "f75ad846"
	testRepositoryIDConstant = "R_kgDOA"
	testRateLimitedBodyConstant    = `{"data":null,"errors":[{"type":"RATE_LIMITED","message":"API rate limit exceeded for user ID 1."}]}`
)

type recordedGraphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLServer struct {
	requests []recordedGraphQLRequest
}

func newGraphQLClient(testInstance *testing.T, responses ...string) (*githubapi.Client, *graphQLServer) {
	testInstance.Helper()
	recorder := &graphQLServer{}
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		body, readError := io.ReadAll(request.Body)
		require.NoError(testInstance, readError)
		var recorded recordedGraphQLRequest
		require.NoError(testInstance, json.Unmarshal(body, &recorded))
		responseIndex := len(recorder.requests)
		recorder.requests = append(recorder.requests, recorded)
		responseWriter.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(responseWriter, responses[responseIndex])
	}))
	testInstance.Cleanup(server.Close)

	client, clientError := githubapi.NewClient(githubapi.NewGraphQLClient(server.Client(), server.URL))
	require.NoError(testInstance, clientError)
	return client, recorder
}

func TestNewClientRequiresTransport(testInstance *testing.T) {
	client, creationError := githubapi.NewClient(nil)
	require.ErrorIs(testInstance, creationError, githubapi.ErrClientNotConfigured)
	require.Nil(testInstance, client)
}

func TestResolveProject(testInstance *testing.T) {
	testCases := []struct {
		name            string
		reference       githubapi.ProjectReference
		response        string
		expectedProject githubapi.Project
		expectedRoot    string
		expectError     error
	}{
		{
			name:            "organization",
			reference:       githubapi.ProjectReference{OwnerType: githubapi.OrganizationOwnerType, Owner: "acme", Number: 3},
			response:        `{"data":{"organization":{"projectV2":{"id":"PVT_org","title":"Roadmap"}}}}`,
			expectedProject: githubapi.Project{ID: "PVT_org", Title: "Roadmap"},
			expectedRoot:    "organization(login: $owner)",
		},
		{
			name:            "user",
			reference:       githubapi.ProjectReference{OwnerType: githubapi.UserOwnerType, Owner: "octocat", Number: 1},
			response:        `{"data":{"user":{"projectV2":{"id":"PVT_user","title":"Personal"}}}}`,
			expectedProject: githubapi.Project{ID: "PVT_user", Title: "Personal"},
			expectedRoot:    "user(login: $owner)",
		},
		{
			name:         "missing_project",
			reference:    githubapi.ProjectReference{OwnerType: githubapi.OrganizationOwnerType, Owner: "acme", Number: 9},
			response:     `{"data":{"organization":{"projectV2":null}}}`,
			expectedRoot: "organization(login: $owner)",
			expectError:  githubapi.ErrProjectNotFound,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			client, server := newGraphQLClient(testInstance, testCase.response)
			project, resolveError := client.ResolveProject(context.Background(), testCase.reference)
			require.Len(testInstance, server.requests, 1)
			require.Contains(testInstance, server.requests[0].Query, testCase.expectedRoot)
			require.Contains(testInstance, server.requests[0].Query, "projectV2(number: $number)")
			require.Equal(testInstance, testCase.reference.Owner, server.requests[0].Variables["owner"])
			require.EqualValues(testInstance, testCase.reference.Number, server.requests[0].Variables["number"])
			if testCase.expectError != nil {
				require.ErrorIs(testInstance, resolveError, testCase.expectError)
				var operationError githubapi.OperationError
				require.ErrorAs(testInstance, resolveError, &operationError)
				return
			}
			require.NoError(testInstance, resolveError)
			require.Equal(testInstance, testCase.expectedProject, project)
		})
	}
}

func TestResolveProjectValidation(testInstance *testing.T) {
	client, server := newGraphQLClient(testInstance)
	_, ownerError := client.ResolveProject(context.Background(), githubapi.ProjectReference{Number: 1})
	require.IsType(testInstance, githubapi.InvalidInputError{}, ownerError)
	_, numberError := client.ResolveProject(context.Background(), githubapi.ProjectReference{Owner: "acme"})
	require.IsType(testInstance, githubapi.InvalidInputError{}, numberError)
	require.Empty(testInstance, server.requests)
}

func TestRateLimitResponsesClassifyAsRateLimited(testInstance *testing.T) {
	client, _ := newGraphQLClient(testInstance, testRateLimitedBodyConstant)
	_, resolveError := client.ResolveProject(context.Background(), githubapi.ProjectReference{Owner: "acme", Number: 1})
	require.Error(testInstance, resolveError)
	require.Equal(testInstance, ratelimit.ErrorKindRateLimited, ratelimit.Classify(resolveError))
}

func TestStatusField(testInstance *testing.T) {
	client, server := newGraphQLClient(testInstance,
		`{"data":{"node":{"field":{"id":"PVTSSF_1","name":"Status","options":[{"id":"opt_todo","name":"Todo"},{"id":"opt_done","name":"Done"}]}}}}`,
		`{"data":{"node":{"field":null}}}`,
	)

	statusField, fieldError := client.StatusField(context.Background(), testProjectIDConstant, "Status")
	require.NoError(testInstance, fieldError)
	require.Equal(testInstance, githubapi.StatusField{
		ID:   "PVTSSF_1",
		Name: "Status",
		Options: []githubapi.StatusOption{
			{ID: "opt_todo", Name: "Todo"},
			{ID: "opt_done", Name: "Done"},
		},
	}, statusField)
	require.Contains(testInstance, server.requests[0].Query, "... on ProjectV2SingleSelectField")
	require.Equal(testInstance, "Status", server.requests[0].Variables["fieldName"])

	_, missingError := client.StatusField(context.Background(), testProjectIDConstant, "Priority")
	require.ErrorIs(testInstance, missingError, githubapi.ErrStatusFieldNotFound)
}

func TestStatusFieldOptionID(testInstance *testing.T) {
	statusField := githubapi.StatusField{Options: []githubapi.StatusOption{
		{ID: "opt_progress", Name: "In Progress"},
		{ID: "opt_done_lower", Name: "done"},
		{ID: "opt_done", Name: "Done"},
	}}

	testCases := []struct {
		name       string
		requested  string
		expectedID string
		expectErr  bool
	}{
		{name: "exact_match_preferred", requested: "Done", expectedID: "opt_done"},
		{name: "case_insensitive", requested: "in progress", expectedID: "opt_progress"},
		{name: "trimmed", requested: " done ", expectedID: "opt_done_lower"},
		{name: "unknown", requested: "Blocked", expectErr: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			optionID, lookupError := statusField.OptionID(testCase.requested)
			if testCase.expectErr {
				var unknownOptionError githubapi.UnknownStatusOptionError
				require.ErrorAs(testInstance, lookupError, &unknownOptionError)
				require.Equal(testInstance, []string{"In Progress", "done", "Done"}, unknownOptionError.Available)
				require.Contains(testInstance, lookupError.Error(), "In Progress, done, Done")
				return
			}
			require.NoError(testInstance, lookupError)
			require.Equal(testInstance, testCase.expectedID, optionID)
		})
	}
}

func TestItemsSourceFetchPage(testInstance *testing.T) {
	client, server := newGraphQLClient(testInstance, `{"data":{"node":{"items":{
		"pageInfo":{"hasNextPage":true,"endCursor":"Y3Vyc29yOjI="},
		"nodes":[
			{"id":"PVTI_1","type":"DRAFT_ISSUE","createdAt":"2024-01-02T03:04:05Z","updatedAt":"2024-01-03T03:04:05Z",
			 "status":{"name":"Todo"},
			 "content":{"__typename":"DraftIssue","id":"DI_1","title":"Draft","body":"- ステータス: Done","createdAt":"2024-01-02T03:04:05Z","updatedAt":"2024-01-03T03:04:05Z"}},
			{"id":"PVTI_2","type":"ISSUE","createdAt":"2024-02-02T03:04:05Z","updatedAt":"2024-02-03T03:04:05Z",
			 "status":null,
			 "content":{"__typename":"Issue","id":"I_2","number":42,"title":"Bug","body":"Status: Done","state":"OPEN","url":"https://github.com/acme/api/issues/42",
			  "createdAt":"2024-02-02T03:04:05Z","updatedAt":"2024-02-03T03:04:05Z","repository":{"nameWithOwner":"acme/api"},
			  "labels":{"nodes":[{"name":"bug"}]},"assignees":{"nodes":[{"login":"octocat"}]}}},
			{"id":"PVTI_3","type":"REDACTED","createdAt":"2024-03-02T03:04:05Z","updatedAt":"2024-03-03T03:04:05Z","status":null,"content":null}
		]}}}}`,
		`{"data":{"node":{"items":{"pageInfo":{"hasNextPage":false,"endCursor":null},"nodes":[]}}}}`,
	)
	source := client.ItemsSource(testProjectIDConstant, 0, "")

	page, pageError := source.FetchPage(context.Background(), nil)
	require.NoError(testInstance, pageError)
	require.True(testInstance, page.HasNextPage)
	require.Equal(testInstance, "Y3Vyc29yOjI=", page.EndCursor)
	require.Len(testInstance, page.Items, 3)

	draftItem := page.Items[0]
	require.Equal(testInstance, "PVTI_1", draftItem.ID)
	require.Equal(testInstance, "Todo", draftItem.Status)
	require.True(testInstance, draftItem.IsDraft())
	require.Equal(testInstance, "DI_1", draftItem.ContentID)
	require.Equal(testInstance, "- ステータス: Done", draftItem.Body)
	require.Equal(testInstance, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), draftItem.CreatedAt.UTC())

	issueItem := page.Items[1]
	require.Equal(testInstance, githubapi.ContentTypeIssue, issueItem.ContentType)
	require.Empty(testInstance, issueItem.Status)
	require.Equal(testInstance, 42, issueItem.Number)
	require.Equal(testInstance, "acme/api", issueItem.Repository)
	require.Equal(testInstance, []string{"bug"}, issueItem.Labels)
	require.Equal(testInstance, []string{"octocat"}, issueItem.Assignees)

	require.False(testInstance, page.Items[2].HasContent())

	firstRequest := server.requests[0]
	require.Nil(testInstance, firstRequest.Variables["cursor"])
	require.EqualValues(testInstance, 100, firstRequest.Variables["pageSize"])
	require.Equal(testInstance, "Status", firstRequest.Variables["statusFieldName"])
	require.Contains(testInstance, firstRequest.Query, "$cursor:String")
	require.Contains(testInstance, firstRequest.Query, "items(first: $pageSize, after: $cursor)")
	require.Contains(testInstance, firstRequest.Query, "status: fieldValueByName(name: $statusFieldName)")

	cursor := page.EndCursor
	lastPage, lastPageError := source.FetchPage(context.Background(), &cursor)
	require.NoError(testInstance, lastPageError)
	require.False(testInstance, lastPage.HasNextPage)
	require.Empty(testInstance, lastPage.Items)
	require.Equal(testInstance, "Y3Vyc29yOjI=", server.requests[1].Variables["cursor"])
}

func TestMutations(testInstance *testing.T) {
	client, server := newGraphQLClient(testInstance,
		`{"data":{"addProjectV2DraftIssue":{"projectItem":{"id":"PVTI_new"}}}}`,
		`{"data":{"addProjectV2ItemById":{"item":{"id":"PVTI_issue"}}}}`,
		`{"data":{"updateProjectV2ItemFieldValue":{"projectV2Item":{"id":"PVTI_issue"}}}}`,
		`{"data":{"convertProjectV2DraftIssueItemToIssue":{"item":{"id":"PVTI_new","content":{"number":7,"url":"https://github.com/acme/api/issues/7"}}}}}`,
		`{"data":{"repository":{"id":"R_kgDOA"}}}`,
	)

	draftItemID, draftError := client.AddDraftIssue(context.Background(), testProjectIDConstant, "[PROJ-1] Title", "body")
	require.NoError(testInstance, draftError)
	require.Equal(testInstance, "PVTI_new", draftItemID)
	require.Contains(testInstance, server.requests[0].Query, "$input:AddProjectV2DraftIssueInput!")
	require.Equal(testInstance, map[string]any{"projectId": testProjectIDConstant, "title": "[PROJ-1] Title", "body": "body"}, server.requests[0].Variables["input"])

	issueItemID, addError := client.AddItemByContentID(context.Background(), testProjectIDConstant, "I_kwDOA")
	require.NoError(testInstance, addError)
	require.Equal(testInstance, "PVTI_issue", issueItemID)
	require.Contains(testInstance, server.requests[1].Query, "$input:AddProjectV2ItemByIdInput!")

	require.NoError(testInstance, client.UpdateItemSingleSelect(context.Background(), testProjectIDConstant, testItemIDConstant, testFieldIDConstant, testOptionIDConstant))
	require.Contains(testInstance, server.requests[2].Query, "$input:UpdateProjectV2ItemFieldValueInput!")
	require.Equal(testInstance, map[string]any{
		"projectId": testProjectIDConstant,
		"itemId":    testItemIDConstant,
		"fieldId":   testFieldIDConstant,
		"value":     map[string]any{"singleSelectOptionId": testOptionIDConstant},
	}, server.requests[2].Variables["input"])

	convertedIssue, convertError := client.ConvertDraftToIssue(context.Background(), "PVTI_new", testRepositoryIDConstant)
	require.NoError(testInstance, convertError)
	require.Equal(testInstance, githubapi.ConvertedIssue{ItemID: "PVTI_new", Number: 7, URL: "https://github.com/acme/api/issues/7"}, convertedIssue)
	require.Contains(testInstance, server.requests[3].Query, "$input:ConvertProjectV2DraftIssueItemToIssueInput!")

	repositoryID, repositoryError := client.RepositoryID(context.Background(), "acme", "api")
	require.NoError(testInstance, repositoryError)
	require.Equal(testInstance, testRepositoryIDConstant, repositoryID)
}

func TestMutationValidation(testInstance *testing.T) {
	client, server := newGraphQLClient(testInstance)

	_, draftError := client.AddDraftIssue(context.Background(), testProjectIDConstant, " ", "body")
	require.IsType(testInstance, githubapi.InvalidInputError{}, draftError)

	updateError := client.UpdateItemSingleSelect(context.Background(), testProjectIDConstant, testItemIDConstant, testFieldIDConstant, "")
	var inputError githubapi.InvalidInputError
	require.True(testInstance, errors.As(updateError, &inputError))
	require.Equal(testInstance, "option_id", inputError.FieldName)

	_, convertError := client.ConvertDraftToIssue(context.Background(), testItemIDConstant, "")
	require.IsType(testInstance, githubapi.InvalidInputError{}, convertError)
	require.Empty(testInstance, server.requests)
}

func TestParseOwnerType(testInstance *testing.T) {
	testCases := []struct {
		value        string
		expectedType githubapi.OwnerType
		expectError  bool
	}{
		{value: "org", expectedType: githubapi.OrganizationOwnerType},
		{value: " Organization ", expectedType: githubapi.OrganizationOwnerType},
		{value: "USER", expectedType: githubapi.UserOwnerType},
		{value: "", expectError: true},
		{value: "team", expectError: true},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.value, func(testInstance *testing.T) {
			ownerType, parseError := githubapi.ParseOwnerType(testCase.value)
			if testCase.expectError {
				require.Error(testInstance, parseError)
				return
			}
			require.NoError(testInstance, parseError)
			require.Equal(testInstance, testCase.expectedType, ownerType)
		})
	}
}
