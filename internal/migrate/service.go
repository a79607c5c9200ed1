package migrate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/ghkeeper/internal/githubapi"
	"github.com/temirov/ghkeeper/internal/jira"
	"github.com/temirov/ghkeeper/internal/metrics"
	"github.com/temirov/ghkeeper/internal/pagination"
	"github.com/temirov/ghkeeper/internal/ratelimit"
)

const (
	jiraSourceNameConstant              = "jira_issues"
	projectItemsSourceNameConstant      = "project_items"
	resolveProjectOperationConstant     = "resolve_project"
	statusFieldOperationConstant        = "resolve_status_field"
	createDraftOperationConstant        = "create_draft"
	updateStatusOperationConstant       = "set_status"
	defaultStatusFieldNameConstant      = "Status"
	issueKeyFieldNameConstant           = "jira_key"
	itemIDFieldNameConstant             = "item_id"
	issueCountFieldNameConstant         = "issues"
	existingCountFieldNameConstant      = "existing_items"
	projectIDFieldNameConstant          = "project_id"
	issuesLoadedLogMessageConstant      = "Loaded JIRA issues"
	existingItemsLogMessageConstant     = "Loaded existing project items"
	issueSkippedLogMessageConstant      = "Skipping already migrated issue"
	issueCreatedLogMessageConstant      = "Created draft item"
	issueFailedLogMessageConstant       = "Issue migration failed"
	statusFailedLogMessageConstant      = "Status update failed; item left without status"
	issueSourceMissingMessageConstant   = "JIRA issue source not configured"
	gatewayMissingMessageConstant       = "project gateway not configured"
	itemsSourceMissingMessageConstant   = "project items source not configured"
	retrierMissingMessageConstant       = "retrier not configured"
	jiraFetchErrorTemplateConstant      = "unable to fetch JIRA issues: %w"
	projectResolveErrorTemplateConstant = "unable to resolve project: %w"
	existingItemsErrorTemplateConstant  = "unable to list existing project items: %w"
	statusFieldErrorTemplateConstant    = "unable to resolve status field: %w"
)

var (
	// ErrIssueSourceNotConfigured indicates a Service without a JIRA source.
	ErrIssueSourceNotConfigured = errors.New(issueSourceMissingMessageConstant)
	// ErrGatewayNotConfigured indicates a Service without a project gateway.
	ErrGatewayNotConfigured = errors.New(gatewayMissingMessageConstant)
	// ErrItemsSourceNotConfigured indicates a Service without a project item source.
	ErrItemsSourceNotConfigured = errors.New(itemsSourceMissingMessageConstant)
	// ErrRetrierNotConfigured indicates a Service without a retrier.
	ErrRetrierNotConfigured = errors.New(retrierMissingMessageConstant)
)

// IssueSource produces a page source over a JQL search.
type IssueSource interface {
	Issues(jql string) pagination.PageSource[jira.Issue]
}

// ProjectGateway covers the project operations a migration performs.
type ProjectGateway interface {
	ResolveProject(ctx context.Context, reference githubapi.ProjectReference) (githubapi.Project, error)
	StatusField(ctx context.Context, projectID string, fieldName string) (githubapi.StatusField, error)
	AddDraftIssue(ctx context.Context, projectID string, title string, body string) (string, error)
	UpdateItemSingleSelect(ctx context.Context, projectID string, itemID string, fieldID string, optionID string) error
}

// ItemsSourceFactory returns a page source over the items of a project.
type ItemsSourceFactory func(projectID string) pagination.PageSource[githubapi.ProjectItem]

// ServiceDependencies enumerates the collaborators required by the migration service.
type ServiceDependencies struct {
	Logger      *zap.Logger
	Recorder    *metrics.Recorder
	Retrier     *ratelimit.Retrier
	Issues      IssueSource
	Gateway     ProjectGateway
	ItemsSource ItemsSourceFactory
}

// Options describe one migration run.
type Options struct {
	JIRAProject     string
	OrderBy         string
	Target          githubapi.ProjectReference
	StatusFieldName string
}

// Outcome classifies the handling of one JIRA issue.
type Outcome string

// Issue outcomes.
const (
	OutcomeCreated Outcome = "created"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// IssueResult records what happened to one JIRA issue.
type IssueResult struct {
	Key          string
	Title        string
	Outcome      Outcome
	ItemID       string
	GitHubStatus string
	Error        error
	StatusError  error
}

// Summary aggregates a migration run.
type Summary struct {
	ProjectID      string
	Total          int
	Created        int
	Skipped        int
	Failed         int
	StatusFailures int
	Results        []IssueResult
}

// Migrator runs migrations.
type Migrator interface {
	Migrate(ctx context.Context, options Options) (Summary, error)
}

// Service migrates JIRA issues into a GitHub project.
type Service struct {
	logger      *zap.Logger
	recorder    *metrics.Recorder
	retrier     *ratelimit.Retrier
	issues      IssueSource
	gateway     ProjectGateway
	itemsSource ItemsSourceFactory
}

// NewService validates dependencies and constructs a Service.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Issues == nil {
		return nil, ErrIssueSourceNotConfigured
	}
	if dependencies.Gateway == nil {
		return nil, ErrGatewayNotConfigured
	}
	if dependencies.ItemsSource == nil {
		return nil, ErrItemsSourceNotConfigured
	}
	if dependencies.Retrier == nil {
		return nil, ErrRetrierNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		logger:      logger,
		recorder:    dependencies.Recorder,
		retrier:     dependencies.Retrier,
		issues:      dependencies.Issues,
		gateway:     dependencies.Gateway,
		itemsSource: dependencies.ItemsSource,
	}, nil
}

// Migrate creates a draft item for every JIRA issue not yet present in the project.
// Per-issue failures are recorded in the summary and do not stop the run; setup failures and cancellation do.
func (service *Service) Migrate(executionContext context.Context, options Options) (Summary, error) {
	jql, jqlError := jira.BuildJQL(options.JIRAProject, options.OrderBy)
	if jqlError != nil {
		return Summary{}, jqlError
	}

	issueFetcher, fetcherError := pagination.NewFetcher(pagination.FetcherDependencies[jira.Issue]{
		Logger:     service.logger,
		Recorder:   service.recorder,
		SourceName: jiraSourceNameConstant,
		Source:     service.issues.Issues(jql),
		Retrier:    service.retrier,
	})
	if fetcherError != nil {
		return Summary{}, fetcherError
	}
	issues, issuesError := issueFetcher.FetchAll(executionContext, pagination.AcceptAll[jira.Issue](), pagination.FetchOptions{})
	if issuesError != nil {
		return Summary{}, fmt.Errorf(jiraFetchErrorTemplateConstant, issuesError)
	}
	service.logger.Info(issuesLoadedLogMessageConstant, zap.Int(issueCountFieldNameConstant, len(issues)))

	var project githubapi.Project
	resolveError := service.retrier.Do(executionContext, ratelimit.NewOperation(resolveProjectOperationConstant, ""), func(operationContext context.Context) error {
		var operationError error
		project, operationError = service.gateway.ResolveProject(operationContext, options.Target)
		return operationError
	})
	if resolveError != nil {
		return Summary{}, fmt.Errorf(projectResolveErrorTemplateConstant, resolveError)
	}

	existingItems, existingError := service.loadExistingItems(executionContext, project.ID)
	if existingError != nil {
		return Summary{}, existingError
	}

	statusFieldName := strings.TrimSpace(options.StatusFieldName)
	if len(statusFieldName) == 0 {
		statusFieldName = defaultStatusFieldNameConstant
	}
	var statusField githubapi.StatusField
	statusFieldError := service.retrier.Do(executionContext, ratelimit.NewOperation(statusFieldOperationConstant, ""), func(operationContext context.Context) error {
		var operationError error
		statusField, operationError = service.gateway.StatusField(operationContext, project.ID, statusFieldName)
		return operationError
	})
	if statusFieldError != nil {
		return Summary{}, fmt.Errorf(statusFieldErrorTemplateConstant, statusFieldError)
	}

	summary := Summary{ProjectID: project.ID, Total: len(issues)}
	for _, issue := range issues {
		if isAlreadyMigrated(issue.Key, existingItems) {
			service.logger.Info(issueSkippedLogMessageConstant, zap.String(issueKeyFieldNameConstant, issue.Key))
			summary.Skipped++
			summary.Results = append(summary.Results, IssueResult{Key: issue.Key, Title: issue.Summary, Outcome: OutcomeSkipped})
			continue
		}

		result := service.migrateIssue(executionContext, project.ID, statusField, issue)
		if contextError := executionContext.Err(); contextError != nil {
			summary.Results = append(summary.Results, result)
			return summary, contextError
		}

		summary.Results = append(summary.Results, result)
		switch result.Outcome {
		case OutcomeCreated:
			summary.Created++
			existingItems = append(existingItems, githubapi.ProjectItem{ID: result.ItemID, Body: IssueMarker(issue.Key)})
			if result.StatusError != nil {
				summary.StatusFailures++
			}
		case OutcomeFailed:
			summary.Failed++
		}
	}

	return summary, nil
}

func (service *Service) loadExistingItems(executionContext context.Context, projectID string) ([]githubapi.ProjectItem, error) {
	itemFetcher, fetcherError := pagination.NewFetcher(pagination.FetcherDependencies[githubapi.ProjectItem]{
		Logger:     service.logger,
		Recorder:   service.recorder,
		SourceName: projectItemsSourceNameConstant,
		Source:     service.itemsSource(projectID),
		Retrier:    service.retrier,
	})
	if fetcherError != nil {
		return nil, fetcherError
	}

	existingItems, fetchError := itemFetcher.FetchAll(executionContext, pagination.AcceptAll[githubapi.ProjectItem](), pagination.FetchOptions{ForceRefresh: true})
	if fetchError != nil {
		return nil, fmt.Errorf(existingItemsErrorTemplateConstant, fetchError)
	}
	service.logger.Info(
		existingItemsLogMessageConstant,
		zap.String(projectIDFieldNameConstant, projectID),
		zap.Int(existingCountFieldNameConstant, len(existingItems)),
	)
	return existingItems, nil
}

func (service *Service) migrateIssue(executionContext context.Context, projectID string, statusField githubapi.StatusField, issue jira.Issue) IssueResult {
	result := IssueResult{Key: issue.Key, Title: issue.Summary}
	body := RenderIssueBody(issue)

	createError := service.retrier.Do(executionContext, ratelimit.NewOperation(createDraftOperationConstant, issue.Key), func(operationContext context.Context) error {
		var operationError error
		result.ItemID, operationError = service.gateway.AddDraftIssue(operationContext, projectID, issue.Summary, body)
		return operationError
	})
	if createError != nil {
		result.Outcome = OutcomeFailed
		result.Error = createError
		service.logger.Warn(issueFailedLogMessageConstant, zap.String(issueKeyFieldNameConstant, issue.Key), zap.Error(createError))
		return result
	}

	result.Outcome = OutcomeCreated
	service.logger.Info(
		issueCreatedLogMessageConstant,
		zap.String(issueKeyFieldNameConstant, issue.Key),
		zap.String(itemIDFieldNameConstant, result.ItemID),
	)

	result.StatusError = service.applyStatus(executionContext, projectID, statusField, issue, &result)
	if result.StatusError != nil {
		service.logger.Warn(
			statusFailedLogMessageConstant,
			zap.String(issueKeyFieldNameConstant, issue.Key),
			zap.String(itemIDFieldNameConstant, result.ItemID),
			zap.Error(result.StatusError),
		)
	}
	return result
}

func (service *Service) applyStatus(executionContext context.Context, projectID string, statusField githubapi.StatusField, issue jira.Issue, result *IssueResult) error {
	githubStatus, mappingError := MapStatus(issue.Status)
	if mappingError != nil {
		return mappingError
	}
	result.GitHubStatus = githubStatus

	optionID, optionError := statusField.OptionID(githubStatus)
	if optionError != nil {
		return optionError
	}

	return service.retrier.Do(executionContext, ratelimit.NewOperation(updateStatusOperationConstant, issue.Key), func(operationContext context.Context) error {
		return service.gateway.UpdateItemSingleSelect(operationContext, projectID, result.ItemID, statusField.ID, optionID)
	})
}

func isAlreadyMigrated(issueKey string, existingItems []githubapi.ProjectItem) bool {
	for _, item := range existingItems {
		if len(item.Body) == 0 {
			continue
		}
		if ContainsIssueMarker(item.Body, issueKey) {
			return true
		}
	}
	return false
}
