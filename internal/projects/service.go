package projects

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/ghkeeper/internal/githubapi"
	"github.com/temirov/ghkeeper/internal/githubrest"
	"github.com/temirov/ghkeeper/internal/metrics"
	"github.com/temirov/ghkeeper/internal/pagination"
	"github.com/temirov/ghkeeper/internal/ratelimit"
	"github.com/temirov/ghkeeper/internal/snapshot"
)

const (
	projectItemsSourceNameConstant          = "project_items"
	repositoryIssuesSourceNameConstant      = "repository_issues"
	defaultStatusFieldNameConstant          = "Status"
	defaultBatchSizeConstant                = 10
	resolveProjectOperationConstant         = "resolve_project"
	statusFieldOperationConstant            = "resolve_status_field"
	repositoryIDOperationConstant           = "resolve_repository"
	updateStatusOperationConstant           = "set_status"
	convertDraftOperationConstant           = "convert_draft"
	addItemOperationConstant                = "add_issue"
	issueSubjectTemplateConstant            = "#%d"
	itemsSnapshotScopeTemplateConstant      = "%s/%s#%d project=%s field=%q status=%q body=%q"
	itemIDFieldNameConstant                 = "item_id"
	itemTitleFieldNameConstant              = "title"
	issueNumberFieldNameConstant            = "issue_number"
	statusFieldNameConstant                 = "status"
	progressFieldNameConstant               = "progress"
	delayFieldNameConstant                  = "delay"
	projectIDFieldNameConstant              = "project_id"
	itemsListedLogMessageConstant           = "Listed project items"
	statusUpdatedLogMessageConstant         = "Updated item status"
	statusUpdateFailedLogMessageConstant    = "Item status update failed"
	batchPauseLogMessageConstant            = "Pausing between update batches"
	draftConvertedLogMessageConstant        = "Converted draft item"
	draftConversionFailedLogMessageConstant = "Draft conversion failed"
	issueAddedLogMessageConstant            = "Added issue to project"
	syncFailedLogMessageConstant            = "Issue synchronisation failed"
	gatewayMissingMessageConstant           = "project gateway not configured"
	itemsSourceMissingMessageConstant       = "project items source not configured"
	issuesSourceMissingMessageConstant      = "repository issues source not configured"
	retrierMissingMessageConstant           = "retrier not configured"
	markerMissingMessageConstant            = "marker must be provided"
	statusMissingMessageConstant            = "status must be provided"
	projectResolveErrorTemplateConstant     = "unable to resolve project: %w"
	statusFieldErrorTemplateConstant        = "unable to resolve status field: %w"
	repositoryIDErrorTemplateConstant       = "unable to resolve repository %s: %w"
	itemsFetchErrorTemplateConstant         = "unable to list project items: %w"
	issuesFetchErrorTemplateConstant        = "unable to list issues of %s: %w"
	repositorySlugTemplateConstant          = "%s/%s"
	repositoryFieldNameConstant             = "repository"
	repositorySlugMessageConstant           = "expected owner/name"
	itemCountFieldNameConstant              = "items"
)

var (
	// ErrGatewayNotConfigured indicates a Service without a project gateway.
	ErrGatewayNotConfigured = errors.New(gatewayMissingMessageConstant)
	// ErrItemsSourceNotConfigured indicates a Service without a project item source.
	ErrItemsSourceNotConfigured = errors.New(itemsSourceMissingMessageConstant)
	// ErrIssuesSourceNotConfigured indicates SyncIssues without a repository issue source.
	ErrIssuesSourceNotConfigured = errors.New(issuesSourceMissingMessageConstant)
	// ErrRetrierNotConfigured indicates a Service without both retriers.
	ErrRetrierNotConfigured = errors.New(retrierMissingMessageConstant)
	// ErrMarkerMissing indicates SyncIssues without a body marker.
	ErrMarkerMissing = errors.New(markerMissingMessageConstant)
	// ErrStatusMissing indicates a status update without a target status.
	ErrStatusMissing = errors.New(statusMissingMessageConstant)
)

// Gateway covers the Projects (v2) operations used by the service.
type Gateway interface {
	ResolveProject(ctx context.Context, reference githubapi.ProjectReference) (githubapi.Project, error)
	StatusField(ctx context.Context, projectID string, fieldName string) (githubapi.StatusField, error)
	RepositoryID(ctx context.Context, owner string, name string) (string, error)
	AddItemByContentID(ctx context.Context, projectID string, contentID string) (string, error)
	UpdateItemSingleSelect(ctx context.Context, projectID string, itemID string, fieldID string, optionID string) error
	ConvertDraftToIssue(ctx context.Context, itemID string, repositoryID string) (githubapi.ConvertedIssue, error)
}

// ItemsSourceFactory returns a page source over the items of a project.
type ItemsSourceFactory func(projectID string) pagination.PageSource[githubapi.ProjectItem]

// IssuesSourceFactory returns a page source over the issues of a repository.
type IssuesSourceFactory func(owner string, name string) pagination.PageSource[githubrest.Issue]

// ServiceDependencies enumerates the collaborators of the projects service.
// BulkRetrier paces item listing; InteractiveRetrier paces single calls and mutations.
type ServiceDependencies struct {
	Logger             *zap.Logger
	Recorder           *metrics.Recorder
	Gateway            Gateway
	ItemsSource        ItemsSourceFactory
	IssuesSource       IssuesSourceFactory
	BulkRetrier        *ratelimit.Retrier
	InteractiveRetrier *ratelimit.Retrier
	Sleeper            ratelimit.Sleeper
}

// RepositoryReference names a repository.
type RepositoryReference struct {
	Owner string
	Name  string
}

// String renders owner/name.
func (reference RepositoryReference) String() string {
	return fmt.Sprintf(repositorySlugTemplateConstant, reference.Owner, reference.Name)
}

// ParseRepositoryReference splits an owner/name slug.
func ParseRepositoryReference(slug string) (RepositoryReference, error) {
	parts := strings.Split(strings.TrimSpace(slug), "/")
	if len(parts) != 2 || len(strings.TrimSpace(parts[0])) == 0 || len(strings.TrimSpace(parts[1])) == 0 {
		return RepositoryReference{}, githubapi.InvalidInputError{FieldName: repositoryFieldNameConstant, Message: repositorySlugMessageConstant}
	}
	return RepositoryReference{Owner: strings.TrimSpace(parts[0]), Name: strings.TrimSpace(parts[1])}, nil
}

// ListOptions select the items returned by ListItems.
// The snapshot written to Store is scoped to the project and every filter, so a query never reads
// another query's items.
type ListOptions struct {
	Target       githubapi.ProjectReference
	StatusField  string
	Status       string
	BodyContains string
	Refresh      bool
	Store        snapshot.Store
}

// Listing is the result of ListItems.
type Listing struct {
	Project githubapi.Project
	Items   []githubapi.ProjectItem
}

// UpdateOptions describe a batch status update.
type UpdateOptions struct {
	ProjectID       string
	StatusFieldName string
	Status          string
	Targets         []Target
	BatchSize       int
	BatchDelay      time.Duration
}

// UpdateResult is the outcome for one target.
type UpdateResult struct {
	Target Target
	Error  error
}

// UpdateSummary aggregates a batch status update.
type UpdateSummary struct {
	Total   int
	Updated int
	Results []UpdateResult
}

// ConversionResult is the outcome of converting one draft item.
type ConversionResult struct {
	Item  githubapi.ProjectItem
	Issue githubapi.ConvertedIssue
	Error error
}

// SyncOptions describe an issue synchronisation.
type SyncOptions struct {
	Target          githubapi.ProjectReference
	Repository      RepositoryReference
	Marker          string
	Status          string
	StatusFieldName string
}

// SyncAction describes what happened to a synchronised item.
type SyncAction string

// Synchronisation actions.
const (
	SyncActionUpdated   SyncAction = "updated"
	SyncActionAdded     SyncAction = "added"
	SyncActionUnchanged SyncAction = "unchanged"
	SyncActionFailed    SyncAction = "failed"
)

// SyncResult is the outcome for one issue or draft item.
type SyncResult struct {
	IssueNumber int
	ItemID      string
	Title       string
	Action      SyncAction
	Error       error
}

// SyncSummary aggregates an issue synchronisation.
type SyncSummary struct {
	MatchedIssues int
	MatchedDrafts int
	Added         int
	Updated       int
	Unchanged     int
	Failed        int
	Results       []SyncResult
}

// Service implements the project commands.
type Service struct {
	logger             *zap.Logger
	recorder           *metrics.Recorder
	gateway            Gateway
	itemsSource        ItemsSourceFactory
	issuesSource       IssuesSourceFactory
	bulkRetrier        *ratelimit.Retrier
	interactiveRetrier *ratelimit.Retrier
	sleeper            ratelimit.Sleeper
}

// NewService validates dependencies and constructs a Service.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Gateway == nil {
		return nil, ErrGatewayNotConfigured
	}
	if dependencies.ItemsSource == nil {
		return nil, ErrItemsSourceNotConfigured
	}
	if dependencies.BulkRetrier == nil || dependencies.InteractiveRetrier == nil {
		return nil, ErrRetrierNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sleeper := dependencies.Sleeper
	if sleeper == nil {
		sleeper = ratelimit.TimerSleeper
	}
	return &Service{
		logger:             logger,
		recorder:           dependencies.Recorder,
		gateway:            dependencies.Gateway,
		itemsSource:        dependencies.ItemsSource,
		issuesSource:       dependencies.IssuesSource,
		bulkRetrier:        dependencies.BulkRetrier,
		interactiveRetrier: dependencies.InteractiveRetrier,
		sleeper:            sleeper,
	}, nil
}

// ResolveProject looks up the project node.
func (service *Service) ResolveProject(executionContext context.Context, reference githubapi.ProjectReference) (githubapi.Project, error) {
	var project githubapi.Project
	resolveError := service.interactiveRetrier.Do(executionContext, ratelimit.NewOperation(resolveProjectOperationConstant, reference.Owner), func(operationContext context.Context) error {
		var operationError error
		project, operationError = service.gateway.ResolveProject(operationContext, reference)
		return operationError
	})
	if resolveError != nil {
		return githubapi.Project{}, fmt.Errorf(projectResolveErrorTemplateConstant, resolveError)
	}
	return project, nil
}

// ListItems returns the project items matching both filters, served from the snapshot store when one
// is configured and no refresh is requested.
func (service *Service) ListItems(executionContext context.Context, options ListOptions) (Listing, error) {
	project, projectError := service.ResolveProject(executionContext, options.Target)
	if projectError != nil {
		return Listing{}, projectError
	}

	itemFetcher, fetcherError := pagination.NewFetcher(pagination.FetcherDependencies[githubapi.ProjectItem]{
		Logger:     service.logger,
		Recorder:   service.recorder,
		SourceName: projectItemsSourceNameConstant,
		Source:     service.itemsSource(project.ID),
		Retrier:    service.bulkRetrier,
		Store:      scopedItemsStore(options, project),
	})
	if fetcherError != nil {
		return Listing{}, fetcherError
	}

	predicate := pagination.AllOf(StatusEquals(options.Status), BodyContains(options.BodyContains))
	items, fetchError := itemFetcher.FetchAll(executionContext, predicate, pagination.FetchOptions{ForceRefresh: options.Refresh})
	if fetchError != nil {
		return Listing{}, fmt.Errorf(itemsFetchErrorTemplateConstant, fetchError)
	}

	service.logger.Info(itemsListedLogMessageConstant, zap.String(projectIDFieldNameConstant, project.ID), zap.Int(itemCountFieldNameConstant, len(items)))
	return Listing{Project: project, Items: items}, nil
}

func scopedItemsStore(options ListOptions, project githubapi.Project) snapshot.Store {
	if options.Store == nil {
		return nil
	}
	statusField := strings.TrimSpace(options.StatusField)
	if len(statusField) == 0 {
		statusField = defaultStatusFieldNameConstant
	}
	scope := fmt.Sprintf(
		itemsSnapshotScopeTemplateConstant,
		options.Target.OwnerType,
		options.Target.Owner,
		options.Target.Number,
		project.ID,
		statusField,
		options.Status,
		options.BodyContains,
	)
	return snapshot.NewScopedStore(options.Store, scope)
}

// UpdateStatus sets the status of every target, pausing for BatchDelay after each full batch.
// Failures are recorded per target; cancellation stops the run.
func (service *Service) UpdateStatus(executionContext context.Context, options UpdateOptions) (UpdateSummary, error) {
	if len(strings.TrimSpace(options.Status)) == 0 {
		return UpdateSummary{}, ErrStatusMissing
	}
	statusField, optionID, resolveError := service.resolveStatusOption(executionContext, options.ProjectID, options.StatusFieldName, options.Status)
	if resolveError != nil {
		return UpdateSummary{}, resolveError
	}

	batchSize := options.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSizeConstant
	}

	summary := UpdateSummary{Total: len(options.Targets)}
	for targetIndex, target := range options.Targets {
		updateError := service.setStatus(executionContext, options.ProjectID, target.ID, statusField.ID, optionID)
		if contextError := executionContext.Err(); contextError != nil {
			return summary, contextError
		}

		summary.Results = append(summary.Results, UpdateResult{Target: target, Error: updateError})
		if updateError != nil {
			service.logger.Warn(statusUpdateFailedLogMessageConstant, zap.String(itemIDFieldNameConstant, target.ID), zap.Error(updateError))
		} else {
			summary.Updated++
			service.logger.Info(
				statusUpdatedLogMessageConstant,
				zap.String(itemIDFieldNameConstant, target.ID),
				zap.String(itemTitleFieldNameConstant, target.Title),
				zap.String(statusFieldNameConstant, options.Status),
				zap.String(progressFieldNameConstant, fmt.Sprintf("%d/%d", summary.Updated, summary.Total)),
			)
		}

		completed := targetIndex + 1
		if completed%batchSize == 0 && completed < len(options.Targets) && options.BatchDelay > 0 {
			service.logger.Info(batchPauseLogMessageConstant, zap.Duration(delayFieldNameConstant, options.BatchDelay))
			if sleepError := service.sleeper(executionContext, options.BatchDelay); sleepError != nil {
				return summary, sleepError
			}
		}
	}
	return summary, nil
}

// ConvertDrafts converts every draft item into an issue of the repository.
func (service *Service) ConvertDrafts(executionContext context.Context, items []githubapi.ProjectItem, repository RepositoryReference) ([]ConversionResult, error) {
	var repositoryID string
	repositoryError := service.interactiveRetrier.Do(executionContext, ratelimit.NewOperation(repositoryIDOperationConstant, repository.String()), func(operationContext context.Context) error {
		var operationError error
		repositoryID, operationError = service.gateway.RepositoryID(operationContext, repository.Owner, repository.Name)
		return operationError
	})
	if repositoryError != nil {
		return nil, fmt.Errorf(repositoryIDErrorTemplateConstant, repository, repositoryError)
	}

	var results []ConversionResult
	for _, item := range items {
		if !item.IsDraft() {
			continue
		}
		result := ConversionResult{Item: item}
		result.Error = service.interactiveRetrier.Do(executionContext, ratelimit.NewOperation(convertDraftOperationConstant, item.ID), func(operationContext context.Context) error {
			var operationError error
			result.Issue, operationError = service.gateway.ConvertDraftToIssue(operationContext, item.ID, repositoryID)
			return operationError
		})
		if contextError := executionContext.Err(); contextError != nil {
			return append(results, result), contextError
		}
		if result.Error != nil {
			service.logger.Warn(draftConversionFailedLogMessageConstant, zap.String(itemIDFieldNameConstant, item.ID), zap.Error(result.Error))
		} else {
			service.logger.Info(draftConvertedLogMessageConstant, zap.String(itemIDFieldNameConstant, item.ID), zap.Int(issueNumberFieldNameConstant, result.Issue.Number))
		}
		results = append(results, result)
	}
	return results, nil
}

// SyncIssues adds marked repository issues to the project when missing and sets their status;
// draft items carrying the marker, or its translated variant, get the status too.
func (service *Service) SyncIssues(executionContext context.Context, options SyncOptions) (SyncSummary, error) {
	if service.issuesSource == nil {
		return SyncSummary{}, ErrIssuesSourceNotConfigured
	}
	markerVariants := MarkerVariants(options.Marker)
	if len(markerVariants) == 0 {
		return SyncSummary{}, ErrMarkerMissing
	}
	if len(strings.TrimSpace(options.Status)) == 0 {
		return SyncSummary{}, ErrStatusMissing
	}

	project, projectError := service.ResolveProject(executionContext, options.Target)
	if projectError != nil {
		return SyncSummary{}, projectError
	}
	statusField, optionID, resolveError := service.resolveStatusOption(executionContext, project.ID, options.StatusFieldName, options.Status)
	if resolveError != nil {
		return SyncSummary{}, resolveError
	}

	projectItems, itemsError := service.fetchProjectItems(executionContext, project.ID)
	if itemsError != nil {
		return SyncSummary{}, fmt.Errorf(itemsFetchErrorTemplateConstant, itemsError)
	}
	issues, issuesError := service.fetchMarkedIssues(executionContext, options.Repository, markerVariants[0])
	if issuesError != nil {
		return SyncSummary{}, fmt.Errorf(issuesFetchErrorTemplateConstant, options.Repository, issuesError)
	}

	itemsByContentID := make(map[string]githubapi.ProjectItem, len(projectItems))
	for _, item := range projectItems {
		if len(item.ContentID) > 0 {
			itemsByContentID[item.ContentID] = item
		}
	}

	var summary SyncSummary
	for _, issue := range issues {
		summary.MatchedIssues++
		result := SyncResult{IssueNumber: issue.Number, Title: issue.Title}

		existingItem, present := itemsByContentID[issue.NodeID]
		if present {
			result.ItemID = existingItem.ID
			if hasStatus(existingItem, options.Status) {
				result.Action = SyncActionUnchanged
				summary.record(result)
				continue
			}
		} else {
			addError := service.interactiveRetrier.Do(executionContext, ratelimit.NewOperation(addItemOperationConstant, fmt.Sprintf(issueSubjectTemplateConstant, issue.Number)), func(operationContext context.Context) error {
				var operationError error
				result.ItemID, operationError = service.gateway.AddItemByContentID(operationContext, project.ID, issue.NodeID)
				return operationError
			})
			if addError != nil {
				if contextError := executionContext.Err(); contextError != nil {
					return summary, contextError
				}
				result.Action = SyncActionFailed
				result.Error = addError
				service.logger.Warn(syncFailedLogMessageConstant, zap.Int(issueNumberFieldNameConstant, issue.Number), zap.Error(addError))
				summary.record(result)
				continue
			}
			service.logger.Info(issueAddedLogMessageConstant, zap.Int(issueNumberFieldNameConstant, issue.Number), zap.String(itemIDFieldNameConstant, result.ItemID))
		}

		result.Error = service.setStatus(executionContext, project.ID, result.ItemID, statusField.ID, optionID)
		if contextError := executionContext.Err(); contextError != nil {
			return summary, contextError
		}
		result.Action = actionFor(present, result.Error)
		if result.Error != nil {
			service.logger.Warn(syncFailedLogMessageConstant, zap.Int(issueNumberFieldNameConstant, issue.Number), zap.Error(result.Error))
		}
		summary.record(result)
	}

	draftPredicate := BodyContains(markerVariants...)
	for _, item := range projectItems {
		if !item.IsDraft() || !draftPredicate(item) {
			continue
		}
		summary.MatchedDrafts++
		result := SyncResult{ItemID: item.ID, Title: item.Title}
		if hasStatus(item, options.Status) {
			result.Action = SyncActionUnchanged
			summary.record(result)
			continue
		}
		result.Error = service.setStatus(executionContext, project.ID, item.ID, statusField.ID, optionID)
		if contextError := executionContext.Err(); contextError != nil {
			return summary, contextError
		}
		result.Action = actionFor(true, result.Error)
		if result.Error != nil {
			service.logger.Warn(syncFailedLogMessageConstant, zap.String(itemIDFieldNameConstant, item.ID), zap.Error(result.Error))
		}
		summary.record(result)
	}

	return summary, nil
}

func (summary *SyncSummary) record(result SyncResult) {
	switch result.Action {
	case SyncActionAdded:
		summary.Added++
	case SyncActionUpdated:
		summary.Updated++
	case SyncActionUnchanged:
		summary.Unchanged++
	case SyncActionFailed:
		summary.Failed++
	}
	summary.Results = append(summary.Results, result)
}

func hasStatus(item githubapi.ProjectItem, status string) bool {
	return strings.EqualFold(strings.TrimSpace(item.Status), strings.TrimSpace(status))
}

func actionFor(alreadyInProject bool, updateError error) SyncAction {
	switch {
	case updateError != nil:
		return SyncActionFailed
	case alreadyInProject:
		return SyncActionUpdated
	default:
		return SyncActionAdded
	}
}

func (service *Service) resolveStatusOption(executionContext context.Context, projectID string, fieldName string, status string) (githubapi.StatusField, string, error) {
	if len(strings.TrimSpace(fieldName)) == 0 {
		fieldName = defaultStatusFieldNameConstant
	}
	var statusField githubapi.StatusField
	fieldError := service.interactiveRetrier.Do(executionContext, ratelimit.NewOperation(statusFieldOperationConstant, fieldName), func(operationContext context.Context) error {
		var operationError error
		statusField, operationError = service.gateway.StatusField(operationContext, projectID, fieldName)
		return operationError
	})
	if fieldError != nil {
		return githubapi.StatusField{}, "", fmt.Errorf(statusFieldErrorTemplateConstant, fieldError)
	}
	optionID, optionError := statusField.OptionID(status)
	if optionError != nil {
		return githubapi.StatusField{}, "", optionError
	}
	return statusField, optionID, nil
}

func (service *Service) setStatus(executionContext context.Context, projectID string, itemID string, fieldID string, optionID string) error {
	return service.interactiveRetrier.Do(executionContext, ratelimit.NewOperation(updateStatusOperationConstant, itemID), func(operationContext context.Context) error {
		return service.gateway.UpdateItemSingleSelect(operationContext, projectID, itemID, fieldID, optionID)
	})
}

func (service *Service) fetchProjectItems(executionContext context.Context, projectID string) ([]githubapi.ProjectItem, error) {
	itemFetcher, fetcherError := pagination.NewFetcher(pagination.FetcherDependencies[githubapi.ProjectItem]{
		Logger:     service.logger,
		Recorder:   service.recorder,
		SourceName: projectItemsSourceNameConstant,
		Source:     service.itemsSource(projectID),
		Retrier:    service.bulkRetrier,
	})
	if fetcherError != nil {
		return nil, fetcherError
	}
	return itemFetcher.FetchAll(executionContext, pagination.AcceptAll[githubapi.ProjectItem](), pagination.FetchOptions{ForceRefresh: true})
}

func (service *Service) fetchMarkedIssues(executionContext context.Context, repository RepositoryReference, marker string) ([]githubrest.Issue, error) {
	issueFetcher, fetcherError := pagination.NewFetcher(pagination.FetcherDependencies[githubrest.Issue]{
		Logger:     service.logger,
		Recorder:   service.recorder,
		SourceName: repositoryIssuesSourceNameConstant,
		Source:     service.issuesSource(repository.Owner, repository.Name),
		Retrier:    service.interactiveRetrier,
	})
	if fetcherError != nil {
		return nil, fetcherError
	}
	return issueFetcher.FetchAll(executionContext, func(issue githubrest.Issue) bool {
		return !issue.IsPullRequest && strings.Contains(issue.Body, marker)
	}, pagination.FetchOptions{ForceRefresh: true})
}
