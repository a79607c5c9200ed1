package branches

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/temirov/ghkeeper/internal/githubrest"
	"github.com/temirov/ghkeeper/internal/metrics"
	"github.com/temirov/ghkeeper/internal/pagination"
	"github.com/temirov/ghkeeper/internal/ratelimit"
)

const (
	repositoriesSourceNameConstant         = "repositories"
	branchesSourceNameConstant             = "branches"
	commitOperationConstant                = "load_commit"
	deleteOperationConstant                = "delete_branch"
	branchSubjectTemplateConstant          = "%s of %s"
	repositoryFieldNameConstant            = "repository"
	branchFieldNameConstant                = "branch"
	statusFieldNameConstant                = "status"
	branchCountFieldNameConstant           = "branches"
	repositoryScanFailedLogMessageConstant = "Skipping repository after scan failure"
	repositoryScannedLogMessageConstant    = "Scanned repository branches"
	branchProcessedLogMessageConstant      = "Processed stale branch"
	repositoriesErrorTemplateConstant      = "unable to list repositories: %w"
	hoursPerDayConstant                    = 24
	relativeAgoLabelConstant               = "ago"
	relativeAheadLabelConstant             = "from now"
	skippedMessageTemplateConstant         = "last commit %s is newer than the cutoff"
	simulationMessageTemplateConstant      = "would delete (last commit %s)"
	deletedMessageTemplateConstant         = "deleted (last commit %s)"
	repositoryMissingMessageConstant       = "repository source not configured"
	clientMissingMessageConstant           = "branch client not configured"
	retrierMissingMessageConstant          = "retrier not configured"
)

var (
	// ErrRepositorySourceNotConfigured indicates the service was built without a repository source.
	ErrRepositorySourceNotConfigured = errors.New(repositoryMissingMessageConstant)
	// ErrClientNotConfigured indicates the service was built without a branch client.
	ErrClientNotConfigured = errors.New(clientMissingMessageConstant)
	// ErrRetrierNotConfigured indicates the service was built without retriers.
	ErrRetrierNotConfigured = errors.New(retrierMissingMessageConstant)
)

// BranchClient exposes the REST calls the branch workflow relies on.
type BranchClient interface {
	Branches(owner string, name string) pagination.PageSource[githubrest.Branch]
	Commit(ctx context.Context, owner string, name string, sha string) (githubrest.Commit, error)
	DeleteBranch(ctx context.Context, owner string, name string, branch string) error
}

// ServiceDependencies enumerates collaborators required by the service.
type ServiceDependencies struct {
	Logger       *zap.Logger
	Recorder     *metrics.Recorder
	Repositories pagination.PageSource[githubrest.Repository]
	Client       BranchClient
	Retrier      *ratelimit.Retrier
	Now          func() time.Time
}

// Status is the outcome of processing one stale branch.
type Status string

// Cleanup outcomes.
const (
	StatusSkipped    Status = "skipped"
	StatusSimulation Status = "simulation"
	StatusDeleted    Status = "deleted"
	StatusError      Status = "error"
)

// ScanFailure records a repository whose branches could not be inspected.
type ScanFailure struct {
	Repository string
	Error      error
}

// ScanReport lists the repositories holding matching branches.
type ScanReport struct {
	Scanned      int
	Repositories []RepositoryBranches
	Failures     []ScanFailure
}

// CleanupOptions configure a cleanup run.
type CleanupOptions struct {
	Days    int
	Execute bool
}

// CleanupResult is the outcome for one branch.
type CleanupResult struct {
	Repository string
	Branch     string
	Status     Status
	Message    string
	Error      error
}

// CleanupSummary aggregates cleanup results.
type CleanupSummary struct {
	Deleted   int
	Simulated int
	Skipped   int
	Failed    int
	Results   []CleanupResult
}

// Service scans and removes stale branches.
type Service struct {
	logger       *zap.Logger
	recorder     *metrics.Recorder
	repositories pagination.PageSource[githubrest.Repository]
	client       BranchClient
	retrier      *ratelimit.Retrier
	now          func() time.Time
}

// NewService validates dependencies and constructs a Service.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Client == nil {
		return nil, ErrClientNotConfigured
	}
	if dependencies.Retrier == nil {
		return nil, ErrRetrierNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := dependencies.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logger:       logger,
		recorder:     dependencies.Recorder,
		repositories: dependencies.Repositories,
		client:       dependencies.Client,
		retrier:      dependencies.Retrier,
		now:          now,
	}, nil
}

// Scan walks every accessible repository and collects branches whose names start with prefix.
// Repositories that fail are logged, recorded and skipped.
func (service *Service) Scan(executionContext context.Context, prefix string) (ScanReport, error) {
	if service.repositories == nil {
		return ScanReport{}, ErrRepositorySourceNotConfigured
	}
	repositoryFetcher, fetcherError := pagination.NewFetcher(pagination.FetcherDependencies[githubrest.Repository]{
		Logger:     service.logger,
		Recorder:   service.recorder,
		SourceName: repositoriesSourceNameConstant,
		Source:     service.repositories,
		Retrier:    service.retrier,
	})
	if fetcherError != nil {
		return ScanReport{}, fetcherError
	}
	repositories, listError := repositoryFetcher.FetchAll(executionContext, pagination.AcceptAll[githubrest.Repository](), pagination.FetchOptions{ForceRefresh: true})
	if listError != nil {
		return ScanReport{}, fmt.Errorf(repositoriesErrorTemplateConstant, listError)
	}

	report := ScanReport{Scanned: len(repositories)}
	for _, repository := range repositories {
		records, scanError := service.scanRepository(executionContext, repository, prefix)
		if contextError := executionContext.Err(); contextError != nil {
			return report, contextError
		}
		if scanError != nil {
			service.logger.Warn(repositoryScanFailedLogMessageConstant, zap.String(repositoryFieldNameConstant, repository.FullName), zap.Error(scanError))
			report.Failures = append(report.Failures, ScanFailure{Repository: repository.FullName, Error: scanError})
			continue
		}
		service.logger.Debug(repositoryScannedLogMessageConstant, zap.String(repositoryFieldNameConstant, repository.FullName), zap.Int(branchCountFieldNameConstant, len(records)))
		if len(records) == 0 {
			continue
		}
		report.Repositories = append(report.Repositories, RepositoryBranches{Name: repository.Name, FullName: repository.FullName, Branches: records})
	}
	return report, nil
}

func (service *Service) scanRepository(executionContext context.Context, repository githubrest.Repository, prefix string) ([]BranchRecord, error) {
	owner, name := repositoryOwnerAndName(repository)
	branchFetcher, fetcherError := pagination.NewFetcher(pagination.FetcherDependencies[githubrest.Branch]{
		Logger:        service.logger,
		Recorder:      service.recorder,
		SourceName:    branchesSourceNameConstant,
		SourceSubject: repository.FullName,
		Source:        service.client.Branches(owner, name),
		Retrier:       service.retrier,
	})
	if fetcherError != nil {
		return nil, fetcherError
	}
	matchingBranches, fetchError := branchFetcher.FetchAll(executionContext, func(branch githubrest.Branch) bool {
		return strings.HasPrefix(branch.Name, prefix)
	}, pagination.FetchOptions{ForceRefresh: true})
	if fetchError != nil {
		return nil, fetchError
	}

	records := make([]BranchRecord, 0, len(matchingBranches))
	for _, branch := range matchingBranches {
		var commit githubrest.Commit
		commitError := service.retrier.Do(executionContext, ratelimit.NewOperation(commitOperationConstant, fmt.Sprintf(branchSubjectTemplateConstant, branch.CommitSHA, repository.FullName)), func(operationContext context.Context) error {
			var operationError error
			commit, operationError = service.client.Commit(operationContext, owner, name, branch.CommitSHA)
			return operationError
		})
		if commitError != nil {
			return nil, commitError
		}
		records = append(records, BranchRecord{Name: branch.Name, LastCommitDate: commit.AuthoredAt, CommitSHA: branch.CommitSHA})
	}
	return records, nil
}

// Cleanup evaluates every inventoried branch against the age cutoff and deletes it when Execute is set.
func (service *Service) Cleanup(executionContext context.Context, inventory []RepositoryBranches, options CleanupOptions) (CleanupSummary, error) {
	days := options.Days
	if days <= 0 {
		days = defaultAgeDaysConstant
	}
	now := service.now()
	cutoff := now.Add(-time.Duration(days) * hoursPerDayConstant * time.Hour)

	var summary CleanupSummary
	for _, repository := range inventory {
		owner, name := repository.OwnerAndName()
		for _, branch := range repository.Branches {
			result := CleanupResult{Repository: repository.FullName, Branch: branch.Name}
			age := humanize.RelTime(branch.LastCommitDate, now, relativeAgoLabelConstant, relativeAheadLabelConstant)

			switch {
			case !branch.LastCommitDate.Before(cutoff):
				result.Status = StatusSkipped
				result.Message = fmt.Sprintf(skippedMessageTemplateConstant, age)
			case !options.Execute:
				result.Status = StatusSimulation
				result.Message = fmt.Sprintf(simulationMessageTemplateConstant, age)
			default:
				deleteError := service.retrier.Do(executionContext, ratelimit.NewOperation(deleteOperationConstant, fmt.Sprintf(branchSubjectTemplateConstant, branch.Name, repository.FullName)), func(operationContext context.Context) error {
					return service.client.DeleteBranch(operationContext, owner, name, branch.Name)
				})
				if contextError := executionContext.Err(); contextError != nil {
					return summary, contextError
				}
				if deleteError != nil {
					result.Status = StatusError
					result.Message = deleteError.Error()
					result.Error = deleteError
				} else {
					result.Status = StatusDeleted
					result.Message = fmt.Sprintf(deletedMessageTemplateConstant, age)
				}
			}

			service.logger.Info(
				branchProcessedLogMessageConstant,
				zap.String(repositoryFieldNameConstant, repository.FullName),
				zap.String(branchFieldNameConstant, branch.Name),
				zap.String(statusFieldNameConstant, string(result.Status)),
			)
			summary.record(result)
		}
	}
	return summary, nil
}

func (summary *CleanupSummary) record(result CleanupResult) {
	switch result.Status {
	case StatusDeleted:
		summary.Deleted++
	case StatusSimulation:
		summary.Simulated++
	case StatusSkipped:
		summary.Skipped++
	case StatusError:
		summary.Failed++
	}
	summary.Results = append(summary.Results, result)
}

func repositoryOwnerAndName(repository githubrest.Repository) (string, string) {
	if len(repository.Owner) > 0 {
		return repository.Owner, repository.Name
	}
	return RepositoryBranches{FullName: repository.FullName}.OwnerAndName()
}
