package dependabot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/ghkeeper/internal/githubrest"
	"github.com/temirov/ghkeeper/internal/ratelimit"
)

// AnalysisComment is posted on pull requests that bump a direct dependency.
const AnalysisComment = "🤖 **Dependency analysis requested**\n\n" +
	"This Dependabot update touches a direct dependency. Please check:\n" +
	"- that the update addresses the reported vulnerability\n" +
	"- whether breaking changes require code modifications\n" +
	"- compatibility with the other dependencies\n"

const (
	pullRequestsOperationConstant      = "list_dependabot_pull_requests"
	alertsOperationConstant            = "list_dependabot_alerts"
	manifestOperationConstant          = "read_manifest"
	manifestSubjectTemplateConstant    = "%s of %s"
	commentOperationConstant           = "comment_pull_request"
	pullRequestSubjectTemplateConstant = "%s#%d"
	repositoryFieldNameConstant        = "repository"
	manifestFieldNameConstant          = "manifest"
	pullRequestFieldNameConstant       = "pull_request"
	packageFieldNameConstant           = "package"
	repositoryFailedLogMessageConstant = "Skipping repository after Dependabot failure"
	manifestFailedLogMessageConstant   = "Unable to inspect manifest"
	commentPostedLogMessageConstant    = "Requested dependency analysis"
	repositoriesErrorTemplateConstant  = "unable to list repositories: %w"
	invalidRepositoryTemplateConstant  = "repository %q must be in owner/name form"
	clientMissingMessageConstant       = "Dependabot client not configured"
	listerMissingMessageConstant       = "repository lister not configured"
	retrierMissingMessageConstant      = "retrier not configured"
	fullNameSeparatorConstant          = "/"
)

var (
	// ErrClientNotConfigured indicates the service was built without a REST client.
	ErrClientNotConfigured = errors.New(clientMissingMessageConstant)
	// ErrRepositoryListerNotConfigured indicates no repository lister was provided for an all-repository scan.
	ErrRepositoryListerNotConfigured = errors.New(listerMissingMessageConstant)
	// ErrRetrierNotConfigured indicates the service was built without a retrier.
	ErrRetrierNotConfigured = errors.New(retrierMissingMessageConstant)
)

// Client exposes the REST calls the scan relies on.
type Client interface {
	DependabotPullRequests(ctx context.Context, owner string, name string) ([]githubrest.PullRequest, error)
	OpenDependabotAlerts(ctx context.Context, owner string, name string) ([]githubrest.DependabotAlert, error)
	FileContains(ctx context.Context, owner string, name string, path string, needle string) (bool, error)
	CreateIssueComment(ctx context.Context, owner string, name string, number int, body string) error
}

// RepositoryLister returns the first page of accessible repositories.
type RepositoryLister interface {
	FirstPage(ctx context.Context) ([]githubrest.Repository, error)
}

// ServiceDependencies enumerates collaborators required by the service.
type ServiceDependencies struct {
	Logger       *zap.Logger
	Client       Client
	Repositories RepositoryLister
	Retrier      *ratelimit.Retrier
}

// Options configure a scan.
type Options struct {
	Repository      string
	DryRun          bool
	RepositoryLimit int
	Manifests       []string
}

// Decision describes what happened to one pull request.
type Decision string

// Pull request decisions.
const (
	DecisionCommented  Decision = "commented"
	DecisionDryRun     Decision = "dry_run"
	DecisionIndirect   Decision = "indirect"
	DecisionUnparsable Decision = "unparsable"
	DecisionFailed     Decision = "failed"
)

// PullRequestAnalysis is the outcome for one Dependabot pull request.
type PullRequestAnalysis struct {
	Number   int
	Title    string
	Package  string
	Manifest string
	Decision Decision
	Error    error
}

// RepositoryReport summarises one repository.
type RepositoryReport struct {
	FullName     string
	PullRequests int
	Alerts       int
	Analyses     []PullRequestAnalysis
	Error        error
}

// Report aggregates a scan.
type Report struct {
	Repositories []RepositoryReport
	Comments     int
}

// Service runs the Dependabot review.
type Service struct {
	logger       *zap.Logger
	client       Client
	repositories RepositoryLister
	retrier      *ratelimit.Retrier
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
	return &Service{
		logger:       logger,
		client:       dependencies.Client,
		repositories: dependencies.Repositories,
		retrier:      dependencies.Retrier,
	}, nil
}

// Targets resolves the repositories to scan: the named one, or the first accessible ones up to the limit.
func (service *Service) Targets(executionContext context.Context, options Options) ([]string, error) {
	if trimmed := strings.TrimSpace(options.Repository); len(trimmed) > 0 {
		if _, _, valid := splitFullName(trimmed); !valid {
			return nil, fmt.Errorf(invalidRepositoryTemplateConstant, trimmed)
		}
		return []string{trimmed}, nil
	}
	if service.repositories == nil {
		return nil, ErrRepositoryListerNotConfigured
	}
	repositories, listError := service.repositories.FirstPage(executionContext)
	if listError != nil {
		return nil, fmt.Errorf(repositoriesErrorTemplateConstant, listError)
	}
	limit := options.RepositoryLimit
	if limit <= 0 {
		limit = defaultRepositoryLimitConstant
	}
	if len(repositories) > limit {
		repositories = repositories[:limit]
	}
	fullNames := make([]string, 0, len(repositories))
	for _, repository := range repositories {
		fullNames = append(fullNames, repository.FullName)
	}
	return fullNames, nil
}

// Scan reviews every target repository. Failures are recorded per repository and the scan continues.
func (service *Service) Scan(executionContext context.Context, targets []string, options Options) (Report, error) {
	manifests := options.Manifests
	if len(manifests) == 0 {
		manifests = DefaultManifests()
	}

	var report Report
	for _, fullName := range targets {
		repositoryReport := service.scanRepository(executionContext, fullName, manifests, options.DryRun)
		if contextError := executionContext.Err(); contextError != nil {
			return report, contextError
		}
		if repositoryReport.Error != nil {
			service.logger.Warn(repositoryFailedLogMessageConstant, zap.String(repositoryFieldNameConstant, fullName), zap.Error(repositoryReport.Error))
		}
		for _, analysis := range repositoryReport.Analyses {
			if analysis.Decision == DecisionCommented {
				report.Comments++
			}
		}
		report.Repositories = append(report.Repositories, repositoryReport)
	}
	return report, nil
}

func (service *Service) scanRepository(executionContext context.Context, fullName string, manifests []string, dryRun bool) RepositoryReport {
	repositoryReport := RepositoryReport{FullName: fullName}
	owner, name, valid := splitFullName(fullName)
	if !valid {
		repositoryReport.Error = fmt.Errorf(invalidRepositoryTemplateConstant, fullName)
		return repositoryReport
	}

	var pullRequests []githubrest.PullRequest
	pullRequestsError := service.retrier.Do(executionContext, ratelimit.NewOperation(pullRequestsOperationConstant, fullName), func(operationContext context.Context) error {
		var operationError error
		pullRequests, operationError = service.client.DependabotPullRequests(operationContext, owner, name)
		return operationError
	})
	if pullRequestsError != nil {
		repositoryReport.Error = pullRequestsError
		return repositoryReport
	}
	repositoryReport.PullRequests = len(pullRequests)

	var alerts []githubrest.DependabotAlert
	alertsError := service.retrier.Do(executionContext, ratelimit.NewOperation(alertsOperationConstant, fullName), func(operationContext context.Context) error {
		var operationError error
		alerts, operationError = service.client.OpenDependabotAlerts(operationContext, owner, name)
		return operationError
	})
	if alertsError != nil {
		repositoryReport.Error = alertsError
		return repositoryReport
	}
	repositoryReport.Alerts = len(alerts)

	for _, pullRequest := range pullRequests {
		repositoryReport.Analyses = append(repositoryReport.Analyses, service.analyzePullRequest(executionContext, owner, name, pullRequest, manifests, dryRun))
	}
	return repositoryReport
}

func (service *Service) analyzePullRequest(executionContext context.Context, owner string, name string, pullRequest githubrest.PullRequest, manifests []string, dryRun bool) PullRequestAnalysis {
	analysis := PullRequestAnalysis{Number: pullRequest.Number, Title: pullRequest.Title}
	packageName, parsed := ParseBumpedPackage(pullRequest.Title)
	if !parsed {
		analysis.Decision = DecisionUnparsable
		return analysis
	}
	analysis.Package = packageName

	fullName := owner + fullNameSeparatorConstant + name
	for _, manifest := range manifests {
		var contains bool
		manifestError := service.retrier.Do(executionContext, ratelimit.NewOperation(manifestOperationConstant, fmt.Sprintf(manifestSubjectTemplateConstant, manifest, fullName)), func(operationContext context.Context) error {
			var operationError error
			contains, operationError = service.client.FileContains(operationContext, owner, name, manifest, packageName)
			return operationError
		})
		if manifestError != nil {
			service.logger.Debug(manifestFailedLogMessageConstant, zap.String(repositoryFieldNameConstant, fullName), zap.String(manifestFieldNameConstant, manifest), zap.Error(manifestError))
			continue
		}
		if contains {
			analysis.Manifest = manifest
			break
		}
	}
	if len(analysis.Manifest) == 0 {
		analysis.Decision = DecisionIndirect
		return analysis
	}
	if dryRun {
		analysis.Decision = DecisionDryRun
		return analysis
	}

	commentError := service.retrier.Do(executionContext, ratelimit.NewOperation(commentOperationConstant, fmt.Sprintf(pullRequestSubjectTemplateConstant, fullName, pullRequest.Number)), func(operationContext context.Context) error {
		return service.client.CreateIssueComment(operationContext, owner, name, pullRequest.Number, AnalysisComment)
	})
	if commentError != nil {
		analysis.Decision = DecisionFailed
		analysis.Error = commentError
		return analysis
	}
	analysis.Decision = DecisionCommented
	service.logger.Info(commentPostedLogMessageConstant, zap.String(repositoryFieldNameConstant, fullName), zap.Int(pullRequestFieldNameConstant, pullRequest.Number), zap.String(packageFieldNameConstant, packageName))
	return analysis
}

func splitFullName(fullName string) (string, string, bool) {
	owner, name, found := strings.Cut(fullName, fullNameSeparatorConstant)
	if !found || len(owner) == 0 || len(name) == 0 || strings.Contains(name, fullNameSeparatorConstant) {
		return "", "", false
	}
	return owner, name, true
}
