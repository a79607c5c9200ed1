package repos

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/ghkeeper/internal/githubrest"
	"github.com/temirov/ghkeeper/internal/metrics"
	"github.com/temirov/ghkeeper/internal/pagination"
	"github.com/temirov/ghkeeper/internal/ratelimit"
)

const (
	repositoriesSourceNameConstant       = "repositories"
	repositoriesListedLogMessageConstant = "Listed repositories"
	repositoryCountFieldNameConstant     = "repositories"
	listErrorTemplateConstant            = "unable to list repositories: %w"
	sourceMissingMessageConstant         = "repository source not configured"
	retrierMissingMessageConstant        = "retrier not configured"
)

var (
	// ErrSourceNotConfigured indicates the service was built without a repository page source.
	ErrSourceNotConfigured = errors.New(sourceMissingMessageConstant)
	// ErrRetrierNotConfigured indicates the service was built without a retrier.
	ErrRetrierNotConfigured = errors.New(retrierMissingMessageConstant)
)

// ServiceDependencies enumerates collaborators required by the service.
type ServiceDependencies struct {
	Logger   *zap.Logger
	Recorder *metrics.Recorder
	Source   pagination.PageSource[githubrest.Repository]
	Retrier  *ratelimit.Retrier
}

// Service lists repositories through the shared pagination fetcher.
type Service struct {
	logger  *zap.Logger
	fetcher *pagination.Fetcher[githubrest.Repository]
}

// NewService validates dependencies and constructs a Service.
func NewService(dependencies ServiceDependencies) (*Service, error) {
	if dependencies.Source == nil {
		return nil, ErrSourceNotConfigured
	}
	if dependencies.Retrier == nil {
		return nil, ErrRetrierNotConfigured
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	fetcher, fetcherError := pagination.NewFetcher(pagination.FetcherDependencies[githubrest.Repository]{
		Logger:     logger,
		Recorder:   dependencies.Recorder,
		SourceName: repositoriesSourceNameConstant,
		Source:     dependencies.Source,
		Retrier:    dependencies.Retrier,
	})
	if fetcherError != nil {
		return nil, fetcherError
	}
	return &Service{logger: logger, fetcher: fetcher}, nil
}

// List returns every repository the token can access.
func (service *Service) List(executionContext context.Context) ([]githubrest.Repository, error) {
	repositories, fetchError := service.fetcher.FetchAll(executionContext, pagination.AcceptAll[githubrest.Repository](), pagination.FetchOptions{ForceRefresh: true})
	if fetchError != nil {
		return nil, fmt.Errorf(listErrorTemplateConstant, fetchError)
	}
	service.logger.Info(repositoriesListedLogMessageConstant, zap.Int(repositoryCountFieldNameConstant, len(repositories)))
	return repositories, nil
}

// FirstPage returns only the first page of repositories.
func (service *Service) FirstPage(executionContext context.Context) ([]githubrest.Repository, error) {
	page, fetchError := service.fetcher.FetchPage(executionContext, nil)
	if fetchError != nil {
		return nil, fmt.Errorf(listErrorTemplateConstant, fetchError)
	}
	return page.Items, nil
}
