package pagination

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/ghkeeper/internal/metrics"
	"github.com/temirov/ghkeeper/internal/ratelimit"
	"github.com/temirov/ghkeeper/internal/snapshot"
)

const (
	sourceFieldNameConstant             = "source"
	subjectFieldNameConstant            = "subject"
	pageFieldNameConstant               = "page"
	cursorFieldNameConstant             = "cursor"
	itemCountFieldNameConstant          = "items"
	keptCountFieldNameConstant          = "kept"
	snapshotFieldNameConstant           = "snapshot"
	firstPageCursorLabelConstant        = "<first>"
	snapshotHitLogMessageConstant       = "Serving items from snapshot"
	pageFetchedLogMessageConstant       = "Fetched page"
	fetchCompletedLogMessageConstant    = "Fetch completed"
	snapshotWrittenLogMessageConstant   = "Snapshot written"
	pageOperationSuffixConstant         = "_page"
	pageSubjectTemplateConstant         = "page %d"
	scopedPageSubjectTemplateConstant   = "%s page %d"
	sourceMissingMessageConstant        = "page source not configured"
	retrierMissingMessageConstant       = "retrier not configured"
	sourceNameMissingMessageConstant    = "source name must be provided"
	cursorRepeatedMessageConstant       = "pagination cursor repeated"
	cursorRepeatedTemplateConstant      = "%w: %q returned twice by %s"
	snapshotLoadErrorTemplateConstant   = "unable to load snapshot from %s: %w"
	snapshotDecodeErrorTemplateConstant = "unable to decode snapshot from %s: %w"
	snapshotEncodeErrorTemplateConstant = "unable to encode snapshot: %w"
	snapshotSaveErrorTemplateConstant   = "unable to save snapshot: %w"
	snapshotIndentConstant              = "  "
)

var (
	// ErrCursorRepeated reports a source that keeps returning the same cursor while claiming more pages.
	ErrCursorRepeated = errors.New(cursorRepeatedMessageConstant)
	// ErrSourceNotConfigured indicates a Fetcher built without a page source.
	ErrSourceNotConfigured  = errors.New(sourceMissingMessageConstant)
	errRetrierNotConfigured = errors.New(retrierMissingMessageConstant)
	errSourceNameMissing    = errors.New(sourceNameMissingMessageConstant)
)

// FetchOptions tunes a single FetchAll call.
type FetchOptions struct {
	ForceRefresh bool
}

// FetcherDependencies describes the collaborators of a Fetcher. Store is optional; without it nothing is cached.
// SourceName is a fixed kind such as "repositories" and labels metrics; SourceSubject, such as the repository
// whose branches are listed, only reaches logs.
type FetcherDependencies[T any] struct {
	Logger        *zap.Logger
	Recorder      *metrics.Recorder
	SourceName    string
	SourceSubject string
	Source        PageSource[T]
	Retrier       *ratelimit.Retrier
	Store         snapshot.Store
}

// Fetcher accumulates every page of a source.
type Fetcher[T any] struct {
	logger        *zap.Logger
	recorder      *metrics.Recorder
	sourceName    string
	sourceSubject string
	source        PageSource[T]
	retrier       *ratelimit.Retrier
	store         snapshot.Store
}

// NewFetcher validates dependencies and constructs a Fetcher.
func NewFetcher[T any](dependencies FetcherDependencies[T]) (*Fetcher[T], error) {
	if dependencies.Source == nil {
		return nil, ErrSourceNotConfigured
	}
	if dependencies.Retrier == nil {
		return nil, errRetrierNotConfigured
	}
	sourceName := strings.TrimSpace(dependencies.SourceName)
	if len(sourceName) == 0 {
		return nil, errSourceNameMissing
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sourceSubject := strings.TrimSpace(dependencies.SourceSubject)
	if len(sourceSubject) > 0 {
		logger = logger.With(zap.String(subjectFieldNameConstant, sourceSubject))
	}

	return &Fetcher[T]{
		logger:        logger,
		recorder:      dependencies.Recorder,
		sourceName:    sourceName,
		sourceSubject: sourceSubject,
		source:        dependencies.Source,
		retrier:       dependencies.Retrier,
		store:         dependencies.Store,
	}, nil
}

// FetchAll returns the cached snapshot unless a refresh is forced; otherwise it pages through the
// source, keeps items accepted by the predicate in arrival order, and replaces the snapshot.
// Any error stops pagination and leaves the previous snapshot untouched.
func (fetcher *Fetcher[T]) FetchAll(executionContext context.Context, predicate Predicate[T], options FetchOptions) ([]T, error) {
	if predicate == nil {
		predicate = AcceptAll[T]()
	}

	if fetcher.store != nil && !options.ForceRefresh {
		cachedItems, cacheHit, cacheError := fetcher.loadSnapshot(executionContext)
		if cacheError != nil {
			return nil, cacheError
		}
		if cacheHit {
			fetcher.recorder.RecordSnapshotHit(fetcher.sourceName)
			fetcher.logger.Info(
				snapshotHitLogMessageConstant,
				zap.String(sourceFieldNameConstant, fetcher.sourceName),
				zap.String(snapshotFieldNameConstant, fetcher.store.Describe()),
				zap.Int(itemCountFieldNameConstant, len(cachedItems)),
			)
			return cachedItems, nil
		}
	}

	accumulatedItems := make([]T, 0)
	seenCursors := map[string]struct{}{}
	var cursor *string

	for pageNumber := 1; ; pageNumber++ {
		page, pageError := fetcher.fetchPage(executionContext, cursor, pageNumber)
		if pageError != nil {
			return nil, pageError
		}

		keptCount := 0
		for _, item := range page.Items {
			if predicate(item) {
				accumulatedItems = append(accumulatedItems, item)
				keptCount++
			}
		}

		fetcher.logger.Debug(
			pageFetchedLogMessageConstant,
			zap.String(sourceFieldNameConstant, fetcher.sourceName),
			zap.Int(pageFieldNameConstant, pageNumber),
			zap.String(cursorFieldNameConstant, describeCursor(cursor)),
			zap.Int(itemCountFieldNameConstant, len(page.Items)),
			zap.Int(keptCountFieldNameConstant, keptCount),
		)

		if !page.HasNextPage {
			break
		}

		if _, repeated := seenCursors[page.EndCursor]; repeated {
			return nil, fmt.Errorf(cursorRepeatedTemplateConstant, ErrCursorRepeated, page.EndCursor, fetcher.sourceName)
		}
		seenCursors[page.EndCursor] = struct{}{}
		nextCursor := page.EndCursor
		cursor = &nextCursor
	}

	if fetcher.store != nil {
		if saveError := fetcher.saveSnapshot(executionContext, accumulatedItems); saveError != nil {
			return nil, saveError
		}
	}

	fetcher.logger.Info(
		fetchCompletedLogMessageConstant,
		zap.String(sourceFieldNameConstant, fetcher.sourceName),
		zap.Int(keptCountFieldNameConstant, len(accumulatedItems)),
	)

	return accumulatedItems, nil
}

// FetchPage fetches one page, retrying rate-limit rejections for the same cursor.
func (fetcher *Fetcher[T]) FetchPage(executionContext context.Context, cursor *string) (Page[T], error) {
	return fetcher.fetchPage(executionContext, cursor, 1)
}

func (fetcher *Fetcher[T]) fetchPage(executionContext context.Context, cursor *string, pageNumber int) (Page[T], error) {
	var page Page[T]
	retryError := fetcher.retrier.Do(executionContext, fetcher.pageOperation(pageNumber), func(attemptContext context.Context) error {
		fetchedPage, fetchError := fetcher.source.FetchPage(attemptContext, cursor)
		if fetchError != nil {
			return fetchError
		}
		page = fetchedPage
		return nil
	})
	if retryError != nil {
		return Page[T]{}, retryError
	}

	fetcher.recorder.RecordPage(fetcher.sourceName, len(page.Items))
	return page, nil
}

func (fetcher *Fetcher[T]) pageOperation(pageNumber int) ratelimit.Operation {
	subject := fmt.Sprintf(pageSubjectTemplateConstant, pageNumber)
	if len(fetcher.sourceSubject) > 0 {
		subject = fmt.Sprintf(scopedPageSubjectTemplateConstant, fetcher.sourceSubject, pageNumber)
	}
	return ratelimit.NewOperation(fetcher.sourceName+pageOperationSuffixConstant, subject)
}

func (fetcher *Fetcher[T]) loadSnapshot(executionContext context.Context) ([]T, bool, error) {
	document, loadError := fetcher.store.Load(executionContext)
	if loadError != nil {
		if errors.Is(loadError, snapshot.ErrSnapshotNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf(snapshotLoadErrorTemplateConstant, fetcher.store.Describe(), loadError)
	}

	cachedItems := make([]T, 0)
	if decodeError := json.Unmarshal(document, &cachedItems); decodeError != nil {
		return nil, false, fmt.Errorf(snapshotDecodeErrorTemplateConstant, fetcher.store.Describe(), decodeError)
	}
	return cachedItems, true, nil
}

func (fetcher *Fetcher[T]) saveSnapshot(executionContext context.Context, items []T) error {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", snapshotIndentConstant)
	if encodeError := encoder.Encode(items); encodeError != nil {
		return fmt.Errorf(snapshotEncodeErrorTemplateConstant, encodeError)
	}

	if saveError := fetcher.store.Save(executionContext, buffer.Bytes()); saveError != nil {
		return fmt.Errorf(snapshotSaveErrorTemplateConstant, saveError)
	}

	fetcher.logger.Info(
		snapshotWrittenLogMessageConstant,
		zap.String(sourceFieldNameConstant, fetcher.sourceName),
		zap.String(snapshotFieldNameConstant, fetcher.store.Describe()),
		zap.Int(itemCountFieldNameConstant, len(items)),
	)
	return nil
}

func describeCursor(cursor *string) string {
	if cursor == nil {
		return firstPageCursorLabelConstant
	}
	return *cursor
}
