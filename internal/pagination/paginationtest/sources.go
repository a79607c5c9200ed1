// Package paginationtest provides scripted page sources and in-memory snapshot stores for tests.
package paginationtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/temirov/ghkeeper/internal/pagination"
	"github.com/temirov/ghkeeper/internal/snapshot"
)

const (
	cursorTemplateConstant         = "cursor-%d"
	firstPageLabelConstant         = "<first>"
	unknownCursorTemplateConstant  = "unknown cursor %q"
	memoryStoreDescriptionConstant = "memory"
)

// ScriptedSource serves predefined pages. Failures queued for a page index are returned before the page is served.
type ScriptedSource[T any] struct {
	Pages            []pagination.Page[T]
	Failures         map[int][]error
	RequestedCursors []string
	cursorIndexes    map[string]int
}

// NewScriptedSource builds a source whose page i ends with cursor "cursor-(i+1)".
func NewScriptedSource[T any](pageItems ...[]T) *ScriptedSource[T] {
	source := &ScriptedSource[T]{
		Failures:      map[int][]error{},
		cursorIndexes: map[string]int{},
	}
	for pageIndex, items := range pageItems {
		hasNextPage := pageIndex < len(pageItems)-1
		endCursor := fmt.Sprintf(cursorTemplateConstant, pageIndex+1)
		source.Pages = append(source.Pages, pagination.Page[T]{Items: items, HasNextPage: hasNextPage, EndCursor: endCursor})
		source.cursorIndexes[endCursor] = pageIndex + 1
	}
	return source
}

// FailPage queues failures returned for the page index before it is served.
func (source *ScriptedSource[T]) FailPage(pageIndex int, failures ...error) *ScriptedSource[T] {
	source.Failures[pageIndex] = append(source.Failures[pageIndex], failures...)
	return source
}

// FetchPage serves the page addressed by the cursor.
func (source *ScriptedSource[T]) FetchPage(_ context.Context, cursor *string) (pagination.Page[T], error) {
	pageIndex := 0
	cursorLabel := firstPageLabelConstant
	if cursor != nil {
		cursorLabel = *cursor
		index, known := source.cursorIndexes[*cursor]
		if !known {
			return pagination.Page[T]{}, fmt.Errorf(unknownCursorTemplateConstant, *cursor)
		}
		pageIndex = index
	}
	source.RequestedCursors = append(source.RequestedCursors, cursorLabel)

	if queuedFailures := source.Failures[pageIndex]; len(queuedFailures) > 0 {
		source.Failures[pageIndex] = queuedFailures[1:]
		return pagination.Page[T]{}, queuedFailures[0]
	}
	return source.Pages[pageIndex], nil
}

// Calls reports how many pages were requested.
func (source *ScriptedSource[T]) Calls() int {
	return len(source.RequestedCursors)
}

// MemoryStore keeps a snapshot in memory.
type MemoryStore struct {
	mutex     sync.Mutex
	document  []byte
	present   bool
	SaveCount int
	LoadCount int
}

// NewMemoryStore returns an empty store, or one preloaded with the document when provided.
func NewMemoryStore(document []byte) *MemoryStore {
	store := &MemoryStore{}
	if document != nil {
		store.document = append([]byte(nil), document...)
		store.present = true
	}
	return store
}

// Load returns the stored document.
func (store *MemoryStore) Load(context.Context) ([]byte, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.LoadCount++
	if !store.present {
		return nil, snapshot.ErrSnapshotNotFound
	}
	return append([]byte(nil), store.document...), nil
}

// Save replaces the stored document.
func (store *MemoryStore) Save(_ context.Context, document []byte) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	store.SaveCount++
	store.document = append([]byte(nil), document...)
	store.present = true
	return nil
}

// Describe names the store.
func (store *MemoryStore) Describe() string {
	return memoryStoreDescriptionConstant
}

// Document returns the stored document and whether one exists.
func (store *MemoryStore) Document() ([]byte, bool) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	return append([]byte(nil), store.document...), store.present
}
