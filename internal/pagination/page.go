package pagination

import "context"

// Page is one response of a paginated source.
type Page[T any] struct {
	Items       []T
	HasNextPage bool
	EndCursor   string
}

// PageSource fetches the page following the cursor. A nil cursor requests the first page.
type PageSource[T any] interface {
	FetchPage(ctx context.Context, cursor *string) (Page[T], error)
}

// PageSourceFunc adapts a function to PageSource.
type PageSourceFunc[T any] func(ctx context.Context, cursor *string) (Page[T], error)

// FetchPage calls the function.
func (function PageSourceFunc[T]) FetchPage(ctx context.Context, cursor *string) (Page[T], error) {
	return function(ctx, cursor)
}

// Predicate decides whether an item is kept.
type Predicate[T any] func(item T) bool

// AcceptAll keeps every item.
func AcceptAll[T any]() Predicate[T] {
	return func(T) bool { return true }
}

// AllOf keeps items accepted by every predicate. Nil predicates are ignored.
func AllOf[T any](predicates ...Predicate[T]) Predicate[T] {
	return func(item T) bool {
		for _, predicate := range predicates {
			if predicate != nil && !predicate(item) {
				return false
			}
		}
		return true
	}
}
