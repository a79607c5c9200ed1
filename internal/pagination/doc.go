// Package pagination walks cursor-paginated GitHub sources page by page, filters
// the items, and caches the accumulated result as a snapshot. Rate-limited pages
// are retried for the same cursor through a ratelimit.Retrier.
package pagination
