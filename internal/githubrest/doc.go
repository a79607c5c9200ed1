// Package githubrest wraps the go-github REST client for the repository, branch,
// issue, pull request, Dependabot, and contents endpoints used by ghkeeper.
// Paginated listings are exposed as pagination.PageSource values whose cursor is
// the REST page number.
package githubrest
