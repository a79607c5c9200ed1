// Package githubapi talks to the GitHub GraphQL API through githubv4. It resolves
// Projects (v2), pages through project items, and issues the mutations that create
// draft items, attach issues, convert drafts, and set single-select field values.
package githubapi
