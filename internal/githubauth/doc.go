// Package githubauth resolves GitHub tokens from the environment or token files and
// builds the OAuth2 HTTP client shared by the GraphQL and REST API clients.
package githubauth
