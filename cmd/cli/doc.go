// Package cli constructs the ghkeeper command-line interface. It loads the
// layered configuration (embedded defaults, optional file, GHKEEPER_*
// environment and an optional dotenv file), builds the zap logger and the
// shared GitHub runtime, and registers the repos, branches, project, migrate
// and dependabot command trees.
package cli
