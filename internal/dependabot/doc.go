// Package dependabot reviews open Dependabot pull requests, flags the ones that bump a direct dependency
// and requests an analysis by commenting on them.
package dependabot
