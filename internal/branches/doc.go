// Package branches finds stale branches that share a name prefix across every accessible repository and
// deletes the ones whose last commit is older than a cutoff.
//
// Scanning writes a JSON inventory; cleanup reads it back and simulates deletions unless asked to execute.
package branches
