// Package session builds the shared collaborators of one command invocation: the authenticated
// GitHub clients, retriers per rate-limit profile, and the snapshot store.
package session
