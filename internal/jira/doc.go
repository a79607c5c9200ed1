// Package jira reads JIRA issues for migration. Credentials come from the
// environment and searches are paged with startAt/maxResults.
package jira
