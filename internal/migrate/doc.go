// Package migrate copies JIRA issues into GitHub Project draft items and applies their mapped status.
package migrate
