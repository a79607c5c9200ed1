// Package ratelimit classifies upstream errors and retries rate-limited GitHub and
// JIRA operations with capped exponential backoff. Operations that exhaust the
// retry ceiling are abandoned so batch loops can move on to the next unit of work.
package ratelimit
