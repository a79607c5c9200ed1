package githubrest

import "time"

// Repository is a repository visible to the authenticated user.
type Repository struct {
	Name     string `json:"name" yaml:"name"`
	FullName string `json:"full_name" yaml:"full_name"`
	Owner    string `json:"-" yaml:"-"`
	Archived bool   `json:"-" yaml:"-"`
}

// Branch is a repository branch and the commit it points to.
type Branch struct {
	Name      string
	CommitSHA string
}

// Commit carries the author timestamp of a commit.
type Commit struct {
	SHA        string
	AuthoredAt time.Time
}

// Issue is a repository issue as returned by the issues endpoint.
type Issue struct {
	NodeID        string
	Number        int
	Title         string
	Body          string
	State         string
	URL           string
	IsPullRequest bool
}

// PullRequest is an open pull request.
type PullRequest struct {
	Number int
	Title  string
	Author string
	URL    string
}

// DependabotAlert is a Dependabot security alert.
type DependabotAlert struct {
	Number   int
	State    string
	Package  string
	Severity string
}
