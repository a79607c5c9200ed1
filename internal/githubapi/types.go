package githubapi

import (
	"fmt"
	"strings"
	"time"
)

const (
	ownerTypeUserConstant              OwnerType = "user"
	ownerTypeOrganizationConstant      OwnerType = "org"
	ownerTypeEmptyErrorMessageConstant           = "owner type must be provided"
	ownerTypeInvalidTemplateConstant             = "owner type %q is not supported"
	ownerTypeOrganizationAliasConstant           = "organization"
)

// OwnerType distinguishes organization-owned from user-owned projects.
type OwnerType string

// UserOwnerType identifies user-owned projects.
const UserOwnerType OwnerType = ownerTypeUserConstant

// OrganizationOwnerType identifies organization-owned projects.
const OrganizationOwnerType OwnerType = ownerTypeOrganizationConstant

// ParseOwnerType normalizes textual owner type values.
func ParseOwnerType(ownerTypeValue string) (OwnerType, error) {
	trimmedValue := strings.TrimSpace(ownerTypeValue)
	if len(trimmedValue) == 0 {
		return "", fmt.Errorf(ownerTypeEmptyErrorMessageConstant)
	}

	switch lowerCasedValue := strings.ToLower(trimmedValue); lowerCasedValue {
	case string(UserOwnerType):
		return UserOwnerType, nil
	case string(OrganizationOwnerType), ownerTypeOrganizationAliasConstant:
		return OrganizationOwnerType, nil
	default:
		return "", fmt.Errorf(ownerTypeInvalidTemplateConstant, ownerTypeValue)
	}
}

// Content type names reported for project items.
const (
	ContentTypeDraftIssue  = "DraftIssue"
	ContentTypeIssue       = "Issue"
	ContentTypePullRequest = "PullRequest"
)

// ProjectReference identifies a project by owner and number.
type ProjectReference struct {
	OwnerType OwnerType
	Owner     string
	Number    int
}

// Project is a resolved Projects (v2) board.
type Project struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ProjectItem is a flattened project item together with its content.
type ProjectItem struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Status      string    `json:"status,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	ContentID   string    `json:"content_id,omitempty"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Number      int       `json:"number,omitempty"`
	URL         string    `json:"url,omitempty"`
	Repository  string    `json:"repository,omitempty"`
	State       string    `json:"state,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Labels      []string  `json:"labels,omitempty"`
	Assignees   []string  `json:"assignees,omitempty"`
}

// HasContent reports whether the item still exposes its draft, issue, or pull request.
func (item ProjectItem) HasContent() bool {
	return len(item.ContentType) > 0
}

// IsDraft reports whether the item is a draft issue.
func (item ProjectItem) IsDraft() bool {
	return item.ContentType == ContentTypeDraftIssue
}

// StatusOption is one choice of a single-select field.
type StatusOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// StatusField is a single-select project field and its options.
type StatusField struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Options []StatusOption `json:"options"`
}

// OptionID returns the option matching the name exactly, or case-insensitively when no exact match exists.
func (field StatusField) OptionID(optionName string) (string, error) {
	trimmedName := strings.TrimSpace(optionName)
	for _, option := range field.Options {
		if option.Name == trimmedName {
			return option.ID, nil
		}
	}
	for _, option := range field.Options {
		if strings.EqualFold(option.Name, trimmedName) {
			return option.ID, nil
		}
	}

	available := make([]string, 0, len(field.Options))
	for _, option := range field.Options {
		available = append(available, option.Name)
	}
	return "", UnknownStatusOptionError{Requested: optionName, Available: available}
}

// ConvertedIssue describes the issue created from a draft item.
type ConvertedIssue struct {
	ItemID string
	Number int
	URL    string
}
