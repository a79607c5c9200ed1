package jira

import (
	"fmt"
	"sort"
	"strings"
	"time"

	gojira "github.com/andygrunwald/go-jira"
)

const customFieldPrefixConstant = "customfield_"

// Issue is the subset of a JIRA issue carried into GitHub.
type Issue struct {
	Key            string
	Summary        string
	Description    string
	Status         string
	Assignee       string
	Priority       string
	Resolution     string
	Created        time.Time
	Updated        time.Time
	ResolutionDate time.Time
	CustomFields   []CustomField
	Attachments    []string
	Comments       []Comment
}

// CustomField is a populated customfield_* value rendered as text.
type CustomField struct {
	Name  string
	Value string
}

// Comment is a JIRA issue comment.
type Comment struct {
	Author  string
	Created string
	Body    string
}

func convertIssue(source gojira.Issue) Issue {
	issue := Issue{Key: source.Key}
	fields := source.Fields
	if fields == nil {
		return issue
	}

	issue.Summary = fields.Summary
	issue.Description = fields.Description
	issue.Created = time.Time(fields.Created)
	issue.Updated = time.Time(fields.Updated)
	issue.ResolutionDate = time.Time(fields.Resolutiondate)
	if fields.Status != nil {
		issue.Status = fields.Status.Name
	}
	if fields.Assignee != nil {
		issue.Assignee = fields.Assignee.DisplayName
	}
	if fields.Priority != nil {
		issue.Priority = fields.Priority.Name
	}
	if fields.Resolution != nil {
		issue.Resolution = fields.Resolution.Name
	}
	for _, attachment := range fields.Attachments {
		if attachment != nil {
			issue.Attachments = append(issue.Attachments, attachment.Filename)
		}
	}
	if fields.Comments != nil {
		for _, comment := range fields.Comments.Comments {
			if comment == nil {
				continue
			}
			issue.Comments = append(issue.Comments, Comment{
				Author:  comment.Author.DisplayName,
				Created: comment.Created,
				Body:    comment.Body,
			})
		}
	}
	issue.CustomFields = convertCustomFields(fields.Unknowns)
	return issue
}

func convertCustomFields(unknownFields map[string]interface{}) []CustomField {
	fieldNames := make([]string, 0, len(unknownFields))
	for fieldName, fieldValue := range unknownFields {
		if !strings.HasPrefix(fieldName, customFieldPrefixConstant) || isEmptyValue(fieldValue) {
			continue
		}
		fieldNames = append(fieldNames, fieldName)
	}
	sort.Strings(fieldNames)

	customFields := make([]CustomField, 0, len(fieldNames))
	for _, fieldName := range fieldNames {
		customFields = append(customFields, CustomField{Name: fieldName, Value: renderValue(unknownFields[fieldName])})
	}
	return customFields
}

func isEmptyValue(value interface{}) bool {
	switch typedValue := value.(type) {
	case nil:
		return true
	case string:
		return len(typedValue) == 0
	case bool:
		return !typedValue
	case float64:
		return typedValue == 0
	case []interface{}:
		return len(typedValue) == 0
	case map[string]interface{}:
		return len(typedValue) == 0
	default:
		return false
	}
}

// renderValue prefers the human-readable member of JIRA option objects.
func renderValue(value interface{}) string {
	switch typedValue := value.(type) {
	case map[string]interface{}:
		for _, key := range []string{"value", "name", "displayName"} {
			if member, exists := typedValue[key]; exists {
				return fmt.Sprint(member)
			}
		}
		return fmt.Sprint(typedValue)
	case []interface{}:
		renderedValues := make([]string, 0, len(typedValue))
		for _, element := range typedValue {
			renderedValues = append(renderedValues, renderValue(element))
		}
		return strings.Join(renderedValues, ", ")
	default:
		return fmt.Sprint(typedValue)
	}
}
