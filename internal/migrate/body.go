package migrate

import (
	"fmt"
	"strings"
	"time"

	"github.com/temirov/ghkeeper/internal/jira"
)

const (
	jiraTimestampLayoutConstant      = "2006-01-02T15:04:05.000-0700"
	detailsHeadingConstant           = "## 詳細"
	metadataHeadingConstant          = "## メタデータ"
	customFieldsHeadingConstant      = "## カスタムフィールド"
	attachmentsHeadingConstant       = "## 添付ファイル"
	commentsHeadingConstant          = "## コメント"
	noDescriptionConstant            = "詳細なし"
	unassignedConstant               = "未割り当て"
	noPriorityConstant               = "未設定"
	unresolvedConstant               = "未解決"
	noCustomFieldsConstant           = "カスタムフィールドなし"
	statusLineTemplateConstant       = "- ステータス: %s"
	assigneeLineTemplateConstant     = "- 担当者: %s"
	priorityLineTemplateConstant     = "- 優先度: %s"
	createdLineTemplateConstant      = "- 作成日: %s"
	updatedLineTemplateConstant      = "- 更新日: %s"
	resolvedLineTemplateConstant     = "- 解決日: %s"
	resolutionLineTemplateConstant   = "- 解決方法: %s"
	customFieldLineTemplateConstant  = "- %s: %s"
	attachmentLineTemplateConstant   = "- %s"
	commentHeadingTemplateConstant   = "### %s - %s"
	migrationTrailerTemplateConstant = "---\n移行元: %s"
	issueMarkerTemplateConstant      = "JIRA Issue %s"
)

// IssueMarker is the text that identifies a migrated issue inside an item body.
func IssueMarker(issueKey string) string {
	return fmt.Sprintf(issueMarkerTemplateConstant, issueKey)
}

// ContainsIssueMarker reports whether body references the issue key. The key must not continue
// with a letter or digit, so PROJ-1 does not match a body migrated from PROJ-10.
func ContainsIssueMarker(body string, issueKey string) bool {
	marker := IssueMarker(issueKey)
	remaining := body
	for {
		markerIndex := strings.Index(remaining, marker)
		if markerIndex < 0 {
			return false
		}
		followingIndex := markerIndex + len(marker)
		if followingIndex >= len(remaining) || !isKeyCharacter(remaining[followingIndex]) {
			return true
		}
		remaining = remaining[followingIndex:]
	}
}

func isKeyCharacter(character byte) bool {
	return character == '-' || character == '_' ||
		(character >= '0' && character <= '9') ||
		(character >= 'a' && character <= 'z') ||
		(character >= 'A' && character <= 'Z')
}

// RenderIssueBody formats the Markdown body of the draft item created for a JIRA issue.
func RenderIssueBody(issue jira.Issue) string {
	var builder strings.Builder

	builder.WriteString(detailsHeadingConstant + "\n")
	builder.WriteString(valueOrDefault(issue.Description, noDescriptionConstant) + "\n\n")

	builder.WriteString(metadataHeadingConstant + "\n")
	metadataLines := []string{
		fmt.Sprintf(statusLineTemplateConstant, issue.Status),
		fmt.Sprintf(assigneeLineTemplateConstant, valueOrDefault(issue.Assignee, unassignedConstant)),
		fmt.Sprintf(priorityLineTemplateConstant, valueOrDefault(issue.Priority, noPriorityConstant)),
		fmt.Sprintf(createdLineTemplateConstant, formatTimestamp(issue.Created, "")),
		fmt.Sprintf(updatedLineTemplateConstant, formatTimestamp(issue.Updated, "")),
		fmt.Sprintf(resolvedLineTemplateConstant, formatTimestamp(issue.ResolutionDate, unresolvedConstant)),
		fmt.Sprintf(resolutionLineTemplateConstant, valueOrDefault(issue.Resolution, unresolvedConstant)),
	}
	builder.WriteString(strings.Join(metadataLines, "\n") + "\n\n")

	builder.WriteString(customFieldsHeadingConstant + "\n")
	if len(issue.CustomFields) == 0 {
		builder.WriteString(noCustomFieldsConstant)
	} else {
		customFieldLines := make([]string, 0, len(issue.CustomFields))
		for _, customField := range issue.CustomFields {
			customFieldLines = append(customFieldLines, fmt.Sprintf(customFieldLineTemplateConstant, customField.Name, customField.Value))
		}
		builder.WriteString(strings.Join(customFieldLines, "\n"))
	}

	if len(issue.Attachments) > 0 {
		builder.WriteString("\n" + attachmentsHeadingConstant + "\n")
		for _, attachment := range issue.Attachments {
			builder.WriteString(fmt.Sprintf(attachmentLineTemplateConstant, attachment) + "\n")
		}
	}

	if len(issue.Comments) > 0 {
		builder.WriteString("\n" + commentsHeadingConstant + "\n")
		for _, comment := range issue.Comments {
			builder.WriteString(fmt.Sprintf(commentHeadingTemplateConstant, comment.Author, comment.Created) + "\n")
			builder.WriteString(comment.Body + "\n")
		}
	}

	builder.WriteString("\n\n")
	builder.WriteString(fmt.Sprintf(migrationTrailerTemplateConstant, IssueMarker(issue.Key)))
	return builder.String()
}

func valueOrDefault(value string, fallback string) string {
	if len(strings.TrimSpace(value)) == 0 {
		return fallback
	}
	return value
}

func formatTimestamp(timestamp time.Time, fallback string) string {
	if timestamp.IsZero() {
		return fallback
	}
	return timestamp.Format(jiraTimestampLayoutConstant)
}
