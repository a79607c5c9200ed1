package githubapi

import "github.com/shurcooL/githubv4"

// OrganizationProjectQuery resolves an organization project by number.
type OrganizationProjectQuery struct {
	Organization struct {
		ProjectV2 struct {
			ID    string
			Title string
		} `graphql:"projectV2(number: $number)"`
	} `graphql:"organization(login: $owner)"`
}

// UserProjectQuery resolves a user project by number.
type UserProjectQuery struct {
	User struct {
		ProjectV2 struct {
			ID    string
			Title string
		} `graphql:"projectV2(number: $number)"`
	} `graphql:"user(login: $owner)"`
}

// StatusFieldQuery loads a single-select field of a project by name.
type StatusFieldQuery struct {
	Node struct {
		ProjectV2 struct {
			Field struct {
				SingleSelectField struct {
					ID      string
					Name    string
					Options []struct {
						ID   string
						Name string
					}
				} `graphql:"... on ProjectV2SingleSelectField"`
			} `graphql:"field(name: $fieldName)"`
		} `graphql:"... on ProjectV2"`
	} `graphql:"node(id: $projectId)"`
}

// ProjectItemsQuery loads one page of project items with their status and content.
type ProjectItemsQuery struct {
	Node struct {
		ProjectV2 struct {
			Items struct {
				PageInfo struct {
					HasNextPage bool
					EndCursor   githubv4.String
				}
				Nodes []ProjectItemNode
			} `graphql:"items(first: $pageSize, after: $cursor)"`
		} `graphql:"... on ProjectV2"`
	} `graphql:"node(id: $projectId)"`
}

// ProjectItemNode is the raw shape of a project item.
type ProjectItemNode struct {
	ID        string
	Type      string
	CreatedAt githubv4.DateTime
	UpdatedAt githubv4.DateTime
	Status    struct {
		SingleSelectValue struct {
			Name string
		} `graphql:"... on ProjectV2ItemFieldSingleSelectValue"`
	} `graphql:"status: fieldValueByName(name: $statusFieldName)"`
	Content struct {
		Typename   string `graphql:"__typename"`
		DraftIssue struct {
			ID        string
			Title     string
			Body      string
			CreatedAt githubv4.DateTime
			UpdatedAt githubv4.DateTime
		} `graphql:"... on DraftIssue"`
		Issue struct {
			ID         string
			Number     int
			Title      string
			Body       string
			State      string
			URL        string
			CreatedAt  githubv4.DateTime
			UpdatedAt  githubv4.DateTime
			Repository struct {
				NameWithOwner string
			}
			Labels struct {
				Nodes []struct {
					Name string
				}
			} `graphql:"labels(first: 20)"`
			Assignees struct {
				Nodes []struct {
					Login string
				}
			} `graphql:"assignees(first: 10)"`
		} `graphql:"... on Issue"`
		PullRequest struct {
			ID         string
			Number     int
			Title      string
			Body       string
			State      string
			URL        string
			CreatedAt  githubv4.DateTime
			UpdatedAt  githubv4.DateTime
			Repository struct {
				NameWithOwner string
			}
		} `graphql:"... on PullRequest"`
	}
}

// RepositoryIDQuery resolves the node ID of a repository.
type RepositoryIDQuery struct {
	Repository struct {
		ID string
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// AddDraftIssueMutation creates a draft item.
type AddDraftIssueMutation struct {
	AddProjectV2DraftIssue struct {
		ProjectItem struct {
			ID string
		}
	} `graphql:"addProjectV2DraftIssue(input: $input)"`
}

// AddItemByIDMutation attaches existing content to a project.
type AddItemByIDMutation struct {
	AddProjectV2ItemByID struct {
		Item struct {
			ID string
		}
	} `graphql:"addProjectV2ItemById(input: $input)"`
}

// UpdateItemFieldValueMutation sets a field value of an item.
type UpdateItemFieldValueMutation struct {
	UpdateProjectV2ItemFieldValue struct {
		ProjectV2Item struct {
			ID string
		}
	} `graphql:"updateProjectV2ItemFieldValue(input: $input)"`
}

// ConvertDraftIssueMutation turns a draft item into a repository issue.
type ConvertDraftIssueMutation struct {
	ConvertProjectV2DraftIssueItemToIssue struct {
		Item struct {
			ID      string
			Content struct {
				Issue struct {
					Number int
					URL    string
				} `graphql:"... on Issue"`
			}
		}
	} `graphql:"convertProjectV2DraftIssueItemToIssue(input: $input)"`
}

// The input types below are named after their GraphQL schema counterparts because githubv4
// derives the variable type from the Go type name.

// AddProjectV2DraftIssueInput is the input of addProjectV2DraftIssue.
type AddProjectV2DraftIssueInput struct {
	ProjectID githubv4.ID     `json:"projectId"`
	Title     githubv4.String `json:"title"`
	Body      githubv4.String `json:"body,omitempty"`
}

// AddProjectV2ItemByIdInput is the input of addProjectV2ItemById.
type AddProjectV2ItemByIdInput struct {
	ProjectID githubv4.ID `json:"projectId"`
	ContentID githubv4.ID `json:"contentId"`
}

// ProjectV2FieldValue carries the new value of a project field.
type ProjectV2FieldValue struct {
	SingleSelectOptionID *githubv4.String `json:"singleSelectOptionId,omitempty"`
}

// UpdateProjectV2ItemFieldValueInput is the input of updateProjectV2ItemFieldValue.
type UpdateProjectV2ItemFieldValueInput struct {
	ProjectID githubv4.ID         `json:"projectId"`
	ItemID    githubv4.ID         `json:"itemId"`
	FieldID   githubv4.ID         `json:"fieldId"`
	Value     ProjectV2FieldValue `json:"value"`
}

// ConvertProjectV2DraftIssueItemToIssueInput is the input of convertProjectV2DraftIssueItemToIssue.
type ConvertProjectV2DraftIssueItemToIssueInput struct {
	ItemID       githubv4.ID `json:"itemId"`
	RepositoryID githubv4.ID `json:"repositoryId"`
}
