package projects

import (
	"strings"

	"github.com/temirov/ghkeeper/internal/githubapi"
	"github.com/temirov/ghkeeper/internal/pagination"
)

const (
	englishStatusLabelConstant  = "Status:"
	japaneseStatusLabelConstant = "ステータス:"
)

// StatusEquals accepts items whose status matches exactly. An empty status accepts everything.
func StatusEquals(status string) pagination.Predicate[githubapi.ProjectItem] {
	if len(status) == 0 {
		return pagination.AcceptAll[githubapi.ProjectItem]()
	}
	return func(item githubapi.ProjectItem) bool {
		return item.Status == status
	}
}

// BodyContains accepts items whose body contains any of the fragments. No fragments accepts everything.
func BodyContains(fragments ...string) pagination.Predicate[githubapi.ProjectItem] {
	nonEmptyFragments := make([]string, 0, len(fragments))
	for _, fragment := range fragments {
		if len(fragment) > 0 {
			nonEmptyFragments = append(nonEmptyFragments, fragment)
		}
	}
	if len(nonEmptyFragments) == 0 {
		return pagination.AcceptAll[githubapi.ProjectItem]()
	}
	return func(item githubapi.ProjectItem) bool {
		return containsAny(item.Body, nonEmptyFragments)
	}
}

// MarkerVariants returns the marker together with its English or Japanese status label counterpart.
func MarkerVariants(marker string) []string {
	trimmedMarker := strings.TrimSpace(marker)
	if len(trimmedMarker) == 0 {
		return nil
	}
	variants := []string{trimmedMarker}
	switch {
	case strings.HasPrefix(trimmedMarker, englishStatusLabelConstant):
		variants = append(variants, japaneseStatusLabelConstant+strings.TrimPrefix(trimmedMarker, englishStatusLabelConstant))
	case strings.HasPrefix(trimmedMarker, japaneseStatusLabelConstant):
		variants = append(variants, englishStatusLabelConstant+strings.TrimPrefix(trimmedMarker, japaneseStatusLabelConstant))
	}
	return variants
}

func containsAny(text string, fragments []string) bool {
	for _, fragment := range fragments {
		if strings.Contains(text, fragment) {
			return true
		}
	}
	return false
}
