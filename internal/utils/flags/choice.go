// Package flags holds the usage and parsing conventions shared by ghkeeper command flags.
package flags

import (
	"fmt"
	"strings"
)

const (
	choiceSeparatorConstant        = "|"
	choicePlaceholderTemplate      = "`<%s>`"
	unsupportedChoiceErrorTemplate = "unsupported value %q (expected one of %s)"
)

// FormatChoiceUsage renders "`<org|USER>` description", capitalizing the default choice.
// Blank and duplicate choices are dropped.
func FormatChoiceUsage(defaultChoice string, choices []string, description string) string {
	placeholder := fmt.Sprintf(choicePlaceholderTemplate, strings.Join(displayChoices(defaultChoice, choices), choiceSeparatorConstant))
	trimmedDescription := strings.TrimSpace(description)
	if len(trimmedDescription) == 0 {
		return placeholder
	}
	return placeholder + " " + trimmedDescription
}

// ParseChoice matches value case-insensitively against choices and returns the canonical choice.
func ParseChoice(value string, choices []string) (string, error) {
	normalizedValue := strings.ToLower(strings.TrimSpace(value))
	for _, choice := range choices {
		if strings.ToLower(strings.TrimSpace(choice)) == normalizedValue {
			return strings.TrimSpace(choice), nil
		}
	}
	return "", fmt.Errorf(unsupportedChoiceErrorTemplate, value, strings.Join(displayChoices("", choices), ", "))
}

func displayChoices(defaultChoice string, choices []string) []string {
	normalizedDefault := strings.ToLower(strings.TrimSpace(defaultChoice))
	seen := make(map[string]struct{}, len(choices))
	displayed := make([]string, 0, len(choices))
	for _, choice := range choices {
		trimmedChoice := strings.TrimSpace(choice)
		normalizedChoice := strings.ToLower(trimmedChoice)
		if _, duplicate := seen[normalizedChoice]; duplicate || len(trimmedChoice) == 0 {
			continue
		}
		seen[normalizedChoice] = struct{}{}
		if normalizedChoice == normalizedDefault {
			trimmedChoice = strings.ToUpper(trimmedChoice)
		}
		displayed = append(displayed, trimmedChoice)
	}
	return displayed
}
