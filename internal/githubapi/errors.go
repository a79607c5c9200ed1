package githubapi

import (
	"errors"
	"fmt"
	"strings"
)

const (
	operationFailedTemplateConstant     = "github %s failed"
	causeSeparatorConstant              = ": "
	invalidInputErrorTemplateConstant   = "invalid %s: %s"
	unknownStatusOptionTemplateConstant = "status %q not found; available options: %s"
	optionListSeparatorConstant         = ", "
	clientNotConfiguredMessageConstant  = "GitHub GraphQL client not configured"
	projectNotFoundMessageConstant      = "project not found"
	statusFieldNotFoundMessageConstant  = "single-select status field not found"
	repositoryNotFoundMessageConstant   = "repository not found"
)

var (
	// ErrClientNotConfigured indicates the client was constructed without a GraphQL transport.
	ErrClientNotConfigured = errors.New(clientNotConfiguredMessageConstant)
	// ErrProjectNotFound indicates the owner has no project with the requested number.
	ErrProjectNotFound = errors.New(projectNotFoundMessageConstant)
	// ErrStatusFieldNotFound indicates the project lacks a single-select field with the requested name.
	ErrStatusFieldNotFound = errors.New(statusFieldNotFoundMessageConstant)
	// ErrRepositoryNotFound indicates the repository lookup returned no node.
	ErrRepositoryNotFound = errors.New(repositoryNotFoundMessageConstant)
)

// InvalidInputError rejects an argument before any request is sent.
type InvalidInputError struct {
	FieldName string
	Message   string
}

func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// OperationError wraps failures of GraphQL operations.
type OperationError struct {
	Operation OperationName
	Cause     error
}

func (operationError OperationError) Error() string {
	message := fmt.Sprintf(operationFailedTemplateConstant, operationError.Operation)
	if operationError.Cause != nil {
		message += causeSeparatorConstant + operationError.Cause.Error()
	}
	return message
}

func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// UnknownStatusOptionError reports a status value the project field does not offer.
type UnknownStatusOptionError struct {
	Requested string
	Available []string
}

// Error lists the options that do exist.
func (optionError UnknownStatusOptionError) Error() string {
	return fmt.Sprintf(unknownStatusOptionTemplateConstant, optionError.Requested, strings.Join(optionError.Available, optionListSeparatorConstant))
}
