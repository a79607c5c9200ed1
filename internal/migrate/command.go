package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/ghkeeper/internal/githubapi"
	"github.com/temirov/ghkeeper/internal/githubauth"
	"github.com/temirov/ghkeeper/internal/jira"
	"github.com/temirov/ghkeeper/internal/pagination"
	"github.com/temirov/ghkeeper/internal/ratelimit"
	"github.com/temirov/ghkeeper/internal/session"
	"github.com/temirov/ghkeeper/internal/utils/flags"
)

const (
	commandUseConstant                  = "migrate"
	commandShortDescriptionConstant     = "Migrate work items into GitHub Projects"
	jiraCommandUseConstant              = "jira PROJECT"
	jiraCommandShortDescriptionConstant = "Copy JIRA issues into a GitHub Project as draft items"
	jiraCommandLongDescriptionConstant  = "jira fetches every issue of the JIRA project, creates a draft item per issue that is not yet migrated, and sets the mapped Status. Rate limits back off with the migration retry profile."
	orderByFlagNameConstant             = "order-by"
	orderByFlagUsageConstant            = "JQL ORDER BY clause"
	ownerFlagNameConstant               = "owner"
	ownerFlagUsageConstant              = "Project owner login (falls back to GITHUB_OWNER)"
	ownerTypeFlagNameConstant           = "owner-type"
	ownerTypeFlagUsageConstant          = "Project owner type"
	numberFlagNameConstant              = "number"
	numberFlagUsageConstant             = "Project number (falls back to GITHUB_PROJECT_NUMBER)"
	statusFieldFlagNameConstant         = "status-field"
	statusFieldFlagUsageConstant        = "Name of the single-select status field"
	ownerMissingMessageConstant         = "project owner must be provided via --owner, configuration, or GITHUB_OWNER"
	numberMissingMessageConstant        = "project number must be provided via --number, configuration, or GITHUB_PROJECT_NUMBER"
	runtimeMissingMessageConstant       = "session runtime not configured"
	migrationErrorTemplateConstant      = "JIRA migration failed: %w"
	summaryTemplateConstant             = "Migrated %s: %d issues, %d created, %d skipped, %d failed, %d without status\n"
	failureLineTemplateConstant         = "- %s: %v\n"
	statusFailureLineTemplateConstant   = "- %s (status): %v\n"
	partialFailureTemplateConstant      = "%d of %d issues failed to migrate"
)

var (
	errOwnerMissing   = errors.New(ownerMissingMessageConstant)
	errNumberMissing  = errors.New(numberMissingMessageConstant)
	errRuntimeMissing = errors.New(runtimeMissingMessageConstant)
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ServiceProvider constructs a migrator for the resolved target.
type ServiceProvider func(executionContext context.Context, target jira.MigrationTarget) (Migrator, error)

// CommandBuilder assembles the migrate command group.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider func() CommandConfiguration
	RuntimeProvider       func() *session.Runtime
	EnvironmentProvider   func() map[string]string
	ServiceProvider       ServiceProvider
}

// Build constructs the migrate command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           commandUseConstant,
		Short:         commandShortDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	defaults := DefaultCommandConfiguration()
	jiraCommand := &cobra.Command{
		Use:           jiraCommandUseConstant,
		Short:         jiraCommandShortDescriptionConstant,
		Long:          jiraCommandLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ExactArgs(1),
		RunE:          builder.runJIRA,
	}
	jiraCommand.Flags().String(orderByFlagNameConstant, defaults.OrderBy, orderByFlagUsageConstant)
	jiraCommand.Flags().String(ownerFlagNameConstant, "", ownerFlagUsageConstant)
	jiraCommand.Flags().String(
		ownerTypeFlagNameConstant,
		defaults.OwnerType,
		flags.FormatChoiceUsage(defaults.OwnerType, []string{string(githubapi.OrganizationOwnerType), string(githubapi.UserOwnerType)}, ownerTypeFlagUsageConstant),
	)
	jiraCommand.Flags().Int(numberFlagNameConstant, 0, numberFlagUsageConstant)
	jiraCommand.Flags().String(statusFieldFlagNameConstant, defaults.StatusField, statusFieldFlagUsageConstant)

	command.AddCommand(jiraCommand)
	return command, nil
}

func (builder *CommandBuilder) runJIRA(command *cobra.Command, arguments []string) error {
	configuration := builder.resolveConfiguration()
	target, targetError := jira.LoadMigrationTarget(builder.resolveEnvironment())
	if targetError != nil {
		return targetError
	}

	options, optionsError := builder.parseOptions(command, arguments[0], configuration, target)
	if optionsError != nil {
		return optionsError
	}

	migrator, migratorError := builder.resolveService(command.Context(), target)
	if migratorError != nil {
		return migratorError
	}

	summary, migrationError := migrator.Migrate(command.Context(), options)
	writeSummary(command.OutOrStdout(), options.JIRAProject, summary)
	if migrationError != nil {
		return fmt.Errorf(migrationErrorTemplateConstant, migrationError)
	}
	if summary.Failed > 0 {
		return fmt.Errorf(migrationErrorTemplateConstant, fmt.Errorf(partialFailureTemplateConstant, summary.Failed, summary.Total))
	}
	return nil
}

func (builder *CommandBuilder) parseOptions(command *cobra.Command, project string, configuration CommandConfiguration, target jira.MigrationTarget) (Options, error) {
	orderBy := configuration.OrderBy
	if command.Flags().Changed(orderByFlagNameConstant) {
		orderBy, _ = command.Flags().GetString(orderByFlagNameConstant)
	}

	ownerTypeValue := configuration.OwnerType
	if command.Flags().Changed(ownerTypeFlagNameConstant) {
		ownerTypeValue, _ = command.Flags().GetString(ownerTypeFlagNameConstant)
	}
	ownerType, ownerTypeError := githubapi.ParseOwnerType(ownerTypeValue)
	if ownerTypeError != nil {
		return Options{}, ownerTypeError
	}

	owner := firstNonEmpty(configuration.Owner, target.GitHubOwner)
	if command.Flags().Changed(ownerFlagNameConstant) {
		owner, _ = command.Flags().GetString(ownerFlagNameConstant)
	}
	if len(strings.TrimSpace(owner)) == 0 {
		return Options{}, errOwnerMissing
	}

	number := configuration.ProjectNumber
	if number <= 0 {
		number = target.GitHubProjectNumber
	}
	if command.Flags().Changed(numberFlagNameConstant) {
		number, _ = command.Flags().GetInt(numberFlagNameConstant)
	}
	if number <= 0 {
		return Options{}, errNumberMissing
	}

	statusField := configuration.StatusField
	if command.Flags().Changed(statusFieldFlagNameConstant) {
		statusField, _ = command.Flags().GetString(statusFieldFlagNameConstant)
	}

	return Options{
		JIRAProject:     strings.TrimSpace(project),
		OrderBy:         orderBy,
		Target:          githubapi.ProjectReference{OwnerType: ownerType, Owner: strings.TrimSpace(owner), Number: number},
		StatusFieldName: statusField,
	}, nil
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	var logger *zap.Logger
	if builder.LoggerProvider != nil {
		logger = builder.LoggerProvider()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider().Sanitize()
}

func (builder *CommandBuilder) resolveEnvironment() map[string]string {
	if builder.EnvironmentProvider == nil {
		return nil
	}
	return builder.EnvironmentProvider()
}

func (builder *CommandBuilder) resolveService(executionContext context.Context, target jira.MigrationTarget) (Migrator, error) {
	if builder.ServiceProvider != nil {
		return builder.ServiceProvider(executionContext, target)
	}
	return builder.buildService(executionContext, target)
}

// buildService wires the go-jira client and the GraphQL client. A GITHUB_MIGRATION_TOKEN takes precedence
// over the configured token source.
func (builder *CommandBuilder) buildService(executionContext context.Context, target jira.MigrationTarget) (Migrator, error) {
	if builder.RuntimeProvider == nil || builder.RuntimeProvider() == nil {
		return nil, errRuntimeMissing
	}
	runtime := builder.RuntimeProvider()

	credentials, credentialsError := jira.LoadCredentials(builder.resolveEnvironment())
	if credentialsError != nil {
		return nil, credentialsError
	}
	jiraClient, jiraClientError := jira.NewClient(credentials)
	if jiraClientError != nil {
		return nil, jiraClientError
	}

	projectClient, projectClientError := builder.projectClient(executionContext, runtime, target)
	if projectClientError != nil {
		return nil, projectClientError
	}

	retrier, retrierError := runtime.Retrier(ratelimit.ProfileNameMigration)
	if retrierError != nil {
		return nil, retrierError
	}

	return NewService(ServiceDependencies{
		Logger:   builder.resolveLogger(),
		Recorder: runtime.Recorder(),
		Retrier:  retrier,
		Issues:   jiraClient,
		Gateway:  projectClient,
		ItemsSource: func(projectID string) pagination.PageSource[githubapi.ProjectItem] {
			return projectClient.ItemsSource(projectID, 0, "")
		},
	})
}

func (builder *CommandBuilder) projectClient(executionContext context.Context, runtime *session.Runtime, target jira.MigrationTarget) (*githubapi.Client, error) {
	if len(strings.TrimSpace(target.GitHubMigrationToken)) == 0 {
		return runtime.GraphQLClient(executionContext)
	}
	httpClient, httpClientError := githubauth.NewHTTPClient(context.Background(), target.GitHubMigrationToken)
	if httpClientError != nil {
		return nil, httpClientError
	}
	return githubapi.NewClient(githubapi.NewGraphQLClient(httpClient, runtime.Configuration().GitHub.GraphQLURL))
}

func writeSummary(output io.Writer, project string, summary Summary) {
	fmt.Fprintf(output, summaryTemplateConstant, project, summary.Total, summary.Created, summary.Skipped, summary.Failed, summary.StatusFailures)
	for _, result := range summary.Results {
		if result.Error != nil {
			fmt.Fprintf(output, failureLineTemplateConstant, result.Key, result.Error)
		}
		if result.StatusError != nil {
			fmt.Fprintf(output, statusFailureLineTemplateConstant, result.Key, result.StatusError)
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if len(strings.TrimSpace(value)) > 0 {
			return value
		}
	}
	return ""
}
