package dependabot

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/ghkeeper/internal/ratelimit"
	"github.com/temirov/ghkeeper/internal/repos"
	"github.com/temirov/ghkeeper/internal/session"
	"github.com/temirov/ghkeeper/internal/utils/flags"
)

const (
	commandUseConstant              = "dependabot"
	commandShortDescriptionConstant = "Review open Dependabot pull requests"
	scanUseConstant                 = "scan"
	scanShortDescriptionConstant    = "Comment on Dependabot pull requests that bump direct dependencies"
	repositoryFlagNameConstant      = "repo"
	repositoryFlagUsageConstant     = "Only scan this repository (owner/name)"
	dryRunFlagNameConstant          = "dry-run"
	dryRunFlagUsageConstant         = "Report decisions without posting comments"
	runtimeMissingMessageConstant   = "session runtime not configured"
	checkingTemplateConstant        = "Checking %d repositories for Dependabot alerts and pull requests\n"
	repositoryLineTemplateConstant  = "\n%s: %d open pull requests, %d alerts\n"
	repositoryErrorTemplateConstant = "\n%s: skipped: %v\n"
	commentedTemplateConstant       = "  #%d %s is a direct dependency (%s): analysis requested\n"
	dryRunTemplateConstant          = "  #%d %s is a direct dependency (%s): dry run, no comment posted\n"
	indirectTemplateConstant        = "  #%d %s is an indirect dependency: skipped\n"
	unparsableTemplateConstant      = "  #%d %q does not name a bumped package: skipped\n"
	failedTemplateConstant          = "  #%d %s: comment failed: %v\n"
	completedTemplateConstant       = "\nDependabot scan completed: %d comments posted\n"
)

var errRuntimeMissing = errors.New(runtimeMissingMessageConstant)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ServiceProvider constructs the Dependabot service.
type ServiceProvider func(executionContext context.Context) (*Service, error)

// CommandBuilder assembles the dependabot command group.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider func() CommandConfiguration
	RuntimeProvider       func() *session.Runtime
	ServiceProvider       ServiceProvider
}

// Build constructs the dependabot command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           commandUseConstant,
		Short:         commandShortDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	var dryRun bool
	scanCommand := &cobra.Command{
		Use:           scanUseConstant,
		Short:         scanShortDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			return builder.runScan(command, dryRun)
		},
	}
	scanCommand.Flags().String(repositoryFlagNameConstant, "", repositoryFlagUsageConstant)
	flags.AddToggleFlag(scanCommand.Flags(), &dryRun, dryRunFlagNameConstant, "", false, dryRunFlagUsageConstant)

	command.AddCommand(scanCommand)
	return command, nil
}

func (builder *CommandBuilder) runScan(command *cobra.Command, dryRun bool) error {
	configuration := builder.resolveConfiguration()
	options := Options{
		Repository:      configuration.Repository,
		DryRun:          configuration.DryRun,
		RepositoryLimit: configuration.RepositoryLimit,
		Manifests:       configuration.Manifests,
	}
	if command.Flags().Changed(repositoryFlagNameConstant) {
		options.Repository, _ = command.Flags().GetString(repositoryFlagNameConstant)
	}
	if command.Flags().Changed(dryRunFlagNameConstant) {
		options.DryRun = dryRun
	}

	service, serviceError := builder.resolveService(command.Context())
	if serviceError != nil {
		return serviceError
	}
	targets, targetsError := service.Targets(command.Context(), options)
	if targetsError != nil {
		return targetsError
	}

	output := command.OutOrStdout()
	fmt.Fprintf(output, checkingTemplateConstant, len(targets))
	report, scanError := service.Scan(command.Context(), targets, options)
	writeReport(output, report)
	return scanError
}

func writeReport(output io.Writer, report Report) {
	for _, repositoryReport := range report.Repositories {
		if repositoryReport.Error != nil {
			fmt.Fprintf(output, repositoryErrorTemplateConstant, repositoryReport.FullName, repositoryReport.Error)
			continue
		}
		fmt.Fprintf(output, repositoryLineTemplateConstant, repositoryReport.FullName, repositoryReport.PullRequests, repositoryReport.Alerts)
		for _, analysis := range repositoryReport.Analyses {
			switch analysis.Decision {
			case DecisionCommented:
				fmt.Fprintf(output, commentedTemplateConstant, analysis.Number, analysis.Package, analysis.Manifest)
			case DecisionDryRun:
				fmt.Fprintf(output, dryRunTemplateConstant, analysis.Number, analysis.Package, analysis.Manifest)
			case DecisionIndirect:
				fmt.Fprintf(output, indirectTemplateConstant, analysis.Number, analysis.Package)
			case DecisionUnparsable:
				fmt.Fprintf(output, unparsableTemplateConstant, analysis.Number, analysis.Title)
			case DecisionFailed:
				fmt.Fprintf(output, failedTemplateConstant, analysis.Number, analysis.Package, analysis.Error)
			}
		}
	}
	fmt.Fprintf(output, completedTemplateConstant, report.Comments)
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}
	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (builder *CommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider().Sanitize()
}

func (builder *CommandBuilder) resolveService(executionContext context.Context) (*Service, error) {
	if builder.ServiceProvider != nil {
		return builder.ServiceProvider(executionContext)
	}
	if builder.RuntimeProvider == nil || builder.RuntimeProvider() == nil {
		return nil, errRuntimeMissing
	}
	runtime := builder.RuntimeProvider()
	logger := builder.resolveLogger()
	restClient, restError := runtime.RESTClient(executionContext)
	if restError != nil {
		return nil, restError
	}
	retrier, retrierError := runtime.Retrier(ratelimit.ProfileNameInteractive)
	if retrierError != nil {
		return nil, retrierError
	}
	repositoryService, repositoryError := repos.NewRuntimeService(executionContext, builder.RuntimeProvider, logger)
	if repositoryError != nil {
		return nil, repositoryError
	}
	return NewService(ServiceDependencies{
		Logger:       logger,
		Client:       restClient,
		Repositories: repositoryService,
		Retrier:      retrier,
	})
}
