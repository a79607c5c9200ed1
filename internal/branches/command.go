package branches

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/ghkeeper/internal/ratelimit"
	"github.com/temirov/ghkeeper/internal/session"
	"github.com/temirov/ghkeeper/internal/utils/flags"
)

const (
	commandUseConstant               = "branches"
	commandShortDescriptionConstant  = "Find and delete stale branches across repositories"
	scanUseConstant                  = "scan"
	scanShortDescriptionConstant     = "Record branches with a name prefix in every accessible repository"
	cleanupUseConstant               = "cleanup"
	cleanupShortDescriptionConstant  = "Delete inventoried branches older than a cutoff"
	cleanupLongDescriptionConstant   = "cleanup reads the inventory written by scan and, for every branch whose last commit is older than --days, simulates the deletion unless --execute is given."
	prefixFlagNameConstant           = "prefix"
	prefixFlagUsageConstant          = "Branch name prefix"
	outputFlagNameConstant           = "output"
	outputFlagShorthandConstant      = "o"
	outputFlagUsageConstant          = "Inventory file to write"
	inputFlagNameConstant            = "input"
	inputFlagShorthandConstant       = "i"
	inputFlagUsageConstant           = "Inventory file to read"
	daysFlagNameConstant             = "days"
	daysFlagShorthandConstant        = "d"
	daysFlagUsageConstant            = "Delete branches whose last commit is older than this many days"
	executeFlagNameConstant          = "execute"
	executeFlagShorthandConstant     = "e"
	executeFlagUsageConstant         = "Delete branches instead of simulating"
	runtimeMissingMessageConstant    = "session runtime not configured"
	noMatchesTemplateConstant        = "No branches with prefix %q found in %d repositories\n"
	scanHeaderTemplateConstant       = "Found branches with prefix %q in %d of %d repositories:\n"
	repositoryHeaderTemplateConstant = "\n%s\n"
	scanBranchLineTemplateConstant   = "  - %s (last commit %s, %s)\n"
	scanFailureLineTemplateConstant  = "skipped %s: %v\n"
	inventorySavedTemplateConstant   = "\nSaved inventory to %s\n"
	cleanupHeaderTemplateConstant    = "Processing %d repositories\n"
	cleanupLineTemplateConstant      = "[%s] %s: %s\n"
	cleanupSummaryTemplateConstant   = "\n%d deleted, %d simulated, %d skipped, %d failed\n"
	cleanupFailureTemplateConstant   = "%d branch deletions failed"
	commitDateLayoutConstant         = time.RFC3339
)

var errRuntimeMissing = errors.New(runtimeMissingMessageConstant)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ServiceProvider constructs the branch service.
type ServiceProvider func(executionContext context.Context) (*Service, error)

// CommandBuilder assembles the branches command group.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider func() CommandConfiguration
	RuntimeProvider       func() *session.Runtime
	ServiceProvider       ServiceProvider
	Now                   func() time.Time
}

// Build constructs the branches command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	defaults := DefaultCommandConfiguration()
	command := &cobra.Command{
		Use:           commandUseConstant,
		Short:         commandShortDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	scanCommand := &cobra.Command{
		Use:           scanUseConstant,
		Short:         scanShortDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.runScan,
	}
	scanCommand.Flags().String(prefixFlagNameConstant, defaults.Prefix, prefixFlagUsageConstant)
	scanCommand.Flags().StringP(outputFlagNameConstant, outputFlagShorthandConstant, defaults.InventoryFile, outputFlagUsageConstant)

	var execute bool
	cleanupCommand := &cobra.Command{
		Use:           cleanupUseConstant,
		Short:         cleanupShortDescriptionConstant,
		Long:          cleanupLongDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			return builder.runCleanup(command, execute)
		},
	}
	cleanupCommand.Flags().StringP(inputFlagNameConstant, inputFlagShorthandConstant, defaults.InventoryFile, inputFlagUsageConstant)
	cleanupCommand.Flags().IntP(daysFlagNameConstant, daysFlagShorthandConstant, defaults.Days, daysFlagUsageConstant)
	flags.AddToggleFlag(cleanupCommand.Flags(), &execute, executeFlagNameConstant, executeFlagShorthandConstant, false, executeFlagUsageConstant)

	command.AddCommand(scanCommand, cleanupCommand)
	return command, nil
}

func (builder *CommandBuilder) runScan(command *cobra.Command, _ []string) error {
	configuration := builder.resolveConfiguration()
	prefix := configuration.Prefix
	if command.Flags().Changed(prefixFlagNameConstant) {
		prefix, _ = command.Flags().GetString(prefixFlagNameConstant)
	}
	outputPath := configuration.InventoryFile
	if command.Flags().Changed(outputFlagNameConstant) {
		outputPath, _ = command.Flags().GetString(outputFlagNameConstant)
	}

	service, serviceError := builder.resolveService(command.Context())
	if serviceError != nil {
		return serviceError
	}
	report, scanError := service.Scan(command.Context(), prefix)
	if scanError != nil {
		return scanError
	}

	output := command.OutOrStdout()
	for _, failure := range report.Failures {
		fmt.Fprintf(output, scanFailureLineTemplateConstant, failure.Repository, failure.Error)
	}
	if len(report.Repositories) == 0 {
		fmt.Fprintf(output, noMatchesTemplateConstant, prefix, report.Scanned)
		return nil
	}

	now := builder.now()
	fmt.Fprintf(output, scanHeaderTemplateConstant, prefix, len(report.Repositories), report.Scanned)
	for _, repository := range report.Repositories {
		fmt.Fprintf(output, repositoryHeaderTemplateConstant, repository.FullName)
		for _, branch := range repository.Branches {
			fmt.Fprintf(output, scanBranchLineTemplateConstant, branch.Name, branch.LastCommitDate.Format(commitDateLayoutConstant), humanize.RelTime(branch.LastCommitDate, now, relativeAgoLabelConstant, relativeAheadLabelConstant))
		}
	}

	if saveError := SaveInventory(outputPath, report.Repositories); saveError != nil {
		return saveError
	}
	fmt.Fprintf(output, inventorySavedTemplateConstant, outputPath)
	return nil
}

func (builder *CommandBuilder) runCleanup(command *cobra.Command, execute bool) error {
	configuration := builder.resolveConfiguration()
	inputPath := configuration.InventoryFile
	if command.Flags().Changed(inputFlagNameConstant) {
		inputPath, _ = command.Flags().GetString(inputFlagNameConstant)
	}
	days := configuration.Days
	if command.Flags().Changed(daysFlagNameConstant) {
		days, _ = command.Flags().GetInt(daysFlagNameConstant)
	}

	inventory, loadError := LoadInventory(inputPath)
	if loadError != nil {
		return loadError
	}

	service, serviceError := builder.resolveService(command.Context())
	if serviceError != nil {
		return serviceError
	}

	output := command.OutOrStdout()
	fmt.Fprintf(output, cleanupHeaderTemplateConstant, len(inventory))
	summary, cleanupError := service.Cleanup(command.Context(), inventory, CleanupOptions{Days: days, Execute: execute})
	writeCleanupResults(output, summary)
	if cleanupError != nil {
		return cleanupError
	}
	if summary.Failed > 0 {
		return fmt.Errorf(cleanupFailureTemplateConstant, summary.Failed)
	}
	return nil
}

func writeCleanupResults(output io.Writer, summary CleanupSummary) {
	currentRepository := ""
	for _, result := range summary.Results {
		if result.Repository != currentRepository {
			currentRepository = result.Repository
			fmt.Fprintf(output, repositoryHeaderTemplateConstant, currentRepository)
		}
		fmt.Fprintf(output, cleanupLineTemplateConstant, result.Status, result.Branch, result.Message)
	}
	fmt.Fprintf(output, cleanupSummaryTemplateConstant, summary.Deleted, summary.Simulated, summary.Skipped, summary.Failed)
}

func (builder *CommandBuilder) now() time.Time {
	if builder.Now != nil {
		return builder.Now()
	}
	return time.Now()
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
	restClient, restError := runtime.RESTClient(executionContext)
	if restError != nil {
		return nil, restError
	}
	retrier, retrierError := runtime.Retrier(ratelimit.ProfileNameInteractive)
	if retrierError != nil {
		return nil, retrierError
	}
	return NewService(ServiceDependencies{
		Logger:       builder.resolveLogger(),
		Recorder:     runtime.Recorder(),
		Repositories: restClient.Repositories(),
		Client:       restClient,
		Retrier:      retrier,
		Now:          builder.Now,
	})
}
