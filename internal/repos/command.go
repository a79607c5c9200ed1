package repos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/ghkeeper/internal/githubrest"
	"github.com/temirov/ghkeeper/internal/ratelimit"
	"github.com/temirov/ghkeeper/internal/session"
	"github.com/temirov/ghkeeper/internal/utils/flags"
)

const (
	commandUseConstant              = "repos"
	commandShortDescriptionConstant = "Work with repositories visible to the GitHub token"
	listUseConstant                 = "list"
	listShortDescriptionConstant    = "List every accessible repository"
	outputFlagNameConstant          = "output"
	outputFlagShorthandConstant     = "o"
	outputFlagUsageConstant         = "Write the inventory to this file"
	formatFlagNameConstant          = "format"
	formatFlagUsageConstant         = "Inventory file format (inferred from the --output extension when empty)"
	runtimeMissingMessageConstant   = "session runtime not configured"
	noRepositoriesMessageConstant   = "No accessible repositories found\n"
	foundTemplateConstant           = "Found %d repositories:\n"
	repositoryLineTemplateConstant  = "- %s\n"
	savedTemplateConstant           = "Saved inventory to %s\n"
)

var errRuntimeMissing = errors.New(runtimeMissingMessageConstant)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// Lister lists repositories.
type Lister interface {
	List(ctx context.Context) ([]githubrest.Repository, error)
}

// CommandBuilder assembles the repos command group.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider func() CommandConfiguration
	RuntimeProvider       func() *session.Runtime
	ServiceProvider       func(executionContext context.Context) (Lister, error)
}

// Build constructs the repos command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:           commandUseConstant,
		Short:         commandShortDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	listCommand := &cobra.Command{
		Use:           listUseConstant,
		Short:         listShortDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.runList,
	}
	listCommand.Flags().StringP(outputFlagNameConstant, outputFlagShorthandConstant, "", outputFlagUsageConstant)
	listCommand.Flags().String(
		formatFlagNameConstant,
		"",
		flags.FormatChoiceUsage(string(FormatJSON), []string{string(FormatJSON), string(FormatYAML)}, formatFlagUsageConstant),
	)
	command.AddCommand(listCommand)
	return command, nil
}

func (builder *CommandBuilder) runList(command *cobra.Command, _ []string) error {
	configuration := builder.resolveConfiguration()
	outputPath := configuration.Output
	if command.Flags().Changed(outputFlagNameConstant) {
		outputPath, _ = command.Flags().GetString(outputFlagNameConstant)
	}
	formatName := configuration.Format
	if command.Flags().Changed(formatFlagNameConstant) {
		formatName, _ = command.Flags().GetString(formatFlagNameConstant)
	}
	format, formatError := ParseFormat(formatName, outputPath)
	if formatError != nil {
		return formatError
	}

	lister, listerError := builder.resolveLister(command.Context())
	if listerError != nil {
		return listerError
	}
	repositories, listError := lister.List(command.Context())
	if listError != nil {
		return listError
	}

	output := command.OutOrStdout()
	writeRepositories(output, repositories)
	if len(repositories) == 0 {
		return nil
	}

	if trimmedPath := strings.TrimSpace(outputPath); len(trimmedPath) > 0 {
		if writeError := WriteInventory(trimmedPath, repositories, format); writeError != nil {
			return writeError
		}
		fmt.Fprintf(output, savedTemplateConstant, trimmedPath)
	}
	return nil
}

func writeRepositories(output io.Writer, repositories []githubrest.Repository) {
	if len(repositories) == 0 {
		fmt.Fprint(output, noRepositoriesMessageConstant)
		return
	}
	fmt.Fprintf(output, foundTemplateConstant, len(repositories))
	for _, repository := range repositories {
		fmt.Fprintf(output, repositoryLineTemplateConstant, repository.FullName)
	}
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

func (builder *CommandBuilder) resolveLister(executionContext context.Context) (Lister, error) {
	if builder.ServiceProvider != nil {
		return builder.ServiceProvider(executionContext)
	}
	return NewRuntimeService(executionContext, builder.RuntimeProvider, builder.resolveLogger())
}

// NewRuntimeService builds a Service from the session runtime using the interactive retry profile.
func NewRuntimeService(executionContext context.Context, runtimeProvider func() *session.Runtime, logger *zap.Logger) (*Service, error) {
	if runtimeProvider == nil || runtimeProvider() == nil {
		return nil, errRuntimeMissing
	}
	runtime := runtimeProvider()
	restClient, restError := runtime.RESTClient(executionContext)
	if restError != nil {
		return nil, restError
	}
	retrier, retrierError := runtime.Retrier(ratelimit.ProfileNameInteractive)
	if retrierError != nil {
		return nil, retrierError
	}
	return NewService(ServiceDependencies{
		Logger:   logger,
		Recorder: runtime.Recorder(),
		Source:   restClient.Repositories(),
		Retrier:  retrier,
	})
}
