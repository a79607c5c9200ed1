package projects

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/ghkeeper/internal/githubapi"
	"github.com/temirov/ghkeeper/internal/githubrest"
	"github.com/temirov/ghkeeper/internal/pagination"
	"github.com/temirov/ghkeeper/internal/ratelimit"
	"github.com/temirov/ghkeeper/internal/session"
	"github.com/temirov/ghkeeper/internal/snapshot"
	"github.com/temirov/ghkeeper/internal/utils/flags"
)

const (
	commandUseConstant                       = "project"
	commandShortDescriptionConstant          = "Inspect and update GitHub Projects (v2) items"
	itemsUseConstant                         = "items"
	itemsShortDescriptionConstant            = "List project items, optionally converting drafts and setting their status"
	updateStatusUseConstant                  = "update-status"
	updateStatusShortDescriptionConstant     = "Set the status of the items listed in a targets file"
	syncIssuesUseConstant                    = "sync-issues"
	syncIssuesShortDescriptionConstant       = "Add marked repository issues to the project and set their status"
	ownerFlagNameConstant                    = "owner"
	ownerFlagUsageConstant                   = "Project owner login"
	ownerTypeFlagNameConstant                = "owner-type"
	ownerTypeFlagUsageConstant               = "Project owner type"
	numberFlagNameConstant                   = "number"
	numberFlagUsageConstant                  = "Project number"
	statusFieldFlagNameConstant              = "status-field"
	statusFieldFlagUsageConstant             = "Name of the single-select status field"
	statusFilterFlagNameConstant             = "status"
	statusFilterFlagUsageConstant            = "Only list items with this status"
	bodyContainsFlagNameConstant             = "body-contains"
	bodyContainsFlagUsageConstant            = "Only list items whose body contains the text"
	refreshFlagNameConstant                  = "refresh"
	refreshFlagUsageConstant                 = "Ignore the cached snapshot and fetch from GitHub"
	cacheFileFlagNameConstant                = "cache-file"
	cacheFileFlagUsageConstant               = "Snapshot file (defaults to cache.path)"
	setStatusFlagNameConstant                = "set-status"
	setStatusFlagUsageConstant               = "Set every listed item to this status"
	convertDraftsFlagNameConstant            = "convert-drafts"
	convertDraftsFlagUsageConstant           = "Convert listed draft items into issues of --repository"
	repositoryFlagNameConstant               = "repository"
	repositoryFlagUsageConstant              = "Repository as owner/name"
	writeTargetsFlagNameConstant             = "write-targets"
	writeTargetsFlagUsageConstant            = "Write the listed items to a targets file for update-status"
	projectIDFlagNameConstant                = "project-id"
	projectIDFlagUsageConstant               = "Project node ID (resolved from --owner/--number when empty)"
	targetStatusFlagNameConstant             = "status"
	targetStatusFlagUsageConstant            = "Status to set"
	targetsFlagNameConstant                  = "targets"
	targetsFlagUsageConstant                 = "Targets file produced by items --write-targets"
	batchSizeFlagNameConstant                = "batch-size"
	batchSizeFlagUsageConstant               = "Items updated between pauses"
	delayFlagNameConstant                    = "delay"
	delayFlagUsageConstant                   = "Pause between batches"
	markerFlagNameConstant                   = "marker"
	markerFlagUsageConstant                  = "Body text that marks an issue for synchronisation"
	syncStatusFlagNameConstant               = "status"
	syncStatusFlagUsageConstant              = "Status applied to marked issues and drafts"
	ownerMissingMessageConstant              = "project owner must be provided via --owner or configuration"
	numberMissingMessageConstant             = "project number must be provided via --number or configuration"
	runtimeMissingMessageConstant            = "session runtime not configured"
	repositoryRequiredMessageConstant        = "--repository is required"
	itemsHeaderTemplateConstant              = "%d items in %s\n"
	itemLineTemplateConstant                 = "- [%s] %s (%s, %s)\n"
	itemReferenceTemplateConstant            = "%s#%d"
	unsetStatusConstant                      = "未設定"
	conversionLineTemplateConstant           = "converted %s -> #%d %s\n"
	conversionFailureTemplateConstant        = "conversion failed for %s: %v\n"
	updateSummaryTemplateConstant            = "Updated %d/%d items\n"
	updateFailureTemplateConstant            = "- %s (%s): %v\n"
	targetsWrittenTemplateConstant           = "Wrote %d targets to %s\n"
	syncSummaryTemplateConstant              = "Synchronised %d issues and %d drafts: %d added, %d updated, %d unchanged, %d failed\n"
	syncFailureTemplateConstant              = "- %s: %v\n"
	partialUpdateFailureTemplateConstant     = "%d of %d status updates failed"
	partialSyncFailureTemplateConstant       = "%d items failed to synchronise"
	partialConversionFailureTemplateConstant = "%d draft conversions failed"
)

var (
	errOwnerMissing       = errors.New(ownerMissingMessageConstant)
	errNumberMissing      = errors.New(numberMissingMessageConstant)
	errRuntimeMissing     = errors.New(runtimeMissingMessageConstant)
	errRepositoryRequired = errors.New(repositoryRequiredMessageConstant)
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ServiceProvider constructs the projects service.
type ServiceProvider func(executionContext context.Context) (*Service, error)

// StoreProvider opens the snapshot store; a non-empty path overrides the configured location.
type StoreProvider func(path string) (snapshot.Store, func() error, error)

// CommandBuilder assembles the project command group.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider func() CommandConfiguration
	RuntimeProvider       func() *session.Runtime
	ServiceProvider       ServiceProvider
	StoreProvider         StoreProvider
}

type projectFlags struct {
	owner       string
	ownerType   string
	number      int
	statusField string
}

// Build constructs the project command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	defaults := DefaultCommandConfiguration()
	command := &cobra.Command{
		Use:           commandUseConstant,
		Short:         commandShortDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	persistentFlags := command.PersistentFlags()
	persistentFlags.String(ownerFlagNameConstant, "", ownerFlagUsageConstant)
	persistentFlags.String(
		ownerTypeFlagNameConstant,
		defaults.OwnerType,
		flags.FormatChoiceUsage(defaults.OwnerType, []string{string(githubapi.OrganizationOwnerType), string(githubapi.UserOwnerType)}, ownerTypeFlagUsageConstant),
	)
	persistentFlags.Int(numberFlagNameConstant, 0, numberFlagUsageConstant)
	persistentFlags.String(statusFieldFlagNameConstant, defaults.StatusField, statusFieldFlagUsageConstant)

	command.AddCommand(builder.buildItemsCommand(), builder.buildUpdateStatusCommand(defaults), builder.buildSyncIssuesCommand(defaults))
	return command, nil
}

func (builder *CommandBuilder) buildItemsCommand() *cobra.Command {
	var refresh bool
	var convertDrafts bool
	itemsCommand := &cobra.Command{
		Use:           itemsUseConstant,
		Short:         itemsShortDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(command *cobra.Command, _ []string) error {
			return builder.runItems(command, refresh, convertDrafts)
		},
	}
	itemsCommand.Flags().String(statusFilterFlagNameConstant, "", statusFilterFlagUsageConstant)
	itemsCommand.Flags().String(bodyContainsFlagNameConstant, "", bodyContainsFlagUsageConstant)
	flags.AddToggleFlag(itemsCommand.Flags(), &refresh, refreshFlagNameConstant, "", false, refreshFlagUsageConstant)
	itemsCommand.Flags().String(cacheFileFlagNameConstant, "", cacheFileFlagUsageConstant)
	itemsCommand.Flags().String(setStatusFlagNameConstant, "", setStatusFlagUsageConstant)
	flags.AddToggleFlag(itemsCommand.Flags(), &convertDrafts, convertDraftsFlagNameConstant, "", false, convertDraftsFlagUsageConstant)
	itemsCommand.Flags().String(repositoryFlagNameConstant, "", repositoryFlagUsageConstant)
	itemsCommand.Flags().String(writeTargetsFlagNameConstant, "", writeTargetsFlagUsageConstant)
	return itemsCommand
}

func (builder *CommandBuilder) buildUpdateStatusCommand(defaults CommandConfiguration) *cobra.Command {
	updateCommand := &cobra.Command{
		Use:           updateStatusUseConstant,
		Short:         updateStatusShortDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.runUpdateStatus,
	}
	updateCommand.Flags().String(projectIDFlagNameConstant, "", projectIDFlagUsageConstant)
	updateCommand.Flags().String(targetStatusFlagNameConstant, "", targetStatusFlagUsageConstant)
	updateCommand.Flags().String(targetsFlagNameConstant, defaults.TargetsFile, targetsFlagUsageConstant)
	updateCommand.Flags().Int(batchSizeFlagNameConstant, defaults.BatchSize, batchSizeFlagUsageConstant)
	updateCommand.Flags().Duration(delayFlagNameConstant, defaults.BatchDelay, delayFlagUsageConstant)
	_ = updateCommand.MarkFlagRequired(targetStatusFlagNameConstant)
	return updateCommand
}

func (builder *CommandBuilder) buildSyncIssuesCommand(defaults CommandConfiguration) *cobra.Command {
	syncCommand := &cobra.Command{
		Use:           syncIssuesUseConstant,
		Short:         syncIssuesShortDescriptionConstant,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE:          builder.runSyncIssues,
	}
	syncCommand.Flags().String(repositoryFlagNameConstant, "", repositoryFlagUsageConstant)
	syncCommand.Flags().String(markerFlagNameConstant, defaults.SyncMarker, markerFlagUsageConstant)
	syncCommand.Flags().String(syncStatusFlagNameConstant, defaults.SyncStatus, syncStatusFlagUsageConstant)
	return syncCommand
}

func (builder *CommandBuilder) runItems(command *cobra.Command, refresh bool, convertDrafts bool) error {
	configuration := builder.resolveConfiguration()
	projectOptions, projectError := builder.parseProjectFlags(command, configuration)
	if projectError != nil {
		return projectError
	}
	reference, referenceError := projectOptions.reference()
	if referenceError != nil {
		return referenceError
	}

	var repository RepositoryReference
	if convertDrafts {
		repositorySlug, _ := command.Flags().GetString(repositoryFlagNameConstant)
		if len(strings.TrimSpace(repositorySlug)) == 0 {
			return errRepositoryRequired
		}
		parsedRepository, parseError := ParseRepositoryReference(repositorySlug)
		if parseError != nil {
			return parseError
		}
		repository = parsedRepository
	}

	cacheFile := configuration.CacheFile
	if command.Flags().Changed(cacheFileFlagNameConstant) {
		cacheFile, _ = command.Flags().GetString(cacheFileFlagNameConstant)
	}
	store, closeStore, storeError := builder.resolveStore(cacheFile)
	if storeError != nil {
		return storeError
	}
	defer func() { _ = closeStore() }()

	service, serviceError := builder.resolveService(command.Context())
	if serviceError != nil {
		return serviceError
	}

	statusFilter, _ := command.Flags().GetString(statusFilterFlagNameConstant)
	bodyFilter, _ := command.Flags().GetString(bodyContainsFlagNameConstant)
	listing, listError := service.ListItems(command.Context(), ListOptions{
		Target:       reference,
		StatusField:  projectOptions.statusField,
		Status:       statusFilter,
		BodyContains: bodyFilter,
		Refresh:      refresh,
		Store:        store,
	})
	if listError != nil {
		return listError
	}

	output := command.OutOrStdout()
	writeItems(output, listing)

	if targetsPath, _ := command.Flags().GetString(writeTargetsFlagNameConstant); len(strings.TrimSpace(targetsPath)) > 0 {
		targets := TargetsFromItems(listing.Items)
		if saveError := SaveTargets(targetsPath, targets); saveError != nil {
			return saveError
		}
		fmt.Fprintf(output, targetsWrittenTemplateConstant, len(targets), targetsPath)
	}

	var failures []error
	if convertDrafts {
		conversions, conversionError := service.ConvertDrafts(command.Context(), listing.Items, repository)
		if conversionError != nil {
			return conversionError
		}
		failedConversions := 0
		for _, conversion := range conversions {
			if conversion.Error != nil {
				failedConversions++
				fmt.Fprintf(output, conversionFailureTemplateConstant, conversion.Item.Title, conversion.Error)
				continue
			}
			fmt.Fprintf(output, conversionLineTemplateConstant, conversion.Item.Title, conversion.Issue.Number, conversion.Issue.URL)
		}
		if failedConversions > 0 {
			failures = append(failures, fmt.Errorf(partialConversionFailureTemplateConstant, failedConversions))
		}
	}

	if setStatus, _ := command.Flags().GetString(setStatusFlagNameConstant); len(strings.TrimSpace(setStatus)) > 0 {
		summary, updateError := service.UpdateStatus(command.Context(), UpdateOptions{
			ProjectID:       listing.Project.ID,
			StatusFieldName: projectOptions.statusField,
			Status:          setStatus,
			Targets:         TargetsFromItems(listing.Items),
			BatchSize:       configuration.BatchSize,
			BatchDelay:      configuration.BatchDelay,
		})
		writeUpdateSummary(output, summary)
		if updateError != nil {
			return updateError
		}
		if failed := summary.Total - summary.Updated; failed > 0 {
			failures = append(failures, fmt.Errorf(partialUpdateFailureTemplateConstant, failed, summary.Total))
		}
	}

	return errors.Join(failures...)
}

func (builder *CommandBuilder) runUpdateStatus(command *cobra.Command, _ []string) error {
	configuration := builder.resolveConfiguration()
	projectOptions, projectError := builder.parseProjectFlags(command, configuration)
	if projectError != nil {
		return projectError
	}

	targetsPath := configuration.TargetsFile
	if command.Flags().Changed(targetsFlagNameConstant) {
		targetsPath, _ = command.Flags().GetString(targetsFlagNameConstant)
	}
	targets, targetsError := LoadTargets(targetsPath)
	if targetsError != nil {
		return targetsError
	}

	batchSize := configuration.BatchSize
	if command.Flags().Changed(batchSizeFlagNameConstant) {
		batchSize, _ = command.Flags().GetInt(batchSizeFlagNameConstant)
	}
	batchDelay := configuration.BatchDelay
	if command.Flags().Changed(delayFlagNameConstant) {
		batchDelay, _ = command.Flags().GetDuration(delayFlagNameConstant)
	}

	service, serviceError := builder.resolveService(command.Context())
	if serviceError != nil {
		return serviceError
	}

	projectID, _ := command.Flags().GetString(projectIDFlagNameConstant)
	if len(strings.TrimSpace(projectID)) == 0 {
		reference, referenceError := projectOptions.reference()
		if referenceError != nil {
			return referenceError
		}
		project, resolveError := service.ResolveProject(command.Context(), reference)
		if resolveError != nil {
			return resolveError
		}
		projectID = project.ID
	}

	status, _ := command.Flags().GetString(targetStatusFlagNameConstant)
	summary, updateError := service.UpdateStatus(command.Context(), UpdateOptions{
		ProjectID:       strings.TrimSpace(projectID),
		StatusFieldName: projectOptions.statusField,
		Status:          status,
		Targets:         targets,
		BatchSize:       batchSize,
		BatchDelay:      batchDelay,
	})
	writeUpdateSummary(command.OutOrStdout(), summary)
	if updateError != nil {
		return updateError
	}
	if failed := summary.Total - summary.Updated; failed > 0 {
		return fmt.Errorf(partialUpdateFailureTemplateConstant, failed, summary.Total)
	}
	return nil
}

func (builder *CommandBuilder) runSyncIssues(command *cobra.Command, _ []string) error {
	configuration := builder.resolveConfiguration()
	projectOptions, projectError := builder.parseProjectFlags(command, configuration)
	if projectError != nil {
		return projectError
	}
	reference, referenceError := projectOptions.reference()
	if referenceError != nil {
		return referenceError
	}

	repositorySlug, _ := command.Flags().GetString(repositoryFlagNameConstant)
	if len(strings.TrimSpace(repositorySlug)) == 0 {
		return errRepositoryRequired
	}
	repository, repositoryError := ParseRepositoryReference(repositorySlug)
	if repositoryError != nil {
		return repositoryError
	}

	marker := configuration.SyncMarker
	if command.Flags().Changed(markerFlagNameConstant) {
		marker, _ = command.Flags().GetString(markerFlagNameConstant)
	}
	status := configuration.SyncStatus
	if command.Flags().Changed(syncStatusFlagNameConstant) {
		status, _ = command.Flags().GetString(syncStatusFlagNameConstant)
	}

	service, serviceError := builder.resolveService(command.Context())
	if serviceError != nil {
		return serviceError
	}

	summary, syncError := service.SyncIssues(command.Context(), SyncOptions{
		Target:          reference,
		Repository:      repository,
		Marker:          marker,
		Status:          status,
		StatusFieldName: projectOptions.statusField,
	})
	writeSyncSummary(command.OutOrStdout(), repository, summary)
	if syncError != nil {
		return syncError
	}
	if summary.Failed > 0 {
		return fmt.Errorf(partialSyncFailureTemplateConstant, summary.Failed)
	}
	return nil
}

func (builder *CommandBuilder) parseProjectFlags(command *cobra.Command, configuration CommandConfiguration) (projectFlags, error) {
	options := projectFlags{
		owner:       configuration.Owner,
		ownerType:   configuration.OwnerType,
		number:      configuration.ProjectNumber,
		statusField: configuration.StatusField,
	}
	commandFlags := command.Flags()
	if commandFlags.Changed(ownerFlagNameConstant) {
		options.owner, _ = commandFlags.GetString(ownerFlagNameConstant)
	}
	if commandFlags.Changed(ownerTypeFlagNameConstant) {
		options.ownerType, _ = commandFlags.GetString(ownerTypeFlagNameConstant)
	}
	if commandFlags.Changed(numberFlagNameConstant) {
		options.number, _ = commandFlags.GetInt(numberFlagNameConstant)
	}
	if commandFlags.Changed(statusFieldFlagNameConstant) {
		options.statusField, _ = commandFlags.GetString(statusFieldFlagNameConstant)
	}
	if _, ownerTypeError := githubapi.ParseOwnerType(options.ownerType); ownerTypeError != nil {
		return projectFlags{}, ownerTypeError
	}
	return options, nil
}

func (options projectFlags) reference() (githubapi.ProjectReference, error) {
	if len(strings.TrimSpace(options.owner)) == 0 {
		return githubapi.ProjectReference{}, errOwnerMissing
	}
	if options.number <= 0 {
		return githubapi.ProjectReference{}, errNumberMissing
	}
	ownerType, ownerTypeError := githubapi.ParseOwnerType(options.ownerType)
	if ownerTypeError != nil {
		return githubapi.ProjectReference{}, ownerTypeError
	}
	return githubapi.ProjectReference{OwnerType: ownerType, Owner: strings.TrimSpace(options.owner), Number: options.number}, nil
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

func (builder *CommandBuilder) resolveStore(path string) (snapshot.Store, func() error, error) {
	if builder.StoreProvider != nil {
		return builder.StoreProvider(path)
	}
	if builder.RuntimeProvider == nil || builder.RuntimeProvider() == nil {
		return nil, nil, errRuntimeMissing
	}
	return builder.RuntimeProvider().OpenSnapshotStore(path)
}

func (builder *CommandBuilder) resolveService(executionContext context.Context) (*Service, error) {
	if builder.ServiceProvider != nil {
		return builder.ServiceProvider(executionContext)
	}
	if builder.RuntimeProvider == nil || builder.RuntimeProvider() == nil {
		return nil, errRuntimeMissing
	}
	runtime := builder.RuntimeProvider()

	graphQLClient, graphQLError := runtime.GraphQLClient(executionContext)
	if graphQLError != nil {
		return nil, graphQLError
	}
	restClient, restError := runtime.RESTClient(executionContext)
	if restError != nil {
		return nil, restError
	}
	bulkRetrier, bulkError := runtime.Retrier(ratelimit.ProfileNameBulk)
	if bulkError != nil {
		return nil, bulkError
	}
	interactiveRetrier, interactiveError := runtime.Retrier(ratelimit.ProfileNameInteractive)
	if interactiveError != nil {
		return nil, interactiveError
	}
	statusFieldName := builder.resolveConfiguration().StatusField

	return NewService(ServiceDependencies{
		Logger:   builder.resolveLogger(),
		Recorder: runtime.Recorder(),
		Gateway:  graphQLClient,
		ItemsSource: func(projectID string) pagination.PageSource[githubapi.ProjectItem] {
			return graphQLClient.ItemsSource(projectID, 0, statusFieldName)
		},
		IssuesSource: func(owner string, name string) pagination.PageSource[githubrest.Issue] {
			return restClient.Issues(owner, name)
		},
		BulkRetrier:        bulkRetrier,
		InteractiveRetrier: interactiveRetrier,
	})
}

func writeItems(output io.Writer, listing Listing) {
	fmt.Fprintf(output, itemsHeaderTemplateConstant, len(listing.Items), listing.Project.Title)
	for _, item := range listing.Items {
		status := item.Status
		if len(status) == 0 {
			status = unsetStatusConstant
		}
		reference := item.ContentType
		if item.Number > 0 {
			reference = fmt.Sprintf(itemReferenceTemplateConstant, item.Repository, item.Number)
		}
		fmt.Fprintf(output, itemLineTemplateConstant, status, item.Title, reference, item.ID)
	}
}

func writeUpdateSummary(output io.Writer, summary UpdateSummary) {
	fmt.Fprintf(output, updateSummaryTemplateConstant, summary.Updated, summary.Total)
	for _, result := range summary.Results {
		if result.Error != nil {
			fmt.Fprintf(output, updateFailureTemplateConstant, result.Target.Title, result.Target.ID, result.Error)
		}
	}
}

func writeSyncSummary(output io.Writer, repository RepositoryReference, summary SyncSummary) {
	fmt.Fprintf(output, syncSummaryTemplateConstant, summary.MatchedIssues, summary.MatchedDrafts, summary.Added, summary.Updated, summary.Unchanged, summary.Failed)
	for _, result := range summary.Results {
		if result.Error == nil {
			continue
		}
		label := result.Title
		if result.IssueNumber > 0 {
			label = fmt.Sprintf(itemReferenceTemplateConstant, repository, result.IssueNumber)
		}
		fmt.Fprintf(output, syncFailureTemplateConstant, label, result.Error)
	}
}
