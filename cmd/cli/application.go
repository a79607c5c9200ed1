package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/ghkeeper/internal/branches"
	"github.com/temirov/ghkeeper/internal/dependabot"
	"github.com/temirov/ghkeeper/internal/metrics"
	"github.com/temirov/ghkeeper/internal/migrate"
	"github.com/temirov/ghkeeper/internal/projects"
	"github.com/temirov/ghkeeper/internal/repos"
	"github.com/temirov/ghkeeper/internal/session"
	"github.com/temirov/ghkeeper/internal/utils"
	"github.com/temirov/ghkeeper/internal/utils/flags"
)

const (
	applicationNameConstant                 = "ghkeeper"
	applicationShortDescriptionConstant     = "Maintenance tooling for GitHub repositories and Projects"
	applicationLongDescriptionConstant      = "ghkeeper inventories repositories, cleans up stale branches, manages GitHub Projects (v2) items, migrates JIRA issues and triages Dependabot pull requests while waiting out GitHub rate limits."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format (structured or console)."
	metricsFileFlagNameConstant             = "metrics-file"
	metricsFileFlagUsageConstant            = "Write Prometheus metrics to this textfile when the command ends."
	envFileFlagNameConstant                 = "env-file"
	envFileFlagUsageConstant                = "Load environment variables from this dotenv file before reading configuration."
	defaultEnvFileConstant                  = ".env"
	commonConfigurationKeyConstant          = "common"
	commonLogLevelConfigKeyConstant         = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant        = commonConfigurationKeyConstant + ".log_format"
	commonMetricsFileConfigKeyConstant      = commonConfigurationKeyConstant + ".metrics_file"
	environmentPrefixConstant               = "GHKEEPER"
	configurationNameConstant               = "config"
	configurationTypeConstant               = "yaml"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	environmentFileFieldConstant            = "env_file"
	metricsFileFieldConstant                = "metrics_file"
	environmentLoadErrorTemplateConstant    = "unable to load environment file %s: %w"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	metricsWriteErrorTemplateConstant       = "unable to write metrics: %w"
	metricsWrittenMessageConstant           = "metrics written"
	rootCommandInfoMessageConstant          = "ghkeeper CLI executed"
	rootCommandDebugMessageConstant         = "ghkeeper CLI diagnostics"
	logFieldCommandNameConstant             = "command_name"
	logFieldArgumentCountConstant           = "argument_count"
	logFieldArgumentsConstant               = "arguments"
	loggerNotInitializedMessageConstant     = "logger not initialized"
	defaultConfigurationSearchPathConstant  = "."
	toolsConfigurationKeyConstant           = "tools"
	reposConfigurationKeyConstant           = toolsConfigurationKeyConstant + ".repos"
	branchesConfigurationKeyConstant        = toolsConfigurationKeyConstant + ".branches"
	projectsConfigurationKeyConstant        = toolsConfigurationKeyConstant + ".projects"
	migrateConfigurationKeyConstant         = toolsConfigurationKeyConstant + ".migrate"
	dependabotConfigurationKeyConstant      = toolsConfigurationKeyConstant + ".dependabot"
)

// Version is reported by --version and is overridden at link time.
var Version = "dev"

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common                ApplicationCommonConfiguration `mapstructure:"common"`
	session.Configuration `mapstructure:",squash"`
	Tools                 ApplicationToolsConfiguration `mapstructure:"tools"`
}

// ApplicationCommonConfiguration stores logging and metrics configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
	MetricsFile string `mapstructure:"metrics_file"`
}

// ApplicationToolsConfiguration holds configuration for CLI subcommands grouped by tool family.
type ApplicationToolsConfiguration struct {
	Repos      repos.CommandConfiguration      `mapstructure:"repos"`
	Branches   branches.CommandConfiguration   `mapstructure:"branches"`
	Projects   projects.CommandConfiguration   `mapstructure:"projects"`
	Migrate    migrate.CommandConfiguration    `mapstructure:"migrate"`
	Dependabot dependabot.CommandConfiguration `mapstructure:"dependabot"`
}

type commandBuilder interface {
	Build() (*cobra.Command, error)
}

// Application wires the Cobra root command, configuration loader, structured logger and GitHub runtime.
type Application struct {
	rootCommand           *cobra.Command
	configurationLoader   *utils.ConfigurationLoader
	loggerFactory         *utils.LoggerFactory
	logger                *zap.Logger
	recorder              *metrics.Recorder
	runtime               *session.Runtime
	configuration         ApplicationConfiguration
	configurationMetadata utils.LoadedConfiguration
	configurationFilePath string
	logLevelFlagValue     string
	logFormatFlagValue    string
	metricsFileFlagValue  string
	environmentFilePath   string
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		configurationSearchPaths(),
	)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())

	application := &Application{
		configurationLoader: configurationLoader,
		loggerFactory:       utils.NewLoggerFactory(),
		logger:              zap.NewNop(),
		recorder:            metrics.NewRecorder(),
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.metricsFileFlagValue, metricsFileFlagNameConstant, "", metricsFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.environmentFilePath, envFileFlagNameConstant, defaultEnvFileConstant, envFileFlagUsageConstant)

	loggerProvider := func() *zap.Logger {
		return application.logger
	}
	runtimeProvider := func() *session.Runtime {
		return application.runtime
	}

	builders := []commandBuilder{
		&repos.CommandBuilder{
			LoggerProvider:        loggerProvider,
			ConfigurationProvider: func() repos.CommandConfiguration { return application.configuration.Tools.Repos },
			RuntimeProvider:       runtimeProvider,
		},
		&branches.CommandBuilder{
			LoggerProvider:        loggerProvider,
			ConfigurationProvider: func() branches.CommandConfiguration { return application.configuration.Tools.Branches },
			RuntimeProvider:       runtimeProvider,
		},
		&projects.CommandBuilder{
			LoggerProvider:        loggerProvider,
			ConfigurationProvider: func() projects.CommandConfiguration { return application.configuration.Tools.Projects },
			RuntimeProvider:       runtimeProvider,
		},
		&migrate.CommandBuilder{
			LoggerProvider:        loggerProvider,
			ConfigurationProvider: func() migrate.CommandConfiguration { return application.configuration.Tools.Migrate },
			RuntimeProvider:       runtimeProvider,
		},
		&dependabot.CommandBuilder{
			LoggerProvider:        loggerProvider,
			ConfigurationProvider: func() dependabot.CommandConfiguration { return application.configuration.Tools.Dependabot },
			RuntimeProvider:       runtimeProvider,
		},
	}
	for _, builder := range builders {
		if toolCommand, buildError := builder.Build(); buildError == nil {
			cobraCommand.AddCommand(toolCommand)
		}
	}

	application.rootCommand = cobraCommand

	return application
}

// configurationSearchPaths lists the working directory followed by the user configuration directory.
func configurationSearchPaths() []string {
	searchPaths := []string{defaultConfigurationSearchPathConstant}
	if userConfigurationDirectory, directoryError := os.UserConfigDir(); directoryError == nil {
		searchPaths = append(searchPaths, filepath.Join(userConfigurationDirectory, applicationNameConstant))
	}
	return searchPaths
}

// Execute runs the command hierarchy under a context cancelled by SIGINT or SIGTERM, then persists metrics and
// flushes the logger.
func (application *Application) Execute() error {
	application.rootCommand.SetArgs(flags.NormalizeToggleArguments(application.rootCommand, os.Args[1:]))
	signalContext, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	executionError := application.rootCommand.ExecuteContext(signalContext)
	if metricsError := application.writeMetrics(); metricsError != nil && executionError == nil {
		executionError = metricsError
	}
	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	if environmentError := application.loadEnvironmentFile(command); environmentError != nil {
		return environmentError
	}

	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:    string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant:   string(utils.LogFormatStructured),
		commonMetricsFileConfigKeyConstant: "",
	}
	for _, section := range []map[string]any{
		session.DefaultConfigurationValues(),
		repos.DefaultConfigurationValues(reposConfigurationKeyConstant),
		branches.DefaultConfigurationValues(branchesConfigurationKeyConstant),
		projects.DefaultConfigurationValues(projectsConfigurationKeyConstant),
		migrate.DefaultConfigurationValues(migrateConfigurationKeyConstant),
		dependabot.DefaultConfigurationValues(dependabotConfigurationKeyConstant),
	} {
		for configurationKey, configurationValue := range section {
			defaultValues[configurationKey] = configurationValue
		}
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	for flagName, override := range map[string]struct {
		target *string
		value  string
	}{
		logLevelFlagNameConstant:    {target: &application.configuration.Common.LogLevel, value: application.logLevelFlagValue},
		logFormatFlagNameConstant:   {target: &application.configuration.Common.LogFormat, value: application.logFormatFlagValue},
		metricsFileFlagNameConstant: {target: &application.configuration.Common.MetricsFile, value: application.metricsFileFlagValue},
	} {
		if flagChanged(command, flagName) {
			*override.target = override.value
		}
	}

	logger, loggerCreationError := application.loggerFactory.CreateLogger(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = logger
	application.runtime = session.NewRuntime(session.Dependencies{
		Logger:   logger,
		Recorder: application.recorder,
	}, application.configuration.Configuration)

	application.logger.Info(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)

	return nil
}

// loadEnvironmentFile applies dotenv variables without overriding the process environment.
// The default file is optional; an explicitly requested one must exist.
func (application *Application) loadEnvironmentFile(command *cobra.Command) error {
	environmentFilePath := strings.TrimSpace(application.environmentFilePath)
	if len(environmentFilePath) == 0 {
		return nil
	}

	loadError := godotenv.Load(environmentFilePath)
	if loadError == nil {
		return nil
	}
	if errors.Is(loadError, fs.ErrNotExist) && !flagChanged(command, envFileFlagNameConstant) {
		return nil
	}
	return fmt.Errorf(environmentLoadErrorTemplateConstant, environmentFilePath, loadError)
}

func (application *Application) writeMetrics() error {
	metricsFilePath := strings.TrimSpace(application.configuration.Common.MetricsFile)
	if len(metricsFilePath) == 0 {
		return nil
	}
	if writeError := application.recorder.WriteTextfile(metricsFilePath); writeError != nil {
		return fmt.Errorf(metricsWriteErrorTemplateConstant, writeError)
	}
	application.logger.Debug(metricsWrittenMessageConstant, zap.String(metricsFileFieldConstant, metricsFilePath))
	return nil
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}

	application.logger.Info(
		rootCommandInfoMessageConstant,
		zap.String(logFieldCommandNameConstant, command.Name()),
		zap.Int(logFieldArgumentCountConstant, len(arguments)),
	)

	application.logger.Debug(
		rootCommandDebugMessageConstant,
		zap.Strings(logFieldArgumentsConstant, arguments),
		zap.String(environmentFileFieldConstant, application.environmentFilePath),
	)

	return command.Help()
}

// flushLogger ignores the errors zap reports when stderr is a terminal or pipe.
func (application *Application) flushLogger() error {
	if application.logger == nil {
		return nil
	}
	syncError := application.logger.Sync()
	for _, ignorable := range []error{syscall.ENOTSUP, syscall.EINVAL, syscall.ENOTTY} {
		if errors.Is(syncError, ignorable) {
			return nil
		}
	}
	return syncError
}

// flagChanged reports whether a persistent flag was set on the command or any ancestor.
func flagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}
	for _, flagSet := range []*pflag.FlagSet{command.PersistentFlags(), command.InheritedFlags(), command.Root().PersistentFlags()} {
		if flagSet.Changed(flagName) {
			return true
		}
	}
	return false
}
