package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/utils"
)

const (
	applicationNameConstant                  = "billdesk"
	applicationShortDescriptionConstant      = "Billing and admin dashboard backend"
	applicationLongDescriptionConstant       = "billdesk serves the customer, invoice, quote and knowledge base API and drives deploy providers, Stripe, GitHub and Notion from the terminal."
	configFileFlagNameConstant               = "config"
	configFileFlagUsageConstant              = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                 = "log-level"
	logLevelFlagUsageConstant                = "Override the configured log level."
	logFormatFlagNameConstant                = "log-format"
	logFormatFlagUsageConstant               = "Override the configured log format (structured or console)."
	environmentPrefixConstant                = "BILLDESK"
	configurationNameConstant                = "config"
	configurationTypeConstant                = "yaml"
	configurationInitializedMessageConstant  = "configuration initialized"
	configurationLogLevelFieldConstant       = "log_level"
	configurationLogFormatFieldConstant      = "log_format"
	configurationFileFieldConstant           = "config_file"
	configurationLoadErrorTemplateConstant   = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant      = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant          = "unable to flush logger: %w"
	rootCommandDebugMessageConstant          = "billdesk CLI diagnostics"
	overviewHeadingTemplateConstant          = "%s configuration"
	overviewDatabaseLabelConstant            = "database"
	overviewListenLabelConstant              = "listen"
	overviewLoginLabelConstant               = "login"
	overviewStripeLabelConstant              = "stripe"
	overviewNotionLabelConstant              = "notion"
	overviewHostedLoginConstant              = "oidc"
	overviewLocalLoginConstant               = "local password"
	overviewEnabledConstant                  = "enabled"
	overviewDisabledConstant                 = "disabled"
	logFieldArgumentsConstant                = "arguments"
	loggerNotInitializedMessageConstant      = "logger not initialized"
	defaultConfigurationSearchPathConstant   = "."
	xdgConfigHomeEnvironmentVariableConstant = "XDG_CONFIG_HOME"
	userConfigurationDirectoryConstant       = ".config"
)

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand           *cobra.Command
	configurationLoader   *utils.ConfigurationLoader
	loggerFactory         *utils.LoggerFactory
	logger                *zap.Logger
	configuration         ApplicationConfiguration
	configurationMetadata utils.LoadedConfiguration
	configurationFilePath string
	logLevelFlagValue     string
	logFormatFlagValue    string
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
	bindEnvironmentVariables(configurationLoader)

	application := &Application{
		configurationLoader: configurationLoader,
		loggerFactory:       utils.NewLoggerFactory(),
		logger:              zap.NewNop(),
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
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

	loggerProvider := func() *zap.Logger {
		return application.logger
	}
	configurationProvider := func() ApplicationConfiguration {
		return application.configuration
	}

	builders := []interface {
		Build() (*cobra.Command, error)
	}{
		ServeCommandBuilder{LoggerProvider: loggerProvider, ConfigurationProvider: configurationProvider},
		SeedCommandBuilder{LoggerProvider: loggerProvider, ConfigurationProvider: configurationProvider},
		DeployCommandBuilder{LoggerProvider: loggerProvider, ConfigurationProvider: configurationProvider},
		ScrapeEmailCommandBuilder{LoggerProvider: loggerProvider, ConfigurationProvider: configurationProvider},
		NotionCommandBuilder{LoggerProvider: loggerProvider, ConfigurationProvider: configurationProvider},
		GitHubCommandBuilder{LoggerProvider: loggerProvider, ConfigurationProvider: configurationProvider},
	}
	for _, builder := range builders {
		subcommand, buildError := builder.Build()
		if buildError == nil {
			cobraCommand.AddCommand(subcommand)
		}
	}

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func configurationSearchPaths() []string {
	searchPaths := []string{defaultConfigurationSearchPathConstant}
	if configHome := strings.TrimSpace(os.Getenv(xdgConfigHomeEnvironmentVariableConstant)); len(configHome) > 0 {
		return append(searchPaths, filepath.Join(configHome, applicationNameConstant))
	}
	if homeDirectory, homeError := os.UserHomeDir(); homeError == nil {
		searchPaths = append(searchPaths, filepath.Join(homeDirectory, userConfigurationDirectoryConstant, applicationNameConstant))
	}
	return searchPaths
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, DefaultConfigurationValues(), &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}

	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	logger, loggerCreationError := application.loggerFactory.CreateLogger(utils.LoggerOptions{
		Level:     utils.LogLevel(application.configuration.Common.LogLevel),
		Format:    utils.LogFormat(application.configuration.Common.LogFormat),
		Output:    command.ErrOrStderr(),
		Component: applicationNameConstant,
	})
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = logger

	application.logger.Info(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)

	return nil
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}
	application.logger.Debug(rootCommandDebugMessageConstant, zap.Strings(logFieldArgumentsConstant, arguments))

	configuration := application.configuration
	printer := newConsolePrinter(command.OutOrStdout())
	printer.Heading(overviewHeadingTemplateConstant, applicationNameConstant)
	printer.Field(overviewDatabaseLabelConstant, configuration.Database.URL)
	printer.Field(overviewListenLabelConstant, configuration.Server.ListenAddress())
	printer.Field(overviewLoginLabelConstant, describeLogin(configuration.Auth))
	printer.Field(overviewStripeLabelConstant, describeEnabled(len(strings.TrimSpace(configuration.Stripe.SecretKey)) > 0))
	printer.Field(overviewNotionLabelConstant, describeEnabled(len(strings.TrimSpace(configuration.Notion.DatabaseID)) > 0))
	printer.Line(plainLineTemplateConstant, "")
	return command.Help()
}

func describeLogin(authConfiguration AuthConfiguration) string {
	switch {
	case authConfiguration.HostedLoginEnabled():
		return overviewHostedLoginConstant
	case len(strings.TrimSpace(authConfiguration.AdminPassword)) > 0:
		return overviewLocalLoginConstant
	default:
		return overviewDisabledConstant
	}
}

func describeEnabled(enabled bool) string {
	if enabled {
		return overviewEnabledConstant
	}
	return overviewDisabledConstant
}

func (application *Application) flushLogger() error {
	if application.logger == nil {
		return nil
	}

	syncError := application.logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	case errors.Is(syncError, syscall.ENOTTY):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	rootCommand := command.Root()
	if rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}

		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}
