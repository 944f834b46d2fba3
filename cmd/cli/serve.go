package cli

import (
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/server"
	"github.com/temirov/billdesk/internal/utils"
)

const (
	serveCommandUseConstant              = "serve"
	serveCommandShortConstant            = "Run the HTTP API"
	serveCommandLongConstant             = "serve opens the database, wires authentication, Stripe, deploy providers, GitHub and Notion, and serves the HTTP API until interrupted."
	serveAddressFlagNameConstant         = "address"
	serveAddressFlagUsageConstant        = "Override the listen address (host:port)."
	servePublicURLFlagNameConstant       = "public-url"
	servePublicURLFlagUsageConstant      = "Override the public base URL used for OIDC redirects."
	serveStartingMessageConstant         = "starting billdesk"
	logFieldPublicURLConstant            = "public_url"
	logFieldDatabaseConstant             = "database"
	logFieldHostedLoginConstant          = "hosted_login"
	loggerProviderMissingConstant        = "logger provider must be configured"
	configurationProviderMissingConstant = "configuration provider must be configured"
)

var (
	errLoggerProviderMissing        = errors.New(loggerProviderMissingConstant)
	errConfigurationProviderMissing = errors.New(configurationProviderMissingConstant)
)

// ServeCommandBuilder assembles the serve command.
type ServeCommandBuilder struct {
	LoggerProvider        func() *zap.Logger
	ConfigurationProvider func() ApplicationConfiguration
}

// Build constructs the serve command.
func (builder ServeCommandBuilder) Build() (*cobra.Command, error) {
	if builder.LoggerProvider == nil {
		return nil, errLoggerProviderMissing
	}
	if builder.ConfigurationProvider == nil {
		return nil, errConfigurationProviderMissing
	}
	command := &cobra.Command{
		Use:   serveCommandUseConstant,
		Short: serveCommandShortConstant,
		Long:  serveCommandLongConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}
	command.Flags().String(serveAddressFlagNameConstant, "", serveAddressFlagUsageConstant)
	command.Flags().String(servePublicURLFlagNameConstant, "", servePublicURLFlagUsageConstant)
	return command, nil
}

func (builder ServeCommandBuilder) run(command *cobra.Command, arguments []string) error {
	logger := builder.LoggerProvider()
	configuration := builder.ConfigurationProvider()

	listenAddress := configuration.Server.ListenAddress()
	if addressOverride, _ := command.Flags().GetString(serveAddressFlagNameConstant); len(strings.TrimSpace(addressOverride)) > 0 {
		listenAddress = strings.TrimSpace(addressOverride)
	}
	if publicURLOverride, _ := command.Flags().GetString(servePublicURLFlagNameConstant); len(strings.TrimSpace(publicURLOverride)) > 0 {
		configuration.Server.PublicBaseURL = publicURLOverride
	}
	publicBaseURL := configuration.Server.ResolvedPublicBaseURL(os.LookupEnv)

	if logLevel, _ := utils.ParseLogLevel(configuration.Common.LogLevel); logLevel != utils.LogLevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	services, openError := openApplicationServices(logger, configuration)
	if openError != nil {
		return openError
	}
	defer services.Close()

	dependencies, dependenciesError := services.serverDependencies(publicBaseURL)
	if dependenciesError != nil {
		return dependenciesError
	}
	httpServer, serverError := server.NewServer(logger, dependencies, server.Configuration{
		PublicBaseURL:        publicBaseURL,
		SecureCookies:        configuration.Server.SecureCookies,
		StripePublishableKey: configuration.Stripe.PublishableKey,
	})
	if serverError != nil {
		return serverError
	}

	logger.Info(
		serveStartingMessageConstant,
		zap.String(logFieldPublicURLConstant, publicBaseURL),
		zap.String(logFieldDatabaseConstant, configuration.Database.URL),
		zap.Bool(logFieldHostedLoginConstant, configuration.Auth.HostedLoginEnabled()),
	)

	signalContext, stop := signal.NotifyContext(command.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return httpServer.Run(signalContext, listenAddress)
}
