package cli

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/auth"
	"github.com/temirov/billdesk/internal/billing"
	"github.com/temirov/billdesk/internal/connectors"
	"github.com/temirov/billdesk/internal/credentials"
	"github.com/temirov/billdesk/internal/deploy"
	"github.com/temirov/billdesk/internal/deploy/netlify"
	"github.com/temirov/billdesk/internal/deploy/railway"
	"github.com/temirov/billdesk/internal/deploy/vercel"
	"github.com/temirov/billdesk/internal/github"
	"github.com/temirov/billdesk/internal/knowledgebase"
	"github.com/temirov/billdesk/internal/notion"
	"github.com/temirov/billdesk/internal/payments"
	"github.com/temirov/billdesk/internal/scraper"
	"github.com/temirov/billdesk/internal/server"
	"github.com/temirov/billdesk/internal/storage"
)

const (
	sessionSecretMissingMessageConstant = "auth.session_secret (SESSION_SECRET) must be set to serve"
	serviceSetupErrorTemplateConstant   = "unable to initialize %s: %w"
	billingServiceLabelConstant         = "billing"
	knowledgeBaseServiceLabelConstant   = "knowledge base"
	sessionsServiceLabelConstant        = "sessions"
	hostedLoginServiceLabelConstant     = "hosted login"
	githubServiceLabelConstant          = "github client"
	notionServiceLabelConstant          = "notion client"
	paymentsDisabledMessageConstant     = "stripe secret key not configured; payment method endpoints disabled"
	githubDisabledMessageConstant       = "no github credentials; repository endpoints disabled"
	notionDisabledMessageConstant       = "notion database or credentials missing; sync disabled"
)

// ErrSessionSecretMissing indicates serve was started without a cookie sealing secret.
var ErrSessionSecretMissing = errors.New(sessionSecretMissingMessageConstant)

// applicationServices holds the domain services shared by the commands of one invocation.
type applicationServices struct {
	logger        *zap.Logger
	configuration ApplicationConfiguration
	store         *storage.Store
	billing       *billing.Service
	questions     *knowledgebase.Service
	credentials   *credentials.Resolver
	broker        *connectors.Broker
}

func openApplicationServices(logger *zap.Logger, configuration ApplicationConfiguration) (*applicationServices, error) {
	store, openError := storage.Open(logger, configuration.Database.URL)
	if openError != nil {
		return nil, openError
	}
	billingService, billingError := billing.NewService(logger, store)
	if billingError != nil {
		_ = store.Close()
		return nil, fmt.Errorf(serviceSetupErrorTemplateConstant, billingServiceLabelConstant, billingError)
	}
	questions, questionsError := knowledgebase.NewService(logger, store)
	if questionsError != nil {
		_ = store.Close()
		return nil, fmt.Errorf(serviceSetupErrorTemplateConstant, knowledgeBaseServiceLabelConstant, questionsError)
	}
	return &applicationServices{
		logger:        logger,
		configuration: configuration,
		store:         store,
		billing:       billingService,
		questions:     questions,
		credentials:   credentials.NewResolver(nil, nil),
		broker: connectors.NewBroker(logger, connectors.Configuration{
			Hostname:       configuration.Connectors.Hostname,
			ReplIdentity:   configuration.Connectors.ReplIdentity,
			WebReplRenewal: configuration.Connectors.WebReplRenewal,
		}),
	}, nil
}

func (services *applicationServices) Close() error {
	return services.store.Close()
}

func (services *applicationServices) deployRegistry() *deploy.Registry {
	return newDeployRegistry(services.logger, services.credentials, services.configuration.Deploy)
}

func newDeployRegistry(logger *zap.Logger, tokens deploy.TokenResolver, configuration DeployConfiguration) *deploy.Registry {
	return deploy.NewRegistry(logger, tokens, map[string]deploy.Registration{
		deploy.ProviderNetlify: {Factory: netlify.New, TokenSource: configuration.NetlifyTokenSource},
		deploy.ProviderVercel:  {Factory: vercel.New, TokenSource: configuration.VercelTokenSource},
		deploy.ProviderRailway: {Factory: railway.New, TokenSource: configuration.RailwayTokenSource},
	})
}

func newScraper(logger *zap.Logger, configuration ScraperConfiguration) *scraper.Scraper {
	return scraper.New(logger, scraper.Configuration{Timeout: configuration.Timeout, UserAgent: configuration.UserAgent})
}

// githubClient returns nil when neither the connector broker nor a static token is available.
func (services *applicationServices) githubClient() (*github.Client, error) {
	staticToken := strings.TrimSpace(services.configuration.GitHub.Token)
	if len(staticToken) == 0 {
		staticToken, _ = services.credentials.FirstAvailable(ghTokenEnvironmentVariableConstant, githubTokenEnvironmentVariableConstant, githubAPITokenEnvironmentVariableConstant)
	}
	if !services.broker.Enabled() && len(staticToken) == 0 {
		services.logger.Debug(githubDisabledMessageConstant)
		return nil, nil
	}
	client, clientError := github.NewClient(services.logger, services.configuration.GitHub.BaseURL, services.broker.TokenFunc(connectors.ConnectorGitHub, staticToken), nil)
	if clientError != nil {
		return nil, fmt.Errorf(serviceSetupErrorTemplateConstant, githubServiceLabelConstant, clientError)
	}
	return client, nil
}

// notionSyncer returns nil when no database is configured or no credentials are available.
func (services *applicationServices) notionSyncer() (*notion.Syncer, error) {
	notionConfiguration := services.configuration.Notion
	staticToken := strings.TrimSpace(notionConfiguration.Token)
	if len(strings.TrimSpace(notionConfiguration.DatabaseID)) == 0 || (!services.broker.Enabled() && len(staticToken) == 0) {
		services.logger.Debug(notionDisabledMessageConstant)
		return nil, nil
	}
	client, clientError := notion.NewClient(services.logger, notionConfiguration.BaseURL, services.broker.TokenFunc(connectors.ConnectorNotion, staticToken), nil)
	if clientError != nil {
		return nil, fmt.Errorf(serviceSetupErrorTemplateConstant, notionServiceLabelConstant, clientError)
	}
	return notion.NewSyncer(services.logger, client, services.questions, notionConfiguration.DatabaseID), nil
}

// paymentGateway returns nil when Stripe is not configured.
func (services *applicationServices) paymentGateway() (*payments.Gateway, error) {
	gateway, gatewayError := payments.NewGateway(services.logger, payments.Configuration{
		SecretKey:      services.configuration.Stripe.SecretKey,
		PublishableKey: services.configuration.Stripe.PublishableKey,
		WebhookSecret:  services.configuration.Stripe.WebhookSecret,
	}, services.billing, nil)
	if errors.Is(gatewayError, payments.ErrStripeNotConfigured) {
		services.logger.Info(paymentsDisabledMessageConstant)
		return nil, nil
	}
	return gateway, gatewayError
}

// serverDependencies assembles everything the HTTP API needs.
func (services *applicationServices) serverDependencies(publicBaseURL string) (server.Dependencies, error) {
	authConfiguration := services.configuration.Auth
	if len(strings.TrimSpace(authConfiguration.SessionSecret)) == 0 {
		return server.Dependencies{}, ErrSessionSecretMissing
	}
	sealer, sealerError := auth.NewCookieSealer(authConfiguration.SessionSecret)
	if sealerError != nil {
		return server.Dependencies{}, fmt.Errorf(serviceSetupErrorTemplateConstant, sessionsServiceLabelConstant, sealerError)
	}

	var identityProvider auth.IdentityProvider
	if authConfiguration.HostedLoginEnabled() {
		redirectURL := strings.TrimSpace(authConfiguration.OIDC.RedirectURL)
		if len(redirectURL) == 0 {
			redirectURL = publicBaseURL + callbackPathConstant
		}
		oidcProvider, oidcError := auth.NewOIDCProvider(auth.OIDCConfiguration{
			IssuerURL:    authConfiguration.OIDC.IssuerURL,
			ClientID:     authConfiguration.OIDC.ClientID,
			ClientSecret: authConfiguration.OIDC.ClientSecret,
			RedirectURL:  redirectURL,
		})
		if oidcError != nil {
			return server.Dependencies{}, fmt.Errorf(serviceSetupErrorTemplateConstant, hostedLoginServiceLabelConstant, oidcError)
		}
		identityProvider = oidcProvider
	}

	adminEmails := append([]string{}, authConfiguration.AdminEmails...)
	if trimmedEmail := strings.TrimSpace(authConfiguration.AdminEmail); len(trimmedEmail) > 0 {
		adminEmails = append(adminEmails, trimmedEmail)
	}
	sessions, sessionsError := auth.NewSessionManager(services.logger, services.store, sealer, identityProvider, auth.SessionConfiguration{
		CookieName:   auth.DefaultSessionCookieName,
		TTL:          authConfiguration.SessionTTL,
		SecureCookie: services.configuration.Server.SecureCookies,
		AdminEmails:  adminEmails,
	})
	if sessionsError != nil {
		return server.Dependencies{}, fmt.Errorf(serviceSetupErrorTemplateConstant, sessionsServiceLabelConstant, sessionsError)
	}
	localLogin, localError := auth.NewLocalAuthenticator(services.store, authConfiguration.AdminEmail, authConfiguration.AdminPassword)
	if localError != nil {
		return server.Dependencies{}, fmt.Errorf(serviceSetupErrorTemplateConstant, sessionsServiceLabelConstant, localError)
	}
	apiKeys, apiKeysError := auth.NewAPIKeyService(services.logger, services.store)
	if apiKeysError != nil {
		return server.Dependencies{}, fmt.Errorf(serviceSetupErrorTemplateConstant, sessionsServiceLabelConstant, apiKeysError)
	}

	gateway, gatewayError := services.paymentGateway()
	if gatewayError != nil {
		return server.Dependencies{}, gatewayError
	}
	githubClient, githubError := services.githubClient()
	if githubError != nil {
		return server.Dependencies{}, githubError
	}
	syncer, syncerError := services.notionSyncer()
	if syncerError != nil {
		return server.Dependencies{}, syncerError
	}

	return server.Dependencies{
		Billing:     services.billing,
		Questions:   services.questions,
		Sessions:    sessions,
		LocalLogin:  localLogin,
		APIKeys:     apiKeys,
		Deployments: services.deployRegistry(),
		Scraper:     newScraper(services.logger, services.configuration.Scraper),
		Payments:    gateway,
		Webhooks:    payments.NewWebhookProcessor(services.logger, services.configuration.Stripe.WebhookSecret, services.billing),
		GitHub:      githubClient,
		Notion:      syncer,
	}, nil
}
