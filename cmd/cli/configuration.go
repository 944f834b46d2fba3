package cli

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/temirov/billdesk/internal/utils"
)

const (
	commonConfigurationKeyConstant                = "common"
	commonLogLevelConfigKeyConstant               = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant              = commonConfigurationKeyConstant + ".log_format"
	serverPortConfigKeyConstant                   = "server.port"
	serverAddressConfigKeyConstant                = "server.address"
	databaseURLConfigKeyConstant                  = "database.url"
	sessionSecretConfigKeyConstant                = "auth.session_secret"
	sessionTTLConfigKeyConstant                   = "auth.session_ttl"
	adminEmailConfigKeyConstant                   = "auth.admin_email"
	adminPasswordConfigKeyConstant                = "auth.admin_password"
	oidcIssuerConfigKeyConstant                   = "auth.oidc.issuer_url"
	oidcClientIDConfigKeyConstant                 = "auth.oidc.client_id"
	stripeSecretKeyConfigKeyConstant              = "stripe.secret_key"
	stripePublishableKeyConfigKeyConstant         = "stripe.publishable_key"
	stripeWebhookSecretConfigKeyConstant          = "stripe.webhook_secret"
	connectorsHostnameConfigKeyConstant           = "connectors.hostname"
	connectorsIdentityConfigKeyConstant           = "connectors.repl_identity"
	connectorsRenewalConfigKeyConstant            = "connectors.web_repl_renewal"
	notionDatabaseConfigKeyConstant               = "notion.database_id"
	notionTokenConfigKeyConstant                  = "notion.token"
	scraperTimeoutConfigKeyConstant               = "scraper.timeout"
	netlifyTokenSourceConfigKeyConstant           = "deploy.netlify_token_source"
	vercelTokenSourceConfigKeyConstant            = "deploy.vercel_token_source"
	railwayTokenSourceConfigKeyConstant           = "deploy.railway_token_source"
	defaultServerPortConstant                     = 5000
	defaultDatabaseURLConstant                    = "sqlite://~/.billdesk/billdesk.db"
	defaultSessionTTLConstant                     = 7 * 24 * time.Hour
	defaultIssuerURLConstant                      = "https://replit.com/oidc"
	defaultScraperTimeoutConstant                 = 8 * time.Second
	defaultNetlifyTokenSourceConstant             = "env:NETLIFY_API_TOKEN"
	defaultVercelTokenSourceConstant              = "env:VERCEL_API_TOKEN"
	defaultRailwayTokenSourceConstant             = "env:RAILWAY_API_TOKEN"
	listenAddressTemplateConstant                 = "%s:%d"
	callbackPathConstant                          = "/api/callback"
	localBaseURLTemplateConstant                  = "http://localhost:%d"
	publicBaseURLTrailingSeparatorConstant        = "/"
	replitDomainsEnvironmentVariableConstant      = "REPLIT_DOMAINS"
	replitDomainsSeparatorConstant                = ","
	replitDomainBaseURLTemplateConstant           = "https://%s"
	githubTokenEnvironmentVariableConstant        = "GITHUB_TOKEN"
	ghTokenEnvironmentVariableConstant            = "GH_TOKEN"
	githubAPITokenEnvironmentVariableConstant     = "GITHUB_API_TOKEN"
	notionTokenEnvironmentVariableConstant        = "NOTION_TOKEN"
	sessionSecretEnvironmentVariableConstant      = "SESSION_SECRET"
	portEnvironmentVariableConstant               = "PORT"
	databaseURLEnvironmentVariableConstant        = "DATABASE_URL"
	adminEmailEnvironmentVariableConstant         = "ADMIN_EMAIL"
	adminPasswordEnvironmentVariableConstant      = "ADMIN_PASSWORD"
	issuerURLEnvironmentVariableConstant          = "ISSUER_URL"
	replIDEnvironmentVariableConstant             = "REPL_ID"
	stripeSecretEnvironmentVariableConstant       = "STRIPE_SECRET_KEY"
	stripePublishableEnvironmentVariableConstant  = "STRIPE_PUBLISHABLE_KEY"
	stripeWebhookEnvironmentVariableConstant      = "STRIPE_WEBHOOK_SECRET"
	connectorsHostnameEnvironmentVariableConstant = "REPLIT_CONNECTORS_HOSTNAME"
	replIdentityEnvironmentVariableConstant       = "REPL_IDENTITY"
	webReplRenewalEnvironmentVariableConstant     = "WEB_REPL_RENEWAL"
	notionDatabaseEnvironmentVariableConstant     = "NOTION_DATABASE_ID"
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common     ApplicationCommonConfiguration `mapstructure:"common"`
	Server     ServerConfiguration            `mapstructure:"server"`
	Database   DatabaseConfiguration          `mapstructure:"database"`
	Auth       AuthConfiguration              `mapstructure:"auth"`
	Stripe     StripeConfiguration            `mapstructure:"stripe"`
	Deploy     DeployConfiguration            `mapstructure:"deploy"`
	Scraper    ScraperConfiguration           `mapstructure:"scraper"`
	Connectors ConnectorsConfiguration        `mapstructure:"connectors"`
	GitHub     GitHubConfiguration            `mapstructure:"github"`
	Notion     NotionConfiguration            `mapstructure:"notion"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// ServerConfiguration controls the HTTP listener.
type ServerConfiguration struct {
	Address       string `mapstructure:"address"`
	Port          int    `mapstructure:"port"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	SecureCookies bool   `mapstructure:"secure_cookies"`
}

// DatabaseConfiguration locates the sqlite database.
type DatabaseConfiguration struct {
	URL string `mapstructure:"url"`
}

// AuthConfiguration holds session, local login and OIDC settings.
type AuthConfiguration struct {
	SessionSecret string            `mapstructure:"session_secret"`
	SessionTTL    time.Duration     `mapstructure:"session_ttl"`
	AdminEmail    string            `mapstructure:"admin_email"`
	AdminPassword string            `mapstructure:"admin_password"`
	AdminEmails   []string          `mapstructure:"admin_emails"`
	OIDC          OIDCConfiguration `mapstructure:"oidc"`
}

// OIDCConfiguration registers billdesk with a hosted identity provider. An empty ClientID disables hosted login.
type OIDCConfiguration struct {
	IssuerURL    string `mapstructure:"issuer_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

// StripeConfiguration carries the Stripe keys.
type StripeConfiguration struct {
	SecretKey      string `mapstructure:"secret_key"`
	PublishableKey string `mapstructure:"publishable_key"`
	WebhookSecret  string `mapstructure:"webhook_secret"`
}

// DeployConfiguration names the credential source of each deploy provider.
type DeployConfiguration struct {
	NetlifyTokenSource string `mapstructure:"netlify_token_source"`
	VercelTokenSource  string `mapstructure:"vercel_token_source"`
	RailwayTokenSource string `mapstructure:"railway_token_source"`
}

// ScraperConfiguration tunes the email scraper.
type ScraperConfiguration struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// ConnectorsConfiguration points at the hosted connector broker.
type ConnectorsConfiguration struct {
	Hostname       string `mapstructure:"hostname"`
	ReplIdentity   string `mapstructure:"repl_identity"`
	WebReplRenewal string `mapstructure:"web_repl_renewal"`
}

// GitHubConfiguration configures the GitHub REST client. An empty Token falls back to GH_TOKEN, GITHUB_TOKEN or GITHUB_API_TOKEN.
type GitHubConfiguration struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
}

// NotionConfiguration configures the knowledge base import.
type NotionConfiguration struct {
	BaseURL    string `mapstructure:"base_url"`
	Token      string `mapstructure:"token"`
	DatabaseID string `mapstructure:"database_id"`
}

// DefaultConfigurationValues returns the values applied when neither a file nor the environment sets a key.
func DefaultConfigurationValues() map[string]any {
	return map[string]any{
		commonLogLevelConfigKeyConstant:     string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant:    string(utils.LogFormatStructured),
		serverAddressConfigKeyConstant:      "",
		serverPortConfigKeyConstant:         defaultServerPortConstant,
		databaseURLConfigKeyConstant:        defaultDatabaseURLConstant,
		sessionTTLConfigKeyConstant:         defaultSessionTTLConstant,
		oidcIssuerConfigKeyConstant:         defaultIssuerURLConstant,
		scraperTimeoutConfigKeyConstant:     defaultScraperTimeoutConstant,
		netlifyTokenSourceConfigKeyConstant: defaultNetlifyTokenSourceConstant,
		vercelTokenSourceConfigKeyConstant:  defaultVercelTokenSourceConstant,
		railwayTokenSourceConfigKeyConstant: defaultRailwayTokenSourceConstant,
	}
}

// bindEnvironmentVariables maps the unprefixed deployment variables onto configuration keys.
func bindEnvironmentVariables(loader *utils.ConfigurationLoader) {
	bindings := map[string][]string{
		serverPortConfigKeyConstant:           {portEnvironmentVariableConstant},
		databaseURLConfigKeyConstant:          {databaseURLEnvironmentVariableConstant},
		sessionSecretConfigKeyConstant:        {sessionSecretEnvironmentVariableConstant},
		adminEmailConfigKeyConstant:           {adminEmailEnvironmentVariableConstant},
		adminPasswordConfigKeyConstant:        {adminPasswordEnvironmentVariableConstant},
		oidcIssuerConfigKeyConstant:           {issuerURLEnvironmentVariableConstant},
		oidcClientIDConfigKeyConstant:         {replIDEnvironmentVariableConstant},
		stripeSecretKeyConfigKeyConstant:      {stripeSecretEnvironmentVariableConstant},
		stripePublishableKeyConfigKeyConstant: {stripePublishableEnvironmentVariableConstant},
		stripeWebhookSecretConfigKeyConstant:  {stripeWebhookEnvironmentVariableConstant},
		connectorsHostnameConfigKeyConstant:   {connectorsHostnameEnvironmentVariableConstant},
		connectorsIdentityConfigKeyConstant:   {replIdentityEnvironmentVariableConstant},
		connectorsRenewalConfigKeyConstant:    {webReplRenewalEnvironmentVariableConstant},
		notionDatabaseConfigKeyConstant:       {notionDatabaseEnvironmentVariableConstant},
		notionTokenConfigKeyConstant:          {notionTokenEnvironmentVariableConstant},
	}
	for configurationKey, environmentVariableNames := range bindings {
		loader.BindEnvironmentVariables(configurationKey, environmentVariableNames...)
	}
}

// ListenAddress joins the configured host and port.
func (configuration ServerConfiguration) ListenAddress() string {
	return fmt.Sprintf(listenAddressTemplateConstant, strings.TrimSpace(configuration.Address), configuration.Port)
}

// ResolvedPublicBaseURL prefers the configured URL, then the first REPLIT_DOMAINS entry, then localhost.
func (configuration ServerConfiguration) ResolvedPublicBaseURL(environmentLookup func(string) (string, bool)) string {
	if trimmedURL := strings.TrimSpace(configuration.PublicBaseURL); len(trimmedURL) > 0 {
		return strings.TrimSuffix(trimmedURL, publicBaseURLTrailingSeparatorConstant)
	}
	if environmentLookup != nil {
		if domains, found := environmentLookup(replitDomainsEnvironmentVariableConstant); found {
			firstDomain := strings.TrimSpace(strings.Split(domains, replitDomainsSeparatorConstant)[0])
			if len(firstDomain) > 0 {
				return fmt.Sprintf(replitDomainBaseURLTemplateConstant, firstDomain)
			}
		}
	}
	return fmt.Sprintf(localBaseURLTemplateConstant, configuration.Port)
}

// HostedLoginEnabled reports whether an OIDC client is registered.
func (configuration AuthConfiguration) HostedLoginEnabled() bool {
	return len(strings.TrimSpace(configuration.OIDC.ClientID)) > 0
}

//go:embed default_config.yaml
var defaultConfigurationYAML []byte

// EmbeddedDefaultConfiguration returns a copy of the bundled config.yaml and its format.
func EmbeddedDefaultConfiguration() ([]byte, string) {
	return append([]byte(nil), defaultConfigurationYAML...), configurationTypeConstant
}
