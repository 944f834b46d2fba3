package connectors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/apiclient"
)

// Connector names understood by the broker.
const (
	ConnectorGitHub = "github"
	ConnectorNotion = "notion"
)

const (
	connectionPathTemplateConstant    = "/api/v2/connection?include_secrets=true&connector_names=%s"
	replitTokenHeaderConstant         = "X_REPLIT_TOKEN"
	replIdentityPrefixConstant        = "repl "
	deploymentRenewalPrefixConstant   = "depl "
	httpsSchemePrefixConstant         = "https://"
	schemeSeparatorConstant           = "://"
	fetchConnectionOperationConstant  = "connectors.fetch"
	brokerDisabledMessageConstant     = "connector broker is not configured"
	identityMissingMessageConstant    = "connector identity token is not available"
	connectionMissingTemplateConstant = "%s connector is not connected"
	tokenMissingTemplateConstant      = "%s connector returned no access token"
	noTokenTemplateConstant           = "no %s token configured"
	tokenFetchedMessageConstant       = "connector token fetched"
	tokenFetchFailedMessageConstant   = "connector token fetch failed, using static token"
	logFieldConnectorConstant         = "connector"
	logFieldExpiresAtConstant         = "expires_at"
)

// ErrBrokerDisabled indicates that no connector host is configured.
var ErrBrokerDisabled = errors.New(brokerDisabledMessageConstant)

// Configuration locates the hosted connector broker.
type Configuration struct {
	Hostname       string
	ReplIdentity   string
	WebReplRenewal string
	HTTPClient     *http.Client
}

type cachedToken struct {
	accessToken string
	expiresAt   time.Time
}

type connectionResponse struct {
	Items []struct {
		Settings struct {
			AccessToken string `json:"access_token"`
			ExpiresAt   string `json:"expires_at"`
			OAuth       struct {
				Credentials struct {
					AccessToken string `json:"access_token"`
				} `json:"credentials"`
			} `json:"oauth"`
		} `json:"settings"`
	} `json:"items"`
}

// Broker fetches short-lived OAuth tokens from the connector host and caches them until they expire.
type Broker struct {
	logger        *zap.Logger
	configuration Configuration
	baseURL       string
	now           func() time.Time

	cacheMutex sync.Mutex
	cache      map[string]cachedToken
}

// NewBroker constructs a Broker. A blank hostname yields a disabled broker.
func NewBroker(logger *zap.Logger, configuration Configuration) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	broker := &Broker{
		logger:        logger,
		configuration: configuration,
		now:           time.Now,
		cache:         make(map[string]cachedToken),
	}
	hostname := strings.TrimSpace(configuration.Hostname)
	if len(hostname) > 0 && !strings.Contains(hostname, schemeSeparatorConstant) {
		hostname = httpsSchemePrefixConstant + hostname
	}
	broker.baseURL = hostname
	return broker
}

// Enabled reports whether a connector host is configured.
func (broker *Broker) Enabled() bool {
	return broker != nil && len(broker.baseURL) > 0
}

// AccessToken returns a cached token for connectorName or fetches a fresh one.
// Tokens without an expiry are not cached.
func (broker *Broker) AccessToken(executionContext context.Context, connectorName string) (string, error) {
	if !broker.Enabled() {
		return "", ErrBrokerDisabled
	}
	broker.cacheMutex.Lock()
	defer broker.cacheMutex.Unlock()

	if cached, found := broker.cache[connectorName]; found && broker.now().Before(cached.expiresAt) {
		return cached.accessToken, nil
	}

	identityHeader, identityError := broker.identityHeader()
	if identityError != nil {
		return "", identityError
	}
	client, clientError := broker.clientWithIdentity(identityHeader)
	if clientError != nil {
		return "", clientError
	}
	var response connectionResponse
	path := fmt.Sprintf(connectionPathTemplateConstant, url.QueryEscape(connectorName))
	if requestError := client.Do(executionContext, fetchConnectionOperationConstant, http.MethodGet, path, nil, &response); requestError != nil {
		return "", requestError
	}
	if len(response.Items) == 0 {
		return "", fmt.Errorf(connectionMissingTemplateConstant, connectorName)
	}
	settings := response.Items[0].Settings
	accessToken := settings.AccessToken
	if len(accessToken) == 0 {
		accessToken = settings.OAuth.Credentials.AccessToken
	}
	if len(accessToken) == 0 {
		return "", fmt.Errorf(tokenMissingTemplateConstant, connectorName)
	}

	if expiresAt, parseError := time.Parse(time.RFC3339, settings.ExpiresAt); parseError == nil {
		broker.cache[connectorName] = cachedToken{accessToken: accessToken, expiresAt: expiresAt}
		broker.logger.Debug(tokenFetchedMessageConstant, zap.String(logFieldConnectorConstant, connectorName), zap.Time(logFieldExpiresAtConstant, expiresAt))
	} else {
		delete(broker.cache, connectorName)
	}
	return accessToken, nil
}

// TokenFunc returns an apiclient.TokenFunc that prefers the broker and falls back to staticToken.
func (broker *Broker) TokenFunc(connectorName string, staticToken string) apiclient.TokenFunc {
	return func(executionContext context.Context) (string, error) {
		if broker.Enabled() {
			accessToken, accessError := broker.AccessToken(executionContext, connectorName)
			if accessError == nil {
				return accessToken, nil
			}
			if len(staticToken) == 0 {
				return "", accessError
			}
			broker.logger.Warn(tokenFetchFailedMessageConstant, zap.String(logFieldConnectorConstant, connectorName), zap.Error(accessError))
		}
		if len(staticToken) == 0 {
			return "", fmt.Errorf(noTokenTemplateConstant, connectorName)
		}
		return staticToken, nil
	}
}

func (broker *Broker) identityHeader() (string, error) {
	if identity := strings.TrimSpace(broker.configuration.ReplIdentity); len(identity) > 0 {
		return replIdentityPrefixConstant + identity, nil
	}
	if renewal := strings.TrimSpace(broker.configuration.WebReplRenewal); len(renewal) > 0 {
		return deploymentRenewalPrefixConstant + renewal, nil
	}
	return "", errors.New(identityMissingMessageConstant)
}

func (broker *Broker) clientWithIdentity(identityHeader string) (*apiclient.Client, error) {
	return apiclient.NewClient(broker.logger, apiclient.Configuration{
		BaseURL:    broker.baseURL,
		Headers:    map[string]string{replitTokenHeaderConstant: identityHeader},
		HTTPClient: broker.configuration.HTTPClient,
	})
}
