package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const (
	idTokenExtraKeyConstant             = "id_token"
	missingIDTokenMessageConstant       = "token response did not include an id_token"
	missingRefreshTokenMessageConstant  = "no refresh token available"
	discoveryOperationNameConstant      = "oidc.discover"
	exchangeOperationNameConstant       = "oidc.exchange"
	verifyOperationNameConstant         = "oidc.verify"
	refreshOperationNameConstant        = "oidc.refresh"
	offlineAccessScopeConstant          = "offline_access"
	profileScopeConstant                = "profile"
	emailScopeConstant                  = "email"
	issuerRequiredMessageConstant       = "oidc issuer url is required"
	clientIDRequiredMessageConstant     = "oidc client id is required"
	endSessionClientIDParameterConstant = "client_id"
	endSessionRedirectParameterConstant = "post_logout_redirect_uri"
)

// ErrNoRefreshToken indicates a session whose access token cannot be renewed.
var ErrNoRefreshToken = errors.New(missingRefreshTokenMessageConstant)

// Identity holds the verified claims used to upsert a user.
type Identity struct {
	Subject         string
	Email           string
	FirstName       string
	LastName        string
	ProfileImageURL string
}

// Tokens carries OAuth tokens and the access token expiry.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// IdentityProvider performs hosted login against an external identity provider.
type IdentityProvider interface {
	AuthCodeURL(executionContext context.Context, state string) (string, error)
	Exchange(executionContext context.Context, code string) (Identity, Tokens, error)
	Refresh(executionContext context.Context, refreshToken string) (Tokens, error)
	EndSessionURL(executionContext context.Context, postLogoutRedirectURL string) string
}

// OIDCConfiguration describes the relying party registration.
type OIDCConfiguration struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// OIDCProvider implements IdentityProvider with lazily discovered, memoized provider metadata.
type OIDCProvider struct {
	configuration OIDCConfiguration

	discoveryMutex sync.Mutex
	discovered     *discoveredProvider
}

type discoveredProvider struct {
	oauthConfiguration oauth2.Config
	verifier           *oidc.IDTokenVerifier
	endSessionEndpoint string
}

type identityClaims struct {
	Subject         string `json:"sub"`
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	GivenName       string `json:"given_name"`
	FamilyName      string `json:"family_name"`
	ProfileImageURL string `json:"profile_image_url"`
	Picture         string `json:"picture"`
}

type discoveryClaims struct {
	EndSessionEndpoint string `json:"end_session_endpoint"`
}

// NewOIDCProvider validates the configuration. Discovery happens on first use.
func NewOIDCProvider(configuration OIDCConfiguration) (*OIDCProvider, error) {
	if len(strings.TrimSpace(configuration.IssuerURL)) == 0 {
		return nil, errors.New(issuerRequiredMessageConstant)
	}
	if len(strings.TrimSpace(configuration.ClientID)) == 0 {
		return nil, errors.New(clientIDRequiredMessageConstant)
	}
	if len(configuration.Scopes) == 0 {
		configuration.Scopes = []string{oidc.ScopeOpenID, emailScopeConstant, profileScopeConstant, offlineAccessScopeConstant}
	}
	return &OIDCProvider{configuration: configuration}, nil
}

// AuthCodeURL returns the authorization redirect for the given state.
func (provider *OIDCProvider) AuthCodeURL(executionContext context.Context, state string) (string, error) {
	discovered, discoveryError := provider.discover(executionContext)
	if discoveryError != nil {
		return "", discoveryError
	}
	return discovered.oauthConfiguration.AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// Exchange trades an authorization code for tokens and verifies the ID token.
func (provider *OIDCProvider) Exchange(executionContext context.Context, code string) (Identity, Tokens, error) {
	discovered, discoveryError := provider.discover(executionContext)
	if discoveryError != nil {
		return Identity{}, Tokens{}, discoveryError
	}
	token, exchangeError := discovered.oauthConfiguration.Exchange(executionContext, code)
	if exchangeError != nil {
		return Identity{}, Tokens{}, fmt.Errorf("%s: %w", exchangeOperationNameConstant, exchangeError)
	}
	rawIDToken, hasIDToken := token.Extra(idTokenExtraKeyConstant).(string)
	if !hasIDToken || len(rawIDToken) == 0 {
		return Identity{}, Tokens{}, errors.New(missingIDTokenMessageConstant)
	}
	idToken, verifyError := discovered.verifier.Verify(executionContext, rawIDToken)
	if verifyError != nil {
		return Identity{}, Tokens{}, fmt.Errorf("%s: %w", verifyOperationNameConstant, verifyError)
	}
	var claims identityClaims
	if claimsError := idToken.Claims(&claims); claimsError != nil {
		return Identity{}, Tokens{}, fmt.Errorf("%s: %w", verifyOperationNameConstant, claimsError)
	}
	return claims.identity(), tokensFrom(token), nil
}

// Refresh obtains a new access token using a refresh token.
func (provider *OIDCProvider) Refresh(executionContext context.Context, refreshToken string) (Tokens, error) {
	if len(refreshToken) == 0 {
		return Tokens{}, ErrNoRefreshToken
	}
	discovered, discoveryError := provider.discover(executionContext)
	if discoveryError != nil {
		return Tokens{}, discoveryError
	}
	expiredToken := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Unix(1, 0)}
	token, refreshError := discovered.oauthConfiguration.TokenSource(executionContext, expiredToken).Token()
	if refreshError != nil {
		return Tokens{}, fmt.Errorf("%s: %w", refreshOperationNameConstant, refreshError)
	}
	refreshed := tokensFrom(token)
	if len(refreshed.RefreshToken) == 0 {
		refreshed.RefreshToken = refreshToken
	}
	return refreshed, nil
}

// EndSessionURL returns the provider logout URL, or an empty string when none is advertised.
func (provider *OIDCProvider) EndSessionURL(executionContext context.Context, postLogoutRedirectURL string) string {
	discovered, discoveryError := provider.discover(executionContext)
	if discoveryError != nil || len(discovered.endSessionEndpoint) == 0 {
		return ""
	}
	endSessionURL, parseError := url.Parse(discovered.endSessionEndpoint)
	if parseError != nil {
		return ""
	}
	query := endSessionURL.Query()
	query.Set(endSessionClientIDParameterConstant, provider.configuration.ClientID)
	if len(postLogoutRedirectURL) > 0 {
		query.Set(endSessionRedirectParameterConstant, postLogoutRedirectURL)
	}
	endSessionURL.RawQuery = query.Encode()
	return endSessionURL.String()
}

// discover fetches provider metadata once; failed attempts are retried on the next call.
func (provider *OIDCProvider) discover(executionContext context.Context) (*discoveredProvider, error) {
	provider.discoveryMutex.Lock()
	defer provider.discoveryMutex.Unlock()
	if provider.discovered != nil {
		return provider.discovered, nil
	}

	// the provider keeps this context for later key set refreshes, so request cancellation must not reach it
	oidcProvider, providerError := oidc.NewProvider(context.WithoutCancel(executionContext), provider.configuration.IssuerURL)
	if providerError != nil {
		return nil, fmt.Errorf("%s: %w", discoveryOperationNameConstant, providerError)
	}
	var metadata discoveryClaims
	if claimsError := oidcProvider.Claims(&metadata); claimsError != nil {
		return nil, fmt.Errorf("%s: %w", discoveryOperationNameConstant, claimsError)
	}
	provider.discovered = &discoveredProvider{
		oauthConfiguration: oauth2.Config{
			ClientID:     provider.configuration.ClientID,
			ClientSecret: provider.configuration.ClientSecret,
			RedirectURL:  provider.configuration.RedirectURL,
			Endpoint:     oidcProvider.Endpoint(),
			Scopes:       provider.configuration.Scopes,
		},
		verifier:           oidcProvider.Verifier(&oidc.Config{ClientID: provider.configuration.ClientID}),
		endSessionEndpoint: metadata.EndSessionEndpoint,
	}
	return provider.discovered, nil
}

func (claims identityClaims) identity() Identity {
	identity := Identity{
		Subject:         claims.Subject,
		Email:           strings.ToLower(strings.TrimSpace(claims.Email)),
		FirstName:       claims.FirstName,
		LastName:        claims.LastName,
		ProfileImageURL: claims.ProfileImageURL,
	}
	if len(identity.FirstName) == 0 {
		identity.FirstName = claims.GivenName
	}
	if len(identity.LastName) == 0 {
		identity.LastName = claims.FamilyName
	}
	if len(identity.ProfileImageURL) == 0 {
		identity.ProfileImageURL = claims.Picture
	}
	return identity
}

func tokensFrom(token *oauth2.Token) Tokens {
	return Tokens{AccessToken: token.AccessToken, RefreshToken: token.RefreshToken, Expiry: token.Expiry}
}
