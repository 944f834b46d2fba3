package auth_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/auth"
	"github.com/temirov/billdesk/internal/faults"
	"github.com/temirov/billdesk/internal/storage"
)

const (
	testSessionSecretConstant       = "0123456789abcdef0123456789abcdef"
	testAdminEmailConstant          = "admin@billdesk.example"
	testAdminPasswordConstant       = "correct horse battery staple"
	authSubtestNameTemplateConstant = "%d_%s"
)

type stubIdentityProvider struct {
	refreshTokens auth.Tokens
	refreshError  error
	refreshCalls  int
}

func (provider *stubIdentityProvider) AuthCodeURL(context.Context, string) (string, error) {
	return "https://issuer.example/authorize", nil
}

func (provider *stubIdentityProvider) Exchange(context.Context, string) (auth.Identity, auth.Tokens, error) {
	return auth.Identity{}, auth.Tokens{}, errors.New("not used")
}

func (provider *stubIdentityProvider) Refresh(_ context.Context, refreshToken string) (auth.Tokens, error) {
	provider.refreshCalls++
	if provider.refreshError != nil {
		return auth.Tokens{}, provider.refreshError
	}
	return provider.refreshTokens, nil
}

func (provider *stubIdentityProvider) EndSessionURL(context.Context, string) string {
	return ""
}

func openAuthStore(testInstance *testing.T) *storage.Store {
	testInstance.Helper()
	store, openError := storage.Open(zap.NewNop(), filepath.Join(testInstance.TempDir(), "auth.db"))
	require.NoError(testInstance, openError)
	testInstance.Cleanup(func() { store.Close() })
	return store
}

func requestWithCookie(cookie *http.Cookie) *http.Request {
	request := httptest.NewRequest(http.MethodGet, "/api/auth/user", nil)
	if cookie != nil {
		request.AddCookie(cookie)
	}
	return request
}

func TestPasswordHashing(testInstance *testing.T) {
	encodedHash, hashError := auth.HashPassword(testAdminPasswordConstant)
	require.NoError(testInstance, hashError)
	require.True(testInstance, strings.HasPrefix(encodedHash, "$argon2id$v=19$"))

	matches, verifyError := auth.VerifyPassword(encodedHash, testAdminPasswordConstant)
	require.NoError(testInstance, verifyError)
	require.True(testInstance, matches)

	matches, verifyError = auth.VerifyPassword(encodedHash, "wrong")
	require.NoError(testInstance, verifyError)
	require.False(testInstance, matches)

	_, malformedError := auth.VerifyPassword("plain", testAdminPasswordConstant)
	require.ErrorIs(testInstance, malformedError, auth.ErrMalformedPasswordHash)

	_, emptyError := auth.HashPassword("")
	require.Error(testInstance, emptyError)
}

func TestCookieSealer(testInstance *testing.T) {
	_, shortSecretError := auth.NewCookieSealer("short")
	require.Error(testInstance, shortSecretError)

	sealer, sealerError := auth.NewCookieSealer(testSessionSecretConstant)
	require.NoError(testInstance, sealerError)
	sealed, sealError := sealer.Seal("session-123")
	require.NoError(testInstance, sealError)
	require.NotContains(testInstance, sealed, "session-123")

	opened, openError := sealer.Open(sealed)
	require.NoError(testInstance, openError)
	require.Equal(testInstance, "session-123", opened)

	otherSealer, otherError := auth.NewCookieSealer(testSessionSecretConstant + "-rotated")
	require.NoError(testInstance, otherError)
	_, foreignError := otherSealer.Open(sealed)
	require.ErrorIs(testInstance, foreignError, auth.ErrMalformedCookie)

	tampered := []byte(sealed)
	tampered[len(tampered)-1] ^= 0x01
	_, tamperedError := sealer.Open(string(tampered))
	require.Error(testInstance, tamperedError)
}

func TestAPIKeyLifecycle(testInstance *testing.T) {
	store := openAuthStore(testInstance)
	service, serviceError := auth.NewAPIKeyService(zap.NewNop(), store)
	require.NoError(testInstance, serviceError)
	executionContext := context.Background()

	_, _, nameError := service.Create(executionContext, "  ")
	require.True(testInstance, faults.IsInvalidInput(nameError))

	apiKey, plaintext, createError := service.Create(executionContext, "deploy bot")
	require.NoError(testInstance, createError)
	require.Regexp(testInstance, `^bd_[0-9a-f]{40}$`, plaintext)
	require.Equal(testInstance, plaintext[:8], apiKey.Prefix)
	require.Equal(testInstance, auth.HashAPIKey(plaintext), apiKey.KeyHash)

	authenticated, authenticateError := service.Authenticate(executionContext, plaintext)
	require.NoError(testInstance, authenticateError)
	require.Equal(testInstance, apiKey.ID, authenticated.ID)
	require.NotNil(testInstance, authenticated.LastUsedAt)

	_, unknownError := service.Authenticate(executionContext, "bd_"+strings.Repeat("0", 40))
	require.ErrorIs(testInstance, unknownError, faults.ErrUnauthorized)
	_, shapeError := service.Authenticate(executionContext, "token")
	require.ErrorIs(testInstance, shapeError, faults.ErrUnauthorized)

	require.NoError(testInstance, service.Revoke(executionContext, apiKey.ID))
	_, revokedError := service.Authenticate(executionContext, plaintext)
	require.ErrorIs(testInstance, revokedError, faults.ErrUnauthorized)

	apiKeys, listError := service.List(executionContext)
	require.NoError(testInstance, listError)
	require.Len(testInstance, apiKeys, 1)
}

func TestLocalAuthenticator(testInstance *testing.T) {
	store := openAuthStore(testInstance)
	authenticator, authenticatorError := auth.NewLocalAuthenticator(store, testAdminEmailConstant, testAdminPasswordConstant)
	require.NoError(testInstance, authenticatorError)
	disabledAuthenticator, disabledError := auth.NewLocalAuthenticator(store, testAdminEmailConstant, "")
	require.NoError(testInstance, disabledError)

	testCases := []struct {
		name          string
		authenticator *auth.LocalAuthenticator
		email         string
		password      string
		check         func(require.TestingT, error)
	}{
		{name: "valid credentials", authenticator: authenticator, email: " Admin@Billdesk.example ", password: testAdminPasswordConstant, check: func(t require.TestingT, err error) { require.NoError(t, err) }},
		{name: "wrong password", authenticator: authenticator, email: testAdminEmailConstant, password: "nope", check: func(t require.TestingT, err error) { require.ErrorIs(t, err, auth.ErrInvalidCredentials) }},
		{name: "wrong email", authenticator: authenticator, email: "other@billdesk.example", password: testAdminPasswordConstant, check: func(t require.TestingT, err error) { require.ErrorIs(t, err, auth.ErrInvalidCredentials) }},
		{name: "missing password", authenticator: authenticator, email: testAdminEmailConstant, check: func(t require.TestingT, err error) { require.True(t, faults.IsInvalidInput(err)) }},
		{name: "disabled", authenticator: disabledAuthenticator, email: testAdminEmailConstant, password: testAdminPasswordConstant, check: func(t require.TestingT, err error) { require.ErrorIs(t, err, faults.ErrForbidden) }},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(authSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(subTest *testing.T) {
			_, authenticateError := testCase.authenticator.Authenticate(context.Background(), testCase.email, testCase.password)
			testCase.check(subTest, authenticateError)
		})
	}

	firstUser, firstError := authenticator.Authenticate(context.Background(), testAdminEmailConstant, testAdminPasswordConstant)
	require.NoError(testInstance, firstError)
	secondUser, secondError := authenticator.Authenticate(context.Background(), testAdminEmailConstant, testAdminPasswordConstant)
	require.NoError(testInstance, secondError)
	require.Equal(testInstance, firstUser.ID, secondUser.ID)
	require.True(testInstance, secondUser.IsAdmin())
}

func TestSessionManagerResolveAndRefresh(testInstance *testing.T) {
	store := openAuthStore(testInstance)
	sealer, sealerError := auth.NewCookieSealer(testSessionSecretConstant)
	require.NoError(testInstance, sealerError)
	identityProvider := &stubIdentityProvider{refreshTokens: auth.Tokens{AccessToken: "fresh", Expiry: time.Now().Add(time.Hour)}}
	manager, managerError := auth.NewSessionManager(zap.NewNop(), store, sealer, identityProvider, auth.SessionConfiguration{AdminEmails: []string{testAdminEmailConstant}})
	require.NoError(testInstance, managerError)
	executionContext := context.Background()

	user, upsertError := manager.UpsertIdentity(executionContext, auth.Identity{Subject: "oidc|42", Email: testAdminEmailConstant, FirstName: "Ada"})
	require.NoError(testInstance, upsertError)
	require.True(testInstance, user.IsAdmin())

	_, _, missingError := manager.Resolve(executionContext, requestWithCookie(nil))
	require.ErrorIs(testInstance, missingError, faults.ErrUnauthorized)
	_, _, garbageError := manager.Resolve(executionContext, requestWithCookie(&http.Cookie{Name: auth.DefaultSessionCookieName, Value: "garbage"}))
	require.ErrorIs(testInstance, garbageError, faults.ErrUnauthorized)

	validCookie, startError := manager.Start(executionContext, user, auth.Tokens{AccessToken: "initial", RefreshToken: "refresh", Expiry: time.Now().Add(time.Hour)})
	require.NoError(testInstance, startError)
	require.True(testInstance, validCookie.HttpOnly)
	require.Equal(testInstance, http.SameSiteLaxMode, validCookie.SameSite)
	resolvedUser, resolvedSession, resolveError := manager.Resolve(executionContext, requestWithCookie(validCookie))
	require.NoError(testInstance, resolveError)
	require.Equal(testInstance, user.ID, resolvedUser.ID)
	require.Equal(testInstance, "initial", resolvedSession.AccessToken)
	require.Zero(testInstance, identityProvider.refreshCalls)

	expiredCookie, expiredStartError := manager.Start(executionContext, user, auth.Tokens{AccessToken: "stale", RefreshToken: "refresh", Expiry: time.Now().Add(-time.Minute)})
	require.NoError(testInstance, expiredStartError)
	_, refreshedSession, refreshError := manager.Resolve(executionContext, requestWithCookie(expiredCookie))
	require.NoError(testInstance, refreshError)
	require.Equal(testInstance, "fresh", refreshedSession.AccessToken)
	require.Equal(testInstance, "refresh", refreshedSession.RefreshToken)
	require.Equal(testInstance, 1, identityProvider.refreshCalls)

	noRefreshCookie, noRefreshStartError := manager.Start(executionContext, user, auth.Tokens{AccessToken: "stale", Expiry: time.Now().Add(-time.Minute)})
	require.NoError(testInstance, noRefreshStartError)
	_, _, noRefreshError := manager.Resolve(executionContext, requestWithCookie(noRefreshCookie))
	require.ErrorIs(testInstance, noRefreshError, faults.ErrUnauthorized)

	identityProvider.refreshError = errors.New("invalid_grant")
	failingCookie, failingStartError := manager.Start(executionContext, user, auth.Tokens{AccessToken: "stale", RefreshToken: "revoked", Expiry: time.Now().Add(-time.Minute)})
	require.NoError(testInstance, failingStartError)
	_, _, failedRefreshError := manager.Resolve(executionContext, requestWithCookie(failingCookie))
	require.ErrorIs(testInstance, failedRefreshError, faults.ErrUnauthorized)

	clearingCookie := manager.End(executionContext, requestWithCookie(validCookie))
	require.Equal(testInstance, -1, clearingCookie.MaxAge)
	_, _, endedError := manager.Resolve(executionContext, requestWithCookie(validCookie))
	require.ErrorIs(testInstance, endedError, faults.ErrUnauthorized)
}

func TestUpsertIdentityKeepsLocalAdminAccount(testInstance *testing.T) {
	store := openAuthStore(testInstance)
	sealer, sealerError := auth.NewCookieSealer(testSessionSecretConstant)
	require.NoError(testInstance, sealerError)
	manager, managerError := auth.NewSessionManager(zap.NewNop(), store, sealer, nil, auth.SessionConfiguration{})
	require.NoError(testInstance, managerError)
	authenticator, authenticatorError := auth.NewLocalAuthenticator(store, testAdminEmailConstant, testAdminPasswordConstant)
	require.NoError(testInstance, authenticatorError)

	localAdmin, localError := authenticator.Authenticate(context.Background(), testAdminEmailConstant, testAdminPasswordConstant)
	require.NoError(testInstance, localError)

	hostedUser, hostedError := manager.UpsertIdentity(context.Background(), auth.Identity{Subject: "oidc|7", Email: testAdminEmailConstant})
	require.NoError(testInstance, hostedError)
	require.Equal(testInstance, localAdmin.ID, hostedUser.ID)
	require.True(testInstance, hostedUser.IsAdmin())

	_, identityError := manager.UpsertIdentity(context.Background(), auth.Identity{Email: "nobody@billdesk.example"})
	require.Error(testInstance, identityError)
}
