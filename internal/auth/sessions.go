package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/faults"
)

const (
	// DefaultSessionCookieName names the sealed session cookie.
	DefaultSessionCookieName = "billdesk_session"
	// DefaultSessionTTL bounds a session's lifetime.
	DefaultSessionTTL = 7 * 24 * time.Hour

	stateRandomBytesConstant              = 16
	storeMissingMessageConstant           = "auth store must be provided"
	sealerMissingMessageConstant          = "cookie sealer must be provided"
	cookiePathConstant                    = "/"
	sessionRefreshedMessageConstant       = "session tokens refreshed"
	sessionRefreshFailedMessageConstant   = "session token refresh failed"
	logFieldSessionIDConstant             = "session_id"
	logFieldUserIDConstant                = "user_id"
	emailFieldNameConstant                = "email"
	passwordFieldNameConstant             = "password"
	sessionDiscardFailedMessageConstant   = "session delete failed"
	identityWithoutSubjectMessageConstant = "identity has no subject"
	invalidCredentialsMessageConstant     = "invalid email or password"
)

// ErrInvalidCredentials indicates a failed local login.
var ErrInvalidCredentials = errors.New(invalidCredentialsMessageConstant)

// SessionConfiguration controls session cookies and lifetime.
type SessionConfiguration struct {
	CookieName   string
	TTL          time.Duration
	SecureCookie bool
	AdminEmails  []string
}

// SessionManager issues, resolves, refreshes and ends cookie-backed sessions.
type SessionManager struct {
	logger           *zap.Logger
	store            Store
	sealer           *CookieSealer
	identityProvider IdentityProvider
	configuration    SessionConfiguration
	now              func() time.Time
}

// NewSessionManager constructs a SessionManager. identityProvider may be nil when hosted login is disabled.
func NewSessionManager(logger *zap.Logger, store Store, sealer *CookieSealer, identityProvider IdentityProvider, configuration SessionConfiguration) (*SessionManager, error) {
	if store == nil {
		return nil, errors.New(storeMissingMessageConstant)
	}
	if sealer == nil {
		return nil, errors.New(sealerMissingMessageConstant)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(configuration.CookieName) == 0 {
		configuration.CookieName = DefaultSessionCookieName
	}
	if configuration.TTL <= 0 {
		configuration.TTL = DefaultSessionTTL
	}
	return &SessionManager{
		logger:           logger,
		store:            store,
		sealer:           sealer,
		identityProvider: identityProvider,
		configuration:    configuration,
		now:              func() time.Time { return time.Now().UTC() },
	}, nil
}

// IdentityProvider returns the hosted login provider, or nil when only local login is available.
func (manager *SessionManager) IdentityProvider() IdentityProvider {
	return manager.identityProvider
}

// Start persists a session for user and returns the cookie to set.
// Tokens with a zero expiry produce a session that lasts the configured TTL.
func (manager *SessionManager) Start(executionContext context.Context, user User, tokens Tokens) (*http.Cookie, error) {
	now := manager.now()
	expiresAt := tokens.Expiry.UTC()
	if tokens.Expiry.IsZero() {
		expiresAt = now.Add(manager.configuration.TTL)
	}
	session := Session{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    expiresAt,
		CreatedAt:    now,
	}
	if createError := manager.store.CreateSession(executionContext, session); createError != nil {
		return nil, createError
	}
	sealedValue, sealError := manager.sealer.Seal(session.ID)
	if sealError != nil {
		return nil, sealError
	}
	return manager.cookie(sealedValue, int(manager.configuration.TTL/time.Second)), nil
}

// Resolve returns the user behind the request's session cookie, refreshing expired tokens when possible.
func (manager *SessionManager) Resolve(executionContext context.Context, request *http.Request) (User, Session, error) {
	sessionCookie, cookieError := request.Cookie(manager.configuration.CookieName)
	if cookieError != nil || len(sessionCookie.Value) == 0 {
		return User{}, Session{}, faults.ErrUnauthorized
	}
	sessionID, openError := manager.sealer.Open(sessionCookie.Value)
	if openError != nil {
		return User{}, Session{}, faults.ErrUnauthorized
	}
	session, sessionError := manager.store.GetSession(executionContext, sessionID)
	if sessionError != nil {
		if faults.IsNotFound(sessionError) {
			return User{}, Session{}, faults.ErrUnauthorized
		}
		return User{}, Session{}, sessionError
	}

	now := manager.now()
	if !now.Before(session.CreatedAt.Add(manager.configuration.TTL)) {
		manager.discard(executionContext, session.ID)
		return User{}, Session{}, faults.ErrUnauthorized
	}
	if session.Expired(now) {
		refreshedSession, refreshError := manager.refresh(executionContext, session)
		if refreshError != nil {
			manager.logger.Info(sessionRefreshFailedMessageConstant, zap.String(logFieldSessionIDConstant, session.ID), zap.Error(refreshError))
			manager.discard(executionContext, session.ID)
			return User{}, Session{}, faults.ErrUnauthorized
		}
		session = refreshedSession
	}

	user, userError := manager.store.GetUser(executionContext, session.UserID)
	if userError != nil {
		if faults.IsNotFound(userError) {
			return User{}, Session{}, faults.ErrUnauthorized
		}
		return User{}, Session{}, userError
	}
	return user, session, nil
}

// End deletes the request's session, if any, and returns a cookie that clears it.
func (manager *SessionManager) End(executionContext context.Context, request *http.Request) *http.Cookie {
	if sessionCookie, cookieError := request.Cookie(manager.configuration.CookieName); cookieError == nil {
		if sessionID, openError := manager.sealer.Open(sessionCookie.Value); openError == nil {
			manager.discard(executionContext, sessionID)
		}
	}
	return manager.cookie("", -1)
}

// UpsertIdentity records a hosted-login user, granting admin to configured admin emails.
func (manager *SessionManager) UpsertIdentity(executionContext context.Context, identity Identity) (User, error) {
	if len(identity.Subject) == 0 {
		return User{}, errors.New(identityWithoutSubjectMessageConstant)
	}
	now := manager.now()
	user := User{
		ID:              identity.Subject,
		Email:           identity.Email,
		FirstName:       identity.FirstName,
		LastName:        identity.LastName,
		ProfileImageURL: identity.ProfileImageURL,
		Role:            RoleMember,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	existingUser, lookupError := manager.store.GetUser(executionContext, identity.Subject)
	if lookupError != nil && len(identity.Email) > 0 {
		existingUser, lookupError = manager.store.FindUserByEmail(executionContext, identity.Email)
	}
	if lookupError == nil {
		user.ID = existingUser.ID
		user.Role = existingUser.Role
		user.PasswordHash = existingUser.PasswordHash
		user.CreatedAt = existingUser.CreatedAt
	}
	for _, adminEmail := range manager.configuration.AdminEmails {
		if strings.EqualFold(strings.TrimSpace(adminEmail), identity.Email) && len(identity.Email) > 0 {
			user.Role = RoleAdmin
		}
	}
	return manager.store.UpsertUser(executionContext, user)
}

// NewState returns a random value for the OIDC state parameter.
func NewState() (string, error) {
	stateBytes := make([]byte, stateRandomBytesConstant)
	if _, readError := rand.Read(stateBytes); readError != nil {
		return "", readError
	}
	return hex.EncodeToString(stateBytes), nil
}

func (manager *SessionManager) refresh(executionContext context.Context, session Session) (Session, error) {
	if manager.identityProvider == nil || len(session.RefreshToken) == 0 {
		return Session{}, ErrNoRefreshToken
	}
	tokens, refreshError := manager.identityProvider.Refresh(executionContext, session.RefreshToken)
	if refreshError != nil {
		return Session{}, refreshError
	}
	session.AccessToken = tokens.AccessToken
	if len(tokens.RefreshToken) > 0 {
		session.RefreshToken = tokens.RefreshToken
	}
	session.ExpiresAt = tokens.Expiry.UTC()
	if tokens.Expiry.IsZero() {
		session.ExpiresAt = session.CreatedAt.Add(manager.configuration.TTL)
	}
	if updateError := manager.store.UpdateSession(executionContext, session); updateError != nil {
		return Session{}, updateError
	}
	manager.logger.Debug(sessionRefreshedMessageConstant, zap.String(logFieldSessionIDConstant, session.ID), zap.String(logFieldUserIDConstant, session.UserID))
	return session, nil
}

func (manager *SessionManager) discard(executionContext context.Context, sessionID string) {
	if deleteError := manager.store.DeleteSession(executionContext, sessionID); deleteError != nil {
		manager.logger.Warn(sessionDiscardFailedMessageConstant, zap.String(logFieldSessionIDConstant, sessionID), zap.Error(deleteError))
	}
}

func (manager *SessionManager) cookie(value string, maxAgeSeconds int) *http.Cookie {
	return &http.Cookie{
		Name:     manager.configuration.CookieName,
		Value:    value,
		Path:     cookiePathConstant,
		MaxAge:   maxAgeSeconds,
		HttpOnly: true,
		Secure:   manager.configuration.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

// LocalAuthenticator checks the configured admin email and password.
type LocalAuthenticator struct {
	users        UserRepository
	adminEmail   string
	passwordHash string
	now          func() time.Time
}

// NewLocalAuthenticator hashes adminPassword once. An empty password disables local login.
func NewLocalAuthenticator(users UserRepository, adminEmail string, adminPassword string) (*LocalAuthenticator, error) {
	if users == nil {
		return nil, errors.New(storeMissingMessageConstant)
	}
	authenticator := &LocalAuthenticator{
		users:      users,
		adminEmail: strings.ToLower(strings.TrimSpace(adminEmail)),
		now:        func() time.Time { return time.Now().UTC() },
	}
	if len(adminPassword) > 0 && len(authenticator.adminEmail) > 0 {
		passwordHash, hashError := HashPassword(adminPassword)
		if hashError != nil {
			return nil, hashError
		}
		authenticator.passwordHash = passwordHash
	}
	return authenticator, nil
}

// Enabled reports whether local login is configured.
func (authenticator *LocalAuthenticator) Enabled() bool {
	return authenticator != nil && len(authenticator.passwordHash) > 0
}

// Authenticate verifies credentials and upserts the admin user.
func (authenticator *LocalAuthenticator) Authenticate(executionContext context.Context, email string, password string) (User, error) {
	normalizedEmail := strings.ToLower(strings.TrimSpace(email))
	if len(normalizedEmail) == 0 {
		return User{}, faults.Required(emailFieldNameConstant)
	}
	if len(password) == 0 {
		return User{}, faults.Required(passwordFieldNameConstant)
	}
	if !authenticator.Enabled() {
		return User{}, faults.ErrForbidden
	}
	passwordMatches, verifyError := VerifyPassword(authenticator.passwordHash, password)
	if verifyError != nil {
		return User{}, verifyError
	}
	if normalizedEmail != authenticator.adminEmail || !passwordMatches {
		return User{}, ErrInvalidCredentials
	}

	now := authenticator.now()
	adminUser := User{ID: uuid.NewString(), Email: normalizedEmail, CreatedAt: now}
	if existingUser, lookupError := authenticator.users.FindUserByEmail(executionContext, normalizedEmail); lookupError == nil {
		adminUser = existingUser
	} else if !faults.IsNotFound(lookupError) {
		return User{}, lookupError
	}
	adminUser.Role = RoleAdmin
	adminUser.PasswordHash = authenticator.passwordHash
	adminUser.UpdatedAt = now
	return authenticator.users.UpsertUser(executionContext, adminUser)
}
