package auth

import (
	"context"
	"time"
)

// Role distinguishes administrators from regular dashboard users.
type Role string

// Supported roles.
const (
	RoleAdmin  Role = Role("admin")
	RoleMember Role = Role("member")
)

// User is an authenticated dashboard operator.
type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	ProfileImageURL string    `json:"profileImageUrl"`
	Role            Role      `json:"role"`
	PasswordHash    string    `json:"-"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (user User) IsAdmin() bool {
	return user.Role == RoleAdmin
}

// Session binds a browser cookie to a user and, in hosted mode, its OIDC tokens.
type Session struct {
	ID           string
	UserID       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// Expired reports whether the session lifetime has elapsed at the given moment.
func (session Session) Expired(moment time.Time) bool {
	return !session.ExpiresAt.IsZero() && !moment.Before(session.ExpiresAt)
}

// APIKey is a stored programmatic credential. Only the hash of the key is persisted.
type APIKey struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix"`
	KeyHash    string     `json:"-"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt"`
	RevokedAt  *time.Time `json:"revokedAt"`
}

// UserRepository persists users.
type UserRepository interface {
	UpsertUser(executionContext context.Context, user User) (User, error)
	GetUser(executionContext context.Context, userID string) (User, error)
	FindUserByEmail(executionContext context.Context, email string) (User, error)
}

// SessionRepository persists sessions.
type SessionRepository interface {
	CreateSession(executionContext context.Context, session Session) error
	GetSession(executionContext context.Context, sessionID string) (Session, error)
	UpdateSession(executionContext context.Context, session Session) error
	DeleteSession(executionContext context.Context, sessionID string) error
}

// APIKeyRepository persists API keys.
type APIKeyRepository interface {
	CreateAPIKey(executionContext context.Context, apiKey APIKey) error
	ListAPIKeys(executionContext context.Context) ([]APIKey, error)
	FindAPIKeyByHash(executionContext context.Context, keyHash string) (APIKey, error)
	TouchAPIKey(executionContext context.Context, apiKeyID string, usedAt time.Time) error
	RevokeAPIKey(executionContext context.Context, apiKeyID string, revokedAt time.Time) error
}

// Store aggregates every persistence capability the auth layer needs.
type Store interface {
	UserRepository
	SessionRepository
	APIKeyRepository
}
