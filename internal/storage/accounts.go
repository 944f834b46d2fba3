package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/temirov/billdesk/internal/auth"
)

const (
	userResourceConstant    = "user"
	sessionResourceConstant = "session"
	apiKeyResourceConstant  = "api key"
	userColumnsConstant     = "id, email, first_name, last_name, profile_image_url, role, password_hash, created_at, updated_at"
	sessionColumnsConstant  = "id, user_id, access_token, refresh_token, expires_at, created_at"
	apiKeyColumnsConstant   = "id, name, prefix, key_hash, created_at, last_used_at, revoked_at"
)

// UpsertUser inserts a user or refreshes the profile of an existing one, keeping its creation time.
func (store *Store) UpsertUser(executionContext context.Context, user auth.User) (auth.User, error) {
	if _, upsertError := store.database.ExecContext(executionContext,
		`INSERT INTO users (`+userColumnsConstant+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				email = excluded.email, first_name = excluded.first_name, last_name = excluded.last_name,
				profile_image_url = excluded.profile_image_url, role = excluded.role,
				password_hash = excluded.password_hash, updated_at = excluded.updated_at`,
		user.ID, user.Email, user.FirstName, user.LastName, user.ProfileImageURL, string(user.Role), user.PasswordHash,
		formatTimestamp(user.CreatedAt), formatTimestamp(user.UpdatedAt),
	); upsertError != nil {
		return auth.User{}, upsertError
	}
	return store.GetUser(executionContext, user.ID)
}

// GetUser loads a user by identifier.
func (store *Store) GetUser(executionContext context.Context, userID string) (auth.User, error) {
	row := store.database.QueryRowContext(executionContext, `SELECT `+userColumnsConstant+` FROM users WHERE id = ?`, userID)
	user, scanError := scanUser(row)
	if scanError != nil {
		return auth.User{}, translateNoRows(scanError, userResourceConstant, userID)
	}
	return user, nil
}

// FindUserByEmail loads a user by case-insensitive email.
func (store *Store) FindUserByEmail(executionContext context.Context, email string) (auth.User, error) {
	row := store.database.QueryRowContext(executionContext, `SELECT `+userColumnsConstant+` FROM users WHERE lower(email) = lower(?)`, email)
	user, scanError := scanUser(row)
	if scanError != nil {
		return auth.User{}, translateNoRows(scanError, userResourceConstant, email)
	}
	return user, nil
}

// CreateSession inserts a session.
func (store *Store) CreateSession(executionContext context.Context, session auth.Session) error {
	_, insertError := store.database.ExecContext(executionContext,
		`INSERT INTO sessions (`+sessionColumnsConstant+`) VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID, session.UserID, session.AccessToken, session.RefreshToken,
		formatTimestamp(session.ExpiresAt), formatTimestamp(session.CreatedAt),
	)
	return insertError
}

// GetSession loads a session by identifier.
func (store *Store) GetSession(executionContext context.Context, sessionID string) (auth.Session, error) {
	var session auth.Session
	var expiresAt, createdAt string
	scanError := store.database.QueryRowContext(executionContext, `SELECT `+sessionColumnsConstant+` FROM sessions WHERE id = ?`, sessionID).Scan(
		&session.ID, &session.UserID, &session.AccessToken, &session.RefreshToken, &expiresAt, &createdAt,
	)
	if scanError != nil {
		return auth.Session{}, translateNoRows(scanError, sessionResourceConstant, sessionID)
	}
	var parseError error
	if session.ExpiresAt, parseError = parseTimestamp(expiresAt); parseError != nil {
		return auth.Session{}, parseError
	}
	if session.CreatedAt, parseError = parseTimestamp(createdAt); parseError != nil {
		return auth.Session{}, parseError
	}
	return session, nil
}

// UpdateSession stores refreshed tokens and expiry for a session.
func (store *Store) UpdateSession(executionContext context.Context, session auth.Session) error {
	result, updateError := store.database.ExecContext(executionContext,
		`UPDATE sessions SET access_token = ?, refresh_token = ?, expires_at = ? WHERE id = ?`,
		session.AccessToken, session.RefreshToken, formatTimestamp(session.ExpiresAt), session.ID,
	)
	if updateError != nil {
		return updateError
	}
	return requireAffected(result, sessionResourceConstant, session.ID)
}

// DeleteSession removes a session. Missing sessions are not an error.
func (store *Store) DeleteSession(executionContext context.Context, sessionID string) error {
	_, deleteError := store.database.ExecContext(executionContext, `DELETE FROM sessions WHERE id = ?`, sessionID)
	return deleteError
}

// CreateAPIKey inserts an API key record.
func (store *Store) CreateAPIKey(executionContext context.Context, apiKey auth.APIKey) error {
	_, insertError := store.database.ExecContext(executionContext,
		`INSERT INTO api_keys (`+apiKeyColumnsConstant+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		apiKey.ID, apiKey.Name, apiKey.Prefix, apiKey.KeyHash, formatTimestamp(apiKey.CreatedAt),
		formatOptionalTimestamp(apiKey.LastUsedAt), formatOptionalTimestamp(apiKey.RevokedAt),
	)
	return insertError
}

// ListAPIKeys returns API keys, newest first.
func (store *Store) ListAPIKeys(executionContext context.Context) ([]auth.APIKey, error) {
	rows, queryError := store.database.QueryContext(executionContext, `SELECT `+apiKeyColumnsConstant+` FROM api_keys ORDER BY created_at DESC, id`)
	if queryError != nil {
		return nil, queryError
	}
	defer rows.Close()

	apiKeys := []auth.APIKey{}
	for rows.Next() {
		apiKey, scanError := scanAPIKey(rows)
		if scanError != nil {
			return nil, scanError
		}
		apiKeys = append(apiKeys, apiKey)
	}
	return apiKeys, rows.Err()
}

// FindAPIKeyByHash loads an API key by the hash of its plaintext.
func (store *Store) FindAPIKeyByHash(executionContext context.Context, keyHash string) (auth.APIKey, error) {
	row := store.database.QueryRowContext(executionContext, `SELECT `+apiKeyColumnsConstant+` FROM api_keys WHERE key_hash = ?`, keyHash)
	apiKey, scanError := scanAPIKey(row)
	if scanError != nil {
		return auth.APIKey{}, translateNoRows(scanError, apiKeyResourceConstant, "")
	}
	return apiKey, nil
}

// TouchAPIKey records the last time an API key authenticated a request.
func (store *Store) TouchAPIKey(executionContext context.Context, apiKeyID string, usedAt time.Time) error {
	result, updateError := store.database.ExecContext(executionContext, `UPDATE api_keys SET last_used_at = ? WHERE id = ?`, formatTimestamp(usedAt), apiKeyID)
	if updateError != nil {
		return updateError
	}
	return requireAffected(result, apiKeyResourceConstant, apiKeyID)
}

// RevokeAPIKey marks an API key revoked. Revoking twice keeps the first revocation time.
func (store *Store) RevokeAPIKey(executionContext context.Context, apiKeyID string, revokedAt time.Time) error {
	result, updateError := store.database.ExecContext(executionContext,
		`UPDATE api_keys SET revoked_at = COALESCE(revoked_at, ?) WHERE id = ?`,
		formatTimestamp(revokedAt), apiKeyID,
	)
	if updateError != nil {
		return updateError
	}
	return requireAffected(result, apiKeyResourceConstant, apiKeyID)
}

func scanUser(scanner rowScanner) (auth.User, error) {
	var user auth.User
	var role, createdAt, updatedAt string
	if scanError := scanner.Scan(
		&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.ProfileImageURL, &role, &user.PasswordHash,
		&createdAt, &updatedAt,
	); scanError != nil {
		return auth.User{}, scanError
	}
	user.Role = auth.Role(role)
	var parseError error
	if user.CreatedAt, parseError = parseTimestamp(createdAt); parseError != nil {
		return auth.User{}, parseError
	}
	if user.UpdatedAt, parseError = parseTimestamp(updatedAt); parseError != nil {
		return auth.User{}, parseError
	}
	return user, nil
}

func scanAPIKey(scanner rowScanner) (auth.APIKey, error) {
	var apiKey auth.APIKey
	var createdAt string
	var lastUsedAt, revokedAt sql.NullString
	if scanError := scanner.Scan(&apiKey.ID, &apiKey.Name, &apiKey.Prefix, &apiKey.KeyHash, &createdAt, &lastUsedAt, &revokedAt); scanError != nil {
		return auth.APIKey{}, scanError
	}
	var parseError error
	if apiKey.CreatedAt, parseError = parseTimestamp(createdAt); parseError != nil {
		return auth.APIKey{}, parseError
	}
	if apiKey.LastUsedAt, parseError = parseOptionalTimestamp(lastUsedAt); parseError != nil {
		return auth.APIKey{}, parseError
	}
	if apiKey.RevokedAt, parseError = parseOptionalTimestamp(revokedAt); parseError != nil {
		return auth.APIKey{}, parseError
	}
	return apiKey, nil
}
