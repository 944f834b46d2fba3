package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/faults"
)

const (
	apiKeyPrefixConstant              = "bd_"
	apiKeyRandomBytesConstant         = 20
	apiKeyDisplayPrefixLengthConstant = 8
	apiKeyNameFieldNameConstant       = "name"
	apiKeyStoreMissingMessageConstant = "api key repository must be provided"
	apiKeyTouchFailedMessageConstant  = "unable to record api key usage"
	logFieldAPIKeyIDConstant          = "api_key_id"
)

// NewAPIKeyPlaintext returns a fresh key: "bd_" followed by 40 hex characters.
func NewAPIKeyPlaintext() (string, error) {
	randomBytes := make([]byte, apiKeyRandomBytesConstant)
	if _, readError := rand.Read(randomBytes); readError != nil {
		return "", readError
	}
	return apiKeyPrefixConstant + hex.EncodeToString(randomBytes), nil
}

// HashAPIKey returns the hex SHA-256 digest stored for a plaintext key.
func HashAPIKey(plaintext string) string {
	digest := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(digest[:])
}

// LooksLikeAPIKey reports whether a bearer credential has the API key shape.
func LooksLikeAPIKey(candidate string) bool {
	return strings.HasPrefix(candidate, apiKeyPrefixConstant)
}

// APIKeyService issues, lists, revokes and verifies API keys.
type APIKeyService struct {
	logger     *zap.Logger
	repository APIKeyRepository
	now        func() time.Time
}

// NewAPIKeyService constructs an APIKeyService.
func NewAPIKeyService(logger *zap.Logger, repository APIKeyRepository) (*APIKeyService, error) {
	if repository == nil {
		return nil, errors.New(apiKeyStoreMissingMessageConstant)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIKeyService{logger: logger, repository: repository, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Create stores a new key and returns its record together with the plaintext, which is never stored.
func (service *APIKeyService) Create(executionContext context.Context, name string) (APIKey, string, error) {
	trimmedName := strings.TrimSpace(name)
	if len(trimmedName) == 0 {
		return APIKey{}, "", faults.Required(apiKeyNameFieldNameConstant)
	}
	plaintext, generateError := NewAPIKeyPlaintext()
	if generateError != nil {
		return APIKey{}, "", generateError
	}
	apiKey := APIKey{
		ID:        uuid.NewString(),
		Name:      trimmedName,
		Prefix:    plaintext[:apiKeyDisplayPrefixLengthConstant],
		KeyHash:   HashAPIKey(plaintext),
		CreatedAt: service.now(),
	}
	if createError := service.repository.CreateAPIKey(executionContext, apiKey); createError != nil {
		return APIKey{}, "", createError
	}
	return apiKey, plaintext, nil
}

// List returns every stored key.
func (service *APIKeyService) List(executionContext context.Context) ([]APIKey, error) {
	return service.repository.ListAPIKeys(executionContext)
}

// Revoke disables a key.
func (service *APIKeyService) Revoke(executionContext context.Context, apiKeyID string) error {
	return service.repository.RevokeAPIKey(executionContext, apiKeyID, service.now())
}

// Authenticate resolves a plaintext key to its active record and records its use.
func (service *APIKeyService) Authenticate(executionContext context.Context, plaintext string) (APIKey, error) {
	if !LooksLikeAPIKey(plaintext) {
		return APIKey{}, faults.ErrUnauthorized
	}
	apiKey, lookupError := service.repository.FindAPIKeyByHash(executionContext, HashAPIKey(plaintext))
	if lookupError != nil {
		if faults.IsNotFound(lookupError) {
			return APIKey{}, faults.ErrUnauthorized
		}
		return APIKey{}, lookupError
	}
	if apiKey.RevokedAt != nil {
		return APIKey{}, faults.ErrUnauthorized
	}
	usedAt := service.now()
	if touchError := service.repository.TouchAPIKey(executionContext, apiKey.ID, usedAt); touchError != nil {
		service.logger.Warn(apiKeyTouchFailedMessageConstant, zap.String(logFieldAPIKeyIDConstant, apiKey.ID), zap.Error(touchError))
	} else {
		apiKey.LastUsedAt = &usedAt
	}
	return apiKey, nil
}
