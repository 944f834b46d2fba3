package deploy

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/faults"
	"github.com/temirov/billdesk/internal/gitrepo"
)

const (
	// MaximumSlugLength bounds generated project names.
	MaximumSlugLength = 58
	// MaximumCreateAttempts bounds the name collision retry loop.
	MaximumCreateAttempts = 5

	defaultSlugConstant                 = "project"
	slugSeparatorConstant               = "-"
	suffixLengthConstant                = 6
	suffixAlphabetConstant              = "abcdefghijklmnopqrstuvwxyz0123456789"
	targetIDFieldNameConstant           = "targetId"
	repositoryURLFieldNameConstant      = "repositoryUrl"
	providerMissingMessageConstant      = "deploy provider must be provided"
	nameCollisionMessageConstant        = "deploy project name taken, retrying"
	collisionsExhaustedTemplateConstant = "%w after %d attempts"
	projectCreatedMessageConstant       = "deploy project created"
	projectDeletedMessageConstant       = "deploy project deleted"
	projectAlreadyGoneMessageConstant   = "deploy project already deleted"
	logFieldProviderConstant            = "provider"
	logFieldNameConstant                = "name"
	logFieldTargetIDConstant            = "target_id"
	logFieldAttemptConstant             = "attempt"
)

// SuffixGenerator returns a random suffix for a colliding project name.
type SuffixGenerator func() (string, error)

// Adapter normalizes project lifecycle calls across providers.
type Adapter struct {
	logger   *zap.Logger
	provider Provider
	suffix   SuffixGenerator
}

// AdapterOption customizes an Adapter.
type AdapterOption func(*Adapter)

// WithSuffixGenerator overrides the random collision suffix.
func WithSuffixGenerator(generator SuffixGenerator) AdapterOption {
	return func(adapter *Adapter) {
		if generator != nil {
			adapter.suffix = generator
		}
	}
}

// NewAdapter wraps provider.
func NewAdapter(logger *zap.Logger, provider Provider, options ...AdapterOption) (*Adapter, error) {
	if provider == nil {
		return nil, errors.New(providerMissingMessageConstant)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	adapter := &Adapter{logger: logger, provider: provider, suffix: RandomSuffix}
	for _, option := range options {
		option(adapter)
	}
	return adapter, nil
}

// ProviderName returns the wrapped provider's name.
func (adapter *Adapter) ProviderName() string {
	return adapter.provider.Name()
}

// Create makes a project named after name, retrying with a random suffix on collisions.
// When repositoryURL is non-empty the project is linked before returning.
func (adapter *Adapter) Create(executionContext context.Context, name string, repositoryURL string) (Target, error) {
	var repository *gitrepo.Repository
	if len(strings.TrimSpace(repositoryURL)) > 0 {
		parsedRepository, parseError := parseRepository(repositoryURL)
		if parseError != nil {
			return Target{}, parseError
		}
		repository = &parsedRepository
	}

	baseSlug := Slugify(name)
	candidate := baseSlug
	var target Target
	created := false
	for attempt := 1; attempt <= MaximumCreateAttempts; attempt++ {
		if attempt > 1 {
			suffix, suffixError := adapter.suffix()
			if suffixError != nil {
				return Target{}, suffixError
			}
			candidate = suffixedSlug(baseSlug, suffix)
		}
		createdTarget, createError := adapter.provider.CreateProject(executionContext, candidate)
		if createError == nil {
			target = createdTarget
			created = true
			break
		}
		if !errors.Is(createError, ErrNameTaken) {
			return Target{}, createError
		}
		adapter.logger.Info(nameCollisionMessageConstant, zap.String(logFieldProviderConstant, adapter.provider.Name()), zap.String(logFieldNameConstant, candidate), zap.Int(logFieldAttemptConstant, attempt))
	}
	if !created {
		return Target{}, fmt.Errorf(collisionsExhaustedTemplateConstant, ErrNameTaken, MaximumCreateAttempts)
	}
	adapter.logger.Info(projectCreatedMessageConstant, zap.String(logFieldProviderConstant, adapter.provider.Name()), zap.String(logFieldTargetIDConstant, target.ID), zap.String(logFieldNameConstant, target.Name))

	if repository == nil {
		return target, nil
	}
	linkedTarget, linkError := adapter.provider.LinkRepository(executionContext, target.ID, *repository)
	if linkError != nil {
		return target, linkError
	}
	return mergeTarget(target, linkedTarget), nil
}

// Link connects an existing project to a GitHub repository.
func (adapter *Adapter) Link(executionContext context.Context, targetID string, repositoryURL string) (Target, error) {
	if len(strings.TrimSpace(targetID)) == 0 {
		return Target{}, faults.Required(targetIDFieldNameConstant)
	}
	repository, parseError := parseRepository(repositoryURL)
	if parseError != nil {
		return Target{}, parseError
	}
	return adapter.provider.LinkRepository(executionContext, targetID, repository)
}

// TriggerDeploy starts a build of the linked repository.
func (adapter *Adapter) TriggerDeploy(executionContext context.Context, targetID string) (Deployment, error) {
	if len(strings.TrimSpace(targetID)) == 0 {
		return Deployment{}, faults.Required(targetIDFieldNameConstant)
	}
	return adapter.provider.TriggerDeploy(executionContext, targetID)
}

// Status reports the project state and its latest deployment.
func (adapter *Adapter) Status(executionContext context.Context, targetID string) (Status, error) {
	if len(strings.TrimSpace(targetID)) == 0 {
		return Status{}, faults.Required(targetIDFieldNameConstant)
	}
	return adapter.provider.Status(executionContext, targetID)
}

// Delete removes the project. A project the provider no longer knows is treated as deleted.
func (adapter *Adapter) Delete(executionContext context.Context, targetID string) error {
	if len(strings.TrimSpace(targetID)) == 0 {
		return faults.Required(targetIDFieldNameConstant)
	}
	deleteError := adapter.provider.DeleteProject(executionContext, targetID)
	if deleteError != nil && !IsMissingTarget(deleteError) {
		return deleteError
	}
	if deleteError != nil {
		adapter.logger.Info(projectAlreadyGoneMessageConstant, zap.String(logFieldProviderConstant, adapter.provider.Name()), zap.String(logFieldTargetIDConstant, targetID))
		return nil
	}
	adapter.logger.Info(projectDeletedMessageConstant, zap.String(logFieldProviderConstant, adapter.provider.Name()), zap.String(logFieldTargetIDConstant, targetID))
	return nil
}

// Slugify lowercases name, collapses runs of characters outside [a-z0-9] into single hyphens,
// trims hyphens and truncates to MaximumSlugLength. An empty result becomes "project".
func Slugify(name string) string {
	var builder strings.Builder
	pendingSeparator := false
	for _, character := range strings.ToLower(name) {
		isAlphanumeric := (character >= 'a' && character <= 'z') || (character >= '0' && character <= '9')
		if !isAlphanumeric {
			pendingSeparator = builder.Len() > 0
			continue
		}
		if pendingSeparator {
			builder.WriteString(slugSeparatorConstant)
			pendingSeparator = false
		}
		builder.WriteRune(character)
	}
	slug := builder.String()
	if len(slug) > MaximumSlugLength {
		slug = strings.TrimRight(slug[:MaximumSlugLength], slugSeparatorConstant)
	}
	if len(slug) == 0 {
		return defaultSlugConstant
	}
	return slug
}

// RandomSuffix returns six characters drawn from [a-z0-9].
func RandomSuffix() (string, error) {
	alphabetSize := big.NewInt(int64(len(suffixAlphabetConstant)))
	suffix := make([]byte, suffixLengthConstant)
	for index := range suffix {
		position, randomError := rand.Int(rand.Reader, alphabetSize)
		if randomError != nil {
			return "", randomError
		}
		suffix[index] = suffixAlphabetConstant[position.Int64()]
	}
	return string(suffix), nil
}

func suffixedSlug(baseSlug string, suffix string) string {
	maximumBaseLength := MaximumSlugLength - len(slugSeparatorConstant) - len(suffix)
	if len(baseSlug) > maximumBaseLength {
		baseSlug = strings.TrimRight(baseSlug[:maximumBaseLength], slugSeparatorConstant)
	}
	return baseSlug + slugSeparatorConstant + suffix
}

func parseRepository(repositoryURL string) (gitrepo.Repository, error) {
	repository, parseError := gitrepo.ParseGitHubURL(repositoryURL)
	if parseError != nil {
		return gitrepo.Repository{}, faults.InvalidInputError{FieldName: repositoryURLFieldNameConstant, Message: parseError.Error()}
	}
	return repository, nil
}

func mergeTarget(created Target, linked Target) Target {
	if len(linked.ID) == 0 {
		linked.ID = created.ID
	}
	if len(linked.Name) == 0 {
		linked.Name = created.Name
	}
	if len(linked.URL) == 0 {
		linked.URL = created.URL
	}
	return linked
}
