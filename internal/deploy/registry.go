package deploy

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/faults"
)

const (
	providerFieldNameConstant           = "provider"
	unknownProviderTemplateConstant     = "unknown deploy provider %q (supported: %s)"
	tokenUnavailableTemplateConstant    = "%s token unavailable: %v"
	supportedProvidersSeparatorConstant = ", "
)

// Factory builds a Provider from an API token.
type Factory func(logger *zap.Logger, token string) (Provider, error)

// TokenResolver reads a credential source such as "env:NETLIFY_API_TOKEN".
type TokenResolver interface {
	ResolveValue(executionContext context.Context, sourceValue string) (string, error)
}

// Registration binds a provider name to its factory and credential source.
type Registration struct {
	Factory     Factory
	TokenSource string
}

// Registry selects providers by name, resolving their tokens on demand.
type Registry struct {
	logger        *zap.Logger
	tokens        TokenResolver
	registrations map[string]Registration
	options       []AdapterOption
}

// NewRegistry constructs a Registry. options apply to every Adapter it resolves.
func NewRegistry(logger *zap.Logger, tokens TokenResolver, registrations map[string]Registration, options ...AdapterOption) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	normalized := make(map[string]Registration, len(registrations))
	for name, registration := range registrations {
		normalized[strings.ToLower(strings.TrimSpace(name))] = registration
	}
	return &Registry{logger: logger, tokens: tokens, registrations: normalized, options: options}
}

// Names lists the registered providers in sorted order.
func (registry *Registry) Names() []string {
	names := make([]string, 0, len(registry.registrations))
	for name := range registry.registrations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns an Adapter for providerName. A missing token fails here rather than on first use.
func (registry *Registry) Resolve(executionContext context.Context, providerName string) (*Adapter, error) {
	normalizedName := strings.ToLower(strings.TrimSpace(providerName))
	registration, found := registry.registrations[normalizedName]
	if !found {
		return nil, faults.InvalidInputError{
			FieldName: providerFieldNameConstant,
			Message:   fmt.Sprintf(unknownProviderTemplateConstant, providerName, strings.Join(registry.Names(), supportedProvidersSeparatorConstant)),
		}
	}
	token, tokenError := registry.tokens.ResolveValue(executionContext, registration.TokenSource)
	if tokenError != nil {
		return nil, faults.PreconditionFailedError{Operation: normalizedName, Message: fmt.Sprintf(tokenUnavailableTemplateConstant, normalizedName, tokenError)}
	}
	provider, providerError := registration.Factory(registry.logger, token)
	if providerError != nil {
		return nil, providerError
	}
	return NewAdapter(registry.logger, provider, registry.options...)
}
