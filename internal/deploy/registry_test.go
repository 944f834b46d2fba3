package deploy_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/deploy"
	"github.com/temirov/billdesk/internal/faults"
)

type mapTokenResolver map[string]string

func (resolver mapTokenResolver) ResolveValue(_ context.Context, sourceValue string) (string, error) {
	token, found := resolver[sourceValue]
	if !found {
		return "", errors.New("environment variable not set")
	}
	return token, nil
}

func TestRegistryResolve(testInstance *testing.T) {
	var receivedToken string
	factory := func(_ *zap.Logger, token string) (deploy.Provider, error) {
		receivedToken = token
		return &scriptedProvider{}, nil
	}
	registry := deploy.NewRegistry(zap.NewNop(), mapTokenResolver{"env:NETLIFY_API_TOKEN": "nf-secret"}, map[string]deploy.Registration{
		deploy.ProviderNetlify: {Factory: factory, TokenSource: "env:NETLIFY_API_TOKEN"},
		deploy.ProviderVercel:  {Factory: factory, TokenSource: "env:VERCEL_API_TOKEN"},
	})
	require.Equal(testInstance, []string{"netlify", "vercel"}, registry.Names())

	adapter, resolveError := registry.Resolve(context.Background(), " Netlify ")
	require.NoError(testInstance, resolveError)
	require.Equal(testInstance, "scripted", adapter.ProviderName())
	require.Equal(testInstance, "nf-secret", receivedToken)

	_, missingTokenError := registry.Resolve(context.Background(), "vercel")
	require.True(testInstance, faults.IsPreconditionFailed(missingTokenError))
	require.Contains(testInstance, missingTokenError.Error(), "vercel token unavailable")

	_, unknownError := registry.Resolve(context.Background(), "heroku")
	require.True(testInstance, faults.IsInvalidInput(unknownError))
	require.Contains(testInstance, unknownError.Error(), "netlify, vercel")
}
