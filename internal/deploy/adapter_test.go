package deploy_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/deploy"
	"github.com/temirov/billdesk/internal/faults"
	"github.com/temirov/billdesk/internal/gitrepo"
)

const deploySubtestNameTemplateConstant = "%d_%s"

type scriptedProvider struct {
	collisions     int
	createdNames   []string
	linked         map[string]gitrepo.Repository
	deleteError    error
	createFailure  error
	deletedTargets []string
}

func (provider *scriptedProvider) Name() string { return "scripted" }

func (provider *scriptedProvider) CreateProject(_ context.Context, name string) (deploy.Target, error) {
	provider.createdNames = append(provider.createdNames, name)
	if provider.createFailure != nil {
		return deploy.Target{}, provider.createFailure
	}
	if len(provider.createdNames) <= provider.collisions {
		return deploy.Target{}, deploy.ErrNameTaken
	}
	return deploy.Target{ID: "target-1", Name: name, URL: "https://" + name + ".example.app"}, nil
}

func (provider *scriptedProvider) LinkRepository(_ context.Context, targetID string, repository gitrepo.Repository) (deploy.Target, error) {
	if provider.linked == nil {
		provider.linked = map[string]gitrepo.Repository{}
	}
	provider.linked[targetID] = repository
	return deploy.Target{ID: targetID}, nil
}

func (provider *scriptedProvider) TriggerDeploy(_ context.Context, targetID string) (deploy.Deployment, error) {
	if _, linked := provider.linked[targetID]; !linked {
		return deploy.Deployment{}, faults.PreconditionFailedError{Operation: "scripted.trigger_deploy", Message: "not linked"}
	}
	return deploy.Deployment{ID: "deployment-1", State: deploy.StateQueued}, nil
}

func (provider *scriptedProvider) Status(context.Context, string) (deploy.Status, error) {
	return deploy.Status{State: deploy.StateReady}, nil
}

func (provider *scriptedProvider) DeleteProject(_ context.Context, targetID string) error {
	provider.deletedTargets = append(provider.deletedTargets, targetID)
	return provider.deleteError
}

func sequentialSuffixes() deploy.SuffixGenerator {
	counter := 0
	return func() (string, error) {
		counter++
		return fmt.Sprintf("sfx00%d", counter), nil
	}
}

func TestSlugify(testInstance *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "lowercases and joins words", input: "Acme Corp Website", expected: "acme-corp-website"},
		{name: "collapses punctuation runs", input: "  Hello -- World!!  ", expected: "hello-world"},
		{name: "keeps digits", input: "Shop 2024", expected: "shop-2024"},
		{name: "drops non ascii letters", input: "Café Über", expected: "caf-ber"},
		{name: "empty becomes project", input: "!!!", expected: "project"},
		{name: "truncates long names", input: strings.Repeat("a", 70), expected: strings.Repeat("a", deploy.MaximumSlugLength)},
		{name: "trims trailing separator after truncation", input: strings.Repeat("a", 57) + " bcd", expected: strings.Repeat("a", 57)},
	}
	for index, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(deploySubtestNameTemplateConstant, index, testCase.name), func(subTest *testing.T) {
			require.Equal(subTest, testCase.expected, deploy.Slugify(testCase.input))
		})
	}
}

func TestRandomSuffix(testInstance *testing.T) {
	suffix, suffixError := deploy.RandomSuffix()
	require.NoError(testInstance, suffixError)
	require.Regexp(testInstance, `^[a-z0-9]{6}$`, suffix)
}

func TestAdapterCreateRetriesCollisions(testInstance *testing.T) {
	testCases := []struct {
		name          string
		collisions    int
		expectedNames []string
		expectTaken   bool
	}{
		{name: "first attempt succeeds", collisions: 0, expectedNames: []string{"storefront"}},
		{name: "third attempt succeeds", collisions: 2, expectedNames: []string{"storefront", "storefront-sfx001", "storefront-sfx002"}},
		{name: "five collisions fail", collisions: 5, expectedNames: []string{"storefront", "storefront-sfx001", "storefront-sfx002", "storefront-sfx003", "storefront-sfx004"}, expectTaken: true},
	}
	for index, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(deploySubtestNameTemplateConstant, index, testCase.name), func(subTest *testing.T) {
			provider := &scriptedProvider{collisions: testCase.collisions}
			adapter, adapterError := deploy.NewAdapter(zap.NewNop(), provider, deploy.WithSuffixGenerator(sequentialSuffixes()))
			require.NoError(subTest, adapterError)

			target, createError := adapter.Create(context.Background(), "Storefront", "")
			require.Equal(subTest, testCase.expectedNames, provider.createdNames)
			if testCase.expectTaken {
				require.ErrorIs(subTest, createError, deploy.ErrNameTaken)
				return
			}
			require.NoError(subTest, createError)
			require.Equal(subTest, testCase.expectedNames[len(testCase.expectedNames)-1], target.Name)
		})
	}
}

func TestAdapterCreateKeepsSuffixedNameWithinLimit(testInstance *testing.T) {
	provider := &scriptedProvider{collisions: 1}
	adapter, adapterError := deploy.NewAdapter(zap.NewNop(), provider, deploy.WithSuffixGenerator(func() (string, error) { return "zz9zz9", nil }))
	require.NoError(testInstance, adapterError)

	target, createError := adapter.Create(context.Background(), strings.Repeat("b", 80), "")
	require.NoError(testInstance, createError)
	require.Len(testInstance, target.Name, deploy.MaximumSlugLength)
	require.True(testInstance, strings.HasSuffix(target.Name, "-zz9zz9"))
}

func TestAdapterCreateSurfacesProviderFailure(testInstance *testing.T) {
	providerFailure := deploy.ProviderError{Provider: "scripted", StatusCode: http.StatusForbidden, Message: "token lacks scope"}
	provider := &scriptedProvider{createFailure: providerFailure}
	adapter, adapterError := deploy.NewAdapter(zap.NewNop(), provider)
	require.NoError(testInstance, adapterError)

	_, createError := adapter.Create(context.Background(), "Storefront", "")
	require.ErrorIs(testInstance, createError, providerFailure)
	require.Len(testInstance, provider.createdNames, 1)
	require.Contains(testInstance, createError.Error(), "token lacks scope")
}

func TestAdapterLinkAndTrigger(testInstance *testing.T) {
	provider := &scriptedProvider{}
	adapter, adapterError := deploy.NewAdapter(zap.NewNop(), provider)
	require.NoError(testInstance, adapterError)
	executionContext := context.Background()

	_, linkError := adapter.Link(executionContext, "target-1", "https://bitbucket.org/acme/storefront")
	require.True(testInstance, faults.IsInvalidInput(linkError))

	_, createError := adapter.Create(executionContext, "Storefront", "not a url")
	require.True(testInstance, faults.IsInvalidInput(createError))
	require.Empty(testInstance, provider.createdNames)

	_, triggerError := adapter.TriggerDeploy(executionContext, "target-1")
	require.True(testInstance, faults.IsPreconditionFailed(triggerError))

	_, linkError = adapter.Link(executionContext, "target-1", "git@github.com:acme/storefront.git")
	require.NoError(testInstance, linkError)
	require.Equal(testInstance, gitrepo.Repository{Owner: "acme", Name: "storefront"}, provider.linked["target-1"])

	deployment, triggerError := adapter.TriggerDeploy(executionContext, "target-1")
	require.NoError(testInstance, triggerError)
	require.Equal(testInstance, deploy.StateQueued, deployment.State)

	_, emptyError := adapter.Status(executionContext, " ")
	require.True(testInstance, faults.IsInvalidInput(emptyError))
}

func TestAdapterDelete(testInstance *testing.T) {
	testCases := []struct {
		name        string
		deleteError error
		expectError bool
	}{
		{name: "deleted", deleteError: nil},
		{name: "missing status is success", deleteError: deploy.ProviderError{Provider: "scripted", StatusCode: http.StatusNotFound, Message: "Not Found"}},
		{name: "missing message is success", deleteError: deploy.ProviderError{Provider: "scripted", Message: "Project not found"}},
		{name: "other failure surfaces", deleteError: deploy.ProviderError{Provider: "scripted", StatusCode: http.StatusInternalServerError, Message: "boom"}, expectError: true},
		{name: "transport failure surfaces", deleteError: errors.New("connection reset"), expectError: true},
	}
	for index, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(deploySubtestNameTemplateConstant, index, testCase.name), func(subTest *testing.T) {
			provider := &scriptedProvider{deleteError: testCase.deleteError}
			adapter, adapterError := deploy.NewAdapter(zap.NewNop(), provider)
			require.NoError(subTest, adapterError)

			deleteError := adapter.Delete(context.Background(), "target-1")
			if testCase.expectError {
				require.Error(subTest, deleteError)
			} else {
				require.NoError(subTest, deleteError)
			}
			require.Equal(subTest, []string{"target-1"}, provider.deletedTargets)
		})
	}
}
