package cli

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/billing"
	"github.com/temirov/billdesk/internal/deploy"
	"github.com/temirov/billdesk/internal/gitrepo"
	"github.com/temirov/billdesk/internal/storage"
)

const (
	cliSubtestNameTemplateConstant = "%d_%s"
	testSessionSecretConstant      = "0123456789abcdef0123456789abcdef"
	testConfigurationFileConstant  = "common:\n  log_level: debug\n  log_format: console\nscraper:\n  timeout: 3s\nnotion:\n  database_id: db-from-file\n"
)

var isolatedEnvironmentVariables = []string{
	"PORT", "DATABASE_URL", "SESSION_SECRET", "ADMIN_EMAIL", "ADMIN_PASSWORD", "ISSUER_URL", "REPL_ID",
	"STRIPE_SECRET_KEY", "STRIPE_PUBLISHABLE_KEY", "STRIPE_WEBHOOK_SECRET", "REPLIT_CONNECTORS_HOSTNAME",
	"REPL_IDENTITY", "WEB_REPL_RENEWAL", "NOTION_DATABASE_ID", "NOTION_TOKEN", "GH_TOKEN", "GITHUB_TOKEN",
	"GITHUB_API_TOKEN", "REPLIT_DOMAINS",
}

func isolateEnvironment(testInstance *testing.T) string {
	testInstance.Helper()
	for _, variableName := range isolatedEnvironmentVariables {
		testInstance.Setenv(variableName, "")
	}
	configHome := testInstance.TempDir()
	testInstance.Setenv(xdgConfigHomeEnvironmentVariableConstant, configHome)
	return configHome
}

func runApplication(testInstance *testing.T, application *Application, arguments ...string) (string, error) {
	testInstance.Helper()
	var output bytes.Buffer
	var diagnostics bytes.Buffer
	application.rootCommand.SetOut(&output)
	application.rootCommand.SetErr(&diagnostics)
	application.rootCommand.SetArgs(arguments)
	executionError := application.rootCommand.ExecuteContext(context.Background())
	return output.String(), executionError
}

func TestApplicationEmbeddedDefaults(testInstance *testing.T) {
	isolateEnvironment(testInstance)
	application := NewApplication()
	require.NoError(testInstance, application.initializeConfiguration(application.rootCommand))

	configuration := application.configuration
	require.Equal(testInstance, "info", configuration.Common.LogLevel)
	require.Equal(testInstance, "structured", configuration.Common.LogFormat)
	require.Equal(testInstance, 5000, configuration.Server.Port)
	require.Equal(testInstance, defaultDatabaseURLConstant, configuration.Database.URL)
	require.Equal(testInstance, 7*24*time.Hour, configuration.Auth.SessionTTL)
	require.Equal(testInstance, 8*time.Second, configuration.Scraper.Timeout)
	require.Equal(testInstance, "env:VERCEL_API_TOKEN", configuration.Deploy.VercelTokenSource)
	require.False(testInstance, configuration.Auth.HostedLoginEnabled())
}

func TestApplicationEnvironmentBindings(testInstance *testing.T) {
	isolateEnvironment(testInstance)
	testInstance.Setenv("PORT", "8080")
	testInstance.Setenv("DATABASE_URL", "sqlite:///tmp/billdesk-env.db")
	testInstance.Setenv("SESSION_SECRET", testSessionSecretConstant)
	testInstance.Setenv("REPL_ID", "client-123")
	testInstance.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_env")
	testInstance.Setenv("NOTION_DATABASE_ID", "db-env")
	testInstance.Setenv("BILLDESK_SERVER_PUBLIC_BASE_URL", "https://billing.example.org/")

	application := NewApplication()
	require.NoError(testInstance, application.initializeConfiguration(application.rootCommand))

	configuration := application.configuration
	require.Equal(testInstance, 8080, configuration.Server.Port)
	require.Equal(testInstance, ":8080", configuration.Server.ListenAddress())
	require.Equal(testInstance, "sqlite:///tmp/billdesk-env.db", configuration.Database.URL)
	require.Equal(testInstance, testSessionSecretConstant, configuration.Auth.SessionSecret)
	require.True(testInstance, configuration.Auth.HostedLoginEnabled())
	require.Equal(testInstance, "whsec_env", configuration.Stripe.WebhookSecret)
	require.Equal(testInstance, "db-env", configuration.Notion.DatabaseID)
	require.Equal(testInstance, "https://billing.example.org", configuration.Server.ResolvedPublicBaseURL(os.LookupEnv))
}

func TestApplicationConfigFileAndFlagOverrides(testInstance *testing.T) {
	isolateEnvironment(testInstance)
	configurationPath := filepath.Join(testInstance.TempDir(), "billdesk.yaml")
	require.NoError(testInstance, os.WriteFile(configurationPath, []byte(testConfigurationFileConstant), 0o600))

	application := NewApplication()
	output, executionError := runApplication(testInstance, application, "--config", configurationPath, "--log-level", "warn", "deploy", "providers")
	require.NoError(testInstance, executionError)

	require.Equal(testInstance, "warn", application.configuration.Common.LogLevel)
	require.Equal(testInstance, "console", application.configuration.Common.LogFormat)
	require.Equal(testInstance, 3*time.Second, application.configuration.Scraper.Timeout)
	require.Equal(testInstance, "db-from-file", application.configuration.Notion.DatabaseID)
	require.Contains(testInstance, output, "netlify\nrailway\nvercel\n")
}

func TestApplicationRegistersCommands(testInstance *testing.T) {
	application := NewApplication()
	registered := map[string]bool{}
	for _, command := range application.rootCommand.Commands() {
		registered[command.Name()] = true
	}
	for _, expectedName := range []string{"serve", "seed", "deploy", "scrape-email", "notion", "github"} {
		require.True(testInstance, registered[expectedName], expectedName)
	}
}

func TestRootCommandPrintsOverview(testInstance *testing.T) {
	isolateEnvironment(testInstance)
	testInstance.Setenv("ADMIN_PASSWORD", "correct horse")

	output, executionError := runApplication(testInstance, NewApplication())
	require.NoError(testInstance, executionError)
	require.Contains(testInstance, output, "billdesk configuration")
	require.Contains(testInstance, output, "local password")
	require.Contains(testInstance, output, ":5000")
	require.Contains(testInstance, output, "Available Commands")
}

func TestResolvedPublicBaseURL(testInstance *testing.T) {
	testCases := []struct {
		name          string
		configuration ServerConfiguration
		environment   map[string]string
		expected      string
	}{
		{name: "configured", configuration: ServerConfiguration{Port: 5000, PublicBaseURL: "https://desk.example.org/"}, expected: "https://desk.example.org"},
		{name: "replit domain", configuration: ServerConfiguration{Port: 5000}, environment: map[string]string{"REPLIT_DOMAINS": "desk.replit.app,other.replit.app"}, expected: "https://desk.replit.app"},
		{name: "localhost", configuration: ServerConfiguration{Port: 5050}, expected: "http://localhost:5050"},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(cliSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(subTest *testing.T) {
			lookup := func(name string) (string, bool) {
				value, found := testCase.environment[name]
				return value, found
			}
			require.Equal(subTest, testCase.expected, testCase.configuration.ResolvedPublicBaseURL(lookup))
		})
	}
}

func TestSeedCommandIsIdempotent(testInstance *testing.T) {
	isolateEnvironment(testInstance)
	databasePath := filepath.Join(testInstance.TempDir(), "seed.db")
	testInstance.Setenv("DATABASE_URL", "sqlite://"+databasePath)

	firstOutput, firstError := runApplication(testInstance, NewApplication(), "seed")
	require.NoError(testInstance, firstError)
	require.Contains(testInstance, firstOutput, "Seeded embedded fixture")

	secondOutput, secondError := runApplication(testInstance, NewApplication(), "seed")
	require.NoError(testInstance, secondError)
	require.Contains(testInstance, secondOutput, "skipped:")

	store, openError := storage.Open(zap.NewNop(), databasePath)
	require.NoError(testInstance, openError)
	defer store.Close()
	customers, listError := store.ListCustomers(context.Background())
	require.NoError(testInstance, listError)
	require.Len(testInstance, customers, 2)
}

func TestSeedCommandRejectsMissingFixture(testInstance *testing.T) {
	isolateEnvironment(testInstance)
	testInstance.Setenv("DATABASE_URL", filepath.Join(testInstance.TempDir(), "seed.db"))
	_, executionError := runApplication(testInstance, NewApplication(), "seed", "--file", filepath.Join(testInstance.TempDir(), "absent.yaml"))
	require.Error(testInstance, executionError)
}

type recordingProvider struct {
	deleted []string
}

func (provider *recordingProvider) Name() string { return deploy.ProviderVercel }

func (provider *recordingProvider) CreateProject(_ context.Context, name string) (deploy.Target, error) {
	return deploy.Target{ID: "prj_" + name, Name: name, URL: "https://" + name + ".vercel.app"}, nil
}

func (provider *recordingProvider) LinkRepository(_ context.Context, targetID string, _ gitrepo.Repository) (deploy.Target, error) {
	return deploy.Target{ID: targetID}, nil
}

func (provider *recordingProvider) TriggerDeploy(_ context.Context, targetID string) (deploy.Deployment, error) {
	return deploy.Deployment{ID: "dpl_1", State: deploy.StateBuilding, URL: "https://" + targetID + "-git.vercel.app"}, nil
}

func (provider *recordingProvider) Status(_ context.Context, _ string) (deploy.Status, error) {
	return deploy.Status{State: deploy.StateReady, URL: "https://live.vercel.app", LatestDeployment: &deploy.Deployment{ID: "dpl_1"}}, nil
}

func (provider *recordingProvider) DeleteProject(_ context.Context, targetID string) error {
	provider.deleted = append(provider.deleted, targetID)
	return nil
}

type fixedTokens struct{}

func (fixedTokens) ResolveValue(context.Context, string) (string, error) {
	return "token", nil
}

func TestDeployCommands(testInstance *testing.T) {
	provider := &recordingProvider{}
	builder := DeployCommandBuilder{
		LoggerProvider:        zap.NewNop,
		ConfigurationProvider: func() ApplicationConfiguration { return ApplicationConfiguration{} },
		RegistryProvider: func(logger *zap.Logger, _ ApplicationConfiguration) *deploy.Registry {
			return deploy.NewRegistry(logger, fixedTokens{}, map[string]deploy.Registration{
				deploy.ProviderVercel: {Factory: func(*zap.Logger, string) (deploy.Provider, error) { return provider, nil }, TokenSource: "env:VERCEL_API_TOKEN"},
			})
		},
	}

	testCases := []struct {
		name           string
		arguments      []string
		expectedOutput string
		expectError    bool
	}{
		{name: "create", arguments: []string{"create", "Marketing Site", "--provider", "vercel"}, expectedOutput: "Created vercel target prj_marketing-site"},
		{name: "trigger", arguments: []string{"trigger", "prj_marketing-site", "--provider", "vercel"}, expectedOutput: "Started deployment dpl_1"},
		{name: "status", arguments: []string{"status", "prj_marketing-site", "--provider", "vercel"}, expectedOutput: "ready"},
		{name: "delete", arguments: []string{"delete", "prj_marketing-site", "--provider", "vercel"}, expectedOutput: "Deleted vercel target prj_marketing-site"},
		{name: "link rejects non github url", arguments: []string{"link", "prj_marketing-site", "--provider", "vercel", "--repository", "https://gitlab.com/acme/site"}, expectError: true},
		{name: "unknown provider", arguments: []string{"status", "x", "--provider", "heroku"}, expectError: true},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(cliSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(subTest *testing.T) {
			command, buildError := builder.Build()
			require.NoError(subTest, buildError)
			var output bytes.Buffer
			command.SetOut(&output)
			command.SetErr(&output)
			command.SilenceUsage = true
			command.SetArgs(testCase.arguments)

			executionError := command.ExecuteContext(context.Background())
			if testCase.expectError {
				require.Error(subTest, executionError)
				return
			}
			require.NoError(subTest, executionError)
			require.Contains(subTest, output.String(), testCase.expectedOutput)
		})
	}
	require.Equal(testInstance, []string{"prj_marketing-site"}, provider.deleted)
}

func TestScrapeEmailCommandFillsCustomer(testInstance *testing.T) {
	isolateEnvironment(testInstance)
	website := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/" {
			http.NotFound(responseWriter, request)
			return
		}
		_, _ = responseWriter.Write([]byte(`<html><a href="mailto:studio@harbor.test">Mail</a> noreply@harbor.test</html>`))
	}))
	defer website.Close()

	databasePath := filepath.Join(testInstance.TempDir(), "scrape.db")
	testInstance.Setenv("DATABASE_URL", databasePath)
	services, openError := openApplicationServices(zap.NewNop(), ApplicationConfiguration{Database: DatabaseConfiguration{URL: databasePath}})
	require.NoError(testInstance, openError)
	customer, createError := services.billing.CreateCustomer(context.Background(), billing.CustomerInput{Name: "Harbor Studio"})
	require.NoError(testInstance, createError)
	require.NoError(testInstance, services.Close())

	output, executionError := runApplication(testInstance, NewApplication(), "scrape-email", website.URL, "--customer", customer.ID)
	require.NoError(testInstance, executionError)
	require.Contains(testInstance, output, "studio@harbor.test")
	require.NotContains(testInstance, output, "noreply@harbor.test")

	reopened, reopenError := openApplicationServices(zap.NewNop(), ApplicationConfiguration{Database: DatabaseConfiguration{URL: databasePath}})
	require.NoError(testInstance, reopenError)
	defer reopened.Close()
	updated, getError := reopened.billing.GetCustomer(context.Background(), customer.ID)
	require.NoError(testInstance, getError)
	require.Equal(testInstance, "studio@harbor.test", updated.Email)
}

func TestServerDependencies(testInstance *testing.T) {
	isolateEnvironment(testInstance)
	configuration := ApplicationConfiguration{
		Database: DatabaseConfiguration{URL: filepath.Join(testInstance.TempDir(), "serve.db")},
		Auth:     AuthConfiguration{AdminEmail: "owner@billdesk.example", AdminPassword: "correct horse battery"},
		Deploy:   DeployConfiguration{NetlifyTokenSource: "env:NETLIFY_API_TOKEN", VercelTokenSource: "env:VERCEL_API_TOKEN", RailwayTokenSource: "env:RAILWAY_API_TOKEN"},
	}
	services, openError := openApplicationServices(zap.NewNop(), configuration)
	require.NoError(testInstance, openError)
	defer services.Close()

	_, missingSecretError := services.serverDependencies("http://localhost:5000")
	require.ErrorIs(testInstance, missingSecretError, ErrSessionSecretMissing)

	services.configuration.Auth.SessionSecret = testSessionSecretConstant
	dependencies, dependenciesError := services.serverDependencies("http://localhost:5000")
	require.NoError(testInstance, dependenciesError)
	require.True(testInstance, dependencies.LocalLogin.Enabled())
	require.Nil(testInstance, dependencies.Sessions.IdentityProvider())
	require.Nil(testInstance, dependencies.Payments)
	require.Nil(testInstance, dependencies.GitHub)
	require.Nil(testInstance, dependencies.Notion)
	require.Equal(testInstance, []string{"netlify", "railway", "vercel"}, dependencies.Deployments.Names())

	testInstance.Setenv("GITHUB_TOKEN", "ghp_static")
	services.configuration.Stripe.SecretKey = "sk_test_123"
	services.configuration.Auth.OIDC = OIDCConfiguration{IssuerURL: "https://issuer.example", ClientID: "client"}
	wired, wiredError := services.serverDependencies("http://localhost:5000")
	require.NoError(testInstance, wiredError)
	require.NotNil(testInstance, wired.Payments)
	require.NotNil(testInstance, wired.GitHub)
	require.NotNil(testInstance, wired.Sessions.IdentityProvider())
}
