package seed_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/billing"
	"github.com/temirov/billdesk/internal/faults"
	"github.com/temirov/billdesk/internal/knowledgebase"
	"github.com/temirov/billdesk/internal/seed"
	"github.com/temirov/billdesk/internal/storage"
)

const (
	seedSubtestNameTemplateConstant = "%d_%s"
)

type seedFixtureEnvironment struct {
	store     *storage.Store
	billing   *billing.Service
	questions *knowledgebase.Service
	seeder    *seed.Seeder
}

func newSeedEnvironment(testInstance *testing.T) seedFixtureEnvironment {
	testInstance.Helper()
	store, openError := storage.Open(zap.NewNop(), filepath.Join(testInstance.TempDir(), "seed.db"))
	require.NoError(testInstance, openError)
	testInstance.Cleanup(func() { require.NoError(testInstance, store.Close()) })

	billingService, billingError := billing.NewService(zap.NewNop(), store)
	require.NoError(testInstance, billingError)
	questions, questionsError := knowledgebase.NewService(zap.NewNop(), store)
	require.NoError(testInstance, questionsError)
	seeder, seederError := seed.NewSeeder(zap.NewNop(), billingService, questions, store, store)
	require.NoError(testInstance, seederError)
	return seedFixtureEnvironment{store: store, billing: billingService, questions: questions, seeder: seeder}
}

func TestSeedDefaultFixtureIsIdempotent(testInstance *testing.T) {
	environment := newSeedEnvironment(testInstance)
	executionContext := context.Background()
	fixture, fixtureError := seed.DefaultFixture()
	require.NoError(testInstance, fixtureError)

	firstSummary, firstError := environment.seeder.Seed(executionContext, fixture, seed.Options{})
	require.NoError(testInstance, firstError)
	require.Equal(testInstance, seed.Summary{
		CustomersCreated: 2,
		Projects:         3,
		Invoices:         3,
		Quotes:           1,
		Questions:        3,
		QuoteRequests:    1,
	}, firstSummary)

	invoices, invoicesError := environment.billing.ListInvoices(executionContext, "")
	require.NoError(testInstance, invoicesError)
	require.Len(testInstance, invoices, 3)

	published, publishedError := environment.questions.PublicKnowledgeBase(executionContext, "", "")
	require.NoError(testInstance, publishedError)
	require.Len(testInstance, published, 2)
	for _, question := range published {
		require.Equal(testInstance, knowledgebase.QuestionSourceSeed, question.Source)
	}

	secondSummary, secondError := environment.seeder.Seed(executionContext, fixture, seed.Options{})
	require.NoError(testInstance, secondError)
	require.Equal(testInstance, seed.Summary{CustomersSkipped: 2}, secondSummary)

	customers, customersError := environment.billing.ListCustomers(executionContext)
	require.NoError(testInstance, customersError)
	require.Len(testInstance, customers, 2)

	resetSummary, resetError := environment.seeder.Seed(executionContext, fixture, seed.Options{Reset: true})
	require.NoError(testInstance, resetError)
	require.Equal(testInstance, 2, resetSummary.CustomersCreated)
	require.Equal(testInstance, 3, resetSummary.Questions)
}

func TestSeedRejectsBadFixtures(testInstance *testing.T) {
	testCases := []struct {
		name          string
		content       string
		parseFails    bool
		expectedField string
	}{
		{
			name:       "unknown key",
			content:    "customers:\n  - name: A\n    colour: blue\n",
			parseFails: true,
		},
		{
			name:          "bad amount",
			content:       "customers:\n  - name: A\n    invoices:\n      - line_items:\n          - description: x\n            quantity: lots\n            unit_price: \"1\"\n",
			expectedField: "customers[0].invoices[0].line_items[0].quantity",
		},
		{
			name:          "unknown project",
			content:       "customers:\n  - name: A\n    quotes:\n      - project: Missing\n        title: Q\n        line_items:\n          - description: x\n            quantity: \"1\"\n            unit_price: \"1\"\n",
			expectedField: "customers[0].quotes[0].project",
		},
		{
			name:          "bad date",
			content:       "customers:\n  - name: A\n    invoices:\n      - issue_date: soon\n        line_items:\n          - description: x\n            quantity: \"1\"\n            unit_price: \"1\"\n",
			expectedField: "customers[0].invoices[0].issue_date",
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(seedSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(subTest *testing.T) {
			fixture, parseError := seed.ParseFixture([]byte(testCase.content))
			if testCase.parseFails {
				require.Error(subTest, parseError)
				return
			}
			require.NoError(subTest, parseError)

			environment := newSeedEnvironment(subTest)
			_, seedError := environment.seeder.Seed(context.Background(), fixture, seed.Options{})
			var inputError faults.InvalidInputError
			require.ErrorAs(subTest, seedError, &inputError)
			require.Equal(subTest, testCase.expectedField, inputError.FieldName)
		})
	}
}

func TestLoadFixtureFromFile(testInstance *testing.T) {
	fixturePath := filepath.Join(testInstance.TempDir(), "fixture.yaml")
	require.NoError(testInstance, os.WriteFile(fixturePath, []byte("quote_requests:\n  - name: Sam\n    email: sam@example.org\n    message: Landing page please\n"), 0o600))

	fixture, loadError := seed.LoadFixture(fixturePath)
	require.NoError(testInstance, loadError)
	require.Len(testInstance, fixture.QuoteRequests, 1)

	_, missingError := seed.LoadFixture(filepath.Join(testInstance.TempDir(), "absent.yaml"))
	require.Error(testInstance, missingError)
}

func TestSeedResetRequiresResetter(testInstance *testing.T) {
	environment := newSeedEnvironment(testInstance)
	seeder, seederError := seed.NewSeeder(zap.NewNop(), environment.billing, environment.questions, environment.store, nil)
	require.NoError(testInstance, seederError)
	_, seedError := seeder.Seed(context.Background(), seed.Fixture{}, seed.Options{Reset: true})
	require.Error(testInstance, seedError)
}
