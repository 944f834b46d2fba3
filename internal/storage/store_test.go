package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/auth"
	"github.com/temirov/billdesk/internal/billing"
	"github.com/temirov/billdesk/internal/faults"
	"github.com/temirov/billdesk/internal/knowledgebase"
	"github.com/temirov/billdesk/internal/storage"
)

const (
	testDatabaseFileNameConstant = "billdesk.db"
)

var (
	_ billing.Repository       = (*storage.Store)(nil)
	_ knowledgebase.Repository = (*storage.Store)(nil)
	_ auth.Store               = (*storage.Store)(nil)
)

func openTestStore(testInstance *testing.T) *storage.Store {
	testInstance.Helper()
	databasePath := filepath.Join(testInstance.TempDir(), "nested", testDatabaseFileNameConstant)
	store, openError := storage.Open(zap.NewNop(), "sqlite://"+databasePath)
	require.NoError(testInstance, openError)
	testInstance.Cleanup(func() { require.NoError(testInstance, store.Close()) })
	return store
}

func TestOpenRejectsNonSqliteURL(testInstance *testing.T) {
	_, openError := storage.Open(zap.NewNop(), "postgres://localhost/billdesk")
	require.Error(testInstance, openError)
}

func TestBillingServiceOverSqlite(testInstance *testing.T) {
	store := openTestStore(testInstance)
	executionContext := context.Background()
	service, serviceError := billing.NewService(zap.NewNop(), store)
	require.NoError(testInstance, serviceError)

	customer, customerError := service.CreateCustomer(executionContext, billing.CustomerInput{Name: "Globex", Email: "ap@globex.example"})
	require.NoError(testInstance, customerError)

	foundCustomer, findError := store.FindCustomerByEmail(executionContext, "AP@globex.example")
	require.NoError(testInstance, findError)
	require.Equal(testInstance, customer.ID, foundCustomer.ID)

	project, projectError := service.CreateProject(executionContext, billing.ProjectInput{CustomerID: customer.ID, Name: "Portal"})
	require.NoError(testInstance, projectError)

	invoice, invoiceError := service.CreateInvoice(executionContext, billing.InvoiceInput{
		CustomerID: customer.ID,
		ProjectID:  project.ID,
		TaxRate:    decimal.NewFromInt(5),
		LineItems: []billing.LineItemInput{
			{Description: "Discovery", Quantity: decimal.NewFromInt(4), UnitPrice: decimal.RequireFromString("95.00")},
			{Description: "Launch", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("250.00")},
		},
	})
	require.NoError(testInstance, invoiceError)

	loadedInvoice, loadError := service.GetInvoice(executionContext, invoice.ID)
	require.NoError(testInstance, loadError)
	require.Len(testInstance, loadedInvoice.LineItems, 2)
	require.Equal(testInstance, "Discovery", loadedInvoice.LineItems[0].Description)
	require.Equal(testInstance, "661.50", loadedInvoice.Totals.Total.StringFixed(2))
	require.Equal(testInstance, invoice.Number, loadedInvoice.Number)
	require.WithinDuration(testInstance, invoice.DueDate, loadedInvoice.DueDate, time.Millisecond)

	secondInvoice, secondError := service.CreateInvoice(executionContext, billing.InvoiceInput{
		CustomerID: customer.ID,
		LineItems:  []billing.LineItemInput{{Description: "Support", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(10)}},
	})
	require.NoError(testInstance, secondError)
	_, firstSequence, parseError := billing.ParseDocumentSequence(invoice.Number)
	require.NoError(testInstance, parseError)
	_, secondSequence, parseError := billing.ParseDocumentSequence(secondInvoice.Number)
	require.NoError(testInstance, parseError)
	require.Equal(testInstance, firstSequence+1, secondSequence)

	paidInvoice, paidError := service.MarkInvoicePaid(executionContext, invoice.ID)
	require.NoError(testInstance, paidError)
	require.NotNil(testInstance, paidInvoice.PaidAt)
	reloadedInvoice, reloadError := store.GetInvoice(executionContext, invoice.ID)
	require.NoError(testInstance, reloadError)
	require.NotNil(testInstance, reloadedInvoice.PaidAt)
	require.Equal(testInstance, billing.InvoiceStatusPaid, reloadedInvoice.Status)

	invoices, listError := service.ListInvoices(executionContext, customer.ID)
	require.NoError(testInstance, listError)
	require.Len(testInstance, invoices, 2)

	quote, quoteError := service.CreateQuote(executionContext, billing.QuoteInput{
		CustomerID: customer.ID,
		Title:      "Phase two",
		LineItems:  []billing.LineItemInput{{Description: "Build", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(300)}},
	})
	require.NoError(testInstance, quoteError)
	convertedInvoice, convertError := service.ConvertQuoteToInvoice(executionContext, quote.ID)
	require.NoError(testInstance, convertError)
	require.Equal(testInstance, "600.00", convertedInvoice.Totals.Total.StringFixed(2))
	_, secondConvertError := service.ConvertQuoteToInvoice(executionContext, quote.ID)
	require.True(testInstance, faults.IsPreconditionFailed(secondConvertError))

	require.NoError(testInstance, service.DeleteInvoice(executionContext, secondInvoice.ID))
	_, missingError := service.GetInvoice(executionContext, secondInvoice.ID)
	require.True(testInstance, faults.IsNotFound(missingError))

	require.NoError(testInstance, service.DeleteCustomer(executionContext, customer.ID))
	projects, projectsError := service.ListProjects(executionContext, "")
	require.NoError(testInstance, projectsError)
	require.Empty(testInstance, projects)
	remainingInvoices, remainingError := service.ListInvoices(executionContext, "")
	require.NoError(testInstance, remainingError)
	require.Empty(testInstance, remainingInvoices)
}

func TestConvertQuoteIsConditional(testInstance *testing.T) {
	store := openTestStore(testInstance)
	executionContext := context.Background()
	service, serviceError := billing.NewService(zap.NewNop(), store)
	require.NoError(testInstance, serviceError)

	customer, customerError := service.CreateCustomer(executionContext, billing.CustomerInput{Name: "Initech"})
	require.NoError(testInstance, customerError)
	quote, quoteError := service.CreateQuote(executionContext, billing.QuoteInput{
		CustomerID: customer.ID,
		Title:      "Intranet",
		LineItems:  []billing.LineItemInput{{Description: "Build", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(800)}},
	})
	require.NoError(testInstance, quoteError)

	now := time.Now().UTC()
	firstInvoice := billing.Invoice{ID: "inv-first", Number: "INV-2030-0001", CustomerID: customer.ID, Status: billing.InvoiceStatusDraft, Currency: "USD", IssueDate: now, DueDate: now, CreatedAt: now, UpdatedAt: now}
	require.NoError(testInstance, store.ConvertQuote(executionContext, quote.ID, firstInvoice, now))

	secondInvoice := firstInvoice
	secondInvoice.ID = "inv-second"
	secondInvoice.Number = "INV-2030-0002"
	require.ErrorIs(testInstance, store.ConvertQuote(executionContext, quote.ID, secondInvoice, now), billing.ErrQuoteNotConvertible)
	_, orphanError := store.GetInvoice(executionContext, secondInvoice.ID)
	require.True(testInstance, faults.IsNotFound(orphanError))

	storedQuote, loadError := store.GetQuote(executionContext, quote.ID)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, billing.QuoteStatusConverted, storedQuote.Status)
	require.Equal(testInstance, firstInvoice.ID, storedQuote.InvoiceID)

	storedQuote.Status = billing.QuoteStatusDraft
	require.ErrorIs(testInstance, store.UpdateQuote(executionContext, storedQuote), billing.ErrQuoteConverted)

	missingError := store.ConvertQuote(executionContext, "missing", secondInvoice, now)
	require.True(testInstance, faults.IsNotFound(missingError))
}

func TestNotFoundTranslation(testInstance *testing.T) {
	store := openTestStore(testInstance)
	executionContext := context.Background()

	_, customerError := store.GetCustomer(executionContext, "missing")
	require.True(testInstance, faults.IsNotFound(customerError))

	updateError := store.UpdateProject(executionContext, billing.Project{ID: "missing", UpdatedAt: time.Now()})
	require.True(testInstance, faults.IsNotFound(updateError))

	_, stripeError := store.FindCustomerByStripeID(executionContext, "")
	require.True(testInstance, faults.IsNotFound(stripeError))

	require.NoError(testInstance, store.DeletePaymentMethodByStripeID(executionContext, "pm_missing"))
	require.NoError(testInstance, store.DeleteSession(executionContext, "missing"))
}

func TestPaymentMethodUpsert(testInstance *testing.T) {
	store := openTestStore(testInstance)
	executionContext := context.Background()
	now := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(testInstance, store.CreateCustomer(executionContext, billing.Customer{ID: "cus-1", Name: "Initech", CreatedAt: now, UpdatedAt: now}))

	paymentMethod := billing.PaymentMethod{ID: "pm-row-1", CustomerID: "cus-1", StripePaymentMethodID: "pm_1", Brand: "visa", Last4: "4242", ExpMonth: 4, ExpYear: 2030, CreatedAt: now}
	require.NoError(testInstance, store.UpsertPaymentMethod(executionContext, paymentMethod))
	paymentMethod.ID = "pm-row-2"
	paymentMethod.Last4 = "1881"
	paymentMethod.IsDefault = true
	require.NoError(testInstance, store.UpsertPaymentMethod(executionContext, paymentMethod))

	paymentMethods, listError := store.ListPaymentMethods(executionContext, "cus-1")
	require.NoError(testInstance, listError)
	require.Len(testInstance, paymentMethods, 1)
	require.Equal(testInstance, "pm-row-1", paymentMethods[0].ID)
	require.Equal(testInstance, "1881", paymentMethods[0].Last4)
	require.True(testInstance, paymentMethods[0].IsDefault)
}

func TestKnowledgeBaseSearch(testInstance *testing.T) {
	store := openTestStore(testInstance)
	executionContext := context.Background()
	service, serviceError := knowledgebase.NewService(zap.NewNop(), store)
	require.NoError(testInstance, serviceError)

	question, submitError := service.Submit(executionContext, knowledgebase.QuestionInput{AuthorName: "Pat", Title: "How do refunds work?", Category: "Billing"})
	require.NoError(testInstance, submitError)
	_, publishError := service.Publish(executionContext, question.ID)
	require.True(testInstance, faults.IsPreconditionFailed(publishError))

	_, answerError := service.Answer(executionContext, question.ID, "Refunds post within 5 business days.")
	require.NoError(testInstance, answerError)
	_, publishError = service.Publish(executionContext, question.ID)
	require.NoError(testInstance, publishError)

	_, openError := service.Submit(executionContext, knowledgebase.QuestionInput{AuthorName: "Sam", Title: "Refund for 100% of order?"})
	require.NoError(testInstance, openError)

	imported, created, importError := service.Import(executionContext, knowledgebase.ExternalQuestion{ExternalID: "notion-page-1", Title: "Hosting options", Answer: "We deploy to Netlify.", Category: "hosting"})
	require.NoError(testInstance, importError)
	require.True(testInstance, created)
	_, created, importError = service.Import(executionContext, knowledgebase.ExternalQuestion{ExternalID: "notion-page-1", Title: "Hosting options", Answer: "We deploy to Netlify or Vercel.", Category: "hosting"})
	require.NoError(testInstance, importError)
	require.False(testInstance, created)

	testCases := []struct {
		name          string
		query         string
		category      string
		expectedCount int
	}{
		{name: "all published", expectedCount: 2},
		{name: "matches answer text", query: "VERCEL", expectedCount: 1},
		{name: "matches title", query: "refund", expectedCount: 1},
		{name: "percent is literal", query: "100%", expectedCount: 0},
		{name: "category filter", category: "billing", expectedCount: 1},
		{name: "no match", query: "kubernetes", expectedCount: 0},
	}
	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			questions, searchError := service.PublicKnowledgeBase(executionContext, testCase.query, testCase.category)
			require.NoError(subTest, searchError)
			require.Len(subTest, questions, testCase.expectedCount)
		})
	}

	reloaded, reloadError := store.FindQuestionByExternalID(executionContext, "notion-page-1")
	require.NoError(testInstance, reloadError)
	require.Equal(testInstance, imported.ID, reloaded.ID)
	require.Equal(testInstance, knowledgebase.QuestionSourceNotion, reloaded.Source)

	openCount, countError := service.CountOpen(executionContext)
	require.NoError(testInstance, countError)
	require.Equal(testInstance, 1, openCount)
}

func TestAccountsPersistence(testInstance *testing.T) {
	store := openTestStore(testInstance)
	executionContext := context.Background()
	now := time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)

	user, upsertError := store.UpsertUser(executionContext, auth.User{ID: "user-1", Email: "admin@billdesk.example", Role: auth.RoleAdmin, CreatedAt: now, UpdatedAt: now})
	require.NoError(testInstance, upsertError)
	require.True(testInstance, user.IsAdmin())

	later := now.Add(time.Hour)
	updatedUser, upsertError := store.UpsertUser(executionContext, auth.User{ID: "user-1", Email: "admin@billdesk.example", FirstName: "Ada", Role: auth.RoleAdmin, CreatedAt: later, UpdatedAt: later})
	require.NoError(testInstance, upsertError)
	require.Equal(testInstance, now, updatedUser.CreatedAt)
	require.Equal(testInstance, "Ada", updatedUser.FirstName)

	session := auth.Session{ID: "session-1", UserID: user.ID, AccessToken: "access", RefreshToken: "refresh", ExpiresAt: later, CreatedAt: now}
	require.NoError(testInstance, store.CreateSession(executionContext, session))
	session.AccessToken = "rotated"
	require.NoError(testInstance, store.UpdateSession(executionContext, session))
	loadedSession, sessionError := store.GetSession(executionContext, session.ID)
	require.NoError(testInstance, sessionError)
	require.Equal(testInstance, "rotated", loadedSession.AccessToken)
	require.Equal(testInstance, later, loadedSession.ExpiresAt)

	apiKey := auth.APIKey{ID: "key-1", Name: "ci", Prefix: "bd_12345", KeyHash: "hash-1", CreatedAt: now}
	require.NoError(testInstance, store.CreateAPIKey(executionContext, apiKey))
	require.NoError(testInstance, store.TouchAPIKey(executionContext, apiKey.ID, later))
	require.NoError(testInstance, store.RevokeAPIKey(executionContext, apiKey.ID, later))
	require.NoError(testInstance, store.RevokeAPIKey(executionContext, apiKey.ID, later.Add(time.Hour)))

	loadedKey, keyError := store.FindAPIKeyByHash(executionContext, "hash-1")
	require.NoError(testInstance, keyError)
	require.NotNil(testInstance, loadedKey.LastUsedAt)
	require.NotNil(testInstance, loadedKey.RevokedAt)
	require.Equal(testInstance, later, *loadedKey.RevokedAt)

	require.NoError(testInstance, store.Reset(executionContext))
	_, missingError := store.GetUser(executionContext, user.ID)
	require.True(testInstance, faults.IsNotFound(missingError))
}
