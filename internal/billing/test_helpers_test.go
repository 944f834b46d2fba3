package billing_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/temirov/billdesk/internal/billing"
	"github.com/temirov/billdesk/internal/faults"
)

type fixedClock struct {
	moment time.Time
}

func (clock *fixedClock) Now() time.Time {
	return clock.moment
}

func sequentialIdentifiers() billing.IdentifierGenerator {
	counter := 0
	return func() string {
		counter++
		return fmt.Sprintf("id-%03d", counter)
	}
}

type memoryRepository struct {
	mutex          sync.Mutex
	customers      map[string]billing.Customer
	projects       map[string]billing.Project
	invoices       map[string]billing.Invoice
	quotes         map[string]billing.Quote
	quoteRequests  map[string]billing.QuoteRequest
	paymentMethods map[string]billing.PaymentMethod
	sequences      map[string]int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		customers:      map[string]billing.Customer{},
		projects:       map[string]billing.Project{},
		invoices:       map[string]billing.Invoice{},
		quotes:         map[string]billing.Quote{},
		quoteRequests:  map[string]billing.QuoteRequest{},
		paymentMethods: map[string]billing.PaymentMethod{},
		sequences:      map[string]int{},
	}
}

func (repository *memoryRepository) CreateCustomer(_ context.Context, customer billing.Customer) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	repository.customers[customer.ID] = customer
	return nil
}

func (repository *memoryRepository) UpdateCustomer(_ context.Context, customer billing.Customer) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	if _, found := repository.customers[customer.ID]; !found {
		return faults.NotFoundError{Resource: "customer", Identifier: customer.ID}
	}
	repository.customers[customer.ID] = customer
	return nil
}

func (repository *memoryRepository) GetCustomer(_ context.Context, customerID string) (billing.Customer, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	customer, found := repository.customers[customerID]
	if !found {
		return billing.Customer{}, faults.NotFoundError{Resource: "customer", Identifier: customerID}
	}
	return customer, nil
}

func (repository *memoryRepository) FindCustomerByEmail(_ context.Context, email string) (billing.Customer, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	for _, customer := range repository.customers {
		if customer.Email == email {
			return customer, nil
		}
	}
	return billing.Customer{}, faults.NotFoundError{Resource: "customer", Identifier: email}
}

func (repository *memoryRepository) FindCustomerByStripeID(_ context.Context, stripeCustomerID string) (billing.Customer, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	for _, customer := range repository.customers {
		if customer.StripeCustomerID == stripeCustomerID {
			return customer, nil
		}
	}
	return billing.Customer{}, faults.NotFoundError{Resource: "customer", Identifier: stripeCustomerID}
}

func (repository *memoryRepository) ListCustomers(_ context.Context) ([]billing.Customer, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	customers := make([]billing.Customer, 0, len(repository.customers))
	for _, customer := range repository.customers {
		customers = append(customers, customer)
	}
	sort.Slice(customers, func(left int, right int) bool { return customers[left].ID < customers[right].ID })
	return customers, nil
}

func (repository *memoryRepository) DeleteCustomer(_ context.Context, customerID string) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	delete(repository.customers, customerID)
	return nil
}

func (repository *memoryRepository) CreateProject(_ context.Context, project billing.Project) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	repository.projects[project.ID] = project
	return nil
}

func (repository *memoryRepository) UpdateProject(_ context.Context, project billing.Project) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	repository.projects[project.ID] = project
	return nil
}

func (repository *memoryRepository) GetProject(_ context.Context, projectID string) (billing.Project, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	project, found := repository.projects[projectID]
	if !found {
		return billing.Project{}, faults.NotFoundError{Resource: "project", Identifier: projectID}
	}
	return project, nil
}

func (repository *memoryRepository) ListProjects(_ context.Context, customerID string) ([]billing.Project, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	projects := make([]billing.Project, 0, len(repository.projects))
	for _, project := range repository.projects {
		if len(customerID) > 0 && project.CustomerID != customerID {
			continue
		}
		projects = append(projects, project)
	}
	sort.Slice(projects, func(left int, right int) bool { return projects[left].ID < projects[right].ID })
	return projects, nil
}

func (repository *memoryRepository) DeleteProject(_ context.Context, projectID string) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	delete(repository.projects, projectID)
	return nil
}

func (repository *memoryRepository) CreateInvoice(_ context.Context, invoice billing.Invoice) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	repository.invoices[invoice.ID] = invoice
	return nil
}

func (repository *memoryRepository) UpdateInvoice(_ context.Context, invoice billing.Invoice) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	repository.invoices[invoice.ID] = invoice
	return nil
}

func (repository *memoryRepository) GetInvoice(_ context.Context, invoiceID string) (billing.Invoice, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	invoice, found := repository.invoices[invoiceID]
	if !found {
		return billing.Invoice{}, faults.NotFoundError{Resource: "invoice", Identifier: invoiceID}
	}
	return invoice, nil
}

func (repository *memoryRepository) ListInvoices(_ context.Context, customerID string) ([]billing.Invoice, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	invoices := make([]billing.Invoice, 0, len(repository.invoices))
	for _, invoice := range repository.invoices {
		if len(customerID) > 0 && invoice.CustomerID != customerID {
			continue
		}
		invoices = append(invoices, invoice)
	}
	sort.Slice(invoices, func(left int, right int) bool { return invoices[left].Number < invoices[right].Number })
	return invoices, nil
}

func (repository *memoryRepository) DeleteInvoice(_ context.Context, invoiceID string) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	delete(repository.invoices, invoiceID)
	return nil
}

func (repository *memoryRepository) CreateQuote(_ context.Context, quote billing.Quote) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	repository.quotes[quote.ID] = quote
	return nil
}

func (repository *memoryRepository) UpdateQuote(_ context.Context, quote billing.Quote) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	if repository.quotes[quote.ID].Status == billing.QuoteStatusConverted {
		return billing.ErrQuoteConverted
	}
	repository.quotes[quote.ID] = quote
	return nil
}

func (repository *memoryRepository) ConvertQuote(_ context.Context, quoteID string, invoice billing.Invoice, convertedAt time.Time) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	quote, found := repository.quotes[quoteID]
	if !found {
		return faults.NotFoundError{Resource: "quote", Identifier: quoteID}
	}
	if quote.Status == billing.QuoteStatusConverted || quote.Status == billing.QuoteStatusDeclined {
		return billing.ErrQuoteNotConvertible
	}
	quote.Status = billing.QuoteStatusConverted
	quote.InvoiceID = invoice.ID
	quote.UpdatedAt = convertedAt
	repository.quotes[quoteID] = quote
	repository.invoices[invoice.ID] = invoice
	return nil
}

// barrierQuoteRepository holds every GetQuote caller until all expected readers arrived.
type barrierQuoteRepository struct {
	*memoryRepository
	readers sync.WaitGroup
}

func (repository *barrierQuoteRepository) GetQuote(executionContext context.Context, quoteID string) (billing.Quote, error) {
	quote, lookupError := repository.memoryRepository.GetQuote(executionContext, quoteID)
	if quote.Status != billing.QuoteStatusConverted {
		repository.readers.Done()
		repository.readers.Wait()
	}
	return quote, lookupError
}

func (repository *memoryRepository) GetQuote(_ context.Context, quoteID string) (billing.Quote, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	quote, found := repository.quotes[quoteID]
	if !found {
		return billing.Quote{}, faults.NotFoundError{Resource: "quote", Identifier: quoteID}
	}
	return quote, nil
}

func (repository *memoryRepository) ListQuotes(_ context.Context, customerID string) ([]billing.Quote, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	quotes := make([]billing.Quote, 0, len(repository.quotes))
	for _, quote := range repository.quotes {
		if len(customerID) > 0 && quote.CustomerID != customerID {
			continue
		}
		quotes = append(quotes, quote)
	}
	return quotes, nil
}

func (repository *memoryRepository) DeleteQuote(_ context.Context, quoteID string) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	delete(repository.quotes, quoteID)
	return nil
}

func (repository *memoryRepository) CreateQuoteRequest(_ context.Context, request billing.QuoteRequest) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	repository.quoteRequests[request.ID] = request
	return nil
}

func (repository *memoryRepository) UpdateQuoteRequest(_ context.Context, request billing.QuoteRequest) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	repository.quoteRequests[request.ID] = request
	return nil
}

func (repository *memoryRepository) GetQuoteRequest(_ context.Context, requestID string) (billing.QuoteRequest, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	request, found := repository.quoteRequests[requestID]
	if !found {
		return billing.QuoteRequest{}, faults.NotFoundError{Resource: "quote request", Identifier: requestID}
	}
	return request, nil
}

func (repository *memoryRepository) ListQuoteRequests(_ context.Context) ([]billing.QuoteRequest, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	requests := make([]billing.QuoteRequest, 0, len(repository.quoteRequests))
	for _, request := range repository.quoteRequests {
		requests = append(requests, request)
	}
	return requests, nil
}

func (repository *memoryRepository) UpsertPaymentMethod(_ context.Context, paymentMethod billing.PaymentMethod) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	repository.paymentMethods[paymentMethod.StripePaymentMethodID] = paymentMethod
	return nil
}

func (repository *memoryRepository) ListPaymentMethods(_ context.Context, customerID string) ([]billing.PaymentMethod, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	paymentMethods := []billing.PaymentMethod{}
	for _, paymentMethod := range repository.paymentMethods {
		if paymentMethod.CustomerID == customerID {
			paymentMethods = append(paymentMethods, paymentMethod)
		}
	}
	return paymentMethods, nil
}

func (repository *memoryRepository) DeletePaymentMethodByStripeID(_ context.Context, stripePaymentMethodID string) error {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	delete(repository.paymentMethods, stripePaymentMethodID)
	return nil
}

func (repository *memoryRepository) NextSequence(_ context.Context, kind billing.DocumentKind, year int) (int, error) {
	repository.mutex.Lock()
	defer repository.mutex.Unlock()
	key := fmt.Sprintf("%s-%d", kind, year)
	repository.sequences[key]++
	return repository.sequences[key], nil
}
