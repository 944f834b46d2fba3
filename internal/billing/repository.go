package billing

import (
	"context"
	"errors"
	"time"
)

// ErrQuoteNotConvertible is returned by QuoteRepository.ConvertQuote when the quote was already
// converted or declined by the time the conversion committed.
var ErrQuoteNotConvertible = errors.New("quote is not convertible")

// ErrQuoteConverted is returned by QuoteRepository.UpdateQuote when the stored quote is converted.
var ErrQuoteConverted = errors.New("quote already converted")

// CustomerRepository persists customers.
type CustomerRepository interface {
	CreateCustomer(executionContext context.Context, customer Customer) error
	UpdateCustomer(executionContext context.Context, customer Customer) error
	GetCustomer(executionContext context.Context, customerID string) (Customer, error)
	FindCustomerByEmail(executionContext context.Context, email string) (Customer, error)
	FindCustomerByStripeID(executionContext context.Context, stripeCustomerID string) (Customer, error)
	ListCustomers(executionContext context.Context) ([]Customer, error)
	DeleteCustomer(executionContext context.Context, customerID string) error
}

// ProjectRepository persists projects.
type ProjectRepository interface {
	CreateProject(executionContext context.Context, project Project) error
	UpdateProject(executionContext context.Context, project Project) error
	GetProject(executionContext context.Context, projectID string) (Project, error)
	ListProjects(executionContext context.Context, customerID string) ([]Project, error)
	DeleteProject(executionContext context.Context, projectID string) error
}

// InvoiceRepository persists invoices together with their line items.
type InvoiceRepository interface {
	CreateInvoice(executionContext context.Context, invoice Invoice) error
	UpdateInvoice(executionContext context.Context, invoice Invoice) error
	GetInvoice(executionContext context.Context, invoiceID string) (Invoice, error)
	ListInvoices(executionContext context.Context, customerID string) ([]Invoice, error)
	DeleteInvoice(executionContext context.Context, invoiceID string) error
}

// QuoteRepository persists quotes together with their line items.
type QuoteRepository interface {
	CreateQuote(executionContext context.Context, quote Quote) error
	UpdateQuote(executionContext context.Context, quote Quote) error
	GetQuote(executionContext context.Context, quoteID string) (Quote, error)
	ListQuotes(executionContext context.Context, customerID string) ([]Quote, error)
	DeleteQuote(executionContext context.Context, quoteID string) error
	// ConvertQuote stores invoice and marks the quote converted in one unit of work.
	ConvertQuote(executionContext context.Context, quoteID string, invoice Invoice, convertedAt time.Time) error
}

// QuoteRequestRepository persists public quote requests.
type QuoteRequestRepository interface {
	CreateQuoteRequest(executionContext context.Context, request QuoteRequest) error
	UpdateQuoteRequest(executionContext context.Context, request QuoteRequest) error
	GetQuoteRequest(executionContext context.Context, requestID string) (QuoteRequest, error)
	ListQuoteRequests(executionContext context.Context) ([]QuoteRequest, error)
}

// PaymentMethodRepository persists saved payment methods.
type PaymentMethodRepository interface {
	UpsertPaymentMethod(executionContext context.Context, paymentMethod PaymentMethod) error
	ListPaymentMethods(executionContext context.Context, customerID string) ([]PaymentMethod, error)
	DeletePaymentMethodByStripeID(executionContext context.Context, stripePaymentMethodID string) error
}

// SequenceAllocator hands out per-year document sequence numbers.
type SequenceAllocator interface {
	NextSequence(executionContext context.Context, kind DocumentKind, year int) (int, error)
}

// Repository aggregates every persistence capability the billing service needs.
type Repository interface {
	CustomerRepository
	ProjectRepository
	InvoiceRepository
	QuoteRepository
	QuoteRequestRepository
	PaymentMethodRepository
	SequenceAllocator
}

// Clock abstracts time acquisition for deterministic testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time source.
type SystemClock struct{}

// Now returns the current system time in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// IdentifierGenerator produces unique record identifiers.
type IdentifierGenerator func() string
