package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/faults"
)

const (
	repositoryMissingMessageConstant        = "billing repository must be provided"
	customerResourceNameConstant            = "customer"
	markPaidOperationNameConstant           = "MarkInvoicePaid"
	updateInvoiceOperationNameConstant      = "UpdateInvoice"
	convertQuoteOperationNameConstant       = "ConvertQuoteToInvoice"
	voidInvoiceCannotBePaidMessageConstant  = "void invoices cannot be marked paid"
	quoteAlreadyConvertedMessageConstant    = "quote already converted to an invoice"
	quoteDeclinedMessageConstant            = "declined quotes cannot be converted"
	paidInvoiceImmutableMessageConstant     = "paid invoices cannot be edited"
	sequenceAllocationErrorTemplateConstant = "unable to allocate %s number: %w"
	logFieldInvoiceIDConstant               = "invoice_id"
	logFieldInvoiceNumberConstant           = "invoice_number"
	logFieldQuoteIDConstant                 = "quote_id"
	logFieldCustomerIDConstant              = "customer_id"
	invoiceCreatedMessageConstant           = "invoice created"
	invoicePaidMessageConstant              = "invoice marked paid"
	quoteConvertedMessageConstant           = "quote converted to invoice"
)

// Service applies billing rules on top of a Repository.
type Service struct {
	logger             *zap.Logger
	repository         Repository
	clock              Clock
	generateIdentifier IdentifierGenerator
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithClock overrides the time source.
func WithClock(clock Clock) ServiceOption {
	return func(service *Service) {
		if clock != nil {
			service.clock = clock
		}
	}
}

// WithIdentifierGenerator overrides identifier generation.
func WithIdentifierGenerator(generator IdentifierGenerator) ServiceOption {
	return func(service *Service) {
		if generator != nil {
			service.generateIdentifier = generator
		}
	}
}

// NewService constructs a billing service.
func NewService(logger *zap.Logger, repository Repository, options ...ServiceOption) (*Service, error) {
	if repository == nil {
		return nil, errors.New(repositoryMissingMessageConstant)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	service := &Service{
		logger:             logger,
		repository:         repository,
		clock:              SystemClock{},
		generateIdentifier: uuid.NewString,
	}
	for _, option := range options {
		option(service)
	}
	return service, nil
}

// CreateCustomer validates and stores a new customer.
func (service *Service) CreateCustomer(executionContext context.Context, input CustomerInput) (Customer, error) {
	normalizedInput := input.Normalize()
	if validationError := normalizedInput.Validate(); validationError != nil {
		return Customer{}, validationError
	}
	now := service.clock.Now()
	customer := applyCustomerInput(Customer{ID: service.generateIdentifier(), CreatedAt: now}, normalizedInput)
	customer.UpdatedAt = now
	if createError := service.repository.CreateCustomer(executionContext, customer); createError != nil {
		return Customer{}, createError
	}
	return customer, nil
}

// UpdateCustomer replaces editable customer fields.
func (service *Service) UpdateCustomer(executionContext context.Context, customerID string, input CustomerInput) (Customer, error) {
	normalizedInput := input.Normalize()
	if validationError := normalizedInput.Validate(); validationError != nil {
		return Customer{}, validationError
	}
	existingCustomer, lookupError := service.repository.GetCustomer(executionContext, customerID)
	if lookupError != nil {
		return Customer{}, lookupError
	}
	updatedCustomer := applyCustomerInput(existingCustomer, normalizedInput)
	updatedCustomer.UpdatedAt = service.clock.Now()
	if updateError := service.repository.UpdateCustomer(executionContext, updatedCustomer); updateError != nil {
		return Customer{}, updateError
	}
	return updatedCustomer, nil
}

// SaveCustomer persists a customer record as-is, refreshing UpdatedAt.
func (service *Service) SaveCustomer(executionContext context.Context, customer Customer) (Customer, error) {
	customer.UpdatedAt = service.clock.Now()
	if updateError := service.repository.UpdateCustomer(executionContext, customer); updateError != nil {
		return Customer{}, updateError
	}
	return customer, nil
}

// GetCustomer loads a customer by identifier.
func (service *Service) GetCustomer(executionContext context.Context, customerID string) (Customer, error) {
	return service.repository.GetCustomer(executionContext, customerID)
}

// FindCustomerByStripeID loads the customer linked to a Stripe customer identifier.
func (service *Service) FindCustomerByStripeID(executionContext context.Context, stripeCustomerID string) (Customer, error) {
	return service.repository.FindCustomerByStripeID(executionContext, stripeCustomerID)
}

// ListCustomers returns all customers.
func (service *Service) ListCustomers(executionContext context.Context) ([]Customer, error) {
	return service.repository.ListCustomers(executionContext)
}

// DeleteCustomer removes a customer.
func (service *Service) DeleteCustomer(executionContext context.Context, customerID string) error {
	return service.repository.DeleteCustomer(executionContext, customerID)
}

// CreateProject validates and stores a project for an existing customer.
func (service *Service) CreateProject(executionContext context.Context, input ProjectInput) (Project, error) {
	if validationError := input.Validate(); validationError != nil {
		return Project{}, validationError
	}
	if _, customerError := service.requireCustomer(executionContext, input.CustomerID); customerError != nil {
		return Project{}, customerError
	}
	now := service.clock.Now()
	project := applyProjectInput(Project{ID: service.generateIdentifier(), CreatedAt: now}, input)
	project.UpdatedAt = now
	if createError := service.repository.CreateProject(executionContext, project); createError != nil {
		return Project{}, createError
	}
	return project, nil
}

// UpdateProject replaces editable project fields while preserving deploy linkage.
func (service *Service) UpdateProject(executionContext context.Context, projectID string, input ProjectInput) (Project, error) {
	if validationError := input.Validate(); validationError != nil {
		return Project{}, validationError
	}
	existingProject, lookupError := service.repository.GetProject(executionContext, projectID)
	if lookupError != nil {
		return Project{}, lookupError
	}
	if _, customerError := service.requireCustomer(executionContext, input.CustomerID); customerError != nil {
		return Project{}, customerError
	}
	updatedProject := applyProjectInput(existingProject, input)
	updatedProject.UpdatedAt = service.clock.Now()
	if updateError := service.repository.UpdateProject(executionContext, updatedProject); updateError != nil {
		return Project{}, updateError
	}
	return updatedProject, nil
}

// RecordDeployTarget stores the external deploy target associated with a project.
func (service *Service) RecordDeployTarget(executionContext context.Context, projectID string, providerName string, targetID string, targetURL string, repositoryURL string) (Project, error) {
	project, lookupError := service.repository.GetProject(executionContext, projectID)
	if lookupError != nil {
		return Project{}, lookupError
	}
	project.DeployProvider = providerName
	project.DeployTargetID = targetID
	if len(strings.TrimSpace(targetURL)) > 0 {
		project.DeployURL = targetURL
	}
	if len(strings.TrimSpace(repositoryURL)) > 0 {
		project.RepositoryURL = strings.TrimSpace(repositoryURL)
	}
	if len(targetID) == 0 {
		project.DeployURL = ""
	}
	project.UpdatedAt = service.clock.Now()
	if updateError := service.repository.UpdateProject(executionContext, project); updateError != nil {
		return Project{}, updateError
	}
	return project, nil
}

// GetProject loads a project by identifier.
func (service *Service) GetProject(executionContext context.Context, projectID string) (Project, error) {
	return service.repository.GetProject(executionContext, projectID)
}

// ListProjects returns projects, optionally filtered by customer.
func (service *Service) ListProjects(executionContext context.Context, customerID string) ([]Project, error) {
	return service.repository.ListProjects(executionContext, strings.TrimSpace(customerID))
}

// DeleteProject removes a project.
func (service *Service) DeleteProject(executionContext context.Context, projectID string) error {
	return service.repository.DeleteProject(executionContext, projectID)
}

// CreateInvoice numbers, prices, and stores a new invoice.
func (service *Service) CreateInvoice(executionContext context.Context, input InvoiceInput) (Invoice, error) {
	invoice, prepareError := service.prepareInvoice(executionContext, input)
	if prepareError != nil {
		return Invoice{}, prepareError
	}
	if createError := service.repository.CreateInvoice(executionContext, invoice); createError != nil {
		return Invoice{}, createError
	}

	service.logger.Info(
		invoiceCreatedMessageConstant,
		zap.String(logFieldInvoiceIDConstant, invoice.ID),
		zap.String(logFieldInvoiceNumberConstant, invoice.Number),
		zap.String(logFieldCustomerIDConstant, invoice.CustomerID),
	)
	return service.presentInvoice(invoice), nil
}

// prepareInvoice validates input and assigns the identifier, number and timestamps of a new invoice.
func (service *Service) prepareInvoice(executionContext context.Context, input InvoiceInput) (Invoice, error) {
	invoice, buildError := service.buildInvoice(executionContext, Invoice{}, input)
	if buildError != nil {
		return Invoice{}, buildError
	}

	now := service.clock.Now()
	sequence, sequenceError := service.repository.NextSequence(executionContext, DocumentKindInvoice, invoice.IssueDate.Year())
	if sequenceError != nil {
		return Invoice{}, fmt.Errorf(sequenceAllocationErrorTemplateConstant, DocumentKindInvoice, sequenceError)
	}
	invoice.ID = service.generateIdentifier()
	invoice.Number = FormatDocumentNumber(DocumentKindInvoice, invoice.IssueDate.Year(), sequence)
	invoice.CreatedAt = now
	invoice.UpdatedAt = now
	if invoice.Status == InvoiceStatusPaid {
		invoice.PaidAt = &now
	}
	return invoice, nil
}

// UpdateInvoice replaces editable invoice fields and line items.
func (service *Service) UpdateInvoice(executionContext context.Context, invoiceID string, input InvoiceInput) (Invoice, error) {
	existingInvoice, lookupError := service.repository.GetInvoice(executionContext, invoiceID)
	if lookupError != nil {
		return Invoice{}, lookupError
	}
	if existingInvoice.Status == InvoiceStatusPaid {
		return Invoice{}, faults.PreconditionFailedError{Operation: updateInvoiceOperationNameConstant, Message: paidInvoiceImmutableMessageConstant}
	}
	updatedInvoice, buildError := service.buildInvoice(executionContext, existingInvoice, input)
	if buildError != nil {
		return Invoice{}, buildError
	}
	if existingInvoice.Status == InvoiceStatusVoid && updatedInvoice.Status == InvoiceStatusPaid {
		return Invoice{}, faults.PreconditionFailedError{Operation: updateInvoiceOperationNameConstant, Message: voidInvoiceCannotBePaidMessageConstant}
	}
	now := service.clock.Now()
	updatedInvoice.UpdatedAt = now
	if updatedInvoice.Status == InvoiceStatusPaid && updatedInvoice.PaidAt == nil {
		updatedInvoice.PaidAt = &now
	}
	if updateError := service.repository.UpdateInvoice(executionContext, updatedInvoice); updateError != nil {
		return Invoice{}, updateError
	}
	return service.presentInvoice(updatedInvoice), nil
}

// MarkInvoicePaid records payment for an invoice. Paying an already paid invoice is a no-op.
func (service *Service) MarkInvoicePaid(executionContext context.Context, invoiceID string) (Invoice, error) {
	invoice, lookupError := service.repository.GetInvoice(executionContext, invoiceID)
	if lookupError != nil {
		return Invoice{}, lookupError
	}
	switch invoice.Status {
	case InvoiceStatusVoid:
		return Invoice{}, faults.PreconditionFailedError{Operation: markPaidOperationNameConstant, Message: voidInvoiceCannotBePaidMessageConstant}
	case InvoiceStatusPaid:
		return service.presentInvoice(invoice), nil
	}

	now := service.clock.Now()
	invoice.Status = InvoiceStatusPaid
	invoice.PaidAt = &now
	invoice.UpdatedAt = now
	if updateError := service.repository.UpdateInvoice(executionContext, invoice); updateError != nil {
		return Invoice{}, updateError
	}
	service.logger.Info(
		invoicePaidMessageConstant,
		zap.String(logFieldInvoiceIDConstant, invoice.ID),
		zap.String(logFieldInvoiceNumberConstant, invoice.Number),
	)
	return service.presentInvoice(invoice), nil
}

// GetInvoice loads an invoice with totals and effective status.
func (service *Service) GetInvoice(executionContext context.Context, invoiceID string) (Invoice, error) {
	invoice, lookupError := service.repository.GetInvoice(executionContext, invoiceID)
	if lookupError != nil {
		return Invoice{}, lookupError
	}
	return service.presentInvoice(invoice), nil
}

// ListInvoices returns invoices, optionally filtered by customer.
func (service *Service) ListInvoices(executionContext context.Context, customerID string) ([]Invoice, error) {
	invoices, listError := service.repository.ListInvoices(executionContext, strings.TrimSpace(customerID))
	if listError != nil {
		return nil, listError
	}
	presentedInvoices := make([]Invoice, 0, len(invoices))
	for _, invoice := range invoices {
		presentedInvoices = append(presentedInvoices, service.presentInvoice(invoice))
	}
	return presentedInvoices, nil
}

// DeleteInvoice removes an invoice.
func (service *Service) DeleteInvoice(executionContext context.Context, invoiceID string) error {
	return service.repository.DeleteInvoice(executionContext, invoiceID)
}

// CreateQuote numbers, prices, and stores a new quote.
func (service *Service) CreateQuote(executionContext context.Context, input QuoteInput) (Quote, error) {
	quote, buildError := service.buildQuote(executionContext, Quote{}, input)
	if buildError != nil {
		return Quote{}, buildError
	}
	now := service.clock.Now()
	sequence, sequenceError := service.repository.NextSequence(executionContext, DocumentKindQuote, now.Year())
	if sequenceError != nil {
		return Quote{}, fmt.Errorf(sequenceAllocationErrorTemplateConstant, DocumentKindQuote, sequenceError)
	}
	quote.ID = service.generateIdentifier()
	quote.Number = FormatDocumentNumber(DocumentKindQuote, now.Year(), sequence)
	quote.CreatedAt = now
	quote.UpdatedAt = now
	if createError := service.repository.CreateQuote(executionContext, quote); createError != nil {
		return Quote{}, createError
	}
	return quote, nil
}

// UpdateQuote replaces editable quote fields and line items.
func (service *Service) UpdateQuote(executionContext context.Context, quoteID string, input QuoteInput) (Quote, error) {
	existingQuote, lookupError := service.repository.GetQuote(executionContext, quoteID)
	if lookupError != nil {
		return Quote{}, lookupError
	}
	if existingQuote.Status == QuoteStatusConverted {
		return Quote{}, faults.PreconditionFailedError{Operation: "UpdateQuote", Message: quoteAlreadyConvertedMessageConstant}
	}
	updatedQuote, buildError := service.buildQuote(executionContext, existingQuote, input)
	if buildError != nil {
		return Quote{}, buildError
	}
	updatedQuote.UpdatedAt = service.clock.Now()
	if updateError := service.repository.UpdateQuote(executionContext, updatedQuote); updateError != nil {
		if errors.Is(updateError, ErrQuoteConverted) {
			return Quote{}, faults.PreconditionFailedError{Operation: "UpdateQuote", Message: quoteAlreadyConvertedMessageConstant}
		}
		return Quote{}, updateError
	}
	return updatedQuote, nil
}

// ConvertQuoteToInvoice creates a draft invoice from a quote and marks the quote converted.
// Concurrent conversions of one quote produce exactly one invoice.
func (service *Service) ConvertQuoteToInvoice(executionContext context.Context, quoteID string) (Invoice, error) {
	quote, lookupError := service.repository.GetQuote(executionContext, quoteID)
	if lookupError != nil {
		return Invoice{}, lookupError
	}
	if conversionError := quoteConversionPrecondition(quote.Status); conversionError != nil {
		return Invoice{}, conversionError
	}

	lineItemInputs := make([]LineItemInput, 0, len(quote.LineItems))
	for _, lineItem := range quote.LineItems {
		lineItemInputs = append(lineItemInputs, LineItemInput{
			Description: lineItem.Description,
			Quantity:    lineItem.Quantity,
			UnitPrice:   lineItem.UnitPrice,
		})
	}

	invoice, prepareError := service.prepareInvoice(executionContext, InvoiceInput{
		CustomerID: quote.CustomerID,
		ProjectID:  quote.ProjectID,
		Status:     InvoiceStatusDraft,
		Currency:   quote.Currency,
		TaxRate:    quote.TaxRate,
		Notes:      quote.Notes,
		LineItems:  lineItemInputs,
	})
	if prepareError != nil {
		return Invoice{}, prepareError
	}

	if convertError := service.repository.ConvertQuote(executionContext, quote.ID, invoice, service.clock.Now()); convertError != nil {
		if !errors.Is(convertError, ErrQuoteNotConvertible) {
			return Invoice{}, convertError
		}
		currentQuote, reloadError := service.repository.GetQuote(executionContext, quote.ID)
		if reloadError != nil {
			return Invoice{}, reloadError
		}
		if conversionError := quoteConversionPrecondition(currentQuote.Status); conversionError != nil {
			return Invoice{}, conversionError
		}
		return Invoice{}, faults.PreconditionFailedError{Operation: convertQuoteOperationNameConstant, Message: quoteAlreadyConvertedMessageConstant}
	}

	service.logger.Info(
		quoteConvertedMessageConstant,
		zap.String(logFieldQuoteIDConstant, quote.ID),
		zap.String(logFieldInvoiceIDConstant, invoice.ID),
	)
	return service.presentInvoice(invoice), nil
}

func quoteConversionPrecondition(status QuoteStatus) error {
	switch status {
	case QuoteStatusConverted:
		return faults.PreconditionFailedError{Operation: convertQuoteOperationNameConstant, Message: quoteAlreadyConvertedMessageConstant}
	case QuoteStatusDeclined:
		return faults.PreconditionFailedError{Operation: convertQuoteOperationNameConstant, Message: quoteDeclinedMessageConstant}
	}
	return nil
}

// GetQuote loads a quote by identifier.
func (service *Service) GetQuote(executionContext context.Context, quoteID string) (Quote, error) {
	return service.repository.GetQuote(executionContext, quoteID)
}

// ListQuotes returns quotes, optionally filtered by customer.
func (service *Service) ListQuotes(executionContext context.Context, customerID string) ([]Quote, error) {
	return service.repository.ListQuotes(executionContext, strings.TrimSpace(customerID))
}

// DeleteQuote removes a quote.
func (service *Service) DeleteQuote(executionContext context.Context, quoteID string) error {
	return service.repository.DeleteQuote(executionContext, quoteID)
}

// SubmitQuoteRequest stores a public intake form submission.
func (service *Service) SubmitQuoteRequest(executionContext context.Context, input QuoteRequestInput) (QuoteRequest, error) {
	if validationError := input.Validate(); validationError != nil {
		return QuoteRequest{}, validationError
	}
	now := service.clock.Now()
	request := QuoteRequest{
		ID:          service.generateIdentifier(),
		Name:        strings.TrimSpace(input.Name),
		Email:       strings.ToLower(strings.TrimSpace(input.Email)),
		Company:     strings.TrimSpace(input.Company),
		ProjectType: strings.TrimSpace(input.ProjectType),
		Budget:      strings.TrimSpace(input.Budget),
		Message:     strings.TrimSpace(input.Message),
		Status:      QuoteRequestStatusNew,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if createError := service.repository.CreateQuoteRequest(executionContext, request); createError != nil {
		return QuoteRequest{}, createError
	}
	return request, nil
}

// ListQuoteRequests returns every quote request, newest first.
func (service *Service) ListQuoteRequests(executionContext context.Context) ([]QuoteRequest, error) {
	return service.repository.ListQuoteRequests(executionContext)
}

// UpdateQuoteRequestStatus moves a quote request through review.
func (service *Service) UpdateQuoteRequestStatus(executionContext context.Context, requestID string, statusValue string) (QuoteRequest, error) {
	status, statusError := ParseQuoteRequestStatus(statusValue)
	if statusError != nil {
		return QuoteRequest{}, statusError
	}
	request, lookupError := service.repository.GetQuoteRequest(executionContext, requestID)
	if lookupError != nil {
		return QuoteRequest{}, lookupError
	}
	request.Status = status
	request.UpdatedAt = service.clock.Now()
	if updateError := service.repository.UpdateQuoteRequest(executionContext, request); updateError != nil {
		return QuoteRequest{}, updateError
	}
	return request, nil
}

// SavePaymentMethod records a payment method for a customer.
func (service *Service) SavePaymentMethod(executionContext context.Context, paymentMethod PaymentMethod) (PaymentMethod, error) {
	if len(strings.TrimSpace(paymentMethod.StripePaymentMethodID)) == 0 {
		return PaymentMethod{}, faults.Required("stripePaymentMethodId")
	}
	if _, customerError := service.requireCustomer(executionContext, paymentMethod.CustomerID); customerError != nil {
		return PaymentMethod{}, customerError
	}
	if len(paymentMethod.ID) == 0 {
		paymentMethod.ID = service.generateIdentifier()
	}
	if paymentMethod.CreatedAt.IsZero() {
		paymentMethod.CreatedAt = service.clock.Now()
	}
	if upsertError := service.repository.UpsertPaymentMethod(executionContext, paymentMethod); upsertError != nil {
		return PaymentMethod{}, upsertError
	}
	return paymentMethod, nil
}

// ListPaymentMethods returns the payment methods stored for a customer.
func (service *Service) ListPaymentMethods(executionContext context.Context, customerID string) ([]PaymentMethod, error) {
	if len(strings.TrimSpace(customerID)) == 0 {
		return nil, faults.Required(customerIDFieldNameConstant)
	}
	return service.repository.ListPaymentMethods(executionContext, customerID)
}

// RemovePaymentMethod deletes a payment method by its processor identifier.
func (service *Service) RemovePaymentMethod(executionContext context.Context, stripePaymentMethodID string) error {
	return service.repository.DeletePaymentMethodByStripeID(executionContext, stripePaymentMethodID)
}

// DashboardStats aggregates headline dashboard numbers.
func (service *Service) DashboardStats(executionContext context.Context) (DashboardStats, error) {
	customers, customersError := service.repository.ListCustomers(executionContext)
	if customersError != nil {
		return DashboardStats{}, customersError
	}
	projects, projectsError := service.repository.ListProjects(executionContext, "")
	if projectsError != nil {
		return DashboardStats{}, projectsError
	}
	invoices, invoicesError := service.ListInvoices(executionContext, "")
	if invoicesError != nil {
		return DashboardStats{}, invoicesError
	}
	quoteRequests, quoteRequestsError := service.repository.ListQuoteRequests(executionContext)
	if quoteRequestsError != nil {
		return DashboardStats{}, quoteRequestsError
	}

	now := service.clock.Now()
	stats := DashboardStats{
		CustomerCount:      len(customers),
		OutstandingAmount:  decimal.Zero,
		PaidAmountThisYear: decimal.Zero,
	}
	for _, project := range projects {
		if project.Status == ProjectStatusActive {
			stats.ActiveProjectCount++
		}
	}
	for _, request := range quoteRequests {
		if request.Status == QuoteRequestStatusNew || request.Status == QuoteRequestStatusReviewed {
			stats.OpenQuoteRequests++
		}
	}
	for _, invoice := range invoices {
		if invoice.Outstanding() {
			stats.OutstandingAmount = stats.OutstandingAmount.Add(invoice.Totals.Total)
		}
		if invoice.Status == InvoiceStatusOverdue {
			stats.OverdueInvoiceCount++
		}
		if invoice.Status == InvoiceStatusPaid && invoice.PaidAt != nil && invoice.PaidAt.Year() == now.Year() {
			stats.PaidAmountThisYear = stats.PaidAmountThisYear.Add(invoice.Totals.Total)
		}
	}
	return stats, nil
}

func (service *Service) buildInvoice(executionContext context.Context, invoice Invoice, input InvoiceInput) (Invoice, error) {
	if validationError := validateInvoiceStatus(input.Status); validationError != nil {
		return Invoice{}, validationError
	}
	if validationError := validateTaxRate(input.TaxRate); validationError != nil {
		return Invoice{}, validationError
	}
	if _, customerError := service.requireCustomer(executionContext, input.CustomerID); customerError != nil {
		return Invoice{}, customerError
	}
	projectID := strings.TrimSpace(input.ProjectID)
	if len(projectID) > 0 {
		if _, projectError := service.repository.GetProject(executionContext, projectID); projectError != nil {
			return Invoice{}, projectError
		}
	}
	lineItems, lineItemsError := buildLineItems(input.LineItems, service.generateIdentifier)
	if lineItemsError != nil {
		return Invoice{}, lineItemsError
	}

	issueDate := service.clock.Now()
	if !invoice.IssueDate.IsZero() {
		issueDate = invoice.IssueDate
	}
	if input.IssueDate != nil {
		issueDate = input.IssueDate.UTC()
	}
	dueDate := daysAfter(issueDate, defaultInvoiceDueDaysConstant)
	if input.DueDate != nil {
		dueDate = input.DueDate.UTC()
	}
	if dueDate.Before(truncateToDay(issueDate)) {
		return Invoice{}, faults.InvalidInputError{FieldName: dueDateFieldNameConstant, Message: dueBeforeIssueMessageConstant}
	}

	status := input.Status
	if len(status) == 0 {
		status = invoice.Status
	}
	if len(status) == 0 {
		status = InvoiceStatusDraft
	}
	// overdue is derived from the due date; it is stored as sent
	if status == InvoiceStatusOverdue {
		status = InvoiceStatusSent
	}

	invoice.CustomerID = strings.TrimSpace(input.CustomerID)
	invoice.ProjectID = projectID
	invoice.Status = status
	invoice.IssueDate = issueDate
	invoice.DueDate = dueDate
	invoice.Currency = normalizeCurrency(input.Currency)
	invoice.TaxRate = input.TaxRate
	invoice.Notes = strings.TrimSpace(input.Notes)
	invoice.LineItems = lineItems
	invoice.Totals = ComputeTotals(lineItems, input.TaxRate)
	return invoice, nil
}

func (service *Service) buildQuote(executionContext context.Context, quote Quote, input QuoteInput) (Quote, error) {
	if len(strings.TrimSpace(input.Title)) == 0 {
		return Quote{}, faults.Required(titleFieldNameConstant)
	}
	if validationError := validateQuoteStatus(input.Status); validationError != nil {
		return Quote{}, validationError
	}
	if validationError := validateTaxRate(input.TaxRate); validationError != nil {
		return Quote{}, validationError
	}
	if _, customerError := service.requireCustomer(executionContext, input.CustomerID); customerError != nil {
		return Quote{}, customerError
	}
	lineItems, lineItemsError := buildLineItems(input.LineItems, service.generateIdentifier)
	if lineItemsError != nil {
		return Quote{}, lineItemsError
	}

	validUntil := daysAfter(service.clock.Now(), defaultQuoteValidityDaysConstant)
	if !quote.ValidUntil.IsZero() {
		validUntil = quote.ValidUntil
	}
	if input.ValidUntil != nil {
		validUntil = input.ValidUntil.UTC()
	}
	status := input.Status
	if len(status) == 0 {
		status = quote.Status
	}
	if len(status) == 0 {
		status = QuoteStatusDraft
	}

	quote.CustomerID = strings.TrimSpace(input.CustomerID)
	quote.ProjectID = strings.TrimSpace(input.ProjectID)
	quote.Title = strings.TrimSpace(input.Title)
	quote.Status = status
	quote.ValidUntil = validUntil
	quote.Currency = normalizeCurrency(input.Currency)
	quote.TaxRate = input.TaxRate
	quote.Notes = strings.TrimSpace(input.Notes)
	quote.LineItems = lineItems
	quote.Totals = ComputeTotals(lineItems, input.TaxRate)
	return quote, nil
}

func (service *Service) presentInvoice(invoice Invoice) Invoice {
	invoice.Totals = ComputeTotals(invoice.LineItems, invoice.TaxRate)
	invoice.Status = invoice.EffectiveStatus(service.clock.Now())
	return invoice
}

func (service *Service) requireCustomer(executionContext context.Context, customerID string) (Customer, error) {
	trimmedCustomerID := strings.TrimSpace(customerID)
	if len(trimmedCustomerID) == 0 {
		return Customer{}, faults.Required(customerIDFieldNameConstant)
	}
	customer, lookupError := service.repository.GetCustomer(executionContext, trimmedCustomerID)
	if lookupError != nil {
		if faults.IsNotFound(lookupError) {
			return Customer{}, faults.InvalidInputError{FieldName: customerIDFieldNameConstant, Message: fmt.Sprintf("%s %s does not exist", customerResourceNameConstant, trimmedCustomerID)}
		}
		return Customer{}, lookupError
	}
	return customer, nil
}

func applyCustomerInput(customer Customer, input CustomerInput) Customer {
	customer.Name = input.Name
	customer.Email = input.Email
	customer.Company = input.Company
	customer.Phone = input.Phone
	customer.Website = input.Website
	customer.Address = input.Address
	customer.Notes = input.Notes
	return customer
}

func applyProjectInput(project Project, input ProjectInput) Project {
	project.CustomerID = strings.TrimSpace(input.CustomerID)
	project.Name = strings.TrimSpace(input.Name)
	project.Description = strings.TrimSpace(input.Description)
	project.Status = input.Status
	if len(project.Status) == 0 {
		project.Status = ProjectStatusPlanning
	}
	project.RepositoryURL = strings.TrimSpace(input.RepositoryURL)
	return project
}

func truncateToDay(moment time.Time) time.Time {
	year, month, day := moment.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, moment.Location())
}
