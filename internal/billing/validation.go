package billing

import (
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/temirov/billdesk/internal/faults"
)

const (
	nameFieldNameConstant            = "name"
	emailFieldNameConstant           = "email"
	customerIDFieldNameConstant      = "customerId"
	statusFieldNameConstant          = "status"
	lineItemsFieldNameConstant       = "lineItems"
	descriptionFieldNameConstant     = "description"
	quantityFieldNameConstant        = "quantity"
	unitPriceFieldNameConstant       = "unitPrice"
	taxRateFieldNameConstant         = "taxRate"
	titleFieldNameConstant           = "title"
	messageFieldNameConstant         = "message"
	dueDateFieldNameConstant         = "dueDate"
	invalidEmailMessageConstant      = "must be a valid email address"
	unknownStatusMessageConstant     = "unsupported status"
	conversionOnlyMessageConstant    = "set only by converting the quote to an invoice"
	emptyLineItemsMessageConstant    = "at least one line item required"
	positiveQuantityMessageConstant  = "must be greater than zero"
	nonNegativeAmountMessageConstant = "must not be negative"
	taxRateRangeMessageConstant      = "must be between 0 and 100"
	dueBeforeIssueMessageConstant    = "must not precede the issue date"
	defaultCurrencyConstant          = "USD"
	defaultInvoiceDueDaysConstant    = 30
	defaultQuoteValidityDaysConstant = 30
	hoursPerDayConstant              = 24
)

// CustomerInput carries editable customer fields.
type CustomerInput struct {
	Name    string `json:"name" yaml:"name"`
	Email   string `json:"email" yaml:"email"`
	Company string `json:"company" yaml:"company"`
	Phone   string `json:"phone" yaml:"phone"`
	Website string `json:"website" yaml:"website"`
	Address string `json:"address" yaml:"address"`
	Notes   string `json:"notes" yaml:"notes"`
}

// ProjectInput carries editable project fields.
type ProjectInput struct {
	CustomerID    string        `json:"customerId" yaml:"customer_id"`
	Name          string        `json:"name" yaml:"name"`
	Description   string        `json:"description" yaml:"description"`
	Status        ProjectStatus `json:"status" yaml:"status"`
	RepositoryURL string        `json:"repositoryUrl" yaml:"repository_url"`
}

// LineItemInput carries a billable row.
type LineItemInput struct {
	Description string          `json:"description" yaml:"description"`
	Quantity    decimal.Decimal `json:"quantity" yaml:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice" yaml:"unit_price"`
}

// InvoiceInput carries editable invoice fields.
type InvoiceInput struct {
	CustomerID string          `json:"customerId"`
	ProjectID  string          `json:"projectId"`
	Status     InvoiceStatus   `json:"status"`
	IssueDate  *time.Time      `json:"issueDate"`
	DueDate    *time.Time      `json:"dueDate"`
	Currency   string          `json:"currency"`
	TaxRate    decimal.Decimal `json:"taxRate"`
	Notes      string          `json:"notes"`
	LineItems  []LineItemInput `json:"lineItems"`
}

// QuoteInput carries editable quote fields.
type QuoteInput struct {
	CustomerID string          `json:"customerId"`
	ProjectID  string          `json:"projectId"`
	Title      string          `json:"title"`
	Status     QuoteStatus     `json:"status"`
	ValidUntil *time.Time      `json:"validUntil"`
	Currency   string          `json:"currency"`
	TaxRate    decimal.Decimal `json:"taxRate"`
	Notes      string          `json:"notes"`
	LineItems  []LineItemInput `json:"lineItems"`
}

// QuoteRequestInput carries a public intake form submission.
type QuoteRequestInput struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Company     string `json:"company"`
	ProjectType string `json:"projectType"`
	Budget      string `json:"budget"`
	Message     string `json:"message"`
}

var supportedProjectStatuses = map[ProjectStatus]struct{}{
	ProjectStatusPlanning:  {},
	ProjectStatusActive:    {},
	ProjectStatusCompleted: {},
	ProjectStatusOnHold:    {},
}

var supportedInvoiceStatuses = map[InvoiceStatus]struct{}{
	InvoiceStatusDraft:   {},
	InvoiceStatusSent:    {},
	InvoiceStatusPaid:    {},
	InvoiceStatusOverdue: {},
	InvoiceStatusVoid:    {},
}

var supportedQuoteStatuses = map[QuoteStatus]struct{}{
	QuoteStatusDraft:    {},
	QuoteStatusSent:     {},
	QuoteStatusAccepted: {},
	QuoteStatusDeclined: {},
}

var supportedQuoteRequestStatuses = map[QuoteRequestStatus]struct{}{
	QuoteRequestStatusNew:      {},
	QuoteRequestStatusReviewed: {},
	QuoteRequestStatusQuoted:   {},
	QuoteRequestStatusClosed:   {},
}

// Normalize trims whitespace and lowercases the email address.
func (input CustomerInput) Normalize() CustomerInput {
	return CustomerInput{
		Name:    strings.TrimSpace(input.Name),
		Email:   strings.ToLower(strings.TrimSpace(input.Email)),
		Company: strings.TrimSpace(input.Company),
		Phone:   strings.TrimSpace(input.Phone),
		Website: strings.TrimSpace(input.Website),
		Address: strings.TrimSpace(input.Address),
		Notes:   strings.TrimSpace(input.Notes),
	}
}

// Validate checks required customer fields.
func (input CustomerInput) Validate() error {
	if len(input.Name) == 0 {
		return faults.Required(nameFieldNameConstant)
	}
	if len(input.Email) > 0 && !validEmail(input.Email) {
		return faults.InvalidInputError{FieldName: emailFieldNameConstant, Message: invalidEmailMessageConstant}
	}
	return nil
}

// Validate checks required project fields.
func (input ProjectInput) Validate() error {
	if len(strings.TrimSpace(input.CustomerID)) == 0 {
		return faults.Required(customerIDFieldNameConstant)
	}
	if len(strings.TrimSpace(input.Name)) == 0 {
		return faults.Required(nameFieldNameConstant)
	}
	if len(input.Status) > 0 {
		if _, supported := supportedProjectStatuses[input.Status]; !supported {
			return faults.InvalidInputError{FieldName: statusFieldNameConstant, Message: unknownStatusMessageConstant}
		}
	}
	return nil
}

// Validate checks required quote request fields.
func (input QuoteRequestInput) Validate() error {
	if len(strings.TrimSpace(input.Name)) == 0 {
		return faults.Required(nameFieldNameConstant)
	}
	trimmedEmail := strings.TrimSpace(input.Email)
	if len(trimmedEmail) == 0 {
		return faults.Required(emailFieldNameConstant)
	}
	if !validEmail(trimmedEmail) {
		return faults.InvalidInputError{FieldName: emailFieldNameConstant, Message: invalidEmailMessageConstant}
	}
	if len(strings.TrimSpace(input.Message)) == 0 {
		return faults.Required(messageFieldNameConstant)
	}
	return nil
}

// ParseQuoteRequestStatus validates a textual quote request status.
func ParseQuoteRequestStatus(value string) (QuoteRequestStatus, error) {
	status := QuoteRequestStatus(strings.ToLower(strings.TrimSpace(value)))
	if _, supported := supportedQuoteRequestStatuses[status]; !supported {
		return "", faults.InvalidInputError{FieldName: statusFieldNameConstant, Message: unknownStatusMessageConstant}
	}
	return status, nil
}

func validateInvoiceStatus(status InvoiceStatus) error {
	if len(status) == 0 {
		return nil
	}
	if _, supported := supportedInvoiceStatuses[status]; !supported {
		return faults.InvalidInputError{FieldName: statusFieldNameConstant, Message: unknownStatusMessageConstant}
	}
	return nil
}

func validateQuoteStatus(status QuoteStatus) error {
	if len(status) == 0 {
		return nil
	}
	if status == QuoteStatusConverted {
		return faults.InvalidInputError{FieldName: statusFieldNameConstant, Message: conversionOnlyMessageConstant}
	}
	if _, supported := supportedQuoteStatuses[status]; !supported {
		return faults.InvalidInputError{FieldName: statusFieldNameConstant, Message: unknownStatusMessageConstant}
	}
	return nil
}

func validateTaxRate(taxRate decimal.Decimal) error {
	if taxRate.IsNegative() || taxRate.GreaterThan(hundred) {
		return faults.InvalidInputError{FieldName: taxRateFieldNameConstant, Message: taxRateRangeMessageConstant}
	}
	return nil
}

func buildLineItems(lineItemInputs []LineItemInput, generateIdentifier IdentifierGenerator) ([]LineItem, error) {
	if len(lineItemInputs) == 0 {
		return nil, faults.InvalidInputError{FieldName: lineItemsFieldNameConstant, Message: emptyLineItemsMessageConstant}
	}
	lineItems := make([]LineItem, 0, len(lineItemInputs))
	for _, lineItemInput := range lineItemInputs {
		description := strings.TrimSpace(lineItemInput.Description)
		if len(description) == 0 {
			return nil, faults.Required(descriptionFieldNameConstant)
		}
		if !lineItemInput.Quantity.IsPositive() {
			return nil, faults.InvalidInputError{FieldName: quantityFieldNameConstant, Message: positiveQuantityMessageConstant}
		}
		if lineItemInput.UnitPrice.IsNegative() {
			return nil, faults.InvalidInputError{FieldName: unitPriceFieldNameConstant, Message: nonNegativeAmountMessageConstant}
		}
		lineItems = append(lineItems, LineItem{
			ID:          generateIdentifier(),
			Description: description,
			Quantity:    lineItemInput.Quantity,
			UnitPrice:   lineItemInput.UnitPrice,
		})
	}
	return PriceLineItems(lineItems), nil
}

func normalizeCurrency(currency string) string {
	trimmedCurrency := strings.ToUpper(strings.TrimSpace(currency))
	if len(trimmedCurrency) == 0 {
		return defaultCurrencyConstant
	}
	return trimmedCurrency
}

func validEmail(candidate string) bool {
	parsedAddress, parseError := mail.ParseAddress(candidate)
	if parseError != nil {
		return false
	}
	return parsedAddress.Address == candidate && strings.Contains(candidate, "@")
}

func daysAfter(moment time.Time, days int) time.Time {
	return moment.Add(time.Duration(days*hoursPerDayConstant) * time.Hour)
}
