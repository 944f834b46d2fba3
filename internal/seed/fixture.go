package seed

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/temirov/billdesk/internal/billing"
	"github.com/temirov/billdesk/internal/faults"
)

const (
	fixtureReadErrorTemplateConstant  = "failed to read seed fixture %s: %w"
	fixtureParseErrorTemplateConstant = "failed to parse seed fixture: %w"
	invalidDateMessageConstant        = "must be a YYYY-MM-DD date"
	invalidAmountMessageConstant      = "must be a decimal number"
	lineItemFieldTemplateConstant     = "%s.line_items[%d].%s"
	quantityFieldNameConstant         = "quantity"
	unitPriceFieldNameConstant        = "unit_price"
	taxRateFieldNameConstant          = "tax_rate"
)

//go:embed fixtures/default.yaml
var defaultFixtureContent []byte

// Fixture is the YAML document loaded by the seeder.
type Fixture struct {
	Customers     []CustomerFixture     `yaml:"customers"`
	Questions     []QuestionFixture     `yaml:"questions"`
	QuoteRequests []QuoteRequestFixture `yaml:"quote_requests"`
}

// CustomerFixture is a customer with the records that belong to it.
type CustomerFixture struct {
	billing.CustomerInput `yaml:",inline"`
	Projects              []billing.ProjectInput `yaml:"projects"`
	Invoices              []DocumentFixture      `yaml:"invoices"`
	Quotes                []DocumentFixture      `yaml:"quotes"`
}

// DocumentFixture describes an invoice or a quote. Project refers to a project name of the same customer.
type DocumentFixture struct {
	Project    string            `yaml:"project"`
	Title      string            `yaml:"title"`
	Status     string            `yaml:"status"`
	IssueDate  string            `yaml:"issue_date"`
	DueDate    string            `yaml:"due_date"`
	ValidUntil string            `yaml:"valid_until"`
	Currency   string            `yaml:"currency"`
	TaxRate    string            `yaml:"tax_rate"`
	Notes      string            `yaml:"notes"`
	LineItems  []LineItemFixture `yaml:"line_items"`
}

// LineItemFixture keeps amounts as strings so they parse exactly.
type LineItemFixture struct {
	Description string `yaml:"description"`
	Quantity    string `yaml:"quantity"`
	UnitPrice   string `yaml:"unit_price"`
}

// QuestionFixture is a knowledge base entry when Answer is set and an open question otherwise.
// Key makes answered entries idempotent across runs.
type QuestionFixture struct {
	Key         string `yaml:"key"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
	Title       string `yaml:"title"`
	Body        string `yaml:"body"`
	Category    string `yaml:"category"`
	Answer      string `yaml:"answer"`
}

// QuoteRequestFixture mirrors the public intake form.
type QuoteRequestFixture struct {
	Name        string `yaml:"name"`
	Email       string `yaml:"email"`
	Company     string `yaml:"company"`
	ProjectType string `yaml:"project_type"`
	Budget      string `yaml:"budget"`
	Message     string `yaml:"message"`
}

// DefaultFixture parses the embedded demo data.
func DefaultFixture() (Fixture, error) {
	return ParseFixture(defaultFixtureContent)
}

// LoadFixture reads a fixture file from disk.
func LoadFixture(filePath string) (Fixture, error) {
	content, readError := os.ReadFile(filePath)
	if readError != nil {
		return Fixture{}, fmt.Errorf(fixtureReadErrorTemplateConstant, filePath, readError)
	}
	return ParseFixture(content)
}

// ParseFixture decodes YAML, rejecting unknown keys.
func ParseFixture(content []byte) (Fixture, error) {
	var fixture Fixture
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if decodeError := decoder.Decode(&fixture); decodeError != nil {
		return Fixture{}, fmt.Errorf(fixtureParseErrorTemplateConstant, decodeError)
	}
	return fixture, nil
}

func (document DocumentFixture) invoiceInput(customerID string, projectID string, label string) (billing.InvoiceInput, error) {
	lineItems, taxRate, amountsError := document.amounts(label)
	if amountsError != nil {
		return billing.InvoiceInput{}, amountsError
	}
	issueDate, issueError := parseOptionalDate(label+".issue_date", document.IssueDate)
	if issueError != nil {
		return billing.InvoiceInput{}, issueError
	}
	dueDate, dueError := parseOptionalDate(label+".due_date", document.DueDate)
	if dueError != nil {
		return billing.InvoiceInput{}, dueError
	}
	return billing.InvoiceInput{
		CustomerID: customerID,
		ProjectID:  projectID,
		Status:     billing.InvoiceStatus(document.Status),
		IssueDate:  issueDate,
		DueDate:    dueDate,
		Currency:   document.Currency,
		TaxRate:    taxRate,
		Notes:      document.Notes,
		LineItems:  lineItems,
	}, nil
}

func (document DocumentFixture) quoteInput(customerID string, projectID string, label string) (billing.QuoteInput, error) {
	lineItems, taxRate, amountsError := document.amounts(label)
	if amountsError != nil {
		return billing.QuoteInput{}, amountsError
	}
	validUntil, validError := parseOptionalDate(label+".valid_until", document.ValidUntil)
	if validError != nil {
		return billing.QuoteInput{}, validError
	}
	return billing.QuoteInput{
		CustomerID: customerID,
		ProjectID:  projectID,
		Title:      document.Title,
		Status:     billing.QuoteStatus(document.Status),
		ValidUntil: validUntil,
		Currency:   document.Currency,
		TaxRate:    taxRate,
		Notes:      document.Notes,
		LineItems:  lineItems,
	}, nil
}

func (document DocumentFixture) amounts(label string) ([]billing.LineItemInput, decimal.Decimal, error) {
	taxRate := decimal.Zero
	if len(strings.TrimSpace(document.TaxRate)) > 0 {
		parsedRate, parseError := decimal.NewFromString(strings.TrimSpace(document.TaxRate))
		if parseError != nil {
			return nil, decimal.Zero, faults.InvalidInputError{FieldName: label + "." + taxRateFieldNameConstant, Message: invalidAmountMessageConstant}
		}
		taxRate = parsedRate
	}
	lineItems := make([]billing.LineItemInput, 0, len(document.LineItems))
	for lineIndex, lineItem := range document.LineItems {
		quantity, quantityError := decimal.NewFromString(strings.TrimSpace(lineItem.Quantity))
		if quantityError != nil {
			return nil, decimal.Zero, faults.InvalidInputError{FieldName: fmt.Sprintf(lineItemFieldTemplateConstant, label, lineIndex, quantityFieldNameConstant), Message: invalidAmountMessageConstant}
		}
		unitPrice, unitPriceError := decimal.NewFromString(strings.TrimSpace(lineItem.UnitPrice))
		if unitPriceError != nil {
			return nil, decimal.Zero, faults.InvalidInputError{FieldName: fmt.Sprintf(lineItemFieldTemplateConstant, label, lineIndex, unitPriceFieldNameConstant), Message: invalidAmountMessageConstant}
		}
		lineItems = append(lineItems, billing.LineItemInput{Description: lineItem.Description, Quantity: quantity, UnitPrice: unitPrice})
	}
	return lineItems, taxRate, nil
}

func parseOptionalDate(fieldName string, value string) (*time.Time, error) {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return nil, nil
	}
	parsedDate, parseError := time.Parse(time.DateOnly, trimmedValue)
	if parseError != nil {
		return nil, faults.InvalidInputError{FieldName: fieldName, Message: invalidDateMessageConstant}
	}
	return &parsedDate, nil
}
