package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/billing"
	"github.com/temirov/billdesk/internal/faults"
	"github.com/temirov/billdesk/internal/knowledgebase"
)

const (
	billingMissingMessageConstant    = "billing service must be provided"
	questionsMissingMessageConstant  = "knowledge base service must be provided"
	directoryMissingMessageConstant  = "customer directory must be provided"
	resetUnavailableMessageConstant  = "reset requested but the store cannot be reset"
	unknownProjectMessageConstant    = "does not name a project of this customer"
	seedExternalIDTemplateConstant   = "seed:%s"
	customerLabelTemplateConstant    = "customers[%d]"
	invoiceLabelTemplateConstant     = "customers[%d].invoices[%d]"
	quoteLabelTemplateConstant       = "customers[%d].quotes[%d]"
	projectFieldTemplateConstant     = "%s.project"
	seedStepErrorTemplateConstant    = "%s: %w"
	storeResetMessageConstant        = "store reset before seeding"
	customerSkippedMessageConstant   = "customer already exists, skipping"
	seedCompletedMessageConstant     = "seed completed"
	logFieldEmailConstant            = "email"
	logFieldCustomersCreatedConstant = "customers_created"
	logFieldCustomersSkippedConstant = "customers_skipped"
	logFieldInvoicesConstant         = "invoices"
	logFieldQuotesConstant           = "quotes"
	logFieldQuestionsConstant        = "questions"
	logFieldQuoteRequestsConstant    = "quote_requests"
)

// BillingWriter creates billing records.
type BillingWriter interface {
	CreateCustomer(executionContext context.Context, input billing.CustomerInput) (billing.Customer, error)
	CreateProject(executionContext context.Context, input billing.ProjectInput) (billing.Project, error)
	CreateInvoice(executionContext context.Context, input billing.InvoiceInput) (billing.Invoice, error)
	CreateQuote(executionContext context.Context, input billing.QuoteInput) (billing.Quote, error)
	SubmitQuoteRequest(executionContext context.Context, input billing.QuoteRequestInput) (billing.QuoteRequest, error)
	ListQuoteRequests(executionContext context.Context) ([]billing.QuoteRequest, error)
}

// QuestionWriter creates knowledge base records.
type QuestionWriter interface {
	Submit(executionContext context.Context, input knowledgebase.QuestionInput) (knowledgebase.Question, error)
	Import(executionContext context.Context, external knowledgebase.ExternalQuestion) (knowledgebase.Question, bool, error)
	List(executionContext context.Context, filter knowledgebase.QuestionFilter) ([]knowledgebase.Question, error)
}

// CustomerDirectory finds customers by email.
type CustomerDirectory interface {
	FindCustomerByEmail(executionContext context.Context, email string) (billing.Customer, error)
}

// Resetter clears every table.
type Resetter interface {
	Reset(executionContext context.Context) error
}

// Options controls a seeding run.
type Options struct {
	Reset bool
}

// Summary counts what a run created.
type Summary struct {
	CustomersCreated int
	CustomersSkipped int
	Projects         int
	Invoices         int
	Quotes           int
	Questions        int
	QuoteRequests    int
}

// Seeder loads fixtures through the domain services so validation, numbering and totals apply.
type Seeder struct {
	logger    *zap.Logger
	billing   BillingWriter
	questions QuestionWriter
	directory CustomerDirectory
	resetter  Resetter
}

// NewSeeder constructs a Seeder. resetter may be nil when resets are never requested.
func NewSeeder(logger *zap.Logger, billingWriter BillingWriter, questions QuestionWriter, directory CustomerDirectory, resetter Resetter) (*Seeder, error) {
	switch {
	case billingWriter == nil:
		return nil, errors.New(billingMissingMessageConstant)
	case questions == nil:
		return nil, errors.New(questionsMissingMessageConstant)
	case directory == nil:
		return nil, errors.New(directoryMissingMessageConstant)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{logger: logger, billing: billingWriter, questions: questions, directory: directory, resetter: resetter}, nil
}

// Seed applies fixture. Customers whose email already exists are skipped together with their
// projects and documents; answered questions are upserted by key; open questions and quote
// requests already present are left alone.
func (seeder *Seeder) Seed(executionContext context.Context, fixture Fixture, options Options) (Summary, error) {
	if options.Reset {
		if seeder.resetter == nil {
			return Summary{}, errors.New(resetUnavailableMessageConstant)
		}
		if resetError := seeder.resetter.Reset(executionContext); resetError != nil {
			return Summary{}, resetError
		}
		seeder.logger.Info(storeResetMessageConstant)
	}

	var summary Summary
	for customerIndex, customerFixture := range fixture.Customers {
		if seedError := seeder.seedCustomer(executionContext, customerIndex, customerFixture, &summary); seedError != nil {
			return summary, seedError
		}
	}
	for _, questionFixture := range fixture.Questions {
		created, questionError := seeder.seedQuestion(executionContext, questionFixture)
		if questionError != nil {
			return summary, questionError
		}
		if created {
			summary.Questions++
		}
	}
	if quoteRequestError := seeder.seedQuoteRequests(executionContext, fixture.QuoteRequests, &summary); quoteRequestError != nil {
		return summary, quoteRequestError
	}

	seeder.logger.Info(
		seedCompletedMessageConstant,
		zap.Int(logFieldCustomersCreatedConstant, summary.CustomersCreated),
		zap.Int(logFieldCustomersSkippedConstant, summary.CustomersSkipped),
		zap.Int(logFieldInvoicesConstant, summary.Invoices),
		zap.Int(logFieldQuotesConstant, summary.Quotes),
		zap.Int(logFieldQuestionsConstant, summary.Questions),
		zap.Int(logFieldQuoteRequestsConstant, summary.QuoteRequests),
	)
	return summary, nil
}

func (seeder *Seeder) seedCustomer(executionContext context.Context, customerIndex int, customerFixture CustomerFixture, summary *Summary) error {
	customerLabel := fmt.Sprintf(customerLabelTemplateConstant, customerIndex)
	email := strings.TrimSpace(customerFixture.Email)
	if len(email) > 0 {
		_, lookupError := seeder.directory.FindCustomerByEmail(executionContext, email)
		if lookupError == nil {
			summary.CustomersSkipped++
			seeder.logger.Info(customerSkippedMessageConstant, zap.String(logFieldEmailConstant, email))
			return nil
		}
		if !faults.IsNotFound(lookupError) {
			return lookupError
		}
	}

	customer, customerError := seeder.billing.CreateCustomer(executionContext, customerFixture.CustomerInput)
	if customerError != nil {
		return fmt.Errorf(seedStepErrorTemplateConstant, customerLabel, customerError)
	}
	summary.CustomersCreated++

	projectIDs := map[string]string{}
	for _, projectInput := range customerFixture.Projects {
		projectInput.CustomerID = customer.ID
		project, projectError := seeder.billing.CreateProject(executionContext, projectInput)
		if projectError != nil {
			return fmt.Errorf(seedStepErrorTemplateConstant, customerLabel, projectError)
		}
		projectIDs[strings.ToLower(project.Name)] = project.ID
		summary.Projects++
	}

	for invoiceIndex, invoiceFixture := range customerFixture.Invoices {
		label := fmt.Sprintf(invoiceLabelTemplateConstant, customerIndex, invoiceIndex)
		projectID, projectError := resolveProject(projectIDs, invoiceFixture.Project, label)
		if projectError != nil {
			return projectError
		}
		invoiceInput, inputError := invoiceFixture.invoiceInput(customer.ID, projectID, label)
		if inputError != nil {
			return inputError
		}
		if _, createError := seeder.billing.CreateInvoice(executionContext, invoiceInput); createError != nil {
			return fmt.Errorf(seedStepErrorTemplateConstant, label, createError)
		}
		summary.Invoices++
	}

	for quoteIndex, quoteFixture := range customerFixture.Quotes {
		label := fmt.Sprintf(quoteLabelTemplateConstant, customerIndex, quoteIndex)
		projectID, projectError := resolveProject(projectIDs, quoteFixture.Project, label)
		if projectError != nil {
			return projectError
		}
		quoteInput, inputError := quoteFixture.quoteInput(customer.ID, projectID, label)
		if inputError != nil {
			return inputError
		}
		if _, createError := seeder.billing.CreateQuote(executionContext, quoteInput); createError != nil {
			return fmt.Errorf(seedStepErrorTemplateConstant, label, createError)
		}
		summary.Quotes++
	}
	return nil
}

func (seeder *Seeder) seedQuestion(executionContext context.Context, questionFixture QuestionFixture) (bool, error) {
	if len(strings.TrimSpace(questionFixture.Answer)) > 0 && len(strings.TrimSpace(questionFixture.Key)) > 0 {
		_, created, importError := seeder.questions.Import(executionContext, knowledgebase.ExternalQuestion{
			ExternalID: fmt.Sprintf(seedExternalIDTemplateConstant, strings.TrimSpace(questionFixture.Key)),
			Title:      questionFixture.Title,
			Body:       questionFixture.Body,
			Answer:     questionFixture.Answer,
			Category:   questionFixture.Category,
			Source:     knowledgebase.QuestionSourceSeed,
		})
		return created, importError
	}

	existing, listError := seeder.questions.List(executionContext, knowledgebase.QuestionFilter{Query: questionFixture.Title})
	if listError != nil {
		return false, listError
	}
	for _, question := range existing {
		if strings.EqualFold(question.Title, strings.TrimSpace(questionFixture.Title)) {
			return false, nil
		}
	}
	_, submitError := seeder.questions.Submit(executionContext, knowledgebase.QuestionInput{
		AuthorName:  questionFixture.AuthorName,
		AuthorEmail: questionFixture.AuthorEmail,
		Title:       questionFixture.Title,
		Body:        questionFixture.Body,
		Category:    questionFixture.Category,
	})
	return submitError == nil, submitError
}

func (seeder *Seeder) seedQuoteRequests(executionContext context.Context, quoteRequests []QuoteRequestFixture, summary *Summary) error {
	if len(quoteRequests) == 0 {
		return nil
	}
	existing, listError := seeder.billing.ListQuoteRequests(executionContext)
	if listError != nil {
		return listError
	}
	seen := map[string]struct{}{}
	for _, quoteRequest := range existing {
		seen[quoteRequestKey(quoteRequest.Email, quoteRequest.Message)] = struct{}{}
	}
	for _, quoteRequestFixture := range quoteRequests {
		if _, duplicate := seen[quoteRequestKey(quoteRequestFixture.Email, quoteRequestFixture.Message)]; duplicate {
			continue
		}
		_, submitError := seeder.billing.SubmitQuoteRequest(executionContext, billing.QuoteRequestInput{
			Name:        quoteRequestFixture.Name,
			Email:       quoteRequestFixture.Email,
			Company:     quoteRequestFixture.Company,
			ProjectType: quoteRequestFixture.ProjectType,
			Budget:      quoteRequestFixture.Budget,
			Message:     quoteRequestFixture.Message,
		})
		if submitError != nil {
			return submitError
		}
		summary.QuoteRequests++
	}
	return nil
}

func resolveProject(projectIDs map[string]string, projectName string, label string) (string, error) {
	trimmedName := strings.TrimSpace(projectName)
	if len(trimmedName) == 0 {
		return "", nil
	}
	projectID, found := projectIDs[strings.ToLower(trimmedName)]
	if !found {
		return "", faults.InvalidInputError{FieldName: fmt.Sprintf(projectFieldTemplateConstant, label), Message: unknownProjectMessageConstant}
	}
	return projectID, nil
}

func quoteRequestKey(email string, message string) string {
	return strings.ToLower(strings.TrimSpace(email)) + "\x00" + strings.TrimSpace(message)
}
