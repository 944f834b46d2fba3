package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProjectStatus enumerates lifecycle states for client projects.
type ProjectStatus string

// Supported project statuses.
const (
	ProjectStatusPlanning  ProjectStatus = ProjectStatus("planning")
	ProjectStatusActive    ProjectStatus = ProjectStatus("active")
	ProjectStatusCompleted ProjectStatus = ProjectStatus("completed")
	ProjectStatusOnHold    ProjectStatus = ProjectStatus("on_hold")
)

// InvoiceStatus enumerates invoice lifecycle states.
type InvoiceStatus string

// Supported invoice statuses.
const (
	InvoiceStatusDraft   InvoiceStatus = InvoiceStatus("draft")
	InvoiceStatusSent    InvoiceStatus = InvoiceStatus("sent")
	InvoiceStatusPaid    InvoiceStatus = InvoiceStatus("paid")
	InvoiceStatusOverdue InvoiceStatus = InvoiceStatus("overdue")
	InvoiceStatusVoid    InvoiceStatus = InvoiceStatus("void")
)

// QuoteStatus enumerates quote lifecycle states.
type QuoteStatus string

// Supported quote statuses.
const (
	QuoteStatusDraft     QuoteStatus = QuoteStatus("draft")
	QuoteStatusSent      QuoteStatus = QuoteStatus("sent")
	QuoteStatusAccepted  QuoteStatus = QuoteStatus("accepted")
	QuoteStatusDeclined  QuoteStatus = QuoteStatus("declined")
	QuoteStatusConverted QuoteStatus = QuoteStatus("converted")
)

// QuoteRequestStatus enumerates intake form review states.
type QuoteRequestStatus string

// Supported quote request statuses.
const (
	QuoteRequestStatusNew      QuoteRequestStatus = QuoteRequestStatus("new")
	QuoteRequestStatusReviewed QuoteRequestStatus = QuoteRequestStatus("reviewed")
	QuoteRequestStatusQuoted   QuoteRequestStatus = QuoteRequestStatus("quoted")
	QuoteRequestStatusClosed   QuoteRequestStatus = QuoteRequestStatus("closed")
)

// Customer is a billable client.
type Customer struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Company          string    `json:"company"`
	Phone            string    `json:"phone"`
	Website          string    `json:"website"`
	Address          string    `json:"address"`
	Notes            string    `json:"notes"`
	StripeCustomerID string    `json:"stripeCustomerId"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Project groups work delivered to a customer and optionally tracks a deploy target.
type Project struct {
	ID             string        `json:"id"`
	CustomerID     string        `json:"customerId"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	Status         ProjectStatus `json:"status"`
	RepositoryURL  string        `json:"repositoryUrl"`
	DeployProvider string        `json:"deployProvider"`
	DeployTargetID string        `json:"deployTargetId"`
	DeployURL      string        `json:"deployUrl"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// LineItem is a single billable row on an invoice or quote.
type LineItem struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Amount      decimal.Decimal `json:"amount"`
	Position    int             `json:"position"`
}

// Totals summarizes line item amounts with tax applied.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// Invoice bills a customer for delivered work.
type Invoice struct {
	ID         string          `json:"id"`
	Number     string          `json:"number"`
	CustomerID string          `json:"customerId"`
	ProjectID  string          `json:"projectId"`
	Status     InvoiceStatus   `json:"status"`
	IssueDate  time.Time       `json:"issueDate"`
	DueDate    time.Time       `json:"dueDate"`
	Currency   string          `json:"currency"`
	TaxRate    decimal.Decimal `json:"taxRate"`
	Notes      string          `json:"notes"`
	PaidAt     *time.Time      `json:"paidAt"`
	LineItems  []LineItem      `json:"lineItems"`
	Totals     Totals          `json:"totals"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Quote proposes work to a customer before it is invoiced.
type Quote struct {
	ID         string          `json:"id"`
	Number     string          `json:"number"`
	CustomerID string          `json:"customerId"`
	ProjectID  string          `json:"projectId"`
	Title      string          `json:"title"`
	Status     QuoteStatus     `json:"status"`
	ValidUntil time.Time       `json:"validUntil"`
	Currency   string          `json:"currency"`
	TaxRate    decimal.Decimal `json:"taxRate"`
	Notes      string          `json:"notes"`
	InvoiceID  string          `json:"invoiceId"`
	LineItems  []LineItem      `json:"lineItems"`
	Totals     Totals          `json:"totals"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// QuoteRequest is a public intake submission asking for a quote.
type QuoteRequest struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Email       string             `json:"email"`
	Company     string             `json:"company"`
	ProjectType string             `json:"projectType"`
	Budget      string             `json:"budget"`
	Message     string             `json:"message"`
	Status      QuoteRequestStatus `json:"status"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// PaymentMethod mirrors a card saved with the payment processor.
type PaymentMethod struct {
	ID                    string    `json:"id"`
	CustomerID            string    `json:"customerId"`
	StripePaymentMethodID string    `json:"stripePaymentMethodId"`
	Brand                 string    `json:"brand"`
	Last4                 string    `json:"last4"`
	ExpMonth              int       `json:"expMonth"`
	ExpYear               int       `json:"expYear"`
	IsDefault             bool      `json:"isDefault"`
	CreatedAt             time.Time `json:"createdAt"`
}

// DashboardStats aggregates headline numbers for the admin dashboard.
type DashboardStats struct {
	CustomerCount       int             `json:"customerCount"`
	ActiveProjectCount  int             `json:"activeProjectCount"`
	OpenQuoteRequests   int             `json:"openQuoteRequests"`
	OutstandingAmount   decimal.Decimal `json:"outstandingAmount"`
	PaidAmountThisYear  decimal.Decimal `json:"paidAmountThisYear"`
	OverdueInvoiceCount int             `json:"overdueInvoiceCount"`
}
