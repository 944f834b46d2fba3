package billing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	invoiceNumberPrefixConstant         = "INV"
	quoteNumberPrefixConstant           = "Q"
	documentNumberTemplateConstant      = "%s-%04d-%04d"
	documentNumberSeparatorConstant     = "-"
	documentNumberSegmentCountConstant  = 3
	moneyDecimalPlacesConstant          = 2
	percentDivisorConstant              = 100
	invoiceNumberInvalidMessageConstant = "invalid document number"
)

var hundred = decimal.NewFromInt(percentDivisorConstant)

// DocumentKind distinguishes numbered billing documents.
type DocumentKind string

// Numbered document kinds.
const (
	DocumentKindInvoice DocumentKind = DocumentKind("invoice")
	DocumentKindQuote   DocumentKind = DocumentKind("quote")
)

// Prefix returns the number prefix used for the document kind.
func (kind DocumentKind) Prefix() string {
	if kind == DocumentKindQuote {
		return quoteNumberPrefixConstant
	}
	return invoiceNumberPrefixConstant
}

// FormatDocumentNumber renders numbers such as INV-2024-0007.
func FormatDocumentNumber(kind DocumentKind, year int, sequence int) string {
	return fmt.Sprintf(documentNumberTemplateConstant, kind.Prefix(), year, sequence)
}

// ParseDocumentSequence extracts the year and sequence from a formatted document number.
func ParseDocumentSequence(number string) (int, int, error) {
	segments := strings.Split(strings.TrimSpace(number), documentNumberSeparatorConstant)
	if len(segments) != documentNumberSegmentCountConstant {
		return 0, 0, fmt.Errorf("%s: %q", invoiceNumberInvalidMessageConstant, number)
	}
	year, yearError := strconv.Atoi(segments[1])
	if yearError != nil {
		return 0, 0, fmt.Errorf("%s: %q", invoiceNumberInvalidMessageConstant, number)
	}
	sequence, sequenceError := strconv.Atoi(segments[2])
	if sequenceError != nil {
		return 0, 0, fmt.Errorf("%s: %q", invoiceNumberInvalidMessageConstant, number)
	}
	return year, sequence, nil
}

// PriceLineItems fills Amount and Position for every line item.
func PriceLineItems(lineItems []LineItem) []LineItem {
	pricedLineItems := make([]LineItem, 0, len(lineItems))
	for lineIndex, lineItem := range lineItems {
		lineItem.Amount = lineItem.Quantity.Mul(lineItem.UnitPrice).Round(moneyDecimalPlacesConstant)
		lineItem.Position = lineIndex
		pricedLineItems = append(pricedLineItems, lineItem)
	}
	return pricedLineItems
}

// ComputeTotals sums priced line items and applies a percentage tax rate rounded to cents.
func ComputeTotals(lineItems []LineItem, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, lineItem := range lineItems {
		subtotal = subtotal.Add(lineItem.Amount)
	}
	tax := subtotal.Mul(taxRate).Div(hundred).Round(moneyDecimalPlacesConstant)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}

// EffectiveStatus reports overdue for sent invoices past their due date.
func (invoice Invoice) EffectiveStatus(now time.Time) InvoiceStatus {
	if invoice.Status != InvoiceStatusSent {
		return invoice.Status
	}
	if invoice.DueDate.IsZero() {
		return invoice.Status
	}
	if now.After(endOfDay(invoice.DueDate)) {
		return InvoiceStatusOverdue
	}
	return invoice.Status
}

// Outstanding reports whether the invoice still expects payment.
func (invoice Invoice) Outstanding() bool {
	return invoice.Status == InvoiceStatusSent || invoice.Status == InvoiceStatusOverdue
}

func endOfDay(moment time.Time) time.Time {
	year, month, day := moment.Date()
	return time.Date(year, month, day, 23, 59, 59, 0, moment.Location())
}
