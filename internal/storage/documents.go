package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/temirov/billdesk/internal/billing"
)

const (
	invoiceResourceConstant = "invoice"
	quoteResourceConstant   = "quote"
	invoiceColumnsConstant  = "id, number, customer_id, project_id, status, issue_date, due_date, currency, tax_rate, notes, paid_at, created_at, updated_at"
	quoteColumnsConstant    = "id, number, customer_id, project_id, title, status, valid_until, currency, tax_rate, notes, invoice_id, created_at, updated_at"
)

// NextSequence increments and returns the per-year counter for a document kind.
func (store *Store) NextSequence(executionContext context.Context, kind billing.DocumentKind, year int) (int, error) {
	var nextValue int
	scanError := store.database.QueryRowContext(executionContext,
		`INSERT INTO document_sequences (kind, year, last_value) VALUES (?, ?, 1)
			ON CONFLICT(kind, year) DO UPDATE SET last_value = last_value + 1
			RETURNING last_value`,
		string(kind), year,
	).Scan(&nextValue)
	return nextValue, scanError
}

// CreateInvoice inserts an invoice and its line items atomically.
func (store *Store) CreateInvoice(executionContext context.Context, invoice billing.Invoice) error {
	return store.withTransaction(executionContext, func(transaction *sql.Tx) error {
		return insertInvoice(executionContext, transaction, invoice)
	})
}

// ConvertQuote marks a quote converted and inserts its invoice in one transaction. A quote that is
// already converted or declined yields billing.ErrQuoteNotConvertible and leaves no invoice behind.
func (store *Store) ConvertQuote(executionContext context.Context, quoteID string, invoice billing.Invoice, convertedAt time.Time) error {
	return store.withTransaction(executionContext, func(transaction *sql.Tx) error {
		result, updateError := transaction.ExecContext(executionContext,
			`UPDATE quotes SET status = ?, invoice_id = ?, updated_at = ? WHERE id = ? AND status NOT IN (?, ?)`,
			string(billing.QuoteStatusConverted), invoice.ID, formatTimestamp(convertedAt), quoteID,
			string(billing.QuoteStatusConverted), string(billing.QuoteStatusDeclined),
		)
		if updateError != nil {
			return updateError
		}
		affectedRows, affectedError := result.RowsAffected()
		if affectedError != nil {
			return affectedError
		}
		if affectedRows == 0 {
			if existsError := quoteExists(executionContext, transaction, quoteID); existsError != nil {
				return existsError
			}
			return billing.ErrQuoteNotConvertible
		}
		return insertInvoice(executionContext, transaction, invoice)
	})
}

func insertInvoice(executionContext context.Context, transaction *sql.Tx, invoice billing.Invoice) error {
	if _, insertError := transaction.ExecContext(executionContext,
		`INSERT INTO invoices (`+invoiceColumnsConstant+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID, invoice.Number, invoice.CustomerID, invoice.ProjectID, string(invoice.Status),
		formatTimestamp(invoice.IssueDate), formatTimestamp(invoice.DueDate), invoice.Currency, invoice.TaxRate,
		invoice.Notes, formatOptionalTimestamp(invoice.PaidAt),
		formatTimestamp(invoice.CreatedAt), formatTimestamp(invoice.UpdatedAt),
	); insertError != nil {
		return insertError
	}
	return replaceLineItems(executionContext, transaction, billing.DocumentKindInvoice, invoice.ID, invoice.LineItems)
}

func quoteExists(executionContext context.Context, transaction *sql.Tx, quoteID string) error {
	var identifier string
	scanError := transaction.QueryRowContext(executionContext, `SELECT id FROM quotes WHERE id = ?`, quoteID).Scan(&identifier)
	return translateNoRows(scanError, quoteResourceConstant, quoteID)
}

// UpdateInvoice overwrites an invoice and replaces its line items atomically.
func (store *Store) UpdateInvoice(executionContext context.Context, invoice billing.Invoice) error {
	return store.withTransaction(executionContext, func(transaction *sql.Tx) error {
		result, updateError := transaction.ExecContext(executionContext,
			`UPDATE invoices SET customer_id = ?, project_id = ?, status = ?, issue_date = ?, due_date = ?, currency = ?,
				tax_rate = ?, notes = ?, paid_at = ?, updated_at = ? WHERE id = ?`,
			invoice.CustomerID, invoice.ProjectID, string(invoice.Status), formatTimestamp(invoice.IssueDate),
			formatTimestamp(invoice.DueDate), invoice.Currency, invoice.TaxRate, invoice.Notes,
			formatOptionalTimestamp(invoice.PaidAt), formatTimestamp(invoice.UpdatedAt), invoice.ID,
		)
		if updateError != nil {
			return updateError
		}
		if affectedError := requireAffected(result, invoiceResourceConstant, invoice.ID); affectedError != nil {
			return affectedError
		}
		return replaceLineItems(executionContext, transaction, billing.DocumentKindInvoice, invoice.ID, invoice.LineItems)
	})
}

// GetInvoice loads an invoice with its line items.
func (store *Store) GetInvoice(executionContext context.Context, invoiceID string) (billing.Invoice, error) {
	row := store.database.QueryRowContext(executionContext, `SELECT `+invoiceColumnsConstant+` FROM invoices WHERE id = ?`, invoiceID)
	invoice, scanError := scanInvoice(row)
	if scanError != nil {
		return billing.Invoice{}, translateNoRows(scanError, invoiceResourceConstant, invoiceID)
	}
	lineItems, lineItemsError := store.loadLineItems(executionContext, billing.DocumentKindInvoice, []string{invoice.ID})
	if lineItemsError != nil {
		return billing.Invoice{}, lineItemsError
	}
	invoice.LineItems = lineItems[invoice.ID]
	return invoice, nil
}

// ListInvoices returns invoices with line items, newest number first.
func (store *Store) ListInvoices(executionContext context.Context, customerID string) ([]billing.Invoice, error) {
	rows, queryError := store.database.QueryContext(executionContext,
		`SELECT `+invoiceColumnsConstant+` FROM invoices WHERE (? = '' OR customer_id = ?) ORDER BY number DESC`,
		customerID, customerID,
	)
	if queryError != nil {
		return nil, queryError
	}
	invoices := []billing.Invoice{}
	invoiceIDs := []string{}
	for rows.Next() {
		invoice, scanError := scanInvoice(rows)
		if scanError != nil {
			rows.Close()
			return nil, scanError
		}
		invoices = append(invoices, invoice)
		invoiceIDs = append(invoiceIDs, invoice.ID)
	}
	rowsError := rows.Err()
	rows.Close()
	if rowsError != nil {
		return nil, rowsError
	}

	lineItems, lineItemsError := store.loadLineItems(executionContext, billing.DocumentKindInvoice, invoiceIDs)
	if lineItemsError != nil {
		return nil, lineItemsError
	}
	for invoiceIndex := range invoices {
		invoices[invoiceIndex].LineItems = lineItems[invoices[invoiceIndex].ID]
	}
	return invoices, nil
}

// DeleteInvoice removes an invoice and its line items.
func (store *Store) DeleteInvoice(executionContext context.Context, invoiceID string) error {
	return store.withTransaction(executionContext, func(transaction *sql.Tx) error {
		if _, linesError := transaction.ExecContext(executionContext, `DELETE FROM line_items WHERE document_kind = ? AND document_id = ?`, string(billing.DocumentKindInvoice), invoiceID); linesError != nil {
			return linesError
		}
		result, deleteError := transaction.ExecContext(executionContext, `DELETE FROM invoices WHERE id = ?`, invoiceID)
		if deleteError != nil {
			return deleteError
		}
		return requireAffected(result, invoiceResourceConstant, invoiceID)
	})
}

// CreateQuote inserts a quote and its line items atomically.
func (store *Store) CreateQuote(executionContext context.Context, quote billing.Quote) error {
	return store.withTransaction(executionContext, func(transaction *sql.Tx) error {
		if _, insertError := transaction.ExecContext(executionContext,
			`INSERT INTO quotes (`+quoteColumnsConstant+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			quote.ID, quote.Number, quote.CustomerID, quote.ProjectID, quote.Title, string(quote.Status),
			formatTimestamp(quote.ValidUntil), quote.Currency, quote.TaxRate, quote.Notes, quote.InvoiceID,
			formatTimestamp(quote.CreatedAt), formatTimestamp(quote.UpdatedAt),
		); insertError != nil {
			return insertError
		}
		return replaceLineItems(executionContext, transaction, billing.DocumentKindQuote, quote.ID, quote.LineItems)
	})
}

// UpdateQuote overwrites a quote and replaces its line items atomically.
func (store *Store) UpdateQuote(executionContext context.Context, quote billing.Quote) error {
	return store.withTransaction(executionContext, func(transaction *sql.Tx) error {
		result, updateError := transaction.ExecContext(executionContext,
			`UPDATE quotes SET customer_id = ?, project_id = ?, title = ?, status = ?, valid_until = ?, currency = ?,
				tax_rate = ?, notes = ?, invoice_id = ?, updated_at = ? WHERE id = ? AND status <> ?`,
			quote.CustomerID, quote.ProjectID, quote.Title, string(quote.Status), formatTimestamp(quote.ValidUntil),
			quote.Currency, quote.TaxRate, quote.Notes, quote.InvoiceID, formatTimestamp(quote.UpdatedAt), quote.ID,
			string(billing.QuoteStatusConverted),
		)
		if updateError != nil {
			return updateError
		}
		affectedRows, affectedError := result.RowsAffected()
		if affectedError != nil {
			return affectedError
		}
		if affectedRows == 0 {
			if existsError := quoteExists(executionContext, transaction, quote.ID); existsError != nil {
				return existsError
			}
			return billing.ErrQuoteConverted
		}
		return replaceLineItems(executionContext, transaction, billing.DocumentKindQuote, quote.ID, quote.LineItems)
	})
}

// GetQuote loads a quote with its line items and totals.
func (store *Store) GetQuote(executionContext context.Context, quoteID string) (billing.Quote, error) {
	row := store.database.QueryRowContext(executionContext, `SELECT `+quoteColumnsConstant+` FROM quotes WHERE id = ?`, quoteID)
	quote, scanError := scanQuote(row)
	if scanError != nil {
		return billing.Quote{}, translateNoRows(scanError, quoteResourceConstant, quoteID)
	}
	lineItems, lineItemsError := store.loadLineItems(executionContext, billing.DocumentKindQuote, []string{quote.ID})
	if lineItemsError != nil {
		return billing.Quote{}, lineItemsError
	}
	quote.LineItems = lineItems[quote.ID]
	quote.Totals = billing.ComputeTotals(quote.LineItems, quote.TaxRate)
	return quote, nil
}

// ListQuotes returns quotes with line items and totals, newest number first.
func (store *Store) ListQuotes(executionContext context.Context, customerID string) ([]billing.Quote, error) {
	rows, queryError := store.database.QueryContext(executionContext,
		`SELECT `+quoteColumnsConstant+` FROM quotes WHERE (? = '' OR customer_id = ?) ORDER BY number DESC`,
		customerID, customerID,
	)
	if queryError != nil {
		return nil, queryError
	}
	quotes := []billing.Quote{}
	quoteIDs := []string{}
	for rows.Next() {
		quote, scanError := scanQuote(rows)
		if scanError != nil {
			rows.Close()
			return nil, scanError
		}
		quotes = append(quotes, quote)
		quoteIDs = append(quoteIDs, quote.ID)
	}
	rowsError := rows.Err()
	rows.Close()
	if rowsError != nil {
		return nil, rowsError
	}

	lineItems, lineItemsError := store.loadLineItems(executionContext, billing.DocumentKindQuote, quoteIDs)
	if lineItemsError != nil {
		return nil, lineItemsError
	}
	for quoteIndex := range quotes {
		quotes[quoteIndex].LineItems = lineItems[quotes[quoteIndex].ID]
		quotes[quoteIndex].Totals = billing.ComputeTotals(quotes[quoteIndex].LineItems, quotes[quoteIndex].TaxRate)
	}
	return quotes, nil
}

// DeleteQuote removes a quote and its line items.
func (store *Store) DeleteQuote(executionContext context.Context, quoteID string) error {
	return store.withTransaction(executionContext, func(transaction *sql.Tx) error {
		if _, linesError := transaction.ExecContext(executionContext, `DELETE FROM line_items WHERE document_kind = ? AND document_id = ?`, string(billing.DocumentKindQuote), quoteID); linesError != nil {
			return linesError
		}
		result, deleteError := transaction.ExecContext(executionContext, `DELETE FROM quotes WHERE id = ?`, quoteID)
		if deleteError != nil {
			return deleteError
		}
		return requireAffected(result, quoteResourceConstant, quoteID)
	})
}

func replaceLineItems(executionContext context.Context, transaction *sql.Tx, kind billing.DocumentKind, documentID string, lineItems []billing.LineItem) error {
	if _, deleteError := transaction.ExecContext(executionContext, `DELETE FROM line_items WHERE document_kind = ? AND document_id = ?`, string(kind), documentID); deleteError != nil {
		return deleteError
	}
	for _, lineItem := range lineItems {
		if _, insertError := transaction.ExecContext(executionContext,
			`INSERT INTO line_items (id, document_kind, document_id, description, quantity, unit_price, amount, position)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			lineItem.ID, string(kind), documentID, lineItem.Description, lineItem.Quantity, lineItem.UnitPrice,
			lineItem.Amount, lineItem.Position,
		); insertError != nil {
			return insertError
		}
	}
	return nil
}

// loadLineItems groups line items by document identifier. Callers must not hold open rows.
func (store *Store) loadLineItems(executionContext context.Context, kind billing.DocumentKind, documentIDs []string) (map[string][]billing.LineItem, error) {
	lineItemsByDocument := map[string][]billing.LineItem{}
	if len(documentIDs) == 0 {
		return lineItemsByDocument, nil
	}
	wanted := make(map[string]struct{}, len(documentIDs))
	for _, documentID := range documentIDs {
		wanted[documentID] = struct{}{}
	}

	rows, queryError := store.database.QueryContext(executionContext,
		`SELECT document_id, id, description, quantity, unit_price, amount, position
			FROM line_items WHERE document_kind = ? ORDER BY document_id, position`,
		string(kind),
	)
	if queryError != nil {
		return nil, queryError
	}
	defer rows.Close()

	for rows.Next() {
		var documentID string
		var lineItem billing.LineItem
		if scanError := rows.Scan(&documentID, &lineItem.ID, &lineItem.Description, &lineItem.Quantity, &lineItem.UnitPrice, &lineItem.Amount, &lineItem.Position); scanError != nil {
			return nil, scanError
		}
		if _, requested := wanted[documentID]; !requested {
			continue
		}
		lineItemsByDocument[documentID] = append(lineItemsByDocument[documentID], lineItem)
	}
	return lineItemsByDocument, rows.Err()
}

func scanInvoice(scanner rowScanner) (billing.Invoice, error) {
	var invoice billing.Invoice
	var status, issueDate, dueDate, createdAt, updatedAt string
	var paidAt sql.NullString
	if scanError := scanner.Scan(
		&invoice.ID, &invoice.Number, &invoice.CustomerID, &invoice.ProjectID, &status, &issueDate, &dueDate,
		&invoice.Currency, &invoice.TaxRate, &invoice.Notes, &paidAt, &createdAt, &updatedAt,
	); scanError != nil {
		return billing.Invoice{}, scanError
	}
	invoice.Status = billing.InvoiceStatus(status)

	var parseError error
	for _, field := range []struct {
		raw         string
		destination *time.Time
	}{
		{raw: issueDate, destination: &invoice.IssueDate},
		{raw: dueDate, destination: &invoice.DueDate},
		{raw: createdAt, destination: &invoice.CreatedAt},
		{raw: updatedAt, destination: &invoice.UpdatedAt},
	} {
		if *field.destination, parseError = parseTimestamp(field.raw); parseError != nil {
			return billing.Invoice{}, parseError
		}
	}
	if invoice.PaidAt, parseError = parseOptionalTimestamp(paidAt); parseError != nil {
		return billing.Invoice{}, parseError
	}
	return invoice, nil
}

func scanQuote(scanner rowScanner) (billing.Quote, error) {
	var quote billing.Quote
	var status, validUntil, createdAt, updatedAt string
	if scanError := scanner.Scan(
		&quote.ID, &quote.Number, &quote.CustomerID, &quote.ProjectID, &quote.Title, &status, &validUntil,
		&quote.Currency, &quote.TaxRate, &quote.Notes, &quote.InvoiceID, &createdAt, &updatedAt,
	); scanError != nil {
		return billing.Quote{}, scanError
	}
	quote.Status = billing.QuoteStatus(status)

	var parseError error
	for _, field := range []struct {
		raw         string
		destination *time.Time
	}{
		{raw: validUntil, destination: &quote.ValidUntil},
		{raw: createdAt, destination: &quote.CreatedAt},
		{raw: updatedAt, destination: &quote.UpdatedAt},
	} {
		if *field.destination, parseError = parseTimestamp(field.raw); parseError != nil {
			return billing.Quote{}, parseError
		}
	}
	return quote, nil
}
