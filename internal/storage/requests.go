package storage

import (
	"context"

	"github.com/temirov/billdesk/internal/billing"
)

const (
	quoteRequestResourceConstant = "quote request"
	quoteRequestColumnsConstant  = "id, name, email, company, project_type, budget, message, status, created_at, updated_at"
	paymentMethodColumnsConstant = "id, customer_id, stripe_payment_method_id, brand, last4, exp_month, exp_year, is_default, created_at"
)

// CreateQuoteRequest inserts a quote request.
func (store *Store) CreateQuoteRequest(executionContext context.Context, request billing.QuoteRequest) error {
	_, insertError := store.database.ExecContext(executionContext,
		`INSERT INTO quote_requests (`+quoteRequestColumnsConstant+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		request.ID, request.Name, request.Email, request.Company, request.ProjectType, request.Budget, request.Message,
		string(request.Status), formatTimestamp(request.CreatedAt), formatTimestamp(request.UpdatedAt),
	)
	return insertError
}

// UpdateQuoteRequest overwrites a quote request.
func (store *Store) UpdateQuoteRequest(executionContext context.Context, request billing.QuoteRequest) error {
	result, updateError := store.database.ExecContext(executionContext,
		`UPDATE quote_requests SET name = ?, email = ?, company = ?, project_type = ?, budget = ?, message = ?, status = ?,
			updated_at = ? WHERE id = ?`,
		request.Name, request.Email, request.Company, request.ProjectType, request.Budget, request.Message,
		string(request.Status), formatTimestamp(request.UpdatedAt), request.ID,
	)
	if updateError != nil {
		return updateError
	}
	return requireAffected(result, quoteRequestResourceConstant, request.ID)
}

// GetQuoteRequest loads a quote request by identifier.
func (store *Store) GetQuoteRequest(executionContext context.Context, requestID string) (billing.QuoteRequest, error) {
	row := store.database.QueryRowContext(executionContext, `SELECT `+quoteRequestColumnsConstant+` FROM quote_requests WHERE id = ?`, requestID)
	request, scanError := scanQuoteRequest(row)
	if scanError != nil {
		return billing.QuoteRequest{}, translateNoRows(scanError, quoteRequestResourceConstant, requestID)
	}
	return request, nil
}

// ListQuoteRequests returns quote requests, newest first.
func (store *Store) ListQuoteRequests(executionContext context.Context) ([]billing.QuoteRequest, error) {
	rows, queryError := store.database.QueryContext(executionContext, `SELECT `+quoteRequestColumnsConstant+` FROM quote_requests ORDER BY created_at DESC, id`)
	if queryError != nil {
		return nil, queryError
	}
	defer rows.Close()

	requests := []billing.QuoteRequest{}
	for rows.Next() {
		request, scanError := scanQuoteRequest(rows)
		if scanError != nil {
			return nil, scanError
		}
		requests = append(requests, request)
	}
	return requests, rows.Err()
}

// UpsertPaymentMethod inserts or refreshes a payment method keyed by its Stripe identifier.
func (store *Store) UpsertPaymentMethod(executionContext context.Context, paymentMethod billing.PaymentMethod) error {
	_, upsertError := store.database.ExecContext(executionContext,
		`INSERT INTO payment_methods (`+paymentMethodColumnsConstant+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(stripe_payment_method_id) DO UPDATE SET
				customer_id = excluded.customer_id, brand = excluded.brand, last4 = excluded.last4,
				exp_month = excluded.exp_month, exp_year = excluded.exp_year, is_default = excluded.is_default`,
		paymentMethod.ID, paymentMethod.CustomerID, paymentMethod.StripePaymentMethodID, paymentMethod.Brand,
		paymentMethod.Last4, paymentMethod.ExpMonth, paymentMethod.ExpYear, paymentMethod.IsDefault,
		formatTimestamp(paymentMethod.CreatedAt),
	)
	return upsertError
}

// ListPaymentMethods returns a customer's payment methods, default first.
func (store *Store) ListPaymentMethods(executionContext context.Context, customerID string) ([]billing.PaymentMethod, error) {
	rows, queryError := store.database.QueryContext(executionContext,
		`SELECT `+paymentMethodColumnsConstant+` FROM payment_methods WHERE customer_id = ? ORDER BY is_default DESC, created_at`,
		customerID,
	)
	if queryError != nil {
		return nil, queryError
	}
	defer rows.Close()

	paymentMethods := []billing.PaymentMethod{}
	for rows.Next() {
		var paymentMethod billing.PaymentMethod
		var createdAt string
		if scanError := rows.Scan(
			&paymentMethod.ID, &paymentMethod.CustomerID, &paymentMethod.StripePaymentMethodID, &paymentMethod.Brand,
			&paymentMethod.Last4, &paymentMethod.ExpMonth, &paymentMethod.ExpYear, &paymentMethod.IsDefault, &createdAt,
		); scanError != nil {
			return nil, scanError
		}
		parsedCreatedAt, parseError := parseTimestamp(createdAt)
		if parseError != nil {
			return nil, parseError
		}
		paymentMethod.CreatedAt = parsedCreatedAt
		paymentMethods = append(paymentMethods, paymentMethod)
	}
	return paymentMethods, rows.Err()
}

// DeletePaymentMethodByStripeID removes a payment method. Missing rows are not an error.
func (store *Store) DeletePaymentMethodByStripeID(executionContext context.Context, stripePaymentMethodID string) error {
	_, deleteError := store.database.ExecContext(executionContext, `DELETE FROM payment_methods WHERE stripe_payment_method_id = ?`, stripePaymentMethodID)
	return deleteError
}

func scanQuoteRequest(scanner rowScanner) (billing.QuoteRequest, error) {
	var request billing.QuoteRequest
	var status, createdAt, updatedAt string
	if scanError := scanner.Scan(
		&request.ID, &request.Name, &request.Email, &request.Company, &request.ProjectType, &request.Budget,
		&request.Message, &status, &createdAt, &updatedAt,
	); scanError != nil {
		return billing.QuoteRequest{}, scanError
	}
	request.Status = billing.QuoteRequestStatus(status)
	var parseError error
	if request.CreatedAt, parseError = parseTimestamp(createdAt); parseError != nil {
		return billing.QuoteRequest{}, parseError
	}
	if request.UpdatedAt, parseError = parseTimestamp(updatedAt); parseError != nil {
		return billing.QuoteRequest{}, parseError
	}
	return request, nil
}
