package storage

import (
	"context"
	"database/sql"

	"github.com/temirov/billdesk/internal/billing"
	"github.com/temirov/billdesk/internal/faults"
)

const (
	customerResourceConstant = "customer"
	customerColumnsConstant  = "id, name, email, company, phone, website, address, notes, stripe_customer_id, created_at, updated_at"
)

// CreateCustomer inserts a customer.
func (store *Store) CreateCustomer(executionContext context.Context, customer billing.Customer) error {
	_, insertError := store.database.ExecContext(executionContext,
		`INSERT INTO customers (`+customerColumnsConstant+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		customer.ID, customer.Name, customer.Email, customer.Company, customer.Phone, customer.Website,
		customer.Address, customer.Notes, customer.StripeCustomerID,
		formatTimestamp(customer.CreatedAt), formatTimestamp(customer.UpdatedAt),
	)
	return insertError
}

// UpdateCustomer overwrites a customer.
func (store *Store) UpdateCustomer(executionContext context.Context, customer billing.Customer) error {
	result, updateError := store.database.ExecContext(executionContext,
		`UPDATE customers SET name = ?, email = ?, company = ?, phone = ?, website = ?, address = ?, notes = ?,
			stripe_customer_id = ?, updated_at = ? WHERE id = ?`,
		customer.Name, customer.Email, customer.Company, customer.Phone, customer.Website, customer.Address,
		customer.Notes, customer.StripeCustomerID, formatTimestamp(customer.UpdatedAt), customer.ID,
	)
	if updateError != nil {
		return updateError
	}
	return requireAffected(result, customerResourceConstant, customer.ID)
}

// GetCustomer loads a customer by identifier.
func (store *Store) GetCustomer(executionContext context.Context, customerID string) (billing.Customer, error) {
	row := store.database.QueryRowContext(executionContext, `SELECT `+customerColumnsConstant+` FROM customers WHERE id = ?`, customerID)
	customer, scanError := scanCustomer(row)
	if scanError != nil {
		return billing.Customer{}, translateNoRows(scanError, customerResourceConstant, customerID)
	}
	return customer, nil
}

// FindCustomerByEmail loads a customer by case-insensitive email.
func (store *Store) FindCustomerByEmail(executionContext context.Context, email string) (billing.Customer, error) {
	row := store.database.QueryRowContext(executionContext, `SELECT `+customerColumnsConstant+` FROM customers WHERE lower(email) = lower(?) AND email != '' LIMIT 1`, email)
	customer, scanError := scanCustomer(row)
	if scanError != nil {
		return billing.Customer{}, translateNoRows(scanError, customerResourceConstant, email)
	}
	return customer, nil
}

// FindCustomerByStripeID loads the customer linked to a Stripe customer.
func (store *Store) FindCustomerByStripeID(executionContext context.Context, stripeCustomerID string) (billing.Customer, error) {
	if len(stripeCustomerID) == 0 {
		return billing.Customer{}, faults.NotFoundError{Resource: customerResourceConstant}
	}
	row := store.database.QueryRowContext(executionContext, `SELECT `+customerColumnsConstant+` FROM customers WHERE stripe_customer_id = ? LIMIT 1`, stripeCustomerID)
	customer, scanError := scanCustomer(row)
	if scanError != nil {
		return billing.Customer{}, translateNoRows(scanError, customerResourceConstant, stripeCustomerID)
	}
	return customer, nil
}

// ListCustomers returns customers ordered by name.
func (store *Store) ListCustomers(executionContext context.Context) ([]billing.Customer, error) {
	rows, queryError := store.database.QueryContext(executionContext, `SELECT `+customerColumnsConstant+` FROM customers ORDER BY name COLLATE NOCASE, id`)
	if queryError != nil {
		return nil, queryError
	}
	defer rows.Close()

	customers := []billing.Customer{}
	for rows.Next() {
		customer, scanError := scanCustomer(rows)
		if scanError != nil {
			return nil, scanError
		}
		customers = append(customers, customer)
	}
	return customers, rows.Err()
}

// DeleteCustomer removes a customer and, by cascade, its projects, invoices, quotes and payment methods.
func (store *Store) DeleteCustomer(executionContext context.Context, customerID string) error {
	return store.withTransaction(executionContext, func(transaction *sql.Tx) error {
		if _, linesError := transaction.ExecContext(executionContext,
			`DELETE FROM line_items WHERE (document_kind = 'invoice' AND document_id IN (SELECT id FROM invoices WHERE customer_id = ?))
				OR (document_kind = 'quote' AND document_id IN (SELECT id FROM quotes WHERE customer_id = ?))`,
			customerID, customerID,
		); linesError != nil {
			return linesError
		}
		result, deleteError := transaction.ExecContext(executionContext, `DELETE FROM customers WHERE id = ?`, customerID)
		if deleteError != nil {
			return deleteError
		}
		return requireAffected(result, customerResourceConstant, customerID)
	})
}

func scanCustomer(scanner rowScanner) (billing.Customer, error) {
	var customer billing.Customer
	var createdAt, updatedAt string
	if scanError := scanner.Scan(
		&customer.ID, &customer.Name, &customer.Email, &customer.Company, &customer.Phone, &customer.Website,
		&customer.Address, &customer.Notes, &customer.StripeCustomerID, &createdAt, &updatedAt,
	); scanError != nil {
		return billing.Customer{}, scanError
	}
	var parseError error
	if customer.CreatedAt, parseError = parseTimestamp(createdAt); parseError != nil {
		return billing.Customer{}, parseError
	}
	if customer.UpdatedAt, parseError = parseTimestamp(updatedAt); parseError != nil {
		return billing.Customer{}, parseError
	}
	return customer, nil
}
