// Package storage persists billdesk records in sqlite through database/sql.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/faults"
	pathutils "github.com/temirov/billdesk/internal/utils/path"
)

const (
	sqliteDriverNameConstant         = "sqlite3"
	databaseDirectoryPermissions     = 0o755
	timestampLayoutConstant          = time.RFC3339Nano
	openOperationNameConstant        = "storage.open"
	migrateOperationNameConstant     = "storage.migrate"
	transactionOperationNameConstant = "storage.transaction"
	foreignKeysParameterConstant     = "_foreign_keys=on"
	queryParameterSeparatorConstant  = "&"
	databaseOpenedMessageConstant    = "database opened"
	logFieldDatabasePathConstant     = "path"
	rollbackFailedMessageConstant    = "transaction rollback failed"
	resetOperationNameConstant       = "storage.reset"
	invalidTimestampTemplateConstant = "invalid stored timestamp %q: %w"
	singleConnectionLimitConstant    = 1
)

// OperationError wraps failures from database operations with the operation name.
type OperationError struct {
	Operation string
	Cause     error
}

// Error describes the failure.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s: %v", operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// Store implements the billing, knowledge base and auth repositories on sqlite.
type Store struct {
	database *sql.DB
	logger   *zap.Logger
}

// Open resolves databaseURL, ensures its directory exists, and migrates the schema.
func Open(logger *zap.Logger, databaseURL string) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	location, resolveError := pathutils.ResolveDatabaseLocation(pathutils.NewHomeExpander(), databaseURL)
	if resolveError != nil {
		return nil, OperationError{Operation: openOperationNameConstant, Cause: resolveError}
	}
	if !location.InMemory() {
		if mkdirError := os.MkdirAll(filepath.Dir(location.Path), databaseDirectoryPermissions); mkdirError != nil {
			return nil, OperationError{Operation: openOperationNameConstant, Cause: mkdirError}
		}
	}

	if len(location.Query) > 0 {
		location.Query += queryParameterSeparatorConstant
	}
	location.Query += foreignKeysParameterConstant

	database, openError := sql.Open(sqliteDriverNameConstant, location.DataSourceName())
	if openError != nil {
		return nil, OperationError{Operation: openOperationNameConstant, Cause: openError}
	}
	// sqlite serializes writers; a single connection also keeps :memory: databases shared.
	database.SetMaxOpenConns(singleConnectionLimitConstant)

	store := &Store{database: database, logger: logger}
	if migrateError := store.migrate(); migrateError != nil {
		database.Close()
		return nil, OperationError{Operation: migrateOperationNameConstant, Cause: migrateError}
	}
	logger.Debug(databaseOpenedMessageConstant, zap.String(logFieldDatabasePathConstant, location.Path))
	return store, nil
}

// Close releases the database handle.
func (store *Store) Close() error {
	return store.database.Close()
}

// Ping checks database connectivity.
func (store *Store) Ping(executionContext context.Context) error {
	return store.database.PingContext(executionContext)
}

func (store *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS customers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			company TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			website TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			stripe_customer_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			repository_url TEXT NOT NULL DEFAULT '',
			deploy_provider TEXT NOT NULL DEFAULT '',
			deploy_target_id TEXT NOT NULL DEFAULT '',
			deploy_url TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS invoices (
			id TEXT PRIMARY KEY,
			number TEXT NOT NULL UNIQUE,
			customer_id TEXT NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
			project_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			issue_date TEXT NOT NULL,
			due_date TEXT NOT NULL,
			currency TEXT NOT NULL,
			tax_rate TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			paid_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS quotes (
			id TEXT PRIMARY KEY,
			number TEXT NOT NULL UNIQUE,
			customer_id TEXT NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
			project_id TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			status TEXT NOT NULL,
			valid_until TEXT NOT NULL,
			currency TEXT NOT NULL,
			tax_rate TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			invoice_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS line_items (
			id TEXT PRIMARY KEY,
			document_kind TEXT NOT NULL,
			document_id TEXT NOT NULL,
			description TEXT NOT NULL,
			quantity TEXT NOT NULL,
			unit_price TEXT NOT NULL,
			amount TEXT NOT NULL,
			position INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS document_sequences (
			kind TEXT NOT NULL,
			year INTEGER NOT NULL,
			last_value INTEGER NOT NULL,
			PRIMARY KEY (kind, year)
		);

		CREATE TABLE IF NOT EXISTS quote_requests (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			company TEXT NOT NULL DEFAULT '',
			project_type TEXT NOT NULL DEFAULT '',
			budget TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS payment_methods (
			id TEXT PRIMARY KEY,
			customer_id TEXT NOT NULL REFERENCES customers(id) ON DELETE CASCADE,
			stripe_payment_method_id TEXT NOT NULL UNIQUE,
			brand TEXT NOT NULL DEFAULT '',
			last4 TEXT NOT NULL DEFAULT '',
			exp_month INTEGER NOT NULL DEFAULT 0,
			exp_year INTEGER NOT NULL DEFAULT 0,
			is_default INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS questions (
			id TEXT PRIMARY KEY,
			author_name TEXT NOT NULL DEFAULT '',
			author_email TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			answer TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL,
			external_id TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			profile_image_url TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL,
			password_hash TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			access_token TEXT NOT NULL DEFAULT '',
			refresh_token TEXT NOT NULL DEFAULT '',
			expires_at TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS api_keys (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			prefix TEXT NOT NULL,
			key_hash TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL,
			last_used_at TEXT,
			revoked_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_projects_customer ON projects(customer_id);
		CREATE INDEX IF NOT EXISTS idx_invoices_customer ON invoices(customer_id);
		CREATE INDEX IF NOT EXISTS idx_quotes_customer ON quotes(customer_id);
		CREATE INDEX IF NOT EXISTS idx_line_items_document ON line_items(document_kind, document_id);
		CREATE INDEX IF NOT EXISTS idx_payment_methods_customer ON payment_methods(customer_id);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_questions_external ON questions(external_id) WHERE external_id IS NOT NULL;
		CREATE INDEX IF NOT EXISTS idx_questions_status ON questions(status);
	`
	_, execError := store.database.Exec(schema)
	return execError
}

// Reset deletes every record while keeping the schema.
func (store *Store) Reset(executionContext context.Context) error {
	tables := []string{
		"sessions", "api_keys", "users", "questions", "payment_methods", "quote_requests",
		"line_items", "quotes", "invoices", "document_sequences", "projects", "customers",
	}
	return store.withTransaction(executionContext, func(transaction *sql.Tx) error {
		for _, table := range tables {
			if _, deleteError := transaction.ExecContext(executionContext, "DELETE FROM "+table); deleteError != nil {
				return OperationError{Operation: resetOperationNameConstant, Cause: deleteError}
			}
		}
		return nil
	})
}

func (store *Store) withTransaction(executionContext context.Context, work func(transaction *sql.Tx) error) error {
	transaction, beginError := store.database.BeginTx(executionContext, nil)
	if beginError != nil {
		return OperationError{Operation: transactionOperationNameConstant, Cause: beginError}
	}
	if workError := work(transaction); workError != nil {
		if rollbackError := transaction.Rollback(); rollbackError != nil {
			store.logger.Warn(rollbackFailedMessageConstant, zap.Error(rollbackError))
		}
		return workError
	}
	return transaction.Commit()
}

// requireAffected converts a zero-row update or delete into a NotFoundError.
func requireAffected(result sql.Result, resource string, identifier string) error {
	affectedRows, affectedError := result.RowsAffected()
	if affectedError != nil {
		return affectedError
	}
	if affectedRows == 0 {
		return faults.NotFoundError{Resource: resource, Identifier: identifier}
	}
	return nil
}

func translateNoRows(lookupError error, resource string, identifier string) error {
	if errors.Is(lookupError, sql.ErrNoRows) {
		return faults.NotFoundError{Resource: resource, Identifier: identifier}
	}
	return lookupError
}

func formatTimestamp(moment time.Time) string {
	return moment.UTC().Format(timestampLayoutConstant)
}

func formatOptionalTimestamp(moment *time.Time) sql.NullString {
	if moment == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTimestamp(*moment), Valid: true}
}

func parseTimestamp(value string) (time.Time, error) {
	moment, parseError := time.Parse(timestampLayoutConstant, value)
	if parseError != nil {
		return time.Time{}, fmt.Errorf(invalidTimestampTemplateConstant, value, parseError)
	}
	return moment.UTC(), nil
}

func parseOptionalTimestamp(value sql.NullString) (*time.Time, error) {
	if !value.Valid || len(value.String) == 0 {
		return nil, nil
	}
	moment, parseError := parseTimestamp(value.String)
	if parseError != nil {
		return nil, parseError
	}
	return &moment, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(destinations ...any) error
}
