package storage

import (
	"context"
	"database/sql"
	"strings"

	"github.com/temirov/billdesk/internal/knowledgebase"
)

const (
	questionResourceConstant = "question"
	questionColumnsConstant  = "id, author_name, author_email, title, body, answer, status, category, source, external_id, created_at, updated_at"
	likeWildcardConstant     = "%"
)

// CreateQuestion inserts a question.
func (store *Store) CreateQuestion(executionContext context.Context, question knowledgebase.Question) error {
	_, insertError := store.database.ExecContext(executionContext,
		`INSERT INTO questions (`+questionColumnsConstant+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		question.ID, question.AuthorName, question.AuthorEmail, question.Title, question.Body, question.Answer,
		string(question.Status), question.Category, string(question.Source), nullableText(question.ExternalID),
		formatTimestamp(question.CreatedAt), formatTimestamp(question.UpdatedAt),
	)
	return insertError
}

// UpdateQuestion overwrites a question.
func (store *Store) UpdateQuestion(executionContext context.Context, question knowledgebase.Question) error {
	result, updateError := store.database.ExecContext(executionContext,
		`UPDATE questions SET author_name = ?, author_email = ?, title = ?, body = ?, answer = ?, status = ?, category = ?,
			source = ?, external_id = ?, updated_at = ? WHERE id = ?`,
		question.AuthorName, question.AuthorEmail, question.Title, question.Body, question.Answer, string(question.Status),
		question.Category, string(question.Source), nullableText(question.ExternalID), formatTimestamp(question.UpdatedAt),
		question.ID,
	)
	if updateError != nil {
		return updateError
	}
	return requireAffected(result, questionResourceConstant, question.ID)
}

// GetQuestion loads a question by identifier.
func (store *Store) GetQuestion(executionContext context.Context, questionID string) (knowledgebase.Question, error) {
	row := store.database.QueryRowContext(executionContext, `SELECT `+questionColumnsConstant+` FROM questions WHERE id = ?`, questionID)
	question, scanError := scanQuestion(row)
	if scanError != nil {
		return knowledgebase.Question{}, translateNoRows(scanError, questionResourceConstant, questionID)
	}
	return question, nil
}

// FindQuestionByExternalID loads a question imported from an external source.
func (store *Store) FindQuestionByExternalID(executionContext context.Context, externalID string) (knowledgebase.Question, error) {
	row := store.database.QueryRowContext(executionContext, `SELECT `+questionColumnsConstant+` FROM questions WHERE external_id = ?`, externalID)
	question, scanError := scanQuestion(row)
	if scanError != nil {
		return knowledgebase.Question{}, translateNoRows(scanError, questionResourceConstant, externalID)
	}
	return question, nil
}

// ListQuestions returns questions matching the filter, most recently updated first.
// Query matches title, body, or answer case-insensitively.
func (store *Store) ListQuestions(executionContext context.Context, filter knowledgebase.QuestionFilter) ([]knowledgebase.Question, error) {
	pattern := ""
	if len(filter.Query) > 0 {
		pattern = likeWildcardConstant + escapeLikePattern(strings.ToLower(filter.Query)) + likeWildcardConstant
	}
	rows, queryError := store.database.QueryContext(executionContext,
		`SELECT `+questionColumnsConstant+` FROM questions
			WHERE (? = '' OR status = ?)
				AND (? = '' OR lower(category) = lower(?))
				AND (? = '' OR lower(title) LIKE ? ESCAPE '\' OR lower(body) LIKE ? ESCAPE '\' OR lower(answer) LIKE ? ESCAPE '\')
			ORDER BY updated_at DESC, id`,
		string(filter.Status), string(filter.Status),
		filter.Category, filter.Category,
		pattern, pattern, pattern, pattern,
	)
	if queryError != nil {
		return nil, queryError
	}
	defer rows.Close()

	questions := []knowledgebase.Question{}
	for rows.Next() {
		question, scanError := scanQuestion(rows)
		if scanError != nil {
			return nil, scanError
		}
		questions = append(questions, question)
	}
	return questions, rows.Err()
}

// DeleteQuestion removes a question.
func (store *Store) DeleteQuestion(executionContext context.Context, questionID string) error {
	result, deleteError := store.database.ExecContext(executionContext, `DELETE FROM questions WHERE id = ?`, questionID)
	if deleteError != nil {
		return deleteError
	}
	return requireAffected(result, questionResourceConstant, questionID)
}

func scanQuestion(scanner rowScanner) (knowledgebase.Question, error) {
	var question knowledgebase.Question
	var status, source, createdAt, updatedAt string
	var externalID sql.NullString
	if scanError := scanner.Scan(
		&question.ID, &question.AuthorName, &question.AuthorEmail, &question.Title, &question.Body, &question.Answer,
		&status, &question.Category, &source, &externalID, &createdAt, &updatedAt,
	); scanError != nil {
		return knowledgebase.Question{}, scanError
	}
	question.Status = knowledgebase.QuestionStatus(status)
	question.Source = knowledgebase.QuestionSource(source)
	question.ExternalID = externalID.String
	var parseError error
	if question.CreatedAt, parseError = parseTimestamp(createdAt); parseError != nil {
		return knowledgebase.Question{}, parseError
	}
	if question.UpdatedAt, parseError = parseTimestamp(updatedAt); parseError != nil {
		return knowledgebase.Question{}, parseError
	}
	return question, nil
}

func nullableText(value string) sql.NullString {
	return sql.NullString{String: value, Valid: len(value) > 0}
}

func escapeLikePattern(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
