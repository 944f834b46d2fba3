// Package knowledgebase manages Q&A questions and the public knowledge base built from them.
package knowledgebase

import (
	"context"
	"time"
)

// QuestionStatus enumerates review states for questions.
type QuestionStatus string

// Supported question statuses.
const (
	QuestionStatusOpen      QuestionStatus = QuestionStatus("open")
	QuestionStatusAnswered  QuestionStatus = QuestionStatus("answered")
	QuestionStatusPublished QuestionStatus = QuestionStatus("published")
)

// QuestionSource identifies where a question originated.
type QuestionSource string

// Supported question sources.
const (
	QuestionSourcePortal QuestionSource = QuestionSource("portal")
	QuestionSourceNotion QuestionSource = QuestionSource("notion")
	QuestionSourceSeed   QuestionSource = QuestionSource("seed")
)

// Question is a customer question with an optional published answer.
type Question struct {
	ID          string         `json:"id"`
	AuthorName  string         `json:"authorName"`
	AuthorEmail string         `json:"authorEmail"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Answer      string         `json:"answer"`
	Status      QuestionStatus `json:"status"`
	Category    string         `json:"category"`
	Source      QuestionSource `json:"source"`
	ExternalID  string         `json:"externalId,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// QuestionFilter narrows question listings. Empty fields match everything.
type QuestionFilter struct {
	Status   QuestionStatus
	Category string
	Query    string
}

// Repository persists questions.
type Repository interface {
	CreateQuestion(executionContext context.Context, question Question) error
	UpdateQuestion(executionContext context.Context, question Question) error
	GetQuestion(executionContext context.Context, questionID string) (Question, error)
	FindQuestionByExternalID(executionContext context.Context, externalID string) (Question, error)
	ListQuestions(executionContext context.Context, filter QuestionFilter) ([]Question, error)
	DeleteQuestion(executionContext context.Context, questionID string) error
}
