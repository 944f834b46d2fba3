package knowledgebase

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/faults"
)

const (
	repositoryMissingMessageConstant = "question repository must be provided"
	authorNameFieldNameConstant      = "authorName"
	authorEmailFieldNameConstant     = "authorEmail"
	titleFieldNameConstant           = "title"
	answerFieldNameConstant          = "answer"
	externalIDFieldNameConstant      = "externalId"
	invalidEmailMessageConstant      = "must be a valid email address"
	publishOperationNameConstant     = "PublishQuestion"
	unansweredMessageConstant        = "question has no answer to publish"
	questionImportedMessageConstant  = "question imported"
	logFieldExternalIDConstant       = "external_id"
	logFieldCreatedConstant          = "created"
)

// QuestionInput carries a portal question submission.
type QuestionInput struct {
	AuthorName  string `json:"authorName" yaml:"author_name"`
	AuthorEmail string `json:"authorEmail" yaml:"author_email"`
	Title       string `json:"title" yaml:"title"`
	Body        string `json:"body" yaml:"body"`
	Category    string `json:"category" yaml:"category"`
}

// ExternalQuestion is a question imported from an external knowledge source.
// An empty Source means QuestionSourceNotion.
type ExternalQuestion struct {
	ExternalID string
	Title      string
	Body       string
	Answer     string
	Category   string
	Source     QuestionSource
}

// Service coordinates question review and publication.
type Service struct {
	logger     *zap.Logger
	repository Repository
	now        func() time.Time
	newID      func() string
}

// NewService constructs a knowledge base service.
func NewService(logger *zap.Logger, repository Repository) (*Service, error) {
	if repository == nil {
		return nil, errors.New(repositoryMissingMessageConstant)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		logger:     logger,
		repository: repository,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}, nil
}

// Submit stores a new open question from the portal.
func (service *Service) Submit(executionContext context.Context, input QuestionInput) (Question, error) {
	authorName := strings.TrimSpace(input.AuthorName)
	if len(authorName) == 0 {
		return Question{}, faults.Required(authorNameFieldNameConstant)
	}
	authorEmail := strings.ToLower(strings.TrimSpace(input.AuthorEmail))
	if len(authorEmail) > 0 {
		if _, parseError := mail.ParseAddress(authorEmail); parseError != nil {
			return Question{}, faults.InvalidInputError{FieldName: authorEmailFieldNameConstant, Message: invalidEmailMessageConstant}
		}
	}
	title := strings.TrimSpace(input.Title)
	if len(title) == 0 {
		return Question{}, faults.Required(titleFieldNameConstant)
	}

	now := service.now()
	question := Question{
		ID:          service.newID(),
		AuthorName:  authorName,
		AuthorEmail: authorEmail,
		Title:       title,
		Body:        strings.TrimSpace(input.Body),
		Status:      QuestionStatusOpen,
		Category:    strings.TrimSpace(input.Category),
		Source:      QuestionSourcePortal,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if createError := service.repository.CreateQuestion(executionContext, question); createError != nil {
		return Question{}, createError
	}
	return question, nil
}

// Answer records an answer and moves an open question to answered.
func (service *Service) Answer(executionContext context.Context, questionID string, answer string) (Question, error) {
	trimmedAnswer := strings.TrimSpace(answer)
	if len(trimmedAnswer) == 0 {
		return Question{}, faults.Required(answerFieldNameConstant)
	}
	question, lookupError := service.repository.GetQuestion(executionContext, questionID)
	if lookupError != nil {
		return Question{}, lookupError
	}
	question.Answer = trimmedAnswer
	if question.Status == QuestionStatusOpen {
		question.Status = QuestionStatusAnswered
	}
	question.UpdatedAt = service.now()
	if updateError := service.repository.UpdateQuestion(executionContext, question); updateError != nil {
		return Question{}, updateError
	}
	return question, nil
}

// Publish exposes an answered question in the public knowledge base.
func (service *Service) Publish(executionContext context.Context, questionID string) (Question, error) {
	question, lookupError := service.repository.GetQuestion(executionContext, questionID)
	if lookupError != nil {
		return Question{}, lookupError
	}
	if len(question.Answer) == 0 {
		return Question{}, faults.PreconditionFailedError{Operation: publishOperationNameConstant, Message: unansweredMessageConstant}
	}
	question.Status = QuestionStatusPublished
	question.UpdatedAt = service.now()
	if updateError := service.repository.UpdateQuestion(executionContext, question); updateError != nil {
		return Question{}, updateError
	}
	return question, nil
}

// List returns questions matching the filter.
func (service *Service) List(executionContext context.Context, filter QuestionFilter) ([]Question, error) {
	return service.repository.ListQuestions(executionContext, normalizeFilter(filter))
}

// PublicKnowledgeBase returns published questions filtered by free text and category.
func (service *Service) PublicKnowledgeBase(executionContext context.Context, query string, category string) ([]Question, error) {
	return service.repository.ListQuestions(executionContext, normalizeFilter(QuestionFilter{
		Status:   QuestionStatusPublished,
		Category: category,
		Query:    query,
	}))
}

// Delete removes a question.
func (service *Service) Delete(executionContext context.Context, questionID string) error {
	return service.repository.DeleteQuestion(executionContext, questionID)
}

// CountOpen reports questions still awaiting an answer.
func (service *Service) CountOpen(executionContext context.Context) (int, error) {
	openQuestions, listError := service.repository.ListQuestions(executionContext, QuestionFilter{Status: QuestionStatusOpen})
	if listError != nil {
		return 0, listError
	}
	return len(openQuestions), nil
}

// Import upserts an externally sourced question by its external identifier and publishes it.
// The boolean result reports whether a new question was created.
func (service *Service) Import(executionContext context.Context, external ExternalQuestion) (Question, bool, error) {
	externalID := strings.TrimSpace(external.ExternalID)
	if len(externalID) == 0 {
		return Question{}, false, faults.Required(externalIDFieldNameConstant)
	}
	title := strings.TrimSpace(external.Title)
	if len(title) == 0 {
		return Question{}, false, faults.Required(titleFieldNameConstant)
	}

	now := service.now()
	question, lookupError := service.repository.FindQuestionByExternalID(executionContext, externalID)
	created := false
	switch {
	case lookupError == nil:
	case faults.IsNotFound(lookupError):
		created = true
		source := external.Source
		if len(source) == 0 {
			source = QuestionSourceNotion
		}
		question = Question{
			ID:         service.newID(),
			ExternalID: externalID,
			Source:     source,
			CreatedAt:  now,
		}
	default:
		return Question{}, false, lookupError
	}

	question.Title = title
	question.Body = strings.TrimSpace(external.Body)
	question.Answer = strings.TrimSpace(external.Answer)
	question.Category = strings.TrimSpace(external.Category)
	question.Status = QuestionStatusPublished
	question.UpdatedAt = now

	var persistError error
	if created {
		persistError = service.repository.CreateQuestion(executionContext, question)
	} else {
		persistError = service.repository.UpdateQuestion(executionContext, question)
	}
	if persistError != nil {
		return Question{}, false, persistError
	}
	service.logger.Debug(questionImportedMessageConstant, zap.String(logFieldExternalIDConstant, externalID), zap.Bool(logFieldCreatedConstant, created))
	return question, created, nil
}

func normalizeFilter(filter QuestionFilter) QuestionFilter {
	return QuestionFilter{
		Status:   QuestionStatus(strings.ToLower(strings.TrimSpace(string(filter.Status)))),
		Category: strings.TrimSpace(filter.Category),
		Query:    strings.TrimSpace(filter.Query),
	}
}
