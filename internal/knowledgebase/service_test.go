package knowledgebase_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/faults"
	"github.com/temirov/billdesk/internal/knowledgebase"
)

const (
	knowledgeBaseSubtestNameTemplateConstant = "%d_%s"
)

type memoryRepository struct {
	questions map[string]knowledgebase.Question
	order     []string
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{questions: map[string]knowledgebase.Question{}}
}

func (repository *memoryRepository) CreateQuestion(_ context.Context, question knowledgebase.Question) error {
	repository.questions[question.ID] = question
	repository.order = append(repository.order, question.ID)
	return nil
}

func (repository *memoryRepository) UpdateQuestion(_ context.Context, question knowledgebase.Question) error {
	if _, exists := repository.questions[question.ID]; !exists {
		return faults.NotFoundError{Resource: "question", Identifier: question.ID}
	}
	repository.questions[question.ID] = question
	return nil
}

func (repository *memoryRepository) GetQuestion(_ context.Context, questionID string) (knowledgebase.Question, error) {
	question, exists := repository.questions[questionID]
	if !exists {
		return knowledgebase.Question{}, faults.NotFoundError{Resource: "question", Identifier: questionID}
	}
	return question, nil
}

func (repository *memoryRepository) FindQuestionByExternalID(_ context.Context, externalID string) (knowledgebase.Question, error) {
	for _, question := range repository.questions {
		if question.ExternalID == externalID {
			return question, nil
		}
	}
	return knowledgebase.Question{}, faults.NotFoundError{Resource: "question", Identifier: externalID}
}

func (repository *memoryRepository) ListQuestions(_ context.Context, filter knowledgebase.QuestionFilter) ([]knowledgebase.Question, error) {
	var matches []knowledgebase.Question
	for _, questionID := range repository.order {
		question, exists := repository.questions[questionID]
		if !exists {
			continue
		}
		if len(filter.Status) > 0 && question.Status != filter.Status {
			continue
		}
		if len(filter.Category) > 0 && question.Category != filter.Category {
			continue
		}
		if len(filter.Query) > 0 {
			haystack := strings.ToLower(question.Title + " " + question.Body + " " + question.Answer)
			if !strings.Contains(haystack, strings.ToLower(filter.Query)) {
				continue
			}
		}
		matches = append(matches, question)
	}
	return matches, nil
}

func (repository *memoryRepository) DeleteQuestion(_ context.Context, questionID string) error {
	if _, exists := repository.questions[questionID]; !exists {
		return faults.NotFoundError{Resource: "question", Identifier: questionID}
	}
	delete(repository.questions, questionID)
	return nil
}

func newService(testInstance *testing.T) *knowledgebase.Service {
	testInstance.Helper()
	service, serviceError := knowledgebase.NewService(zap.NewNop(), newMemoryRepository())
	require.NoError(testInstance, serviceError)
	return service
}

func TestSubmitValidation(testInstance *testing.T) {
	testCases := []struct {
		name          string
		input         knowledgebase.QuestionInput
		expectedField string
	}{
		{name: "missing author", input: knowledgebase.QuestionInput{Title: "Hello"}, expectedField: "authorName"},
		{name: "bad email", input: knowledgebase.QuestionInput{AuthorName: "Ann", AuthorEmail: "not-an-email", Title: "Hello"}, expectedField: "authorEmail"},
		{name: "missing title", input: knowledgebase.QuestionInput{AuthorName: "Ann", Title: "  "}, expectedField: "title"},
		{name: "valid without email", input: knowledgebase.QuestionInput{AuthorName: "Ann", Title: "Hello"}},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(knowledgeBaseSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(subTest *testing.T) {
			question, submitError := newService(subTest).Submit(context.Background(), testCase.input)
			if len(testCase.expectedField) == 0 {
				require.NoError(subTest, submitError)
				require.Equal(subTest, knowledgebase.QuestionStatusOpen, question.Status)
				require.Equal(subTest, knowledgebase.QuestionSourcePortal, question.Source)
				return
			}
			var inputError faults.InvalidInputError
			require.ErrorAs(subTest, submitError, &inputError)
			require.Equal(subTest, testCase.expectedField, inputError.FieldName)
		})
	}
}

func TestAnswerPublishFlow(testInstance *testing.T) {
	service := newService(testInstance)
	executionContext := context.Background()

	question, submitError := service.Submit(executionContext, knowledgebase.QuestionInput{AuthorName: "Ann", AuthorEmail: "Ann@Example.org", Title: "Do you offer hosting?", Category: "hosting"})
	require.NoError(testInstance, submitError)
	require.Equal(testInstance, "ann@example.org", question.AuthorEmail)

	openCount, countError := service.CountOpen(executionContext)
	require.NoError(testInstance, countError)
	require.Equal(testInstance, 1, openCount)

	_, publishEarlyError := service.Publish(executionContext, question.ID)
	require.True(testInstance, faults.IsPreconditionFailed(publishEarlyError))

	_, emptyAnswerError := service.Answer(executionContext, question.ID, " ")
	require.True(testInstance, faults.IsInvalidInput(emptyAnswerError))

	answered, answerError := service.Answer(executionContext, question.ID, "Yes, on Netlify.")
	require.NoError(testInstance, answerError)
	require.Equal(testInstance, knowledgebase.QuestionStatusAnswered, answered.Status)

	hidden, hiddenError := service.PublicKnowledgeBase(executionContext, "", "")
	require.NoError(testInstance, hiddenError)
	require.Empty(testInstance, hidden)

	published, publishError := service.Publish(executionContext, question.ID)
	require.NoError(testInstance, publishError)
	require.Equal(testInstance, knowledgebase.QuestionStatusPublished, published.Status)

	visible, visibleError := service.PublicKnowledgeBase(executionContext, "NETLIFY", "hosting")
	require.NoError(testInstance, visibleError)
	require.Len(testInstance, visible, 1)

	otherCategory, otherError := service.PublicKnowledgeBase(executionContext, "", "billing")
	require.NoError(testInstance, otherError)
	require.Empty(testInstance, otherCategory)

	require.NoError(testInstance, service.Delete(executionContext, question.ID))
	_, missingError := service.Answer(executionContext, question.ID, "again")
	require.True(testInstance, faults.IsNotFound(missingError))
}

func TestImportUpsertsByExternalID(testInstance *testing.T) {
	service := newService(testInstance)
	executionContext := context.Background()

	_, _, missingIDError := service.Import(executionContext, knowledgebase.ExternalQuestion{Title: "No id"})
	require.True(testInstance, faults.IsInvalidInput(missingIDError))

	created, wasCreated, createError := service.Import(executionContext, knowledgebase.ExternalQuestion{ExternalID: "page-1", Title: "Pricing", Answer: "Hourly."})
	require.NoError(testInstance, createError)
	require.True(testInstance, wasCreated)
	require.Equal(testInstance, knowledgebase.QuestionSourceNotion, created.Source)
	require.Equal(testInstance, knowledgebase.QuestionStatusPublished, created.Status)

	updated, wasCreatedAgain, updateError := service.Import(executionContext, knowledgebase.ExternalQuestion{ExternalID: "page-1", Title: "Pricing", Answer: "Fixed bids."})
	require.NoError(testInstance, updateError)
	require.False(testInstance, wasCreatedAgain)
	require.Equal(testInstance, created.ID, updated.ID)
	require.Equal(testInstance, "Fixed bids.", updated.Answer)

	seeded, _, seedError := service.Import(executionContext, knowledgebase.ExternalQuestion{ExternalID: "seed:faq", Title: "FAQ", Source: knowledgebase.QuestionSourceSeed})
	require.NoError(testInstance, seedError)
	require.Equal(testInstance, knowledgebase.QuestionSourceSeed, seeded.Source)
}
