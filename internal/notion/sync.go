package notion

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/faults"
	"github.com/temirov/billdesk/internal/knowledgebase"
)

const (
	databaseIDRequiredMessageConstant = "notion database id is required"
	pageSkippedMessageConstant        = "notion page skipped"
	syncCompletedMessageConstant      = "notion sync completed"
	logFieldPageIDConstant            = "page_id"
	logFieldCreatedConstant           = "created"
	logFieldUpdatedConstant           = "updated"
	logFieldSkippedConstant           = "skipped"
	answerPropertyNameConstant        = "Answer"
	categoryPropertyNameConstant      = "Category"
	bodyPropertyNameConstant          = "Question"
	detailsPropertyNameConstant       = "Details"
)

// ErrDatabaseIDMissing indicates sync was requested without a database.
var ErrDatabaseIDMissing = errors.New(databaseIDRequiredMessageConstant)

// PageSource lists the pages of a Notion database.
type PageSource interface {
	QueryDatabase(executionContext context.Context, databaseID string) ([]Page, error)
}

// QuestionImporter upserts an externally sourced question.
type QuestionImporter interface {
	Import(executionContext context.Context, external knowledgebase.ExternalQuestion) (knowledgebase.Question, bool, error)
}

// SyncResult counts the outcome of a sync.
type SyncResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// Syncer imports a Notion database into the knowledge base.
type Syncer struct {
	logger     *zap.Logger
	pages      PageSource
	importer   QuestionImporter
	databaseID string
}

// NewSyncer constructs a Syncer for databaseID.
func NewSyncer(logger *zap.Logger, pages PageSource, importer QuestionImporter, databaseID string) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{logger: logger, pages: pages, importer: importer, databaseID: strings.TrimSpace(databaseID)}
}

// Sync imports every non-archived page. Pages failing validation, such as untitled ones, are skipped.
func (syncer *Syncer) Sync(executionContext context.Context) (SyncResult, error) {
	if len(syncer.databaseID) == 0 {
		return SyncResult{}, ErrDatabaseIDMissing
	}
	pages, queryError := syncer.pages.QueryDatabase(executionContext, syncer.databaseID)
	if queryError != nil {
		return SyncResult{}, queryError
	}

	var result SyncResult
	for _, page := range pages {
		if page.Archived {
			result.Skipped++
			continue
		}
		external := knowledgebase.ExternalQuestion{
			ExternalID: page.ID,
			Title:      page.Title(),
			Body:       page.PropertyText(bodyPropertyNameConstant, detailsPropertyNameConstant),
			Answer:     page.PropertyText(answerPropertyNameConstant),
			Category:   page.PropertyText(categoryPropertyNameConstant),
		}
		_, created, importError := syncer.importer.Import(executionContext, external)
		if importError != nil {
			if !faults.IsInvalidInput(importError) {
				return result, importError
			}
			syncer.logger.Info(pageSkippedMessageConstant, zap.String(logFieldPageIDConstant, page.ID), zap.Error(importError))
			result.Skipped++
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}
	syncer.logger.Info(syncCompletedMessageConstant, zap.Int(logFieldCreatedConstant, result.Created), zap.Int(logFieldUpdatedConstant, result.Updated), zap.Int(logFieldSkippedConstant, result.Skipped))
	return result, nil
}
