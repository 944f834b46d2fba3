// Package notion reads a Notion database and imports its pages as published
// knowledge base questions.
package notion
