package notion

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/apiclient"
)

const (
	// DefaultBaseURL is the public Notion API endpoint.
	DefaultBaseURL = "https://api.notion.com"

	versionHeaderNameConstant         = "Notion-Version"
	versionHeaderValueConstant        = "2022-06-28"
	queryDatabasePathTemplateConstant = "/v1/databases/%s/query"
	queryDatabaseOperationConstant    = "notion.query_database"
	queryPageSizeConstant             = 100
	propertyTypeTitleConstant         = "title"
	propertyTypeRichTextConstant      = "rich_text"
	propertyTypeSelectConstant        = "select"
	propertyTypeMultiSelectConstant   = "multi_select"
)

// RichText is one run of Notion text.
type RichText struct {
	PlainText string `json:"plain_text"`
}

// SelectOption is a select or multi-select value.
type SelectOption struct {
	Name string `json:"name"`
}

// Property is a database page property. Only the text-bearing kinds are decoded.
type Property struct {
	Type        string         `json:"type"`
	Title       []RichText     `json:"title"`
	RichText    []RichText     `json:"rich_text"`
	Select      *SelectOption  `json:"select"`
	MultiSelect []SelectOption `json:"multi_select"`
}

// Text flattens the property into plain text.
func (property Property) Text() string {
	switch property.Type {
	case propertyTypeTitleConstant:
		return joinRichText(property.Title)
	case propertyTypeRichTextConstant:
		return joinRichText(property.RichText)
	case propertyTypeSelectConstant:
		if property.Select != nil {
			return property.Select.Name
		}
	case propertyTypeMultiSelectConstant:
		names := make([]string, 0, len(property.MultiSelect))
		for _, option := range property.MultiSelect {
			names = append(names, option.Name)
		}
		return strings.Join(names, ", ")
	}
	return ""
}

// Page is a database row.
type Page struct {
	ID         string              `json:"id"`
	Archived   bool                `json:"archived"`
	Properties map[string]Property `json:"properties"`
}

// Title returns the text of the page's title property.
func (page Page) Title() string {
	for _, property := range page.Properties {
		if property.Type == propertyTypeTitleConstant {
			return strings.TrimSpace(property.Text())
		}
	}
	return ""
}

// PropertyText returns the text of the first property whose name matches one of names, ignoring case.
func (page Page) PropertyText(names ...string) string {
	for _, name := range names {
		for propertyName, property := range page.Properties {
			if strings.EqualFold(propertyName, name) {
				return strings.TrimSpace(property.Text())
			}
		}
	}
	return ""
}

type queryRequest struct {
	StartCursor string `json:"start_cursor,omitempty"`
	PageSize    int    `json:"page_size"`
}

type queryResponse struct {
	Results    []Page `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// Client calls the Notion API.
type Client struct {
	api *apiclient.Client
}

// NewClient constructs a Client. baseURL defaults to DefaultBaseURL.
func NewClient(logger *zap.Logger, baseURL string, token apiclient.TokenFunc, httpClient *http.Client) (*Client, error) {
	if len(baseURL) == 0 {
		baseURL = DefaultBaseURL
	}
	api, clientError := apiclient.NewClient(logger, apiclient.Configuration{
		BaseURL:    baseURL,
		Token:      token,
		Headers:    map[string]string{versionHeaderNameConstant: versionHeaderValueConstant},
		HTTPClient: httpClient,
	})
	if clientError != nil {
		return nil, clientError
	}
	return &Client{api: api}, nil
}

// QueryDatabase returns every page of the database, following start_cursor pagination.
func (client *Client) QueryDatabase(executionContext context.Context, databaseID string) ([]Page, error) {
	path := fmt.Sprintf(queryDatabasePathTemplateConstant, url.PathEscape(strings.TrimSpace(databaseID)))
	pages := make([]Page, 0)
	request := queryRequest{PageSize: queryPageSizeConstant}
	for {
		var response queryResponse
		if requestError := client.api.Do(executionContext, queryDatabaseOperationConstant, http.MethodPost, path, request, &response); requestError != nil {
			return nil, requestError
		}
		pages = append(pages, response.Results...)
		if !response.HasMore || len(response.NextCursor) == 0 {
			return pages, nil
		}
		request.StartCursor = response.NextCursor
	}
}

func joinRichText(runs []RichText) string {
	var builder strings.Builder
	for _, run := range runs {
		builder.WriteString(run.PlainText)
	}
	return builder.String()
}
