package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/apiclient"
	"github.com/temirov/billdesk/internal/faults"
	"github.com/temirov/billdesk/internal/gitrepo"
)

const (
	// DefaultBaseURL is the public GitHub REST endpoint.
	DefaultBaseURL = "https://api.github.com"

	acceptHeaderNameConstant             = "Accept"
	acceptHeaderValueConstant            = "application/vnd.github+json"
	apiVersionHeaderNameConstant         = "X-GitHub-Api-Version"
	apiVersionHeaderValueConstant        = "2022-11-28"
	authenticatedUserPathConstant        = "/user"
	userRepositoriesPathTemplateConstant = "/user/repos?per_page=%d&page=%d&sort=updated&affiliation=owner,collaborator,organization_member"
	repositoryPathTemplateConstant       = "/repos/%s/%s"
	repositoriesPageSizeConstant         = 100
	repositoriesMaximumPagesConstant     = 10
	authenticatedUserOperationConstant   = "github.user"
	listRepositoriesOperationConstant    = "github.list_repositories"
	getRepositoryOperationConstant       = "github.get_repository"
	repositoryURLFieldNameConstant       = "repositoryUrl"
	repositoryNotFoundMessageConstant    = "repository not found or not accessible"
	repositoryResourceNameConstant       = "repository"
)

// User is the authenticated GitHub account.
type User struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
}

// Repository summarizes a GitHub repository.
type Repository struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	Description   string    `json:"description"`
	HTMLURL       string    `json:"html_url"`
	CloneURL      string    `json:"clone_url"`
	Private       bool      `json:"private"`
	DefaultBranch string    `json:"default_branch"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Client calls the GitHub REST API.
type Client struct {
	api *apiclient.Client
}

// NewClient constructs a Client. baseURL defaults to DefaultBaseURL.
func NewClient(logger *zap.Logger, baseURL string, token apiclient.TokenFunc, httpClient *http.Client) (*Client, error) {
	if len(baseURL) == 0 {
		baseURL = DefaultBaseURL
	}
	api, clientError := apiclient.NewClient(logger, apiclient.Configuration{
		BaseURL: baseURL,
		Token:   token,
		Headers: map[string]string{
			acceptHeaderNameConstant:     acceptHeaderValueConstant,
			apiVersionHeaderNameConstant: apiVersionHeaderValueConstant,
		},
		HTTPClient: httpClient,
	})
	if clientError != nil {
		return nil, clientError
	}
	return &Client{api: api}, nil
}

// AuthenticatedUser returns the account behind the token.
func (client *Client) AuthenticatedUser(executionContext context.Context) (User, error) {
	var user User
	if requestError := client.api.Do(executionContext, authenticatedUserOperationConstant, http.MethodGet, authenticatedUserPathConstant, nil, &user); requestError != nil {
		return User{}, requestError
	}
	return user, nil
}

// ListRepositories returns repositories visible to the authenticated user, most recently updated first.
func (client *Client) ListRepositories(executionContext context.Context) ([]Repository, error) {
	repositories := make([]Repository, 0, repositoriesPageSizeConstant)
	for page := 1; page <= repositoriesMaximumPagesConstant; page++ {
		var pageRepositories []Repository
		path := fmt.Sprintf(userRepositoriesPathTemplateConstant, repositoriesPageSizeConstant, page)
		if requestError := client.api.Do(executionContext, listRepositoriesOperationConstant, http.MethodGet, path, nil, &pageRepositories); requestError != nil {
			return nil, requestError
		}
		repositories = append(repositories, pageRepositories...)
		if len(pageRepositories) < repositoriesPageSizeConstant {
			break
		}
	}
	return repositories, nil
}

// GetRepository fetches one repository.
func (client *Client) GetRepository(executionContext context.Context, owner string, name string) (Repository, error) {
	var repository Repository
	path := fmt.Sprintf(repositoryPathTemplateConstant, url.PathEscape(owner), url.PathEscape(name))
	if requestError := client.api.Do(executionContext, getRepositoryOperationConstant, http.MethodGet, path, nil, &repository); requestError != nil {
		if apiclient.IsStatus(requestError, http.StatusNotFound) {
			return Repository{}, faults.NotFoundError{Resource: repositoryResourceNameConstant, Identifier: gitrepo.Repository{Owner: owner, Name: name}.FullName()}
		}
		return Repository{}, requestError
	}
	return repository, nil
}

// ValidateRepositoryURL parses repositoryURL and confirms the repository is reachable with the configured token.
func (client *Client) ValidateRepositoryURL(executionContext context.Context, repositoryURL string) (Repository, error) {
	reference, parseError := gitrepo.ParseGitHubURL(repositoryURL)
	if parseError != nil {
		return Repository{}, faults.InvalidInputError{FieldName: repositoryURLFieldNameConstant, Message: parseError.Error()}
	}
	repository, lookupError := client.GetRepository(executionContext, reference.Owner, reference.Name)
	if lookupError != nil {
		if faults.IsNotFound(lookupError) {
			return Repository{}, faults.InvalidInputError{FieldName: repositoryURLFieldNameConstant, Message: repositoryNotFoundMessageConstant}
		}
		return Repository{}, lookupError
	}
	return repository, nil
}
