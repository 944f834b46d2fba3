package vercel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/apiclient"
	"github.com/temirov/billdesk/internal/deploy"
	"github.com/temirov/billdesk/internal/faults"
	"github.com/temirov/billdesk/internal/gitrepo"
)

const (
	// DefaultBaseURL is the public Vercel API endpoint.
	DefaultBaseURL = "https://api.vercel.com"

	createProjectPathConstant           = "/v10/projects"
	projectPathTemplateConstant         = "/v9/projects/%s"
	projectLinkPathTemplateConstant     = "/v9/projects/%s/link"
	createDeploymentPathConstant        = "/v13/deployments"
	listDeploymentsPathTemplateConstant = "/v6/deployments?projectId=%s&limit=1"
	createProjectOperationConstant      = "vercel.create_project"
	linkProjectOperationConstant        = "vercel.link_project"
	getProjectOperationConstant         = "vercel.get_project"
	createDeploymentOperationConstant   = "vercel.create_deployment"
	listDeploymentsOperationConstant    = "vercel.list_deployments"
	deleteProjectOperationConstant      = "vercel.delete_project"
	triggerDeployOperationNameConstant  = "vercel.trigger_deploy"
	gitHubLinkTypeConstant              = "github"
	productionTargetConstant            = "production"
	defaultBranchConstant               = "main"
	projectURLTemplateConstant          = "https://%s.vercel.app"
	deploymentURLTemplateConstant       = "https://%s"
	alreadyExistsFragmentConstant       = "already exists"
	notLinkedMessageConstant            = "project has no linked repository"
	projectNameFieldConstant            = "name"
	linkTypeFieldConstant               = "type"
	linkRepoFieldConstant               = "repo"
)

type projectLink struct {
	Type             string `json:"type"`
	Repo             string `json:"repo"`
	Org              string `json:"org"`
	RepoID           int64  `json:"repoId"`
	ProductionBranch string `json:"productionBranch"`
}

type project struct {
	ID   string       `json:"id"`
	Name string       `json:"name"`
	Link *projectLink `json:"link"`
}

func (vercelProject project) target() deploy.Target {
	return deploy.Target{ID: vercelProject.ID, Name: vercelProject.Name, URL: fmt.Sprintf(projectURLTemplateConstant, vercelProject.Name)}
}

type gitSource struct {
	Type   string `json:"type"`
	RepoID int64  `json:"repoId"`
	Ref    string `json:"ref"`
}

type createDeploymentRequest struct {
	Name      string    `json:"name"`
	Project   string    `json:"project"`
	Target    string    `json:"target"`
	GitSource gitSource `json:"gitSource"`
}

type deployment struct {
	ID         string `json:"id"`
	UID        string `json:"uid"`
	URL        string `json:"url"`
	ReadyState string `json:"readyState"`
	State      string `json:"state"`
	Created    int64  `json:"created"`
	CreatedAt  int64  `json:"createdAt"`
}

func (vercelDeployment deployment) normalized() deploy.Deployment {
	identifier := vercelDeployment.ID
	if len(identifier) == 0 {
		identifier = vercelDeployment.UID
	}
	state := vercelDeployment.ReadyState
	if len(state) == 0 {
		state = vercelDeployment.State
	}
	createdMilliseconds := vercelDeployment.CreatedAt
	if createdMilliseconds == 0 {
		createdMilliseconds = vercelDeployment.Created
	}
	normalized := deploy.Deployment{ID: identifier, State: NormalizeState(state)}
	if len(vercelDeployment.URL) > 0 {
		normalized.URL = fmt.Sprintf(deploymentURLTemplateConstant, vercelDeployment.URL)
	}
	if createdMilliseconds > 0 {
		normalized.CreatedAt = time.UnixMilli(createdMilliseconds).UTC()
	}
	return normalized
}

// Provider manages Vercel projects.
type Provider struct {
	api *apiclient.Client
}

// New constructs a Provider against DefaultBaseURL.
func New(logger *zap.Logger, token string) (deploy.Provider, error) {
	provider, providerError := NewWithBaseURL(logger, token, DefaultBaseURL, nil)
	if providerError != nil {
		return nil, providerError
	}
	return provider, nil
}

// NewWithBaseURL constructs a Provider against baseURL.
func NewWithBaseURL(logger *zap.Logger, token string, baseURL string, httpClient *http.Client) (*Provider, error) {
	api, clientError := apiclient.NewClient(logger, apiclient.Configuration{BaseURL: baseURL, Token: apiclient.StaticToken(token), HTTPClient: httpClient})
	if clientError != nil {
		return nil, clientError
	}
	return &Provider{api: api}, nil
}

// Name identifies the provider.
func (provider *Provider) Name() string {
	return deploy.ProviderVercel
}

// CreateProject creates a project named name.
func (provider *Provider) CreateProject(executionContext context.Context, name string) (deploy.Target, error) {
	var createdProject project
	requestError := provider.api.Do(executionContext, createProjectOperationConstant, http.MethodPost, createProjectPathConstant, map[string]string{projectNameFieldConstant: name}, &createdProject)
	if requestError != nil {
		if isNameCollision(requestError) {
			return deploy.Target{}, deploy.ErrNameTaken
		}
		return deploy.Target{}, deploy.WrapProviderError(provider.Name(), requestError)
	}
	return createdProject.target(), nil
}

// LinkRepository connects the project to a GitHub repository.
func (provider *Provider) LinkRepository(executionContext context.Context, targetID string, repository gitrepo.Repository) (deploy.Target, error) {
	payload := map[string]string{linkTypeFieldConstant: gitHubLinkTypeConstant, linkRepoFieldConstant: repository.FullName()}
	var linkedProject project
	path := fmt.Sprintf(projectLinkPathTemplateConstant, url.PathEscape(targetID))
	if requestError := provider.api.Do(executionContext, linkProjectOperationConstant, http.MethodPost, path, payload, &linkedProject); requestError != nil {
		return deploy.Target{}, deploy.WrapProviderError(provider.Name(), requestError)
	}
	return linkedProject.target(), nil
}

// TriggerDeploy creates a production deployment from the linked repository's production branch.
func (provider *Provider) TriggerDeploy(executionContext context.Context, targetID string) (deploy.Deployment, error) {
	currentProject, projectError := provider.project(executionContext, targetID)
	if projectError != nil {
		return deploy.Deployment{}, projectError
	}
	if currentProject.Link == nil || len(currentProject.Link.Repo) == 0 {
		return deploy.Deployment{}, faults.PreconditionFailedError{Operation: triggerDeployOperationNameConstant, Message: notLinkedMessageConstant}
	}
	branch := currentProject.Link.ProductionBranch
	if len(branch) == 0 {
		branch = defaultBranchConstant
	}
	request := createDeploymentRequest{
		Name:      currentProject.Name,
		Project:   currentProject.ID,
		Target:    productionTargetConstant,
		GitSource: gitSource{Type: gitHubLinkTypeConstant, RepoID: currentProject.Link.RepoID, Ref: branch},
	}
	var createdDeployment deployment
	if requestError := provider.api.Do(executionContext, createDeploymentOperationConstant, http.MethodPost, createDeploymentPathConstant, request, &createdDeployment); requestError != nil {
		return deploy.Deployment{}, deploy.WrapProviderError(provider.Name(), requestError)
	}
	return createdDeployment.normalized(), nil
}

// Status reports the project and its most recent deployment.
func (provider *Provider) Status(executionContext context.Context, targetID string) (deploy.Status, error) {
	currentProject, projectError := provider.project(executionContext, targetID)
	if projectError != nil {
		return deploy.Status{}, projectError
	}
	var response struct {
		Deployments []deployment `json:"deployments"`
	}
	path := fmt.Sprintf(listDeploymentsPathTemplateConstant, url.QueryEscape(currentProject.ID))
	if requestError := provider.api.Do(executionContext, listDeploymentsOperationConstant, http.MethodGet, path, nil, &response); requestError != nil {
		return deploy.Status{}, deploy.WrapProviderError(provider.Name(), requestError)
	}
	status := deploy.Status{State: deploy.StateUnknown, URL: currentProject.target().URL}
	if len(response.Deployments) > 0 {
		latest := response.Deployments[0].normalized()
		status.LatestDeployment = &latest
		status.State = latest.State
	}
	return status, nil
}

// DeleteProject removes the project.
func (provider *Provider) DeleteProject(executionContext context.Context, targetID string) error {
	requestError := provider.api.Do(executionContext, deleteProjectOperationConstant, http.MethodDelete, projectPath(targetID), nil, nil)
	return deploy.WrapProviderError(provider.Name(), requestError)
}

// NormalizeState maps Vercel readyState values onto deploy.State.
func NormalizeState(state string) deploy.State {
	switch strings.ToUpper(state) {
	case "QUEUED", "INITIALIZING":
		return deploy.StateQueued
	case "BUILDING":
		return deploy.StateBuilding
	case "READY":
		return deploy.StateReady
	case "ERROR":
		return deploy.StateError
	case "CANCELED":
		return deploy.StateCanceled
	default:
		return deploy.StateUnknown
	}
}

func (provider *Provider) project(executionContext context.Context, targetID string) (project, error) {
	var currentProject project
	if requestError := provider.api.Do(executionContext, getProjectOperationConstant, http.MethodGet, projectPath(targetID), nil, &currentProject); requestError != nil {
		return project{}, deploy.WrapProviderError(provider.Name(), requestError)
	}
	return currentProject, nil
}

func projectPath(targetID string) string {
	return fmt.Sprintf(projectPathTemplateConstant, url.PathEscape(targetID))
}

func isNameCollision(requestError error) bool {
	return apiclient.IsStatus(requestError, http.StatusConflict) || strings.Contains(strings.ToLower(requestError.Error()), alreadyExistsFragmentConstant)
}
