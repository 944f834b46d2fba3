package netlify

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
	// DefaultBaseURL is the public Netlify API endpoint.
	DefaultBaseURL = "https://api.netlify.com/api/v1"

	sitesPathConstant                  = "/sites"
	sitePathTemplateConstant           = "/sites/%s"
	siteBuildsPathTemplateConstant     = "/sites/%s/builds"
	siteDeploysPathTemplateConstant    = "/sites/%s/deploys?per_page=1"
	createSiteOperationConstant        = "netlify.create_site"
	linkSiteOperationConstant          = "netlify.link_site"
	getSiteOperationConstant           = "netlify.get_site"
	triggerBuildOperationConstant      = "netlify.trigger_build"
	listDeploysOperationConstant       = "netlify.list_deploys"
	deleteSiteOperationConstant        = "netlify.delete_site"
	gitHubProviderConstant             = "github"
	defaultBranchConstant              = "main"
	uniqueSubdomainFragmentConstant    = "must be unique"
	alreadyTakenFragmentConstant       = "already taken"
	notLinkedMessageConstant           = "site has no linked repository"
	triggerDeployOperationNameConstant = "netlify.trigger_deploy"
	siteNameFieldConstant              = "name"
	siteRepositoryFieldConstant        = "repo"
)

type siteRepository struct {
	Provider string `json:"provider,omitempty"`
	Repo     string `json:"repo,omitempty"`
	RepoPath string `json:"repo_path,omitempty"`
	RepoURL  string `json:"repo_url,omitempty"`
	Branch   string `json:"repo_branch,omitempty"`
}

type site struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	URL           string          `json:"url"`
	SSLURL        string          `json:"ssl_url"`
	State         string          `json:"state"`
	BuildSettings *siteRepository `json:"build_settings"`
}

func (netlifySite site) publicURL() string {
	if len(netlifySite.SSLURL) > 0 {
		return netlifySite.SSLURL
	}
	return netlifySite.URL
}

func (netlifySite site) linked() bool {
	settings := netlifySite.BuildSettings
	return settings != nil && (len(settings.RepoURL) > 0 || len(settings.RepoPath) > 0 || len(settings.Repo) > 0)
}

type build struct {
	ID       string `json:"id"`
	DeployID string `json:"deploy_id"`
	Done     bool   `json:"done"`
}

type siteDeploy struct {
	ID           string    `json:"id"`
	State        string    `json:"state"`
	SSLURL       string    `json:"ssl_url"`
	DeploySSLURL string    `json:"deploy_ssl_url"`
	CreatedAt    time.Time `json:"created_at"`
}

// Provider manages Netlify sites.
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
	return deploy.ProviderNetlify
}

// CreateProject creates a site named name.
func (provider *Provider) CreateProject(executionContext context.Context, name string) (deploy.Target, error) {
	var createdSite site
	requestError := provider.api.Do(executionContext, createSiteOperationConstant, http.MethodPost, sitesPathConstant, map[string]string{siteNameFieldConstant: name}, &createdSite)
	if requestError != nil {
		if isNameCollision(requestError) {
			return deploy.Target{}, deploy.ErrNameTaken
		}
		return deploy.Target{}, deploy.WrapProviderError(provider.Name(), requestError)
	}
	return deploy.Target{ID: createdSite.ID, Name: createdSite.Name, URL: createdSite.publicURL()}, nil
}

// LinkRepository points the site's continuous deployment at repository.
func (provider *Provider) LinkRepository(executionContext context.Context, targetID string, repository gitrepo.Repository) (deploy.Target, error) {
	payload := map[string]any{
		siteRepositoryFieldConstant: siteRepository{
			Provider: gitHubProviderConstant,
			Repo:     repository.FullName(),
			RepoPath: repository.FullName(),
			RepoURL:  repository.HTTPSURL(),
			Branch:   defaultBranchConstant,
		},
	}
	var linkedSite site
	if requestError := provider.api.Do(executionContext, linkSiteOperationConstant, http.MethodPatch, sitePath(targetID), payload, &linkedSite); requestError != nil {
		return deploy.Target{}, deploy.WrapProviderError(provider.Name(), requestError)
	}
	return deploy.Target{ID: linkedSite.ID, Name: linkedSite.Name, URL: linkedSite.publicURL()}, nil
}

// TriggerDeploy starts a build from the linked repository.
func (provider *Provider) TriggerDeploy(executionContext context.Context, targetID string) (deploy.Deployment, error) {
	currentSite, siteError := provider.site(executionContext, targetID)
	if siteError != nil {
		return deploy.Deployment{}, siteError
	}
	if !currentSite.linked() {
		return deploy.Deployment{}, faults.PreconditionFailedError{Operation: triggerDeployOperationNameConstant, Message: notLinkedMessageConstant}
	}
	var startedBuild build
	path := fmt.Sprintf(siteBuildsPathTemplateConstant, url.PathEscape(targetID))
	if requestError := provider.api.Do(executionContext, triggerBuildOperationConstant, http.MethodPost, path, nil, &startedBuild); requestError != nil {
		return deploy.Deployment{}, deploy.WrapProviderError(provider.Name(), requestError)
	}
	deploymentID := startedBuild.DeployID
	if len(deploymentID) == 0 {
		deploymentID = startedBuild.ID
	}
	return deploy.Deployment{ID: deploymentID, State: deploy.StateQueued, URL: currentSite.publicURL()}, nil
}

// Status reports the site and its most recent deploy.
func (provider *Provider) Status(executionContext context.Context, targetID string) (deploy.Status, error) {
	currentSite, siteError := provider.site(executionContext, targetID)
	if siteError != nil {
		return deploy.Status{}, siteError
	}
	var deploys []siteDeploy
	path := fmt.Sprintf(siteDeploysPathTemplateConstant, url.PathEscape(targetID))
	if requestError := provider.api.Do(executionContext, listDeploysOperationConstant, http.MethodGet, path, nil, &deploys); requestError != nil {
		return deploy.Status{}, deploy.WrapProviderError(provider.Name(), requestError)
	}
	status := deploy.Status{State: deploy.StateUnknown, URL: currentSite.publicURL()}
	if len(deploys) > 0 {
		latest := deploys[0]
		deploymentURL := latest.DeploySSLURL
		if len(deploymentURL) == 0 {
			deploymentURL = latest.SSLURL
		}
		status.LatestDeployment = &deploy.Deployment{ID: latest.ID, State: NormalizeState(latest.State), URL: deploymentURL, CreatedAt: latest.CreatedAt}
		status.State = status.LatestDeployment.State
	}
	return status, nil
}

// DeleteProject removes the site.
func (provider *Provider) DeleteProject(executionContext context.Context, targetID string) error {
	requestError := provider.api.Do(executionContext, deleteSiteOperationConstant, http.MethodDelete, sitePath(targetID), nil, nil)
	return deploy.WrapProviderError(provider.Name(), requestError)
}

// NormalizeState maps Netlify deploy states onto deploy.State.
func NormalizeState(state string) deploy.State {
	switch strings.ToLower(state) {
	case "new", "pending_review", "accepted", "enqueued":
		return deploy.StateQueued
	case "building", "uploading", "uploaded", "preparing", "prepared", "processing", "processed", "retrying":
		return deploy.StateBuilding
	case "ready", "current":
		return deploy.StateReady
	case "error", "rejected", "failed":
		return deploy.StateError
	case "canceled", "cancelled":
		return deploy.StateCanceled
	default:
		return deploy.StateUnknown
	}
}

func (provider *Provider) site(executionContext context.Context, targetID string) (site, error) {
	var currentSite site
	if requestError := provider.api.Do(executionContext, getSiteOperationConstant, http.MethodGet, sitePath(targetID), nil, &currentSite); requestError != nil {
		return site{}, deploy.WrapProviderError(provider.Name(), requestError)
	}
	return currentSite, nil
}

func sitePath(targetID string) string {
	return fmt.Sprintf(sitePathTemplateConstant, url.PathEscape(targetID))
}

func isNameCollision(requestError error) bool {
	if !apiclient.IsStatus(requestError, http.StatusUnprocessableEntity) {
		return false
	}
	message := strings.ToLower(requestError.Error())
	return strings.Contains(message, uniqueSubdomainFragmentConstant) || strings.Contains(message, alreadyTakenFragmentConstant)
}
