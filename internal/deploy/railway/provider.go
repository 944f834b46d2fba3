package railway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/apiclient"
	"github.com/temirov/billdesk/internal/deploy"
	"github.com/temirov/billdesk/internal/faults"
	"github.com/temirov/billdesk/internal/gitrepo"
)

const (
	// DefaultEndpoint is the public Railway GraphQL endpoint.
	DefaultEndpoint = "https://backboard.railway.app/graphql/v2"

	graphQLPathConstant                = ""
	createProjectOperationConstant     = "railway.project_create"
	createServiceOperationConstant     = "railway.service_create"
	getProjectOperationConstant        = "railway.project"
	deployServiceOperationConstant     = "railway.service_instance_deploy"
	listDeploymentsOperationConstant   = "railway.deployments"
	deleteProjectOperationConstant     = "railway.project_delete"
	triggerDeployOperationNameConstant = "railway.trigger_deploy"
	projectURLTemplateConstant         = "https://railway.app/project/%s"
	deploymentURLTemplateConstant      = "https://%s"
	alreadyExistsFragmentConstant      = "already exists"
	alreadyTakenFragmentConstant       = "taken"
	notLinkedMessageConstant           = "project has no service linked to a repository"
	noEnvironmentMessageConstant       = "project has no environment"
	graphQLErrorSeparatorConstant      = "; "

	createProjectMutationConstant = `mutation projectCreate($input: ProjectCreateInput!) {
  projectCreate(input: $input) { id name }
}`
	createServiceMutationConstant = `mutation serviceCreate($input: ServiceCreateInput!) {
  serviceCreate(input: $input) { id name }
}`
	projectQueryConstant = `query project($id: String!) {
  project(id: $id) {
    id
    name
    services { edges { node { id name } } }
    environments { edges { node { id name } } }
  }
}`
	deployServiceMutationConstant = `mutation serviceInstanceDeployV2($serviceId: String!, $environmentId: String!) {
  serviceInstanceDeployV2(serviceId: $serviceId, environmentId: $environmentId)
}`
	deploymentsQueryConstant = `query deployments($projectId: String!) {
  deployments(first: 1, input: { projectId: $projectId }) {
    edges { node { id status staticUrl createdAt } }
  }
}`
	deleteProjectMutationConstant = `mutation projectDelete($id: String!) {
  projectDelete(id: $id)
}`
)

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

type namedNode struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type nodeConnection struct {
	Edges []struct {
		Node namedNode `json:"node"`
	} `json:"edges"`
}

func (connection nodeConnection) first() (namedNode, bool) {
	if len(connection.Edges) == 0 {
		return namedNode{}, false
	}
	return connection.Edges[0].Node, true
}

type projectDetails struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Services     nodeConnection `json:"services"`
	Environments nodeConnection `json:"environments"`
}

type deploymentNode struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	StaticURL string    `json:"staticUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

func (node deploymentNode) normalized() deploy.Deployment {
	normalized := deploy.Deployment{ID: node.ID, State: NormalizeState(node.Status), CreatedAt: node.CreatedAt}
	if len(node.StaticURL) > 0 {
		normalized.URL = fmt.Sprintf(deploymentURLTemplateConstant, node.StaticURL)
	}
	return normalized
}

// Provider manages Railway projects.
type Provider struct {
	api *apiclient.Client
}

// New constructs a Provider against DefaultEndpoint.
func New(logger *zap.Logger, token string) (deploy.Provider, error) {
	provider, providerError := NewWithEndpoint(logger, token, DefaultEndpoint, nil)
	if providerError != nil {
		return nil, providerError
	}
	return provider, nil
}

// NewWithEndpoint constructs a Provider against a GraphQL endpoint.
func NewWithEndpoint(logger *zap.Logger, token string, endpoint string, httpClient *http.Client) (*Provider, error) {
	api, clientError := apiclient.NewClient(logger, apiclient.Configuration{BaseURL: endpoint, Token: apiclient.StaticToken(token), HTTPClient: httpClient})
	if clientError != nil {
		return nil, clientError
	}
	return &Provider{api: api}, nil
}

// Name identifies the provider.
func (provider *Provider) Name() string {
	return deploy.ProviderRailway
}

// CreateProject creates a project named name.
func (provider *Provider) CreateProject(executionContext context.Context, name string) (deploy.Target, error) {
	var data struct {
		ProjectCreate namedNode `json:"projectCreate"`
	}
	variables := map[string]any{"input": map[string]string{"name": name}}
	if executeError := provider.execute(executionContext, createProjectOperationConstant, createProjectMutationConstant, variables, &data); executeError != nil {
		if isNameCollision(executeError) {
			return deploy.Target{}, deploy.ErrNameTaken
		}
		return deploy.Target{}, executeError
	}
	return projectTarget(data.ProjectCreate), nil
}

// LinkRepository adds a service built from repository to the project.
func (provider *Provider) LinkRepository(executionContext context.Context, targetID string, repository gitrepo.Repository) (deploy.Target, error) {
	var data struct {
		ServiceCreate namedNode `json:"serviceCreate"`
	}
	variables := map[string]any{
		"input": map[string]any{
			"projectId": targetID,
			"name":      repository.Name,
			"source":    map[string]string{"repo": repository.FullName()},
		},
	}
	if executeError := provider.execute(executionContext, createServiceOperationConstant, createServiceMutationConstant, variables, &data); executeError != nil {
		return deploy.Target{}, executeError
	}
	return deploy.Target{ID: targetID, URL: fmt.Sprintf(projectURLTemplateConstant, targetID)}, nil
}

// TriggerDeploy redeploys the project's first service in its first environment.
func (provider *Provider) TriggerDeploy(executionContext context.Context, targetID string) (deploy.Deployment, error) {
	details, projectError := provider.project(executionContext, targetID)
	if projectError != nil {
		return deploy.Deployment{}, projectError
	}
	service, hasService := details.Services.first()
	if !hasService {
		return deploy.Deployment{}, faults.PreconditionFailedError{Operation: triggerDeployOperationNameConstant, Message: notLinkedMessageConstant}
	}
	environment, hasEnvironment := details.Environments.first()
	if !hasEnvironment {
		return deploy.Deployment{}, faults.PreconditionFailedError{Operation: triggerDeployOperationNameConstant, Message: noEnvironmentMessageConstant}
	}
	var data struct {
		DeploymentID string `json:"serviceInstanceDeployV2"`
	}
	variables := map[string]any{"serviceId": service.ID, "environmentId": environment.ID}
	if executeError := provider.execute(executionContext, deployServiceOperationConstant, deployServiceMutationConstant, variables, &data); executeError != nil {
		return deploy.Deployment{}, executeError
	}
	return deploy.Deployment{ID: data.DeploymentID, State: deploy.StateQueued, URL: fmt.Sprintf(projectURLTemplateConstant, targetID)}, nil
}

// Status reports the project's most recent deployment.
func (provider *Provider) Status(executionContext context.Context, targetID string) (deploy.Status, error) {
	var data struct {
		Deployments struct {
			Edges []struct {
				Node deploymentNode `json:"node"`
			} `json:"edges"`
		} `json:"deployments"`
	}
	variables := map[string]any{"projectId": targetID}
	if executeError := provider.execute(executionContext, listDeploymentsOperationConstant, deploymentsQueryConstant, variables, &data); executeError != nil {
		return deploy.Status{}, executeError
	}
	status := deploy.Status{State: deploy.StateUnknown, URL: fmt.Sprintf(projectURLTemplateConstant, targetID)}
	if len(data.Deployments.Edges) > 0 {
		latest := data.Deployments.Edges[0].Node.normalized()
		status.LatestDeployment = &latest
		status.State = latest.State
		if len(latest.URL) > 0 {
			status.URL = latest.URL
		}
	}
	return status, nil
}

// DeleteProject removes the project and all of its services.
func (provider *Provider) DeleteProject(executionContext context.Context, targetID string) error {
	return provider.execute(executionContext, deleteProjectOperationConstant, deleteProjectMutationConstant, map[string]any{"id": targetID}, nil)
}

// NormalizeState maps Railway deployment statuses onto deploy.State.
func NormalizeState(status string) deploy.State {
	switch strings.ToUpper(status) {
	case "QUEUED", "WAITING", "INITIALIZING":
		return deploy.StateQueued
	case "BUILDING", "DEPLOYING":
		return deploy.StateBuilding
	case "SUCCESS", "SLEEPING":
		return deploy.StateReady
	case "FAILED", "CRASHED":
		return deploy.StateError
	case "REMOVED", "REMOVING", "SKIPPED":
		return deploy.StateCanceled
	default:
		return deploy.StateUnknown
	}
}

func (provider *Provider) project(executionContext context.Context, targetID string) (projectDetails, error) {
	var data struct {
		Project projectDetails `json:"project"`
	}
	if executeError := provider.execute(executionContext, getProjectOperationConstant, projectQueryConstant, map[string]any{"id": targetID}, &data); executeError != nil {
		return projectDetails{}, executeError
	}
	return data.Project, nil
}

// execute posts one GraphQL document. A response carrying errors becomes a ProviderError even on HTTP 200.
func (provider *Provider) execute(executionContext context.Context, operation string, query string, variables map[string]any, data any) error {
	var response graphQLResponse
	requestError := provider.api.Do(executionContext, operation, http.MethodPost, graphQLPathConstant, graphQLRequest{Query: query, Variables: variables}, &response)
	if requestError != nil {
		return deploy.WrapProviderError(provider.Name(), requestError)
	}
	if len(response.Errors) > 0 {
		messages := make([]string, 0, len(response.Errors))
		for _, graphError := range response.Errors {
			messages = append(messages, graphError.Message)
		}
		return deploy.ProviderError{Provider: provider.Name(), Message: strings.Join(messages, graphQLErrorSeparatorConstant)}
	}
	if data == nil || len(response.Data) == 0 {
		return nil
	}
	if decodeError := json.Unmarshal(response.Data, data); decodeError != nil {
		return apiclient.ResponseDecodingError{Operation: operation, Cause: decodeError}
	}
	return nil
}

func projectTarget(node namedNode) deploy.Target {
	return deploy.Target{ID: node.ID, Name: node.Name, URL: fmt.Sprintf(projectURLTemplateConstant, node.ID)}
}

func isNameCollision(executeError error) bool {
	message := strings.ToLower(executeError.Error())
	return strings.Contains(message, alreadyExistsFragmentConstant) || strings.Contains(message, alreadyTakenFragmentConstant)
}
