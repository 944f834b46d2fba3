package railway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/deploy"
	"github.com/temirov/billdesk/internal/deploy/railway"
	"github.com/temirov/billdesk/internal/faults"
)

type graphQLCall struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type fakeRailway struct {
	takenNames   map[string]bool
	services     map[string]string
	deployedWith map[string]any
}

func (fake *fakeRailway) handler(testInstance *testing.T) http.Handler {
	return http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		require.Equal(testInstance, http.MethodPost, request.Method)
		require.Equal(testInstance, "Bearer rw-token", request.Header.Get("Authorization"))
		var call graphQLCall
		require.NoError(testInstance, json.NewDecoder(request.Body).Decode(&call))

		switch {
		case strings.Contains(call.Query, "projectCreate"):
			input := call.Variables["input"].(map[string]any)
			name := input["name"].(string)
			if fake.takenNames[name] {
				_, _ = responseWriter.Write([]byte(`{"data":null,"errors":[{"message":"Project name already exists"}]}`))
				return
			}
			_ = json.NewEncoder(responseWriter).Encode(map[string]any{"data": map[string]any{"projectCreate": map[string]string{"id": "proj-1", "name": name}}})
		case strings.Contains(call.Query, "serviceCreate"):
			input := call.Variables["input"].(map[string]any)
			source := input["source"].(map[string]any)
			fake.services[input["projectId"].(string)] = source["repo"].(string)
			_, _ = responseWriter.Write([]byte(`{"data":{"serviceCreate":{"id":"svc-1","name":"storefront"}}}`))
		case strings.Contains(call.Query, "serviceInstanceDeployV2"):
			fake.deployedWith = call.Variables
			_, _ = responseWriter.Write([]byte(`{"data":{"serviceInstanceDeployV2":"dep-1"}}`))
		case strings.Contains(call.Query, "deployments"):
			_, _ = responseWriter.Write([]byte(`{"data":{"deployments":{"edges":[{"node":{"id":"dep-1","status":"SUCCESS","staticUrl":"storefront.up.railway.app","createdAt":"2024-03-10T12:00:00Z"}}]}}}`))
		case strings.Contains(call.Query, "projectDelete"):
			if call.Variables["id"] == "proj-gone" {
				_, _ = responseWriter.Write([]byte(`{"data":null,"errors":[{"message":"Project not found"}]}`))
				return
			}
			_, _ = responseWriter.Write([]byte(`{"data":{"projectDelete":true}}`))
		case strings.Contains(call.Query, "project("):
			projectID := call.Variables["id"].(string)
			services := []any{}
			if _, linked := fake.services[projectID]; linked {
				services = append(services, map[string]any{"node": map[string]string{"id": "svc-1", "name": "storefront"}})
			}
			response := map[string]any{"data": map[string]any{"project": map[string]any{
				"id":           projectID,
				"name":         "storefront",
				"services":     map[string]any{"edges": services},
				"environments": map[string]any{"edges": []any{map[string]any{"node": map[string]string{"id": "env-1", "name": "production"}}}},
			}}}
			_ = json.NewEncoder(responseWriter).Encode(response)
		default:
			testInstance.Fatalf("unexpected query %q", call.Query)
		}
	})
}

func newRailwayAdapter(testInstance *testing.T, fake *fakeRailway) *deploy.Adapter {
	testInstance.Helper()
	server := httptest.NewServer(fake.handler(testInstance))
	testInstance.Cleanup(server.Close)
	provider, providerError := railway.NewWithEndpoint(zap.NewNop(), "rw-token", server.URL, nil)
	require.NoError(testInstance, providerError)
	adapter, adapterError := deploy.NewAdapter(zap.NewNop(), provider, deploy.WithSuffixGenerator(func() (string, error) { return "q1w2e3", nil }))
	require.NoError(testInstance, adapterError)
	return adapter
}

func TestRailwayLifecycle(testInstance *testing.T) {
	fake := &fakeRailway{takenNames: map[string]bool{"storefront": true}, services: map[string]string{}}
	adapter := newRailwayAdapter(testInstance, fake)
	executionContext := context.Background()

	target, createError := adapter.Create(executionContext, "Storefront", "https://github.com/acme/storefront/tree/main")
	require.NoError(testInstance, createError)
	require.Equal(testInstance, "proj-1", target.ID)
	require.Equal(testInstance, "storefront-q1w2e3", target.Name)
	require.Equal(testInstance, "acme/storefront", fake.services["proj-1"])

	deployment, triggerError := adapter.TriggerDeploy(executionContext, target.ID)
	require.NoError(testInstance, triggerError)
	require.Equal(testInstance, "dep-1", deployment.ID)
	require.Equal(testInstance, "svc-1", fake.deployedWith["serviceId"])
	require.Equal(testInstance, "env-1", fake.deployedWith["environmentId"])

	status, statusError := adapter.Status(executionContext, target.ID)
	require.NoError(testInstance, statusError)
	require.Equal(testInstance, deploy.StateReady, status.State)
	require.Equal(testInstance, "https://storefront.up.railway.app", status.URL)

	require.NoError(testInstance, adapter.Delete(executionContext, target.ID))
	require.NoError(testInstance, adapter.Delete(executionContext, "proj-gone"))
}

func TestRailwayTriggerDeployRequiresService(testInstance *testing.T) {
	adapter := newRailwayAdapter(testInstance, &fakeRailway{takenNames: map[string]bool{}, services: map[string]string{}})

	_, triggerError := adapter.TriggerDeploy(context.Background(), "proj-empty")
	require.True(testInstance, faults.IsPreconditionFailed(triggerError))
}

func TestRailwayGraphQLErrorsSurface(testInstance *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, _ *http.Request) {
		_, _ = responseWriter.Write([]byte(`{"errors":[{"message":"Not Authorized"},{"message":"retry later"}]}`))
	}))
	defer server.Close()
	provider, providerError := railway.NewWithEndpoint(zap.NewNop(), "rw-token", server.URL, nil)
	require.NoError(testInstance, providerError)

	_, statusError := provider.Status(context.Background(), "proj-1")
	var railwayError deploy.ProviderError
	require.ErrorAs(testInstance, statusError, &railwayError)
	require.Equal(testInstance, "Not Authorized; retry later", railwayError.Message)
}

func TestRailwayNormalizeState(testInstance *testing.T) {
	expectations := map[string]deploy.State{
		"WAITING":   deploy.StateQueued,
		"DEPLOYING": deploy.StateBuilding,
		"SLEEPING":  deploy.StateReady,
		"CRASHED":   deploy.StateError,
		"REMOVED":   deploy.StateCanceled,
		"":          deploy.StateUnknown,
	}
	for railwayState, expectedState := range expectations {
		require.Equal(testInstance, expectedState, railway.NormalizeState(railwayState), railwayState)
	}
}
