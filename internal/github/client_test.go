package github_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/apiclient"
	"github.com/temirov/billdesk/internal/faults"
	"github.com/temirov/billdesk/internal/github"
)

func newGitHubServer(testInstance *testing.T, totalRepositories int) *httptest.Server {
	testInstance.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(responseWriter http.ResponseWriter, request *http.Request) {
		require.Equal(testInstance, "Bearer gh-token", request.Header.Get("Authorization"))
		require.Equal(testInstance, "application/vnd.github+json", request.Header.Get("Accept"))
		_ = json.NewEncoder(responseWriter).Encode(github.User{Login: "octo", Name: "Octo Cat"})
	})
	mux.HandleFunc("/user/repos", func(responseWriter http.ResponseWriter, request *http.Request) {
		page, _ := strconv.Atoi(request.URL.Query().Get("page"))
		pageSize, _ := strconv.Atoi(request.URL.Query().Get("per_page"))
		repositories := []github.Repository{}
		for index := (page - 1) * pageSize; index < page*pageSize && index < totalRepositories; index++ {
			repositories = append(repositories, github.Repository{ID: int64(index + 1), Name: fmt.Sprintf("repo-%d", index+1)})
		}
		_ = json.NewEncoder(responseWriter).Encode(repositories)
	})
	mux.HandleFunc("/repos/acme/storefront", func(responseWriter http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(responseWriter).Encode(github.Repository{Name: "storefront", FullName: "acme/storefront", DefaultBranch: "main"})
	})
	mux.HandleFunc("/repos/acme/missing", func(responseWriter http.ResponseWriter, _ *http.Request) {
		responseWriter.WriteHeader(http.StatusNotFound)
		_, _ = responseWriter.Write([]byte(`{"message":"Not Found"}`))
	})
	server := httptest.NewServer(mux)
	testInstance.Cleanup(server.Close)
	return server
}

func TestClientListsRepositoriesAcrossPages(testInstance *testing.T) {
	server := newGitHubServer(testInstance, 150)
	client, clientError := github.NewClient(zap.NewNop(), server.URL, apiclient.StaticToken("gh-token"), nil)
	require.NoError(testInstance, clientError)

	user, userError := client.AuthenticatedUser(context.Background())
	require.NoError(testInstance, userError)
	require.Equal(testInstance, "octo", user.Login)

	repositories, listError := client.ListRepositories(context.Background())
	require.NoError(testInstance, listError)
	require.Len(testInstance, repositories, 150)
	require.Equal(testInstance, "repo-150", repositories[149].Name)
}

func TestClientValidateRepositoryURL(testInstance *testing.T) {
	server := newGitHubServer(testInstance, 0)
	client, clientError := github.NewClient(nil, server.URL, apiclient.StaticToken("gh-token"), nil)
	require.NoError(testInstance, clientError)

	testCases := []struct {
		name             string
		repositoryURL    string
		expectedFullName string
		expectInvalid    bool
	}{
		{name: "existing repository", repositoryURL: "git@github.com:acme/storefront.git", expectedFullName: "acme/storefront"},
		{name: "missing repository", repositoryURL: "https://github.com/acme/missing", expectInvalid: true},
		{name: "not github", repositoryURL: "https://bitbucket.org/acme/storefront", expectInvalid: true},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(subTest *testing.T) {
			repository, validateError := client.ValidateRepositoryURL(context.Background(), testCase.repositoryURL)
			if testCase.expectInvalid {
				require.True(subTest, faults.IsInvalidInput(validateError))
				return
			}
			require.NoError(subTest, validateError)
			require.Equal(subTest, testCase.expectedFullName, repository.FullName)
		})
	}

	_, missingError := client.GetRepository(context.Background(), "acme", "missing")
	require.True(testInstance, faults.IsNotFound(missingError))
}
