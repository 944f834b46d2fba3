package gitrepo_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/billdesk/internal/gitrepo"
)

func TestParseGitHubURL(testInstance *testing.T) {
	testCases := []struct {
		name               string
		input              string
		expectedRepository gitrepo.Repository
		expectError        bool
	}{
		{name: "https", input: "https://github.com/acme/storefront", expectedRepository: gitrepo.Repository{Owner: "acme", Name: "storefront"}},
		{name: "https with git suffix", input: "https://github.com/acme/storefront.git", expectedRepository: gitrepo.Repository{Owner: "acme", Name: "storefront"}},
		{name: "https with trailing path", input: "https://github.com/acme/storefront/tree/main/docs", expectedRepository: gitrepo.Repository{Owner: "acme", Name: "storefront"}},
		{name: "scp style", input: "git@github.com:acme/storefront.git", expectedRepository: gitrepo.Repository{Owner: "acme", Name: "storefront"}},
		{name: "ssh scheme", input: "ssh://git@github.com/acme/storefront.git", expectedRepository: gitrepo.Repository{Owner: "acme", Name: "storefront"}},
		{name: "no scheme", input: " github.com/acme/storefront ", expectedRepository: gitrepo.Repository{Owner: "acme", Name: "storefront"}},
		{name: "dotted name", input: "https://github.com/acme/acme.github.io", expectedRepository: gitrepo.Repository{Owner: "acme", Name: "acme.github.io"}},
		{name: "other host", input: "https://gitlab.com/acme/storefront", expectError: true},
		{name: "owner only", input: "https://github.com/acme", expectError: true},
		{name: "empty", input: "", expectError: true},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf("%d_%s", testCaseIndex, testCase.name), func(subTest *testing.T) {
			repository, parseError := gitrepo.ParseGitHubURL(testCase.input)
			if testCase.expectError {
				require.Error(subTest, parseError)
				require.IsType(subTest, gitrepo.URLParseError{}, parseError)
				return
			}
			require.NoError(subTest, parseError)
			require.Equal(subTest, testCase.expectedRepository, repository)
		})
	}
}

func TestRepositoryRendering(testInstance *testing.T) {
	repository := gitrepo.Repository{Owner: "acme", Name: "storefront"}
	require.Equal(testInstance, "acme/storefront", repository.FullName())
	require.Equal(testInstance, "https://github.com/acme/storefront", repository.HTTPSURL())
}
