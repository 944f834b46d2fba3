package pathutils_test

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	pathutils "github.com/temirov/billdesk/internal/utils/path"
)

const (
	testHomeDirectoryConstant           = "/home/billing"
	locationSubtestNameTemplateConstant = "%d_%s"
)

func TestResolveDatabaseLocation(testInstance *testing.T) {
	expander := pathutils.NewHomeExpanderWithProvider(func() (string, error) { return testHomeDirectoryConstant, nil })
	testCases := []struct {
		name           string
		databaseURL    string
		expectedPath   string
		expectedSource string
		expectError    bool
	}{
		{name: "plain path", databaseURL: "data/billdesk.db", expectedPath: "data/billdesk.db", expectedSource: "data/billdesk.db"},
		{name: "sqlite scheme with tilde", databaseURL: "sqlite://~/billdesk/app.db", expectedPath: filepath.Join(testHomeDirectoryConstant, "billdesk/app.db"), expectedSource: filepath.Join(testHomeDirectoryConstant, "billdesk/app.db")},
		{name: "file scheme with query", databaseURL: "file:/var/lib/app.db?_busy_timeout=5000", expectedPath: "/var/lib/app.db", expectedSource: "file:/var/lib/app.db?_busy_timeout=5000"},
		{name: "memory", databaseURL: ":memory:", expectedPath: ":memory:", expectedSource: ":memory:"},
		{name: "postgres rejected", databaseURL: "postgres://user@localhost/db", expectError: true},
		{name: "empty rejected", databaseURL: "   ", expectError: true},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(locationSubtestNameTemplateConstant, testCaseIndex, testCase.name), func(subTest *testing.T) {
			location, resolveError := pathutils.ResolveDatabaseLocation(expander, testCase.databaseURL)
			if testCase.expectError {
				require.Error(subTest, resolveError)
				return
			}
			require.NoError(subTest, resolveError)
			require.Equal(subTest, testCase.expectedPath, location.Path)
			require.Equal(subTest, testCase.expectedSource, location.DataSourceName())
		})
	}
}

func TestHomeExpanderLeavesOtherUsersAlone(testInstance *testing.T) {
	expander := pathutils.NewHomeExpanderWithProvider(func() (string, error) { return testHomeDirectoryConstant, nil })
	require.Equal(testInstance, "~other/app.db", expander.Expand("~other/app.db"))
	require.Equal(testInstance, testHomeDirectoryConstant, expander.Expand("~"))
}
