package docs_test

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/temirov/billdesk/cmd/cli"
)

const (
	readmeFileNameConstant           = "README.md"
	yamlFenceStartConstant           = "```yaml"
	yamlFenceEndConstant             = "```"
	configHeaderMarkerConstant       = "# config.yaml"
	parentDirectoryReferenceConstant = ".."
	keyPathSeparatorConstant         = "."
	missingHeaderMessageConstant     = "README example missing config header marker"
	missingStartFenceMessageConstant = "README example missing yaml fence start"
	missingEndFenceMessageConstant   = "README example missing yaml fence end"
	unknownKeyMessageTemplate        = "README configuration key %s is not a billdesk setting"
	missingSectionMessageTemplate    = "README configuration omits section %s"
	undocumentedSectionConstant      = "connectors"
)

func readReadmeSnippet(testInstance *testing.T) string {
	testInstance.Helper()
	workingDirectory, workingDirectoryError := os.Getwd()
	require.NoError(testInstance, workingDirectoryError)

	readmePath := filepath.Join(workingDirectory, parentDirectoryReferenceConstant, readmeFileNameConstant)
	contentBytes, readError := os.ReadFile(readmePath)
	require.NoError(testInstance, readError)

	contentText := string(contentBytes)
	headerIndex := strings.Index(contentText, configHeaderMarkerConstant)
	require.NotEqual(testInstance, -1, headerIndex, missingHeaderMessageConstant)

	fenceStartIndex := strings.LastIndex(contentText[:headerIndex], yamlFenceStartConstant)
	require.NotEqual(testInstance, -1, fenceStartIndex, missingStartFenceMessageConstant)

	remainingText := contentText[headerIndex:]
	fenceEndRelativeIndex := strings.Index(remainingText, yamlFenceEndConstant)
	require.NotEqual(testInstance, -1, fenceEndRelativeIndex, missingEndFenceMessageConstant)

	return strings.TrimSpace(contentText[fenceStartIndex+len(yamlFenceStartConstant) : headerIndex+fenceEndRelativeIndex])
}

func collectKeyPaths(prefix string, document map[string]any, keyPaths map[string]struct{}) {
	for key, value := range document {
		keyPath := key
		if len(prefix) > 0 {
			keyPath = prefix + keyPathSeparatorConstant + key
		}
		keyPaths[keyPath] = struct{}{}
		if nested, isMap := value.(map[string]any); isMap {
			collectKeyPaths(keyPath, nested, keyPaths)
		}
	}
}

func TestReadmeConfigurationMatchesDefaults(testInstance *testing.T) {
	snippetContent := readReadmeSnippet(testInstance)

	var readmeDocument map[string]any
	require.NoError(testInstance, yaml.Unmarshal([]byte(snippetContent), &readmeDocument))

	defaultContent, _ := cli.EmbeddedDefaultConfiguration()
	var defaultDocument map[string]any
	require.NoError(testInstance, yaml.Unmarshal(defaultContent, &defaultDocument))

	readmeKeys := map[string]struct{}{}
	collectKeyPaths("", readmeDocument, readmeKeys)
	defaultKeys := map[string]struct{}{}
	collectKeyPaths("", defaultDocument, defaultKeys)

	sortedReadmeKeys := make([]string, 0, len(readmeKeys))
	for keyPath := range readmeKeys {
		sortedReadmeKeys = append(sortedReadmeKeys, keyPath)
	}
	sort.Strings(sortedReadmeKeys)
	for _, keyPath := range sortedReadmeKeys {
		_, known := defaultKeys[keyPath]
		require.Truef(testInstance, known, unknownKeyMessageTemplate, keyPath)
	}

	for section := range defaultDocument {
		if section == undocumentedSectionConstant {
			continue
		}
		_, documented := readmeDocument[section]
		require.True(testInstance, documented, fmt.Sprintf(missingSectionMessageTemplate, section))
	}
}
