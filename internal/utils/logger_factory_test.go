package utils_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/billdesk/internal/utils"
)

const (
	testLoggerSubtestTemplateConstant = "%d_%s"
	testLogMessageConstant            = "invoice_created"
	testComponentConstant             = "billdesk"
)

func TestLoggerFactoryCreateLogger(testInstance *testing.T) {
	testCases := []struct {
		name            string
		options         utils.LoggerOptions
		expectError     bool
		expectJSON      bool
		expectComponent bool
		expectSilence   bool
	}{
		{
			name:            "structured_with_component",
			options:         utils.LoggerOptions{Level: utils.LogLevelInfo, Format: utils.LogFormatStructured, Component: testComponentConstant},
			expectJSON:      true,
			expectComponent: true,
		},
		{
			name:    "console_text",
			options: utils.LoggerOptions{Level: utils.LogLevelDebug, Format: utils.LogFormatConsole},
		},
		{
			name:       "mixed_case_names",
			options:    utils.LoggerOptions{Level: " INFO ", Format: "Structured"},
			expectJSON: true,
		},
		{
			name:          "level_filters_info",
			options:       utils.LoggerOptions{Level: utils.LogLevelWarn, Format: utils.LogFormatStructured},
			expectSilence: true,
		},
		{
			name:        "unsupported_level",
			options:     utils.LoggerOptions{Level: "verbose", Format: utils.LogFormatStructured},
			expectError: true,
		},
		{
			name:        "unsupported_format",
			options:     utils.LoggerOptions{Level: utils.LogLevelInfo, Format: "xml"},
			expectError: true,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testLoggerSubtestTemplateConstant, testCaseIndex, testCase.name), func(subTest *testing.T) {
			var output bytes.Buffer
			options := testCase.options
			options.Output = &output

			logger, creationError := utils.NewLoggerFactory().CreateLogger(options)
			if testCase.expectError {
				require.Error(subTest, creationError)
				require.Nil(subTest, logger)
				return
			}
			require.NoError(subTest, creationError)

			logger.Info(testLogMessageConstant)
			require.NoError(subTest, logger.Sync())

			captured := bytes.TrimSpace(output.Bytes())
			if testCase.expectSilence {
				require.Empty(subTest, captured)
				return
			}
			require.Contains(subTest, string(captured), testLogMessageConstant)
			require.Equal(subTest, testCase.expectJSON, json.Valid(captured))

			if testCase.expectComponent {
				var entry map[string]any
				require.NoError(subTest, json.Unmarshal(captured, &entry))
				require.Equal(subTest, testComponentConstant, entry["component"])
			}
		})
	}
}

func TestParseLogLevelNormalizes(testInstance *testing.T) {
	level, parseError := utils.ParseLogLevel("  Debug")
	require.NoError(testInstance, parseError)
	require.Equal(testInstance, utils.LogLevelDebug, level)

	_, parseError = utils.ParseLogLevel("trace")
	require.Error(testInstance, parseError)
}
