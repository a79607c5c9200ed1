package utils_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/ghkeeper/internal/utils"
)

const testLogMessageConstant = "waiting for rate limit reset"

// captureStandardError builds the logger while stderr points at a pipe and returns everything it wrote.
func captureStandardError(testInstance *testing.T, build func() (*zap.Logger, error), emit func(*zap.Logger)) (string, error) {
	testInstance.Helper()

	pipeReader, pipeWriter, pipeError := os.Pipe()
	require.NoError(testInstance, pipeError)
	originalStandardError := os.Stderr
	os.Stderr = pipeWriter
	logger, buildError := build()
	os.Stderr = originalStandardError

	if buildError == nil {
		emit(logger)
		if syncError := logger.Sync(); syncError != nil {
			require.True(testInstance, errors.Is(syncError, syscall.ENOTSUP) || errors.Is(syncError, syscall.EINVAL))
		}
	}
	require.NoError(testInstance, pipeWriter.Close())
	captured, readError := io.ReadAll(pipeReader)
	require.NoError(testInstance, readError)
	require.NoError(testInstance, pipeReader.Close())
	return string(bytes.TrimSpace(captured)), buildError
}

func TestLoggerFactoryCreateLogger(testInstance *testing.T) {
	testCases := []struct {
		name           string
		logLevel       utils.LogLevel
		logFormat      utils.LogFormat
		expectError    string
		expectJSON     bool
		expectDebugLog bool
	}{
		{name: "structured info", logLevel: utils.LogLevelInfo, logFormat: utils.LogFormatStructured, expectJSON: true},
		{name: "structured debug", logLevel: utils.LogLevelDebug, logFormat: utils.LogFormatStructured, expectJSON: true, expectDebugLog: true},
		{name: "console", logLevel: utils.LogLevelInfo, logFormat: utils.LogFormatConsole},
		{name: "case insensitive", logLevel: "INFO", logFormat: " Console "},
		{name: "unsupported level", logLevel: "verbose", logFormat: utils.LogFormatStructured, expectError: "unsupported log level: verbose"},
		{name: "unsupported format", logLevel: utils.LogLevelInfo, logFormat: "xml", expectError: "unsupported log format: xml"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			output, buildError := captureStandardError(subTest, func() (*zap.Logger, error) {
				return utils.NewLoggerFactory().CreateLogger(testCase.logLevel, testCase.logFormat)
			}, func(logger *zap.Logger) {
				logger.Debug("debug detail")
				logger.Info(testLogMessageConstant, zap.String("operation", "update_status"))
			})

			if len(testCase.expectError) > 0 {
				require.EqualError(subTest, buildError, testCase.expectError)
				return
			}
			require.NoError(subTest, buildError)
			require.Contains(subTest, output, testLogMessageConstant)
			require.Contains(subTest, output, "ghkeeper")
			require.Equal(subTest, testCase.expectDebugLog, bytes.Contains([]byte(output), []byte("debug detail")))

			lines := bytes.Split([]byte(output), []byte("\n"))
			lastLine := lines[len(lines)-1]
			require.Equal(subTest, testCase.expectJSON, json.Valid(lastLine))
			if testCase.expectJSON {
				var entry map[string]any
				require.NoError(subTest, json.Unmarshal(lastLine, &entry))
				require.Equal(subTest, "ghkeeper", entry["logger"])
				require.Equal(subTest, "update_status", entry["operation"])
			}
		})
	}
}
