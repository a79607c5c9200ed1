package repos

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/temirov/ghkeeper/internal/githubrest"
	"github.com/temirov/ghkeeper/internal/utils/flags"
)

// Format names an inventory serialization.
type Format string

// Supported inventory formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

const (
	inventoryIndentConstant              = "  "
	inventoryFilePermissionsConstant     = 0o644
	unsupportedFormatTemplateConstant    = "inventory format: %w"
	inventoryEncodeErrorTemplateConstant = "unable to encode repository inventory: %w"
	inventoryWriteErrorTemplateConstant  = "unable to write repository inventory %s: %w"
	yamlExtensionConstant                = ".yaml"
	ymlExtensionConstant                 = ".yml"
)

// ParseFormat resolves a format name; an empty name falls back to the output file extension, then json.
func ParseFormat(formatName string, outputPath string) (Format, error) {
	trimmedName := strings.TrimSpace(formatName)
	if len(trimmedName) == 0 {
		lowerPath := strings.ToLower(outputPath)
		if strings.HasSuffix(lowerPath, yamlExtensionConstant) || strings.HasSuffix(lowerPath, ymlExtensionConstant) {
			return FormatYAML, nil
		}
		return FormatJSON, nil
	}
	if strings.EqualFold(trimmedName, strings.TrimPrefix(ymlExtensionConstant, ".")) {
		return FormatYAML, nil
	}
	choice, choiceError := flags.ParseChoice(trimmedName, []string{string(FormatJSON), string(FormatYAML)})
	if choiceError != nil {
		return "", fmt.Errorf(unsupportedFormatTemplateConstant, choiceError)
	}
	return Format(choice), nil
}

// EncodeInventory serializes repositories as [{name, full_name}].
func EncodeInventory(repositories []githubrest.Repository, format Format) ([]byte, error) {
	if repositories == nil {
		repositories = []githubrest.Repository{}
	}
	var buffer bytes.Buffer
	switch format {
	case FormatYAML:
		encoder := yaml.NewEncoder(&buffer)
		encoder.SetIndent(len(inventoryIndentConstant))
		if encodeError := encoder.Encode(repositories); encodeError != nil {
			return nil, fmt.Errorf(inventoryEncodeErrorTemplateConstant, encodeError)
		}
		if closeError := encoder.Close(); closeError != nil {
			return nil, fmt.Errorf(inventoryEncodeErrorTemplateConstant, closeError)
		}
	case FormatJSON:
		encoder := json.NewEncoder(&buffer)
		encoder.SetEscapeHTML(false)
		encoder.SetIndent("", inventoryIndentConstant)
		if encodeError := encoder.Encode(repositories); encodeError != nil {
			return nil, fmt.Errorf(inventoryEncodeErrorTemplateConstant, encodeError)
		}
	default:
		return nil, fmt.Errorf(unsupportedFormatTemplateConstant, format)
	}
	return buffer.Bytes(), nil
}

// WriteInventory encodes the repositories and writes them to path.
func WriteInventory(path string, repositories []githubrest.Repository, format Format) error {
	contents, encodeError := EncodeInventory(repositories, format)
	if encodeError != nil {
		return encodeError
	}
	if writeError := os.WriteFile(path, contents, inventoryFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(inventoryWriteErrorTemplateConstant, path, writeError)
	}
	return nil
}
