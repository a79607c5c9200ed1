package projects

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/temirov/ghkeeper/internal/githubapi"
)

const (
	targetsMissingMessageConstant      = "targets file not found; run `ghkeeper project items --write-targets` first"
	targetsMissingTemplateConstant     = "%w: %s"
	targetsReadErrorTemplateConstant   = "unable to read targets file %s: %w"
	targetsDecodeErrorTemplateConstant = "unable to decode targets file %s: %w"
	targetsEncodeErrorTemplateConstant = "unable to encode targets: %w"
	targetsWriteErrorTemplateConstant  = "unable to write targets file %s: %w"
	targetsFilePermissionsConstant     = 0o644
	targetsIndentConstant              = "  "
)

// ErrTargetsFileMissing indicates the targets file does not exist.
var ErrTargetsFileMissing = errors.New(targetsMissingMessageConstant)

// Target is one project item scheduled for a status update.
type Target struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// TargetsFromItems converts listed items into update targets.
func TargetsFromItems(items []githubapi.ProjectItem) []Target {
	targets := make([]Target, 0, len(items))
	for _, item := range items {
		targets = append(targets, Target{ID: item.ID, Title: item.Title})
	}
	return targets
}

// LoadTargets reads a JSON array of targets.
func LoadTargets(path string) ([]Target, error) {
	contents, readError := os.ReadFile(path)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			return nil, fmt.Errorf(targetsMissingTemplateConstant, ErrTargetsFileMissing, path)
		}
		return nil, fmt.Errorf(targetsReadErrorTemplateConstant, path, readError)
	}

	var targets []Target
	if decodeError := json.Unmarshal(contents, &targets); decodeError != nil {
		return nil, fmt.Errorf(targetsDecodeErrorTemplateConstant, path, decodeError)
	}
	return targets, nil
}

// SaveTargets writes the targets as an indented JSON array.
func SaveTargets(path string, targets []Target) error {
	if targets == nil {
		targets = []Target{}
	}
	contents, encodeError := json.MarshalIndent(targets, "", targetsIndentConstant)
	if encodeError != nil {
		return fmt.Errorf(targetsEncodeErrorTemplateConstant, encodeError)
	}
	if writeError := os.WriteFile(path, append(contents, '\n'), targetsFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(targetsWriteErrorTemplateConstant, path, writeError)
	}
	return nil
}
