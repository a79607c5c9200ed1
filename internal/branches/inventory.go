package branches

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
)

const (
	inventoryMissingMessageConstant      = "branch inventory not found; run `ghkeeper branches scan` first"
	inventoryMissingTemplateConstant     = "%w: %s"
	inventoryReadErrorTemplateConstant   = "unable to read branch inventory %s: %w"
	inventoryDecodeErrorTemplateConstant = "unable to decode branch inventory %s: %w"
	inventoryEncodeErrorTemplateConstant = "unable to encode branch inventory: %w"
	inventoryWriteErrorTemplateConstant  = "unable to write branch inventory %s: %w"
	inventoryIndentConstant              = "  "
	inventoryFilePermissionsConstant     = 0o644
	fullNameSeparatorConstant            = "/"
)

// ErrInventoryMissing indicates the inventory file does not exist.
var ErrInventoryMissing = errors.New(inventoryMissingMessageConstant)

// BranchRecord is a matching branch and its last commit.
type BranchRecord struct {
	Name           string    `json:"name"`
	LastCommitDate time.Time `json:"last_commit_date"`
	CommitSHA      string    `json:"commit_sha"`
}

// RepositoryBranches groups the matching branches of one repository.
type RepositoryBranches struct {
	Name     string         `json:"name"`
	FullName string         `json:"full_name"`
	Branches []BranchRecord `json:"branches"`
}

// OwnerAndName splits FullName into its owner and repository name.
func (repository RepositoryBranches) OwnerAndName() (string, string) {
	owner, name, found := strings.Cut(repository.FullName, fullNameSeparatorConstant)
	if !found {
		return "", repository.FullName
	}
	return owner, name
}

// LoadInventory reads an inventory written by SaveInventory.
func LoadInventory(path string) ([]RepositoryBranches, error) {
	contents, readError := os.ReadFile(path)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			return nil, fmt.Errorf(inventoryMissingTemplateConstant, ErrInventoryMissing, path)
		}
		return nil, fmt.Errorf(inventoryReadErrorTemplateConstant, path, readError)
	}
	var inventory []RepositoryBranches
	if decodeError := json.Unmarshal(contents, &inventory); decodeError != nil {
		return nil, fmt.Errorf(inventoryDecodeErrorTemplateConstant, path, decodeError)
	}
	return inventory, nil
}

// SaveInventory writes the inventory as indented JSON.
func SaveInventory(path string, inventory []RepositoryBranches) error {
	if inventory == nil {
		inventory = []RepositoryBranches{}
	}
	contents, encodeError := json.MarshalIndent(inventory, "", inventoryIndentConstant)
	if encodeError != nil {
		return fmt.Errorf(inventoryEncodeErrorTemplateConstant, encodeError)
	}
	if writeError := os.WriteFile(path, append(contents, '\n'), inventoryFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(inventoryWriteErrorTemplateConstant, path, writeError)
	}
	return nil
}
