package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	temporaryFilePatternConstant    = ".snapshot-*"
	snapshotFilePermissionsConstant = 0o644
	snapshotDirectoryPermissions    = 0o755
)

// FileStore keeps the snapshot in a JSON file.
type FileStore struct {
	path string
}

// NewFileStore validates the path and constructs a FileStore.
func NewFileStore(path string) (*FileStore, error) {
	trimmedPath := strings.TrimSpace(path)
	if len(trimmedPath) == 0 {
		return nil, errors.New(filePathMissingMessageConstant)
	}
	return &FileStore{path: trimmedPath}, nil
}

// Load reads the snapshot file.
func (store *FileStore) Load(ctx context.Context) ([]byte, error) {
	if contextError := ctx.Err(); contextError != nil {
		return nil, contextError
	}

	contents, readError := os.ReadFile(store.path)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf(snapshotReadErrorTemplateConstant, store.path, readError)
	}
	return contents, nil
}

// Save writes the document to a temporary sibling and renames it over the snapshot.
func (store *FileStore) Save(ctx context.Context, document []byte) error {
	if contextError := ctx.Err(); contextError != nil {
		return contextError
	}

	directory := filepath.Dir(store.path)
	if mkdirError := os.MkdirAll(directory, snapshotDirectoryPermissions); mkdirError != nil {
		return fmt.Errorf(snapshotWriteErrorTemplateConstant, store.path, mkdirError)
	}

	temporaryFile, createError := os.CreateTemp(directory, temporaryFilePatternConstant)
	if createError != nil {
		return fmt.Errorf(snapshotWriteErrorTemplateConstant, store.path, createError)
	}
	temporaryPath := temporaryFile.Name()

	_, writeError := temporaryFile.Write(document)
	closeError := temporaryFile.Close()
	if writeError == nil {
		writeError = closeError
	}
	if writeError == nil {
		writeError = os.Chmod(temporaryPath, snapshotFilePermissionsConstant)
	}
	if writeError == nil {
		writeError = os.Rename(temporaryPath, store.path)
	}
	if writeError != nil {
		_ = os.Remove(temporaryPath)
		return fmt.Errorf(snapshotWriteErrorTemplateConstant, store.path, writeError)
	}
	return nil
}

// Describe returns the snapshot path.
func (store *FileStore) Describe() string {
	return store.path
}
