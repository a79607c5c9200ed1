package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

const (
	scopedSnapshotDecodeTemplateConstant = "unable to decode scoped snapshot %s: %w"
	scopedSnapshotEncodeTemplateConstant = "unable to encode scoped snapshot %s: %w"
	scopedStoreDescriptionTemplate       = "%s (scope %s)"
	bareArrayPrefixConstant              = '['
)

type scopedDocument struct {
	Scope string          `json:"scope"`
	Items json.RawMessage `json:"items"`
}

// ScopedStore records the query a snapshot answers next to the snapshot itself. A snapshot written for
// another scope, or one carrying no scope at all, loads as ErrSnapshotNotFound.
type ScopedStore struct {
	inner Store
	scope string
}

// NewScopedStore wraps inner so that it only serves snapshots written under scope.
func NewScopedStore(inner Store, scope string) *ScopedStore {
	return &ScopedStore{inner: inner, scope: scope}
}

// Load returns the stored items when the recorded scope matches.
func (store *ScopedStore) Load(ctx context.Context) ([]byte, error) {
	document, loadError := store.inner.Load(ctx)
	if loadError != nil {
		return nil, loadError
	}

	trimmedDocument := bytes.TrimSpace(document)
	if len(trimmedDocument) > 0 && trimmedDocument[0] == bareArrayPrefixConstant {
		return nil, ErrSnapshotNotFound
	}

	var decoded scopedDocument
	if decodeError := json.Unmarshal(trimmedDocument, &decoded); decodeError != nil {
		return nil, fmt.Errorf(scopedSnapshotDecodeTemplateConstant, store.inner.Describe(), decodeError)
	}
	if decoded.Scope != store.scope || len(decoded.Items) == 0 {
		return nil, ErrSnapshotNotFound
	}
	return decoded.Items, nil
}

// Save stores the items together with the scope.
func (store *ScopedStore) Save(ctx context.Context, document []byte) error {
	encoded, encodeError := json.Marshal(scopedDocument{Scope: store.scope, Items: json.RawMessage(document)})
	if encodeError != nil {
		return fmt.Errorf(scopedSnapshotEncodeTemplateConstant, store.inner.Describe(), encodeError)
	}
	return store.inner.Save(ctx, encoded)
}

// Describe names the wrapped store and the scope.
func (store *ScopedStore) Describe() string {
	return fmt.Sprintf(scopedStoreDescriptionTemplate, store.inner.Describe(), store.scope)
}
