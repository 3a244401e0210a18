// Package storage persists one JSON document per (game, user) pair: the
// subscription set, the deferred-unsubscribe ledger, the OAuth token, the
// user's profile and avatar, and the mod collection snapshot. Writes go
// through a temp-file-then-rename so a crash mid-write never corrupts the
// previous good copy, and the whole document is sealed with AES-256-GCM at
// rest using a key derived from a caller-supplied device identifier.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuemby/modio-go/pkg/security"
	"github.com/cuemby/modio-go/pkg/types"
)

// Document is the full shape of one user's persisted metadata, matching
// the top-level keys of the on-disk JSON object field for field.
type Document struct {
	Subscriptions        []types.ModID             `json:"subscriptions"`
	DeferredUnsubscribes []types.ModID             `json:"DeferredUnsubscribes"`
	OAuth                types.OAuthToken          `json:"OAuth"`
	Profile              types.UserProfile         `json:"Profile"`
	Avatar               types.AvatarURLs          `json:"Avatar"`
	Mods                 []types.PersistedSnapshot `json:"Mods"`
	RootLocalStoragePath string                    `json:"RootLocalStoragePath,omitempty"`
}

// Store is the CRUD-shaped interface over per-user documents the rest of
// the SDK depends on; a single encrypted-JSON-file implementation is
// provided below.
type Store interface {
	CreateDocument(gameID, userID int64) (*Document, error)
	GetDocument(gameID, userID int64) (*Document, error)
	UpdateDocument(gameID, userID int64, doc *Document) error
	DeleteDocument(gameID, userID int64) error
}

// FileStore implements Store as one sealed JSON file per user under
// metadataDir(gameID).
type FileStore struct {
	metadataDir func(gameID int64) string
	key         security.EncryptionKey
}

// NewFileStore returns a Store rooted at the paths metadataDir produces
// (ordinarily fsio.Paths.MetadataDir), sealing documents with key.
func NewFileStore(metadataDir func(gameID int64) string, key security.EncryptionKey) *FileStore {
	return &FileStore{metadataDir: metadataDir, key: key}
}

func (s *FileStore) path(gameID, userID int64) string {
	return filepath.Join(s.metadataDir(gameID), fmt.Sprintf("%d.json", userID))
}

// CreateDocument writes a fresh empty document for (gameID, userID),
// overwriting whatever was there before.
func (s *FileStore) CreateDocument(gameID, userID int64) (*Document, error) {
	doc := &Document{}
	if err := s.UpdateDocument(gameID, userID, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocument reads and decrypts the document for (gameID, userID). A
// missing file is not an error — it returns a fresh empty document, since
// an unauthenticated or first-run user has no persisted state yet.
func (s *FileStore) GetDocument(gameID, userID int64) (*Document, error) {
	raw, err := os.ReadFile(s.path(gameID, userID))
	if err != nil {
		if os.IsNotExist(err) {
			return &Document{}, nil
		}
		return nil, fmt.Errorf("reading metadata document: %w", err)
	}

	plaintext, err := security.Open(s.key, raw)
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(plaintext, &doc); err != nil {
		return nil, fmt.Errorf("decoding metadata document: %w", err)
	}
	return &doc, nil
}

// UpdateDocument seals and atomically writes doc, replacing whatever was
// at (gameID, userID) before.
func (s *FileStore) UpdateDocument(gameID, userID int64, doc *Document) error {
	dir := s.metadataDir(gameID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating metadata directory: %w", err)
	}

	plaintext, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding metadata document: %w", err)
	}
	sealed, err := security.Seal(s.key, plaintext)
	if err != nil {
		return err
	}

	target := s.path(gameID, userID)
	tmpPath := target + ".tmp"
	if err := os.WriteFile(tmpPath, sealed, 0o600); err != nil {
		return fmt.Errorf("writing metadata document: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("atomically renaming metadata document: %w", err)
	}
	return nil
}

// DeleteDocument removes the persisted document for (gameID, userID), used
// when the entire user-scoped store is cleared on an authenticated-user
// change. A missing file is not an error.
func (s *FileStore) DeleteDocument(gameID, userID int64) error {
	if err := os.Remove(s.path(gameID, userID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting metadata document: %w", err)
	}
	return nil
}
