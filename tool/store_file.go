package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	fileStoreVersionV1 = "1"
	defaultStoreDir    = ".tooltailor"
	defaultFileStoreDB = "customizations.json"
)

var errEmptyStorePath = errors.New("tool: file store path is empty")

type fileStoreDocument struct {
	Version        string          `json:"version"`
	Customizations []Customization `json:"customizations"`
}

// FileStore persists customizations in one local JSON document.
type FileStore struct {
	path string
	now  func() time.Time
	mu   sync.RWMutex
}

// NewFileStore creates a file-backed store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// DefaultFileStorePath returns ~/.tooltailor/customizations.json.
func DefaultFileStorePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("tool: resolve user home: %w", err)
	}
	return filepath.Join(home, defaultStoreDir, defaultFileStoreDB), nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// List returns every record ordered by server name.
func (s *FileStore) List(ctx context.Context) ([]Customization, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errors.New("tool: file store is nil")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	items, err := s.load()
	if err != nil {
		return nil, err
	}
	return cloneCustomizations(items), nil
}

// Get returns the record for server.
func (s *FileStore) Get(ctx context.Context, server string) (Customization, bool, error) {
	items, err := s.List(ctx)
	if err != nil {
		return Customization{}, false, err
	}
	for _, item := range items {
		if item.Server == server {
			return item, true, nil
		}
	}
	return Customization{}, false, nil
}

// Put replaces the record for c.Server.
func (s *FileStore) Put(ctx context.Context, c Customization) (Customization, error) {
	if err := ctx.Err(); err != nil {
		return Customization{}, err
	}
	if s == nil {
		return Customization{}, errors.New("tool: file store is nil")
	}
	stamped, err := stamp(c, s.now())
	if err != nil {
		return Customization{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return Customization{}, err
	}
	replaced := false
	for i := range items {
		if items[i].Server == stamped.Server {
			items[i] = stamped
			replaced = true
			break
		}
	}
	if !replaced {
		items = append(items, stamped)
	}
	if err := s.save(items); err != nil {
		return Customization{}, err
	}
	return cloneCustomization(stamped), nil
}

// Delete removes the record for server. Deleting a missing record is a no-op.
func (s *FileStore) Delete(ctx context.Context, server string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil {
		return errors.New("tool: file store is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load()
	if err != nil {
		return err
	}
	kept := items[:0]
	for _, item := range items {
		if item.Server != server {
			kept = append(kept, item)
		}
	}
	return s.save(kept)
}

func (s *FileStore) load() ([]Customization, error) {
	if strings.TrimSpace(s.path) == "" {
		return nil, errEmptyStorePath
	}

	// #nosec G304 -- path is configured by the operator.
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Customization{}, nil
		}
		return nil, fmt.Errorf("tool: read customizations: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return []Customization{}, nil
	}

	var doc fileStoreDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("tool: decode customizations: %w", err)
	}
	if doc.Version != "" && doc.Version != fileStoreVersionV1 {
		return nil, fmt.Errorf("tool: unsupported customization file version %q", doc.Version)
	}
	if doc.Customizations == nil {
		doc.Customizations = []Customization{}
	}
	sortCustomizations(doc.Customizations)
	return doc.Customizations, nil
}

func (s *FileStore) save(items []Customization) error {
	items = cloneCustomizations(items)
	sortCustomizations(items)

	data, err := json.MarshalIndent(fileStoreDocument{
		Version:        fileStoreVersionV1,
		Customizations: items,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("tool: encode customizations: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("tool: create store dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("tool: write temp store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("tool: replace store file: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
