// Package file keeps trip records as JSON files, one per session, for
// single-node deployments that must survive a restart without Redis.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/tripflow/pkg/domain"
	"github.com/aretw0/tripflow/pkg/persistence"
)

// DefaultDir is used when New is given an empty path.
var DefaultDir = filepath.Join(".tripflow", "sessions")

// ErrInvalidKey is returned for keys that cannot be used as file names.
var ErrInvalidKey = errors.New("invalid session key")

// document is the on-disk form. Record is whatever the codec produced.
type document struct {
	ExpiresAt *time.Time      `json:"expiresAt,omitempty"`
	Record    json.RawMessage `json:"record"`
}

// Store implements ports.SessionStore on the local filesystem.
type Store struct {
	dir   string
	codec persistence.Codec
	now   func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithCodec sets the record codec. It must produce JSON.
func WithCodec(codec persistence.Codec) Option {
	return func(s *Store) {
		s.codec = codec
	}
}

// WithClock overrides the clock used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a Store rooted at dir.
func New(dir string, opts ...Option) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	s := &Store{dir: dir, codec: persistence.JSON{}, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, "tmp-") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.dir, key+".json"), nil
}

// Save writes the record atomically: temp file, fsync, rename.
func (s *Store) Save(ctx context.Context, key string, record *domain.TripRecord, ttl time.Duration) error {
	destPath, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to ensure session directory: %w", err)
	}

	raw, err := s.codec.Marshal(record)
	if err != nil {
		return err
	}
	doc := document{Record: raw}
	if ttl > 0 {
		expires := s.now().Add(ttl).UTC()
		doc.ExpiresAt = &expires
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session file: %w", err)
	}

	// Same directory as the destination so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(s.dir, "tmp-"+key+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file to session: %w", err)
	}
	return nil
}

// Load reads the record, treating expired files as missing.
func (s *Store) Load(ctx context.Context, key string) (*domain.TripRecord, error) {
	filePath, err := s.path(key)
	if err != nil {
		return nil, err
	}
	doc, err := s.read(filePath)
	if err != nil {
		return nil, err
	}
	if s.expired(doc) {
		_ = os.Remove(filePath)
		return nil, domain.ErrSessionNotFound
	}
	return s.codec.Unmarshal(doc.Record)
}

// Delete removes the session file.
func (s *Store) Delete(ctx context.Context, key string) error {
	filePath, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}

// List returns the live session keys in order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		doc, err := s.read(filepath.Join(s.dir, name))
		if err != nil || s.expired(doc) {
			continue
		}
		sessions = append(sessions, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(sessions)
	return sessions, nil
}

func (s *Store) read(filePath string) (*document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session file: %w", err)
	}
	return &doc, nil
}

func (s *Store) expired(doc *document) bool {
	return doc.ExpiresAt != nil && !s.now().Before(*doc.ExpiresAt)
}
