package session

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/zalando/go-keyring"

	"github.com/cmarkh/audible-api/pkg/logging"
)

// KeyringService is the service name sessions are stored under in the OS keychain.
const KeyringService = "audible-api"

// Store loads and saves a single session.
type Store interface {
	Load() (*Session, error)
	Save(s *Session) error
	Delete() error
	// Location describes where the session lives, for status output.
	Location() string
}

// FileStore keeps the session in a JSON file.
type FileStore struct {
	Path string
}

// NewFileStore returns a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (f *FileStore) Load() (*Session, error) {
	return Load(f.Path)
}

func (f *FileStore) Save(s *Session) error {
	return Save(s, f.Path)
}

// Delete removes the session file. A missing file is not an error.
func (f *FileStore) Delete() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: failed to delete %s: %w", ErrPersistence, f.Path, err)
	}
	logging.Audit("Session", "session_deleted", slog.String("path", f.Path))
	return nil
}

func (f *FileStore) Location() string {
	return f.Path
}

// KeyringStore keeps the session document in the OS keychain, one entry per profile.
type KeyringStore struct {
	Profile string
}

// NewKeyringStore returns a keychain store for profile.
func NewKeyringStore(profile string) *KeyringStore {
	if profile == "" {
		profile = "default"
	}
	return &KeyringStore{Profile: profile}
}

func (k *KeyringStore) Load() (*Session, error) {
	secret, err := keyring.Get(KeyringService, k.Profile)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, fmt.Errorf("%w: keyring profile %q", ErrNotFound, k.Profile)
		}
		return nil, fmt.Errorf("%w: keyring read failed: %w", ErrPersistence, err)
	}
	return Decode([]byte(secret))
}

func (k *KeyringStore) Save(s *Session) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	if err := keyring.Set(KeyringService, k.Profile, string(data)); err != nil {
		logging.Audit("Session", "session_store_failed",
			slog.String("keyring_profile", k.Profile),
			slog.String("error", err.Error()))
		return fmt.Errorf("%w: keyring write failed: %w", ErrPersistence, err)
	}
	logging.Audit("Session", "session_stored", slog.String("keyring_profile", k.Profile))
	return nil
}

func (k *KeyringStore) Delete() error {
	if err := keyring.Delete(KeyringService, k.Profile); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: keyring delete failed: %w", ErrPersistence, err)
	}
	logging.Audit("Session", "session_deleted", slog.String("keyring_profile", k.Profile))
	return nil
}

func (k *KeyringStore) Location() string {
	return fmt.Sprintf("keyring %s/%s", KeyringService, k.Profile)
}
