// Package credentials keeps connection passwords out of profiles and urls.
// Passwords live in the OS keyring; headless hosts fall back to an
// encrypted file.
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/zalando/go-keyring"
)

// Service is the keyring service passwords are stored under; the database
// id is the keyring user.
const Service = "redb-connector"

// Backend selects where passwords are stored.
type Backend string

const (
	BackendAuto   Backend = "auto"
	BackendSystem Backend = "system"
	BackendFile   Backend = "file"
)

// ErrNotFound is returned when no password is stored for a database.
var ErrNotFound = errors.New("no password stored for database")

// Store reads and writes connection passwords by database id.
type Store interface {
	Get(databaseID string) (string, error)
	Set(databaseID, password string) error
	Delete(databaseID string) error
}

// Open returns the store for backend. Auto uses the system keyring when it
// answers and the file at path otherwise.
func Open(backend Backend, path, masterPassword string) (Store, error) {
	switch backend {
	case BackendSystem:
		return systemStore{}, nil
	case BackendFile:
		return newFileStore(path, masterPassword), nil
	case BackendAuto, "":
		if systemAvailable() {
			return systemStore{}, nil
		}
		return newFileStore(path, masterPassword), nil
	default:
		return nil, fmt.Errorf("unknown keyring backend %q", backend)
	}
}

// systemAvailable tries one keyring lookup; a missing entry still
// proves the keyring answers.
func systemAvailable() bool {
	_, err := keyring.Get(Service, "availability-check")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}

type systemStore struct{}

func (systemStore) Get(databaseID string) (string, error) {
	password, err := keyring.Get(Service, databaseID)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, databaseID)
	}
	return password, err
}

func (systemStore) Set(databaseID, password string) error {
	return keyring.Set(Service, databaseID, password)
}

func (systemStore) Delete(databaseID string) error {
	err := keyring.Delete(Service, databaseID)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// fileStore keeps AES-GCM encrypted passwords in a json file keyed by
// database id.
type fileStore struct {
	mu   sync.Mutex
	path string
	key  []byte
}

func newFileStore(path, masterPassword string) *fileStore {
	sum := sha256.Sum256([]byte(masterPassword))
	return &fileStore{path: path, key: sum[:]}
}

func (s *fileStore) Get(databaseID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return "", err
	}
	sealed, ok := entries[databaseID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, databaseID)
	}
	return s.open(sealed)
}

func (s *fileStore) Set(databaseID, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	sealed, err := s.seal(password)
	if err != nil {
		return err
	}
	entries[databaseID] = sealed
	return s.save(entries)
}

func (s *fileStore) Delete(databaseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := entries[databaseID]; !ok {
		return nil
	}
	delete(entries, databaseID)
	return s.save(entries)
}

func (s *fileStore) load() (map[string]string, error) {
	entries := make(map[string]string)
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring file: %w", err)
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse keyring file: %w", err)
	}
	return entries, nil
}

func (s *fileStore) save(entries map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create keyring directory: %w", err)
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *fileStore) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (s *fileStore) seal(plaintext string) (string, error) {
	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(gcm.Seal(nonce, nonce, []byte(plaintext), nil)), nil
}

func (s *fileStore) open(sealed string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", err
	}
	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}
	if len(data) < gcm.NonceSize() {
		return "", fmt.Errorf("stored password is corrupt")
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt stored password: %w", err)
	}
	return string(plaintext), nil
}

// MasterPasswordFromEnv returns the file store master password.
func MasterPasswordFromEnv() string {
	return os.Getenv("REDB_KEYRING_PASSWORD")
}

// DefaultPath returns the file store location.
func DefaultPath() string {
	if path := os.Getenv("REDB_KEYRING_PATH"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "redb-connector-keyring.json")
	}
	return filepath.Join(home, ".local", "share", "redb", "connector-keyring.json")
}
