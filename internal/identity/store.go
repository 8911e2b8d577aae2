package identity

import (
	"os"
	"path/filepath"
	"strings"
)

const guestFileName = "guest_id"

// FileStore persists the guest id as a single file under the cache directory,
// mirroring how the browser client kept it in durable local storage.
type FileStore struct {
	path string
}

// NewFileStore creates the backing directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{path: filepath.Join(dir, guestFileName)}, nil
}

// Load returns the persisted guest id, empty when absent.
func (s *FileStore) Load() (string, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

// Save writes the guest id atomically.
func (s *FileStore) Save(id string) error {
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strings.TrimSpace(id)+"\n"), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
