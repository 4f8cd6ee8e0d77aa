package identity

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
)

// Cache persists the logged-in identity between runs. Load returns nil
// when nobody is logged in; a record that fails to parse is cleared and
// treated the same way.
type Cache interface {
	Load() (*User, error)
	Save(User) error
	Clear() error
}

// FileCache keeps the identity as a JSON file, the local-storage analog
// for a terminal client.
type FileCache struct {
	Path string
}

var _ Cache = (*FileCache)(nil)

func (c *FileCache) Load() (*User, error) {
	data, err := os.ReadFile(c.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		// Corrupt cache means logged out, not an error.
		_ = c.Clear()
		return nil, nil
	}
	return &u, nil
}

func (c *FileCache) Save(u User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return os.WriteFile(c.Path, data, 0o600)
}

func (c *FileCache) Clear() error {
	err := os.Remove(c.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
