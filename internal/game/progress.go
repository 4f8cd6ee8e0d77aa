package game

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/google/uuid"
)

// Progress is the locally persisted game position, used to restore the
// question index after a reconnect into the same room.
type Progress struct {
	RoomID        uuid.UUID `json:"room_id"`
	QuestionIndex int       `json:"question_index"`
	SavedAt       time.Time `json:"saved_at"`
}

// ProgressCache persists Progress between runs of one client. It is
// strictly local state; other clients never see it.
type ProgressCache interface {
	Load() (*Progress, error)
	Save(Progress) error
	Clear() error
}

// FileProgressCache stores progress as a JSON file next to the identity
// cache. Unparseable content is discarded.
type FileProgressCache struct {
	Path string
}

var _ ProgressCache = (*FileProgressCache)(nil)

func (c *FileProgressCache) Load() (*Progress, error) {
	data, err := os.ReadFile(c.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		_ = c.Clear()
		return nil, nil
	}
	return &p, nil
}

func (c *FileProgressCache) Save(p Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(c.Path, data, 0o600)
}

func (c *FileProgressCache) Clear() error {
	err := os.Remove(c.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// MemoryProgressCache holds progress in memory only, for tests and
// throwaway sessions.
type MemoryProgressCache struct {
	p *Progress
}

var _ ProgressCache = (*MemoryProgressCache)(nil)

func (c *MemoryProgressCache) Load() (*Progress, error) { return c.p, nil }

func (c *MemoryProgressCache) Save(p Progress) error {
	c.p = &p
	return nil
}

func (c *MemoryProgressCache) Clear() error {
	c.p = nil
	return nil
}
