package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/volcengine/apminsight-tick-profiler-go/profiler/common"
)

// SessionStore persists the single session record across ticks. Load returns (nil, nil) when no
// session exists.
type SessionStore interface {
	Load(ctx context.Context) (*common.Session, error)
	Save(ctx context.Context, s *common.Session) error
	Clear(ctx context.Context) error
}

// Encode and Decode are the record layout shared by every backend.
func Encode(s *common.Session) ([]byte, error) {
	return json.Marshal(s)
}

func Decode(b []byte) (*common.Session, error) {
	if len(b) == 0 {
		return nil, nil
	}
	s := &common.Session{}
	if err := json.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.Map == nil {
		s.Map = common.FrameMap{}
	}
	return s, nil
}

// MemoryStore keeps the session in process. Save stores the pointer, so the controller's cached
// session and the stored one are the same value.
type MemoryStore struct {
	mu      sync.Mutex
	session *common.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(_ context.Context) (*common.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, nil
}

func (m *MemoryStore) Save(_ context.Context, s *common.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = s
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

// FileStore keeps the session as a JSON document on disk. Writes go to a temp file in the same
// directory and are renamed over the target.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load(_ context.Context) (*common.Session, error) {
	b, err := ioutil.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return Decode(b)
}

func (f *FileStore) Save(_ context.Context, s *common.Session) error {
	if s == nil {
		return f.Clear(context.Background())
	}
	b, err := Encode(s)
	if err != nil {
		return err
	}
	tmp, err := ioutil.TempFile(filepath.Dir(f.path), filepath.Base(f.path)+".tmp*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *FileStore) Clear(_ context.Context) error {
	err := os.Remove(f.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

var (
	_ SessionStore = &MemoryStore{}
	_ SessionStore = &FileStore{}
)
