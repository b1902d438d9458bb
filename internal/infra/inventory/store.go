package inventory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/mcp-defender/mcp-defender/internal/domain"
)

const toolsBucket = "tools"

var (
	ErrStoreClosed = errors.New("inventory store is closed")
	ErrNotFound    = errors.New("no inventory for server")
)

// Record is one registered tool snapshot for a target server. Registration
// replaces the previous snapshot wholesale; tools that disappeared from a
// server disappear from its record.
type Record struct {
	ID           string                  `json:"id"`
	AppName      string                  `json:"appName"`
	ServerName   string                  `json:"serverName"`
	Version      string                  `json:"version"`
	Tools        []domain.ToolDescriptor `json:"tools"`
	RegisteredAt time.Time               `json:"registeredAt"`
}

// Store persists discovered tool inventories so the decision service can
// audit what each server exposed, across restarts.
type Store struct {
	mu     sync.RWMutex
	db     *bolt.DB
	closed bool
}

func OpenStore(path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("inventory path is required")
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("ensure inventory dir: %w", err)
	}
	db, err := bolt.Open(trimmed, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open inventory db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(toolsBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure inventory schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Put replaces the inventory for a server and returns the stored record.
func (s *Store) Put(server domain.ServerInfo, tools []domain.ToolDescriptor) (Record, error) {
	record := Record{
		ID:           uuid.NewString(),
		AppName:      server.AppName,
		ServerName:   server.Name,
		Version:      server.Version,
		Tools:        tools,
		RegisteredAt: time.Now().UTC(),
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return Record{}, fmt.Errorf("encode inventory record: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Record{}, ErrStoreClosed
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(toolsBucket)).Put([]byte(recordKey(server)), payload)
	})
	if err != nil {
		return Record{}, fmt.Errorf("store inventory record: %w", err)
	}
	return record, nil
}

// Get returns the inventory for one server.
func (s *Store) Get(appName, serverName string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Record{}, ErrStoreClosed
	}
	var record Record
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(toolsBucket)).Get([]byte(recordKey(domain.ServerInfo{AppName: appName, Name: serverName})))
		if raw == nil {
			return ErrNotFound
		}
		return json.Unmarshal(raw, &record)
	})
	if err != nil {
		return Record{}, err
	}
	return record, nil
}

// List returns every stored inventory, most recent registration first.
func (s *Store) List() ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	var records []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(toolsBucket)).ForEach(func(_, value []byte) error {
			var record Record
			if err := json.Unmarshal(value, &record); err != nil {
				return err
			}
			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].RegisteredAt.After(records[j].RegisteredAt)
	})
	return records, nil
}

func recordKey(server domain.ServerInfo) string {
	app := server.AppName
	if app == "" {
		app = domain.DefaultAppName
	}
	return app + "/" + server.Name
}
