package session

import (
	"errors"
	"fmt"
	"sync"

	"go.etcd.io/bbolt"
)

const (
	// StorageKey is the fixed key the session blob lives under.
	StorageKey = "gmp_session"
	bucketName = "session"
)

var ErrNoSession = errors.New("no session")

// Storage persists the serialized session blob.
type Storage interface {
	Load() ([]byte, error)
	Save(blob []byte) error
	Clear() error
}

type MemoryStorage struct {
	mu   sync.Mutex
	blob []byte
}

func NewMemoryStorage() *MemoryStorage { return &MemoryStorage{} }

func (m *MemoryStorage) Load() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blob == nil {
		return nil, ErrNoSession
	}
	return append([]byte(nil), m.blob...), nil
}

func (m *MemoryStorage) Save(blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob = append([]byte(nil), blob...)
	return nil
}

func (m *MemoryStorage) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob = nil
	return nil
}

// BoltStorage keeps the blob in a bbolt file so it survives between gmpctl
// invocations.
type BoltStorage struct {
	db *bbolt.DB
}

func OpenBoltStorage(path string) (*BoltStorage, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}
	return &BoltStorage{db: db}, nil
}

func (s *BoltStorage) Close() error {
	return s.db.Close()
}

func (s *BoltStorage) Load() ([]byte, error) {
	var blob []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return ErrNoSession
		}
		data := b.Get([]byte(StorageKey))
		if data == nil {
			return ErrNoSession
		}
		blob = append([]byte(nil), data...)
		return nil
	})
	return blob, err
}

func (s *BoltStorage) Save(blob []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		if err != nil {
			return err
		}
		return b.Put([]byte(StorageKey), blob)
	})
}

func (s *BoltStorage) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(StorageKey))
	})
}
