package state

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/types"
)

var (
	// Bucket names
	bucketInstances = []byte("instances")
)

// BoltStore implements Store using BoltDB. Handles are keyed by instance
// name, matching the external supervisor contract for stopping instances.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the state database under the workspace
func NewBoltStore(workspace string) (*BoltStore, error) {
	dbPath := filepath.Join(workspace, "state.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketInstances); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketInstances, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// SaveHandle records (or replaces) the handle for an instance
func (s *BoltStore) SaveHandle(handle *types.VMProcessHandle) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketInstances)
		data, err := json.Marshal(handle)
		if err != nil {
			return err
		}
		return b.Put([]byte(handle.Instance), data)
	})
}

// GetHandle retrieves the handle for an instance by name
func (s *BoltStore) GetHandle(instance string) (*types.VMProcessHandle, error) {
	var handle types.VMProcessHandle
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketInstances)
		data := b.Get([]byte(instance))
		if data == nil {
			return fmt.Errorf("instance not found: %s", instance)
		}
		return json.Unmarshal(data, &handle)
	})
	if err != nil {
		return nil, err
	}
	return &handle, nil
}

// ListHandles returns all recorded handles
func (s *BoltStore) ListHandles() ([]*types.VMProcessHandle, error) {
	var handles []*types.VMProcessHandle
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketInstances)
		return b.ForEach(func(k, v []byte) error {
			var handle types.VMProcessHandle
			if err := json.Unmarshal(v, &handle); err != nil {
				return err
			}
			handles = append(handles, &handle)
			return nil
		})
	})
	return handles, err
}

// DeleteHandle removes the handle for an instance
func (s *BoltStore) DeleteHandle(instance string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketInstances)
		return b.Delete([]byte(instance))
	})
}
