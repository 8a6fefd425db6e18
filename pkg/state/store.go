package state

import (
	"github.com/manzolo/qlab-plugin-ssh-lab/pkg/types"
)

// Store defines the persistence interface for launched instance handles
type Store interface {
	// SaveHandle records (or replaces) the handle for an instance
	SaveHandle(handle *types.VMProcessHandle) error

	// GetHandle retrieves the handle for an instance by name
	GetHandle(instance string) (*types.VMProcessHandle, error)

	// ListHandles returns all recorded handles
	ListHandles() ([]*types.VMProcessHandle, error)

	// DeleteHandle removes the handle for an instance
	DeleteHandle(instance string) error

	// Close closes the store
	Close() error
}
