// Package modelcache defines bounded storage for hierarchy models.
//
// A Cache keeps at most its capacity of models keyed by model id and evicts
// in insertion order: the oldest inserted model goes first, regardless of how
// recently it was read. Putting a model whose id is already cached replaces
// it without changing its position.
//
// Implementations live in sub-packages: memory (process local) and redis
// (shared, rebinding providers through a hierarchy.Registry).
package modelcache

import (
	"context"
	"errors"

	"github.com/ggoodman/typehierarchy-go/hierarchy"
)

// DefaultCapacity is the number of models retained when no capacity is
// configured.
const DefaultCapacity = 10

// Cache is a bounded FIFO of models.
type Cache interface {
	// Put inserts or replaces a model, evicting the oldest entries while the
	// cache holds more than its capacity.
	Put(ctx context.Context, m *hierarchy.Model) error

	// Get returns the model cached under id. It returns (nil, nil) when absent
	// and an error only for backend failures.
	Get(ctx context.Context, id string) (*hierarchy.Model, error)

	// Keys returns cached ids, oldest first.
	Keys(ctx context.Context) ([]string, error)

	// Len returns the number of cached models.
	Len(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}

// ErrInvalidCapacity is returned by constructors given a capacity below 1.
var ErrInvalidCapacity = errors.New("modelcache: capacity must be positive")
