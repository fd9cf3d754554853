package hierarchy

import (
	"fmt"
	"time"

	"github.com/ggoodman/typehierarchy-go/typehierarchy"
)

// Snapshot is the serializable form of a Model. The provider is referenced by
// registration id.
type Snapshot struct {
	ID         string               `json:"id"`
	ProviderID string               `json:"providerId"`
	Roots      []typehierarchy.Item `json:"roots"`
	CreatedAt  time.Time            `json:"createdAt"`
}

// Snapshot captures the model.
func (m *Model) Snapshot() Snapshot {
	return Snapshot{
		ID:         m.id,
		ProviderID: m.providerID,
		Roots:      m.Roots(),
		CreatedAt:  m.createdAt,
	}
}

// Restore rebuilds a model from a snapshot, binding it to the provider that
// is currently registered under the snapshot's provider id. The restored
// model does not become current.
func (r *Registry) Restore(s Snapshot) (*Model, error) {
	p, ok := r.Lookup(s.ProviderID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, s.ProviderID)
	}
	return newModel(s.ProviderID, p, s.Roots, s.CreatedAt, r.logger())
}
