package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"flowsmartly-studio/core"

	"github.com/sirupsen/logrus"
)

// memStore keeps designs in process memory, keyed by owner then design id.
type memStore struct {
	mu      sync.RWMutex
	designs map[string]map[string]*core.Design
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{designs: make(map[string]map[string]*core.Design)}
}

// List returns metadata for all designs owned by a user.
func (s *memStore) List(ctx context.Context, ownerID string) ([]*core.Design, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owned, ok := s.designs[ownerID]
	if !ok {
		return []*core.Design{}, nil
	}

	designs := make([]*core.Design, 0, len(owned))
	for _, d := range owned {
		// List views never carry the page payloads.
		designs = append(designs, &core.Design{
			ID:        d.ID,
			OwnerID:   d.OwnerID,
			Name:      d.Name,
			Width:     d.Width,
			Height:    d.Height,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		})
	}
	logrus.WithField("owner_id", ownerID).Infof("Listed %d designs", len(designs))
	return designs, nil
}

// Get returns a single design by its ID, ensuring it belongs to the owner.
func (s *memStore) Get(ctx context.Context, ownerID, id string) (*core.Design, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owned, ok := s.designs[ownerID]
	if !ok {
		return nil, fmt.Errorf("design with id %s not found for user %s", id, ownerID)
	}
	d, ok := owned[id]
	if !ok {
		return nil, fmt.Errorf("design with id %s not found for user %s", id, ownerID)
	}
	return d, nil
}

// Save creates or updates a design for an owner.
func (s *memStore) Save(ctx context.Context, design *core.Design) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if design.OwnerID == "" {
		return fmt.Errorf("owner id cannot be empty")
	}
	if design.ID == "" {
		return fmt.Errorf("design id cannot be empty for save operation")
	}

	owned, ok := s.designs[design.OwnerID]
	if !ok {
		owned = make(map[string]*core.Design)
		s.designs[design.OwnerID] = owned
	}

	now := time.Now()
	if existing, exists := owned[design.ID]; exists {
		design.CreatedAt = existing.CreatedAt
	} else {
		design.CreatedAt = now
	}
	design.UpdatedAt = now

	owned[design.ID] = design
	logrus.WithFields(logrus.Fields{
		"owner_id":  design.OwnerID,
		"design_id": design.ID,
	}).Info("Design saved successfully")
	return nil
}

// Delete removes a design, ensuring it belongs to the owner.
func (s *memStore) Delete(ctx context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	owned, ok := s.designs[ownerID]
	if !ok {
		return fmt.Errorf("user %s has no designs", ownerID)
	}
	if _, ok := owned[id]; !ok {
		return fmt.Errorf("design with id %s not found for user %s", id, ownerID)
	}
	delete(owned, id)
	logrus.WithFields(logrus.Fields{
		"owner_id":  ownerID,
		"design_id": id,
	}).Info("Design deleted successfully")
	return nil
}
