package redemption

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/nft-marketplace/backend/internal/models"
)

// Store keeps open workflows in memory, at most one per listing.
type Store struct {
	mu        sync.RWMutex
	flows     map[uuid.UUID]*Workflow
	byListing map[uint64]uuid.UUID
}

func NewStore() *Store {
	return &Store{
		flows:     make(map[uuid.UUID]*Workflow),
		byListing: make(map[uint64]uuid.UUID),
	}
}

// Put registers w, replacing any earlier workflow for the same listing.
func (s *Store) Put(w *Workflow) {
	d := w.Draft()
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.byListing[d.ListingID]; ok {
		delete(s.flows, prev)
	}
	s.flows[d.ID] = w
	s.byListing[d.ListingID] = d.ID
}

func (s *Store) Get(id uuid.UUID) (*Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.flows[id]
	if !ok {
		return nil, fmt.Errorf("%w: redemption %s", models.ErrNotFound, id)
	}
	return w, nil
}

// Abandon discards a workflow and everything entered into it.
func (s *Store) Abandon(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.flows[id]
	if !ok {
		return fmt.Errorf("%w: redemption %s", models.ErrNotFound, id)
	}
	s.remove(id, w)
	return nil
}

// AbandonOwner discards every workflow opened by owner. It returns how many
// were dropped.
func (s *Store) AbandonOwner(owner string) int {
	owner = models.NormalizeAddress(owner)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, w := range s.flows {
		if w.Draft().Owner == owner {
			s.remove(id, w)
			n++
		}
	}
	return n
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.flows)
}

func (s *Store) remove(id uuid.UUID, w *Workflow) {
	delete(s.flows, id)
	listingID := w.Draft().ListingID
	if s.byListing[listingID] == id {
		delete(s.byListing, listingID)
	}
}
