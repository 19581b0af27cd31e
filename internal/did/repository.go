package did

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNotFound is returned when no document is registered under a DID.
	ErrNotFound = errors.New("did not found")
	// errExists is returned by Create when the DID is already registered.
	errExists = errors.New("did exists")
)

// Repository persists DID documents.
type Repository interface {
	Create(ctx context.Context, doc Document) error
	FindByDID(ctx context.Context, id string) (Document, error)
}

type memoryRepository struct {
	mu   sync.RWMutex
	docs map[string]Document
}

// NewMemoryRepository builds an in-memory DID store.
func NewMemoryRepository() Repository {
	return &memoryRepository{docs: make(map[string]Document)}
}

func (r *memoryRepository) Create(_ context.Context, doc Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.docs[doc.DID]; exists {
		return errExists
	}
	r.docs[doc.DID] = doc
	return nil
}

func (r *memoryRepository) FindByDID(_ context.Context, id string) (Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}
