package transit

import (
	"context"
	"errors"
	"sync"
)

type memoryRepository struct {
	mu     sync.RWMutex
	byCode map[string]Route
}

// NewMemoryRepository constructs an in-memory route store for tests and dev mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{byCode: make(map[string]Route)}
}

func (r *memoryRepository) Create(_ context.Context, route Route) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byCode[route.Code]; exists {
		return errors.New("route code already exists")
	}
	r.byCode[route.Code] = route
	return nil
}

func (r *memoryRepository) FindByCode(_ context.Context, code string) (Route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	route, ok := r.byCode[code]
	if !ok {
		return Route{}, ErrNotFound
	}
	return route, nil
}
