package memory

import (
	"context"
	"sync"

	"github.com/xenking/kart-discounts/internal/domain/auth"
)

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository implements auth.Repository in memory.
type APIKeyRepository struct {
	mu     sync.RWMutex
	byHash map[string]auth.APIKeyInfo
}

// NewAPIKeyRepository returns an empty APIKeyRepository.
func NewAPIKeyRepository() *APIKeyRepository {
	return &APIKeyRepository{byHash: make(map[string]auth.APIKeyInfo)}
}

// FindByHash looks up an API key by its HMAC hash.
func (r *APIKeyRepository) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.byHash[hash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &info, nil
}

// Upsert stores info keyed by its hash.
func (r *APIKeyRepository) Upsert(_ context.Context, info *auth.APIKeyInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *info
	cp.Scopes = append([]string(nil), info.Scopes...)
	r.byHash[info.KeyHash] = cp
	return nil
}
