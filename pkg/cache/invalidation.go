package cache

import (
	"net/http"
)

// CacheManager owns the response cache of the model endpoints.
type CacheManager struct {
	models *LRUCache
}

// NewCacheManager creates a CacheManager from the given configuration.
// If cfg is nil or disabled, it returns nil; a nil manager is valid and
// caches nothing.
func NewCacheManager(cfg *CacheConfig) *CacheManager {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	return &CacheManager{
		models: NewLRUCache(cfg.MaxSize, cfg.ModelsTTL),
	}
}

// InvalidateAll clears every cached response. It is called after each
// successful refresh.
func (cm *CacheManager) InvalidateAll() {
	if cm == nil {
		return
	}
	cm.models.InvalidateAll()
}

// ModelsMiddleware returns HTTP middleware caching model responses. A nil
// manager returns a pass-through middleware.
func (cm *CacheManager) ModelsMiddleware() func(http.Handler) http.Handler {
	if cm == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return CacheMiddleware(cm.models)
}
