// Package catalog resolves the APU price catalog the inspector selects
// line-item categories from. The catalog is fetched once and looked up
// locally afterwards; a failed fetch blocks category selection until the
// caller retries.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/rebuildcl/inspector/internal/api"
	"github.com/rebuildcl/inspector/internal/models"
)

// ErrCatalogUnavailable is returned when the catalog cannot be fetched or
// the response is not a well-formed collection.
var ErrCatalogUnavailable = errors.New("price catalog unavailable")

// ErrEntryNotFound is returned by lookups against a loaded catalog.
var ErrEntryNotFound = errors.New("catalog entry not found")

// Resolver fetches and caches the APU catalog.
type Resolver struct {
	client *api.Client
	logger *zap.Logger

	mu      sync.RWMutex
	entries []models.CatalogEntry
	loaded  bool
}

// NewResolver creates a catalog resolver over the given backend client.
func NewResolver(client *api.Client, logger *zap.Logger) *Resolver {
	return &Resolver{client: client, logger: logger}
}

// List fetches the full catalog and caches it. Safe to call again as a
// retry after a failure.
func (r *Resolver) List(ctx context.Context) ([]models.CatalogEntry, error) {
	var payload models.APUListResponse
	if err := r.client.GetJSON(ctx, "/apus", &payload); err != nil {
		r.logger.Error("Failed to fetch APU catalog", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	if payload.APUs == nil {
		return nil, fmt.Errorf("%w: response is not a catalog collection", ErrCatalogUnavailable)
	}

	entries := make([]models.CatalogEntry, 0, len(payload.APUs))
	for _, record := range payload.APUs {
		entries = append(entries, record.Entry())
	}

	r.mu.Lock()
	r.entries = entries
	r.loaded = true
	r.mu.Unlock()

	r.logger.Info("APU catalog loaded", zap.Int("entries", len(entries)))
	return entries, nil
}

// Loaded reports whether a catalog fetch has succeeded this session.
func (r *Resolver) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// FindByName looks up a cached entry by display name, case-insensitively.
// Pure local lookup; no network call.
func (r *Resolver) FindByName(name string) (models.CatalogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, entry := range r.entries {
		if strings.EqualFold(entry.Name, name) {
			return entry, nil
		}
	}
	return models.CatalogEntry{}, fmt.Errorf("%w: %q", ErrEntryNotFound, name)
}

// FindByID looks up a cached entry by id.
func (r *Resolver) FindByID(id string) (models.CatalogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, entry := range r.entries {
		if entry.ID == id {
			return entry, nil
		}
	}
	return models.CatalogEntry{}, fmt.Errorf("%w: id %q", ErrEntryNotFound, id)
}
