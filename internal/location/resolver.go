// Package location resolves the region/city/commune hierarchy consumed by
// the report and summary flows.
package location

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rebuildcl/inspector/internal/api"
	"github.com/rebuildcl/inspector/internal/models"
)

// Resolver performs the cascading location lookups.
type Resolver struct {
	client *api.Client
	logger *zap.Logger
}

// NewResolver creates a location resolver over the given backend client.
func NewResolver(client *api.Client, logger *zap.Logger) *Resolver {
	return &Resolver{client: client, logger: logger}
}

type regionsResponse struct {
	Regions []models.Location `json:"regions"`
}

type citiesResponse struct {
	Cities []models.Location `json:"cities"`
}

type communesResponse struct {
	Communes []models.Location `json:"communes"`
}

// Regions lists all regions.
func (r *Resolver) Regions(ctx context.Context) ([]models.Location, error) {
	var payload regionsResponse
	if err := r.client.GetJSON(ctx, "/locations/regions", &payload); err != nil {
		return nil, fmt.Errorf("fetch regions: %w", err)
	}
	return payload.Regions, nil
}

// Cities lists the cities of a region.
func (r *Resolver) Cities(ctx context.Context, regionID string) ([]models.Location, error) {
	var payload citiesResponse
	path := fmt.Sprintf("/locations/cities?regionId=%s", regionID)
	if err := r.client.GetJSON(ctx, path, &payload); err != nil {
		return nil, fmt.Errorf("fetch cities: %w", err)
	}
	return payload.Cities, nil
}

// Communes lists the communes of a city.
func (r *Resolver) Communes(ctx context.Context, cityID string) ([]models.Location, error) {
	var payload communesResponse
	path := fmt.Sprintf("/locations/communes?cityId=%s", cityID)
	if err := r.client.GetJSON(ctx, path, &payload); err != nil {
		return nil, fmt.Errorf("fetch communes: %w", err)
	}
	return payload.Communes, nil
}

// Hierarchy resolves the three levels by id in one call, for screens that
// only hold the ids.
type Hierarchy struct {
	Region  *models.Location
	City    *models.Location
	Commune *models.Location
}

// Resolve walks the cascade and picks the nodes matching the given ids.
// Nodes that cannot be found are left nil rather than failing the whole
// resolution.
func (r *Resolver) Resolve(ctx context.Context, regionID, cityID, communeID string) (Hierarchy, error) {
	var h Hierarchy

	regions, err := r.Regions(ctx)
	if err != nil {
		return h, err
	}
	h.Region = findLocation(regions, regionID)

	if regionID != "" {
		cities, err := r.Cities(ctx, regionID)
		if err != nil {
			return h, err
		}
		h.City = findLocation(cities, cityID)
	}

	if cityID != "" {
		communes, err := r.Communes(ctx, cityID)
		if err != nil {
			return h, err
		}
		h.Commune = findLocation(communes, communeID)
	}

	return h, nil
}

func findLocation(list []models.Location, id string) *models.Location {
	for i := range list {
		if list[i].ID == id {
			return &list[i]
		}
	}
	return nil
}
