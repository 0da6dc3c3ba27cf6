package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/showcase/api/internal/platform/firestore"
	"github.com/showcase/api/internal/repositories"
)

// Registry wires the Firestore repositories behind repositories.Registry.
type Registry struct {
	provider   *pfirestore.Provider
	catalogs   *CatalogRepository
	businesses *BusinessRepository
	activity   *ActivityRepository
	health     repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds every Firestore repository on top of provider. health is supplied
// by the caller because its probes span more than Firestore.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}
	catalogs, err := NewCatalogRepository(provider)
	if err != nil {
		return nil, err
	}
	businesses, err := NewBusinessRepository(provider)
	if err != nil {
		return nil, err
	}
	activity, err := NewActivityRepository(provider)
	if err != nil {
		return nil, err
	}
	return &Registry{
		provider:   provider,
		catalogs:   catalogs,
		businesses: businesses,
		activity:   activity,
		health:     health,
	}, nil
}

func (r *Registry) Catalogs() repositories.CatalogRepository   { return r.catalogs }
func (r *Registry) Businesses() repositories.BusinessRepository { return r.businesses }
func (r *Registry) Activity() repositories.ActivityRepository   { return r.activity }
func (r *Registry) Health() repositories.HealthRepository       { return r.health }

// Close releases the Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}
