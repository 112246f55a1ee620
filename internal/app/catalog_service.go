/**
 * @description
 * Reference-data logic: shop products, cities, event types and the admin
 * dashboard counters. All thin pass-throughs with error translation; the
 * interesting behavior lives in the registration and payment services.
 */
package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/domain"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/store"
)

// CatalogStore defines the database operations the catalog service needs.
type CatalogStore interface {
	CreateProduct(ctx context.Context, p *domain.Product) error
	UpdateProduct(ctx context.Context, p *domain.Product) error
	DeleteProduct(ctx context.Context, id string) error
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error)

	CreateCity(ctx context.Context, c *domain.City) error
	ListCities(ctx context.Context) ([]domain.City, error)
	DeleteCity(ctx context.Context, id string) error

	CreateEventType(ctx context.Context, t *domain.EventType) error
	ListEventTypes(ctx context.Context) ([]domain.EventType, error)
	DeleteEventType(ctx context.Context, id string) error

	GetAdminStats(ctx context.Context) (*domain.AdminStats, error)
}

// CatalogService implements products, cities, event types and admin stats.
type CatalogService struct {
	store  CatalogStore
	logger *slog.Logger
}

// NewCatalogService creates the catalog service.
func NewCatalogService(st CatalogStore, logger *slog.Logger) *CatalogService {
	return &CatalogService{store: st, logger: logger}
}

// ListProducts returns products; the public view hides inactive listings.
func (s *CatalogService) ListProducts(ctx context.Context, includeInactive bool) ([]domain.Product, error) {
	return s.store.ListProducts(ctx, !includeInactive)
}

// CreateProduct adds a shop product.
func (s *CatalogService) CreateProduct(ctx context.Context, req domain.CreateProductRequest) (*domain.Product, error) {
	currency := req.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	product := &domain.Product{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Currency:    currency,
		Stock:       req.Stock,
		Active:      req.Active,
	}
	if err := s.store.CreateProduct(ctx, product); err != nil {
		return nil, err
	}
	s.logger.Info("product created", "product_id", product.ID, "name", product.Name)
	return product, nil
}

// UpdateProduct edits a product.
func (s *CatalogService) UpdateProduct(ctx context.Context, id string, req domain.CreateProductRequest) (*domain.Product, error) {
	current, err := s.store.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			return nil, domain.NotFound("product_not_found", "product not found")
		}
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = current.Currency
	}
	product := &domain.Product{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Currency:    currency,
		Stock:       req.Stock,
		Active:      req.Active,
	}
	if err := s.store.UpdateProduct(ctx, product); err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			return nil, domain.NotFound("product_not_found", "product not found")
		}
		return nil, err
	}
	return s.store.GetProduct(ctx, id)
}

// DeleteProduct removes a product.
func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		if errors.Is(err, store.ErrProductNotFound) {
			return domain.NotFound("product_not_found", "product not found")
		}
		return err
	}
	return nil
}

// ListCities returns all cities.
func (s *CatalogService) ListCities(ctx context.Context) ([]domain.City, error) {
	return s.store.ListCities(ctx)
}

// CreateCity adds a city.
func (s *CatalogService) CreateCity(ctx context.Context, req domain.CreateCityRequest) (*domain.City, error) {
	city := &domain.City{ID: uuid.NewString(), Name: req.Name}
	if err := s.store.CreateCity(ctx, city); err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			return nil, domain.Conflict("city_exists", "a city with this name already exists")
		}
		return nil, err
	}
	return city, nil
}

// DeleteCity removes a city.
func (s *CatalogService) DeleteCity(ctx context.Context, id string) error {
	if err := s.store.DeleteCity(ctx, id); err != nil {
		if errors.Is(err, store.ErrCityNotFound) {
			return domain.NotFound("city_not_found", "city not found")
		}
		return err
	}
	return nil
}

// ListEventTypes returns all event types.
func (s *CatalogService) ListEventTypes(ctx context.Context) ([]domain.EventType, error) {
	return s.store.ListEventTypes(ctx)
}

// CreateEventType adds an event type.
func (s *CatalogService) CreateEventType(ctx context.Context, req domain.CreateEventTypeRequest) (*domain.EventType, error) {
	et := &domain.EventType{ID: uuid.NewString(), Name: req.Name, Description: req.Description}
	if err := s.store.CreateEventType(ctx, et); err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			return nil, domain.Conflict("event_type_exists", "an event type with this name already exists")
		}
		return nil, err
	}
	return et, nil
}

// DeleteEventType removes an event type.
func (s *CatalogService) DeleteEventType(ctx context.Context, id string) error {
	if err := s.store.DeleteEventType(ctx, id); err != nil {
		if errors.Is(err, store.ErrEventTypeNotFound) {
			return domain.NotFound("event_type_not_found", "event type not found")
		}
		return err
	}
	return nil
}

// Stats returns the admin dashboard counters.
func (s *CatalogService) Stats(ctx context.Context) (*domain.AdminStats, error) {
	return s.store.GetAdminStats(ctx)
}
