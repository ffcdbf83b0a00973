package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/cache"
	"storefront/models"
	"storefront/query"
)

const topProductsKey = "products:top"

type CatalogConfig struct {
	PageSize   int
	TopLimit   int
	Categories []string
	CacheTTL   time.Duration
}

// CatalogService owns products and their reviews.
type CatalogService struct {
	products   ProductStore
	pipeline   *query.Pipeline
	cache      cache.Store
	cacheTTL   time.Duration
	categories map[string]bool
	nowFunc    func() time.Time
}

func NewCatalogService(products ProductStore, store cache.Store, cfg CatalogConfig) *CatalogService {
	if store == nil {
		store = cache.Noop{}
	}
	categories := make(map[string]bool, len(cfg.Categories))
	for _, c := range cfg.Categories {
		categories[c] = true
	}
	return &CatalogService{
		products: products,
		pipeline: query.NewPipeline(products, query.Settings{
			PageSize: cfg.PageSize,
			TopLimit: cfg.TopLimit,
		}),
		cache:      store,
		cacheTTL:   cfg.CacheTTL,
		categories: categories,
		nowFunc:    time.Now,
	}
}

func (s *CatalogService) Pipeline() *query.Pipeline { return s.pipeline }

// ValidCategory reports whether name is one of the configured categories.
func (s *CatalogService) ValidCategory(name string) bool {
	return s.categories[name]
}

// List runs the public listing described by the request's query values.
func (s *CatalogService) List(ctx context.Context, values url.Values) (*query.Result, error) {
	q := s.pipeline.FromValues(values)
	if ignored := q.Predicate().Ignored; len(ignored) > 0 {
		slog.DebugContext(ctx, "ignored listing parameters", "params", ignored)
	}
	return q.Execute(ctx)
}

// Top returns the best rated products, served from the cache when possible.
func (s *CatalogService) Top(ctx context.Context) ([]models.Product, error) {
	var cached []models.Product
	hit, err := s.cache.Get(ctx, topProductsKey, &cached)
	if err != nil {
		slog.WarnContext(ctx, "top products cache read failed", "err", err)
	}
	if hit {
		return cached, nil
	}

	products, err := s.pipeline.Top(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, topProductsKey, products, s.cacheTTL); err != nil {
		slog.WarnContext(ctx, "top products cache write failed", "err", err)
	}
	return products, nil
}

// InvalidateTop drops the cached top products list. Failures are logged.
func (s *CatalogService) InvalidateTop(ctx context.Context) {
	if err := s.cache.Delete(ctx, topProductsKey); err != nil {
		slog.WarnContext(ctx, "top products cache invalidation failed", "err", err)
	}
}

func (s *CatalogService) Get(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	if p == nil {
		return nil, ErrProductNotFound
	}
	return p, nil
}

// ListAll returns the whole catalog for the admin view.
func (s *CatalogService) ListAll(ctx context.Context) ([]models.Product, error) {
	products, err := s.products.Find(ctx, query.Predicate{}, query.FindOptions{
		Sort: []query.SortField{{Field: "_id"}},
	})
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (s *CatalogService) Create(ctx context.Context, creator primitive.ObjectID, in models.ProductInput) (*models.Product, error) {
	if !s.ValidCategory(in.Category) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, in.Category)
	}
	p := in.Product()
	p.User = creator
	p.CreatedAt = s.nowFunc()
	p.UpdatedAt = p.CreatedAt
	if err := s.products.Insert(ctx, &p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	s.InvalidateTop(ctx)
	return &p, nil
}

func (s *CatalogService) Update(ctx context.Context, id primitive.ObjectID, patch models.ProductPatch) (*models.Product, error) {
	if patch.Category != nil && !s.ValidCategory(*patch.Category) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, *patch.Category)
	}
	p, err := s.products.Update(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	if p == nil {
		return nil, ErrProductNotFound
	}
	s.InvalidateTop(ctx)
	return p, nil
}

func (s *CatalogService) Delete(ctx context.Context, id primitive.ObjectID) error {
	ok, err := s.products.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if !ok {
		return ErrProductNotFound
	}
	s.InvalidateTop(ctx)
	return nil
}

// UpsertReview stores the author's review of a product, replacing an earlier
// one by the same user, and recomputes the product rating.
func (s *CatalogService) UpsertReview(ctx context.Context, productID primitive.ObjectID, author models.User, in models.ReviewInput) (*models.Product, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRating, in.Rating)
	}
	p, err := s.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	p.UpsertReview(models.Review{
		User:      author.ID,
		Name:      author.Name,
		Rating:    in.Rating,
		Comment:   in.Comment,
		CreatedAt: s.nowFunc(),
	})
	if err := s.saveReviews(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) Reviews(ctx context.Context, productID primitive.ObjectID) ([]models.Review, error) {
	p, err := s.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p.Reviews == nil {
		return []models.Review{}, nil
	}
	return p.Reviews, nil
}

// DeleteReview removes reviewer's review. Only the reviewer or an admin may do so.
func (s *CatalogService) DeleteReview(ctx context.Context, productID, reviewer primitive.ObjectID, who Requester) (*models.Product, error) {
	if !who.canAccess(reviewer) {
		return nil, ErrForbidden
	}
	p, err := s.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.RemoveReview(reviewer) {
		return nil, ErrReviewNotFound
	}
	if err := s.saveReviews(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) saveReviews(ctx context.Context, p *models.Product) error {
	ok, err := s.products.UpdateReviews(ctx, p)
	if err != nil {
		return fmt.Errorf("save reviews: %w", err)
	}
	if !ok {
		return ErrProductNotFound
	}
	s.InvalidateTop(ctx)
	return nil
}
