package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/models"
	"storefront/query"
)

// DecrementCall records parameters passed to DecrementStock
type DecrementCall struct {
	ProductID primitive.ObjectID
	Quantity  int
}

// ProductStore is an in-memory product collection that evaluates predicates
// the same way the Mongo store's filters would.
type ProductStore struct {
	mu       sync.RWMutex
	products []*models.Product

	// Err, when set, is returned by every method.
	Err error
	// DecrementErr, when set, is returned by DecrementStock only.
	DecrementErr error

	DecrementCalls []DecrementCall
	CountCalls     []query.Predicate
	FindCalls      []query.FindOptions
}

func NewProductStore(products ...models.Product) *ProductStore {
	s := &ProductStore{}
	for i := range products {
		s.Seed(products[i])
	}
	return s
}

// Seed inserts p, assigning an id when it has none.
func (s *ProductStore) Seed(p models.Product) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.products = append(s.products, &p)
	return p.ID
}

// Get returns a copy of the stored product for assertions.
func (s *ProductStore) Get(id primitive.ObjectID) (models.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p := s.find(id); p != nil {
		return clone(p), true
	}
	return models.Product{}, false
}

func (s *ProductStore) find(id primitive.ObjectID) *models.Product {
	for _, p := range s.products {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *ProductStore) Count(ctx context.Context, pred query.Predicate) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CountCalls = append(s.CountCalls, pred)
	if s.Err != nil {
		return 0, s.Err
	}
	var n int64
	for _, p := range s.products {
		if pred.Matches(ProductDocument(*p)) {
			n++
		}
	}
	return n, nil
}

func (s *ProductStore) Find(ctx context.Context, pred query.Predicate, opts query.FindOptions) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FindCalls = append(s.FindCalls, opts)
	if s.Err != nil {
		return nil, s.Err
	}

	var matched []models.Product
	for _, p := range s.products {
		if pred.Matches(ProductDocument(*p)) {
			matched = append(matched, clone(p))
		}
	}
	sortProducts(matched, opts.Sort)

	if opts.Skip > 0 {
		if opts.Skip >= int64(len(matched)) {
			return []models.Product{}, nil
		}
		matched = matched[opts.Skip:]
	}
	if opts.Limit > 0 && opts.Limit < int64(len(matched)) {
		matched = matched[:opts.Limit]
	}
	return matched, nil
}

func (s *ProductStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	p := s.find(id)
	if p == nil {
		return nil, nil
	}
	cp := clone(p)
	return &cp, nil
}

func (s *ProductStore) Insert(ctx context.Context, p *models.Product) error {
	if s.Err != nil {
		return s.Err
	}
	p.ID = s.Seed(*p)
	return nil
}

func (s *ProductStore) Update(ctx context.Context, id primitive.ObjectID, patch models.ProductPatch) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	p := s.find(id)
	if p == nil {
		return nil, nil
	}
	patch.Apply(p)
	p.UpdatedAt = time.Now()
	cp := clone(p)
	return &cp, nil
}

func (s *ProductStore) UpdateReviews(ctx context.Context, p *models.Product) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	stored := s.find(p.ID)
	if stored == nil {
		return false, nil
	}
	stored.Reviews = append([]models.Review(nil), p.Reviews...)
	stored.Ratings = p.Ratings
	stored.NumOfReviews = p.NumOfReviews
	return true, nil
}

func (s *ProductStore) Delete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	for i, p := range s.products {
		if p.ID == id {
			s.products = append(s.products[:i], s.products[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *ProductStore) DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DecrementCalls = append(s.DecrementCalls, DecrementCall{ProductID: id, Quantity: qty})
	if s.Err != nil {
		return false, s.Err
	}
	if s.DecrementErr != nil {
		return false, s.DecrementErr
	}
	p := s.find(id)
	if p == nil {
		return false, nil
	}
	p.Stock -= qty
	if p.Stock < 0 {
		p.Stock = 0
	}
	return true, nil
}

// clone copies p so callers cannot reach the stored review slice.
func clone(p *models.Product) models.Product {
	cp := *p
	cp.Reviews = append([]models.Review(nil), p.Reviews...)
	cp.Images = append([]models.Image(nil), p.Images...)
	return cp
}

// ProductDocument flattens a product into the field names used in filters.
func ProductDocument(p models.Product) map[string]any {
	doc := map[string]any{
		"_id":          p.ID.Hex(),
		"name":         p.Name,
		"description":  p.Description,
		"price":        p.Price,
		"category":     p.Category,
		"stock":        p.Stock,
		"ratings":      p.Ratings,
		"numOfReviews": p.NumOfReviews,
		"seller":       p.Seller,
	}
	if p.DiscountPrice != nil {
		doc["discountPrice"] = *p.DiscountPrice
	}
	return doc
}

// sortProducts orders products stably; "_id" keeps insertion order.
func sortProducts(products []models.Product, fields []query.SortField) {
	sort.SliceStable(products, func(i, j int) bool {
		a, b := ProductDocument(products[i]), ProductDocument(products[j])
		for _, f := range fields {
			if f.Field == "_id" {
				continue
			}
			c := compare(a[f.Field], b[f.Field])
			if c == 0 {
				continue
			}
			if f.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compare(a, b any) int {
	fa, aok := number(a)
	fb, bok := number(b)
	if aok && bok {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	sa, _ := a.(string)
	sb, _ := b.(string)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	}
	return 0
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}
