package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/models"
)

// StatusUpdateCall records parameters passed to UpdateStatus
type StatusUpdateCall struct {
	OrderID     primitive.ObjectID
	From, To    models.Status
	DeliveredAt *time.Time
}

// OrderStore is an in-memory order collection with a users table for joins.
type OrderStore struct {
	mu     sync.RWMutex
	orders []*models.Order
	users  map[primitive.ObjectID]models.User

	Err error
	// BeforeUpdate runs inside UpdateStatus before the compare-and-swap, which
	// lets tests simulate a concurrent writer.
	BeforeUpdate func(o *models.Order)

	StatusUpdateCalls []StatusUpdateCall
}

func NewOrderStore() *OrderStore {
	return &OrderStore{users: make(map[primitive.ObjectID]models.User)}
}

func (s *OrderStore) AddUser(u models.User) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	s.users[u.ID] = u
	return u.ID
}

// Seed stores o as-is, assigning an id when it has none.
func (s *OrderStore) Seed(o models.Order) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	o.OrderItems = append([]models.OrderItem(nil), o.OrderItems...)
	s.orders = append(s.orders, &o)
	return o.ID
}

// Get returns a copy of the stored order for assertions.
func (s *OrderStore) Get(id primitive.ObjectID) (models.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if o := s.find(id); o != nil {
		return *o, true
	}
	return models.Order{}, false
}

func (s *OrderStore) find(id primitive.ObjectID) *models.Order {
	for _, o := range s.orders {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func (s *OrderStore) Insert(ctx context.Context, o *models.Order) error {
	if s.Err != nil {
		return s.Err
	}
	o.ID = s.Seed(*o)
	return nil
}

func (s *OrderStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	o := s.find(id)
	if o == nil {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (s *OrderStore) FindByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []models.Order{}
	for _, o := range s.orders {
		if o.User == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *OrderStore) FindAll(ctx context.Context) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (s *OrderStore) Recent(ctx context.Context, limit int) ([]models.RecentOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Err != nil {
		return nil, s.Err
	}
	sorted := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		sorted = append(sorted, *o)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	if limit > 0 && limit < len(sorted) {
		sorted = sorted[:limit]
	}
	out := make([]models.RecentOrder, 0, len(sorted))
	for _, o := range sorted {
		u := s.users[o.User]
		out = append(out, models.RecentOrder{Order: o, UserName: u.Name, UserEmail: u.Email})
	}
	return out, nil
}

func (s *OrderStore) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.Status, deliveredAt *time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StatusUpdateCalls = append(s.StatusUpdateCalls, StatusUpdateCall{OrderID: id, From: from, To: to, DeliveredAt: deliveredAt})
	if s.Err != nil {
		return false, s.Err
	}
	o := s.find(id)
	if o == nil {
		return false, nil
	}
	if s.BeforeUpdate != nil {
		s.BeforeUpdate(o)
	}
	if o.OrderStatus != from {
		return false, nil
	}
	o.OrderStatus = to
	if deliveredAt != nil {
		o.DeliveredAt = deliveredAt
	}
	return true, nil
}

func (s *OrderStore) Delete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	for i, o := range s.orders {
		if o.ID == id {
			s.orders = append(s.orders[:i], s.orders[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}
