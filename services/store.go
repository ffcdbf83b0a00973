package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/models"
	"storefront/query"
)

// Lookups return (nil, nil) when nothing matches; the services turn that
// into a NotFound error.

type StockStore interface {
	// DecrementStock lowers stock by qty, flooring at zero, and reports
	// whether the product exists.
	DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) (bool, error)
}

type ProductStore interface {
	query.Catalog
	StockStore
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	Insert(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, id primitive.ObjectID, patch models.ProductPatch) (*models.Product, error)
	UpdateReviews(ctx context.Context, p *models.Product) (bool, error)
	Delete(ctx context.Context, id primitive.ObjectID) (bool, error)
}

type OrderStore interface {
	Insert(ctx context.Context, o *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	FindByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error)
	FindAll(ctx context.Context) ([]models.Order, error)
	Recent(ctx context.Context, limit int) ([]models.RecentOrder, error)
	// UpdateStatus sets the status to `to` only while it is still `from`.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.Status, deliveredAt *time.Time) (bool, error)
	Delete(ctx context.Context, id primitive.ObjectID) (bool, error)
}

// Requester identifies the caller of an owner-or-admin operation.
type Requester struct {
	UserID primitive.ObjectID
	Admin  bool
}

func (r Requester) canAccess(owner primitive.ObjectID) bool {
	return r.Admin || r.UserID == owner
}
