package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/events"
	"storefront/models"
	"storefront/query"
)

const defaultRecentLimit = 10

var transitions = map[models.Status][]models.Status{
	models.StatusProcessing: {models.StatusShipped, models.StatusCancelled},
	models.StatusShipped:    {models.StatusDelivered, models.StatusCancelled},
	models.StatusDelivered:  {},
	models.StatusCancelled:  {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to models.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type OrderService struct {
	orders      OrderStore
	products    ProductStore
	inventory   *Inventory
	publisher   events.Publisher
	recentLimit int
	nowFunc     func() time.Time

	stockChanged func(context.Context)
}

func NewOrderService(orders OrderStore, products ProductStore, publisher events.Publisher, recentLimit int) *OrderService {
	if recentLimit <= 0 {
		recentLimit = defaultRecentLimit
	}
	return &OrderService{
		orders:      orders,
		products:    products,
		inventory:   NewInventory(products),
		publisher:   publisher,
		recentLimit: recentLimit,
		nowFunc:     time.Now,
	}
}

// OnStockChange registers fn to run after shipping an order has touched
// product stock, so readers holding product snapshots can refresh them.
func (s *OrderService) OnStockChange(fn func(context.Context)) {
	s.stockChanged = fn
}

// UpdateStatus moves an order to target. Shipping an order decrements the
// stock of every line item once the new status is stored; delivering it
// stamps deliveredAt.
func (s *OrderService) UpdateStatus(ctx context.Context, id primitive.ObjectID, target string) (*models.Order, error) {
	to, err := models.ParseStatus(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, target)
	}

	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	from := order.OrderStatus
	if from == models.StatusDelivered {
		return nil, ErrAlreadyDelivered
	}
	if !CanTransition(from, to) {
		return nil, fmt.Errorf("%w: cannot change status from %s to %s", ErrInvalidTransition, from, to)
	}

	now := s.nowFunc()
	var deliveredAt *time.Time
	if to == models.StatusDelivered {
		deliveredAt = &now
	}

	ok, err := s.orders.UpdateStatus(ctx, id, from, to, deliveredAt)
	if err != nil {
		return nil, fmt.Errorf("store order status: %w", err)
	}
	if !ok {
		return nil, ErrConcurrentUpdate
	}
	order.OrderStatus = to
	if deliveredAt != nil {
		order.DeliveredAt = deliveredAt
	}

	var divergence error
	if to == models.StatusShipped {
		divergence = s.shipItems(ctx, order)
		if s.stockChanged != nil {
			s.stockChanged(ctx)
		}
	}

	s.publish(ctx, events.OrderStatusChanged{
		OrderID:    order.ID.Hex(),
		From:       string(from),
		To:         string(to),
		OccurredAt: now,
	})

	if divergence != nil {
		return order, divergence
	}
	return order, nil
}

// shipItems decrements stock for every line item. A failed item does not
// stop the others; each failure is logged and published.
func (s *OrderService) shipItems(ctx context.Context, order *models.Order) error {
	var errs []error
	for _, item := range order.OrderItems {
		err := s.inventory.Decrement(ctx, item.Product, item.Quantity)
		if err == nil {
			continue
		}
		slog.ErrorContext(ctx, "inventory divergence",
			"order", order.ID.Hex(),
			"product", item.Product.Hex(),
			"quantity", item.Quantity,
			"err", err,
		)
		s.publish(ctx, events.InventoryDivergence{
			OrderID:    order.ID.Hex(),
			ProductID:  item.Product.Hex(),
			Quantity:   item.Quantity,
			Reason:     err.Error(),
			OccurredAt: s.nowFunc(),
		})
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: order %s: %w", ErrInventoryDivergence, order.ID.Hex(), errors.Join(errs...))
}

func (s *OrderService) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		slog.WarnContext(ctx, "publish event failed", "type", e.EventType(), "key", e.Key(), "err", err)
	}
}

// Create places an order for userID from the submitted snapshot. The price
// breakdown must add up to the cent.
func (s *OrderService) Create(ctx context.Context, userID primitive.ObjectID, req models.CheckoutRequest) (*models.Order, error) {
	if err := ValidateCheckout(req); err != nil {
		return nil, err
	}

	now := s.nowFunc()
	order := &models.Order{
		User:          userID,
		ShippingInfo:  req.ShippingInfo,
		OrderItems:    req.OrderItems,
		PaymentInfo:   req.PaymentInfo,
		PaidAt:        &now,
		ItemsPrice:    req.ItemsPrice,
		TaxPrice:      req.TaxPrice,
		ShippingPrice: req.ShippingPrice,
		TotalPrice:    req.TotalPrice,
		OrderStatus:   models.StatusProcessing,
		CreatedAt:     now,
	}
	if err := s.orders.Insert(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return order, nil
}

// ValidateCheckout checks item quantities and that itemsPrice is the sum of
// the line totals and totalPrice is items plus tax plus shipping.
func ValidateCheckout(req models.CheckoutRequest) error {
	if len(req.OrderItems) == 0 {
		return ErrEmptyOrder
	}
	items := decimal.Zero
	for _, item := range req.OrderItems {
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %q has quantity %d", ErrInvalidQuantity, item.Name, item.Quantity)
		}
		line := decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity)))
		items = items.Add(line)
	}

	itemsPrice := decimal.NewFromFloat(req.ItemsPrice)
	if !items.Round(2).Equal(itemsPrice.Round(2)) {
		return fmt.Errorf("%w: items price %s, line items sum to %s", ErrPriceMismatch, itemsPrice.StringFixed(2), items.StringFixed(2))
	}
	total := itemsPrice.
		Add(decimal.NewFromFloat(req.TaxPrice)).
		Add(decimal.NewFromFloat(req.ShippingPrice))
	if !total.Round(2).Equal(decimal.NewFromFloat(req.TotalPrice).Round(2)) {
		return fmt.Errorf("%w: total price %.2f, expected %s", ErrPriceMismatch, req.TotalPrice, total.StringFixed(2))
	}
	return nil
}

// Get returns an order its owner or an admin may see.
func (s *OrderService) Get(ctx context.Context, id primitive.ObjectID, who Requester) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if !who.canAccess(order.User) {
		return nil, ErrForbidden
	}
	return order, nil
}

func (s *OrderService) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	orders, err := s.orders.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders of user: %w", err)
	}
	return orders, nil
}

// ListAll returns every order and the sum of their totals.
func (s *OrderService) ListAll(ctx context.Context) ([]models.Order, float64, error) {
	orders, err := s.orders.FindAll(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(decimal.NewFromFloat(o.TotalPrice))
	}
	return orders, total.Round(2).InexactFloat64(), nil
}

// Recent returns the newest orders with buyer details. A limit of zero or
// less uses the configured default.
func (s *OrderService) Recent(ctx context.Context, limit int) ([]models.RecentOrder, error) {
	if limit <= 0 {
		limit = s.recentLimit
	}
	orders, err := s.orders.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) Delete(ctx context.Context, id primitive.ObjectID) error {
	ok, err := s.orders.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if !ok {
		return ErrOrderNotFound
	}
	return nil
}

// Stats summarises orders and stock for the admin dashboard.
func (s *OrderService) Stats(ctx context.Context) (*models.OrderStats, error) {
	orders, total, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	stats := &models.OrderStats{
		TotalOrders: len(orders),
		TotalSales:  total,
		ByStatus:    make(map[models.Status]int, len(transitions)),
	}
	for _, o := range orders {
		stats.ByStatus[o.OrderStatus]++
	}

	products, err := s.products.Count(ctx, query.Predicate{})
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	outOfStock, err := s.products.Count(ctx, query.Predicate{
		Equals: []query.Equality{{Field: "stock", Value: float64(0)}},
	})
	if err != nil {
		return nil, fmt.Errorf("count out of stock products: %w", err)
	}
	stats.ProductCount = int(products)
	stats.OutOfStock = int(outOfStock)
	return stats, nil
}
