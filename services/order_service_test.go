package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/database/mocks"
	"storefront/events"
	"storefront/models"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) ofType(t string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.EventType() == t {
			out = append(out, e)
		}
	}
	return out
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type orderFixture struct {
	svc       *OrderService
	orders    *mocks.OrderStore
	products  *mocks.ProductStore
	publisher *recordingPublisher
}

func newOrderFixture(products ...models.Product) *orderFixture {
	f := &orderFixture{
		orders:    mocks.NewOrderStore(),
		products:  mocks.NewProductStore(products...),
		publisher: &recordingPublisher{},
	}
	f.svc = NewOrderService(f.orders, f.products, f.publisher, 0)
	f.svc.nowFunc = func() time.Time { return fixedNow }
	return f
}

func (f *orderFixture) seedOrder(status models.Status, items ...models.OrderItem) primitive.ObjectID {
	return f.orders.Seed(models.Order{
		User:        primitive.NewObjectID(),
		OrderItems:  items,
		OrderStatus: status,
		CreatedAt:   fixedNow,
	})
}

// ============================================================================
// Transitions
// ============================================================================

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to models.Status
		want     bool
	}{
		{models.StatusProcessing, models.StatusShipped, true},
		{models.StatusProcessing, models.StatusCancelled, true},
		{models.StatusProcessing, models.StatusDelivered, false},
		{models.StatusProcessing, models.StatusProcessing, false},
		{models.StatusShipped, models.StatusDelivered, true},
		{models.StatusShipped, models.StatusCancelled, true},
		{models.StatusShipped, models.StatusProcessing, false},
		{models.StatusDelivered, models.StatusShipped, false},
		{models.StatusCancelled, models.StatusProcessing, false},
		{models.StatusCancelled, models.StatusShipped, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

// ============================================================================
// UpdateStatus
// ============================================================================

func TestOrderService_UpdateStatus_ShipDecrementsStock(t *testing.T) {
	f := newOrderFixture()
	p1 := f.products.Seed(models.Product{Name: "Lens", Stock: 10})
	p2 := f.products.Seed(models.Product{Name: "Tripod", Stock: 3})
	id := f.seedOrder(models.StatusProcessing,
		models.OrderItem{Product: p1, Quantity: 2},
		models.OrderItem{Product: p2, Quantity: 1},
	)

	order, err := f.svc.UpdateStatus(context.Background(), id, "Shipped")
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, order.OrderStatus)

	lens, _ := f.products.Get(p1)
	tripod, _ := f.products.Get(p2)
	assert.Equal(t, 8, lens.Stock)
	assert.Equal(t, 2, tripod.Stock)
	assert.Len(t, f.products.DecrementCalls, 2)

	stored, _ := f.orders.Get(id)
	assert.Equal(t, models.StatusShipped, stored.OrderStatus)
	assert.Nil(t, stored.DeliveredAt)

	changed := f.publisher.ofType(events.TypeOrderStatusChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, events.OrderStatusChanged{
		OrderID:    id.Hex(),
		From:       "Processing",
		To:         "Shipped",
		OccurredAt: fixedNow,
	}, changed[0])
}

func TestOrderService_UpdateStatus_ShipRefreshesTopProducts(t *testing.T) {
	f := newOrderFixture()
	p1 := f.products.Seed(models.Product{Name: "Lens", Stock: 10, Ratings: 5})
	catalog := newCatalog(f.products, newMemoryCache())
	f.svc.OnStockChange(catalog.InvalidateTop)
	ctx := context.Background()

	top, err := catalog.Top(ctx)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, 10, top[0].Stock)

	id := f.seedOrder(models.StatusProcessing, models.OrderItem{Product: p1, Quantity: 4})
	_, err = f.svc.UpdateStatus(ctx, id, "Shipped")
	require.NoError(t, err)

	top, err = catalog.Top(ctx)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, 6, top[0].Stock)
}

func TestOrderService_UpdateStatus_CancelLeavesTopProductsCached(t *testing.T) {
	f := newOrderFixture()
	mem := newMemoryCache()
	catalog := newCatalog(f.products, mem)
	f.svc.OnStockChange(catalog.InvalidateTop)

	id := f.seedOrder(models.StatusProcessing)
	_, err := f.svc.UpdateStatus(context.Background(), id, "Cancelled")
	require.NoError(t, err)
	assert.Zero(t, mem.deletes)
}

func TestOrderService_UpdateStatus_StockFloorsAtZero(t *testing.T) {
	f := newOrderFixture()
	pid := f.products.Seed(models.Product{Name: "Last one", Stock: 1})
	id := f.seedOrder(models.StatusProcessing, models.OrderItem{Product: pid, Quantity: 5})

	_, err := f.svc.UpdateStatus(context.Background(), id, "Shipped")
	require.NoError(t, err)

	p, _ := f.products.Get(pid)
	assert.Equal(t, 0, p.Stock)
}

func TestOrderService_UpdateStatus_MissingProductIsSkipped(t *testing.T) {
	f := newOrderFixture()
	id := f.seedOrder(models.StatusProcessing, models.OrderItem{Product: primitive.NewObjectID(), Quantity: 1})

	order, err := f.svc.UpdateStatus(context.Background(), id, "Shipped")
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, order.OrderStatus)
	assert.Empty(t, f.publisher.ofType(events.TypeInventoryDivergence))
}

func TestOrderService_UpdateStatus_DeliverStampsDeliveredAt(t *testing.T) {
	f := newOrderFixture()
	pid := f.products.Seed(models.Product{Stock: 4})
	id := f.seedOrder(models.StatusShipped, models.OrderItem{Product: pid, Quantity: 1})

	order, err := f.svc.UpdateStatus(context.Background(), id, "Delivered")
	require.NoError(t, err)
	require.NotNil(t, order.DeliveredAt)
	assert.Equal(t, fixedNow, *order.DeliveredAt)

	stored, _ := f.orders.Get(id)
	require.NotNil(t, stored.DeliveredAt)
	assert.Equal(t, fixedNow, *stored.DeliveredAt)

	p, _ := f.products.Get(pid)
	assert.Equal(t, 4, p.Stock, "only shipping touches stock")
}

func TestOrderService_UpdateStatus_DeliveredIsTerminal(t *testing.T) {
	f := newOrderFixture()
	id := f.seedOrder(models.StatusDelivered)

	for _, target := range []string{"Processing", "Shipped", "Delivered", "Cancelled"} {
		_, err := f.svc.UpdateStatus(context.Background(), id, target)
		assert.ErrorIs(t, err, ErrAlreadyDelivered, target)
		assert.ErrorIs(t, err, ErrInvalidState, target)
	}
	assert.Empty(t, f.orders.StatusUpdateCalls)
}

func TestOrderService_UpdateStatus_CancelledIsTerminal(t *testing.T) {
	f := newOrderFixture()
	id := f.seedOrder(models.StatusCancelled)

	_, err := f.svc.UpdateStatus(context.Background(), id, "Shipped")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Empty(t, f.products.DecrementCalls)
}

func TestOrderService_UpdateStatus_ProcessingCannotSkipToDelivered(t *testing.T) {
	f := newOrderFixture()
	id := f.seedOrder(models.StatusProcessing)

	_, err := f.svc.UpdateStatus(context.Background(), id, "Delivered")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), "from Processing to Delivered")
}

func TestOrderService_UpdateStatus_UnknownStatus(t *testing.T) {
	f := newOrderFixture()
	id := f.seedOrder(models.StatusProcessing)

	for _, target := range []string{"", "shipped", "Refunded"} {
		_, err := f.svc.UpdateStatus(context.Background(), id, target)
		assert.ErrorIs(t, err, ErrInvalidStatus, target)
		assert.ErrorIs(t, err, ErrInvalidInput, target)
	}
}

func TestOrderService_UpdateStatus_NotFound(t *testing.T) {
	f := newOrderFixture()

	_, err := f.svc.UpdateStatus(context.Background(), primitive.NewObjectID(), "Shipped")
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOrderService_UpdateStatus_ConcurrentWriterWins(t *testing.T) {
	f := newOrderFixture()
	pid := f.products.Seed(models.Product{Stock: 10})
	id := f.seedOrder(models.StatusProcessing, models.OrderItem{Product: pid, Quantity: 3})
	f.orders.BeforeUpdate = func(o *models.Order) {
		o.OrderStatus = models.StatusShipped
	}

	_, err := f.svc.UpdateStatus(context.Background(), id, "Shipped")
	assert.ErrorIs(t, err, ErrConcurrentUpdate)

	p, _ := f.products.Get(pid)
	assert.Equal(t, 10, p.Stock)
	assert.Empty(t, f.products.DecrementCalls)
	assert.Empty(t, f.publisher.events)
}

func TestOrderService_UpdateStatus_InventoryFailureAfterStatusWrite(t *testing.T) {
	f := newOrderFixture()
	p1 := f.products.Seed(models.Product{Stock: 10})
	p2 := f.products.Seed(models.Product{Stock: 10})
	id := f.seedOrder(models.StatusProcessing,
		models.OrderItem{Product: p1, Quantity: 1},
		models.OrderItem{Product: p2, Quantity: 2},
	)
	f.products.DecrementErr = errors.New("connection reset")

	order, err := f.svc.UpdateStatus(context.Background(), id, "Shipped")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInventoryDivergence)
	require.NotNil(t, order)
	assert.Equal(t, models.StatusShipped, order.OrderStatus)

	stored, _ := f.orders.Get(id)
	assert.Equal(t, models.StatusShipped, stored.OrderStatus, "status write is not rolled back")
	assert.Len(t, f.products.DecrementCalls, 2, "every item is attempted")

	divergences := f.publisher.ofType(events.TypeInventoryDivergence)
	require.Len(t, divergences, 2)
	assert.Equal(t, p1.Hex(), divergences[0].(events.InventoryDivergence).ProductID)
	assert.Equal(t, 2, divergences[1].(events.InventoryDivergence).Quantity)
}

func TestOrderService_UpdateStatus_ShippedToCancelledKeepsStock(t *testing.T) {
	f := newOrderFixture()
	pid := f.products.Seed(models.Product{Stock: 7})
	id := f.seedOrder(models.StatusShipped, models.OrderItem{Product: pid, Quantity: 2})

	order, err := f.svc.UpdateStatus(context.Background(), id, "Cancelled")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, order.OrderStatus)

	p, _ := f.products.Get(pid)
	assert.Equal(t, 7, p.Stock)
}

func TestOrderService_UpdateStatus_PublishFailureDoesNotFail(t *testing.T) {
	f := newOrderFixture()
	f.publisher.err = errors.New("broker down")
	id := f.seedOrder(models.StatusProcessing)

	_, err := f.svc.UpdateStatus(context.Background(), id, "Cancelled")
	assert.NoError(t, err)
}

// ============================================================================
// Create / checkout
// ============================================================================

func validCheckout() models.CheckoutRequest {
	return models.CheckoutRequest{
		ShippingInfo: models.ShippingInfo{
			Address: "1 Main St", City: "Pune", State: "MH", Country: "IN", PinCode: "411001", PhoneNo: "9999999999",
		},
		OrderItems: []models.OrderItem{
			{Name: "Lens", Quantity: 2, Price: 19.99, Product: primitive.NewObjectID()},
			{Name: "Cap", Quantity: 1, Price: 0.1, Product: primitive.NewObjectID()},
		},
		PaymentInfo:   models.PaymentInfo{ID: "pi_1", Status: "succeeded"},
		ItemsPrice:    40.08,
		TaxPrice:      7.21,
		ShippingPrice: 0,
		TotalPrice:    47.29,
	}
}

func TestOrderService_Create(t *testing.T) {
	f := newOrderFixture()
	user := primitive.NewObjectID()

	order, err := f.svc.Create(context.Background(), user, validCheckout())
	require.NoError(t, err)
	assert.False(t, order.ID.IsZero())
	assert.Equal(t, user, order.User)
	assert.Equal(t, models.StatusProcessing, order.OrderStatus)
	require.NotNil(t, order.PaidAt)
	assert.Equal(t, fixedNow, *order.PaidAt)
	assert.Equal(t, fixedNow, order.CreatedAt)

	stored, ok := f.orders.Get(order.ID)
	require.True(t, ok)
	assert.Len(t, stored.OrderItems, 2)
}

func TestValidateCheckout(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *models.CheckoutRequest)
		wantErr error
	}{
		{"valid", func(r *models.CheckoutRequest) {}, nil},
		{"no items", func(r *models.CheckoutRequest) { r.OrderItems = nil }, ErrEmptyOrder},
		{"zero quantity", func(r *models.CheckoutRequest) { r.OrderItems[0].Quantity = 0 }, ErrInvalidQuantity},
		{"items sum off", func(r *models.CheckoutRequest) { r.ItemsPrice = 40.07 }, ErrPriceMismatch},
		{"total off", func(r *models.CheckoutRequest) { r.TotalPrice = 50 }, ErrPriceMismatch},
		{"shipping counted", func(r *models.CheckoutRequest) {
			r.ShippingPrice = 5
			r.TotalPrice = 52.29
		}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCheckout()
			tt.mutate(&req)
			err := ValidateCheckout(req)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestOrderService_Create_StoreError(t *testing.T) {
	f := newOrderFixture()
	f.orders.Err = errors.New("write concern")

	_, err := f.svc.Create(context.Background(), primitive.NewObjectID(), validCheckout())
	assert.ErrorContains(t, err, "write concern")
}

// ============================================================================
// Reads
// ============================================================================

func TestOrderService_Get_OwnerOrAdmin(t *testing.T) {
	f := newOrderFixture()
	owner := primitive.NewObjectID()
	id := f.orders.Seed(models.Order{User: owner, OrderStatus: models.StatusProcessing})

	_, err := f.svc.Get(context.Background(), id, Requester{UserID: owner})
	assert.NoError(t, err)

	_, err = f.svc.Get(context.Background(), id, Requester{UserID: primitive.NewObjectID(), Admin: true})
	assert.NoError(t, err)

	_, err = f.svc.Get(context.Background(), id, Requester{UserID: primitive.NewObjectID()})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Get(context.Background(), primitive.NewObjectID(), Requester{Admin: true})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderService_ListAll_TotalsAmount(t *testing.T) {
	f := newOrderFixture()
	f.orders.Seed(models.Order{TotalPrice: 10.1})
	f.orders.Seed(models.Order{TotalPrice: 20.2})

	orders, total, err := f.svc.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 2)
	assert.Equal(t, 30.3, total)
}

func TestOrderService_ListByUser(t *testing.T) {
	f := newOrderFixture()
	user := primitive.NewObjectID()
	f.orders.Seed(models.Order{User: user})
	f.orders.Seed(models.Order{User: primitive.NewObjectID()})

	orders, err := f.svc.ListByUser(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, user, orders[0].User)
}

func TestOrderService_Recent(t *testing.T) {
	f := newOrderFixture()
	buyer := f.orders.AddUser(models.User{Name: "Asha", Email: "asha@example.com"})
	for i := 0; i < 12; i++ {
		f.orders.Seed(models.Order{User: buyer, CreatedAt: fixedNow.Add(time.Duration(i) * time.Hour)})
	}

	recent, err := f.svc.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recent, 10)
	assert.Equal(t, fixedNow.Add(11*time.Hour), recent[0].CreatedAt)
	assert.Equal(t, "Asha", recent[0].UserName)
	assert.Equal(t, "asha@example.com", recent[0].UserEmail)
	for i := 1; i < len(recent); i++ {
		assert.True(t, recent[i-1].CreatedAt.After(recent[i].CreatedAt))
	}

	recent, err = f.svc.Recent(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, recent, 3)
}

func TestOrderService_Delete(t *testing.T) {
	f := newOrderFixture()
	id := f.seedOrder(models.StatusProcessing)

	require.NoError(t, f.svc.Delete(context.Background(), id))
	_, ok := f.orders.Get(id)
	assert.False(t, ok)

	assert.ErrorIs(t, f.svc.Delete(context.Background(), id), ErrOrderNotFound)
}

func TestOrderService_Stats(t *testing.T) {
	f := newOrderFixture(
		models.Product{Stock: 0},
		models.Product{Stock: 5},
		models.Product{Stock: 0},
	)
	f.orders.Seed(models.Order{OrderStatus: models.StatusProcessing, TotalPrice: 100})
	f.orders.Seed(models.Order{OrderStatus: models.StatusDelivered, TotalPrice: 50.5})
	f.orders.Seed(models.Order{OrderStatus: models.StatusDelivered, TotalPrice: 0.25})

	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalOrders)
	assert.Equal(t, 150.75, stats.TotalSales)
	assert.Equal(t, 1, stats.ByStatus[models.StatusProcessing])
	assert.Equal(t, 2, stats.ByStatus[models.StatusDelivered])
	assert.Equal(t, 3, stats.ProductCount)
	assert.Equal(t, 2, stats.OutOfStock)
}
