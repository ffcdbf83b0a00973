package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/models"
)

// OrderStore persists orders in a Mongo collection.
type OrderStore struct {
	coll *mongo.Collection
}

func NewOrderStore(coll *mongo.Collection) *OrderStore {
	return &OrderStore{coll: coll}
}

func (s *OrderStore) Insert(ctx context.Context, o *models.Order) error {
	res, err := s.coll.InsertOne(ctx, o)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		o.ID = id
	}
	return nil
}

// FindByID returns nil without error when no order has the id.
func (s *OrderStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	var o models.Order
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find order %s: %w", id.Hex(), err)
	}
	return &o, nil
}

func (s *OrderStore) FindByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	return s.find(ctx, bson.M{"user": userID})
}

func (s *OrderStore) FindAll(ctx context.Context) ([]models.Order, error) {
	return s.find(ctx, bson.M{})
}

func (s *OrderStore) find(ctx context.Context, filter bson.M) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return orders, nil
}

// Recent returns the newest orders joined with the name and email of the
// user who placed them.
func (s *OrderStore) Recent(ctx context.Context, limit int) ([]models.RecentOrder, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$lookup", Value: bson.M{
			"from":         UserCollection,
			"localField":   "user",
			"foreignField": "_id",
			"as":           "customer",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$customer", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$addFields", Value: bson.M{
			"userName":  "$customer.name",
			"userEmail": "$customer.email",
		}}},
		{{Key: "$project", Value: bson.M{"customer": 0}}},
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate recent orders: %w", err)
	}
	orders := []models.RecentOrder{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("decode recent orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus moves the order from one status to another only if it is
// still in the expected one. It reports false when the order is missing or
// another writer changed its status first.
func (s *OrderStore) UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.Status, deliveredAt *time.Time) (bool, error) {
	set := bson.M{"orderStatus": to}
	if deliveredAt != nil {
		set["deliveredAt"] = *deliveredAt
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id, "orderStatus": from}, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("update status of order %s: %w", id.Hex(), err)
	}
	return res.MatchedCount > 0, nil
}

func (s *OrderStore) Delete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("delete order %s: %w", id.Hex(), err)
	}
	return res.DeletedCount > 0, nil
}
