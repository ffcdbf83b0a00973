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
	"storefront/query"
)

// ProductStore persists products in a Mongo collection.
type ProductStore struct {
	coll *mongo.Collection
}

func NewProductStore(coll *mongo.Collection) *ProductStore {
	return &ProductStore{coll: coll}
}

func (s *ProductStore) Count(ctx context.Context, pred query.Predicate) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, ToBSON(pred))
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func (s *ProductStore) Find(ctx context.Context, pred query.Predicate, opts query.FindOptions) ([]models.Product, error) {
	findOpts := options.Find()
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}
	if sort := SortDocument(opts.Sort); sort != nil {
		findOpts.SetSort(sort)
	}

	cursor, err := s.coll.Find(ctx, ToBSON(pred), findOpts)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	products := []models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	return products, nil
}

// FindByID returns nil without error when no product has the id.
func (s *ProductStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var p models.Product
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find product %s: %w", id.Hex(), err)
	}
	return &p, nil
}

func (s *ProductStore) Insert(ctx context.Context, p *models.Product) error {
	res, err := s.coll.InsertOne(ctx, p)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		p.ID = id
	}
	return nil
}

func (s *ProductStore) Update(ctx context.Context, id primitive.ObjectID, patch models.ProductPatch) (*models.Product, error) {
	set := patchDocument(patch)
	set["updatedAt"] = time.Now()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Product
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update product %s: %w", id.Hex(), err)
	}
	return &updated, nil
}

func patchDocument(patch models.ProductPatch) bson.M {
	set := bson.M{}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Price != nil {
		set["price"] = *patch.Price
	}
	if patch.DiscountPrice != nil {
		set["discountPrice"] = *patch.DiscountPrice
	}
	if patch.Category != nil {
		set["category"] = *patch.Category
	}
	if patch.Stock != nil {
		set["stock"] = *patch.Stock
	}
	if patch.Images != nil {
		set["images"] = patch.Images
	}
	if patch.Seller != nil {
		set["seller"] = *patch.Seller
	}
	return set
}

// UpdateReviews writes the review list and the derived rating fields of p.
func (s *ProductStore) UpdateReviews(ctx context.Context, p *models.Product) (bool, error) {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{"$set": bson.M{
		"reviews":      p.Reviews,
		"ratings":      p.Ratings,
		"numOfReviews": p.NumOfReviews,
		"updatedAt":    time.Now(),
	}})
	if err != nil {
		return false, fmt.Errorf("update reviews of %s: %w", p.ID.Hex(), err)
	}
	return res.MatchedCount > 0, nil
}

func (s *ProductStore) Delete(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("delete product %s: %w", id.Hex(), err)
	}
	return res.DeletedCount > 0, nil
}

// DecrementStock subtracts qty from the product's stock in a single update,
// never going below zero. It reports false when the product does not exist.
func (s *ProductStore) DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) (bool, error) {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"stock": bson.M{"$max": bson.A{0, bson.M{"$subtract": bson.A{"$stock", qty}}}},
		}}},
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return false, fmt.Errorf("decrement stock of %s: %w", id.Hex(), err)
	}
	return res.MatchedCount > 0, nil
}
