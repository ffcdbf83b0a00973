package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Image struct {
	PublicID string `bson:"publicId" json:"publicId"`
	URL      string `bson:"url" json:"url" binding:"required,url"`
}

// Review is one customer's rating of a product. A user holds at most one review per product.
type Review struct {
	User      primitive.ObjectID `bson:"user" json:"user"`
	Name      string             `bson:"name" json:"name"`
	Rating    int                `bson:"rating" json:"rating"`
	Comment   string             `bson:"comment" json:"comment"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

type Product struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name          string             `bson:"name" json:"name"`
	Description   string             `bson:"description" json:"description"`
	Price         float64            `bson:"price" json:"price"`
	DiscountPrice *float64           `bson:"discountPrice,omitempty" json:"discountPrice,omitempty"`
	Category      string             `bson:"category" json:"category"`
	Stock         int                `bson:"stock" json:"stock"`
	Ratings       float64            `bson:"ratings" json:"ratings"`
	NumOfReviews  int                `bson:"numOfReviews" json:"numOfReviews"`
	Reviews       []Review           `bson:"reviews" json:"reviews"`
	Images        []Image            `bson:"images" json:"images"`
	Seller        string             `bson:"seller,omitempty" json:"seller,omitempty"`
	User          primitive.ObjectID `bson:"user,omitempty" json:"user,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// RecomputeRatings brings ratings and numOfReviews back in line with Reviews.
func (p *Product) RecomputeRatings() {
	p.NumOfReviews = len(p.Reviews)
	if p.NumOfReviews == 0 {
		p.Ratings = 0
		return
	}
	var sum int
	for _, r := range p.Reviews {
		sum += r.Rating
	}
	p.Ratings = float64(sum) / float64(p.NumOfReviews)
}

// UpsertReview replaces the review left by the same user, or appends a new one.
func (p *Product) UpsertReview(r Review) {
	for i := range p.Reviews {
		if p.Reviews[i].User == r.User {
			p.Reviews[i].Rating = r.Rating
			p.Reviews[i].Comment = r.Comment
			p.RecomputeRatings()
			return
		}
	}
	p.Reviews = append(p.Reviews, r)
	p.RecomputeRatings()
}

// RemoveReview drops the review written by user and reports whether one existed.
func (p *Product) RemoveReview(user primitive.ObjectID) bool {
	kept := p.Reviews[:0]
	removed := false
	for _, r := range p.Reviews {
		if r.User == user {
			removed = true
			continue
		}
		kept = append(kept, r)
	}
	p.Reviews = kept
	p.RecomputeRatings()
	return removed
}

// ProductPatch lists the fields an admin update may change; nil fields are left alone.
type ProductPatch struct {
	Name          *string  `json:"name"`
	Description   *string  `json:"description"`
	Price         *float64 `json:"price" binding:"omitempty,gte=0"`
	DiscountPrice *float64 `json:"discountPrice" binding:"omitempty,gte=0"`
	Category      *string  `json:"category" binding:"omitempty,category"`
	Stock         *int     `json:"stock" binding:"omitempty,gte=0"`
	Images        []Image  `json:"images" binding:"omitempty,dive"`
	Seller        *string  `json:"seller"`
}

// Apply copies the set fields of patch onto p.
func (patch ProductPatch) Apply(p *Product) {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.DiscountPrice != nil {
		d := *patch.DiscountPrice
		p.DiscountPrice = &d
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.Images != nil {
		p.Images = patch.Images
	}
	if patch.Seller != nil {
		p.Seller = *patch.Seller
	}
}

// ProductInput is the body of an admin product creation.
type ProductInput struct {
	Name          string   `json:"name" binding:"required"`
	Description   string   `json:"description" binding:"required"`
	Price         float64  `json:"price" binding:"gte=0"`
	DiscountPrice *float64 `json:"discountPrice" binding:"omitempty,gte=0"`
	Category      string   `json:"category" binding:"required,category"`
	Stock         int      `json:"stock" binding:"gte=0"`
	Images        []Image  `json:"images" binding:"omitempty,dive"`
	Seller        string   `json:"seller"`
}

// Product builds a new product with no reviews.
func (in ProductInput) Product() Product {
	return Product{
		Name:          in.Name,
		Description:   in.Description,
		Price:         in.Price,
		DiscountPrice: in.DiscountPrice,
		Category:      in.Category,
		Stock:         in.Stock,
		Reviews:       []Review{},
		Images:        in.Images,
		Seller:        in.Seller,
	}
}

// ReviewInput is the body of a review upsert.
type ReviewInput struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}
