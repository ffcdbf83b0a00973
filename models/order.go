package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Status string

const (
	StatusProcessing Status = "Processing"
	StatusShipped    Status = "Shipped"
	StatusDelivered  Status = "Delivered"
	StatusCancelled  Status = "Cancelled"
)

// ParseStatus accepts only the four order statuses, matched exactly.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

type ShippingInfo struct {
	Address string `bson:"address" json:"address" binding:"required"`
	City    string `bson:"city" json:"city" binding:"required"`
	State   string `bson:"state" json:"state" binding:"required"`
	Country string `bson:"country" json:"country" binding:"required"`
	PinCode string `bson:"pinCode" json:"pinCode" binding:"required"`
	PhoneNo string `bson:"phoneNo" json:"phoneNo" binding:"required"`
}

// OrderItem is a snapshot of the product taken at checkout; later product edits do not touch it.
type OrderItem struct {
	Name     string             `bson:"name" json:"name" binding:"required"`
	Quantity int                `bson:"quantity" json:"quantity" binding:"gte=1"`
	Image    string             `bson:"image" json:"image"`
	Price    float64            `bson:"price" json:"price" binding:"gte=0"`
	Product  primitive.ObjectID `bson:"product" json:"product"`
}

type PaymentInfo struct {
	ID     string `bson:"id" json:"id"`
	Status string `bson:"status" json:"status"`
}

type Order struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User          primitive.ObjectID `bson:"user" json:"user"`
	ShippingInfo  ShippingInfo       `bson:"shippingInfo" json:"shippingInfo"`
	OrderItems    []OrderItem        `bson:"orderItems" json:"orderItems"`
	PaymentInfo   PaymentInfo        `bson:"paymentInfo" json:"paymentInfo"`
	PaidAt        *time.Time         `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	ItemsPrice    float64            `bson:"itemsPrice" json:"itemsPrice"`
	TaxPrice      float64            `bson:"taxPrice" json:"taxPrice"`
	ShippingPrice float64            `bson:"shippingPrice" json:"shippingPrice"`
	TotalPrice    float64            `bson:"totalPrice" json:"totalPrice"`
	OrderStatus   Status             `bson:"orderStatus" json:"orderStatus"`
	DeliveredAt   *time.Time         `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}

// CheckoutRequest is the order snapshot a client submits at checkout.
type CheckoutRequest struct {
	ShippingInfo  ShippingInfo `json:"shippingInfo"`
	OrderItems    []OrderItem  `json:"orderItems" binding:"required,min=1,dive"`
	PaymentInfo   PaymentInfo  `json:"paymentInfo"`
	ItemsPrice    float64      `json:"itemsPrice" binding:"gte=0"`
	TaxPrice      float64      `json:"taxPrice" binding:"gte=0"`
	ShippingPrice float64      `json:"shippingPrice" binding:"gte=0"`
	TotalPrice    float64      `json:"totalPrice" binding:"gte=0"`
}

// RecentOrder is an order with its buyer's name and email joined in.
type RecentOrder struct {
	Order     `bson:",inline"`
	UserName  string `bson:"userName" json:"userName"`
	UserEmail string `bson:"userEmail" json:"userEmail"`
}

// OrderStats is the read-only sales summary shown on the admin dashboard.
type OrderStats struct {
	TotalOrders  int            `json:"totalOrders"`
	TotalSales   float64        `json:"totalSales"`
	ByStatus     map[Status]int `json:"byStatus"`
	OutOfStock   int            `json:"outOfStock"`
	ProductCount int            `json:"productCount"`
}
