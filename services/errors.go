package services

import (
	"errors"
	"fmt"
)

// Base errors; callers classify with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
)

var (
	ErrOrderNotFound   = fmt.Errorf("order %w", ErrNotFound)
	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)
	ErrReviewNotFound  = fmt.Errorf("review %w", ErrNotFound)

	ErrAlreadyDelivered  = fmt.Errorf("%w: order has already been delivered", ErrInvalidState)
	ErrInvalidTransition = fmt.Errorf("%w: status transition not allowed", ErrInvalidState)
	ErrConcurrentUpdate  = fmt.Errorf("%w: order status changed concurrently", ErrInvalidState)

	ErrInvalidStatus   = fmt.Errorf("%w: unknown order status", ErrInvalidInput)
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	ErrPriceMismatch   = fmt.Errorf("%w: price breakdown does not add up", ErrInvalidInput)
	ErrInvalidCategory = fmt.Errorf("%w: unknown category", ErrInvalidInput)
	ErrInvalidRating   = fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	ErrEmptyOrder      = fmt.Errorf("%w: order has no items", ErrInvalidInput)

	// ErrInventoryDivergence means an order was shipped but its stock could
	// not be fully decremented.
	ErrInventoryDivergence = errors.New("inventory divergence")
)
