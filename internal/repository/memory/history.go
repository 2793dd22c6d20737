package memory

import (
	"context"
	"sync"

	"github.com/utafrali/apparel-discovery/internal/domain"
)

// History is an in-memory InteractionHistoryAccessor.
type History struct {
	mu       sync.RWMutex
	orders   map[string][]domain.OrderLine
	wishlist map[string][]string
	reviews  map[string][]domain.Review
}

// NewHistory creates an empty History.
func NewHistory() *History {
	return &History{
		orders:   make(map[string][]domain.OrderLine),
		wishlist: make(map[string][]string),
		reviews:  make(map[string][]domain.Review),
	}
}

// AddOrder records purchased lines for userID.
func (h *History) AddOrder(userID string, lines ...domain.OrderLine) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.orders[userID] = append(h.orders[userID], lines...)
}

// AddWishlist records saved slugs for userID.
func (h *History) AddWishlist(userID string, slugs ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.wishlist[userID] = append(h.wishlist[userID], slugs...)
}

// AddReview records a review by userID.
func (h *History) AddReview(userID string, reviews ...domain.Review) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reviews[userID] = append(h.reviews[userID], reviews...)
}

// OrdersFor returns a copy of userID's order lines.
func (h *History) OrdersFor(_ context.Context, userID string) ([]domain.OrderLine, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]domain.OrderLine{}, h.orders[userID]...), nil
}

// WishlistFor returns a copy of userID's wishlist.
func (h *History) WishlistFor(_ context.Context, userID string) ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]string{}, h.wishlist[userID]...), nil
}

// ReviewsFor returns a copy of userID's reviews.
func (h *History) ReviewsFor(_ context.Context, userID string) ([]domain.Review, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]domain.Review{}, h.reviews[userID]...), nil
}
