package helpers

import (
	"github.com/google/uuid"
)

// GroupBySeller groups items by seller id, preserving the order in which sellers first appear.
func GroupBySeller[T any](items []T, sellerOf func(T) uuid.UUID) ([]uuid.UUID, map[uuid.UUID][]T) {
	order := make([]uuid.UUID, 0)
	grouped := make(map[uuid.UUID][]T)
	for _, item := range items {
		sellerID := sellerOf(item)
		if _, ok := grouped[sellerID]; !ok {
			order = append(order, sellerID)
		}
		grouped[sellerID] = append(grouped[sellerID], item)
	}
	return order, grouped
}

// MergeQuantities folds repeated product lines into one, keeping first-seen order.
func MergeQuantities(ids []uuid.UUID, qty []int) ([]uuid.UUID, map[uuid.UUID]int) {
	order := make([]uuid.UUID, 0, len(ids))
	merged := make(map[uuid.UUID]int, len(ids))
	for i, id := range ids {
		if _, ok := merged[id]; !ok {
			order = append(order, id)
		}
		merged[id] += qty[i]
	}
	return order, merged
}
