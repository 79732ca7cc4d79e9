package ledger

// SeedOrder registers an order collaborator row when using the in-memory
// engine. Orders are owned by the trip platform, not by the ledger, so tests
// and development mode seed them directly.
func SeedOrder(e Engine, order Order) {
	if mem, ok := e.(*memoryEngine); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		o := order
		mem.orders[order.ID] = &o
	}
}
