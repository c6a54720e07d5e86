package model

type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "nuevo"
	OrderStatusPaid       OrderStatus = "pagado"
	OrderStatusProcessing OrderStatus = "procesando"
	OrderStatusShipped    OrderStatus = "enviado"
	OrderStatusDelivered  OrderStatus = "entregado"
	OrderStatusCancelled  OrderStatus = "cancelado"
)

var orderStatusRank = map[OrderStatus]int{
	OrderStatusNew:        0,
	OrderStatusPaid:       1,
	OrderStatusProcessing: 2,
	OrderStatusShipped:    3,
	OrderStatusDelivered:  4,
}

func (s OrderStatus) Valid() bool {
	if s == OrderStatusCancelled {
		return true
	}
	_, ok := orderStatusRank[s]
	return ok
}

// Terminal reports whether no further transition is allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo enforces the forward-only lifecycle
// nuevo -> pagado -> procesando -> enviado -> entregado, with cancelado
// reachable from any non-terminal state.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == OrderStatusCancelled {
		return true
	}
	from, ok := orderStatusRank[s]
	if !ok {
		return false
	}
	to, ok := orderStatusRank[next]
	if !ok {
		return false
	}
	return to == from+1
}

// NextStock applies a sale of quantity units to the given stock level.
// With backorders allowed the result is clamped at zero; otherwise a short
// stock is rejected with ErrInsufficientStock.
func NextStock(previous, quantity int, allowBackorder bool) (int, error) {
	next := previous - quantity
	if next < 0 {
		if !allowBackorder {
			return 0, ErrInsufficientStock
		}
		next = 0
	}
	return next, nil
}
