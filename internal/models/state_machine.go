package models

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned for status changes outside the transition table
var ErrInvalidTransition = errors.New("invalid order status transition")

// ValidOrderTransitions defines valid state transitions for OrderStatus
// Flow: pending → created → confirmed → paid → processing → shipped → in_transit → delivered
// Remote syncs may skip forward stages. cancelled/failed are reachable before shipping,
// disputed is entered by the dispute manager.
var ValidOrderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusCreated, OrderStatusProcessing, OrderStatusShipped, OrderStatusFailed, OrderStatusCancelled},
	OrderStatusCreated:    {OrderStatusConfirmed, OrderStatusPaid, OrderStatusProcessing, OrderStatusShipped, OrderStatusCancelled, OrderStatusFailed},
	OrderStatusConfirmed:  {OrderStatusPaid, OrderStatusProcessing, OrderStatusShipped, OrderStatusCancelled, OrderStatusFailed},
	OrderStatusPaid:       {OrderStatusProcessing, OrderStatusShipped, OrderStatusInTransit, OrderStatusDelivered, OrderStatusCancelled, OrderStatusDisputed},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusInTransit, OrderStatusDelivered, OrderStatusCancelled, OrderStatusDisputed},
	OrderStatusShipped:    {OrderStatusInTransit, OrderStatusDelivered, OrderStatusDisputed},
	OrderStatusInTransit:  {OrderStatusDelivered, OrderStatusDisputed},
	OrderStatusDisputed:   {OrderStatusShipped, OrderStatusInTransit, OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:  {}, // Terminal state
	OrderStatusCancelled:  {}, // Terminal state
	OrderStatusFailed:     {}, // Terminal state
}

// CanTransitionOrderStatus checks if a transition from one order status to another is valid
func CanTransitionOrderStatus(from, to OrderStatus) bool {
	validTransitions, exists := ValidOrderTransitions[from]
	if !exists {
		return false
	}
	for _, validTo := range validTransitions {
		if validTo == to {
			return true
		}
	}
	return false
}

// ValidateOrderStatusTransition returns an error if the transition is invalid
func ValidateOrderStatusTransition(from, to OrderStatus) error {
	if !CanTransitionOrderStatus(from, to) {
		return fmt.Errorf("%w from %s to %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// IsTerminalOrderStatus checks if the order status is a terminal state
func IsTerminalOrderStatus(status OrderStatus) bool {
	return len(ValidOrderTransitions[status]) == 0
}

// IsShippedOrLater reports whether the parcel has left the supplier
func IsShippedOrLater(status OrderStatus) bool {
	switch status {
	case OrderStatusShipped, OrderStatusInTransit, OrderStatusDelivered:
		return true
	}
	return false
}

// IsCancellable reports whether a local cancellation is still allowed.
// disputed → cancelled stays in the table for remote syncs only.
func IsCancellable(status OrderStatus) bool {
	if status == OrderStatusDisputed || IsShippedOrLater(status) {
		return false
	}
	return CanTransitionOrderStatus(status, OrderStatusCancelled)
}

// orderStatusRank orders the main pipeline; side states have no rank.
var orderStatusRank = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusCreated:    1,
	OrderStatusConfirmed:  2,
	OrderStatusPaid:       3,
	OrderStatusProcessing: 4,
	OrderStatusShipped:    5,
	OrderStatusInTransit:  6,
	OrderStatusDelivered:  7,
}

// IsRegression reports whether moving between two pipeline states goes backwards
func IsRegression(from, to OrderStatus) bool {
	fr, okFrom := orderStatusRank[from]
	tr, okTo := orderStatusRank[to]
	return okFrom && okTo && tr < fr
}
