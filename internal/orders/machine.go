package orders

import (
	"fmt"
	"time"
)

// Validator decides whether a move between two known statuses is allowed.
type Validator interface {
	Allow(from, to Status) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(from, to Status) error

// Allow implements Validator.
func (f ValidatorFunc) Allow(from, to Status) error { return f(from, to) }

// PermissiveValidator allows backward moves and skips. Operators correct mistakes by moving an order back.
var PermissiveValidator Validator = ValidatorFunc(func(Status, Status) error { return nil })

// ForwardOnlyValidator rejects moves that go back in the pipeline, except into cancelled.
var ForwardOnlyValidator Validator = ValidatorFunc(func(from, to Status) error {
	if to == StatusCancelled {
		return nil
	}
	if from.IsTerminal() {
		return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, from)
	}
	if to.Rank() < from.Rank() {
		return fmt.Errorf("%w: %s -> %s moves backwards", ErrInvalidTransition, from, to)
	}
	return nil
})

// Transition is the outcome of applying a status change.
type Transition struct {
	From    Status
	To      Status
	Event   StatusEvent
	Effects []DocumentKind
}

// Machine applies status changes to an order and derives the document side effects.
type Machine struct {
	validator Validator
}

// NewMachine builds a machine. A nil validator means PermissiveValidator.
func NewMachine(v Validator) *Machine {
	if v == nil {
		v = PermissiveValidator
	}
	return &Machine{validator: v}
}

// Apply validates target, moves the order into it and appends the event to its history.
func (m *Machine) Apply(order *Order, target Status, actor, remarks string, now time.Time) (Transition, error) {
	if order == nil {
		return Transition{}, ErrOrderNotFound
	}
	if !target.IsValid() {
		return Transition{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, target)
	}
	from := order.Status
	if from == StatusDelivered && target == StatusCancelled {
		return Transition{}, fmt.Errorf("%w: delivered orders cannot be cancelled", ErrInvalidTransition)
	}
	if err := m.validator.Allow(from, target); err != nil {
		return Transition{}, err
	}

	effects := EffectsFor(order, from, target)
	ev := StatusEvent{
		LeadID:        order.LeadID,
		InvoiceNumber: order.InvoiceNumber,
		VendorID:      order.VendorID,
		From:          from,
		Status:        target,
		ChangedBy:     actor,
		Remarks:       remarks,
		At:            now,
	}
	order.Status = target
	order.History = append(order.History, ev)
	order.UpdatedAt = now
	return Transition{From: from, To: target, Event: ev, Effects: effects}, nil
}

// EffectsFor lists the documents that entering target unlocks. It must be called
// before the new event is appended to the order history.
func EffectsFor(order *Order, from, target Status) []DocumentKind {
	var effects []DocumentKind
	switch target {
	case StatusVendorAccepted:
		if from == StatusOrderPlaced {
			effects = append(effects, KindQuote)
		}
	case StatusPaymentDone:
		effects = append(effects, KindSalesOrder)
	case StatusInTransit, StatusOutForDelivery:
		if !order.HasReached(StatusInTransit, StatusOutForDelivery) {
			effects = append(effects, KindInvoice)
		}
	}
	return effects
}
