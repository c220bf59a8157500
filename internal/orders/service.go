package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bulkmart/fulfillment/internal/pricing"
)

// Catalog looks up the current listing of an item.
type Catalog interface {
	Listing(ctx context.Context, itemRef string) (pricing.Listing, error)
}

// DeliveryQuoter prices delivery of one item to a pincode.
type DeliveryQuoter interface {
	QuoteItem(ctx context.Context, itemRef, pincode string, orderAmount float64) (pricing.ItemQuote, error)
}

// Dispatcher nudges background processing of freshly committed outbox rows.
type Dispatcher interface {
	Kick(ctx context.Context) error
}

// Service provides cart, placement and status operations on orders.
type Service struct {
	repo       Repository
	catalog    Catalog
	quoter     DeliveryQuoter
	machine    *Machine
	dispatcher Dispatcher
	logger     *slog.Logger
	window     time.Duration
	now        func() time.Time
}

// NewService creates a new service.
func NewService(repo Repository, catalog Catalog, quoter DeliveryQuoter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		catalog: catalog,
		quoter:  quoter,
		machine: NewMachine(nil),
		logger:  logger,
		window:  DefaultChangeWindow,
		now:     time.Now,
	}
}

// SetDispatcher sets the post-commit dispatcher.
func (s *Service) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

// SetValidator swaps the transition validator.
func (s *Service) SetValidator(v Validator) {
	s.machine = NewMachine(v)
}

// SetChangeWindow overrides the delivery detail policy window.
func (s *Service) SetChangeWindow(w time.Duration) {
	if w > 0 {
		s.window = w
	}
}

// AddToCartInput describes an item added to a customer's cart.
type AddToCartInput struct {
	CustomerID int64
	ItemRef    string
	Quantity   float64
	Pincode    string
}

// AddToCart merges the item into the customer's open cart for its category, creating the cart if needed.
func (s *Service) AddToCart(ctx context.Context, in AddToCartInput) (*Order, error) {
	listing, err := s.catalog.Listing(ctx, in.ItemRef)
	if err != nil {
		return nil, fmt.Errorf("lookup item: %w", err)
	}
	category := Category(listing.Category)
	if category == "" {
		category = CategoryGeneral
	}

	now := s.now()
	order, err := s.repo.FindOpenCart(ctx, in.CustomerID, category)
	isNew := false
	if errors.Is(err, ErrOrderNotFound) {
		order, isNew = NewCart(in.CustomerID, category, now), true
	} else if err != nil {
		return nil, fmt.Errorf("find cart: %w", err)
	}

	item := Item{
		ItemRef:        listing.ItemRef,
		Description:    listing.Description,
		Quantity:       in.Quantity,
		UnitPrice:      listing.UnitPrice,
		ExternalItemID: listing.ExternalItemID,
	}
	if err := order.AddItem(item); err != nil {
		return nil, err
	}
	if in.Pincode != "" {
		if err := s.priceItem(ctx, order, listing.ItemRef, in.Pincode); err != nil {
			return nil, err
		}
	}
	order.UpdatedAt = now

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if isNew {
			id, err := tx.Create(ctx, order)
			if err != nil {
				return fmt.Errorf("create order: %w", err)
			}
			order.ID = id
		}
		if err := tx.ReplaceItems(ctx, order.ID, order.Items); err != nil {
			return fmt.Errorf("replace items: %w", err)
		}
		return tx.Save(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// priceItem refreshes the warehouse and delivery charge of one line.
func (s *Service) priceItem(ctx context.Context, order *Order, itemRef, pincode string) error {
	for i := range order.Items {
		if order.Items[i].ItemRef != itemRef {
			continue
		}
		line := order.Items[i]
		q, err := s.quoter.QuoteItem(ctx, itemRef, pincode, line.Quantity*line.UnitPrice)
		if err != nil {
			return fmt.Errorf("quote delivery: %w", err)
		}
		if !q.Charge.Available {
			return fmt.Errorf("%w: %s (%s)", ErrDeliveryUnavailable, itemRef, q.Charge.Reason)
		}
		order.Items[i].WarehouseID = q.WarehouseID
		order.Items[i].DeliveryCharge = q.Charge.Charge
		return nil
	}
	return fmt.Errorf("%w: %s", ErrItemNotFound, itemRef)
}

// RemoveFromCart drops one item from a pending order.
func (s *Service) RemoveFromCart(ctx context.Context, leadID, itemRef string) (*Order, error) {
	order, err := s.repo.GetByLeadID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if err := order.RemoveItem(itemRef); err != nil {
		return nil, err
	}
	order.UpdatedAt = s.now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.ReplaceItems(ctx, order.ID, order.Items); err != nil {
			return fmt.Errorf("replace items: %w", err)
		}
		return tx.Save(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// RemoveCart soft-deletes an order. Its status is left untouched.
func (s *Service) RemoveCart(ctx context.Context, leadID string) error {
	order, err := s.repo.GetByLeadID(ctx, leadID)
	if err != nil {
		return err
	}
	if !order.IsActive {
		return nil
	}
	order.Deactivate(s.now())
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Save(ctx, order)
	})
}

// Place reprices every line for the delivery pincode and finalises the order.
func (s *Service) Place(ctx context.Context, leadID string, details DeliveryDetails, actor string) (*Order, error) {
	order, err := s.repo.GetByLeadID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if !order.IsActive {
		return nil, ErrInactiveOrder
	}
	if !order.Status.CanEditCart() {
		return nil, fmt.Errorf("%w: %s", ErrNotEditable, order.Status)
	}
	if strings.TrimSpace(details.Pincode) == "" {
		return nil, fmt.Errorf("%w: pincode required", ErrInvalidDetails)
	}
	for _, it := range order.Items {
		if err := s.priceItem(ctx, order, it.ItemRef, details.Pincode); err != nil {
			return nil, err
		}
	}

	ev, err := order.Place(details, actor, s.now())
	if err != nil {
		return nil, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.ReplaceItems(ctx, order.ID, order.Items); err != nil {
			return fmt.Errorf("replace items: %w", err)
		}
		if err := tx.Save(ctx, order); err != nil {
			return fmt.Errorf("save order: %w", err)
		}
		return tx.AppendStatusEvent(ctx, order.ID, ev)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ChangeAddress edits the delivery address within the policy window.
func (s *Service) ChangeAddress(ctx context.Context, leadID, address, pincode, actor, reason string) (*Order, error) {
	return s.changeDelivery(ctx, leadID, func(o *Order, now time.Time) (ChangeLog, error) {
		return o.ChangeAddress(address, pincode, actor, reason, now, s.window)
	})
}

// ChangeExpectedDate edits the expected delivery date within the policy window.
func (s *Service) ChangeExpectedDate(ctx context.Context, leadID string, date time.Time, actor, reason string) (*Order, error) {
	return s.changeDelivery(ctx, leadID, func(o *Order, now time.Time) (ChangeLog, error) {
		return o.ChangeExpectedDate(date, actor, reason, now, s.window)
	})
}

func (s *Service) changeDelivery(ctx context.Context, leadID string, apply func(*Order, time.Time) (ChangeLog, error)) (*Order, error) {
	order, err := s.repo.GetByLeadID(ctx, leadID)
	if err != nil {
		return nil, err
	}
	entry, err := apply(order, s.now())
	if err != nil {
		return nil, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.Save(ctx, order); err != nil {
			return fmt.Errorf("save order: %w", err)
		}
		return tx.AppendChangeLog(ctx, order.ID, entry)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Transition moves an order to target. The status update, its event and any document
// outbox rows commit together; background dispatch afterwards is best-effort.
func (s *Service) Transition(ctx context.Context, leadID string, target Status, actor, remarks string) (Transition, error) {
	order, err := s.repo.GetByLeadID(ctx, leadID)
	if err != nil {
		return Transition{}, err
	}
	tr, err := s.machine.Apply(order, target, actor, remarks, s.now())
	if err != nil {
		return Transition{}, err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.Save(ctx, order); err != nil {
			return fmt.Errorf("save order: %w", err)
		}
		if err := tx.AppendStatusEvent(ctx, order.ID, tr.Event); err != nil {
			return fmt.Errorf("append status event: %w", err)
		}
		return tx.EnqueueEffects(ctx, order.LeadID, tr.Effects)
	})
	if err != nil {
		return Transition{}, err
	}

	if len(tr.Effects) > 0 && s.dispatcher != nil {
		if err := s.dispatcher.Kick(ctx); err != nil {
			s.logger.Warn("outbox dispatch failed",
				slog.String("lead_id", leadID),
				slog.Any("error", err))
		}
	}
	return tr, nil
}

// History returns the status events of an order, oldest first.
func (s *Service) History(ctx context.Context, leadID string) ([]StatusEvent, error) {
	return s.repo.History(ctx, leadID)
}

// Get returns an order with its items and history.
func (s *Service) Get(ctx context.Context, leadID string) (*Order, error) {
	return s.repo.GetByLeadID(ctx, leadID)
}

// GetByInvoiceNumber returns the order correlated with a payment.
func (s *Service) GetByInvoiceNumber(ctx context.Context, invoiceNumber string) (*Order, error) {
	return s.repo.GetByInvoiceNumber(ctx, invoiceNumber)
}

// SetExternalID records an accounting identifier if none is stored yet.
func (s *Service) SetExternalID(ctx context.Context, leadID string, kind DocumentKind, id string) (bool, error) {
	return s.repo.SetExternalIDIfNull(ctx, leadID, kind, id)
}
