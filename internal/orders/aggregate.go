package orders

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bulkmart/fulfillment/internal/geo"
)

// DefaultChangeWindow is how long after placement delivery details may be edited.
const DefaultChangeWindow = 48 * time.Hour

// NewCart starts a pending order for a customer.
func NewCart(customerID int64, category Category, now time.Time) *Order {
	return &Order{
		LeadID:        NewLeadID(category, now),
		InvoiceNumber: NewInvoiceNumber(now),
		Category:      category,
		CustomerID:    customerID,
		Status:        StatusPending,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// AddItem appends a line, or merges quantity into an existing line for the same item.
func (o *Order) AddItem(item Item) error {
	if err := o.ensureCartEditable(); err != nil {
		return err
	}
	if strings.TrimSpace(item.ItemRef) == "" {
		return fmt.Errorf("%w: item reference required", ErrInvalidItem)
	}
	if item.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidItem)
	}
	if item.UnitPrice < 0 || math.IsNaN(item.UnitPrice) {
		return fmt.Errorf("%w: unit price cannot be negative", ErrInvalidItem)
	}

	for i := range o.Items {
		if o.Items[i].ItemRef == item.ItemRef {
			o.Items[i].Quantity += item.Quantity
			o.Items[i].UnitPrice = item.UnitPrice
			o.Items[i].WarehouseID = item.WarehouseID
			o.Items[i].DeliveryCharge = item.DeliveryCharge
			if item.ExternalItemID != nil {
				o.Items[i].ExternalItemID = item.ExternalItemID
			}
			o.Recalculate()
			return nil
		}
	}
	o.Items = append(o.Items, item)
	o.Recalculate()
	return nil
}

// RemoveItem drops the line for itemRef and recomputes totals.
func (o *Order) RemoveItem(itemRef string) error {
	if err := o.ensureCartEditable(); err != nil {
		return err
	}
	for i := range o.Items {
		if o.Items[i].ItemRef == itemRef {
			o.Items = append(o.Items[:i], o.Items[i+1:]...)
			o.Recalculate()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrItemNotFound, itemRef)
}

// SetDeliveryCharge records the delivery charge computed by the pricing engine.
func (o *Order) SetDeliveryCharge(charge float64) error {
	if err := o.ensureCartEditable(); err != nil {
		return err
	}
	if charge < 0 || math.IsNaN(charge) {
		return fmt.Errorf("%w: delivery charge cannot be negative", ErrInvalidDetails)
	}
	o.DeliveryCharge = round2(charge)
	o.Recalculate()
	return nil
}

// ItemsDeliveryCharge sums the per-item charges of the lines currently present.
func (o *Order) ItemsDeliveryCharge() float64 {
	var sum float64
	for _, it := range o.Items {
		sum += it.DeliveryCharge
	}
	return round2(sum)
}

// Recalculate derives line totals and order totals from their inputs.
func (o *Order) Recalculate() {
	var qty, amount float64
	for i := range o.Items {
		o.Items[i].LineTotal = round2(o.Items[i].Quantity * o.Items[i].UnitPrice)
		qty += o.Items[i].Quantity
		amount += o.Items[i].LineTotal
	}
	total := amount + o.DeliveryCharge - o.PromoDiscount
	if total < 0 {
		total = 0
	}
	o.TotalQuantity = qty
	o.TotalAmount = round2(total)
}

// Subtotal is the sum of line totals before delivery and discounts.
func (o *Order) Subtotal() float64 {
	var amount float64
	for _, it := range o.Items {
		amount += it.LineTotal
	}
	return round2(amount)
}

// Place fixes delivery details, freezes the delivery charge from the items and moves
// the cart to order_placed. The returned event must be persisted with the order.
func (o *Order) Place(d DeliveryDetails, actor string, now time.Time) (StatusEvent, error) {
	if err := o.ensureCartEditable(); err != nil {
		return StatusEvent{}, err
	}
	if len(o.Items) == 0 {
		return StatusEvent{}, ErrEmptyOrder
	}
	if strings.TrimSpace(d.Address) == "" || d.ExpectedDate.IsZero() {
		return StatusEvent{}, fmt.Errorf("%w: address and expected date required", ErrInvalidDetails)
	}
	if d.PromoDiscount < 0 {
		return StatusEvent{}, fmt.Errorf("%w: promo discount cannot be negative", ErrInvalidDetails)
	}
	if d.Pincode != "" {
		if err := geo.ValidatePincode(d.Pincode); err != nil {
			return StatusEvent{}, err
		}
	}
	expected := d.ExpectedDate
	o.DeliveryAddress = strings.TrimSpace(d.Address)
	o.DeliveryPincode = d.Pincode
	o.DeliveryExpectedDate = &expected
	o.ContactName = d.ContactName
	o.ContactPhone = d.ContactPhone
	o.ContactEmail = d.ContactEmail
	o.VendorID = d.VendorID
	o.PromoDiscount = d.PromoDiscount
	o.DeliveryCharge = o.ItemsDeliveryCharge()
	o.Recalculate()

	placed := now
	o.PlacedAt = &placed
	ev := StatusEvent{
		LeadID:        o.LeadID,
		InvoiceNumber: o.InvoiceNumber,
		VendorID:      o.VendorID,
		From:          o.Status,
		Status:        StatusOrderPlaced,
		ChangedBy:     actor,
		Remarks:       "order placed",
		At:            now,
	}
	o.Status = StatusOrderPlaced
	o.History = append(o.History, ev)
	o.UpdatedAt = now
	return ev, nil
}

// ChangeAddress edits the delivery address inside the policy window and logs the change.
func (o *Order) ChangeAddress(address, pincode, changedBy, reason string, now time.Time, window time.Duration) (ChangeLog, error) {
	if err := o.ensureDeliveryEditable(now, window); err != nil {
		return ChangeLog{}, err
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return ChangeLog{}, fmt.Errorf("%w: address required", ErrInvalidDetails)
	}
	pincode = strings.TrimSpace(pincode)
	if pincode != "" {
		if err := geo.ValidatePincode(pincode); err != nil {
			return ChangeLog{}, err
		}
	}
	entry := ChangeLog{
		Field:     FieldAddress,
		OldValue:  formatAddress(o.DeliveryAddress, o.DeliveryPincode),
		NewValue:  formatAddress(address, pincode),
		ChangedBy: changedBy,
		Reason:    reason,
		At:        now,
	}
	o.DeliveryAddress = address
	if pincode != "" {
		o.DeliveryPincode = pincode
	}
	o.AddressChanges = append(o.AddressChanges, entry)
	o.UpdatedAt = now
	return entry, nil
}

// ChangeExpectedDate edits the expected delivery date inside the policy window and logs the change.
func (o *Order) ChangeExpectedDate(date time.Time, changedBy, reason string, now time.Time, window time.Duration) (ChangeLog, error) {
	if err := o.ensureDeliveryEditable(now, window); err != nil {
		return ChangeLog{}, err
	}
	if date.IsZero() {
		return ChangeLog{}, fmt.Errorf("%w: expected date required", ErrInvalidDetails)
	}
	old := ""
	if o.DeliveryExpectedDate != nil {
		old = o.DeliveryExpectedDate.Format(time.DateOnly)
	}
	entry := ChangeLog{
		Field:     FieldExpectedDate,
		OldValue:  old,
		NewValue:  date.Format(time.DateOnly),
		ChangedBy: changedBy,
		Reason:    reason,
		At:        now,
	}
	o.DateChanges = append(o.DateChanges, entry)
	o.DeliveryExpectedDate = &date
	o.UpdatedAt = now
	return entry, nil
}

// Deactivate soft-deletes the order without touching its status.
func (o *Order) Deactivate(now time.Time) {
	o.IsActive = false
	o.UpdatedAt = now
}

// CurrentEvent returns the most recent status event, if any.
func (o *Order) CurrentEvent() (StatusEvent, bool) {
	if len(o.History) == 0 {
		return StatusEvent{}, false
	}
	return o.History[len(o.History)-1], true
}

// HasReached reports whether any recorded event entered one of the statuses.
func (o *Order) HasReached(statuses ...Status) bool {
	for _, ev := range o.History {
		for _, s := range statuses {
			if ev.Status == s {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy so a failed persistence step cannot leak partial state.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]Item(nil), o.Items...)
	c.AddressChanges = append([]ChangeLog(nil), o.AddressChanges...)
	c.DateChanges = append([]ChangeLog(nil), o.DateChanges...)
	c.History = append([]StatusEvent(nil), o.History...)
	return &c
}

func (o *Order) ensureCartEditable() error {
	if !o.IsActive {
		return ErrInactiveOrder
	}
	if !o.Status.CanEditCart() {
		return fmt.Errorf("%w: %s", ErrNotEditable, o.Status)
	}
	return nil
}

func (o *Order) ensureDeliveryEditable(now time.Time, window time.Duration) error {
	if !o.IsActive {
		return ErrInactiveOrder
	}
	if !o.Status.CanChangeDelivery() {
		return fmt.Errorf("%w: %s", ErrNotEditable, o.Status)
	}
	if window <= 0 {
		window = DefaultChangeWindow
	}
	if o.PlacedAt == nil || now.After(o.PlacedAt.Add(window)) {
		return ErrPolicyWindowClosed
	}
	return nil
}

func formatAddress(address, pincode string) string {
	if pincode == "" {
		return address
	}
	return address + " - " + pincode
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
