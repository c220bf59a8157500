package orders

import "time"

// AddToCartRequest represents a request to add an item to a cart.
type AddToCartRequest struct {
	CustomerID int64   `json:"customer_id" validate:"required,gt=0"`
	ItemRef    string  `json:"item_ref" validate:"required,max=100"`
	Quantity   float64 `json:"quantity" validate:"required,gte=1"`
	Pincode    string  `json:"pincode,omitempty" validate:"omitempty,numeric,len=6"`
}

// PlaceRequest represents the delivery details captured at checkout.
type PlaceRequest struct {
	Address       string    `json:"address" validate:"required,max=500"`
	Pincode       string    `json:"pincode" validate:"required,numeric,len=6"`
	ExpectedDate  time.Time `json:"expected_date" validate:"required"`
	ContactName   string    `json:"contact_name" validate:"required,max=200"`
	ContactPhone  string    `json:"contact_phone" validate:"required,max=20"`
	ContactEmail  string    `json:"contact_email" validate:"omitempty,email"`
	VendorID      *int64    `json:"vendor_id,omitempty" validate:"omitempty,gt=0"`
	PromoDiscount float64   `json:"promo_discount" validate:"gte=0"`
	Actor         string    `json:"actor" validate:"required"`
}

// ChangeAddressRequest represents a delivery address edit.
type ChangeAddressRequest struct {
	Address string `json:"address" validate:"required,max=500"`
	Pincode string `json:"pincode,omitempty" validate:"omitempty,numeric,len=6"`
	Actor   string `json:"actor" validate:"required"`
	Reason  string `json:"reason" validate:"required,max=500"`
}

// ChangeExpectedDateRequest represents an expected delivery date edit.
type ChangeExpectedDateRequest struct {
	ExpectedDate time.Time `json:"expected_date" validate:"required"`
	Actor        string    `json:"actor" validate:"required"`
	Reason       string    `json:"reason" validate:"required,max=500"`
}

// TransitionRequest represents an operator status change.
type TransitionRequest struct {
	Status  string `json:"status" validate:"required"`
	Actor   string `json:"actor" validate:"required"`
	Remarks string `json:"remarks,omitempty" validate:"max=1000"`
}

// TransitionResponse echoes the applied transition.
type TransitionResponse struct {
	From    Status         `json:"from"`
	To      Status         `json:"to"`
	Event   StatusEvent    `json:"event"`
	Effects []DocumentKind `json:"effects"`
}

// ToDetails maps the request to aggregate input.
func (r PlaceRequest) ToDetails() DeliveryDetails {
	return DeliveryDetails{
		Address:       r.Address,
		Pincode:       r.Pincode,
		ExpectedDate:  r.ExpectedDate,
		ContactName:   r.ContactName,
		ContactPhone:  r.ContactPhone,
		ContactEmail:  r.ContactEmail,
		VendorID:      r.VendorID,
		PromoDiscount: r.PromoDiscount,
	}
}
