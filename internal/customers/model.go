// Package customers stores customer contact profiles and their accounting contact link.
package customers

import (
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("customer not found")
	ErrAlreadyLinked = errors.New("customer already linked to an accounting contact")
)

// Profile is the customer data needed to bill and notify.
type Profile struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Phone              string    `json:"phone"`
	Address            string    `json:"address"`
	Pincode            string    `json:"pincode"`
	ExternalCustomerID *string   `json:"external_customer_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// UpsertProfileRequest creates or updates a profile.
type UpsertProfileRequest struct {
	ID      int64  `json:"id" validate:"required,gt=0"`
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone" validate:"omitempty,max=20"`
	Address string `json:"address" validate:"omitempty,max=500"`
	Pincode string `json:"pincode" validate:"omitempty,numeric,len=6"`
}
