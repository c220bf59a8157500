package customers

import (
	"context"
	"fmt"
	"strings"
)

// Service manages customer profiles.
type Service struct {
	repo Repository
}

// NewService creates a new service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Profile returns a stored profile.
func (s *Service) Profile(ctx context.Context, id int64) (*Profile, error) {
	return s.repo.Get(ctx, id)
}

// Upsert creates or updates a profile and returns the stored copy.
func (s *Service) Upsert(ctx context.Context, req UpsertProfileRequest) (*Profile, error) {
	p := Profile{
		ID:      req.ID,
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:   strings.TrimSpace(req.Phone),
		Address: strings.TrimSpace(req.Address),
		Pincode: req.Pincode,
	}
	var out *Profile
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Upsert(ctx, p); err != nil {
			return fmt.Errorf("upsert profile: %w", err)
		}
		stored, err := repo.Get(ctx, p.ID)
		if err != nil {
			return err
		}
		out = stored
		return nil
	})
	return out, err
}

// LinkExternalID stores the accounting contact id once. A second, different id
// is rejected with ErrAlreadyLinked; repeating the stored id is a no-op.
func (s *Service) LinkExternalID(ctx context.Context, id int64, externalID string) error {
	ok, err := s.repo.SetExternalIDIfNull(ctx, id, externalID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.ExternalCustomerID != nil && *current.ExternalCustomerID == externalID {
		return nil
	}
	return ErrAlreadyLinked
}
