// Package address orchestrates address operations for an authenticated
// owner. Address text is always derived from coordinates, or coordinates from
// text, before anything reaches the store.
package address

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"addressbook/internal/cache"
	"addressbook/internal/geo"
	"addressbook/internal/logger"
	"addressbook/internal/models"
	"addressbook/internal/store"
)

// Resolver is the part of geo.Resolver the service needs.
type Resolver interface {
	Reverse(ctx context.Context, at models.Coordinates) (geo.Candidate, error)
	Forward(ctx context.Context, text string) (geo.Candidate, error)
}

type CreateInput struct {
	HouseDetails string
	Street       string
	AddressType  models.AddressType
	Coordinates  *models.Coordinates
	Favorite     bool
}

type Service struct {
	store    store.AddressStore
	resolver Resolver
	current  cache.CurrentAddress
	log      *zap.Logger
}

func NewService(s store.AddressStore, r Resolver, current cache.CurrentAddress, lg *zap.Logger) *Service {
	if current == nil {
		current = cache.Nop{}
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Service{store: s, resolver: r, current: current, log: lg.Named("address")}
}

// Create resolves the submitted coordinates to address text and stores the
// pair.
func (s *Service) Create(ctx context.Context, owner primitive.ObjectID, in CreateInput) (*models.Address, error) {
	if in.Coordinates == nil {
		return nil, models.Invalid("coordinates", "coordinates are required")
	}
	resolved, err := s.reverse(ctx, *in.Coordinates)
	if err != nil {
		return nil, err
	}

	a, err := s.store.Create(ctx, owner, models.AddressFields{
		AddressText:  resolved.Text,
		HouseDetails: in.HouseDetails,
		Street:       in.Street,
		AddressType:  in.AddressType,
		Coordinates:  &resolved.Coordinates,
		Favorite:     in.Favorite,
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, owner)
	logger.WithContext(ctx, s.log).Info("address created",
		zap.String("user_id", owner.Hex()), zap.String("address_id", a.ID.Hex()))
	return a, nil
}

// Get returns the address only when owner owns it. Other owners' records read
// as not found.
func (s *Service) Get(ctx context.Context, owner, id primitive.ObjectID) (*models.Address, error) {
	a, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.UserID != owner {
		s.forbidden(ctx, owner, id, "get")
		return nil, models.ErrNotFound
	}
	return a, nil
}

// Current returns the owner's current address, or models.ErrNotFound when
// they have none yet.
func (s *Service) Current(ctx context.Context, owner primitive.ObjectID) (*models.Address, error) {
	lg := logger.WithContext(ctx, s.log)

	cached, version, ok, cacheErr := s.current.Get(ctx, owner)
	if cacheErr != nil {
		lg.Warn("current address cache read failed", zap.Error(cacheErr))
	}
	if ok {
		return cached, nil
	}

	a, err := s.store.FindCurrent(ctx, owner)
	if err != nil {
		return nil, err
	}
	// Without a version read there is nothing to guard the write with.
	if cacheErr == nil {
		if err := s.current.Set(ctx, owner, a, version); err != nil {
			lg.Warn("current address cache write failed", zap.Error(err))
		}
	}
	return a, nil
}

func (s *Service) List(ctx context.Context, owner primitive.ObjectID) ([]models.Address, error) {
	return s.store.ListByOwner(ctx, owner)
}

// Update applies patch after reconciling it: new coordinates win and text is
// re-derived from them; new text alone is forward resolved and its top match
// replaces both text and coordinates.
func (s *Service) Update(ctx context.Context, owner, id primitive.ObjectID, patch models.AddressPatch) (*models.Address, error) {
	if patch.Empty() {
		return nil, models.Invalid("body", "at least one field is required")
	}

	existing, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.UserID != owner {
		s.forbidden(ctx, owner, id, "update")
		return nil, models.ErrForbidden
	}

	if err := s.reconcile(ctx, &patch); err != nil {
		return nil, err
	}

	a, err := s.store.Update(ctx, id, owner, patch)
	if err != nil {
		if errors.Is(err, models.ErrForbidden) {
			s.forbidden(ctx, owner, id, "update")
		}
		return nil, err
	}
	s.invalidate(ctx, owner)
	logger.WithContext(ctx, s.log).Info("address updated",
		zap.String("user_id", owner.Hex()), zap.String("address_id", id.Hex()))
	return a, nil
}

func (s *Service) Delete(ctx context.Context, owner, id primitive.ObjectID) error {
	if err := s.store.Delete(ctx, id, owner); err != nil {
		if errors.Is(err, models.ErrForbidden) {
			s.forbidden(ctx, owner, id, "delete")
		}
		return err
	}
	s.invalidate(ctx, owner)
	logger.WithContext(ctx, s.log).Info("address deleted",
		zap.String("user_id", owner.Hex()), zap.String("address_id", id.Hex()))
	return nil
}

func (s *Service) reconcile(ctx context.Context, patch *models.AddressPatch) error {
	switch {
	case patch.Coordinates != nil:
		resolved, err := s.reverse(ctx, *patch.Coordinates)
		if err != nil {
			return err
		}
		patch.AddressText = &resolved.Text
	case patch.AddressText != nil:
		text := strings.TrimSpace(*patch.AddressText)
		if text == "" {
			return models.Invalid("address", "address text must not be empty")
		}
		top, err := s.resolver.Forward(ctx, text)
		if err != nil {
			if errors.Is(err, models.ErrUnresolvable) {
				return models.Invalid("address", "no location matches this address")
			}
			return err
		}
		patch.AddressText = &top.Text
		patch.Coordinates = &top.Coordinates
	}
	return nil
}

func (s *Service) reverse(ctx context.Context, at models.Coordinates) (geo.Candidate, error) {
	if err := at.Validate(); err != nil {
		return geo.Candidate{}, err
	}
	resolved, err := s.resolver.Reverse(ctx, at)
	if err != nil {
		if errors.Is(err, models.ErrUnresolvable) {
			return geo.Candidate{}, models.Invalid("coordinates", "location could not be resolved")
		}
		return geo.Candidate{}, fmt.Errorf("reverse geocode: %w", err)
	}
	return resolved, nil
}

func (s *Service) invalidate(ctx context.Context, owner primitive.ObjectID) {
	if err := s.current.Invalidate(ctx, owner); err != nil {
		logger.WithContext(ctx, s.log).Error("current address cache invalidation failed",
			zap.String("user_id", owner.Hex()), zap.Error(err))
	}
}

func (s *Service) forbidden(ctx context.Context, owner, id primitive.ObjectID, op string) {
	logger.WithContext(ctx, s.log).Warn("address access denied",
		zap.String("op", op), zap.String("user_id", owner.Hex()), zap.String("address_id", id.Hex()))
}
