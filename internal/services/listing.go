package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/couponloop/exchange-backend/internal/apierr"
	"github.com/couponloop/exchange-backend/internal/logger"
	"github.com/couponloop/exchange-backend/internal/repos"
	"github.com/couponloop/exchange-backend/internal/types"
)

// maxConflictRetries bounds the read-validate-write cycles attempted before
// an optimistic-concurrency collision is surfaced as Conflict.
const maxConflictRetries = 3

// ListingService is the listing manager: owners declare an instance up for
// exchange with acceptance criteria, and withdraw that declaration.
type ListingService interface {
	CreateListing(ctx context.Context, callerAddress string, instanceID uuid.UUID, desiredInstanceIDs []uuid.UUID) (*types.Listing, error)
	CancelListing(ctx context.Context, callerAddress string, instanceID uuid.UUID) error
}

type listingService struct {
	db        *gorm.DB
	log       *logger.Logger
	instances repos.AssetInstanceRepo
	listings  repos.ListingRepo
	notifier  ExchangeNotifier
}

func NewListingService(
	db *gorm.DB,
	baseLog *logger.Logger,
	instances repos.AssetInstanceRepo,
	listings repos.ListingRepo,
	notifier ExchangeNotifier,
) ListingService {
	return &listingService{
		db:        db,
		log:       baseLog.With("service", "ListingService"),
		instances: instances,
		listings:  listings,
		notifier:  notifier,
	}
}

func (s *listingService) CreateListing(ctx context.Context, callerAddress string, instanceID uuid.UUID, desiredInstanceIDs []uuid.UUID) (*types.Listing, error) {
	var created *types.Listing
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		conflicted := false
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			inst, err := s.instances.GetByID(ctx, tx, instanceID)
			if err != nil {
				return err
			}
			if inst == nil {
				return apierr.NotFound("instance %s not found", instanceID)
			}
			if !inst.OwnedBy(callerAddress) {
				return apierr.NotOwner("caller does not own instance %s", instanceID)
			}

			existing, err := s.listings.GetByInstanceID(ctx, tx, instanceID)
			if err != nil {
				return err
			}
			if existing != nil && existing.State != types.ListingStateCancelled {
				return apierr.AlreadyListed("instance %s already has a %s listing", instanceID, existing.State)
			}

			desired, err := s.validateDesiredSet(ctx, tx, instanceID, desiredInstanceIDs)
			if err != nil {
				return err
			}

			ok, err := s.instances.BumpVersion(ctx, tx, inst.ID, inst.Version)
			if err != nil {
				return err
			}
			if !ok {
				conflicted = true
				return apierr.Conflict("instance %s changed concurrently", inst.ID)
			}

			// A cancelled row is replaced so the unique instance index holds.
			if existing != nil {
				if err := s.listings.DeleteByID(ctx, tx, existing.ID); err != nil {
					return err
				}
			}

			now := time.Now().UTC()
			listing := &types.Listing{
				ID:           uuid.New(),
				InstanceID:   inst.ID,
				OwnerAddress: callerAddress,
				State:        types.ListingStateOpen,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := listing.SetDesiredIDs(desired); err != nil {
				return err
			}
			if _, err := s.listings.Create(ctx, tx, []*types.Listing{listing}); err != nil {
				return err
			}
			created = listing
			return nil
		})
		if err == nil {
			return created, nil
		}
		if conflicted {
			continue
		}
		return nil, err
	}
	return nil, apierr.Conflict("listing creation for instance %s kept conflicting", instanceID)
}

// validateDesiredSet dedupes and checks the acceptance criteria: every id
// must resolve to an existing instance and must not reference the instance
// being listed.
func (s *listingService) validateDesiredSet(ctx context.Context, tx *gorm.DB, instanceID uuid.UUID, desiredInstanceIDs []uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool, len(desiredInstanceIDs))
	desired := make([]uuid.UUID, 0, len(desiredInstanceIDs))
	for _, id := range desiredInstanceIDs {
		if id == uuid.Nil {
			return nil, apierr.InvalidDesiredSet("desired set contains a nil id")
		}
		if id == instanceID {
			return nil, apierr.InvalidDesiredSet("desired set references the listed instance itself")
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		desired = append(desired, id)
	}
	if len(desired) == 0 {
		return desired, nil
	}
	count, err := s.instances.CountByIDs(ctx, tx, desired)
	if err != nil {
		return nil, err
	}
	if count != int64(len(desired)) {
		return nil, apierr.InvalidDesiredSet("desired set references %d unknown instance(s)", int64(len(desired))-count)
	}
	return desired, nil
}

func (s *listingService) CancelListing(ctx context.Context, callerAddress string, instanceID uuid.UUID) error {
	var cancelled *types.Listing
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		conflicted := false
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			inst, err := s.instances.GetByID(ctx, tx, instanceID)
			if err != nil {
				return err
			}
			if inst == nil {
				return apierr.NotFound("instance %s not found", instanceID)
			}
			if !inst.OwnedBy(callerAddress) {
				return apierr.NotOwner("caller does not own instance %s", instanceID)
			}

			listing, err := s.listings.GetByInstanceID(ctx, tx, instanceID)
			if err != nil {
				return err
			}
			if listing == nil {
				return apierr.NotListed("instance %s has no listing", instanceID)
			}
			switch listing.State {
			case types.ListingStateCancelled:
				// Repeat cancels are a no-op.
				return nil
			case types.ListingStatePending:
				return apierr.ListingNotOpen("listing %s has an outstanding offer; resolve it first", listing.ID)
			}

			ok, err := s.instances.BumpVersion(ctx, tx, inst.ID, inst.Version)
			if err != nil {
				return err
			}
			if !ok {
				conflicted = true
				return apierr.Conflict("instance %s changed concurrently", inst.ID)
			}
			ok, err = s.listings.TransitionState(ctx, tx, listing.ID, types.ListingStateOpen, types.ListingStateCancelled)
			if err != nil {
				return err
			}
			if !ok {
				conflicted = true
				return apierr.Conflict("listing %s changed concurrently", listing.ID)
			}
			cancelled = listing
			return nil
		})
		if err == nil {
			if cancelled != nil && s.notifier != nil {
				s.notifier.ListingCancelled(ctx, callerAddress, cancelled.ID, instanceID)
			}
			return nil
		}
		if conflicted {
			continue
		}
		return err
	}
	return apierr.Conflict("listing cancellation for instance %s kept conflicting", instanceID)
}
