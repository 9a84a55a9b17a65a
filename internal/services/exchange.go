package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/couponloop/exchange-backend/internal/apierr"
	"github.com/couponloop/exchange-backend/internal/logger"
	"github.com/couponloop/exchange-backend/internal/repos"
	"github.com/couponloop/exchange-backend/internal/types"
)

type SwapDecision string

const (
	SwapDecisionAccept SwapDecision = "accept"
	SwapDecisionReject SwapDecision = "reject"
)

// ExchangeService coordinates the two-sided swap: an owner proposes their
// instance against an open listing, the listing's owner accepts or rejects,
// and acceptance exchanges ownership atomically. Every mutation runs inside
// one transaction with version-guarded writes; a Conflict error guarantees
// zero side effects, so callers may retry safely.
type ExchangeService interface {
	ProposeSwap(ctx context.Context, proposerAddress string, targetListingID, offeredInstanceID uuid.UUID) (*types.ExchangeOffer, error)
	ResolveSwap(ctx context.Context, callerAddress string, offerID uuid.UUID, decision SwapDecision) error
	// SweepExpiredOffers reverts pending listings whose proposed offer is
	// older than ttl. Returns the number of offers expired.
	SweepExpiredOffers(ctx context.Context, ttl time.Duration) (int, error)
}

type exchangeService struct {
	db        *gorm.DB
	log       *logger.Logger
	instances repos.AssetInstanceRepo
	listings  repos.ListingRepo
	offers    repos.ExchangeOfferRepo
	notifier  ExchangeNotifier
}

func NewExchangeService(
	db *gorm.DB,
	baseLog *logger.Logger,
	instances repos.AssetInstanceRepo,
	listings repos.ListingRepo,
	offers repos.ExchangeOfferRepo,
	notifier ExchangeNotifier,
) ExchangeService {
	return &exchangeService{
		db:        db,
		log:       baseLog.With("service", "ExchangeService"),
		instances: instances,
		listings:  listings,
		offers:    offers,
		notifier:  notifier,
	}
}

func (s *exchangeService) ProposeSwap(ctx context.Context, proposerAddress string, targetListingID, offeredInstanceID uuid.UUID) (*types.ExchangeOffer, error) {
	var (
		created      *types.ExchangeOffer
		listingOwner string
	)
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		conflicted := false
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			listing, err := s.listings.GetByID(ctx, tx, targetListingID)
			if err != nil {
				return err
			}
			if listing == nil {
				return apierr.NotFound("listing %s not found", targetListingID)
			}
			target, err := s.instances.GetByID(ctx, tx, listing.InstanceID)
			if err != nil {
				return err
			}
			if target == nil {
				return apierr.NotFound("listed instance %s not found", listing.InstanceID)
			}
			offered, err := s.instances.GetByID(ctx, tx, offeredInstanceID)
			if err != nil {
				return err
			}
			if offered == nil {
				return apierr.NotFound("offered instance %s not found", offeredInstanceID)
			}

			if !offered.OwnedBy(proposerAddress) {
				return apierr.NotOwner("proposer does not own instance %s", offeredInstanceID)
			}
			if listing.State != types.ListingStateOpen {
				return apierr.ListingNotOpen("listing %s is %s", listing.ID, listing.State)
			}
			desired, err := listing.DesiredIDs()
			if err != nil {
				return err
			}
			if !IsAcceptable(desired, offeredInstanceID) {
				return apierr.NotAcceptable("instance %s does not satisfy the listing's desired set", offeredInstanceID)
			}
			if target.OwnedBy(proposerAddress) {
				return apierr.SelfSwap("target and offered instance share an owner")
			}

			ok, err := s.bumpBothVersions(ctx, tx, target, offered)
			if err != nil {
				return err
			}
			if !ok {
				conflicted = true
				return apierr.Conflict("instances changed concurrently")
			}
			ok, err = s.listings.TransitionState(ctx, tx, listing.ID, types.ListingStateOpen, types.ListingStatePending)
			if err != nil {
				return err
			}
			if !ok {
				conflicted = true
				return apierr.Conflict("listing %s changed concurrently", listing.ID)
			}

			now := time.Now().UTC()
			offer := &types.ExchangeOffer{
				ID:                uuid.New(),
				ListingID:         listing.ID,
				OfferedInstanceID: offered.ID,
				ProposerAddress:   proposerAddress,
				State:             types.OfferStateProposed,
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			if _, err := s.offers.Create(ctx, tx, []*types.ExchangeOffer{offer}); err != nil {
				return err
			}
			created = offer
			listingOwner = listing.OwnerAddress
			return nil
		})
		if err == nil {
			if s.notifier != nil {
				s.notifier.OfferProposed(ctx, listingOwner, created.ListingID, created.ID, created.OfferedInstanceID, proposerAddress)
			}
			return created, nil
		}
		if conflicted {
			continue
		}
		return nil, err
	}
	return nil, apierr.Conflict("proposal against listing %s kept conflicting", targetListingID)
}

func (s *exchangeService) ResolveSwap(ctx context.Context, callerAddress string, offerID uuid.UUID, decision SwapDecision) error {
	if decision != SwapDecisionAccept && decision != SwapDecisionReject {
		return apierr.InvalidRequest("unknown decision %q", decision)
	}
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		conflicted := false
		var notify func()
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			offer, err := s.offers.GetByID(ctx, tx, offerID)
			if err != nil {
				return err
			}
			if offer == nil || offer.State != types.OfferStateProposed {
				return apierr.NotFound("offer %s not found", offerID)
			}
			listing, err := s.listings.GetByID(ctx, tx, offer.ListingID)
			if err != nil {
				return err
			}
			if listing == nil {
				return apierr.NotFound("listing %s not found", offer.ListingID)
			}
			target, err := s.instances.GetByID(ctx, tx, listing.InstanceID)
			if err != nil {
				return err
			}
			offered, err := s.instances.GetByID(ctx, tx, offer.OfferedInstanceID)
			if err != nil {
				return err
			}
			if target == nil || offered == nil {
				return apierr.NotFound("swap instances no longer exist")
			}
			if !target.OwnedBy(callerAddress) {
				return apierr.NotOwner("caller does not own the listed instance")
			}

			if decision == SwapDecisionReject {
				ok, err := s.listings.TransitionState(ctx, tx, listing.ID, types.ListingStatePending, types.ListingStateOpen)
				if err != nil {
					return err
				}
				if !ok {
					conflicted = true
					return apierr.Conflict("listing %s changed concurrently", listing.ID)
				}
				ok, err = s.offers.DeleteProposed(ctx, tx, offer.ID)
				if err != nil {
					return err
				}
				if !ok {
					conflicted = true
					return apierr.Conflict("offer %s changed concurrently", offer.ID)
				}
				notify = func() {
					if s.notifier != nil {
						s.notifier.OfferRejected(ctx, offer.ProposerAddress, listing.ID, offer.ID)
					}
				}
				return nil
			}

			// Accept. The proposer must still own the offered instance; an
			// ownership change since proposal makes the offer stale.
			if !offered.OwnedBy(offer.ProposerAddress) {
				return apierr.Conflict("offered instance %s changed hands since proposal", offered.ID)
			}
			if listing.State != types.ListingStatePending {
				conflicted = true
				return apierr.Conflict("listing %s is %s, expected pending", listing.ID, listing.State)
			}

			newTargetOwner := offer.ProposerAddress
			newOfferedOwner := callerAddress
			ok, err := s.swapOwners(ctx, tx, target, offered, newTargetOwner, newOfferedOwner)
			if err != nil {
				return err
			}
			if !ok {
				conflicted = true
				return apierr.Conflict("instances changed concurrently")
			}
			// Each party's listing on the instance they just gave away no
			// longer makes sense; remove both outright.
			if err := s.listings.DeleteByInstanceIDs(ctx, tx, []uuid.UUID{target.ID, offered.ID}); err != nil {
				return err
			}
			ok, err = s.offers.DeleteProposed(ctx, tx, offer.ID)
			if err != nil {
				return err
			}
			if !ok {
				conflicted = true
				return apierr.Conflict("offer %s changed concurrently", offer.ID)
			}
			notify = func() {
				if s.notifier != nil {
					s.notifier.SwapCompleted(ctx, callerAddress, offer.ProposerAddress, target.ID, offered.ID)
				}
			}
			return nil
		})
		if err == nil {
			if notify != nil {
				notify()
			}
			return nil
		}
		if conflicted {
			continue
		}
		return err
	}
	return apierr.Conflict("resolution of offer %s kept conflicting", offerID)
}

// bumpBothVersions applies version-guarded bumps to both instances in
// ascending id order so concurrent multi-instance writers cannot interleave
// in opposite orders.
func (s *exchangeService) bumpBothVersions(ctx context.Context, tx *gorm.DB, a, b *types.AssetInstance) (bool, error) {
	for _, inst := range orderByID(a, b) {
		ok, err := s.instances.BumpVersion(ctx, tx, inst.ID, inst.Version)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// swapOwners exchanges ownership between target and offered, writing in
// ascending id order with both writes guarded by the versions read.
func (s *exchangeService) swapOwners(ctx context.Context, tx *gorm.DB, target, offered *types.AssetInstance, newTargetOwner, newOfferedOwner string) (bool, error) {
	newOwner := map[uuid.UUID]string{
		target.ID:  newTargetOwner,
		offered.ID: newOfferedOwner,
	}
	for _, inst := range orderByID(target, offered) {
		owner := newOwner[inst.ID]
		ok, err := s.instances.SetOwnerVersioned(ctx, tx, inst.ID, inst.Version, &owner)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func orderByID(a, b *types.AssetInstance) []*types.AssetInstance {
	out := []*types.AssetInstance{a, b}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (s *exchangeService) SweepExpiredOffers(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-ttl)
	stale, err := s.offers.ListProposedOlderThan(ctx, nil, cutoff, 100)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, offer := range stale {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			ok, err := s.offers.DeleteProposed(ctx, tx, offer.ID)
			if err != nil {
				return err
			}
			if !ok {
				// Resolved in the meantime; nothing to revert.
				return nil
			}
			if _, err := s.listings.TransitionState(ctx, tx, offer.ListingID, types.ListingStatePending, types.ListingStateOpen); err != nil {
				return err
			}
			expired++
			if s.notifier != nil {
				s.notifier.OfferExpired(ctx, offer.ProposerAddress, offer.ListingID, offer.ID)
			}
			return nil
		})
		if err != nil {
			return expired, err
		}
	}
	return expired, nil
}
