package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/couponloop/exchange-backend/internal/apierr"
	"github.com/couponloop/exchange-backend/internal/types"
)

func TestProposeAndAcceptSwapsOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	x := env.seedInstance(t, aliceAddr)
	y := env.seedInstance(t, bobAddr)
	bystander := env.seedInstance(t, carolAddr)

	listing, err := env.listingSvc.CreateListing(ctx, aliceAddr, x.ID, nil)
	if err != nil {
		t.Fatalf("CreateListing: %v", err)
	}

	yBefore := env.mustGetInstance(t, y.ID)
	offer, err := env.exchangeSvc.ProposeSwap(ctx, bobAddr, listing.ID, y.ID)
	if err != nil {
		t.Fatalf("ProposeSwap: %v", err)
	}
	if offer.State != types.OfferStateProposed {
		t.Fatalf("offer state: want=%s got=%s", types.OfferStateProposed, offer.State)
	}
	pending := env.getListingForInstance(t, x.ID)
	if pending == nil || pending.State != types.ListingStatePending {
		t.Fatalf("listing after propose: want pending got %+v", pending)
	}

	xPending := env.mustGetInstance(t, x.ID)
	yPending := env.mustGetInstance(t, y.ID)

	if err := env.exchangeSvc.ResolveSwap(ctx, aliceAddr, offer.ID, SwapDecisionAccept); err != nil {
		t.Fatalf("ResolveSwap accept: %v", err)
	}

	xAfter := env.mustGetInstance(t, x.ID)
	yAfter := env.mustGetInstance(t, y.ID)
	if xAfter.OwnerAddress == nil || *xAfter.OwnerAddress != bobAddr {
		t.Fatalf("x owner after swap: want=%s got=%v", bobAddr, xAfter.OwnerAddress)
	}
	if yAfter.OwnerAddress == nil || *yAfter.OwnerAddress != aliceAddr {
		t.Fatalf("y owner after swap: want=%s got=%v", aliceAddr, yAfter.OwnerAddress)
	}
	if xAfter.Version <= xPending.Version || yAfter.Version <= yPending.Version {
		t.Fatalf("versions must strictly increase: x %d->%d y %d->%d", xPending.Version, xAfter.Version, yPending.Version, yAfter.Version)
	}
	if yBefore.Version >= yAfter.Version {
		t.Fatalf("offered instance version must increase across the flow")
	}
	// Both listings cleared.
	if l := env.getListingForInstance(t, x.ID); l != nil {
		t.Fatalf("x listing should be deleted, got %+v", l)
	}
	if l := env.getListingForInstance(t, y.ID); l != nil {
		t.Fatalf("y listing should be deleted, got %+v", l)
	}
	// Offer consumed.
	gone, err := env.offers.GetByID(ctx, nil, offer.ID)
	if err != nil {
		t.Fatalf("offers.GetByID: %v", err)
	}
	if gone != nil {
		t.Fatalf("offer should be discarded, got %+v", gone)
	}
	// No third instance mutated.
	after := env.mustGetInstance(t, bystander.ID)
	if after.Version != bystander.Version || !after.OwnedBy(carolAddr) {
		t.Fatalf("bystander instance mutated: %+v", after)
	}
}

func TestAcceptClearsProposersOwnListing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	x := env.seedInstance(t, aliceAddr)
	y := env.seedInstance(t, bobAddr)

	listing, err := env.listingSvc.CreateListing(ctx, aliceAddr, x.ID, nil)
	if err != nil {
		t.Fatalf("CreateListing x: %v", err)
	}
	// Bob separately listed the instance he is about to give away.
	if _, err := env.listingSvc.CreateListing(ctx, bobAddr, y.ID, nil); err != nil {
		t.Fatalf("CreateListing y: %v", err)
	}

	offer, err := env.exchangeSvc.ProposeSwap(ctx, bobAddr, listing.ID, y.ID)
	if err != nil {
		t.Fatalf("ProposeSwap: %v", err)
	}
	if err := env.exchangeSvc.ResolveSwap(ctx, aliceAddr, offer.ID, SwapDecisionAccept); err != nil {
		t.Fatalf("ResolveSwap accept: %v", err)
	}
	if l := env.getListingForInstance(t, y.ID); l != nil {
		t.Fatalf("proposer's own listing should be cleared, got %+v", l)
	}
}

func TestProposeRejectsUndesiredInstance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	x := env.seedInstance(t, aliceAddr)
	y := env.seedInstance(t, bobAddr)
	z := env.seedInstance(t, carolAddr)

	listing, err := env.listingSvc.CreateListing(ctx, aliceAddr, x.ID, []uuid.UUID{z.ID})
	if err != nil {
		t.Fatalf("CreateListing: %v", err)
	}
	yBefore := env.mustGetInstance(t, y.ID)

	_, err = env.exchangeSvc.ProposeSwap(ctx, bobAddr, listing.ID, y.ID)
	if !apierr.IsCode(err, apierr.CodeNotAcceptable) {
		t.Fatalf("ProposeSwap with undesired instance: want=%s got=%v", apierr.CodeNotAcceptable, err)
	}
	if l := env.getListingForInstance(t, x.ID); l == nil || l.State != types.ListingStateOpen {
		t.Fatalf("listing should remain open, got %+v", l)
	}
	yAfter := env.mustGetInstance(t, y.ID)
	if yAfter.Version != yBefore.Version || !yAfter.OwnedBy(bobAddr) {
		t.Fatalf("failed propose must not mutate the offered instance: %+v", yAfter)
	}
}

func TestProposeRejectsSelfSwap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	x := env.seedInstance(t, aliceAddr)
	y := env.seedInstance(t, aliceAddr)

	listing, err := env.listingSvc.CreateListing(ctx, aliceAddr, x.ID, nil)
	if err != nil {
		t.Fatalf("CreateListing: %v", err)
	}
	_, err = env.exchangeSvc.ProposeSwap(ctx, aliceAddr, listing.ID, y.ID)
	if !apierr.IsCode(err, apierr.CodeSelfSwap) {
		t.Fatalf("ProposeSwap against own listing: want=%s got=%v", apierr.CodeSelfSwap, err)
	}
}

func TestProposeRejectsNonOwnerOfOfferedInstance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	x := env.seedInstance(t, aliceAddr)
	y := env.seedInstance(t, bobAddr)

	listing, err := env.listingSvc.CreateListing(ctx, aliceAddr, x.ID, nil)
	if err != nil {
		t.Fatalf("CreateListing: %v", err)
	}
	yBefore := env.mustGetInstance(t, y.ID)
	_, err = env.exchangeSvc.ProposeSwap(ctx, carolAddr, listing.ID, y.ID)
	if !apierr.IsCode(err, apierr.CodeNotOwner) {
		t.Fatalf("ProposeSwap without owning offered instance: want=%s got=%v", apierr.CodeNotOwner, err)
	}
	yAfter := env.mustGetInstance(t, y.ID)
	if yAfter.Version != yBefore.Version {
		t.Fatalf("failed propose must not mutate: version want=%d got=%d", yBefore.Version, yAfter.Version)
	}
}

func TestProposeAgainstPendingListingFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	x := env.seedInstance(t, aliceAddr)
	y := env.seedInstance(t, bobAddr)
	z := env.seedInstance(t, carolAddr)

	listing, err := env.listingSvc.CreateListing(ctx, aliceAddr, x.ID, nil)
	if err != nil {
		t.Fatalf("CreateListing: %v", err)
	}
	if _, err := env.exchangeSvc.ProposeSwap(ctx, bobAddr, listing.ID, y.ID); err != nil {
		t.Fatalf("first ProposeSwap: %v", err)
	}
	_, err = env.exchangeSvc.ProposeSwap(ctx, carolAddr, listing.ID, z.ID)
	if !apierr.IsCode(err, apierr.CodeListingNotOpen) {
		t.Fatalf("second ProposeSwap: want=%s got=%v", apierr.CodeListingNotOpen, err)
	}
}

func TestRejectReopensListing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	x := env.seedInstance(t, aliceAddr)
	y := env.seedInstance(t, bobAddr)

	listing, err := env.listingSvc.CreateListing(ctx, aliceAddr, x.ID, nil)
	if err != nil {
		t.Fatalf("CreateListing: %v", err)
	}
	offer, err := env.exchangeSvc.ProposeSwap(ctx, bobAddr, listing.ID, y.ID)
	if err != nil {
		t.Fatalf("ProposeSwap: %v", err)
	}
	if err := env.exchangeSvc.ResolveSwap(ctx, aliceAddr, offer.ID, SwapDecisionReject); err != nil {
		t.Fatalf("ResolveSwap reject: %v", err)
	}
	reopened := env.getListingForInstance(t, x.ID)
	if reopened == nil || reopened.State != types.ListingStateOpen {
		t.Fatalf("listing after reject: want open got %+v", reopened)
	}
	gone, err := env.offers.GetByID(ctx, nil, offer.ID)
	if err != nil {
		t.Fatalf("offers.GetByID: %v", err)
	}
	if gone != nil {
		t.Fatalf("rejected offer should be discarded, got %+v", gone)
	}
	// Ownership unchanged.
	if !env.mustGetInstance(t, x.ID).OwnedBy(aliceAddr) || !env.mustGetInstance(t, y.ID).OwnedBy(bobAddr) {
		t.Fatalf("reject must not move ownership")
	}
}

func TestResolveByNonListingOwnerFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	x := env.seedInstance(t, aliceAddr)
	y := env.seedInstance(t, bobAddr)

	listing, err := env.listingSvc.CreateListing(ctx, aliceAddr, x.ID, nil)
	if err != nil {
		t.Fatalf("CreateListing: %v", err)
	}
	offer, err := env.exchangeSvc.ProposeSwap(ctx, bobAddr, listing.ID, y.ID)
	if err != nil {
		t.Fatalf("ProposeSwap: %v", err)
	}
	err = env.exchangeSvc.ResolveSwap(ctx, bobAddr, offer.ID, SwapDecisionAccept)
	if !apierr.IsCode(err, apierr.CodeNotOwner) {
		t.Fatalf("ResolveSwap by proposer: want=%s got=%v", apierr.CodeNotOwner, err)
	}
}

func TestRacingAcceptsProduceOneSwap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	x := env.seedInstance(t, aliceAddr)
	y := env.seedInstance(t, bobAddr)

	listing, err := env.listingSvc.CreateListing(ctx, aliceAddr, x.ID, nil)
	if err != nil {
		t.Fatalf("CreateListing: %v", err)
	}
	offer, err := env.exchangeSvc.ProposeSwap(ctx, bobAddr, listing.ID, y.ID)
	if err != nil {
		t.Fatalf("ProposeSwap: %v", err)
	}

	results := make([]error, 2)
	var g errgroup.Group
	for i := 0; i < 2; i++ {
		i := i
		g.Go(func() error {
			results[i] = env.exchangeSvc.ResolveSwap(ctx, aliceAddr, offer.ID, SwapDecisionAccept)
			return nil
		})
	}
	_ = g.Wait()

	successes := 0
	for _, res := range results {
		if res == nil {
			successes++
			continue
		}
		code := apierr.CodeOf(res)
		if code != apierr.CodeConflict && code != apierr.CodeNotFound {
			t.Fatalf("loser must fail with conflict or not_found, got %v", res)
		}
	}
	if successes != 1 {
		t.Fatalf("racing accepts: want exactly 1 success got %d (results=%v)", successes, results)
	}
	// Ownership swapped exactly once.
	if !env.mustGetInstance(t, x.ID).OwnedBy(bobAddr) || !env.mustGetInstance(t, y.ID).OwnedBy(aliceAddr) {
		t.Fatalf("ownership must be swapped exactly once")
	}
}

func TestResolveUnknownOfferFails(t *testing.T) {
	env := newTestEnv(t)
	err := env.exchangeSvc.ResolveSwap(context.Background(), aliceAddr, uuid.New(), SwapDecisionAccept)
	if !apierr.IsCode(err, apierr.CodeNotFound) {
		t.Fatalf("ResolveSwap on unknown offer: want=%s got=%v", apierr.CodeNotFound, err)
	}
}

func TestSweepExpiredOffersReopensListing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	x := env.seedInstance(t, aliceAddr)
	y := env.seedInstance(t, bobAddr)

	listing, err := env.listingSvc.CreateListing(ctx, aliceAddr, x.ID, nil)
	if err != nil {
		t.Fatalf("CreateListing: %v", err)
	}
	offer, err := env.exchangeSvc.ProposeSwap(ctx, bobAddr, listing.ID, y.ID)
	if err != nil {
		t.Fatalf("ProposeSwap: %v", err)
	}

	// A negative TTL makes the fresh offer immediately stale.
	n, err := env.exchangeSvc.SweepExpiredOffers(ctx, -time.Second)
	if err != nil {
		t.Fatalf("SweepExpiredOffers: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired count: want=1 got=%d", n)
	}
	reopened := env.getListingForInstance(t, x.ID)
	if reopened == nil || reopened.State != types.ListingStateOpen {
		t.Fatalf("listing after sweep: want open got %+v", reopened)
	}
	gone, err := env.offers.GetByID(ctx, nil, offer.ID)
	if err != nil {
		t.Fatalf("offers.GetByID: %v", err)
	}
	if gone != nil {
		t.Fatalf("expired offer should be discarded, got %+v", gone)
	}
}
