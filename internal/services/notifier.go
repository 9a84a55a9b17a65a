package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/couponloop/exchange-backend/internal/clients/redis"
	"github.com/couponloop/exchange-backend/internal/logger"
	"github.com/couponloop/exchange-backend/internal/sse"
)

// ExchangeNotifier delivers best-effort exchange events to the parties of a
// listing or offer. Delivery failures are logged, never surfaced; the
// exchange state machine does not depend on notifications.
type ExchangeNotifier interface {
	OfferProposed(ctx context.Context, listingOwner string, listingID, offerID, offeredInstanceID uuid.UUID, proposer string)
	OfferRejected(ctx context.Context, proposer string, listingID, offerID uuid.UUID)
	OfferExpired(ctx context.Context, proposer string, listingID, offerID uuid.UUID)
	SwapCompleted(ctx context.Context, partyA, partyB string, instanceA, instanceB uuid.UUID)
	ListingCancelled(ctx context.Context, owner string, listingID, instanceID uuid.UUID)
}

type exchangeNotifier struct {
	log *logger.Logger
	hub *sse.SSEHub
	bus redis.SSEBus
}

// NewExchangeNotifier builds a notifier over the in-process hub; bus may be
// nil when the service runs as a single instance.
func NewExchangeNotifier(baseLog *logger.Logger, hub *sse.SSEHub, bus redis.SSEBus) ExchangeNotifier {
	return &exchangeNotifier{
		log: baseLog.With("service", "ExchangeNotifier"),
		hub: hub,
		bus: bus,
	}
}

func (n *exchangeNotifier) publish(ctx context.Context, wallet string, event sse.SSEEvent, data any) {
	if n == nil || n.hub == nil || wallet == "" {
		return
	}
	msg := sse.SSEMessage{
		Channel: sse.WalletChannel(wallet),
		Event:   event,
		Data:    data,
	}
	n.hub.Publish(msg)
	if n.bus != nil {
		if err := n.bus.Publish(ctx, msg); err != nil {
			n.log.Warn("Bus publish failed", "event", event, "error", err)
		}
	}
}

func (n *exchangeNotifier) OfferProposed(ctx context.Context, listingOwner string, listingID, offerID, offeredInstanceID uuid.UUID, proposer string) {
	n.publish(ctx, listingOwner, sse.SSEEventOfferProposed, map[string]any{
		"listing_id":          listingID,
		"offer_id":            offerID,
		"offered_instance_id": offeredInstanceID,
		"proposer_address":    proposer,
	})
}

func (n *exchangeNotifier) OfferRejected(ctx context.Context, proposer string, listingID, offerID uuid.UUID) {
	n.publish(ctx, proposer, sse.SSEEventOfferRejected, map[string]any{
		"listing_id": listingID,
		"offer_id":   offerID,
	})
}

func (n *exchangeNotifier) OfferExpired(ctx context.Context, proposer string, listingID, offerID uuid.UUID) {
	n.publish(ctx, proposer, sse.SSEEventOfferExpired, map[string]any{
		"listing_id": listingID,
		"offer_id":   offerID,
	})
}

func (n *exchangeNotifier) SwapCompleted(ctx context.Context, partyA, partyB string, instanceA, instanceB uuid.UUID) {
	payload := map[string]any{
		"instance_a": instanceA,
		"instance_b": instanceB,
	}
	n.publish(ctx, partyA, sse.SSEEventSwapCompleted, payload)
	n.publish(ctx, partyB, sse.SSEEventSwapCompleted, payload)
}

func (n *exchangeNotifier) ListingCancelled(ctx context.Context, owner string, listingID, instanceID uuid.UUID) {
	n.publish(ctx, owner, sse.SSEEventListingCancelled, map[string]any{
		"listing_id":  listingID,
		"instance_id": instanceID,
	})
}
