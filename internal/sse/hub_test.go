package sse

import (
	"testing"

	"github.com/couponloop/exchange-backend/internal/logger"
)

func newHub(t *testing.T) *SSEHub {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return NewSSEHub(log)
}

func TestPublishReachesOnlyWalletSubscribers(t *testing.T) {
	hub := newHub(t)
	alice := hub.NewSSEClient("0xAAaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	bob := hub.NewSSEClient("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	hub.Publish(SSEMessage{
		Channel: WalletChannel("0xaaAAAAaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Event:   SSEEventOfferProposed,
	})

	select {
	case msg := <-alice.Outbound:
		if msg.Event != SSEEventOfferProposed {
			t.Fatalf("event: want=%s got=%s", SSEEventOfferProposed, msg.Event)
		}
	default:
		t.Fatal("alice should receive the message; wallet channels are case-insensitive")
	}
	select {
	case msg := <-bob.Outbound:
		t.Fatalf("bob should not receive %+v", msg)
	default:
	}
}

func TestPublishDropsWhenOutboundFull(t *testing.T) {
	hub := newHub(t)
	client := hub.NewSSEClient("0xcccccccccccccccccccccccccccccccccccccccc")
	channel := WalletChannel(client.Wallet)

	for i := 0; i < cap(client.Outbound)+5; i++ {
		hub.Publish(SSEMessage{Channel: channel, Event: SSEEventSwapCompleted})
	}
	if got := len(client.Outbound); got != cap(client.Outbound) {
		t.Fatalf("outbound: want=%d buffered got=%d", cap(client.Outbound), got)
	}
}

func TestRemoveClientClosesDoneAndStopsDelivery(t *testing.T) {
	hub := newHub(t)
	client := hub.NewSSEClient("0xdddddddddddddddddddddddddddddddddddddddd")
	channel := WalletChannel(client.Wallet)

	hub.RemoveClient(client)
	select {
	case <-client.Done():
	default:
		t.Fatal("Done should be closed after RemoveClient")
	}

	hub.Publish(SSEMessage{Channel: channel, Event: SSEEventListingCancelled})
	if got := len(client.Outbound); got != 0 {
		t.Fatalf("removed client received %d messages", got)
	}

	// Removing twice must not panic on the closed done channel.
	hub.RemoveClient(client)
}
