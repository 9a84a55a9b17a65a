package sse

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/couponloop/exchange-backend/internal/logger"
)

type SSEEvent string

const (
	SSEEventOfferProposed    SSEEvent = "OfferProposed"
	SSEEventOfferRejected    SSEEvent = "OfferRejected"
	SSEEventOfferExpired     SSEEvent = "OfferExpired"
	SSEEventSwapCompleted    SSEEvent = "SwapCompleted"
	SSEEventListingCancelled SSEEvent = "ListingCancelled"
)

// WalletChannel names the per-wallet event channel.
func WalletChannel(walletAddress string) string {
	return "wallet:" + strings.ToLower(walletAddress)
}

type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

type SSEClient struct {
	ID       uuid.UUID
	Wallet   string
	Channels map[string]bool
	Outbound chan SSEMessage
	done     chan struct{}
}

func (c *SSEClient) Done() <-chan struct{} { return c.done }

type SSEHub struct {
	mu            sync.RWMutex
	logger        *logger.Logger
	subscriptions map[string]map[*SSEClient]bool
}

func NewSSEHub(log *logger.Logger) *SSEHub {
	return &SSEHub{
		logger:        log.With("component", "SSEHub"),
		subscriptions: make(map[string]map[*SSEClient]bool),
	}
}

// NewSSEClient registers a client subscribed to its own wallet channel.
func (hub *SSEHub) NewSSEClient(walletAddress string) *SSEClient {
	client := &SSEClient{
		ID:       uuid.New(),
		Wallet:   walletAddress,
		Channels: make(map[string]bool),
		Outbound: make(chan SSEMessage, 16),
		done:     make(chan struct{}),
	}
	hub.AddChannel(client, WalletChannel(walletAddress))
	return client
}

func (hub *SSEHub) AddChannel(client *SSEClient, channel string) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()

	client.Channels[channel] = true
	clients, exists := hub.subscriptions[channel]
	if !exists {
		clients = make(map[*SSEClient]bool)
		hub.subscriptions[channel] = clients
	}
	clients[client] = true

	hub.logger.Debug("SSE client subscribed", "clientID", client.ID, "channel", channel)
}

func (hub *SSEHub) RemoveClient(client *SSEClient) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	for channel := range client.Channels {
		if clients, ok := hub.subscriptions[channel]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(hub.subscriptions, channel)
			}
		}
	}
	select {
	case <-client.done:
	default:
		close(client.done)
	}
	hub.logger.Debug("SSE client removed", "clientID", client.ID)
}

// Publish fans a message out to every subscriber of its channel. Slow
// clients get dropped messages rather than blocking the publisher.
func (hub *SSEHub) Publish(msg SSEMessage) {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	clients := hub.subscriptions[msg.Channel]
	for client := range clients {
		select {
		case client.Outbound <- msg:
		default:
			hub.logger.Warn("SSE client outbound full, dropping message", "clientID", client.ID, "channel", msg.Channel)
		}
	}
}
