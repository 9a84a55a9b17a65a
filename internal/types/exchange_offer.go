package types

import (
	"time"

	"github.com/google/uuid"
)

type OfferState string

const (
	OfferStateProposed OfferState = "proposed"
	OfferStateAccepted OfferState = "accepted"
	OfferStateRejected OfferState = "rejected"
	OfferStateExpired  OfferState = "expired"
)

// ExchangeOffer pairs a target listing with a candidate instance from
// another owner. Offers are ephemeral: resolution (either way) removes the
// row, so only proposed offers are ever observable.
type ExchangeOffer struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ListingID         uuid.UUID      `gorm:"type:uuid;not null;index" json:"listing_id"`
	Listing           *Listing       `gorm:"constraint:OnDelete:CASCADE;foreignKey:ListingID;references:ID" json:"listing,omitempty"`
	OfferedInstanceID uuid.UUID      `gorm:"type:uuid;not null;index" json:"offered_instance_id"`
	OfferedInstance   *AssetInstance `gorm:"constraint:OnDelete:CASCADE;foreignKey:OfferedInstanceID;references:ID" json:"offered_instance,omitempty"`
	ProposerAddress   string         `gorm:"column:proposer_address;not null;index" json:"proposer_address"`
	State             OfferState     `gorm:"column:state;not null;index" json:"state"`
	CreatedAt         time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null" json:"updated_at"`
}

func (ExchangeOffer) TableName() string { return "exchange_offer" }
