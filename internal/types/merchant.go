package types

import (
	"time"

	"github.com/google/uuid"
)

// Merchant is the creator identity behind asset batches. Onboarding and
// verification happen outside this service; rows here are read-mostly
// metadata for browse filtering.
type Merchant struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string    `gorm:"column:name;not null;index" json:"name"`
	WalletAddress string    `gorm:"column:wallet_address;uniqueIndex;not null" json:"wallet_address"`
	Verified      bool      `gorm:"column:verified;not null;default:false" json:"verified"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}

func (Merchant) TableName() string { return "merchant" }
