package types

import (
	"time"

	"github.com/google/uuid"
)

// AssetBatch is a merchant-issued template for a family of numbered
// instances. Immutable after creation except administrative correction.
type AssetBatch struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	MerchantID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"merchant_id"`
	Merchant    *Merchant  `gorm:"constraint:OnDelete:CASCADE;foreignKey:MerchantID;references:ID" json:"merchant,omitempty"`
	Name        string     `gorm:"column:name;not null" json:"name"`
	Category    string     `gorm:"column:category;index" json:"category"`
	Description string     `gorm:"column:description" json:"description"`
	ImageKey    string     `gorm:"column:image_key" json:"image_key"`
	TotalSupply int        `gorm:"column:total_supply;not null" json:"total_supply"`
	ExpiresAt   *time.Time `gorm:"column:expires_at" json:"expires_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
}

func (AssetBatch) TableName() string { return "asset_batch" }
