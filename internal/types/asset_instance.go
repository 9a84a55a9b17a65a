package types

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// AssetInstance is one uniquely-owned, numbered unit of a batch. OwnerAddress
// is nil for unassigned instances. Version is the optimistic-concurrency
// stamp: every ownership or listing-affecting mutation goes through a
// version-guarded update and bumps it.
type AssetInstance struct {
	ID           uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	BatchID      uuid.UUID   `gorm:"type:uuid;not null;index;uniqueIndex:idx_instance_batch_num" json:"batch_id"`
	Batch        *AssetBatch `gorm:"constraint:OnDelete:CASCADE;foreignKey:BatchID;references:ID" json:"batch,omitempty"`
	InstanceNum  int         `gorm:"column:instance_num;not null;uniqueIndex:idx_instance_batch_num" json:"instance_num"`
	OwnerAddress *string     `gorm:"column:owner_address;index" json:"owner_address,omitempty"`
	Version      int64       `gorm:"column:version;not null" json:"version"`
	CreatedAt    time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time   `gorm:"not null" json:"updated_at"`
}

func (AssetInstance) TableName() string { return "asset_instance" }

// OwnedBy reports whether the instance is currently owned by addr.
func (ai *AssetInstance) OwnedBy(addr string) bool {
	return ai.OwnerAddress != nil && *ai.OwnerAddress == addr
}

var walletAddressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// IsWalletAddress reports whether s looks like a verified wallet address.
// Identity resolution itself is external; this only guards against garbage
// making it into ownership columns.
func IsWalletAddress(s string) bool {
	return walletAddressRe.MatchString(s)
}
