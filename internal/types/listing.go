package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ListingState string

const (
	ListingStateOpen      ListingState = "open"
	ListingStatePending   ListingState = "pending"
	ListingStateCancelled ListingState = "cancelled"
)

// Listing is an owner's declaration that an instance is up for exchange.
// DesiredInstanceIDs holds the acceptance criteria as a JSON array of
// instance ids; an empty array means open to any instance. A swap that
// completes deletes the row; cancellation only marks it so a repeated
// cancel stays an observable no-op.
type Listing struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	InstanceID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"instance_id"`
	Instance           *AssetInstance `gorm:"constraint:OnDelete:CASCADE;foreignKey:InstanceID;references:ID" json:"instance,omitempty"`
	OwnerAddress       string         `gorm:"column:owner_address;not null;index" json:"owner_address"`
	DesiredInstanceIDs datatypes.JSON `gorm:"column:desired_instance_ids;type:jsonb" json:"desired_instance_ids"`
	State              ListingState   `gorm:"column:state;not null;index" json:"state"`
	CreatedAt          time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null" json:"updated_at"`
}

func (Listing) TableName() string { return "listing" }

// DesiredIDs decodes the acceptance criteria. A null or empty column decodes
// to an empty slice (open to any).
func (l *Listing) DesiredIDs() ([]uuid.UUID, error) {
	if len(l.DesiredInstanceIDs) == 0 {
		return []uuid.UUID{}, nil
	}
	var ids []uuid.UUID
	if err := json.Unmarshal(l.DesiredInstanceIDs, &ids); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return ids, nil
}

// SetDesiredIDs encodes the acceptance criteria. Nil is stored as an empty
// array so the open-to-any case is always representable.
func (l *Listing) SetDesiredIDs(ids []uuid.UUID) error {
	if ids == nil {
		ids = []uuid.UUID{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	l.DesiredInstanceIDs = datatypes.JSON(raw)
	return nil
}
