package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/couponloop/exchange-backend/internal/logger"
	"github.com/couponloop/exchange-backend/internal/types"
)

// OpenListingRow is a flat projection of an open listing joined with its
// instance, batch and merchant metadata, shaped for browse responses.
type OpenListingRow struct {
	ListingID          uuid.UUID      `gorm:"column:listing_id"`
	InstanceID         uuid.UUID      `gorm:"column:instance_id"`
	InstanceNum        int            `gorm:"column:instance_num"`
	OwnerAddress       string         `gorm:"column:owner_address"`
	DesiredInstanceIDs datatypes.JSON `gorm:"column:desired_instance_ids"`
	BatchID            uuid.UUID      `gorm:"column:batch_id"`
	BatchName          string         `gorm:"column:batch_name"`
	Category           string         `gorm:"column:category"`
	Description        string         `gorm:"column:description"`
	ImageKey           string         `gorm:"column:image_key"`
	MerchantName       string         `gorm:"column:merchant_name"`
	ExpiresAt          *time.Time     `gorm:"column:expires_at"`
	ListedAt           time.Time      `gorm:"column:listed_at"`
}

type ListingRepo interface {
	Create(ctx context.Context, tx *gorm.DB, listings []*types.Listing) ([]*types.Listing, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Listing, error)
	GetByInstanceID(ctx context.Context, tx *gorm.DB, instanceID uuid.UUID) (*types.Listing, error)
	ListByOwnerAndStates(ctx context.Context, tx *gorm.DB, ownerAddress string, states []types.ListingState) ([]*types.Listing, error)
	// ListOpenRows returns every open listing not owned by excludeOwner,
	// optionally text-filtered over batch/merchant metadata, in stable
	// (created_at, id) order.
	ListOpenRows(ctx context.Context, tx *gorm.DB, excludeOwner string, text string) ([]*OpenListingRow, error)
	// TransitionState moves a listing between states iff it is still in the
	// from state. Returns false when the precondition no longer holds.
	TransitionState(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to types.ListingState) (bool, error)
	DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	DeleteByInstanceIDs(ctx context.Context, tx *gorm.DB, instanceIDs []uuid.UUID) error
}

type listingRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewListingRepo(db *gorm.DB, baseLog *logger.Logger) ListingRepo {
	return &listingRepo{db: db, log: baseLog.With("repo", "ListingRepo")}
}

func (r *listingRepo) Create(ctx context.Context, tx *gorm.DB, listings []*types.Listing) ([]*types.Listing, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(listings) == 0 {
		return []*types.Listing{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&listings).Error; err != nil {
		return nil, err
	}
	return listings, nil
}

func (r *listingRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Listing, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.Listing
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *listingRepo) GetByInstanceID(ctx context.Context, tx *gorm.DB, instanceID uuid.UUID) (*types.Listing, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.Listing
	err := transaction.WithContext(ctx).
		Where("instance_id = ?", instanceID).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *listingRepo) ListByOwnerAndStates(ctx context.Context, tx *gorm.DB, ownerAddress string, states []types.ListingState) ([]*types.Listing, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Listing
	if len(states) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("owner_address = ? AND state IN ?", ownerAddress, states).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *listingRepo) ListOpenRows(ctx context.Context, tx *gorm.DB, excludeOwner string, text string) ([]*OpenListingRow, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).
		Table("listing").
		Select(`listing.id AS listing_id,
			listing.instance_id AS instance_id,
			asset_instance.instance_num AS instance_num,
			listing.owner_address AS owner_address,
			listing.desired_instance_ids AS desired_instance_ids,
			asset_batch.id AS batch_id,
			asset_batch.name AS batch_name,
			asset_batch.category AS category,
			asset_batch.description AS description,
			asset_batch.image_key AS image_key,
			merchant.name AS merchant_name,
			asset_batch.expires_at AS expires_at,
			listing.created_at AS listed_at`).
		Joins("JOIN asset_instance ON asset_instance.id = listing.instance_id").
		Joins("JOIN asset_batch ON asset_batch.id = asset_instance.batch_id").
		Joins("JOIN merchant ON merchant.id = asset_batch.merchant_id").
		Where("listing.state = ?", types.ListingStateOpen)
	if excludeOwner != "" {
		q = q.Where("listing.owner_address <> ?", excludeOwner)
	}
	if text != "" {
		like := "%" + text + "%"
		q = q.Where(
			"LOWER(asset_batch.name) LIKE LOWER(?) OR LOWER(asset_batch.category) LIKE LOWER(?) OR LOWER(asset_batch.description) LIKE LOWER(?) OR LOWER(merchant.name) LIKE LOWER(?)",
			like, like, like, like,
		)
	}
	var out []*OpenListingRow
	if err := q.Order("listing.created_at ASC, listing.id ASC").Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *listingRepo) TransitionState(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to types.ListingState) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.Listing{}).
		Where("id = ? AND state = ?", id, from).
		Updates(map[string]interface{}{
			"state":      to,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *listingRepo) DeleteByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.Listing{}).Error
}

func (r *listingRepo) DeleteByInstanceIDs(ctx context.Context, tx *gorm.DB, instanceIDs []uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(instanceIDs) == 0 {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("instance_id IN ?", instanceIDs).
		Delete(&types.Listing{}).Error
}
