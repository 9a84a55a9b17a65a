package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/couponloop/exchange-backend/internal/logger"
	"github.com/couponloop/exchange-backend/internal/types"
)

type AssetInstanceRepo interface {
	Create(ctx context.Context, tx *gorm.DB, instances []*types.AssetInstance) ([]*types.AssetInstance, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AssetInstance, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.AssetInstance, error)
	CountByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (int64, error)
	ListByOwner(ctx context.Context, tx *gorm.DB, ownerAddress string) ([]*types.AssetInstance, error)
	// BumpVersion increments the instance version iff it still equals
	// expectedVersion. Returns false when a concurrent writer got there first.
	BumpVersion(ctx context.Context, tx *gorm.DB, id uuid.UUID, expectedVersion int64) (bool, error)
	// SetOwnerVersioned writes a new owner (and bumps the version) iff the
	// version still equals expectedVersion.
	SetOwnerVersioned(ctx context.Context, tx *gorm.DB, id uuid.UUID, expectedVersion int64, ownerAddress *string) (bool, error)
}

type assetInstanceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssetInstanceRepo(db *gorm.DB, baseLog *logger.Logger) AssetInstanceRepo {
	return &assetInstanceRepo{db: db, log: baseLog.With("repo", "AssetInstanceRepo")}
}

func (r *assetInstanceRepo) Create(ctx context.Context, tx *gorm.DB, instances []*types.AssetInstance) ([]*types.AssetInstance, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(instances) == 0 {
		return []*types.AssetInstance{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&instances).Error; err != nil {
		return nil, err
	}
	return instances, nil
}

func (r *assetInstanceRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AssetInstance, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.AssetInstance
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

func (r *assetInstanceRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.AssetInstance, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.AssetInstance
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *assetInstanceRepo) CountByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return 0, nil
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.AssetInstance{}).
		Where("id IN ?", ids).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *assetInstanceRepo) ListByOwner(ctx context.Context, tx *gorm.DB, ownerAddress string) ([]*types.AssetInstance, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.AssetInstance
	if err := transaction.WithContext(ctx).
		Where("owner_address = ?", ownerAddress).
		Order("created_at ASC, id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *assetInstanceRepo) BumpVersion(ctx context.Context, tx *gorm.DB, id uuid.UUID, expectedVersion int64) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.AssetInstance{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"version":    expectedVersion + 1,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *assetInstanceRepo) SetOwnerVersioned(ctx context.Context, tx *gorm.DB, id uuid.UUID, expectedVersion int64, ownerAddress *string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.AssetInstance{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]interface{}{
			"owner_address": ownerAddress,
			"version":       expectedVersion + 1,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
