package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/couponloop/exchange-backend/internal/logger"
	"github.com/couponloop/exchange-backend/internal/types"
)

type AssetBatchRepo interface {
	Create(ctx context.Context, tx *gorm.DB, batches []*types.AssetBatch) ([]*types.AssetBatch, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.AssetBatch, error)
}

type assetBatchRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAssetBatchRepo(db *gorm.DB, baseLog *logger.Logger) AssetBatchRepo {
	return &assetBatchRepo{db: db, log: baseLog.With("repo", "AssetBatchRepo")}
}

func (r *assetBatchRepo) Create(ctx context.Context, tx *gorm.DB, batches []*types.AssetBatch) ([]*types.AssetBatch, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(batches) == 0 {
		return []*types.AssetBatch{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *assetBatchRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.AssetBatch, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.AssetBatch
	if len(ids) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Preload("Merchant").
		Where("id IN ?", ids).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
