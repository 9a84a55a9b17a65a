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

type ExchangeOfferRepo interface {
	Create(ctx context.Context, tx *gorm.DB, offers []*types.ExchangeOffer) ([]*types.ExchangeOffer, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ExchangeOffer, error)
	GetProposedByListingID(ctx context.Context, tx *gorm.DB, listingID uuid.UUID) (*types.ExchangeOffer, error)
	ListProposedOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) ([]*types.ExchangeOffer, error)
	// DeleteProposed removes the offer iff it is still in the proposed state.
	// Returns false when a concurrent resolver already consumed it.
	DeleteProposed(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
}

type exchangeOfferRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExchangeOfferRepo(db *gorm.DB, baseLog *logger.Logger) ExchangeOfferRepo {
	return &exchangeOfferRepo{db: db, log: baseLog.With("repo", "ExchangeOfferRepo")}
}

func (r *exchangeOfferRepo) Create(ctx context.Context, tx *gorm.DB, offers []*types.ExchangeOffer) ([]*types.ExchangeOffer, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(offers) == 0 {
		return []*types.ExchangeOffer{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&offers).Error; err != nil {
		return nil, err
	}
	return offers, nil
}

func (r *exchangeOfferRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.ExchangeOffer, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.ExchangeOffer
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

func (r *exchangeOfferRepo) GetProposedByListingID(ctx context.Context, tx *gorm.DB, listingID uuid.UUID) (*types.ExchangeOffer, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out types.ExchangeOffer
	err := transaction.WithContext(ctx).
		Where("listing_id = ? AND state = ?", listingID, types.OfferStateProposed).
		First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *exchangeOfferRepo) ListProposedOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) ([]*types.ExchangeOffer, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.ExchangeOffer
	q := transaction.WithContext(ctx).
		Where("state = ? AND created_at < ?", types.OfferStateProposed, cutoff).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *exchangeOfferRepo) DeleteProposed(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Where("id = ? AND state = ?", id, types.OfferStateProposed).
		Delete(&types.ExchangeOffer{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
