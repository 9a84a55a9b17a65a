package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/couponloop/exchange-backend/internal/logger"
	"github.com/couponloop/exchange-backend/internal/repos"
	"github.com/couponloop/exchange-backend/internal/types"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// BrowseFilter narrows the open-listing feed. Text matches batch name,
// category, description and merchant name case-insensitively.
// MatchesMyHoldings keeps only listings the caller could actually satisfy:
// a desired set intersecting the caller's instances, or an empty desired set
// (open to any instance counts as a match).
type BrowseFilter struct {
	Text              string
	MatchesMyHoldings bool
}

// BrowseItem is one open listing with enough metadata to render it.
type BrowseItem struct {
	ListingID          uuid.UUID   `json:"listing_id"`
	InstanceID         uuid.UUID   `json:"instance_id"`
	InstanceNum        int         `json:"instance_num"`
	OwnerAddress       string      `json:"owner_address"`
	DesiredInstanceIDs []uuid.UUID `json:"desired_instance_ids"`
	BatchID            uuid.UUID   `json:"batch_id"`
	BatchName          string      `json:"batch_name"`
	Category           string      `json:"category"`
	Description        string      `json:"description"`
	ImageKey           string      `json:"image_key"`
	MerchantName       string      `json:"merchant_name"`
	ExpiresAt          *time.Time  `json:"expires_at,omitempty"`
	ListedAt           time.Time   `json:"listed_at"`
}

// MyListingItem is one of the caller's own listings.
type MyListingItem struct {
	ListingID          uuid.UUID          `json:"listing_id"`
	InstanceID         uuid.UUID          `json:"instance_id"`
	State              types.ListingState `json:"state"`
	DesiredInstanceIDs []uuid.UUID        `json:"desired_instance_ids"`
	ListedAt           time.Time          `json:"listed_at"`
}

// HoldingItem is one instance the caller owns, with its listing state when
// one exists.
type HoldingItem struct {
	InstanceID   uuid.UUID           `json:"instance_id"`
	InstanceNum  int                 `json:"instance_num"`
	BatchID      uuid.UUID           `json:"batch_id"`
	BatchName    string              `json:"batch_name"`
	Category     string              `json:"category"`
	ImageKey     string              `json:"image_key"`
	MerchantName string              `json:"merchant_name"`
	ExpiresAt    *time.Time          `json:"expires_at,omitempty"`
	ListingState *types.ListingState `json:"listing_state,omitempty"`
}

type BrowseService interface {
	BrowseOpenListings(ctx context.Context, callerAddress string, filter BrowseFilter, page, pageSize int) ([]*BrowseItem, int, error)
	ListMyListings(ctx context.Context, callerAddress string) ([]*MyListingItem, error)
	ListMyHoldings(ctx context.Context, callerAddress string) ([]*HoldingItem, error)
}

type browseService struct {
	db        *gorm.DB
	log       *logger.Logger
	instances repos.AssetInstanceRepo
	listings  repos.ListingRepo
	batches   repos.AssetBatchRepo
}

func NewBrowseService(
	db *gorm.DB,
	baseLog *logger.Logger,
	instances repos.AssetInstanceRepo,
	listings repos.ListingRepo,
	batches repos.AssetBatchRepo,
) BrowseService {
	return &browseService{
		db:        db,
		log:       baseLog.With("service", "BrowseService"),
		instances: instances,
		listings:  listings,
		batches:   batches,
	}
}

// BrowseOpenListings returns one page of open listings not owned by the
// caller, plus the total page count for the filter. Holdings matching runs
// in-process so the JSON desired sets stay portable across postgres and
// sqlite; rows keep their stable (created_at, id) order from the store.
func (s *browseService) BrowseOpenListings(ctx context.Context, callerAddress string, filter BrowseFilter, page, pageSize int) ([]*BrowseItem, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	rows, err := s.listings.ListOpenRows(ctx, nil, callerAddress, strings.TrimSpace(filter.Text))
	if err != nil {
		return nil, 0, err
	}

	var holdings map[uuid.UUID]bool
	if filter.MatchesMyHoldings {
		owned, err := s.instances.ListByOwner(ctx, nil, callerAddress)
		if err != nil {
			return nil, 0, err
		}
		holdings = make(map[uuid.UUID]bool, len(owned))
		for _, inst := range owned {
			holdings[inst.ID] = true
		}
	}

	items := make([]*BrowseItem, 0, len(rows))
	for _, row := range rows {
		desired, err := decodeDesired(row.DesiredInstanceIDs)
		if err != nil {
			s.log.Warn("Skipping listing with malformed desired set", "listing_id", row.ListingID, "error", err)
			continue
		}
		if filter.MatchesMyHoldings && !DesiredSetMatchesHoldings(desired, holdings) {
			continue
		}
		items = append(items, &BrowseItem{
			ListingID:          row.ListingID,
			InstanceID:         row.InstanceID,
			InstanceNum:        row.InstanceNum,
			OwnerAddress:       row.OwnerAddress,
			DesiredInstanceIDs: desired,
			BatchID:            row.BatchID,
			BatchName:          row.BatchName,
			Category:           row.Category,
			Description:        row.Description,
			ImageKey:           row.ImageKey,
			MerchantName:       row.MerchantName,
			ExpiresAt:          row.ExpiresAt,
			ListedAt:           row.ListedAt,
		})
	}

	totalPages := (len(items) + pageSize - 1) / pageSize
	start := (page - 1) * pageSize
	if start >= len(items) {
		return []*BrowseItem{}, totalPages, nil
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], totalPages, nil
}

func (s *browseService) ListMyListings(ctx context.Context, callerAddress string) ([]*MyListingItem, error) {
	listings, err := s.listings.ListByOwnerAndStates(ctx, nil, callerAddress, []types.ListingState{
		types.ListingStateOpen,
		types.ListingStatePending,
	})
	if err != nil {
		return nil, err
	}
	items := make([]*MyListingItem, 0, len(listings))
	for _, l := range listings {
		desired, err := l.DesiredIDs()
		if err != nil {
			s.log.Warn("Skipping listing with malformed desired set", "listing_id", l.ID, "error", err)
			continue
		}
		items = append(items, &MyListingItem{
			ListingID:          l.ID,
			InstanceID:         l.InstanceID,
			State:              l.State,
			DesiredInstanceIDs: desired,
			ListedAt:           l.CreatedAt,
		})
	}
	return items, nil
}

func (s *browseService) ListMyHoldings(ctx context.Context, callerAddress string) ([]*HoldingItem, error) {
	owned, err := s.instances.ListByOwner(ctx, nil, callerAddress)
	if err != nil {
		return nil, err
	}
	if len(owned) == 0 {
		return []*HoldingItem{}, nil
	}

	batchIDs := make([]uuid.UUID, 0, len(owned))
	seen := make(map[uuid.UUID]bool, len(owned))
	for _, inst := range owned {
		if !seen[inst.BatchID] {
			seen[inst.BatchID] = true
			batchIDs = append(batchIDs, inst.BatchID)
		}
	}
	batches, err := s.batches.GetByIDs(ctx, nil, batchIDs)
	if err != nil {
		return nil, err
	}
	batchByID := make(map[uuid.UUID]*types.AssetBatch, len(batches))
	for _, b := range batches {
		batchByID[b.ID] = b
	}

	items := make([]*HoldingItem, 0, len(owned))
	for _, inst := range owned {
		item := &HoldingItem{
			InstanceID:  inst.ID,
			InstanceNum: inst.InstanceNum,
			BatchID:     inst.BatchID,
		}
		if b := batchByID[inst.BatchID]; b != nil {
			item.BatchName = b.Name
			item.Category = b.Category
			item.ImageKey = b.ImageKey
			item.ExpiresAt = b.ExpiresAt
			if b.Merchant != nil {
				item.MerchantName = b.Merchant.Name
			}
		}
		listing, err := s.listings.GetByInstanceID(ctx, nil, inst.ID)
		if err != nil {
			return nil, err
		}
		if listing != nil && listing.State != types.ListingStateCancelled {
			state := listing.State
			item.ListingState = &state
		}
		items = append(items, item)
	}
	return items, nil
}

func decodeDesired(raw []byte) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return []uuid.UUID{}, nil
	}
	var ids []uuid.UUID
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	return ids, nil
}
