package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/couponloop/exchange-backend/internal/logger"
	"github.com/couponloop/exchange-backend/internal/repos"
	"github.com/couponloop/exchange-backend/internal/types"
)

const (
	aliceAddr = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	bobAddr   = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	carolAddr = "0xcccccccccccccccccccccccccccccccccccccccc"
	daveAddr  = "0xdddddddddddddddddddddddddddddddddddddddd"
)

type testEnv struct {
	db        *gorm.DB
	log       *logger.Logger
	instances repos.AssetInstanceRepo
	listings  repos.ListingRepo
	offers    repos.ExchangeOfferRepo
	batches   repos.AssetBatchRepo

	listingSvc  ListingService
	exchangeSvc ExchangeService
	browseSvc   BrowseService

	merchantID uuid.UUID
	batchID    uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}

	gdb, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	// A single connection serializes writers the way postgres row locks
	// would, so conflict handling is observable without SQLITE_BUSY noise.
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("gdb.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := gdb.AutoMigrate(
		&types.Merchant{},
		&types.AssetBatch{},
		&types.AssetInstance{},
		&types.Listing{},
		&types.ExchangeOffer{},
	); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	env := &testEnv{
		db:        gdb,
		log:       log,
		instances: repos.NewAssetInstanceRepo(gdb, log),
		listings:  repos.NewListingRepo(gdb, log),
		offers:    repos.NewExchangeOfferRepo(gdb, log),
		batches:   repos.NewAssetBatchRepo(gdb, log),
	}
	env.listingSvc = NewListingService(gdb, log, env.instances, env.listings, nil)
	env.exchangeSvc = NewExchangeService(gdb, log, env.instances, env.listings, env.offers, nil)
	env.browseSvc = NewBrowseService(gdb, log, env.instances, env.listings, env.batches)

	env.merchantID = env.seedMerchant(t, "Corner Coffee", "0x1111111111111111111111111111111111111111")
	env.batchID = env.seedBatch(t, env.merchantID, "Espresso Pass", "coffee", "Ten free espressos")
	return env
}

func (e *testEnv) seedMerchant(t *testing.T, name, wallet string) uuid.UUID {
	t.Helper()
	now := time.Now().UTC()
	m := &types.Merchant{
		ID:            uuid.New(),
		Name:          name,
		WalletAddress: wallet,
		Verified:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := e.db.Create(m).Error; err != nil {
		t.Fatalf("seed merchant: %v", err)
	}
	return m.ID
}

func (e *testEnv) seedBatch(t *testing.T, merchantID uuid.UUID, name, category, description string) uuid.UUID {
	t.Helper()
	now := time.Now().UTC()
	b := &types.AssetBatch{
		ID:          uuid.New(),
		MerchantID:  merchantID,
		Name:        name,
		Category:    category,
		Description: description,
		TotalSupply: 100,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.db.Create(b).Error; err != nil {
		t.Fatalf("seed batch: %v", err)
	}
	return b.ID
}

var instanceNumSeq int

func (e *testEnv) seedInstance(t *testing.T, owner string) *types.AssetInstance {
	t.Helper()
	return e.seedInstanceInBatch(t, e.batchID, owner)
}

func (e *testEnv) seedInstanceInBatch(t *testing.T, batchID uuid.UUID, owner string) *types.AssetInstance {
	t.Helper()
	instanceNumSeq++
	now := time.Now().UTC()
	inst := &types.AssetInstance{
		ID:          uuid.New(),
		BatchID:     batchID,
		InstanceNum: instanceNumSeq,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if owner != "" {
		inst.OwnerAddress = &owner
	}
	if err := e.db.Create(inst).Error; err != nil {
		t.Fatalf("seed instance: %v", err)
	}
	return inst
}

func (e *testEnv) mustGetInstance(t *testing.T, id uuid.UUID) *types.AssetInstance {
	t.Helper()
	inst, err := e.instances.GetByID(context.Background(), nil, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if inst == nil {
		t.Fatalf("instance %s not found", id)
	}
	return inst
}

func (e *testEnv) getListingForInstance(t *testing.T, instanceID uuid.UUID) *types.Listing {
	t.Helper()
	listing, err := e.listings.GetByInstanceID(context.Background(), nil, instanceID)
	if err != nil {
		t.Fatalf("GetByInstanceID: %v", err)
	}
	return listing
}
