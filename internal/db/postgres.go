package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/couponloop/exchange-backend/internal/logger"
	"github.com/couponloop/exchange-backend/internal/types"
	"github.com/couponloop/exchange-backend/internal/utils"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
	postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
	postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
	postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
	postgresName := utils.GetEnv("POSTGRES_NAME", "couponloop", log)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

	serviceLog.Info("Connecting to Postgres...")
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		serviceLog.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		serviceLog.Error("Failed to enable uuid-ossp extension", "error", err)
		return nil, fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.Merchant{},
		&types.AssetBatch{},
		&types.AssetInstance{},
		&types.Listing{},
		&types.ExchangeOffer{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}
	s.log.Info("Configuring foreign key relationships for postgres tables...")
	for _, stmt := range []string{
		`ALTER TABLE "asset_batch"
		 ADD CONSTRAINT "fk_asset_batch_merchant_id"
		 FOREIGN KEY ("merchant_id") REFERENCES "merchant"("id")
		 ON DELETE CASCADE`,
		`ALTER TABLE "asset_instance"
		 ADD CONSTRAINT "fk_asset_instance_batch_id"
		 FOREIGN KEY ("batch_id") REFERENCES "asset_batch"("id")
		 ON DELETE CASCADE`,
		`ALTER TABLE "listing"
		 ADD CONSTRAINT "fk_listing_instance_id"
		 FOREIGN KEY ("instance_id") REFERENCES "asset_instance"("id")
		 ON DELETE CASCADE`,
		`ALTER TABLE "exchange_offer"
		 ADD CONSTRAINT "fk_exchange_offer_listing_id"
		 FOREIGN KEY ("listing_id") REFERENCES "listing"("id")
		 ON DELETE CASCADE`,
		`ALTER TABLE "exchange_offer"
		 ADD CONSTRAINT "fk_exchange_offer_offered_instance_id"
		 FOREIGN KEY ("offered_instance_id") REFERENCES "asset_instance"("id")
		 ON DELETE CASCADE`,
	} {
		if err := s.db.Exec(stmt).Error; err != nil {
			// Re-running migrations against an existing schema trips
			// duplicate-constraint errors; those are harmless.
			s.log.Warn("FK constraint statement failed (may already exist)", "error", err)
		}
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
