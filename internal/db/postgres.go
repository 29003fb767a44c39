package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/voltaprotect/groupbuy-backend/internal/platform/envutil"
	"github.com/voltaprotect/groupbuy-backend/internal/platform/logger"
	"github.com/voltaprotect/groupbuy-backend/internal/types"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	host := envutil.Str("POSTGRES_HOST", "localhost")
	port := envutil.Str("POSTGRES_PORT", "5432")
	user := envutil.Str("POSTGRES_USER", "postgres")
	password := envutil.Str("POSTGRES_PASSWORD", "")
	name := envutil.Str("POSTGRES_NAME", "groupbuy")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)

	serviceLog.Info("Connecting to Postgres...", "host", host, "db", name)
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		serviceLog.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.AdminUser{},
		&types.AdminToken{},
		&types.Product{},
		&types.GroupOrder{},
		&types.Participant{},
		&types.ChatMessage{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}

	// Duplicate-join dedup is enforced at the database as well: one row per
	// authenticated user per group, one row per guest phone per group.
	// Partial indexes, so postgres-only (the sqlite test databases rely on
	// the transactional check in the ledger).
	if err := s.db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_participant_group_user
		ON participant (group_order_id, user_id)
		WHERE user_id IS NOT NULL
	`).Error; err != nil {
		return fmt.Errorf("failed to create idx_participant_group_user: %w", err)
	}
	if err := s.db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_participant_group_phone
		ON participant (group_order_id, guest_phone)
		WHERE user_id IS NULL AND guest_phone <> ''
	`).Error; err != nil {
		return fmt.Errorf("failed to create idx_participant_group_phone: %w", err)
	}

	if err := s.db.Exec(`
		ALTER TABLE "participant"
		DROP CONSTRAINT IF EXISTS "fk_participant_group_order_id";
	`).Error; err != nil {
		return err
	}
	if err := s.db.Exec(`
		ALTER TABLE "participant"
		ADD CONSTRAINT "fk_participant_group_order_id"
		FOREIGN KEY ("group_order_id")
		REFERENCES "group_order"("id")
		ON DELETE CASCADE
	`).Error; err != nil {
		return fmt.Errorf("failed to add fk_participant_group_order_id: %w", err)
	}
	return nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}
