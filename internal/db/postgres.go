package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/envutil"
	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/logger"
	"github.com/pandemonium-osu/pandemonium-backend/internal/types"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	host := envutil.Str("PG_HOST", "localhost")
	port := envutil.Str("PG_PORT", "5432")
	user := envutil.Str("PG_USER", "postgres")
	password := envutil.Str("PG_PASSWORD", "")
	name := envutil.Str("PG_DB", "pandemonium")

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		user, password, host, port, name,
	)

	serviceLog.Info("connecting to postgres", "host", host, "db", name)
	gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	return &PostgresService{db: gormDB, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("auto migrating postgres tables")
	return s.db.AutoMigrate(
		&types.Beatmapset{},
		&types.Beatmap{},
		&types.Player{},
		&types.PlayerActivity{},
	)
}
