package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	domain "github.com/openlingo/openlingo-backend/internal/domain/jobs"
	"github.com/openlingo/openlingo-backend/internal/platform/envutil"
	"github.com/openlingo/openlingo-backend/internal/platform/logger"
)

// Service owns the gorm handle. The driver comes from DB_DRIVER: "postgres"
// for deployments, "sqlite" for local runs and the test harness.
type Service struct {
	db  *gorm.DB
	log *logger.Logger
}

func New(log *logger.Logger) (*Service, error) {
	serviceLog := log.With("service", "DBService")
	driver := envutil.Str("DB_DRIVER", "sqlite")

	var (
		handle *gorm.DB
		err    error
	)
	switch driver {
	case "postgres":
		host := envutil.Str("POSTGRES_HOST", "localhost")
		port := envutil.Str("POSTGRES_PORT", "5432")
		user := envutil.Str("POSTGRES_USER", "postgres")
		password := envutil.Str("POSTGRES_PASSWORD", "")
		name := envutil.Str("POSTGRES_NAME", "openlingo")
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)
		log.Info("Connecting to Postgres...", "host", host, "db", name)
		handle, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
		})
	case "sqlite":
		path := envutil.Str("SQLITE_PATH", "openlingo.db")
		log.Info("Opening SQLite database...", "path", path)
		handle, err = gorm.Open(sqlite.Open(path), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	return &Service{db: handle, log: serviceLog}, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating job tables...")
	if err := s.db.AutoMigrate(
		&domain.ImportJob{},
		&domain.BatchJob{},
	); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}
