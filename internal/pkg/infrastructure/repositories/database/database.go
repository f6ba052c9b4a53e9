package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrRepositoryError = errors.New("could not fetch data from repository")

type ConnectorConfig struct {
	Host     string
	Port     string
	Username string
	DbName   string
	Password string
	SslMode  string
}

// ConnectorFunc returns the shared database handle. Every repository created from
// the same connector works against the same database.
type ConnectorFunc func() (*gorm.DB, error)

// NewConnector picks postgres when a host is configured and an in-memory sqlite
// database otherwise.
func NewConnector(ctx context.Context, cfg ConnectorConfig) ConnectorFunc {
	if cfg.Host == "" {
		return NewSQLiteConnector(ctx)
	}
	return NewPostgreSQLConnector(ctx, cfg)
}

func NewSQLiteConnector(ctx context.Context) ConnectorFunc {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())

	return once(func() (*gorm.DB, error) {
		db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
			Logger:          logger.Default.LogMode(logger.Silent),
			CreateBatchSize: 1000,
		})

		if err == nil {
			db.Exec("PRAGMA foreign_keys = ON")
			sqldb, _ := db.DB()
			sqldb.SetMaxOpenConns(1)
		}

		return db, err
	})
}

func NewPostgreSQLConnector(ctx context.Context, cfg ConnectorConfig) ConnectorFunc {
	dbURI := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s password=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.DbName, cfg.SslMode, cfg.Password)

	log := logging.GetFromContext(ctx)

	return once(func() (*gorm.DB, error) {
		sublogger := log.With(
			slog.String("host", cfg.Host),
			slog.String("database", cfg.DbName),
		)

		const maxAttempts = 5

		var err error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			sublogger.Info("connecting to database host", "attempt", attempt)

			var db *gorm.DB
			db, err = gorm.Open(postgres.Open(dbURI), &gorm.Config{
				Logger: logger.New(
					&logadapter{logger: sublogger},
					logger.Config{
						SlowThreshold:             time.Second,
						LogLevel:                  logger.Warn,
						IgnoreRecordNotFoundError: true,
						Colorful:                  false,
					},
				),
			})
			if err == nil {
				return db, nil
			}

			sublogger.Error("failed to connect to database", "err", err.Error())
			time.Sleep(3 * time.Second)
		}

		return nil, fmt.Errorf("giving up after %d attempts: %w", maxAttempts, err)
	})
}

func once(connect ConnectorFunc) ConnectorFunc {
	var (
		mu sync.Mutex
		db *gorm.DB
	)

	return func() (*gorm.DB, error) {
		mu.Lock()
		defer mu.Unlock()

		if db != nil {
			return db, nil
		}

		var err error
		db, err = connect()
		if err != nil {
			db = nil
		}
		return db, err
	}
}

// Migrate creates or updates the tables of every repository in this package.
func Migrate(connect ConnectorFunc) error {
	db, err := connect()
	if err != nil {
		return err
	}

	return db.AutoMigrate(&Temple{}, &Event{}, &PoojaTiming{}, &User{}, &Favorite{}, &Review{})
}

// logadapter provides a Printf interface to the gorm logger
// so that we can forward the log data to slog
type logadapter struct {
	logger *slog.Logger
}

func (adapter *logadapter) Printf(format string, args ...interface{}) {
	adapter.logger.Info(fmt.Sprintf(format, args...))
}
