package database

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/kitchen-ops/internal"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const driverName = "pgx"

// Handles bundles the two views of one connection pool: gorm for the write
// path and sqlx for hand-written read queries.
type Handles struct {
	Gorm *gorm.DB
	SQLX *sqlx.DB
}

func (h *Handles) Close() error {
	if h == nil || h.SQLX == nil {
		return nil
	}
	return h.SQLX.Close()
}

// Open connects to postgres through the pgx stdlib driver and layers gorm on
// top of the same *sql.DB.
func Open(cfg internal.DatabaseConfig, lg *slog.Logger) (*Handles, error) {
	dbConn, err := sqlx.Connect(driverName, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: dbConn.DB}), &gorm.Config{
		Logger:  NewGormLogger(lg),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to initialise gorm: %w", err)
	}

	return &Handles{Gorm: gormDB, SQLX: dbConn}, nil
}

// NewGormLogger routes gorm's own logging to slog at warn level so slow
// queries and errors surface next to application logs.
func NewGormLogger(lg *slog.Logger) gormlogger.Interface {
	if lg == nil {
		return gormlogger.Discard
	}
	return gormlogger.New(slogWriter{lg: lg}, gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

type slogWriter struct {
	lg *slog.Logger
}

func (w slogWriter) Printf(format string, args ...interface{}) {
	w.lg.Warn("gorm", "message", fmt.Sprintf(format, args...))
}
