package source

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ethpandaops/deltastage/pkg/credentials"
	"github.com/ethpandaops/deltastage/pkg/errkind"
	"github.com/sirupsen/logrus"

	_ "github.com/lib/pq"               // postgres
	_ "github.com/mattn/go-sqlite3"     // sqlite3
	_ "github.com/microsoft/go-mssqldb" // sqlserver
)

// Source is an open, read-only database handle paired with its dialect
type Source struct {
	DB      *sql.DB
	Dialect Dialect
	Config  *Config
}

// Open resolves credentials, connects and pings the source database
func Open(ctx context.Context, log logrus.FieldLogger, cfg *Config) (*Source, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	var creds *credentials.Credentials
	if cfg.Driver != DriverSQLite {
		creds, err = credentials.Load(cfg.Credentials)
		if err != nil {
			return nil, fmt.Errorf("failed to load credentials: %w", err)
		}
	}

	dsn, err := dialect.DSN(cfg, creds)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, errkind.Wrap("open source database", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()

		return nil, errkind.New(errkind.Connectivity, "ping source database", err)
	}

	fields := logrus.Fields{"driver": cfg.Driver, "schema": cfg.Schema}
	if creds != nil {
		fields["host"] = creds.Host
		fields["database"] = creds.DBName
	}

	log.WithField("component", "source").WithFields(fields).Info("Connected to source database")

	return &Source{DB: db, Dialect: dialect, Config: cfg}, nil
}

// Close closes the database handle
func (s *Source) Close() error {
	return s.DB.Close()
}
